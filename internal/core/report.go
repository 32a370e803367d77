package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoExpenses is returned by Aggregate for an empty input. It lets callers
// tell "no expenses yet" apart from a report whose amounts are all zero.
var ErrNoExpenses = errors.New("no expenses recorded")

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
	Count  int
	// Share of the grand total in percent, 0 when the total is zero.
	Share float64
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

func (ym YearMonth) before(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

// MonthAmount is the total spent in one calendar month.
type MonthAmount struct {
	Period YearMonth
	Amount Money
}

// Report summarizes a user's expenses.
type Report struct {
	Total      Money
	Count      int
	ByCategory []CategoryAmount // amount descending, then name
	ByMonth    []MonthAmount    // chronological ascending
}

// Aggregate groups expenses by category and by calendar month and computes
// the grand total. An empty input returns ErrNoExpenses.
func Aggregate(expenses []Expense) (Report, error) {
	if len(expenses) == 0 {
		return Report{}, ErrNoExpenses
	}

	var report Report
	categories := make(map[string]*CategoryAmount)
	months := make(map[YearMonth]*MonthAmount)

	for _, e := range expenses {
		report.Total.Cents += e.Amount.Cents
		report.Count++

		ca, ok := categories[e.Category]
		if !ok {
			ca = &CategoryAmount{Name: e.Category}
			categories[e.Category] = ca
		}
		ca.Amount.Cents += e.Amount.Cents
		ca.Count++

		ym := YearMonth{Year: e.Date.Year(), Month: e.Date.Month()}
		ma, ok := months[ym]
		if !ok {
			ma = &MonthAmount{Period: ym}
			months[ym] = ma
		}
		ma.Amount.Cents += e.Amount.Cents
	}

	report.ByCategory = make([]CategoryAmount, 0, len(categories))
	for _, ca := range categories {
		if report.Total.Cents > 0 {
			ca.Share = float64(ca.Amount.Cents) * 100 / float64(report.Total.Cents)
		}
		report.ByCategory = append(report.ByCategory, *ca)
	}
	sort.Slice(report.ByCategory, func(i, j int) bool {
		a, b := report.ByCategory[i], report.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})

	report.ByMonth = make([]MonthAmount, 0, len(months))
	for _, ma := range months {
		report.ByMonth = append(report.ByMonth, *ma)
	}
	sort.Slice(report.ByMonth, func(i, j int) bool {
		return report.ByMonth[i].Period.before(report.ByMonth[j].Period)
	})

	return report, nil
}

// Category returns the total for a category label.
func (r Report) Category(name string) (CategoryAmount, bool) {
	for _, ca := range r.ByCategory {
		if ca.Name == name {
			return ca, true
		}
	}
	return CategoryAmount{}, false
}

// Savings is income minus the report total; negative means overspending.
func (r Report) Savings(income Money) Money {
	return Money{Cents: income.Cents - r.Total.Cents}
}
