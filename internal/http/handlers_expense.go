package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"finwise/internal/advice"
	"finwise/internal/core"
	"finwise/internal/session"
)

type addExpenseData struct {
	Today string
	Saved *core.Expense
}

type dashboardData struct {
	Report   *core.Report
	Months   []core.MonthAmount
	MaxMonth int64
	Expenses []core.Expense
	Savings  *core.Money
	Advice   *advice.Result
}

type adviceData struct {
	Risks  []advice.Risk
	Advice *advice.Result
}

type chatData struct {
	Question string
	Advice   *advice.Result
}

func userID(r *http.Request) int64 {
	return currentSession(r).Snapshot().Identity.UserID
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	_ = currentSession(r).Navigate(session.AddExpense)
	today := core.DateOf(s.now()).String()

	fail := func(err error) {
		status, msg, ok := userError(err)
		if !ok {
			s.serverError(w, r, err)
			return
		}
		s.renderView(w, r, status, session.AddExpense, pageData{
			Error: msg,
			Form:  r.PostForm,
			Data:  addExpenseData{Today: today},
		})
	}

	if err := parseForm(w, r); err != nil {
		fail(err)
		return
	}
	date, err := s.parseDateOrToday(formValue(r, "date"))
	if err != nil {
		fail(err)
		return
	}
	amount, err := parseAmount(formValue(r, "amount"))
	if err != nil {
		fail(err)
		return
	}

	saved, err := s.expenses.AddExpense(r.Context(), userID(r), date, amount, r.PostFormValue("description"))
	if err != nil {
		fail(err)
		return
	}

	s.renderView(w, r, http.StatusCreated, session.AddExpense, pageData{
		Flash: fmt.Sprintf("Expense added under %s.", saved.Category),
		Data:  addExpenseData{Today: today, Saved: &saved},
	})
}

// loadDashboard builds the dashboard view model. A user without expenses gets
// an empty model rather than an error.
func (s *Server) loadDashboard(ctx context.Context, userID int64) (dashboardData, error) {
	report, expenses, err := s.expenses.Report(ctx, userID)
	if errors.Is(err, core.ErrNoExpenses) {
		return dashboardData{}, nil
	}
	if err != nil {
		return dashboardData{}, err
	}

	dash := dashboardData{Report: &report, Months: report.ByMonth}
	for _, m := range report.ByMonth {
		if m.Amount.Cents > dash.MaxMonth {
			dash.MaxMonth = m.Amount.Cents
		}
	}
	dash.Expenses = expenses
	return dash, nil
}

type chartCategory struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

type chartMonth struct {
	Period string  `json:"period"`
	Amount float64 `json:"amount"`
}

type chartData struct {
	Total      float64         `json:"total"`
	Count      int             `json:"count"`
	Categories []chartCategory `json:"categories"`
	Months     []chartMonth    `json:"months"`
}

// handleDashboardData serves the dashboard aggregates as JSON for charting.
func (s *Server) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	data := chartData{Categories: []chartCategory{}, Months: []chartMonth{}}

	report, _, err := s.expenses.Report(r.Context(), userID(r))
	switch {
	case errors.Is(err, core.ErrNoExpenses):
	case err != nil:
		s.serverError(w, r, err)
		return
	default:
		data.Total = report.Total.Float()
		data.Count = report.Count
		for _, c := range report.ByCategory {
			data.Categories = append(data.Categories, chartCategory{
				Name:   c.Name,
				Amount: c.Amount.Float(),
				Count:  c.Count,
				Share:  c.Share,
			})
		}
		for _, m := range report.ByMonth {
			data.Months = append(data.Months, chartMonth{Period: m.Period.String(), Amount: m.Amount.Float()})
		}
	}

	NewJSONResponse(data).Header("Cache-Control", "no-store").Write(w)
}

// handleSavings asks for savings tips based on the user's spending and the
// submitted monthly income.
func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	_ = currentSession(r).Navigate(session.Dashboard)

	dash, err := s.loadDashboard(r.Context(), userID(r))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	fail := func(err error) {
		status, msg, ok := userError(err)
		if !ok {
			s.serverError(w, r, err)
			return
		}
		s.renderView(w, r, status, session.Dashboard, pageData{Error: msg, Form: r.PostForm, Data: dash})
	}

	if err := parseForm(w, r); err != nil {
		fail(err)
		return
	}
	if dash.Report == nil {
		fail(core.ErrNoExpenses)
		return
	}
	income, err := parseAmount(formValue(r, "income"))
	if err != nil {
		fail(err)
		return
	}

	result, err := s.adviser.Savings(r.Context(), *dash.Report, income)
	if err != nil {
		fail(err)
		return
	}

	savings := dash.Report.Savings(income)
	dash.Savings = &savings
	dash.Advice = &result
	s.renderView(w, r, http.StatusOK, session.Dashboard, pageData{Form: r.PostForm, Data: dash})
}

func (s *Server) handleInvestmentAdvice(w http.ResponseWriter, r *http.Request) {
	_ = currentSession(r).Navigate(session.InvestmentAdvice)

	fail := func(err error) {
		status, msg, ok := userError(err)
		if !ok {
			s.serverError(w, r, err)
			return
		}
		s.renderView(w, r, status, session.InvestmentAdvice, pageData{
			Error: msg,
			Form:  r.PostForm,
			Data:  adviceData{Risks: advice.Risks},
		})
	}

	if err := parseForm(w, r); err != nil {
		fail(err)
		return
	}
	income, err := parseAmount(formValue(r, "income"))
	if err != nil {
		fail(err)
		return
	}
	savings, err := parseAmount(formValue(r, "savings"))
	if err != nil {
		fail(err)
		return
	}
	risk, err := advice.ParseRisk(formValue(r, "risk"))
	if err != nil {
		fail(err)
		return
	}

	result, err := s.adviser.Investment(r.Context(), income, savings, risk, formValue(r, "goals"))
	if err != nil {
		fail(err)
		return
	}
	s.renderView(w, r, http.StatusOK, session.InvestmentAdvice, pageData{
		Form: r.PostForm,
		Data: adviceData{Risks: advice.Risks, Advice: &result},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	_ = currentSession(r).Navigate(session.Chatbot)

	fail := func(err error) {
		status, msg, ok := userError(err)
		if !ok {
			s.serverError(w, r, err)
			return
		}
		s.renderView(w, r, status, session.Chatbot, pageData{Error: msg, Form: r.PostForm, Data: chatData{}})
	}

	if err := parseForm(w, r); err != nil {
		fail(err)
		return
	}
	question := formValue(r, "question")
	result, err := s.adviser.Chat(r.Context(), question)
	if err != nil {
		fail(err)
		return
	}
	s.renderView(w, r, http.StatusOK, session.Chatbot, pageData{
		Data: chatData{Question: question, Advice: &result},
	})
}
