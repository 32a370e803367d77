// Package sheets defines the spreadsheet export ports and the row layout
// shared by its adapters.
package sheets

import (
	"context"
	"strconv"
	"time"

	"finwise/internal/core"
)

// Header is the first row of an export sheet.
var Header = []string{"Date", "User", "Category", "Amount", "Description", "Expense ID"}

// Row is one exported expense.
type Row struct {
	ExpenseID   int64
	Date        core.Date
	Username    string
	Category    string
	Amount      core.Money
	Description string
}

// NewRow builds the export row for an expense owned by username.
func NewRow(e core.Expense, username string) Row {
	return Row{
		ExpenseID:   e.ID,
		Date:        e.Date,
		Username:    username,
		Category:    e.Category,
		Amount:      e.Amount,
		Description: e.Description,
	}
}

// Values renders the row in column order.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		r.Username,
		r.Category,
		r.Amount.Float(),
		r.Description,
		strconv.FormatInt(r.ExpenseID, 10),
	}
}

// Ports for outbound adapters.
type (
	// ExpenseExporter appends rows to the export destination.
	ExpenseExporter interface {
		Export(ctx context.Context, row Row) (rowRef string, err error)
	}

	// ExportChecker reports whether an expense was already exported, so
	// redelivered events do not produce duplicate rows.
	ExportChecker interface {
		HasExpense(ctx context.Context, expenseID int64) (bool, error)
	}

	// Exporter is what the export worker needs.
	Exporter interface {
		ExpenseExporter
		ExportChecker
	}
)

// DefaultIDCacheTTL bounds how long adapters may trust a cached set of
// exported ids.
const DefaultIDCacheTTL = 5 * time.Minute
