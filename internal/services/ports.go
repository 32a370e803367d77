package services

import (
	"context"

	"finwise/internal/core"
)

// UserStore is the credential store used by AuthService.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// ExpenseStore is the expense store used by ExpenseService.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpensesByUser(ctx context.Context, userID int64) ([]core.Expense, error)
}

// Categorizer assigns a category label to an expense description.
type Categorizer interface {
	Categorize(ctx context.Context, description string) string
}

// EventPublisher announces recorded expenses to other processes.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, id, userID, version int64) error
}
