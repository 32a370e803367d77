package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"finwise/internal/core"
	"finwise/internal/log"
)

// ExpenseService records expenses and builds spending reports.
type ExpenseService struct {
	store       ExpenseStore
	categorizer Categorizer
	publisher   EventPublisher
}

// NewExpenseService wires the service. publisher may be nil, in which case
// no events are sent.
func NewExpenseService(store ExpenseStore, categorizer Categorizer, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:       store,
		categorizer: categorizer,
		publisher:   publisher,
	}
}

// AddExpense validates the input, asks for a category, stores the expense
// and announces it.
func (s *ExpenseService) AddExpense(ctx context.Context, userID int64, date core.Date, amount core.Money, description string) (core.Expense, error) {
	e := core.Expense{
		UserID:      userID,
		Date:        date,
		Amount:      amount,
		Description: CleanDescription(description),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	e.Category = core.DefaultCategory
	if e.Description != "" && s.categorizer != nil {
		e.Category = s.categorizer.Categorize(ctx, e.Description)
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx).WithComponent(log.ComponentExpense)).
		LogExpenseCreated(ctx, saved)

	// Version 1: expenses are immutable once recorded.
	if err := s.publish(ctx, saved, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense recorded event",
			log.FieldExpenseID, saved.ID, log.FieldError, err)
	}

	return saved, nil
}

func (s *ExpenseService) publish(ctx context.Context, e core.Expense, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping expense event", log.FieldExpenseID, e.ID)
		return nil
	}
	return s.publisher.PublishExpenseRecorded(ctx, e.ID, e.UserID, version)
}

// ListExpenses returns the user's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	expenses, err := s.store.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Report aggregates the user's expenses. A user without expenses gets
// core.ErrNoExpenses.
func (s *ExpenseService) Report(ctx context.Context, userID int64) (core.Report, []core.Expense, error) {
	expenses, err := s.ListExpenses(ctx, userID)
	if err != nil {
		return core.Report{}, nil, err
	}
	report, err := core.Aggregate(expenses)
	if err != nil {
		return core.Report{}, nil, err
	}
	return report, expenses, nil
}

// CleanDescription trims the description and drops control characters.
func CleanDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
