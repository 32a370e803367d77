// Package memory is an in-process export destination, used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finwise/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
	ids  map[int64]int
	// failNext, when set, fails the next Export.
	failNext error
}

var _ sheets.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{ids: make(map[int64]int)}
}

// Export stores the row and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, row sheets.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return "", err
	}
	s.rows = append(s.rows, row)
	s.ids[row.ExpenseID] = len(s.rows)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) HasExpense(_ context.Context, expenseID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[expenseID]
	return ok, nil
}

// Rows returns a copy of everything exported so far.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}

// FailNext makes the next Export fail with err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}
