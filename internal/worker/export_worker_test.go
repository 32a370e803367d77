package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/core"
	"finwise/internal/sheets"
	"finwise/internal/sheets/memory"
	"finwise/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx    context.Context
	repo   *storage.SQLiteRepository
	dest   *memory.Store
	worker *ExportWorker
	user   core.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finwise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "asha", "asha@example.com", "hash")
	require.NoError(t, err)

	dest := memory.New()
	return &fixture{
		ctx:    ctx,
		repo:   repo,
		dest:   dest,
		worker: NewExportWorker(repo, dest, 2),
		user:   user,
	}
}

func (f *fixture) addExpense(t *testing.T, cents int64, category string) core.Expense {
	t.Helper()
	e, err := f.repo.CreateExpense(f.ctx, core.Expense{
		UserID:      f.user.ID,
		Date:        core.NewDate(2024, 3, 1),
		Category:    category,
		Amount:      core.Money{Cents: cents},
		Description: "test " + category,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) status(t *testing.T, id int64) string {
	t.Helper()
	rec, err := f.repo.GetExpense(f.ctx, id)
	require.NoError(t, err)
	return rec.SyncStatus
}

func TestHandleExpenseRecordedExportsOnce(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, 25050, "Food")
	msg := amqp.NewExpenseRecordedMessage(e.ID, f.user.ID, 1)

	require.NoError(t, f.worker.HandleExpenseRecorded(f.ctx, msg))

	rows := f.dest.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, e.ID, rows[0].ExpenseID)
	assert.Equal(t, "asha", rows[0].Username)
	assert.Equal(t, "Food", rows[0].Category)
	assert.Equal(t, int64(25050), rows[0].Amount.Cents)
	assert.Equal(t, storage.SyncSynced, f.status(t, e.ID))

	// Redelivery does not duplicate the row.
	require.NoError(t, f.worker.HandleExpenseRecorded(f.ctx, msg))
	assert.Len(t, f.dest.Rows(), 1)
}

func TestHandleExpenseRecordedSkipsRowAlreadyInDestination(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, 1000, "Bills")

	_, err := f.dest.Export(f.ctx, sheets.NewRow(e, "asha"))
	require.NoError(t, err)

	require.NoError(t, f.worker.HandleExpenseRecorded(f.ctx, amqp.NewExpenseRecordedMessage(e.ID, f.user.ID, 1)))
	assert.Len(t, f.dest.Rows(), 1)
	assert.Equal(t, storage.SyncSynced, f.status(t, e.ID))
}

func TestHandleExpenseRecordedUnknownExpense(t *testing.T) {
	f := newFixture(t)
	err := f.worker.HandleExpenseRecorded(f.ctx, amqp.NewExpenseRecordedMessage(999, f.user.ID, 1))
	assert.NoError(t, err)
	assert.Empty(t, f.dest.Rows())
}

func TestHandleExpenseRecordedStaleVersion(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, 1000, "Food")

	require.NoError(t, f.worker.HandleExpenseRecorded(f.ctx, amqp.NewExpenseRecordedMessage(e.ID, f.user.ID, 0)))
	assert.Empty(t, f.dest.Rows())
	assert.Equal(t, storage.SyncPending, f.status(t, e.ID))
}

func TestHandleExpenseRecordedFailureMarksError(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, 1000, "Food")

	f.dest.FailNext(errors.New("quota exceeded"))
	err := f.worker.HandleExpenseRecorded(f.ctx, amqp.NewExpenseRecordedMessage(e.ID, f.user.ID, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, storage.SyncError, f.status(t, e.ID))
}

func TestProcessPendingExpensesHonoursBatchSize(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.addExpense(t, int64(100*(i+1)), "Other")
	}

	n, err := f.worker.ProcessPendingExpenses(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.worker.ProcessPendingExpenses(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.worker.ProcessPendingExpenses(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.dest.Rows(), 3)
}

func TestStartupSyncCheckRetriesFailedExports(t *testing.T) {
	f := newFixture(t)
	failed := f.addExpense(t, 500, "Transport")
	pending := f.addExpense(t, 700, "Food")
	require.NoError(t, f.repo.MarkSyncError(f.ctx, failed.ID))

	require.NoError(t, f.worker.StartupSyncCheck(f.ctx))

	assert.Len(t, f.dest.Rows(), 2)
	assert.Equal(t, storage.SyncSynced, f.status(t, failed.ID))
	assert.Equal(t, storage.SyncSynced, f.status(t, pending.ID))
}

func TestRunPeriodicStopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, 100, "Food")

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() { done <- f.worker.RunPeriodic(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return len(f.dest.Rows()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
}
