// Package worker exports recorded expenses to the spreadsheet destination.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/core"
	"finwise/internal/log"
	"finwise/internal/sheets"
	"finwise/internal/storage"
)

// Store is the part of the expense store the worker reads and updates.
type Store interface {
	GetExpense(ctx context.Context, id int64) (storage.ExpenseRecord, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetPendingSyncExpenses(ctx context.Context, limit int) ([]storage.ExpenseRecord, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
	RetryFailedSyncs(ctx context.Context) (int64, error)
}

// ExportWorker copies expenses into the export sheet, driven by AMQP events
// and by a periodic sweep of pending rows.
type ExportWorker struct {
	store     Store
	exporter  sheets.Exporter
	batchSize int
}

func NewExportWorker(store Store, exporter sheets.Exporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

func (w *ExportWorker) logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentWorker)
}

// HandleExpenseRecorded exports the expense named by msg. Events for unknown
// expenses are dropped; stale or already-exported ones are no-ops.
func (w *ExportWorker) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	logger := w.logger(ctx)
	logger.InfoContext(ctx, "Processing expense recorded event",
		log.FieldExpenseID, msg.ID,
		log.FieldUserID, msg.UserID,
		"version", msg.Version)

	record, err := w.store.GetExpense(ctx, msg.ID)
	if errors.Is(err, storage.ErrExpenseNotFound) {
		logger.WarnContext(ctx, "Expense from event not found, dropping", log.FieldExpenseID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if record.SyncStatus == storage.SyncSynced {
		logger.DebugContext(ctx, "Expense already exported", log.FieldExpenseID, msg.ID)
		return nil
	}
	if msg.Version < record.Version {
		logger.InfoContext(ctx, "Skipping stale event",
			log.FieldExpenseID, msg.ID,
			"event_version", msg.Version,
			"stored_version", record.Version)
		return nil
	}

	return w.export(ctx, record.Expense)
}

// ProcessPendingExpenses exports one batch of pending expenses and returns
// how many were exported. It covers events lost while the worker was down.
func (w *ExportWorker) ProcessPendingExpenses(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck requeues failed exports and works through a larger
// pending batch before the consumer starts.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	logger := w.logger(ctx)

	requeued, err := w.store.RetryFailedSyncs(ctx)
	if err != nil {
		return fmt.Errorf("requeue failed exports: %w", err)
	}
	if requeued > 0 {
		logger.InfoContext(ctx, "Requeued failed exports", "count", requeued)
	}

	exported, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}
	logger.InfoContext(ctx, "Startup export check completed", "exported", exported)
	return nil
}

// RunPeriodic sweeps pending expenses every interval until ctx is done.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPendingExpenses(ctx); err != nil {
				w.logger(ctx).ErrorContext(ctx, "Periodic export sweep failed", log.FieldError, err)
			}
		}
	}
}

func (w *ExportWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.GetPendingSyncExpenses(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	logger := w.logger(ctx)
	logger.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	exported := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := w.export(ctx, rec.Expense); err != nil {
			logger.ErrorContext(ctx, "Failed to export pending expense",
				log.FieldExpenseID, rec.Expense.ID,
				log.FieldError, err)
			continue
		}
		exported++
	}
	return exported, nil
}

func (w *ExportWorker) export(ctx context.Context, e core.Expense) error {
	logger := w.logger(ctx)

	already, err := w.exporter.HasExpense(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("check export destination: %w", err)
	}
	if already {
		logger.InfoContext(ctx, "Expense already present in export, marking synced", log.FieldExpenseID, e.ID)
		return w.store.MarkSynced(ctx, e.ID)
	}

	username := "user-" + strconv.FormatInt(e.UserID, 10)
	if u, err := w.store.GetUserByID(ctx, e.UserID); err == nil {
		username = u.Username
	} else {
		logger.WarnContext(ctx, "Owner lookup failed, exporting with user id",
			log.FieldExpenseID, e.ID,
			log.FieldUserID, e.UserID,
			log.FieldError, err)
	}

	ref, err := w.exporter.Export(ctx, sheets.NewRow(e, username))
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, e.ID); markErr != nil {
			logger.ErrorContext(ctx, "Failed to mark export error", log.FieldExpenseID, e.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("export expense %d: %w", e.ID, err)
	}

	// The row exists now; a failed status update is retried by the sweep,
	// which finds the id in the destination.
	if err := w.store.MarkSynced(ctx, e.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to mark expense synced", log.FieldExpenseID, e.ID, log.FieldError, err)
	}

	logger.InfoContext(ctx, "Expense exported",
		log.FieldExpenseID, e.ID,
		log.FieldSheetsRef, ref,
		log.FieldCategory, e.Category,
		log.FieldAmountCents, e.Amount.Cents,
		log.FieldOperation, log.OpExport)
	return nil
}
