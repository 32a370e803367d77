// Package storage persists users and expenses in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"finwise/internal/core"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository is the credential and expense store. It holds a single
// open connection: SQLite serializes writers anyway and one connection keeps
// busy errors out of the request path.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN builds the connection string for a database file with foreign keys
// and a busy timeout enabled.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts a user. A username or email that is already taken
// yields core.ErrDuplicateUser and leaves the table untouched.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Username: username,
		Email:    email,
		Password: passwordHash,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrDuplicateUser
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrUserNotFound
		}
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return toCoreUser(u), nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrUserNotFound
		}
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return toCoreUser(u), nil
}

// UpdatePassword replaces the stored hash of the user with the given email.
func (r *SQLiteRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	n, err := r.queries.UpdatePasswordByEmail(ctx, passwordHash, email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	n, err := r.queries.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CreateExpense stores a validated expense and returns it with its id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      e.UserID,
		Date:        e.Date.String(),
		Category:    e.Category,
		Amount:      e.Amount.Cents,
		Description: e.Description,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"user_id", row.UserID,
		"category", row.Category,
		"amount_cents", row.Amount,
		"date", row.Date)

	return toCoreExpense(row)
}

// GetExpense returns a single expense with its export bookkeeping.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (ExpenseRecord, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExpenseRecord{}, ErrExpenseNotFound
		}
		return ExpenseRecord{}, fmt.Errorf("get expense by id: %w", err)
	}
	return toRecord(row)
}

// ListExpensesByUser returns a user's expenses, newest first.
func (r *SQLiteRepository) ListExpensesByUser(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toCoreExpense(row)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// GetPendingSyncExpenses returns expenses not yet exported, oldest first.
func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]ExpenseRecord, error) {
	rows, err := r.queries.GetPendingSyncExpenses(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	records := make([]ExpenseRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// MarkSynced marks an expense as successfully exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkExpenseSynced(ctx, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// MarkSyncError marks an expense whose export failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkExpenseSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// RetryFailedSyncs puts every errored expense back in the pending state.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	n, err := r.queries.RetryErroredSyncs(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return n, nil
}

// ErrExpenseNotFound is returned by GetExpense for an unknown id.
var ErrExpenseNotFound = errors.New("expense not found")

// Sync states of an expense.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// ExpenseRecord is an expense together with its export state.
type ExpenseRecord struct {
	Expense    core.Expense
	Version    int64
	SyncStatus string
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.Password,
		CreatedAt:    u.CreatedAt.Time,
	}
}

func toCoreExpense(row Expense) (core.Expense, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d has malformed date %q: %w", row.ID, row.Date, err)
	}
	return core.Expense{
		ID:          row.ID,
		UserID:      row.UserID,
		Date:        date,
		Category:    row.Category,
		Amount:      core.Money{Cents: row.Amount},
		Description: row.Description,
		CreatedAt:   row.CreatedAt.Time,
	}, nil
}

func toRecord(row Expense) (ExpenseRecord, error) {
	e, err := toCoreExpense(row)
	if err != nil {
		return ExpenseRecord{}, err
	}
	return ExpenseRecord{Expense: e, Version: row.Version, SyncStatus: row.SyncStatus}, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
