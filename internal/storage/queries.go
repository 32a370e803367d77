package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// Timestamp scans SQLite timestamps whether the driver hands back a
// time.Time or the raw text written by CURRENT_TIMESTAMP.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case time.Time:
		*t = Timestamp{Time: v, Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}

// User is a row of the users table.
type User struct {
	ID        int64
	Username  string
	Email     string
	Password  string
	CreatedAt Timestamp
}

// Expense is a row of the expenses table.
type Expense struct {
	ID          int64
	UserID      int64
	Date        string
	Category    string
	Amount      int64
	Description string
	CreatedAt   Timestamp
	Version     int64
	SyncStatus  string
	SyncedAt    Timestamp
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (username, email, password)
VALUES (?, ?, ?)
RETURNING id, username, email, password, created_at`

type CreateUserParams struct {
	Username string
	Email    string
	Password string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Username, arg.Email, arg.Password)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.Password, &i.CreatedAt)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, username, email, password, created_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.Password, &i.CreatedAt)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, username, email, password, created_at FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.Password, &i.CreatedAt)
	return i, err
}

const updatePasswordByEmail = `-- name: UpdatePasswordByEmail :execrows
UPDATE users SET password = ? WHERE email = ?`

func (q *Queries) UpdatePasswordByEmail(ctx context.Context, password, email string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePasswordByEmail, password, email)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countUsers = `-- name: CountUsers :one
SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUsers)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const expenseColumns = `id, user_id, date, category, amount, description, created_at, version, sync_status, synced_at`

func scanExpense(s interface{ Scan(...interface{}) error }) (Expense, error) {
	var i Expense
	err := s.Scan(
		&i.ID,
		&i.UserID,
		&i.Date,
		&i.Category,
		&i.Amount,
		&i.Description,
		&i.CreatedAt,
		&i.Version,
		&i.SyncStatus,
		&i.SyncedAt,
	)
	return i, err
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (user_id, date, category, amount, description)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	UserID      int64
	Date        string
	Category    string
	Amount      int64
	Description string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID,
		arg.Date,
		arg.Category,
		arg.Amount,
		arg.Description,
	)
	return scanExpense(row)
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpensesByUser = `-- name: ListExpensesByUser :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE user_id = ?
ORDER BY date DESC, id DESC`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID int64) ([]Expense, error) {
	return q.listExpenses(ctx, listExpensesByUser, userID)
}

const getPendingSyncExpenses = `-- name: GetPendingSyncExpenses :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE sync_status = 'pending'
ORDER BY id
LIMIT ?`

func (q *Queries) GetPendingSyncExpenses(ctx context.Context, limit int64) ([]Expense, error) {
	return q.listExpenses(ctx, getPendingSyncExpenses, limit)
}

func (q *Queries) listExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		i, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markExpenseSynced = `-- name: MarkExpenseSynced :exec
UPDATE expenses SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) MarkExpenseSynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markExpenseSynced, id)
	return err
}

const markExpenseSyncError = `-- name: MarkExpenseSyncError :exec
UPDATE expenses SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkExpenseSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markExpenseSyncError, id)
	return err
}

const retryErroredSyncs = `-- name: RetryErroredSyncs :execrows
UPDATE expenses SET sync_status = 'pending' WHERE sync_status = 'error'`

func (q *Queries) RetryErroredSyncs(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, retryErroredSyncs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
