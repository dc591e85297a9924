package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
    id           UUID PRIMARY KEY,
    account_id   TEXT NOT NULL,
    kind         TEXT NOT NULL,
    destination  TEXT NOT NULL,
    amount_sats  BIGINT NOT NULL,
    fee_sats     BIGINT,
    memo         TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    messages     TEXT[] NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS submissions_account_created_idx ON submissions (account_id, created_at DESC);`

// PostgresJournal persists submissions in PostgreSQL.
type PostgresJournal struct {
	db *pgxpool.Pool
}

// NewPostgresJournal constructs a Postgres-backed journal.
func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// EnsureSchema creates the submissions table when missing.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, schema)
	return err
}

// Begin records a submission about to be dispatched.
func (j *PostgresJournal) Begin(ctx context.Context, e Entry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = StatusSubmitting
	}
	if e.Messages == nil {
		e.Messages = []string{}
	}
	cmd, err := j.db.Exec(ctx, `INSERT INTO submissions
        (id, account_id, kind, destination, amount_sats, fee_sats, memo, status, reason, messages, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO NOTHING`,
		id, e.AccountID, e.Kind, e.Destination, e.AmountSats, e.FeeSats, e.Memo, e.Status, e.Reason, e.Messages, e.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateSubmission
	}
	return nil
}

// Complete stores the outcome of a submission. Completing twice keeps the first outcome.
func (j *PostgresJournal) Complete(ctx context.Context, id string, c Completion) error {
	subID, err := uuid.Parse(id)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var done bool
	if err := tx.QueryRow(ctx, `SELECT completed_at IS NOT NULL FROM submissions WHERE id = $1 FOR UPDATE`, subID).Scan(&done); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if done {
		return nil
	}

	messages := c.Messages
	if messages == nil {
		messages = []string{}
	}
	if _, err := tx.Exec(ctx, `UPDATE submissions SET status = $1, reason = $2, messages = $3, completed_at = $4 WHERE id = $5`,
		c.Status, c.Reason, messages, c.CompletedAt.UTC(), subID); err != nil {
		return fmt.Errorf("complete submission %s: %w", id, err)
	}
	return tx.Commit(ctx)
}

const selectColumns = `SELECT id, account_id, kind, destination, amount_sats, fee_sats, memo, status, reason, messages, created_at, completed_at FROM submissions`

// Get fetches one submission.
func (j *PostgresJournal) Get(ctx context.Context, id string) (Entry, error) {
	subID, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, ErrNotFound
	}
	e, err := scanEntry(j.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, subID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns the account's most recent submissions first.
func (j *PostgresJournal) List(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(ctx, selectColumns+` WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e  Entry
		id uuid.UUID
	)
	if err := row.Scan(&id, &e.AccountID, &e.Kind, &e.Destination, &e.AmountSats, &e.FeeSats, &e.Memo,
		&e.Status, &e.Reason, &e.Messages, &e.CreatedAt, &e.CompletedAt); err != nil {
		return Entry{}, err
	}
	e.ID = id.String()
	e.CreatedAt = e.CreatedAt.UTC()
	if e.CompletedAt != nil {
		t := e.CompletedAt.UTC()
		e.CompletedAt = &t
	}
	return e, nil
}
