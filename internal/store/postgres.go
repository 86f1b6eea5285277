package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresLog implements Log using PostgreSQL. Sequence numbers come from a
// BIGSERIAL column, so they are monotonic but may have gaps.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the log table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	l := NewPostgresLog(pool)
	if err := l.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLog wraps an existing pool.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// Migrate creates the log table and indexes.
func (l *PostgresLog) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS mastery_transactions (
			sequence BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			schema_version TEXT NOT NULL,
			learner TEXT NOT NULL,
			concept TEXT NOT NULL,
			content_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			submission_id TEXT NOT NULL DEFAULT '',
			delta DOUBLE PRECISION NOT NULL,
			resulting_score DOUBLE PRECISION NOT NULL,
			provenance TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			idempotency_key TEXT NOT NULL,
			UNIQUE (learner, idempotency_key)
		);
		CREATE INDEX IF NOT EXISTS mastery_transactions_learner ON mastery_transactions (learner, sequence);
	`
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrate postgres log: %w", err)
	}
	return nil
}

// Append implements Log.
func (l *PostgresLog) Append(ctx context.Context, tx MasteryTransaction) (MasteryTransaction, error) {
	query := `
		INSERT INTO mastery_transactions (id, schema_version, learner, concept, content_id, kind,
			submission_id, delta, resulting_score, provenance, timestamp, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (learner, idempotency_key) DO NOTHING
		RETURNING sequence
	`
	err := l.pool.QueryRow(ctx, query,
		tx.ID, tx.SchemaVersion, tx.Learner, tx.Concept, tx.ContentID, string(tx.Kind),
		tx.SubmissionID, tx.Delta, tx.ResultingScore, tx.Provenance, tx.Timestamp, tx.IdempotencyKey,
	).Scan(&tx.Sequence)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return tx, nil
	case errors.Is(err, pgx.ErrNoRows), errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		existing, lookupErr := l.Lookup(ctx, tx.Learner, tx.IdempotencyKey)
		if lookupErr != nil {
			return MasteryTransaction{}, lookupErr
		}
		if existing == nil {
			return MasteryTransaction{}, fmt.Errorf("append transaction: %w", err)
		}
		return *existing, ErrDuplicateKey
	default:
		return MasteryTransaction{}, fmt.Errorf("append transaction: %w", err)
	}
}

const pgSelect = `
	SELECT sequence, id, schema_version, learner, concept, content_id, kind,
		submission_id, delta, resulting_score, provenance, timestamp, idempotency_key
	FROM mastery_transactions
`

// Lookup implements Log.
func (l *PostgresLog) Lookup(ctx context.Context, learner, key string) (*MasteryTransaction, error) {
	txs, err := l.query(ctx, pgSelect+`WHERE learner = $1 AND idempotency_key = $2`, learner, key)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// Since implements Log.
func (l *PostgresLog) Since(ctx context.Context, after int64) ([]MasteryTransaction, error) {
	return l.query(ctx, pgSelect+`WHERE sequence > $1 ORDER BY sequence`, after)
}

// ForLearner implements Log.
func (l *PostgresLog) ForLearner(ctx context.Context, learner string) ([]MasteryTransaction, error) {
	return l.query(ctx, pgSelect+`WHERE learner = $1 ORDER BY sequence`, learner)
}

// Close releases the pool.
func (l *PostgresLog) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLog) query(ctx context.Context, query string, args ...any) ([]MasteryTransaction, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []MasteryTransaction
	for rows.Next() {
		var (
			tx   MasteryTransaction
			kind string
		)
		if err := rows.Scan(&tx.Sequence, &tx.ID, &tx.SchemaVersion, &tx.Learner, &tx.Concept,
			&tx.ContentID, &kind, &tx.SubmissionID, &tx.Delta, &tx.ResultingScore,
			&tx.Provenance, &tx.Timestamp, &tx.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = Kind(kind)
		out = append(out, tx)
	}
	return out, rows.Err()
}
