package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const txTable = "mastery_transactions"

var txColumns = []string{
	"sequence", "id", "schema_version", "learner", "concept", "content_id", "kind",
	"submission_id", "delta", "resulting_score", "provenance", "timestamp", "idempotency_key",
}

// sqliteLog implements Log on the mastery_transactions table. Sequence
// numbers come from the shared global sequence counter.
type sqliteLog struct {
	mu  sync.Mutex
	db  *sql.DB
	seq *sequenceCounter
}

func (l *sqliteLog) Append(ctx context.Context, tx MasteryTransaction) (MasteryTransaction, error) {
	// Sequence assignment and insert happen under one lock so entries land in
	// sequence order.
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, err := l.Lookup(ctx, tx.Learner, tx.IdempotencyKey); err != nil {
		return MasteryTransaction{}, err
	} else if existing != nil {
		return *existing, ErrDuplicateKey
	}

	seqNum, err := l.seq.Next(ctx)
	if err != nil {
		return MasteryTransaction{}, fmt.Errorf("next sequence: %w", err)
	}
	tx.Sequence = seqNum

	query, args := builder().Insert(txTable).
		Columns(txColumns...).
		Values(tx.Sequence, tx.ID, tx.SchemaVersion, tx.Learner, tx.Concept, tx.ContentID, string(tx.Kind),
			tx.SubmissionID, tx.Delta, tx.ResultingScore, tx.Provenance,
			tx.Timestamp.UTC().Format(time.RFC3339Nano), tx.IdempotencyKey).
		OnConflict(entsql.ConflictColumns("learner", "idempotency_key"), entsql.DoNothing()).
		Query()
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return MasteryTransaction{}, fmt.Errorf("append transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Another process won the race on the unique key.
		existing, err := l.Lookup(ctx, tx.Learner, tx.IdempotencyKey)
		if err != nil {
			return MasteryTransaction{}, err
		}
		if existing != nil {
			return *existing, ErrDuplicateKey
		}
	}
	return tx, nil
}

func (l *sqliteLog) Lookup(ctx context.Context, learner, key string) (*MasteryTransaction, error) {
	query, args := builder().Select(txColumns...).
		From(entsql.Table(txTable)).
		Where(entsql.And(entsql.EQ("learner", learner), entsql.EQ("idempotency_key", key))).
		Limit(1).
		Query()
	txs, err := l.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (l *sqliteLog) Since(ctx context.Context, after int64) ([]MasteryTransaction, error) {
	query, args := builder().Select(txColumns...).
		From(entsql.Table(txTable)).
		Where(entsql.GT("sequence", after)).
		OrderBy("sequence").
		Query()
	return l.query(ctx, query, args)
}

func (l *sqliteLog) ForLearner(ctx context.Context, learner string) ([]MasteryTransaction, error) {
	query, args := builder().Select(txColumns...).
		From(entsql.Table(txTable)).
		Where(entsql.EQ("learner", learner)).
		OrderBy("sequence").
		Query()
	return l.query(ctx, query, args)
}

// Close is a no-op; the owning Store closes the database.
func (l *sqliteLog) Close() error { return nil }

func (l *sqliteLog) query(ctx context.Context, query string, args []any) ([]MasteryTransaction, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []MasteryTransaction
	for rows.Next() {
		var (
			tx   MasteryTransaction
			kind string
			ts   string
		)
		if err := rows.Scan(&tx.Sequence, &tx.ID, &tx.SchemaVersion, &tx.Learner, &tx.Concept,
			&tx.ContentID, &kind, &tx.SubmissionID, &tx.Delta, &tx.ResultingScore,
			&tx.Provenance, &ts, &tx.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = Kind(kind)
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: seq %d: bad timestamp %q", ErrCorruptEntry, tx.Sequence, ts)
		}
		tx.Timestamp = t
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
