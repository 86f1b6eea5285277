package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(learner, concept, key string, score float64) MasteryTransaction {
	return MasteryTransaction{
		SchemaVersion:  SchemaVersion,
		ID:             learner + "-" + key,
		Learner:        learner,
		Concept:        concept,
		Kind:           KindScore,
		Delta:          score,
		ResultingScore: score,
		Provenance:     "deterministic",
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
	}
}

func logBackends(t *testing.T) map[string]Log {
	t.Helper()
	return map[string]Log{
		"memory": NewMemoryLog(),
		"sqlite": openTestStore(t).Log(),
	}
}

func TestLogAppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	for name, l := range logBackends(t) {
		t.Run(name, func(t *testing.T) {
			a, err := l.Append(ctx, newTx("ada", "loops", "k1", 0.3))
			require.NoError(t, err)
			b, err := l.Append(ctx, newTx("ada", "loops", "k2", 0.5))
			require.NoError(t, err)
			assert.Greater(t, b.Sequence, a.Sequence)

			all, err := l.Since(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "k1", all[0].IdempotencyKey)
			assert.Equal(t, "k2", all[1].IdempotencyKey)
			assert.True(t, all[0].Timestamp.Equal(a.Timestamp))

			after, err := l.Since(ctx, a.Sequence)
			require.NoError(t, err)
			require.Len(t, after, 1)
			assert.Equal(t, b.Sequence, after[0].Sequence)
		})
	}
}

func TestLogDuplicateKeyReturnsExisting(t *testing.T) {
	ctx := context.Background()
	for name, l := range logBackends(t) {
		t.Run(name, func(t *testing.T) {
			first, err := l.Append(ctx, newTx("ada", "loops", "k1", 0.3))
			require.NoError(t, err)

			dup := newTx("ada", "loops", "k1", 0.9)
			dup.ID = "other"
			got, err := l.Append(ctx, dup)
			assert.ErrorIs(t, err, ErrDuplicateKey)
			assert.Equal(t, first.Sequence, got.Sequence)
			assert.Equal(t, 0.3, got.ResultingScore)

			// Keys are scoped per learner.
			other := newTx("grace", "loops", "k1", 0.2)
			_, err = l.Append(ctx, other)
			require.NoError(t, err)

			all, err := l.Since(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestLogLookupAndForLearner(t *testing.T) {
	ctx := context.Background()
	for name, l := range logBackends(t) {
		t.Run(name, func(t *testing.T) {
			missing, err := l.Lookup(ctx, "ada", "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			_, err = l.Append(ctx, newTx("ada", "loops", "k1", 0.3))
			require.NoError(t, err)
			_, err = l.Append(ctx, newTx("grace", "vars", "k1", 0.4))
			require.NoError(t, err)
			_, err = l.Append(ctx, newTx("ada", "vars", "k2", 0.6))
			require.NoError(t, err)

			found, err := l.Lookup(ctx, "grace", "k1")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "vars", found.Concept)

			ada, err := l.ForLearner(ctx, "ada")
			require.NoError(t, err)
			require.Len(t, ada, 2)
			assert.Equal(t, "loops", ada[0].Concept)
			assert.Equal(t, "vars", ada[1].Concept)
		})
	}
}

func TestLogConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	for name, l := range logBackends(t) {
		t.Run(name, func(t *testing.T) {
			const learners, perLearner = 4, 10
			var wg sync.WaitGroup
			for i := 0; i < learners; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					learner := fmt.Sprintf("learner-%d", i)
					for j := 0; j < perLearner; j++ {
						_, err := l.Append(ctx, newTx(learner, "loops", fmt.Sprintf("k%d", j), 0.1))
						assert.NoError(t, err)
					}
				}(i)
			}
			wg.Wait()

			all, err := l.Since(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, learners*perLearner)
			for i := 1; i < len(all); i++ {
				assert.Greater(t, all[i].Sequence, all[i-1].Sequence)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tx *MasteryTransaction)
		wantErr bool
	}{
		{"valid", func(*MasteryTransaction) {}, false},
		{"minor version bump", func(tx *MasteryTransaction) { tx.SchemaVersion = "v1.4.0" }, false},
		{"major version bump", func(tx *MasteryTransaction) { tx.SchemaVersion = "v2.0.0" }, true},
		{"invalid version", func(tx *MasteryTransaction) { tx.SchemaVersion = "one" }, true},
		{"score above one", func(tx *MasteryTransaction) { tx.ResultingScore = 1.2 }, true},
		{"negative score", func(tx *MasteryTransaction) { tx.ResultingScore = -0.1 }, true},
		{"missing key", func(tx *MasteryTransaction) { tx.IdempotencyKey = "" }, true},
		{"missing learner", func(tx *MasteryTransaction) { tx.Learner = "" }, true},
		{"unknown kind", func(tx *MasteryTransaction) { tx.Kind = "grade" }, true},
		{"view kind", func(tx *MasteryTransaction) { tx.Kind = KindView }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTx("ada", "loops", "k1", 0.5)
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorruptEntry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemorySnapshotRepoPrune(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepo()
	for i := 1; i <= 4; i++ {
		require.NoError(t, repo.Save(ctx, &Snapshot{Sequence: int64(i)}))
	}
	require.NoError(t, repo.Prune(ctx, 2))

	snap, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snap.Sequence)
	assert.Len(t, repo.snaps, 2)
}

func TestOpenBackendUnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), "cassandra", "")
	assert.Error(t, err)
}
