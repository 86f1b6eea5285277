package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryLog is a Log held in process memory. It is used by tests and by the
// "memory" store driver.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []MasteryTransaction
	byKey   map[string]int // learner + "\x00" + key -> index into entries
	next    int64
}

// NewMemoryLog returns an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{byKey: make(map[string]int), next: 1}
}

func memKey(learner, key string) string { return learner + "\x00" + key }

// Append implements Log.
func (m *MemoryLog) Append(_ context.Context, tx MasteryTransaction) (MasteryTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(tx.Learner, tx.IdempotencyKey)
	if i, ok := m.byKey[k]; ok {
		return m.entries[i], ErrDuplicateKey
	}
	tx.Sequence = m.next
	m.next++
	m.byKey[k] = len(m.entries)
	m.entries = append(m.entries, tx)
	return tx, nil
}

// Lookup implements Log.
func (m *MemoryLog) Lookup(_ context.Context, learner, key string) (*MasteryTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byKey[memKey(learner, key)]
	if !ok {
		return nil, nil
	}
	tx := m.entries[i]
	return &tx, nil
}

// Since implements Log.
func (m *MemoryLog) Since(_ context.Context, after int64) ([]MasteryTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Sequence > after })
	return slices.Clone(m.entries[i:]), nil
}

// ForLearner implements Log.
func (m *MemoryLog) ForLearner(_ context.Context, learner string) ([]MasteryTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []MasteryTransaction
	for _, tx := range m.entries {
		if tx.Learner == learner {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Len returns the number of entries.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Log.
func (m *MemoryLog) Close() error { return nil }

// MemorySnapshotRepo is a SnapshotRepo held in process memory.
type MemorySnapshotRepo struct {
	mu    sync.Mutex
	snaps []Snapshot
	next  int
}

// NewMemorySnapshotRepo returns an empty snapshot repo.
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{next: 1}
}

// Save implements SnapshotRepo.
func (r *MemorySnapshotRepo) Save(_ context.Context, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := *snap
	s.ID = r.next
	r.next++
	r.snaps = append(r.snaps, s)
	snap.ID = s.ID
	return nil
}

// Latest implements SnapshotRepo.
func (r *MemorySnapshotRepo) Latest(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snaps) == 0 {
		return nil, nil
	}
	s := r.snaps[len(r.snaps)-1]
	return &s, nil
}

// Prune implements SnapshotRepo.
func (r *MemorySnapshotRepo) Prune(_ context.Context, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snaps) > keep {
		r.snaps = slices.Clone(r.snaps[len(r.snaps)-keep:])
	}
	return nil
}
