package store

import (
	"context"
	"time"
)

// Log is the append-only graph mutation log. Implementations must be safe
// for concurrent appends across learners.
type Log interface {
	// Append assigns the next sequence number and persists tx. If the
	// learner already has an entry with the same idempotency key, the stored
	// entry is returned with ErrDuplicateKey and nothing is written.
	Append(ctx context.Context, tx MasteryTransaction) (MasteryTransaction, error)

	// Lookup returns the learner's entry for key, or nil if absent.
	Lookup(ctx context.Context, learner, key string) (*MasteryTransaction, error)

	// Since returns entries with sequence > after in sequence order.
	Since(ctx context.Context, after int64) ([]MasteryTransaction, error)

	// ForLearner returns the learner's entries in sequence order.
	ForLearner(ctx context.Context, learner string) ([]MasteryTransaction, error)

	Close() error
}

// NodeData is the persisted form of one learner mastery node.
type NodeData struct {
	Score           float64        `json:"score"`
	Attempts        int            `json:"attempts"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ContentAttempts map[string]int `json:"content_attempts,omitempty"`
}

// SnapshotData captures the materialized mastery view at a log sequence.
type SnapshotData struct {
	SchemaVersion string                         `json:"schema_version"`
	Learners      map[string]map[string]NodeData `json:"learners"`
	// Applied holds, per learner, the result of every idempotency key
	// folded into the view.
	Applied map[string]map[string]AppliedData `json:"applied,omitempty"`
}

// AppliedData is the recorded result of one applied idempotency key.
type AppliedData struct {
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

// Snapshot is a point-in-time capture covering every transaction with
// sequence <= Sequence.
type Snapshot struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	Data      SnapshotData
}

// SnapshotRepo manages mastery snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot, or nil if none exist.
	Latest(ctx context.Context) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots.
	Prune(ctx context.Context, keep int) error
}

// LLMRequestEventData captures the data for a single generator request.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LLMUsage aggregates recorded generator requests.
type LLMUsage struct {
	Requests     int
	Failures     int
	InputTokens  int
	OutputTokens int
}

// EventRepo records generator requests for audit.
type EventRepo interface {
	// AppendLLMRequest records a generator API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// LLMUsage summarizes every recorded request.
	LLMUsage(ctx context.Context) (LLMUsage, error)
}
