package store

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/mod/semver"
)

// SchemaVersion is written on every transaction and snapshot. Replay accepts
// any entry whose major version matches.
const SchemaVersion = "v1.0.0"

var (
	// ErrCorruptEntry marks a log entry that cannot be replayed.
	ErrCorruptEntry = errors.New("corrupt log entry")

	// ErrDuplicateKey is returned by Append when the learner already has a
	// transaction with the same idempotency key. The existing transaction is
	// returned alongside it.
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)

// Kind is the type of event a transaction records.
type Kind string

const (
	KindScore Kind = "score"
	KindView  Kind = "view"
)

// MasteryTransaction is one immutable entry in the graph mutation log.
type MasteryTransaction struct {
	SchemaVersion  string    `json:"schema_version"`
	ID             string    `json:"id"`
	Sequence       int64     `json:"sequence"`
	Learner        string    `json:"learner"`
	Concept        string    `json:"concept"`
	ContentID      string    `json:"content_id,omitempty"`
	Kind           Kind      `json:"kind"`
	SubmissionID   string    `json:"submission_id,omitempty"`
	Delta          float64   `json:"delta"`
	ResultingScore float64   `json:"resulting_score"`
	Provenance     string    `json:"provenance"`
	Timestamp      time.Time `json:"timestamp"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// Validate checks that the transaction can be replayed. Errors wrap
// ErrCorruptEntry.
func (tx *MasteryTransaction) Validate() error {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: seq %d: %s", ErrCorruptEntry, tx.Sequence, fmt.Sprintf(format, args...))
	}
	if !CompatibleVersion(tx.SchemaVersion) {
		return corrupt("unsupported schema version %q", tx.SchemaVersion)
	}
	if tx.Learner == "" || tx.Concept == "" {
		return corrupt("missing learner or concept")
	}
	if tx.IdempotencyKey == "" {
		return corrupt("missing idempotency key")
	}
	if tx.ResultingScore < 0 || tx.ResultingScore > 1 {
		return corrupt("resulting score %v out of range", tx.ResultingScore)
	}
	switch tx.Kind {
	case KindScore, KindView:
	default:
		return corrupt("unknown kind %q", tx.Kind)
	}
	return nil
}

// CompatibleVersion reports whether v is a valid semver sharing the major
// version of SchemaVersion.
func CompatibleVersion(v string) bool {
	return semver.IsValid(v) && semver.Major(v) == semver.Major(SchemaVersion)
}
