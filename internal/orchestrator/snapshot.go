package orchestrator

import (
	"context"
	"fmt"

	"github.com/abhisek/jeseci/internal/store"
)

// Restore rebuilds the mastery view: it loads the latest snapshot, if any,
// then replays every logged transaction after it. It returns the number of
// transactions replayed.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	var after int64
	if e.deps.Snapshots != nil {
		snap, err := e.deps.Snapshots.Latest(ctx)
		if err != nil {
			return 0, fmt.Errorf("load latest snapshot: %w", err)
		}
		if snap != nil {
			if err := e.deps.Nodes.LoadSnapshot(snap.Data); err != nil {
				return 0, fmt.Errorf("load snapshot %d: %w", snap.Sequence, err)
			}
			after = snap.Sequence
			e.log.Info("loaded snapshot", "sequence", snap.Sequence, "learners", len(snap.Data.Learners))
		}
	}

	txs, err := e.deps.Log.Since(ctx, after)
	if err != nil {
		return 0, fmt.Errorf("read log after %d: %w", after, err)
	}
	if err := e.deps.Nodes.Restore(txs); err != nil {
		return 0, fmt.Errorf("replay log: %w", err)
	}
	last := after
	if n := len(txs); n > 0 {
		last = txs[n-1].Sequence
	}
	e.lastSeq.Store(last)
	e.log.Info("restored mastery view", "replayed", len(txs), "sequence", last)
	return len(txs), nil
}

// Snapshot saves the current mastery view with the log sequence it covers
// and prunes old snapshots.
func (e *Engine) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	if e.deps.Snapshots == nil {
		return nil, fmt.Errorf("no snapshot repository configured")
	}
	e.commitMu.Lock()
	data := e.deps.Nodes.Snapshot()
	seq := e.lastSeq.Load()
	e.commitMu.Unlock()

	snap := &store.Snapshot{Sequence: seq, Timestamp: e.now().UTC(), Data: data}
	if err := e.deps.Snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if e.cfg.SnapshotKeep > 0 {
		if err := e.deps.Snapshots.Prune(ctx, e.cfg.SnapshotKeep); err != nil {
			return nil, fmt.Errorf("prune snapshots: %w", err)
		}
	}
	e.log.Debug("saved snapshot", "sequence", seq, "learners", len(data.Learners))
	return snap, nil
}

// afterCommit takes a snapshot in the background every SnapshotEvery
// commits. Overlapping snapshots are skipped.
func (e *Engine) afterCommit() {
	n := e.commits.Add(1)
	if e.deps.Snapshots == nil || e.cfg.SnapshotEvery <= 0 || n%int64(e.cfg.SnapshotEvery) != 0 {
		return
	}
	if !e.snapshotting.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.snapshotting.Store(false)
		if _, err := e.Snapshot(e.ctx); err != nil {
			e.log.Warn("periodic snapshot failed", "error", err)
		}
	}()
}
