package mastery

import (
	"fmt"

	"github.com/abhisek/jeseci/internal/store"
)

// Snapshot exports the materialized view for persistence.
func (s *Service) Snapshot() store.SnapshotData {
	data := store.SnapshotData{
		SchemaVersion: store.SchemaVersion,
		Learners:      make(map[string]map[string]store.NodeData),
		Applied:       make(map[string]map[string]store.AppliedData),
	}
	s.learners.Range(func(k, v any) bool {
		ls := v.(*learnerState)
		ls.mu.RLock()
		defer ls.mu.RUnlock()

		nodes := make(map[string]store.NodeData, len(ls.nodes))
		for id, r := range ls.nodes {
			if r.attempts == 0 && r.score == 0 && len(r.content) == 0 {
				continue
			}
			nd := store.NodeData{Score: r.score, Attempts: r.attempts, UpdatedAt: r.updated}
			if len(r.content) > 0 {
				nd.ContentAttempts = make(map[string]int, len(r.content))
				for c, n := range r.content {
					nd.ContentAttempts[c] = n
				}
			}
			nodes[id] = nd
		}
		if len(nodes) > 0 {
			data.Learners[k.(string)] = nodes
		}
		if len(ls.applied) > 0 {
			keys := make(map[string]store.AppliedData, len(ls.applied))
			for key, res := range ls.applied {
				keys[key] = store.AppliedData{Score: res.Score, Status: string(res.Status)}
			}
			data.Applied[k.(string)] = keys
		}
		return true
	})
	return data
}

// LoadSnapshot replaces learner state with the snapshot's contents,
// including the applied idempotency keys. Concepts no longer in the catalog
// are rejected.
func (s *Service) LoadSnapshot(data store.SnapshotData) error {
	if data.SchemaVersion != "" && !store.CompatibleVersion(data.SchemaVersion) {
		return fmt.Errorf("%w: snapshot schema version %q", store.ErrCorruptEntry, data.SchemaVersion)
	}
	g := s.graphs.Graph()
	for learner, nodes := range data.Learners {
		ls := s.learner(learner)
		ls.mu.Lock()
		for id, nd := range nodes {
			if !g.Has(id) {
				ls.mu.Unlock()
				return fmt.Errorf("snapshot learner %q: %w: %q", learner, ErrUnknownConcept, id)
			}
			if nd.Score < 0 || nd.Score > 1 {
				ls.mu.Unlock()
				return fmt.Errorf("%w: snapshot learner %q concept %q score %v", store.ErrCorruptEntry, learner, id, nd.Score)
			}
			r := &record{score: nd.Score, attempts: nd.Attempts, updated: nd.UpdatedAt, content: make(map[string]int)}
			for c, n := range nd.ContentAttempts {
				r.content[c] = n
			}
			ls.nodes[id] = r
		}
		ls.mu.Unlock()
	}
	for learner, keys := range data.Applied {
		ls := s.learner(learner)
		ls.mu.Lock()
		for key, ad := range keys {
			ls.applied[key] = Result{Score: ad.Score, Status: Status(ad.Status)}
		}
		ls.mu.Unlock()
	}
	return nil
}

// Restore replays transactions in order. Each entry's resulting score is
// applied verbatim. A corrupt entry stops the replay with an error wrapping
// store.ErrCorruptEntry.
func (s *Service) Restore(txs []store.MasteryTransaction) error {
	for i := range txs {
		tx := &txs[i]
		if err := tx.Validate(); err != nil {
			return err
		}
		score := tx.ResultingScore
		_, err := s.Apply(Mutation{
			Learner:   tx.Learner,
			ConceptID: tx.Concept,
			ContentID: tx.ContentID,
			Kind:      tx.Kind,
			Delta:     tx.Delta,
			Key:       tx.IdempotencyKey,
			At:        tx.Timestamp,
			Score:     &score,
		})
		if err != nil {
			return fmt.Errorf("replay seq %d: %w", tx.Sequence, err)
		}
	}
	return nil
}
