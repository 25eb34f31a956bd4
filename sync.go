package scorebook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// syncBatchSize bounds how many change-log entries one pass reads.
const syncBatchSize = 500

// Syncer replicates verified changes from a source store to a downstream
// target store. The target re-derives its own metadata and change log by
// replaying changes through the same upsert path the source used, rather
// than mirroring bytes, so a half-finished sync is always resumable: the
// per-entity cursor lives in the target and only advances past committed
// entries, and re-applying an already-committed entry is a no-op.
type Syncer struct {
	source       *Store
	target       *Store
	debug        *DebugLogger
	sourceID     string
	defaultScope []string

	mu       sync.Mutex
	inflight map[string]bool
}

// NewSyncer creates a syncer between two stores.
func NewSyncer(source, target *Store) *Syncer {
	return &Syncer{
		source:   source,
		target:   target,
		inflight: make(map[string]bool),
	}
}

// SetDebugLogger attaches a debug logger for sync tracing.
func (s *Syncer) SetDebugLogger(l *DebugLogger) {
	s.debug = l
}

// SetSourceID sets the collector identity stamped into sync audit
// records. Defaults to the source store's path.
func (s *Syncer) SetSourceID(id string) {
	s.sourceID = id
}

// SetDefaultScope sets the entities replicated when Sync is called with
// an empty scope. Defaults to every entity registered on the source.
func (s *Syncer) SetDefaultScope(scope []string) {
	s.defaultScope = scope
}

// Sync replicates all changes for the scoped entities that the target
// has not yet committed, then appends the outcome to the source's sync
// history. Per-record failures are counted and do not abort the batch;
// records already applied stay applied. The final status is FAILED if
// any record failed. A scope with a sync already in flight fails fast
// with ErrSyncInFlight; two concurrent syncs for the same entity would
// otherwise race on the cursor.
func (s *Syncer) Sync(ctx context.Context, scope []string) (*SyncRecord, error) {
	if len(scope) == 0 {
		scope = s.defaultScope
	}
	if len(scope) == 0 {
		scope = s.source.Schemas().Entities()
	}

	if err := s.acquire(scope); err != nil {
		return nil, err
	}
	defer s.release(scope)

	start := time.Now().UTC()
	rec := &SyncRecord{
		ID:        ulid.Make().String(),
		Source:    s.sourceLabel(),
		Target:    s.target.Path(),
		Direction: "source_to_target",
		Scope:     scope,
		StartedAt: start,
	}

	var firstErr error
	for _, entity := range scope {
		synced, failed, err := s.syncEntity(ctx, rec.ID, entity)
		rec.Synced += synced
		rec.Failed += failed
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	rec.Duration = time.Since(start)
	if rec.Failed > 0 || firstErr != nil {
		rec.Status = SyncFailed
		if firstErr != nil {
			rec.Error = firstErr.Error()
		} else {
			rec.Error = fmt.Sprintf("%d record(s) failed to apply", rec.Failed)
		}
	} else {
		rec.Status = SyncCompleted
	}

	if err := s.source.InsertSyncRecord(rec); err != nil {
		return rec, err
	}

	s.debug.LogSync("complete", fmt.Sprintf("status=%s synced=%d failed=%d", rec.Status, rec.Synced, rec.Failed))

	if rec.Status == SyncFailed {
		return rec, &SyncError{
			Scope:  fmt.Sprintf("%v", scope),
			Failed: rec.Failed,
			Err:    firstErr,
		}
	}
	return rec, nil
}

// syncEntity replays one entity's change log into the target, advancing
// the target-side cursor only across an unbroken prefix of successes.
// Entries after the first failure are still attempted (best effort), but
// the cursor stops before the failure so the next run reprocesses it.
func (s *Syncer) syncEntity(ctx context.Context, syncID, entity string) (synced, failed int, err error) {
	cursor, err := s.target.SyncCursor(entity)
	if err != nil {
		return 0, 0, fmt.Errorf("sync: read cursor for %s: %w", entity, err)
	}

	s.debug.LogSync("start", fmt.Sprintf("entity=%s cursor=%d", entity, cursor))

	advance := true
	for {
		entries, err := s.source.ChangesSince(entity, cursor, syncBatchSize)
		if err != nil {
			return synced, failed, fmt.Errorf("sync: read change log for %s: %w", entity, err)
		}
		if len(entries) == 0 {
			return synced, failed, nil
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				return synced, failed, ctx.Err()
			}

			if applyErr := s.applyEntry(ctx, syncID, entry); applyErr != nil {
				failed++
				advance = false
				s.debug.LogError("sync apply "+entry.Key.String(), applyErr)
				continue
			}

			synced++
			if advance {
				if err := s.target.SetSyncCursor(entity, entry.Seq); err != nil {
					return synced, failed, fmt.Errorf("sync: advance cursor for %s: %w", entity, err)
				}
			}
		}

		if !advance {
			// Cursor is stuck before a failed entry; reading the next
			// batch from the stuck cursor would loop forever.
			return synced, failed, nil
		}
		cursor = entries[len(entries)-1].Seq
	}
}

// applyEntry replays one change-log entry. The current source state, not
// the logged diff, is what gets applied: later corrections collapse into
// a single upsert, and the target classifies for itself.
func (s *Syncer) applyEntry(ctx context.Context, syncID string, entry ChangeLogEntry) error {
	if entry.Kind == ChangeCancelled {
		err := s.target.Cancel(ctx, syncID, entry.Key)
		if err == ErrNotFound {
			// Target never saw the key; nothing to void.
			return nil
		}
		return err
	}

	rec, err := s.source.GetRecord(entry.Key)
	if err == ErrNotFound {
		// Key was cancelled after this entry; the CANCELLED entry
		// later in the log handles it.
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.target.Apply(ctx, syncID, rec)
	return err
}

func (s *Syncer) sourceLabel() string {
	if s.sourceID != "" {
		return s.sourceID
	}
	return s.source.Path()
}

func (s *Syncer) acquire(scope []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entity := range scope {
		if s.inflight[entity] {
			return fmt.Errorf("%w: %s", ErrSyncInFlight, entity)
		}
	}
	for _, entity := range scope {
		s.inflight[entity] = true
	}
	return nil
}

func (s *Syncer) release(scope []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entity := range scope {
		delete(s.inflight, entity)
	}
}
