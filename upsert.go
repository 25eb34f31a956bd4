package scorebook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Apply classifies one record against its metadata and commits all
// resulting writes in a single transaction:
//
//   - NEW: insert the primary row, the metadata entry, and a NEW
//     change-log entry.
//   - MODIFIED: replace the tracked fields (created_at is preserved),
//     update the metadata fingerprint and last_modified, and append a
//     MODIFIED change-log entry carrying the field-level diff.
//   - UNCHANGED: bump the metadata last_fetched timestamp only.
//
// A crash can never land between the primary write and the metadata
// update; either every write for the record commits or none do.
// Re-applying an identical record classifies UNCHANGED and produces no
// further change-log entries, which is what makes retries safe.
func (s *Store) Apply(ctx context.Context, jobID string, rec *Record) (*ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	schema, err := s.schemas.Get(rec.Key.Entity)
	if err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(rec, schema)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("begin transaction", err)
	}
	defer tx.Rollback() // no-op if committed

	meta, err := s.getMetadataEntry(tx, rec.Key)
	if err != nil && err != ErrNotFound {
		return nil, wrapStoreErr("read metadata", err)
	}
	if err == ErrNotFound {
		meta = nil
	}

	result := &ApplyResult{
		Key:            rec.Key,
		Classification: Classify(meta, fingerprint),
		Fingerprint:    fingerprint,
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	switch result.Classification {
	case ClassNew:
		if err := s.applyNew(tx, jobID, rec, fingerprint, nowStr); err != nil {
			return nil, err
		}

	case ClassModified:
		old, err := s.getRecord(tx, rec.Key)
		if err != nil {
			return nil, wrapStoreErr("read prior record", err)
		}
		result.Diff = Diff(old, rec, schema)
		if err := s.applyModified(tx, jobID, rec, meta.Fingerprint, fingerprint, result.Diff, nowStr); err != nil {
			return nil, err
		}

	case ClassUnchanged:
		_, err := tx.Exec(`
			UPDATE record_metadata SET last_fetched = ?
			WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
		`, nowStr, rec.Key.Entity, rec.Key.EntityID, rec.Key.ContainerID, rec.Key.GameDate)
		if err != nil {
			return nil, wrapStoreErr("touch metadata", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("commit", err)
	}

	return result, nil
}

func (s *Store) applyNew(tx querier, jobID string, rec *Record, fingerprint, nowStr string) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("store: encode record fields: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO records (entity, entity_id, container_id, game_date, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Key.Entity, rec.Key.EntityID, rec.Key.ContainerID, rec.Key.GameDate,
		string(fieldsJSON), nowStr, nowStr)
	if err != nil {
		return wrapStoreErr("insert record", err)
	}

	_, err = tx.Exec(`
		INSERT INTO record_metadata (entity, entity_id, container_id, game_date, fingerprint, first_seen, last_fetched, last_modified, job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Key.Entity, rec.Key.EntityID, rec.Key.ContainerID, rec.Key.GameDate,
		fingerprint, nowStr, nowStr, nowStr, jobID)
	if err != nil {
		return wrapStoreErr("insert metadata", err)
	}

	return s.appendChangeLog(tx, jobID, rec.Key, ChangeNew, "", fingerprint, nil, nowStr)
}

func (s *Store) applyModified(tx querier, jobID string, rec *Record, oldFP, newFP string, diff []FieldChange, nowStr string) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("store: encode record fields: %w", err)
	}

	// Full replace of tracked fields; created_at stays untouched.
	_, err = tx.Exec(`
		UPDATE records SET fields = ?, updated_at = ?
		WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
	`, string(fieldsJSON), nowStr,
		rec.Key.Entity, rec.Key.EntityID, rec.Key.ContainerID, rec.Key.GameDate)
	if err != nil {
		return wrapStoreErr("update record", err)
	}

	_, err = tx.Exec(`
		UPDATE record_metadata SET fingerprint = ?, last_fetched = ?, last_modified = ?, job_id = ?
		WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
	`, newFP, nowStr, nowStr, jobID,
		rec.Key.Entity, rec.Key.EntityID, rec.Key.ContainerID, rec.Key.GameDate)
	if err != nil {
		return wrapStoreErr("update metadata", err)
	}

	return s.appendChangeLog(tx, jobID, rec.Key, ChangeModified, oldFP, newFP, diff, nowStr)
}

// Cancel voids an identity key: upstream sources occasionally retract a
// transaction or lineup slot entirely. The primary row and metadata are
// removed and a CANCELLED change-log entry preserves the audit trail, all
// in one transaction. A later re-observation of the key classifies NEW.
func (s *Store) Cancel(ctx context.Context, jobID string, key IdentityKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr("begin transaction", err)
	}
	defer tx.Rollback()

	meta, err := s.getMetadataEntry(tx, key)
	if err != nil {
		return err
	}

	nowStr := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.Exec(`
		DELETE FROM records
		WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
	`, key.Entity, key.EntityID, key.ContainerID, key.GameDate)
	if err != nil {
		return wrapStoreErr("delete record", err)
	}

	_, err = tx.Exec(`
		DELETE FROM record_metadata
		WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
	`, key.Entity, key.EntityID, key.ContainerID, key.GameDate)
	if err != nil {
		return wrapStoreErr("delete metadata", err)
	}

	if err := s.appendChangeLog(tx, jobID, key, ChangeCancelled, meta.Fingerprint, meta.Fingerprint, nil, nowStr); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit", err)
	}
	return nil
}

func (s *Store) appendChangeLog(tx querier, jobID string, key IdentityKey, kind ChangeKind, oldFP, newFP string, diff []FieldChange, nowStr string) error {
	var diffJSON *string
	if len(diff) > 0 {
		b, err := json.Marshal(diff)
		if err != nil {
			return fmt.Errorf("store: encode diff: %w", err)
		}
		str := string(b)
		diffJSON = &str
	}

	_, err := tx.Exec(`
		INSERT INTO change_log (entity, entity_id, container_id, game_date, change_kind, old_fingerprint, new_fingerprint, diff, detected_at, job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, key.Entity, key.EntityID, key.ContainerID, key.GameDate,
		string(kind), nullIfEmpty(oldFP), newFP, diffJSON, nowStr, jobID)
	if err != nil {
		return wrapStoreErr("append change log", err)
	}
	return nil
}

// wrapStoreErr wraps a database error as *StoreError, marking lock
// contention as retryable.
func wrapStoreErr(op string, err error) error {
	return &StoreError{Op: op, Retryable: isBusy(err), Err: err}
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
