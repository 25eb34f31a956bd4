package scorebook

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dugoutlabs/scorebook/internal/store/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// syncCursorKey namespaces per-entity sync cursors in the metadata table.
const syncCursorKey = "sync_cursor:"

// Store manages one scorebook SQLite database: the primary records table,
// the change-tracking metadata, the append-only change log, and the job
// and sync audit tables. All multi-table writes for a single record go
// through one transaction.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	closed  bool
	path    string
	schemas *SchemaRegistry
}

// NewStore opens or creates a store with the built-in entity schemas.
func NewStore(path string) (*Store, error) {
	return NewStoreWithSchemas(path, NewSchemaRegistry())
}

// NewStoreWithSchemas opens or creates a store using the given schema
// registry. The registry decides which fields are tracked per entity.
func NewStoreWithSchemas(path string, schemas *SchemaRegistry) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers, busy_timeout so concurrent jobs block
	// briefly on row locks instead of failing immediately
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &Store{db: db, path: path, schemas: schemas}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Schemas returns the schema registry this store was opened with.
func (s *Store) Schemas() *SchemaRegistry {
	return s.schemas
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// GetRecord retrieves the current primary-store state for an identity key.
func (s *Store) GetRecord(key IdentityKey) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.getRecord(s.db, key)
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) getRecord(q querier, key IdentityKey) (*Record, error) {
	row := q.QueryRow(`
		SELECT fields FROM records
		WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
	`, key.Entity, key.EntityID, key.ContainerID, key.GameDate)

	var fieldsJSON string
	if err := row.Scan(&fieldsJSON); err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("store: decode record fields: %w", err)
	}

	return &Record{Key: key, Fields: fields}, nil
}

// GetMetadataEntry retrieves the change-tracking metadata for an identity key.
func (s *Store) GetMetadataEntry(key IdentityKey) (*MetadataEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.getMetadataEntry(s.db, key)
}

func (s *Store) getMetadataEntry(q querier, key IdentityKey) (*MetadataEntry, error) {
	row := q.QueryRow(`
		SELECT fingerprint, first_seen, last_fetched, last_modified, job_id
		FROM record_metadata
		WHERE entity = ? AND entity_id = ? AND container_id = ? AND game_date = ?
	`, key.Entity, key.EntityID, key.ContainerID, key.GameDate)

	var (
		entry        MetadataEntry
		firstSeen    string
		lastFetched  string
		lastModified string
	)
	err := row.Scan(&entry.Fingerprint, &firstSeen, &lastFetched, &lastModified, &entry.JobID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	entry.Key = key
	entry.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	entry.LastFetched, _ = time.Parse(time.RFC3339, lastFetched)
	entry.LastModified, _ = time.Parse(time.RFC3339, lastModified)
	return &entry, nil
}

// ChangesSince returns change-log entries for an entity with a sequence
// greater than afterSeq, in sequence order, up to limit (0 = no limit).
func (s *Store) ChangesSince(entity string, afterSeq int64, limit int) ([]ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT seq, entity, entity_id, container_id, game_date, change_kind,
		       old_fingerprint, new_fingerprint, diff, detected_at, job_id
		FROM change_log
		WHERE entity = ? AND seq > ?
		ORDER BY seq ASC
	`
	args := []any{entity, afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query change log: %w", err)
	}
	defer rows.Close()

	var entries []ChangeLogEntry
	for rows.Next() {
		var (
			e        ChangeLogEntry
			oldFP    sql.NullString
			diffJSON sql.NullString
			detected string
		)
		err := rows.Scan(
			&e.Seq, &e.Key.Entity, &e.Key.EntityID, &e.Key.ContainerID,
			&e.Key.GameDate, &e.Kind, &oldFP, &e.NewFingerprint,
			&diffJSON, &detected, &e.JobID,
		)
		if err != nil {
			return nil, err
		}
		if oldFP.Valid {
			e.OldFingerprint = oldFP.String
		}
		if diffJSON.Valid && diffJSON.String != "" {
			if err := json.Unmarshal([]byte(diffJSON.String), &e.Diff); err != nil {
				return nil, fmt.Errorf("store: decode diff: %w", err)
			}
		}
		e.DetectedAt, _ = time.Parse(time.RFC3339, detected)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ChangeLogForKey returns the full audit history of one identity key.
func (s *Store) ChangeLogForKey(key IdentityKey) ([]ChangeLogEntry, error) {
	entries, err := s.ChangesSince(key.Entity, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []ChangeLogEntry
	for _, e := range entries {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetMetadata reads a store-level metadata value. Missing keys return "".
func (s *Store) GetMetadata(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata writes a store-level metadata value.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SyncCursor returns the last committed change-log sequence applied to
// this store for an entity. Zero means never synced.
func (s *Store) SyncCursor(entity string) (int64, error) {
	value, err := s.GetMetadata(syncCursorKey + entity)
	if err != nil || value == "" {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

// SetSyncCursor records the last committed change-log sequence applied
// to this store for an entity.
func (s *Store) SetSyncCursor(entity string, seq int64) error {
	return s.SetMetadata(syncCursorKey+entity, strconv.FormatInt(seq, 10))
}

// InsertSyncRecord appends one sync attempt to the audit history.
func (s *Store) InsertSyncRecord(rec *SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO sync_history (sync_id, source, target, direction, scope, status, synced, failed, started_at, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Source,
		rec.Target,
		rec.Direction,
		strings.Join(rec.Scope, ","),
		string(rec.Status),
		rec.Synced,
		rec.Failed,
		rec.StartedAt.Format(time.RFC3339),
		rec.Duration.Milliseconds(),
		nullIfEmpty(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("store: insert sync record: %w", err)
	}
	return nil
}

// SyncHistory returns the most recent sync attempts, newest first.
func (s *Store) SyncHistory(limit int) ([]SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT sync_id, source, target, direction, scope, status, synced, failed, started_at, duration_ms, error
		FROM sync_history ORDER BY started_at DESC, sync_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query sync history: %w", err)
	}
	defer rows.Close()

	var records []SyncRecord
	for rows.Next() {
		var (
			rec        SyncRecord
			scope      string
			startedAt  string
			durationMS int64
			errMsg     sql.NullString
		)
		err := rows.Scan(&rec.ID, &rec.Source, &rec.Target, &rec.Direction, &scope,
			&rec.Status, &rec.Synced, &rec.Failed, &startedAt, &durationMS, &errMsg)
		if err != nil {
			return nil, err
		}
		if scope != "" {
			rec.Scope = strings.Split(scope, ",")
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{
		RecordCounts:  make(map[string]int),
		SchemaVersion: schemaVersion,
	}

	rows, err := s.db.Query(`SELECT entity, COUNT(*) FROM records GROUP BY entity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entity string
		var count int
		if err := rows.Scan(&entity, &count); err != nil {
			return nil, err
		}
		stats.RecordCounts[entity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM change_log`).Scan(&stats.ChangeLogSize); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?`, string(JobRunning)).Scan(&stats.ActiveJobs); err != nil {
		return nil, err
	}

	var lastSync sql.NullString
	err = s.db.QueryRow(`SELECT started_at FROM sync_history WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		string(SyncCompleted)).Scan(&lastSync)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if lastSync.Valid {
		stats.LastSync, _ = time.Parse(time.RFC3339, lastSync.String)
	}

	return stats, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
