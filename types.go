package scorebook

import "time"

// IdentityKey is the natural key of one logical record occurrence:
// a stat line, lineup slot, or transaction on a given date.
type IdentityKey struct {
	Entity      string `json:"entity"`
	EntityID    string `json:"entity_id"`
	ContainerID string `json:"container_id"`
	GameDate    string `json:"game_date"` // YYYY-MM-DD
}

// String returns the canonical textual form of the key.
func (k IdentityKey) String() string {
	return k.Entity + "/" + k.ContainerID + "/" + k.EntityID + "@" + k.GameDate
}

// Record is a coerced, strongly-shaped observation from a collector.
// Fields holds only tracked fields; values are nil (absent upstream) or
// canonical strings (numerics already normalized to fixed precision).
type Record struct {
	Key             IdentityKey    `json:"key"`
	Fields          map[string]any `json:"fields"`
	SourceTimestamp time.Time      `json:"source_timestamp,omitempty"`
}

// Classification is the result of comparing a record against its metadata.
type Classification string

const (
	ClassNew       Classification = "NEW"
	ClassUnchanged Classification = "UNCHANGED"
	ClassModified  Classification = "MODIFIED"
)

// ChangeKind labels a change-log entry.
type ChangeKind string

const (
	ChangeNew       ChangeKind = "NEW"
	ChangeModified  ChangeKind = "MODIFIED"
	ChangeCancelled ChangeKind = "CANCELLED"
)

// FieldChange describes one tracked field that moved between observations.
// Delta is set only for numeric fields where both sides are present.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old"`
	NewValue any    `json:"new"`
	Delta    string `json:"delta,omitempty"`
}

// MetadataEntry is the per-identity-key change-tracking row.
type MetadataEntry struct {
	Key          IdentityKey `json:"key"`
	Fingerprint  string      `json:"fingerprint"`
	FirstSeen    time.Time   `json:"first_seen"`
	LastFetched  time.Time   `json:"last_fetched"`
	LastModified time.Time   `json:"last_modified"`
	JobID        string      `json:"job_id"`
}

// ChangeLogEntry is one immutable row of the audit trail.
type ChangeLogEntry struct {
	Seq            int64         `json:"seq"`
	Key            IdentityKey   `json:"key"`
	Kind           ChangeKind    `json:"kind"`
	OldFingerprint string        `json:"old_fingerprint,omitempty"`
	NewFingerprint string        `json:"new_fingerprint"`
	Diff           []FieldChange `json:"diff,omitempty"`
	DetectedAt     time.Time     `json:"detected_at"`
	JobID          string        `json:"job_id"`
}

// JobStatus is the lifecycle state of an ingestion or sync job.
type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Counters accumulates per-job metrics. Inserted+Updated+Unchanged always
// equals Processed for records that reached classification; Errors counts
// records that never did.
type Counters struct {
	Processed       int `json:"processed"`
	Inserted        int `json:"inserted"`
	Updated         int `json:"updated"`
	Unchanged       int `json:"unchanged"`
	ChangesDetected int `json:"changes_detected"`
	Corrections     int `json:"corrections"`
	Errors          int `json:"errors"`
}

// Add accumulates another delta into c.
func (c *Counters) Add(d Counters) {
	c.Processed += d.Processed
	c.Inserted += d.Inserted
	c.Updated += d.Updated
	c.Unchanged += d.Unchanged
	c.ChangesDetected += d.ChangesDetected
	c.Corrections += d.Corrections
	c.Errors += d.Errors
}

// Job is one bounded ingestion or sync run.
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Environment string     `json:"environment"`
	Status      JobStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Counters    Counters   `json:"counters"`
	Checkpoint  string     `json:"checkpoint,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SyncStatus is the outcome of one sync attempt.
type SyncStatus string

const (
	SyncCompleted SyncStatus = "COMPLETED"
	SyncFailed    SyncStatus = "FAILED"
)

// SyncRecord is the append-only audit row for one sync run.
type SyncRecord struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Direction string        `json:"direction"`
	Scope     []string      `json:"scope"`
	Status    SyncStatus    `json:"status"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// ApplyResult reports what a single upsert did.
type ApplyResult struct {
	Key            IdentityKey    `json:"key"`
	Classification Classification `json:"classification"`
	Fingerprint    string         `json:"fingerprint"`
	Diff           []FieldChange  `json:"diff,omitempty"`
}

// StoreStats contains statistics about a store.
type StoreStats struct {
	RecordCounts  map[string]int `json:"record_counts"`
	ChangeLogSize int            `json:"change_log_size"`
	ActiveJobs    int            `json:"active_jobs"`
	LastSync      time.Time      `json:"last_sync"`
	SchemaVersion string         `json:"schema_version"`
}
