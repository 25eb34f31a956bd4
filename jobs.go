package scorebook

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ActiveJobPolicy decides whether a job type may only have one RUNNING
// instance per environment. The default policy applies one setting to
// every type; per-entity collectors that legitimately run concurrently
// supply their own.
type ActiveJobPolicy func(jobType, environment string) bool

// JobTracker manages the ingestion-job lifecycle against a store:
// RUNNING -> {COMPLETED, FAILED, CANCELLED}, terminal exactly once.
type JobTracker struct {
	store       *Store
	environment string
	policy      ActiveJobPolicy
	staleAfter  time.Duration
}

// TrackerOptions configures a JobTracker.
type TrackerOptions struct {
	// Environment stamps every job started by this tracker.
	Environment string

	// UniqueActive enforces one RUNNING job per type+environment.
	UniqueActive bool

	// Policy overrides UniqueActive per job type when set.
	Policy ActiveJobPolicy

	// StaleAfter is the staleness threshold used by ReapStale.
	StaleAfter time.Duration
}

// NewJobTracker creates a tracker over the given store.
func NewJobTracker(store *Store, opts TrackerOptions) *JobTracker {
	policy := opts.Policy
	if policy == nil {
		unique := opts.UniqueActive
		policy = func(string, string) bool { return unique }
	}
	staleAfter := opts.StaleAfter
	if staleAfter == 0 {
		staleAfter = 2 * time.Hour
	}
	environment := opts.Environment
	if environment == "" {
		environment = "default"
	}
	return &JobTracker{
		store:       store,
		environment: environment,
		policy:      policy,
		staleAfter:  staleAfter,
	}
}

// Start creates a job in RUNNING state. Under the unique-active policy a
// second start for the same type and environment fails with
// ErrDuplicateActiveJob while the first is still RUNNING.
func (t *JobTracker) Start(ctx context.Context, jobType string) (*Job, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return nil, ErrStoreClosed
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("begin transaction", err)
	}
	defer tx.Rollback()

	if t.policy(jobType, t.environment) {
		var active int
		err := tx.QueryRow(`
			SELECT COUNT(*) FROM jobs WHERE job_type = ? AND environment = ? AND status = ?
		`, jobType, t.environment, string(JobRunning)).Scan(&active)
		if err != nil {
			return nil, wrapStoreErr("check active jobs", err)
		}
		if active > 0 {
			return nil, fmt.Errorf("%w: type=%s environment=%s", ErrDuplicateActiveJob, jobType, t.environment)
		}
	}

	job := &Job{
		ID:          ulid.Make().String(),
		Type:        jobType,
		Environment: t.environment,
		Status:      JobRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err = tx.Exec(`
		INSERT INTO jobs (job_id, job_type, environment, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, job.ID, job.Type, job.Environment, string(job.Status), job.StartedAt.Format(time.RFC3339))
	if err != nil {
		return nil, wrapStoreErr("insert job", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("commit", err)
	}
	return job, nil
}

// RecordProgress atomically increments a job's counters and advances its
// checkpoint. Safe to call repeatedly from the job's single writer.
// Fails with ErrAlreadyTerminal if the job already finished.
func (t *JobTracker) RecordProgress(ctx context.Context, jobID string, delta Counters, checkpoint string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return ErrStoreClosed
	}

	res, err := t.store.db.ExecContext(ctx, `
		UPDATE jobs SET
			processed = processed + ?,
			inserted = inserted + ?,
			updated = updated + ?,
			unchanged = unchanged + ?,
			changes_detected = changes_detected + ?,
			corrections = corrections + ?,
			errors = errors + ?,
			checkpoint = COALESCE(NULLIF(?, ''), checkpoint)
		WHERE job_id = ? AND status = ?
	`, delta.Processed, delta.Inserted, delta.Updated, delta.Unchanged,
		delta.ChangesDetected, delta.Corrections, delta.Errors,
		checkpoint, jobID, string(JobRunning))
	if err != nil {
		return wrapStoreErr("record progress", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("record progress", err)
	}
	if n == 0 {
		if _, err := t.getJob(t.store.db, jobID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, jobID)
	}
	return nil
}

// Finish transitions a job to a terminal status exactly once, freezing
// its counters. A second call fails with ErrAlreadyTerminal.
func (t *JobTracker) Finish(ctx context.Context, jobID string, status JobStatus, errMsg string) (*Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("finish: %q is not a terminal status", status)
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return nil, ErrStoreClosed
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("begin transaction", err)
	}
	defer tx.Rollback()

	job, err := t.getJob(tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, jobID, job.Status)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(`
		UPDATE jobs SET status = ?, ended_at = ?, error = ? WHERE job_id = ?
	`, string(status), now.Format(time.RFC3339), nullIfEmpty(errMsg), jobID)
	if err != nil {
		return nil, wrapStoreErr("finish job", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("commit", err)
	}

	job.Status = status
	job.EndedAt = &now
	job.Error = errMsg
	return job, nil
}

// Resume returns the checkpoint of the most recent interrupted (not
// COMPLETED) job of the given type in this tracker's environment, letting
// a fresh run skip already-processed work. Returns "" when there is
// nothing to resume from.
func (t *JobTracker) Resume(ctx context.Context, jobType string) (string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if t.store.closed {
		return "", ErrStoreClosed
	}

	var checkpoint sql.NullString
	err := t.store.db.QueryRowContext(ctx, `
		SELECT checkpoint FROM jobs
		WHERE job_type = ? AND environment = ? AND status != ?
		ORDER BY started_at DESC, job_id DESC LIMIT 1
	`, jobType, t.environment, string(JobCompleted)).Scan(&checkpoint)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", wrapStoreErr("resume", err)
	}
	if !checkpoint.Valid {
		return "", nil
	}
	return checkpoint.String, nil
}

// ReapStale marks RUNNING jobs older than the staleness threshold as
// FAILED. A crashed process leaves its job RUNNING forever; without the
// reaper the unique-active-job policy would block new runs permanently.
// Returns the number of jobs reaped.
func (t *JobTracker) ReapStale(ctx context.Context) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.closed {
		return 0, ErrStoreClosed
	}

	now := time.Now().UTC()
	cutoff := now.Add(-t.staleAfter)

	res, err := t.store.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, ended_at = ?, error = ?
		WHERE status = ? AND started_at < ?
	`, string(JobFailed), now.Format(time.RFC3339),
		fmt.Sprintf("reaped: still RUNNING after %s", t.staleAfter),
		string(JobRunning), cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, wrapStoreErr("reap stale jobs", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStoreErr("reap stale jobs", err)
	}
	return int(n), nil
}

// GetJob retrieves a job by ID.
func (t *JobTracker) GetJob(ctx context.Context, jobID string) (*Job, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if t.store.closed {
		return nil, ErrStoreClosed
	}

	return t.getJob(t.store.db, jobID)
}

// ListJobs returns the most recent jobs, newest first.
func (t *JobTracker) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if t.store.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := t.store.db.QueryContext(ctx, `
		SELECT job_id, job_type, environment, status, started_at, ended_at,
		       processed, inserted, updated, unchanged, changes_detected, corrections, errors,
		       checkpoint, error
		FROM jobs ORDER BY started_at DESC, job_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapStoreErr("list jobs", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (t *JobTracker) getJob(q querier, jobID string) (*Job, error) {
	row := q.QueryRow(`
		SELECT job_id, job_type, environment, status, started_at, ended_at,
		       processed, inserted, updated, unchanged, changes_detected, corrections, errors,
		       checkpoint, error
		FROM jobs WHERE job_id = ?
	`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, err
}

func scanJob(sc interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job        Job
		status     string
		startedAt  string
		endedAt    sql.NullString
		checkpoint sql.NullString
		errMsg     sql.NullString
	)
	err := sc.Scan(
		&job.ID, &job.Type, &job.Environment, &status, &startedAt, &endedAt,
		&job.Counters.Processed, &job.Counters.Inserted, &job.Counters.Updated,
		&job.Counters.Unchanged, &job.Counters.ChangesDetected,
		&job.Counters.Corrections, &job.Counters.Errors,
		&checkpoint, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	job.Status = JobStatus(status)
	job.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339, endedAt.String)
		job.EndedAt = &t
	}
	if checkpoint.Valid {
		job.Checkpoint = checkpoint.String
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
