package scorebook

import (
	"context"
	"errors"
	"fmt"
)

// errorRateMinimum is the processed-count floor below which the error
// rate threshold is not evaluated; a single early failure should not
// abort a run.
const errorRateMinimum = 20

// Engine is the main entry point: it owns a store, a job tracker, and
// the schema registry, and drives whole ingestion runs.
type Engine struct {
	store   *Store
	tracker *JobTracker
	config  Config
	debug   *DebugLogger
}

// New creates an engine from configuration.
func New(cfg Config) (*Engine, error) {
	return NewWithSchemas(cfg, NewSchemaRegistry())
}

// NewWithSchemas creates an engine with a caller-supplied schema registry.
func NewWithSchemas(cfg Config, schemas *SchemaRegistry) (*Engine, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := NewStoreWithSchemas(cfg.Path, schemas)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	debug, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	tracker := NewJobTracker(store, TrackerOptions{
		Environment:  cfg.Environment,
		UniqueActive: cfg.UniqueActiveJob,
		StaleAfter:   cfg.StaleJobTimeout,
	})

	return &Engine{
		store:   store,
		tracker: tracker,
		config:  cfg,
		debug:   debug,
	}, nil
}

// Store returns the underlying store.
func (e *Engine) Store() *Store {
	return e.store
}

// Jobs returns the job tracker.
func (e *Engine) Jobs() *JobTracker {
	return e.tracker
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Coerce shapes one raw collector payload into a typed record for the
// named entity.
func (e *Engine) Coerce(entity string, raw map[string]any) (*Record, error) {
	schema, err := e.store.Schemas().Get(entity)
	if err != nil {
		return nil, err
	}
	return schema.Coerce(raw)
}

// IngestOptions tunes one ingestion run.
type IngestOptions struct {
	// ResumeFromCheckpoint skips records whose game date is not after
	// the checkpoint of the most recent interrupted run of this type.
	ResumeFromCheckpoint bool
}

// RunIngest executes one full ingestion job over a batch of records:
// start, sorted last-write-wins apply with bounded per-record retries,
// progress/checkpoint accounting, terminal finish. Invalid or repeatedly
// failing records are counted as errors and skipped; the job fails
// outright only when the error rate exceeds the configured threshold.
// The batch is sorted date-first before applying, so the checkpoint is
// always the latest fully-attempted date and a resumed run can never
// skip a record the interrupted run did not reach.
func (e *Engine) RunIngest(ctx context.Context, jobType string, records []*Record, opts IngestOptions) (*Job, error) {
	var resumeFrom string
	if opts.ResumeFromCheckpoint {
		cp, err := e.tracker.Resume(ctx, jobType)
		if err != nil {
			return nil, err
		}
		resumeFrom = cp
	}

	job, err := e.tracker.Start(ctx, jobType)
	if err != nil {
		return nil, err
	}
	e.debug.LogJob(job.ID, JobRunning, fmt.Sprintf("type=%s records=%d resume=%q", jobType, len(records), resumeFrom))

	sorted := make([]*Record, len(records))
	copy(sorted, records)
	SortBatch(sorted)

	var total Counters
	for i, rec := range sorted {
		if ctx.Err() != nil {
			return e.tracker.Finish(context.WithoutCancel(ctx), job.ID, JobCancelled, ctx.Err().Error())
		}

		if resumeFrom != "" && rec.Key.GameDate <= resumeFrom {
			continue
		}

		delta := e.applyWithRetry(ctx, job.ID, rec)
		total.Add(delta)

		// The checkpoint advances only once every record of a date has
		// been attempted; an interrupted run reprocesses its partial
		// date instead of checkpointing past work it never reached.
		checkpoint := ""
		if i+1 == len(sorted) || sorted[i+1].Key.GameDate != rec.Key.GameDate {
			checkpoint = rec.Key.GameDate
		}
		if err := e.tracker.RecordProgress(ctx, job.ID, delta, checkpoint); err != nil {
			return nil, err
		}

		if e.errorRateExceeded(total) {
			msg := fmt.Sprintf("error rate %.0f%% exceeded threshold after %d records",
				100*float64(total.Errors)/float64(total.Processed+total.Errors), total.Processed+total.Errors)
			return e.tracker.Finish(ctx, job.ID, JobFailed, msg)
		}
	}

	return e.tracker.Finish(ctx, job.ID, JobCompleted, "")
}

// applyWithRetry applies one record, retrying bounded times on transient
// store contention. Each attempt is a full, atomic per-record commit; a
// record that exhausts retries is counted as an error and skipped so the
// batch keeps moving.
func (e *Engine) applyWithRetry(ctx context.Context, jobID string, rec *Record) Counters {
	var delta Counters

	for attempt := 0; ; attempt++ {
		result, err := e.store.Apply(ctx, jobID, rec)
		if err == nil {
			e.debug.LogApply(jobID, result)
			delta.Processed = 1
			switch result.Classification {
			case ClassNew:
				delta.Inserted = 1
				delta.ChangesDetected = 1
			case ClassModified:
				delta.Updated = 1
				delta.ChangesDetected = 1
				delta.Corrections = 1
			case ClassUnchanged:
				delta.Unchanged = 1
			}
			return delta
		}

		var storeErr *StoreError
		retryable := errors.As(err, &storeErr) && storeErr.Retryable
		if retryable && attempt < e.config.MaxRecordRetries {
			continue
		}

		e.debug.LogError("apply "+rec.Key.String(), err)
		delta.Errors = 1
		return delta
	}
}

func (e *Engine) errorRateExceeded(total Counters) bool {
	seen := total.Processed + total.Errors
	if seen < errorRateMinimum || e.config.ErrorRateThreshold <= 0 {
		return false
	}
	return float64(total.Errors)/float64(seen) > e.config.ErrorRateThreshold
}

// NewSyncer creates a syncer from this engine's store to a downstream
// target store, carrying the engine's debug logger, configured sync
// scope, and source identity.
func (e *Engine) NewSyncer(target *Store) *Syncer {
	syncer := NewSyncer(e.store, target)
	syncer.SetDebugLogger(e.debug)
	syncer.SetSourceID(e.config.SourceID)
	syncer.SetDefaultScope(e.config.SyncScope)
	return syncer
}

// Close closes the engine and its store.
func (e *Engine) Close() error {
	if err := e.debug.Close(); err != nil {
		return err
	}
	return e.store.Close()
}
