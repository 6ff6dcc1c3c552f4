// Package storage keeps a local ledger of submitted bulk lists so a run that
// timed out can be resumed later.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// ErrNotFound is returned when the ledger has no (unexpired) record of a job.
var ErrNotFound = errors.New("storage: job not found")

// JobRecord is the ledger entry for one bulk list.
type JobRecord struct {
	ID          string                `json:"id"`
	ExternalID  string                `json:"external_id,omitempty"`
	State       briteverify.ListState `json:"state"`
	Phase       briteverify.JobPhase  `json:"phase"`
	Records     int                   `json:"records"`
	Source      string                `json:"source,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// RecordFromJob builds a ledger entry from a remote list.
func RecordFromJob(job briteverify.BulkJob) JobRecord {
	return JobRecord{
		ID:         job.ID,
		ExternalID: job.ExternalID,
		State:      job.State,
		Phase:      job.Phase(),
	}
}

// Store persists JobRecords. SaveJob never moves a job to an earlier phase:
// a regressing update is dropped and the stored record is returned.
type Store interface {
	Close() error
	SaveJob(ctx context.Context, rec JobRecord) (JobRecord, error)
	Job(ctx context.Context, id string) (JobRecord, error)
	PendingJobs(ctx context.Context) ([]JobRecord, error)
	DeleteJob(ctx context.Context, id string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	JobTTL          time.Duration
	CleanupInterval time.Duration
}

const (
	defaultJobTTL          = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend. path is the bbolt file
// for "bbolt", the database file for "sqlite" and the DSN for "postgres".
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	case "sqlite", "postgres":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%s storage requires a dsn", typ)
		}
		return openSQL(typ, path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.JobTTL <= 0 {
		opts.JobTTL = defaultJobTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// mergeJob applies incoming on top of existing. It reports false when the
// update would regress the phase, in which case existing is returned as-is.
func mergeJob(existing *JobRecord, incoming JobRecord, now time.Time) (JobRecord, bool) {
	if existing == nil {
		if incoming.SubmittedAt.IsZero() {
			incoming.SubmittedAt = now
		}
		incoming.UpdatedAt = now
		return incoming, true
	}
	if incoming.Phase < existing.Phase {
		return *existing, false
	}
	out := *existing
	out.State = incoming.State
	out.Phase = incoming.Phase
	if incoming.ExternalID != "" {
		out.ExternalID = incoming.ExternalID
	}
	if incoming.Records > 0 {
		out.Records = incoming.Records
	}
	if incoming.Source != "" {
		out.Source = incoming.Source
	}
	out.UpdatedAt = now
	return out, true
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("storage: job id is required")
	}
	return nil
}

// cleanupThrottle runs expiry sweeps at most once per interval.
type cleanupThrottle struct {
	mu       sync.Mutex
	last     atomic.Int64
	interval time.Duration
}

func newCleanupThrottle(interval time.Duration, now time.Time) *cleanupThrottle {
	t := &cleanupThrottle{interval: interval}
	t.last.Store(now.Unix())
	return t
}

func (t *cleanupThrottle) maybeRun(now time.Time, sweep func(now time.Time) error) error {
	last := time.Unix(t.last.Load(), 0)
	if now.Sub(last) < t.interval {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last = time.Unix(t.last.Load(), 0)
	if now.Sub(last) < t.interval {
		return nil
	}
	if err := sweep(now); err != nil {
		return err
	}
	t.last.Store(now.Unix())
	return nil
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) SaveJob(_ context.Context, rec JobRecord) (JobRecord, error) {
	return rec, nil
}
func (noopStore) Job(context.Context, string) (JobRecord, error)     { return JobRecord{}, ErrNotFound }
func (noopStore) PendingJobs(context.Context) ([]JobRecord, error) { return nil, nil }
func (noopStore) DeleteJob(context.Context, string) error          { return nil }
