package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// fakeClock lets tests move a store's notion of "now".
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestBolt(t *testing.T, opts Options) (*boltStore, *fakeClock) {
	t.Helper()
	raw, err := openBolt(filepath.Join(t.TempDir(), "nested", "jobs.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := raw.(*boltStore)
	t.Cleanup(func() { store.Close() })
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.now = clock.now
	return store, clock
}

func TestBoltStoreSaveNeverRegressesPhase(t *testing.T) {
	store, clock := openTestBolt(t, Options{})
	exerciseMonotonicSave(t, store, clock)
}

func TestBoltStoreExpiresJobs(t *testing.T) {
	store, clock := openTestBolt(t, Options{JobTTL: time.Hour, CleanupInterval: time.Minute})
	exerciseExpiry(t, store, clock)
}

func TestBoltStorePendingJobs(t *testing.T) {
	store, clock := openTestBolt(t, Options{})
	exercisePending(t, store, clock)
}

func TestBoltStoreSweepDropsCorruptValues(t *testing.T) {
	store, clock := openTestBolt(t, Options{JobTTL: time.Hour, CleanupInterval: time.Minute})
	ctx := context.Background()

	if _, err := store.SaveJob(ctx, JobRecord{ID: "ok", State: briteverify.ListOpen}); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	if err := store.sweepExpired(clock.now()); err != nil {
		t.Fatalf("sweepExpired: %v", err)
	}
	if _, err := store.Job(ctx, "ok"); err != nil {
		t.Fatalf("live job removed by sweep: %v", err)
	}
	if v, ok := decodeExpiry([]byte{1, 2, 3}); ok {
		t.Fatalf("short expiry decoded as %v", v)
	}
	if rec, live := decodeRecord([]byte{0, 0, 0, 0, 0, 0, 0, 0, '{'}, clock.now()); live || rec != nil {
		t.Fatalf("corrupt value decoded as live")
	}
}

func TestBoltStoreSweepRemovesAdjacentExpiredKeys(t *testing.T) {
	store, clock := openTestBolt(t, Options{JobTTL: time.Hour, CleanupInterval: time.Minute})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if _, err := store.SaveJob(ctx, JobRecord{ID: id, State: briteverify.ListOpen}); err != nil {
			t.Fatalf("SaveJob %s: %v", id, err)
		}
	}
	clock.advance(30 * time.Minute)
	if _, err := store.SaveJob(ctx, JobRecord{ID: "f", State: briteverify.ListOpen}); err != nil {
		t.Fatalf("SaveJob f: %v", err)
	}

	clock.advance(45 * time.Minute)
	if err := store.sweepExpired(clock.now()); err != nil {
		t.Fatalf("sweepExpired: %v", err)
	}

	var keys []string
	if err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(jobBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	}); err != nil {
		t.Fatalf("scan bucket: %v", err)
	}
	if len(keys) != 1 || keys[0] != "f" {
		t.Fatalf("keys after sweep = %v, want [f]", keys)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	for _, typ := range []string{"", "none", "Disabled"} {
		store, err := NewStore(typ, "", Options{})
		if err != nil {
			t.Fatalf("NewStore %q: %v", typ, err)
		}
		rec, err := store.SaveJob(context.Background(), JobRecord{ID: "x"})
		if err != nil || rec.ID != "x" {
			t.Fatalf("noop SaveJob = %+v, %v", rec, err)
		}
		if _, err := store.Job(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("noop Job err = %v", err)
		}
	}
}

func TestNewStoreRejectsBadConfig(t *testing.T) {
	if _, err := NewStore("redis", "x", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
	if _, err := NewStore("postgres", "", Options{}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

// The scenarios below run against every backend.

func exerciseMonotonicSave(t *testing.T, store Store, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()
	submitted := clock.now()

	first, err := store.SaveJob(ctx, JobRecord{
		ID:         "job-1",
		ExternalID: "acct-9",
		State:      briteverify.ListOpen,
		Phase:      briteverify.PhaseQueued,
		Records:    42,
		Source:     "contacts.csv",
	})
	if err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	if !first.SubmittedAt.Equal(submitted) {
		t.Fatalf("SubmittedAt = %v, want %v", first.SubmittedAt, submitted)
	}

	clock.advance(time.Minute)
	rec, err := store.SaveJob(ctx, JobRecord{ID: "job-1", State: briteverify.ListVerifying, Phase: briteverify.PhaseProcessing})
	if err != nil {
		t.Fatalf("SaveJob processing: %v", err)
	}
	if rec.Phase != briteverify.PhaseProcessing || rec.Records != 42 || rec.ExternalID != "acct-9" || rec.Source != "contacts.csv" {
		t.Fatalf("merge lost fields: %+v", rec)
	}
	if !rec.SubmittedAt.Equal(submitted) || !rec.UpdatedAt.Equal(clock.now()) {
		t.Fatalf("timestamps = %v / %v", rec.SubmittedAt, rec.UpdatedAt)
	}

	clock.advance(time.Minute)
	rec, err = store.SaveJob(ctx, JobRecord{ID: "job-1", State: briteverify.ListPending, Phase: briteverify.PhaseQueued})
	if err != nil {
		t.Fatalf("SaveJob regression: %v", err)
	}
	if rec.Phase != briteverify.PhaseProcessing || rec.State != briteverify.ListVerifying {
		t.Fatalf("regression applied: %+v", rec)
	}

	loaded, err := store.Job(ctx, "job-1")
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if loaded.Phase != briteverify.PhaseProcessing || loaded.State != briteverify.ListVerifying {
		t.Fatalf("stored record regressed: %+v", loaded)
	}

	if err := store.DeleteJob(ctx, "job-1"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := store.Job(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Job after delete err = %v", err)
	}
	if err := store.DeleteJob(ctx, "job-1"); err != nil {
		t.Fatalf("deleting a missing job should succeed: %v", err)
	}
	if _, err := store.SaveJob(ctx, JobRecord{}); err == nil {
		t.Fatalf("expected blank id to be rejected")
	}
}

func exerciseExpiry(t *testing.T, store Store, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.SaveJob(ctx, JobRecord{ID: "old", State: briteverify.ListOpen}); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	clock.advance(30 * time.Minute)
	if _, err := store.Job(ctx, "old"); err != nil {
		t.Fatalf("job expired too early: %v", err)
	}

	clock.advance(31 * time.Minute)
	if _, err := store.Job(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired job to be gone, err = %v", err)
	}
	pending, err := store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expired job still pending: %+v", pending)
	}
}

func exercisePending(t *testing.T, store Store, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	saves := []JobRecord{
		{ID: "b", State: briteverify.ListVerifying, Phase: briteverify.PhaseProcessing},
		{ID: "done", State: briteverify.ListComplete, Phase: briteverify.PhaseComplete},
		{ID: "a", State: briteverify.ListOpen, Phase: briteverify.PhaseQueued},
		{ID: "failed", State: briteverify.ListImportError, Phase: briteverify.PhaseError},
	}
	for _, rec := range saves {
		if _, err := store.SaveJob(ctx, rec); err != nil {
			t.Fatalf("SaveJob %s: %v", rec.ID, err)
		}
		clock.advance(time.Second)
	}

	pending, err := store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "b" || pending[1].ID != "a" {
		t.Fatalf("pending = %+v, want [b a]", pending)
	}
}
