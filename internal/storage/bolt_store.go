package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	jobBucket        = "bulk_jobs"
	expiryValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Values are an 8-byte
// big-endian expiry followed by the JSON record.
type boltStore struct {
	db      *bolt.DB
	cleanup *cleanupThrottle
	jobTTL  time.Duration
	now     func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(jobBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{
		db:      db,
		cleanup: newCleanupThrottle(opts.CleanupInterval, time.Now()),
		jobTTL:  opts.JobTTL,
		now:     time.Now,
	}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SaveJob upserts rec unless it would move the job to an earlier phase.
func (b *boltStore) SaveJob(_ context.Context, rec JobRecord) (JobRecord, error) {
	if err := validateID(rec.ID); err != nil {
		return JobRecord{}, err
	}
	now := b.now()
	if err := b.cleanup.maybeRun(now, b.sweepExpired); err != nil {
		return JobRecord{}, err
	}

	var stored JobRecord
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(jobBucket))
		if bucket == nil {
			return fmt.Errorf("job bucket missing")
		}
		key := []byte(rec.ID)
		existing, _ := decodeRecord(bucket.Get(key), now)

		merged, changed := mergeJob(existing, rec, now)
		stored = merged
		if !changed {
			return nil
		}
		value, err := encodeRecord(merged, now.Add(b.jobTTL))
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
	if err != nil {
		return JobRecord{}, fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	return stored, nil
}

// Job returns the record for id, or ErrNotFound when missing or expired.
func (b *boltStore) Job(_ context.Context, id string) (JobRecord, error) {
	if err := validateID(id); err != nil {
		return JobRecord{}, err
	}
	now := b.now()
	var (
		rec   *JobRecord
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(jobBucket))
		if bucket == nil {
			return fmt.Errorf("job bucket missing")
		}
		key := []byte(id)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}
		var live bool
		rec, live = decodeRecord(value, now)
		if !live {
			return bucket.Delete(key)
		}
		found = true
		return nil
	})
	if err != nil {
		return JobRecord{}, fmt.Errorf("load job %s: %w", id, err)
	}
	if !found {
		return JobRecord{}, ErrNotFound
	}
	return *rec, nil
}

// PendingJobs lists unexpired jobs that have not reached a terminal phase,
// oldest first.
func (b *boltStore) PendingJobs(_ context.Context) ([]JobRecord, error) {
	now := b.now()
	if err := b.cleanup.maybeRun(now, b.sweepExpired); err != nil {
		return nil, err
	}
	var out []JobRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(jobBucket))
		if bucket == nil {
			return fmt.Errorf("job bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			rec, live := decodeRecord(v, now)
			if live && !rec.Phase.Terminal() {
				out = append(out, *rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// DeleteJob removes id; deleting a missing job is not an error.
func (b *boltStore) DeleteJob(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(jobBucket))
		if bucket == nil {
			return fmt.Errorf("job bucket missing")
		}
		return bucket.Delete([]byte(id))
	})
}

// sweepExpired removes expired records to avoid unbounded growth.
func (b *boltStore) sweepExpired(now time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(jobBucket))
		if bucket == nil {
			return fmt.Errorf("job bucket missing")
		}

		// Deleting under a live cursor skips the following key.
		var expired [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			if _, live := decodeRecord(v, now); !live {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeRecord(rec JobRecord, expiry time.Time) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	buf := make([]byte, expiryValueBytes, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(expiry.Unix()))
	return append(buf, payload...), nil
}

// decodeRecord returns the stored record and whether it is still live.
// Corrupt values decode as not live so the sweep removes them.
func decodeRecord(value []byte, now time.Time) (*JobRecord, bool) {
	if len(value) <= expiryValueBytes {
		return nil, false
	}
	expiry, ok := decodeExpiry(value[:expiryValueBytes])
	if !ok || !expiry.After(now) {
		return nil, false
	}
	var rec JobRecord
	if err := json.Unmarshal(value[expiryValueBytes:], &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) != expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
