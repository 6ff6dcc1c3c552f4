package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// sqlStore implements a Store on database/sql. It serves both the sqlite
// (modernc.org/sqlite) and postgres (lib/pq) drivers.
type sqlStore struct {
	db       *sql.DB
	postgres bool
	cleanup  *cleanupThrottle
	jobTTL   time.Duration
	now      func() time.Time
}

func openSQL(typ, dsn string, opts Options) (Store, error) {
	driver := "postgres"
	if typ == "sqlite" {
		driver = "sqlite"
		if dir := filepath.Dir(dsn); dir != "" && dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", typ, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s db: %w", typ, err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStore{
		db:       db,
		postgres: driver == "postgres",
		cleanup:  newCleanupThrottle(opts.CleanupInterval, time.Now()),
		jobTTL:   opts.JobTTL,
		now:      time.Now,
	}, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const selectJob = `SELECT id, external_id, state, phase, records, source, submitted_at, updated_at
FROM bulk_jobs WHERE id = ? AND expires_at > ?`

const upsertJob = `INSERT INTO bulk_jobs
    (id, external_id, state, phase, records, source, submitted_at, updated_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    external_id = excluded.external_id,
    state = excluded.state,
    phase = excluded.phase,
    records = excluded.records,
    source = excluded.source,
    submitted_at = excluded.submitted_at,
    updated_at = excluded.updated_at,
    expires_at = excluded.expires_at`

func (s *sqlStore) SaveJob(ctx context.Context, rec JobRecord) (JobRecord, error) {
	if err := validateID(rec.ID); err != nil {
		return JobRecord{}, err
	}
	now := s.now()
	if err := s.cleanup.maybeRun(now, s.sweepExpired); err != nil {
		return JobRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return JobRecord{}, fmt.Errorf("save job %s: begin: %w", rec.ID, err)
	}
	defer tx.Rollback()

	var existing *JobRecord
	found, err := scanJob(tx.QueryRowContext(ctx, s.rebind(selectJob), rec.ID, now.UnixNano()))
	switch {
	case err == nil:
		existing = &found
	case !errors.Is(err, sql.ErrNoRows):
		return JobRecord{}, fmt.Errorf("save job %s: load: %w", rec.ID, err)
	}

	merged, changed := mergeJob(existing, rec, now)
	if !changed {
		return merged, nil
	}
	_, err = tx.ExecContext(ctx, s.rebind(upsertJob),
		merged.ID, merged.ExternalID, string(merged.State), int(merged.Phase), merged.Records, merged.Source,
		merged.SubmittedAt.UnixNano(), merged.UpdatedAt.UnixNano(), now.Add(s.jobTTL).UnixNano(),
	)
	if err != nil {
		return JobRecord{}, fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return JobRecord{}, fmt.Errorf("save job %s: commit: %w", rec.ID, err)
	}
	return merged, nil
}

func (s *sqlStore) Job(ctx context.Context, id string) (JobRecord, error) {
	if err := validateID(id); err != nil {
		return JobRecord{}, err
	}
	rec, err := scanJob(s.db.QueryRowContext(ctx, s.rebind(selectJob), id, s.now().UnixNano()))
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, ErrNotFound
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("load job %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqlStore) PendingJobs(ctx context.Context) ([]JobRecord, error) {
	now := s.now()
	if err := s.cleanup.maybeRun(now, s.sweepExpired); err != nil {
		return nil, err
	}
	const query = `SELECT id, external_id, state, phase, records, source, submitted_at, updated_at
FROM bulk_jobs WHERE phase < ? AND expires_at > ? ORDER BY submitted_at, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), int(briteverify.PhaseComplete), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending jobs: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return out, nil
}

func (s *sqlStore) DeleteJob(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM bulk_jobs WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s *sqlStore) sweepExpired(now time.Time) error {
	if _, err := s.db.Exec(s.rebind(`DELETE FROM bulk_jobs WHERE expires_at <= ?`), now.UnixNano()); err != nil {
		return fmt.Errorf("sweep expired jobs: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (JobRecord, error) {
	var (
		rec                  JobRecord
		state                string
		phase                int
		submitted, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.ExternalID, &state, &phase, &rec.Records, &rec.Source, &submitted, &updatedAt); err != nil {
		return JobRecord{}, err
	}
	rec.State = briteverify.ListState(state)
	rec.Phase = briteverify.JobPhase(phase)
	rec.SubmittedAt = time.Unix(0, submitted)
	rec.UpdatedAt = time.Unix(0, updatedAt)
	return rec, nil
}
