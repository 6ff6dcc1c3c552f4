package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/briteverify-go/internal/config"
	"github.com/samvad-hq/briteverify-go/internal/logger"
	"github.com/samvad-hq/briteverify-go/internal/storage"
	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
	"github.com/samvad-hq/briteverify-go/pkg/publishers"
)

const defaultSQLitePath = "./data/jobs.sqlite"

// Verifier wires the API client, the job ledger and the result publishers.
type Verifier struct {
	cfg    *config.Config
	client *briteverify.Client
	store  storage.Store
	fanout *publishers.Fanout
	log    logger.Logger
}

// BulkOutcome is the result of driving one bulk list to completion.
type BulkOutcome struct {
	Job        briteverify.BulkJob              `json:"job"`
	Results    []briteverify.VerificationResult `json:"results"`
	Published  int                              `json:"published"`
	// PublishErr joins delivery failures; results are still returned.
	PublishErr error `json:"-"`
}

// NewVerifier builds the runtime from config.
func NewVerifier(ctx context.Context, cfg *config.Config, log logger.Logger) (*Verifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := briteverify.New(cfg.APIKey,
		briteverify.WithV1BaseURL(cfg.V1BaseURL),
		briteverify.WithV3BaseURL(cfg.V3BaseURL),
		briteverify.WithTimeout(cfg.HTTPTimeout),
		briteverify.WithRetry(briteverify.RetryPolicy{
			Enabled:    cfg.RetryEnabled,
			MaxRetries: cfg.RetryMaxAttempts,
			MaxWait:    cfg.RetryMaxWait,
		}),
		briteverify.WithLogger(log),
		briteverify.WithObserver(briteverify.LoggingObserver(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	path := storePath(cfg)
	store, err := storage.NewStore(cfg.StorageType, path, storage.Options{
		JobTTL:          cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     redactDSN(cfg.StorageType, path),
		"job_ttl_seconds":          int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return newVerifier(cfg, client, store, fanout, log), nil
}

func newVerifier(cfg *config.Config, client *briteverify.Client, store storage.Store, fanout *publishers.Fanout, log logger.Logger) *Verifier {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Verifier{cfg: cfg, client: client, store: store, fanout: fanout, log: log}
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.DebugObj("no publishers file configured", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}
	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

func storePath(cfg *config.Config) string {
	switch cfg.StorageType {
	case "sqlite":
		if cfg.SQLDSN == "" {
			return defaultSQLitePath
		}
		return cfg.SQLDSN
	case "postgres":
		return cfg.SQLDSN
	default:
		return cfg.BBoltPath
	}
}

func redactDSN(typ, path string) string {
	if typ == "postgres" && path != "" {
		return "<redacted>"
	}
	return path
}

// Client exposes the underlying API client for one-off calls.
func (v *Verifier) Client() *briteverify.Client { return v.client }

// Store exposes the job ledger.
func (v *Verifier) Store() storage.Store { return v.store }

// Close releases the ledger and publisher clients.
func (v *Verifier) Close() error {
	if v == nil {
		return nil
	}
	var errs []error
	if v.store != nil {
		if err := v.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := v.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VerifyOne runs a single verification and publishes the result.
func (v *Verifier) VerifyOne(ctx context.Context, record briteverify.ContactRecord) (*briteverify.VerificationResult, error) {
	res, err := v.client.VerifySingle(ctx, record)
	if err != nil {
		return nil, err
	}
	if _, err := v.fanout.Publish(ctx, publishers.NewEvent("", *res)); err != nil {
		v.log.WarnObj("publishing single result failed", "error", err.Error())
	}
	return res, nil
}

// RunBulk submits records, records the list in the ledger and drives it to
// completion. On *briteverify.TimeoutError the list stays pending in the
// ledger for Resume.
func (v *Verifier) RunBulk(ctx context.Context, records []briteverify.ContactRecord, source string) (*BulkOutcome, error) {
	job, err := v.client.SubmitBulk(ctx, records)
	if err != nil {
		return nil, err
	}
	rec := storage.RecordFromJob(*job)
	rec.Records = len(records)
	rec.Source = source
	if _, err := v.store.SaveJob(ctx, rec); err != nil {
		v.log.ErrorObj("ledger save failed", "error", err.Error())
	}
	v.log.InfoObj("bulk list submitted", "bulk_job", map[string]any{
		"id":      job.ID,
		"state":   job.State,
		"records": len(records),
		"source":  source,
	})
	return v.await(ctx, job.ID, records)
}

// Resume continues polling a list submitted earlier. Results cannot be
// correlated with external ids because the records are not kept.
func (v *Verifier) Resume(ctx context.Context, jobID string) (*BulkOutcome, error) {
	rec, err := v.store.Job(ctx, jobID)
	switch {
	case err == nil:
		v.log.InfoObj("resuming bulk list", "bulk_job", rec)
	case errors.Is(err, storage.ErrNotFound):
		v.log.WarnObj("resuming list missing from ledger", "job_id", jobID)
	default:
		return nil, err
	}
	return v.await(ctx, jobID, nil)
}

// ResumePending resumes every non-terminal list in the ledger, oldest first.
// A failing list does not stop the others.
func (v *Verifier) ResumePending(ctx context.Context) ([]*BulkOutcome, error) {
	pending, err := v.store.PendingJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending jobs: %w", err)
	}
	var (
		out  []*BulkOutcome
		errs []error
	)
	for _, rec := range pending {
		outcome, err := v.Resume(ctx, rec.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", rec.ID, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out = append(out, outcome)
	}
	return out, errors.Join(errs...)
}

func (v *Verifier) await(ctx context.Context, jobID string, records []briteverify.ContactRecord) (*BulkOutcome, error) {
	start := time.Now()
	job, err := v.client.WatchBulkJob(ctx, jobID, v.cfg.PollInterval, v.cfg.PollTimeout, func(j briteverify.BulkJob) {
		v.track(ctx, j)
	})
	if err != nil {
		var (
			timeout *briteverify.TimeoutError
			missing *briteverify.NotFoundError
		)
		switch {
		case errors.As(err, &timeout):
			v.log.WarnObj("bulk list still running; resume later", "bulk_job", map[string]any{
				"id":         jobID,
				"last_state": timeout.LastState,
				"waited_ms":  time.Since(start).Milliseconds(),
			})
		case errors.As(err, &missing):
			v.forget(ctx, jobID)
		}
		return nil, err
	}

	results, err := v.client.ResultsForJob(ctx, *job)
	if err != nil {
		return nil, fmt.Errorf("fetch results of list %s: %w", jobID, err)
	}
	if len(records) > 0 {
		briteverify.CorrelateResults(records, results)
	}

	outcome := &BulkOutcome{Job: *job, Results: results}
	outcome.Published, outcome.PublishErr = v.fanout.PublishResults(ctx, jobID, results)
	if outcome.PublishErr != nil {
		v.log.WarnObj("some results were not published", "bulk_publish", map[string]any{
			"id":    jobID,
			"error": outcome.PublishErr.Error(),
		})
	}

	v.log.InfoObj("bulk list finished", "bulk_job", map[string]any{
		"id":         jobID,
		"results":    len(results),
		"published":  outcome.Published,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return outcome, nil
}

// forget closes the ledger entry of a list the API no longer knows so
// ResumePending stops polling it.
func (v *Verifier) forget(ctx context.Context, jobID string) {
	rec, err := v.store.SaveJob(ctx, storage.RecordFromJob(briteverify.BulkJob{ID: jobID, State: briteverify.ListNotFound}))
	if err != nil {
		v.log.ErrorObj("ledger update failed", "error", err.Error())
		return
	}
	v.log.WarnObj("bulk list gone remotely; closed in ledger", "bulk_job", map[string]any{
		"id":    rec.ID,
		"state": rec.State,
		"phase": rec.Phase.String(),
	})
}

// track mirrors a status observation into the ledger.
func (v *Verifier) track(ctx context.Context, job briteverify.BulkJob) {
	rec, err := v.store.SaveJob(ctx, storage.RecordFromJob(job))
	if err != nil {
		v.log.ErrorObj("ledger update failed", "error", err.Error())
		return
	}
	v.log.DebugObj("bulk list status", "bulk_job", map[string]any{
		"id":       rec.ID,
		"state":    rec.State,
		"phase":    rec.Phase.String(),
		"progress": job.Progress,
	})
}
