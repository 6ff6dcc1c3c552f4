package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/samvad-hq/briteverify-go/internal/app"
	"github.com/samvad-hq/briteverify-go/internal/config"
	"github.com/samvad-hq/briteverify-go/internal/logger"
	"github.com/samvad-hq/briteverify-go/internal/storage"
	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

type env struct {
	cfg      *config.Config
	verifier *app.Verifier
	flags    *pflag.FlagSet
	args     []string
	out      io.Writer
	log      logger.Logger
}

type command func(ctx context.Context, e *env) error

var commands = map[string]command{
	"balance":   balanceCmd,
	"verify":    verifyCmd,
	"bulk":      bulkCmd,
	"status":    statusCmd,
	"results":   resultsCmd,
	"lists":     listsCmd,
	"pending":   pendingCmd,
	"resume":    resumeCmd,
	"watch":     watchCmd,
	"terminate": terminateCmd,
	"delete":    deleteCmd,
}

func registerCommandFlags(fs *pflag.FlagSet) {
	fs.StringP("file", "f", "", "contacts file (.csv, .json, .yaml or one contact per line)")
	fs.Int("page", 0, "page number for lists and results")
	fs.String("state", "", "filter lists by state")
	fs.String("date", "", "filter lists by creation date (YYYY-MM-DD)")
	fs.String("external-id", "", "account external id owning the list")
}

func balanceCmd(ctx context.Context, e *env) error {
	balance, err := e.verifier.Client().GetAccountBalance(ctx)
	if err != nil {
		return err
	}
	e.log.InfoObj("account balance", "balance", map[string]any{
		"credits":            humanize.Comma(int64(balance.Credits)),
		"credits_in_reserve": humanize.Comma(int64(balance.CreditsInReserve)),
		"recorded":           humanize.Time(balance.RecordedOn),
	})
	return writeJSON(e.out, balance)
}

func verifyCmd(ctx context.Context, e *env) error {
	records, err := contactsFromArgs(e)
	if err != nil {
		return err
	}
	results := make([]briteverify.VerificationResult, 0, len(records))
	for _, rec := range records {
		res, err := e.verifier.VerifyOne(ctx, rec)
		if err != nil {
			return err
		}
		results = append(results, *res)
	}
	return writeJSON(e.out, results)
}

func bulkCmd(ctx context.Context, e *env) error {
	records, err := contactsFromArgs(e)
	if err != nil {
		return err
	}
	source, _ := e.flags.GetString("file")
	if source == "" {
		source = "cli"
	}
	started := time.Now()
	outcome, err := e.verifier.RunBulk(ctx, records, source)
	if err != nil {
		var timeout *briteverify.TimeoutError
		if errors.As(err, &timeout) {
			return fmt.Errorf("%w; run `briteverify resume %s` later", err, timeout.JobID)
		}
		return err
	}
	e.log.InfoObj("bulk verification done", "bulk_summary", map[string]any{
		"list":    outcome.Job.ID,
		"results": humanize.Comma(int64(len(outcome.Results))),
		"took":    humanize.RelTime(started, time.Now(), "", ""),
	})
	return writeJSON(e.out, outcome)
}

func statusCmd(ctx context.Context, e *env) error {
	id, err := oneArg(e, "list-id")
	if err != nil {
		return err
	}
	externalID, _ := e.flags.GetString("external-id")
	var job *briteverify.BulkJob
	if externalID != "" {
		job, err = e.verifier.Client().GetBulkStatusByExternalID(ctx, externalID, id)
	} else {
		job, err = e.verifier.Client().GetBulkStatus(ctx, id)
	}
	if err != nil {
		return err
	}
	return writeJSON(e.out, job)
}

func resultsCmd(ctx context.Context, e *env) error {
	id, err := oneArg(e, "list-id")
	if err != nil {
		return err
	}
	page, _ := e.flags.GetInt("page")
	if page > 0 {
		res, err := e.verifier.Client().GetBulkResultsPage(ctx, id, page)
		if err != nil {
			return err
		}
		return writeJSON(e.out, res)
	}
	results, err := e.verifier.Client().GetBulkResults(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(e.out, results)
}

func listsCmd(ctx context.Context, e *env) error {
	filter, err := listFilterFromFlags(e.flags)
	if err != nil {
		return err
	}
	page, err := e.verifier.Client().ListBulkJobs(ctx, filter)
	if err != nil {
		return err
	}
	return writeJSON(e.out, page)
}

func listFilterFromFlags(fs *pflag.FlagSet) (briteverify.ListFilter, error) {
	var filter briteverify.ListFilter
	filter.Page, _ = fs.GetInt("page")
	filter.ExternalID, _ = fs.GetString("external-id")
	if state, _ := fs.GetString("state"); state != "" {
		filter.State = briteverify.ParseListState(state)
	}
	if date, _ := fs.GetString("date"); date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return filter, fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
		}
		filter.Date = d
	}
	return filter, nil
}

func pendingCmd(ctx context.Context, e *env) error {
	pending, err := e.verifier.Store().PendingJobs(ctx)
	if err != nil {
		return err
	}
	for _, rec := range pending {
		e.log.InfoObj("pending list", "ledger_job", map[string]any{
			"id":        rec.ID,
			"state":     rec.State,
			"submitted": humanize.Time(rec.SubmittedAt),
		})
	}
	return writeJSON(e.out, pending)
}

func resumeCmd(ctx context.Context, e *env) error {
	if len(e.args) == 0 {
		outcomes, err := e.verifier.ResumePending(ctx)
		if werr := writeJSON(e.out, outcomes); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}
	outcomes := make([]*app.BulkOutcome, 0, len(e.args))
	var errs []error
	for _, id := range e.args {
		outcome, err := e.verifier.Resume(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", id, err))
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	if err := writeJSON(e.out, outcomes); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func watchCmd(ctx context.Context, e *env) error {
	return e.verifier.Watch(ctx, e.cfg.ResumeInterval)
}

func terminateCmd(ctx context.Context, e *env) error {
	id, err := oneArg(e, "list-id")
	if err != nil {
		return err
	}
	job, err := e.verifier.Client().TerminateBulkJob(ctx, id)
	if err != nil {
		return err
	}
	if _, err := e.verifier.Store().SaveJob(ctx, storage.RecordFromJob(*job)); err != nil {
		e.log.WarnObj("ledger update failed", "error", err.Error())
	}
	return writeJSON(e.out, job)
}

func deleteCmd(ctx context.Context, e *env) error {
	id, err := oneArg(e, "list-id")
	if err != nil {
		return err
	}
	job, err := e.verifier.Client().DeleteBulkJob(ctx, id)
	if err != nil {
		return err
	}
	if err := e.verifier.Store().DeleteJob(ctx, id); err != nil {
		e.log.WarnObj("ledger delete failed", "error", err.Error())
	}
	return writeJSON(e.out, job)
}

func oneArg(e *env, name string) (string, error) {
	if len(e.args) != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument, got %d", name, len(e.args))
	}
	return e.args[0], nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
