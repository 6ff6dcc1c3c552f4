package briteverify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxRecordsPerRequest is the API's per-request contact limit.
	MaxRecordsPerRequest = 100_000
	// MaxRecordsPerJob is the API's per-list contact limit.
	MaxRecordsPerJob = 1_000_000
)

type listRequest struct {
	Contacts  []ContactRecord `json:"contacts,omitempty"`
	Directive Directive       `json:"directive,omitempty"`
}

// SubmitBulk creates a list from records and queues it for verification.
// Batches above MaxRecordsPerRequest are uploaded in several requests: the
// first creates the list, the rest append, and the last one starts it.
func (c *Client) SubmitBulk(ctx context.Context, records []ContactRecord) (*BulkJob, error) {
	contacts, err := prepareBatch(records)
	if err != nil {
		return nil, err
	}
	chunks := chunk(contacts, MaxRecordsPerRequest)
	if len(chunks) == 1 {
		return c.createList(ctx, listRequest{Contacts: chunks[0], Directive: DirectiveStart})
	}

	job, err := c.createList(ctx, listRequest{Contacts: chunks[0]})
	if err != nil {
		return nil, err
	}
	id := job.ID
	for i, part := range chunks[1:] {
		req := listRequest{Contacts: part}
		if i == len(chunks)-2 {
			req.Directive = DirectiveStart
		}
		if job, err = c.updateList(ctx, "append_bulk", id, req); err != nil {
			return nil, fmt.Errorf("upload chunk %d/%d of list %s: %w", i+2, len(chunks), id, err)
		}
	}
	return job, nil
}

func prepareBatch(records []ContactRecord) ([]ContactRecord, error) {
	if len(records) == 0 {
		return nil, &ValidationError{Field: "records", Reason: "batch is empty"}
	}
	if len(records) > MaxRecordsPerJob {
		return nil, &ValidationError{Field: "records", Reason: fmt.Sprintf("batch of %d exceeds the %d record limit", len(records), MaxRecordsPerJob)}
	}
	out := make([]ContactRecord, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = r.wire()
	}
	return out, nil
}

func chunk(records []ContactRecord, size int) [][]ContactRecord {
	var out [][]ContactRecord
	for len(records) > size {
		out = append(out, records[:size:size])
		records = records[size:]
	}
	return append(out, records)
}

func (c *Client) createList(ctx context.Context, req listRequest) (*BulkJob, error) {
	var env listEnvelope
	err := c.call(ctx, call{
		operation: "submit_bulk",
		method:    http.MethodPost,
		url:       c.v3URL("lists"),
		body:      req,
		accept:    []int{http.StatusOK, http.StatusCreated},
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.job("submit_bulk")
}

func (c *Client) updateList(ctx context.Context, op, jobID string, req listRequest) (*BulkJob, error) {
	if blank(jobID) {
		return nil, &ValidationError{Field: "job_id", Reason: "list id is required"}
	}
	var env listEnvelope
	err := c.call(ctx, call{
		operation: op,
		method:    http.MethodPost,
		url:       c.v3URL("lists", jobID),
		body:      req,
		accept:    []int{http.StatusOK, http.StatusCreated},
		jobID:     jobID,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.job(op)
}

func (e listEnvelope) job(op string) (*BulkJob, error) {
	if e.List == nil {
		return nil, fmt.Errorf("briteverify: %s: response has no list (status %q: %s)", op, e.Status, e.Message)
	}
	return e.List, nil
}

// AppendToBulkJob adds records to an open list without starting it.
func (c *Client) AppendToBulkJob(ctx context.Context, jobID string, records []ContactRecord) (*BulkJob, error) {
	contacts, err := prepareBatch(records)
	if err != nil {
		return nil, err
	}
	if len(contacts) > MaxRecordsPerRequest {
		return nil, &ValidationError{Field: "records", Reason: fmt.Sprintf("append of %d exceeds the %d per-request limit", len(contacts), MaxRecordsPerRequest)}
	}
	return c.updateList(ctx, "append_bulk", jobID, listRequest{Contacts: contacts})
}

// StartBulkJob queues an open list for verification.
func (c *Client) StartBulkJob(ctx context.Context, jobID string) (*BulkJob, error) {
	return c.updateList(ctx, "start_bulk", jobID, listRequest{Directive: DirectiveStart})
}

// TerminateBulkJob stops an open or running list.
func (c *Client) TerminateBulkJob(ctx context.Context, jobID string) (*BulkJob, error) {
	return c.updateList(ctx, "terminate_bulk", jobID, listRequest{Directive: DirectiveTerminate})
}

// DeleteBulkJob deletes a list. The API only allows it for prepped,
// complete, delivered or import_error lists.
func (c *Client) DeleteBulkJob(ctx context.Context, jobID string) (*BulkJob, error) {
	if blank(jobID) {
		return nil, &ValidationError{Field: "job_id", Reason: "list id is required"}
	}
	var env listEnvelope
	err := c.call(ctx, call{
		operation: "delete_bulk",
		method:    http.MethodDelete,
		url:       c.v3URL("lists", jobID),
		accept:    []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent},
		jobID:     jobID,
	}, &env)
	if err != nil {
		return nil, err
	}
	if env.List == nil {
		return &BulkJob{ID: jobID, State: ListDeleted}, nil
	}
	return env.List, nil
}

// GetBulkStatus fetches the current state of a list.
func (c *Client) GetBulkStatus(ctx context.Context, jobID string) (*BulkJob, error) {
	return c.getList(ctx, jobID, "")
}

// GetBulkStatusByExternalID fetches a list created under an account external id.
func (c *Client) GetBulkStatusByExternalID(ctx context.Context, externalID, jobID string) (*BulkJob, error) {
	if blank(externalID) {
		return nil, &ValidationError{Field: "external_id", Reason: "external id is required"}
	}
	return c.getList(ctx, jobID, externalID)
}

func (c *Client) getList(ctx context.Context, jobID, externalID string) (*BulkJob, error) {
	if blank(jobID) {
		return nil, &ValidationError{Field: "job_id", Reason: "list id is required"}
	}
	u := c.v3URL("lists", jobID)
	if externalID != "" {
		u = c.v3URL("accounts", externalID, "lists", jobID)
	}
	var job BulkJob
	err := c.call(ctx, call{
		operation: "get_bulk_status",
		method:    http.MethodGet,
		url:       u,
		accept:    []int{http.StatusOK},
		jobID:     jobID,
	}, &job)
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	if job.ExternalID == "" {
		job.ExternalID = externalID
	}
	return &job, nil
}

// GetBulkResults returns every result of a finished list in export order.
// Lists that are still queued or processing fail with *StateError, failed
// lists with *RemoteJobError.
func (c *Client) GetBulkResults(ctx context.Context, jobID string) ([]VerificationResult, error) {
	job, err := c.GetBulkStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return c.fetchResults(ctx, job)
}

func (c *Client) fetchResults(ctx context.Context, job *BulkJob) ([]VerificationResult, error) {
	switch phase := job.Phase(); phase {
	case PhaseQueued, PhaseProcessing:
		return nil, &StateError{JobID: job.ID, State: job.State, Phase: phase, Operation: "fetch results of"}
	case PhaseError:
		return nil, &RemoteJobError{JobID: job.ID, State: job.State, Errors: job.Errors}
	}
	if job.PageCount == nil {
		return nil, fmt.Errorf("list %s: %w", job.ID, ErrMissingPageCount)
	}
	pages := max(1, *job.PageCount)

	collected := make([][]VerificationResult, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.pageLimit)
	for i := range pages {
		g.Go(func() error {
			page, err := c.GetBulkResultsPage(gctx, job.ID, i+1)
			if err != nil {
				return err
			}
			collected[i] = page.Results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range collected {
		total += len(p)
	}
	out := make([]VerificationResult, 0, total)
	for _, p := range collected {
		out = append(out, p...)
	}
	return out, nil
}

// GetBulkResultsPage fetches one export page (1-based).
func (c *Client) GetBulkResultsPage(ctx context.Context, jobID string, page int) (*ResultsPage, error) {
	if blank(jobID) {
		return nil, &ValidationError{Field: "job_id", Reason: "list id is required"}
	}
	if page < 1 {
		return nil, &ValidationError{Field: "page", Reason: "pages start at 1"}
	}
	var out ResultsPage
	err := c.call(ctx, call{
		operation: "get_bulk_results_page",
		method:    http.MethodGet,
		url:       c.v3URL("lists", jobID, "export", strconv.Itoa(page)),
		accept:    []int{http.StatusOK},
		jobID:     jobID,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("results page %d of list %s: %w", page, jobID, err)
	}
	return &out, nil
}

// ListBulkJobs lists the account's bulk lists, optionally filtered.
func (c *Client) ListBulkJobs(ctx context.Context, filter ListFilter) (*ListsPage, error) {
	u := c.v3URL("lists")
	if ext := strings.TrimSpace(filter.ExternalID); ext != "" {
		u = c.v3URL("accounts", ext, "lists")
	}
	q := url.Values{}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if !filter.Date.IsZero() {
		q.Set("date", filter.Date.Format(filterDateLayout))
	}
	if filter.State != "" {
		if state := ParseListState(string(filter.State)); state.IsKnown() && state != ListUnknown {
			q.Set("state", string(state))
		} else {
			c.log.WarnObj("ignoring unknown list state filter", "state", filter.State)
		}
	}
	var out ListsPage
	err := c.call(ctx, call{
		operation: "list_bulk_jobs",
		method:    http.MethodGet,
		url:       u,
		query:     q,
		accept:    []int{http.StatusOK},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Lists == nil {
		out.Lists = []BulkJob{}
	}
	return &out, nil
}
