package briteverify

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is used when a non-positive poll interval is given.
const DefaultPollInterval = 5 * time.Second

// RunBulkVerification submits records, waits for the list to finish and
// returns its results with each record's ExternalID copied onto the matching
// result. A non-positive timeout waits until ctx is cancelled.
//
// On *TimeoutError the list keeps running remotely; poll it again with
// WaitForBulkJob using the JobID carried by the error.
func (c *Client) RunBulkVerification(ctx context.Context, records []ContactRecord, pollInterval, timeout time.Duration) ([]VerificationResult, error) {
	job, err := c.SubmitBulk(ctx, records)
	if err != nil {
		return nil, err
	}
	c.log.InfoObj("bulk list submitted", "list", map[string]interface{}{"id": job.ID, "state": job.State, "records": len(records)})

	done, err := c.WaitForBulkJob(ctx, job.ID, pollInterval, timeout)
	if err != nil {
		return nil, err
	}
	results, err := c.ResultsForJob(ctx, *done)
	if err != nil {
		return nil, err
	}
	CorrelateResults(records, results)
	return results, nil
}

// WaitForBulkJob polls a list until it reaches a terminal phase. It polls
// immediately and then every pollInterval.
func (c *Client) WaitForBulkJob(ctx context.Context, jobID string, pollInterval, timeout time.Duration) (*BulkJob, error) {
	return c.WatchBulkJob(ctx, jobID, pollInterval, timeout, nil)
}

// WatchBulkJob is WaitForBulkJob with a callback invoked on every accepted
// observation. Observations that would move the list to an earlier phase are
// logged and dropped, so onUpdate only ever sees a monotonic sequence.
func (c *Client) WatchBulkJob(ctx context.Context, jobID string, pollInterval, timeout time.Duration, onUpdate func(BulkJob)) (*BulkJob, error) {
	if blank(jobID) {
		return nil, &ValidationError{Field: "job_id", Reason: "list id is required"}
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		observed  = PhaseQueued
		lastState = ListUnknown
	)
	aborted := func() error {
		if err := parent.Err(); err != nil {
			return fmt.Errorf("wait for list %s: %w", jobID, err)
		}
		return &TimeoutError{JobID: jobID, Timeout: timeout, LastState: lastState}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetBulkStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, aborted()
			}
			return nil, err
		}

		phase := job.Phase()
		if phase < observed {
			c.log.WarnObj("ignoring list status that moves backwards", "list", map[string]interface{}{
				"id": jobID, "observed": observed.String(), "reported": phase.String(), "state": job.State,
			})
		} else {
			observed, lastState = phase, job.State
			if onUpdate != nil {
				onUpdate(*job)
			}
			switch phase {
			case PhaseComplete:
				return job, nil
			case PhaseError:
				return nil, &RemoteJobError{JobID: jobID, State: job.State, Errors: job.Errors}
			}
		}

		select {
		case <-ctx.Done():
			return nil, aborted()
		case <-ticker.C:
		}
	}
}

// ResultsForJob fetches the results of a list already observed as complete,
// without polling its status again.
func (c *Client) ResultsForJob(ctx context.Context, job BulkJob) ([]VerificationResult, error) {
	return c.fetchResults(ctx, &job)
}

// CorrelateResults copies ExternalIDs from records onto results, matching by
// email, then phone, then address line 1. When both slices have the same
// length, results left unmatched take the unmatched records in order.
func CorrelateResults(records []ContactRecord, results []VerificationResult) {
	if !anyExternalID(records) {
		return
	}
	byKey := make(map[string][]int)
	for i, r := range records {
		if r.ExternalID == "" {
			continue
		}
		if k := r.correlationKey(); k != "" {
			byKey[k] = append(byKey[k], i)
		}
	}

	used := make(map[int]bool)
	for i := range results {
		k := results[i].correlationKey()
		queue := byKey[k]
		if len(queue) == 0 {
			continue
		}
		results[i].ExternalID = records[queue[0]].ExternalID
		used[queue[0]] = true
		byKey[k] = queue[1:]
	}

	if len(records) != len(results) {
		return
	}
	var leftRecords, leftResults []int
	for i := range records {
		if !used[i] {
			leftRecords = append(leftRecords, i)
		}
	}
	for i := range results {
		if results[i].ExternalID == "" {
			leftResults = append(leftResults, i)
		}
	}
	if len(leftRecords) != len(leftResults) {
		return
	}
	for n, i := range leftResults {
		results[i].ExternalID = records[leftRecords[n]].ExternalID
	}
}

func anyExternalID(records []ContactRecord) bool {
	for _, r := range records {
		if r.ExternalID != "" {
			return true
		}
	}
	return false
}
