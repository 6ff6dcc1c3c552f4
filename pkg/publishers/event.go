package publishers

import (
	"time"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// Event represents one verification result published downstream.
type Event struct {
	JobID       string                         `json:"job_id,omitempty"`
	ExternalID  string                         `json:"external_id,omitempty"`
	Status      briteverify.VerificationStatus `json:"status"`
	Result      briteverify.VerificationResult `json:"result"`
	CollectedAt time.Time                      `json:"collected_at"`
}

// NewEvent constructs an Event for a result. jobID is empty for single
// verifications.
func NewEvent(jobID string, res briteverify.VerificationResult) Event {
	return Event{
		JobID:       jobID,
		ExternalID:  res.ExternalID,
		Status:      res.Status(),
		Result:      res,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{"status": string(e.Status)}
	if e.JobID != "" {
		attrs["job_id"] = e.JobID
	}
	if e.ExternalID != "" {
		attrs["external_id"] = e.ExternalID
	}
	return attrs
}
