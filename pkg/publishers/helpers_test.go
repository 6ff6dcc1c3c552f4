package publishers

import (
	"time"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

func sampleEvent() Event {
	return Event{
		JobID:      "job-7",
		ExternalID: "crm-1",
		Status:     briteverify.StatusValid,
		Result: briteverify.VerificationResult{
			Email:      &briteverify.EmailResult{Address: "sales@example.com", Status: briteverify.StatusValid},
			ExternalID: "crm-1",
		},
		CollectedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}
