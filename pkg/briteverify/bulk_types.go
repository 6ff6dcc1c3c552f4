package briteverify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ListError is a diagnostic the bulk API attaches to lists and error responses.
// The API names the code field "status" or "code" depending on the endpoint.
type ListError struct {
	ListID  string `json:"list_id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e *ListError) UnmarshalJSON(data []byte) error {
	var w struct {
		ListID  json.RawMessage `json:"list_id"`
		Status  string          `json:"status"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := looseString(w.ListID)
	if err != nil {
		return fmt.Errorf("list_id: %w", err)
	}
	e.ListID = id
	e.Status = w.Status
	if e.Status == "" {
		e.Status = w.Code
	}
	e.Message = w.Message
	return nil
}

func (e ListError) String() string {
	switch {
	case e.Status != "" && e.Message != "":
		return e.Status + ": " + e.Message
	case e.Message != "":
		return e.Message
	}
	return e.Status
}

// reportsMissingList reports whether the diagnostic says the list does not
// exist. The bulk API answers some writes to unknown lists with a 400.
func (e *ListError) reportsMissingList() bool {
	if e == nil {
		return false
	}
	code := strings.ToLower(strings.TrimSpace(e.Status))
	if code == "not_found" || code == "notfound" || code == "list_not_found" {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "not found") && strings.Contains(msg, "list")
}

// BulkJob is a remote bulk verification list.
type BulkJob struct {
	ID                  string
	ExternalID          string
	State               ListState
	Progress            int
	TotalVerified       int
	TotalVerifiedEmails int
	TotalVerifiedPhones int
	// PageCount is nil until the API has paginated the results.
	PageCount      *int
	CreatedAt      time.Time
	ExpirationDate *time.Time
	ResultsPath    string
	Errors         []ListError
}

// Phase is the lifecycle phase derived from State.
func (j BulkJob) Phase() JobPhase { return j.State.Phase() }

type bulkJobJSON struct {
	ID                  string          `json:"id"`
	ExternalID          json.RawMessage `json:"external_id,omitempty"`
	AccountExternalID   json.RawMessage `json:"account_external_id,omitempty"`
	State               ListState       `json:"state"`
	Progress            json.RawMessage `json:"progress"`
	TotalVerified       json.RawMessage `json:"total_verified"`
	TotalVerifiedEmails json.RawMessage `json:"total_verified_emails"`
	TotalVerifiedPhones json.RawMessage `json:"total_verified_phones"`
	PageCount           json.RawMessage `json:"page_count"`
	CreatedAt           *string         `json:"created_at"`
	ExpirationDate      *string         `json:"expiration_date"`
	ResultsPath         *string         `json:"results_path"`
	Errors              []ListError     `json:"errors,omitempty"`
}

func (j *BulkJob) UnmarshalJSON(data []byte) error {
	var w bulkJobJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := BulkJob{ID: w.ID, State: w.State, Errors: w.Errors}
	if out.State == "" {
		out.State = ListUnknown
	}

	var err error
	if out.ExternalID, err = looseString(w.ExternalID); err != nil {
		return fmt.Errorf("external_id: %w", err)
	}
	if out.ExternalID == "" {
		if out.ExternalID, err = looseString(w.AccountExternalID); err != nil {
			return fmt.Errorf("account_external_id: %w", err)
		}
	}

	counters := []struct {
		name string
		raw  json.RawMessage
		dst  *int
	}{
		{"progress", w.Progress, &out.Progress},
		{"total_verified", w.TotalVerified, &out.TotalVerified},
		{"total_verified_emails", w.TotalVerifiedEmails, &out.TotalVerifiedEmails},
		{"total_verified_phones", w.TotalVerifiedPhones, &out.TotalVerifiedPhones},
	}
	for _, c := range counters {
		n, err := optionalInt(c.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		if n != nil {
			*c.dst = *n
		}
	}
	if out.PageCount, err = optionalInt(w.PageCount); err != nil {
		return fmt.Errorf("page_count: %w", err)
	}

	if created, err := optionalListTime(w.CreatedAt); err != nil {
		return fmt.Errorf("created_at: %w", err)
	} else if created != nil {
		out.CreatedAt = *created
	}
	if out.ExpirationDate, err = optionalListTime(w.ExpirationDate); err != nil {
		return fmt.Errorf("expiration_date: %w", err)
	}
	if w.ResultsPath != nil {
		out.ResultsPath = *w.ResultsPath
	}
	*j = out
	return nil
}

func (j BulkJob) MarshalJSON() ([]byte, error) {
	w := struct {
		ID                  string      `json:"id"`
		ExternalID          string      `json:"external_id,omitempty"`
		State               ListState   `json:"state"`
		Progress            int         `json:"progress"`
		TotalVerified       int         `json:"total_verified"`
		TotalVerifiedEmails int         `json:"total_verified_emails"`
		TotalVerifiedPhones int         `json:"total_verified_phones"`
		PageCount           *int        `json:"page_count"`
		CreatedAt           *string     `json:"created_at"`
		ExpirationDate      *string     `json:"expiration_date"`
		ResultsPath         *string     `json:"results_path"`
		Errors              []ListError `json:"errors,omitempty"`
	}{
		ID:                  j.ID,
		ExternalID:          j.ExternalID,
		State:               j.State,
		Progress:            j.Progress,
		TotalVerified:       j.TotalVerified,
		TotalVerifiedEmails: j.TotalVerifiedEmails,
		TotalVerifiedPhones: j.TotalVerifiedPhones,
		PageCount:           j.PageCount,
		Errors:              j.Errors,
	}
	if !j.CreatedAt.IsZero() {
		s := formatListTime(j.CreatedAt)
		w.CreatedAt = &s
	}
	if j.ExpirationDate != nil {
		s := formatListTime(*j.ExpirationDate)
		w.ExpirationDate = &s
	}
	if j.ResultsPath != "" {
		w.ResultsPath = &j.ResultsPath
	}
	return json.Marshal(w)
}

// listEnvelope wraps the list returned by create, update and delete calls.
type listEnvelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	List    *BulkJob `json:"list"`
}

var pageMessage = regexp.MustCompile(`(?i)page\s+(\d+)\s+of\s+(\d+)`)

// ListsPage is one page of ListBulkJobs results. Message carries
// "Page X of Y" when the API paginates.
type ListsPage struct {
	Message string    `json:"message,omitempty"`
	Lists   []BulkJob `json:"lists"`
}

// CurrentPage parses Message, defaulting to 1.
func (p ListsPage) CurrentPage() int {
	cur, _ := p.pages()
	return cur
}

// TotalPages parses Message, defaulting to 1.
func (p ListsPage) TotalPages() int {
	_, total := p.pages()
	return total
}

func (p ListsPage) pages() (int, int) {
	m := pageMessage.FindStringSubmatch(p.Message)
	if m == nil {
		return 1, 1
	}
	cur, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	return max(cur, 1), max(total, 1)
}

// ByID indexes the page's lists.
func (p ListsPage) ByID() map[string]BulkJob {
	out := make(map[string]BulkJob, len(p.Lists))
	for _, l := range p.Lists {
		out[l.ID] = l
	}
	return out
}

// ResultsPage is one export page of a completed list.
type ResultsPage struct {
	Status    string
	PageCount int
	Results   []VerificationResult
}

func (p *ResultsPage) UnmarshalJSON(data []byte) error {
	var w struct {
		Status   string               `json:"status"`
		NumPages json.RawMessage      `json:"num_pages"`
		Results  []VerificationResult `json:"results"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	n, err := optionalInt(w.NumPages)
	if err != nil {
		return fmt.Errorf("num_pages: %w", err)
	}
	p.Status = w.Status
	p.PageCount = 0
	if n != nil {
		p.PageCount = *n
	}
	p.Results = w.Results
	return nil
}

// ListFilter narrows ListBulkJobs. Zero values are omitted.
type ListFilter struct {
	Page       int
	Date       time.Time
	State      ListState
	ExternalID string
}
