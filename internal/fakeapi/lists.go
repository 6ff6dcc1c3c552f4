package fakeapi

import (
	"time"
)

const listTimeLayout = "01-02-2006 03:04 pm"

// list is the server-side state of one bulk list.
type list struct {
	id         string
	externalID string
	state      string
	contacts   []Contact
	polls      int
	progress   int
	createdAt  time.Time
	startedAt  time.Time
	errors     []map[string]string
}

func (l *list) counts() (total, emails, phones int) {
	for _, c := range l.contacts {
		total++
		if c.Email != "" {
			emails++
		}
		if c.Phone != "" {
			phones++
		}
	}
	return total, emails, phones
}

func (l *list) pageCount(pageSize int) int {
	return (len(l.contacts) + pageSize - 1) / pageSize
}

// body renders the list object as the v3 API does.
func (l *list) body(pageSize int, baseURL string) map[string]any {
	total, emails, phones := l.counts()
	out := map[string]any{
		"id":                    l.id,
		"state":                 l.state,
		"progress":              l.progress,
		"total_verified":        0,
		"total_verified_emails": 0,
		"total_verified_phones": 0,
		"created_at":            l.createdAt.UTC().Format(listTimeLayout),
		"page_count":            nil,
		"results_path":          nil,
		"expiration_date":       nil,
	}
	if l.externalID != "" {
		out["account_external_id"] = l.externalID
	}
	if l.state == "complete" {
		out["total_verified"] = total
		out["total_verified_emails"] = emails
		out["total_verified_phones"] = phones
		out["page_count"] = l.pageCount(pageSize)
		out["results_path"] = baseURL + "/lists/" + l.id + "/export/1"
		out["expiration_date"] = l.startedAt.Add(7 * 24 * time.Hour).UTC().Format(listTimeLayout)
	}
	if len(l.errors) > 0 {
		out["errors"] = l.errors
	}
	return out
}

// advance moves a started list one poll further. A list completes on its
// completeAfter-th status poll; failState, when set, replaces completion.
func (l *list) advance(completeAfter int, failState string) {
	if l.state != "pending" && l.state != "verifying" {
		return
	}
	l.polls++
	if l.polls < completeAfter {
		l.state = "verifying"
		l.progress = l.polls * 100 / completeAfter
		return
	}
	l.finish(failState)
}

func (l *list) finish(failState string) {
	if failState != "" {
		l.state = failState
		l.errors = append(l.errors, map[string]string{"code": failState, "message": "list processing failed"})
		return
	}
	l.state = "complete"
	l.progress = 100
}

func (l *list) open() bool {
	return l.state == "open"
}

func (l *list) running() bool {
	return l.state == "pending" || l.state == "verifying"
}
