package publishers

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/briteverify-go/pkg/briteverify"
)

// Fanout delivers each event to every configured publisher.
type Fanout struct {
	publishers []Publisher
}

// NewFanout drops nil publishers and keeps the rest in order.
func NewFanout(pubs []Publisher) *Fanout {
	kept := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Fanout{publishers: kept}
}

// Publish returns the number of publishers that accepted evt. Publishers
// whose status filter rejects evt are neither counted nor failed.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.publishers) == 0 {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, p := range f.publishers {
		if sf, ok := p.(*statusFilter); ok && !sf.accepts(evt.Status) {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// PublishResults sends one event per result of jobID. A cancelled ctx stops
// the remaining results.
func (f *Fanout) PublishResults(ctx context.Context, jobID string, results []briteverify.VerificationResult) (int, error) {
	var (
		errs      []error
		delivered int
	)
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := f.Publish(ctx, NewEvent(jobID, res))
		delivered += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return delivered, errors.Join(errs...)
}

// Close releases publisher resources such as Pub/Sub clients.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.publishers)
}

// Size returns the number of active publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// statusFilter forwards only events whose status is in allow.
type statusFilter struct {
	Publisher
	allow map[briteverify.VerificationStatus]struct{}
}

func withStatusFilter(p Publisher, statuses []string) Publisher {
	if len(statuses) == 0 {
		return p
	}
	allow := make(map[briteverify.VerificationStatus]struct{}, len(statuses))
	for _, s := range statuses {
		allow[briteverify.ParseVerificationStatus(s)] = struct{}{}
	}
	return &statusFilter{Publisher: p, allow: allow}
}

func (s *statusFilter) accepts(status briteverify.VerificationStatus) bool {
	_, ok := s.allow[status]
	return ok
}

// Close closes the wrapped publisher when it holds resources.
func (s *statusFilter) Close() error {
	if c, ok := s.Publisher.(Closer); ok {
		return c.Close()
	}
	return nil
}

func closeAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		if c, ok := p.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", p.Type(), p.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
