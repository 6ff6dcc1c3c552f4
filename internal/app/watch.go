package app

import (
	"context"
	"fmt"
	"time"
)

// Watch resumes pending ledger lists every interval until ctx is cancelled.
// Each pass uses the configured poll timeout, so a list that is still running
// is retried on the next tick.
func (v *Verifier) Watch(ctx context.Context, interval time.Duration) error {
	if v == nil || v.client == nil {
		return fmt.Errorf("verifier is not initialized")
	}
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}

	v.log.InfoObj("ledger watch starting", "watch_state", map[string]any{
		"interval":         interval.String(),
		"poll_timeout":     v.cfg.PollTimeout.String(),
		"publishers_count": v.fanout.Size(),
	})

	v.watchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			v.log.InfoObj("ledger watch exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			v.watchOnce(ctx)
		}
	}
}

func (v *Verifier) watchOnce(ctx context.Context) {
	start := time.Now()
	outcomes, err := v.ResumePending(ctx)
	if err != nil && ctx.Err() == nil {
		v.log.WarnObj("some pending lists did not finish", "error", err.Error())
	}
	v.log.InfoObj("ledger pass completed", "watch_pass", map[string]any{
		"finished":   len(outcomes),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}
