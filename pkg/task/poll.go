package task

import (
	"context"
	"log/slog"
	"time"
)

// PollConfig tunes one polling loop.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	// Canceled is checked before every iteration; returning true stops the
	// loop with ErrCanceled without a final fetch.
	Canceled func() bool
	// OnProgress receives the clamped, monotonically non-decreasing
	// progress value in [0,100] whenever the vendor exposes one.
	OnProgress func(float64)
}

// Poll drives FetchResult at a fixed interval until the task reaches a
// terminal status, the overall timeout elapses, or the run is canceled.
// Transient fetch errors are swallowed and retried on the next interval;
// only a vendor-declared failure or the timeout ends the loop with an
// error.
func Poll(ctx context.Context, a Adapter, taskID string, vctx VendorContext, cfg PollConfig) (TaskResult, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProfile.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProfile.PollTimeout
	}

	deadline := time.Now().Add(cfg.Timeout)
	lastProgress := 0.0

	for {
		if cfg.Canceled != nil && cfg.Canceled() {
			return TaskResult{}, ErrCanceled
		}
		if time.Now().After(deadline) {
			return TaskResult{}, &TimeoutError{Vendor: a.Vendor(), TaskID: taskID, After: cfg.Timeout}
		}

		res, err := a.FetchResult(ctx, taskID, vctx)
		switch {
		case err == nil:
			if cfg.OnProgress != nil {
				p := res.Progress
				if p < 0 {
					p = 0
				}
				if p > 100 {
					p = 100
				}
				if p > lastProgress {
					lastProgress = p
				}
				cfg.OnProgress(lastProgress)
			}
			switch res.Status {
			case StatusSucceeded:
				return res, nil
			case StatusFailed:
				return res, &TaskFailedError{Vendor: a.Vendor(), TaskID: taskID, Reason: res.FailReason}
			}
			// still running — fall through to the interval sleep
		case Transient(err):
			slog.Debug("transient poll error", "vendor", a.Vendor(), "task", taskID, "error", err)
		default:
			return TaskResult{}, err
		}

		select {
		case <-ctx.Done():
			return TaskResult{}, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
}
