// FILE: crashwatch/src/internal/workload/endurance.go
package workload

import (
	"context"
	"errors"
	"sync"
	"time"

	"crashwatch/src/internal/device"

	"golang.org/x/time/rate"
)

// windowCounts is accumulated locally by each worker and merged at the end
type windowCounts struct {
	requests int
	failures int
	crashed  bool
}

func (w *windowCounts) merge(o windowCounts) {
	w.requests += o.requests
	w.failures += o.failures
	w.crashed = w.crashed || o.crashed
}

// runEndurance paces requests at r per second for the window using the
// profile's workers sharing one limiter. It stops early on a crash under
// Abort, or when ctx ends.
func (d *Driver) runEndurance(ctx context.Context, r float64, window time.Duration, policy CrashPolicy) (windowCounts, error) {
	limiter := rate.NewLimiter(rate.Limit(r), 1)
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	workers := d.profile.Workers
	results := make(chan windowCounts, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			var local windowCounts
			defer func() { results <- local }()

			for {
				// Fails early when the next token would land past the window;
				// hold until the window really ends so callers see a full window
				if err := limiter.Wait(wctx); err != nil {
					<-wctx.Done()
					return
				}
				pausesBefore := d.pauses.Load()
				if err := d.gate(wctx, policy); err != nil {
					if errors.Is(err, ErrCrashDeclared) {
						local.crashed = true
						errs <- err
						cancel()
					} else if wctx.Err() == nil || ctx.Err() != nil {
						errs <- err
					}
					return
				}
				if d.pauses.Load() != pausesBefore {
					local.crashed = true
				}

				outcome := d.issue(worker, device.Request{Path: d.nextEndpoint()}, 0)
				local.requests++
				if !outcome.Succeeded() {
					local.failures++
				}
			}
		}(w)
	}

	wg.Wait()
	close(results)
	close(errs)

	var total windowCounts
	for c := range results {
		total.merge(c)
	}

	var firstErr error
	for err := range errs {
		if firstErr == nil || errors.Is(err, ErrCrashDeclared) {
			firstErr = err
		}
	}
	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	return total, firstErr
}
