// FILE: crashwatch/src/internal/workload/burst.go
package workload

import (
	"context"
	"sync"

	"crashwatch/src/internal/device"
)

// runBursts issues Concurrency simultaneous requests, waits for all of them
// to settle and repeats Bursts times with a fixed pause in between
func (d *Driver) runBursts(ctx context.Context, res *Result) error {
	for i := 0; i < d.profile.Bursts; i++ {
		if i > 0 {
			if err := sleep(ctx, d.profile.BurstPause); err != nil {
				return err
			}
		}
		if err := d.gate(ctx, d.profile.OnCrash); err != nil {
			return err
		}

		burst := BurstResult{Index: i, StartedAt: d.clock.Now(), Issued: d.profile.Concurrency}
		succeeded := make([]bool, d.profile.Concurrency)

		var wg sync.WaitGroup
		for w := 0; w < d.profile.Concurrency; w++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				outcome := d.issue(worker, device.Request{Path: d.nextEndpoint()}, 0)
				succeeded[worker] = outcome.Succeeded()
			}(w)
		}
		wg.Wait()

		for _, ok := range succeeded {
			if ok {
				burst.Succeeded++
			}
		}
		burst.Failed = burst.Succeeded < burst.Issued
		res.Bursts = append(res.Bursts, burst)

		if burst.Failed {
			d.logger.Warn("msg", "Burst failed",
				"component", "workload",
				"burst", i+1,
				"succeeded", burst.Succeeded,
				"concurrency", burst.Issued)
		} else {
			d.logger.Debug("msg", "Burst completed",
				"component", "workload",
				"burst", i+1)
		}
	}
	return nil
}
