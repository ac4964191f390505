// FILE: crashwatch/src/internal/workload/sweep.go
package workload

import (
	"context"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/device"
)

// runSweep posts one payload per size in ascending order, settling between
// sizes, and notes the size after which the device went down
func (d *Driver) runSweep(ctx context.Context, res *Result) error {
	for _, size := range d.profile.PayloadSizes {
		if err := d.gate(ctx, d.profile.OnCrash); err != nil {
			return err
		}

		outcome := d.issue(0, device.Request{
			Method:      "POST",
			Path:        d.profile.PayloadPath,
			Body:        device.PayloadBody(size),
			ContentType: "application/json",
		}, size)

		pr := PayloadResult{
			Size:     size,
			Kind:     outcome.Kind,
			Status:   outcome.Status,
			Accepted: outcome.Succeeded(),
		}
		if outcome.Stats != nil {
			pr.FreeHeap = outcome.Stats.FreeHeap
		}

		if err := sleep(ctx, d.profile.Settle); err != nil {
			res.Payloads = append(res.Payloads, pr)
			return err
		}

		if d.live.State() == core.StateDown {
			pr.DownAfter = true
			if res.CrashAtSize == 0 {
				res.CrashAtSize = size
			}
			d.logger.Warn("msg", "Device went down after payload",
				"component", "workload",
				"size", size)
		} else if pr.Accepted && size > res.LargestAccepted {
			res.LargestAccepted = size
		}
		res.Payloads = append(res.Payloads, pr)
	}
	return nil
}
