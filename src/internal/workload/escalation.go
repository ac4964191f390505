// FILE: crashwatch/src/internal/workload/escalation.go
package workload

import (
	"context"
	"errors"
	"math"
)

// runEscalation runs endurance windows at a geometrically increasing rate
// until a crash, the safety cap or the step bound. Escalation always stops at
// the first crash; the crash policy only decides whether that is reported as
// an abort.
func (d *Driver) runEscalation(ctx context.Context, res *Result) error {
	r := d.profile.StartRate
	for step := 0; step < d.profile.MaxSteps; step++ {
		started := d.clock.Now()
		counts, err := d.runEndurance(ctx, r, d.profile.StepWindow, Abort)

		res.Steps = append(res.Steps, StepResult{
			Index:     step,
			Rate:      r,
			StartedAt: started,
			Requests:  counts.requests,
			Failures:  counts.failures,
			Crashed:   counts.crashed,
		})
		d.logger.Info("msg", "Escalation step finished",
			"component", "workload",
			"step", step+1,
			"rate", r,
			"requests", counts.requests,
			"failures", counts.failures,
			"crashed", counts.crashed)

		if err != nil {
			if errors.Is(err, ErrCrashDeclared) && d.profile.OnCrash == Pause {
				return nil
			}
			return err
		}
		if counts.failures == 0 && counts.requests > 0 {
			res.MaxSustainedRate = r
		}

		if r >= d.profile.SafetyCap {
			d.logger.Info("msg", "Escalation reached safety cap",
				"component", "workload",
				"safety_cap", d.profile.SafetyCap)
			return nil
		}
		r = math.Min(r*d.profile.Multiplier, d.profile.SafetyCap)
	}
	return nil
}
