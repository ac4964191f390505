// FILE: crashwatch/src/internal/workload/profile.go
package workload

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"
)

// CrashPolicy decides what a driver does once a crash is declared
type CrashPolicy string

const (
	// Abort ends the profile with ErrCrashDeclared
	Abort CrashPolicy = "abort"
	// Pause waits for recovery, bounded by the supervisor's own limit, then continues
	Pause CrashPolicy = "pause"
)

// Profile is an immutable load profile. Only the fields of Kind are used.
type Profile struct {
	Kind           core.ProfileKind
	Endpoints      []string
	Method         string
	RequestTimeout time.Duration
	OnCrash        CrashPolicy

	// ENDURANCE
	Rate     float64
	Duration time.Duration
	Workers  int

	// CONCURRENT_BURST
	Concurrency int
	Bursts      int
	BurstPause  time.Duration

	// RATE_ESCALATION
	StartRate  float64
	Multiplier float64
	SafetyCap  float64
	StepWindow time.Duration
	MaxSteps   int

	// PAYLOAD_SWEEP
	PayloadPath  string
	PayloadSizes []int
	Settle       time.Duration
}

// FromConfig builds a profile from the [workload] section
func FromConfig(cfg config.WorkloadConfig) (Profile, error) {
	kind, err := core.ParseProfileKind(cfg.Profile)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		Kind:           kind,
		Endpoints:      slices.Clone(cfg.Endpoints),
		Method:         strings.ToUpper(cfg.Method),
		RequestTimeout: config.Millis(cfg.RequestTimeoutMS),
		OnCrash:        CrashPolicy(cfg.OnCrash),
		Rate:           cfg.Rate,
		Duration:       config.Millis(cfg.DurationMS),
		Workers:        int(cfg.Workers),
		Concurrency:    int(cfg.Concurrency),
		Bursts:         int(cfg.Bursts),
		BurstPause:     config.Millis(cfg.BurstPauseMS),
		StartRate:      cfg.StartRate,
		Multiplier:     cfg.Multiplier,
		SafetyCap:      cfg.SafetyCap,
		StepWindow:     config.Millis(cfg.StepWindowMS),
		MaxSteps:       int(cfg.MaxSteps),
		PayloadPath:    cfg.PayloadPath,
		Settle:         config.Millis(cfg.SettleMS),
	}
	for _, size := range cfg.PayloadSizes {
		p.PayloadSizes = append(p.PayloadSizes, int(size))
	}
	return p, p.normalize()
}

// normalize fills defaults and rejects profiles that cannot run
func (p *Profile) normalize() error {
	if p.Method == "" {
		p.Method = "GET"
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 5 * time.Second
	}
	if p.OnCrash == "" {
		p.OnCrash = Abort
	}
	if p.OnCrash != Abort && p.OnCrash != Pause {
		return fmt.Errorf("invalid crash policy '%s'", p.OnCrash)
	}

	switch p.Kind {
	case core.ProfileEndurance:
		if p.Rate <= 0 || p.Duration <= 0 {
			return fmt.Errorf("endurance requires positive rate and duration")
		}
		if p.Workers < 1 {
			p.Workers = 1
		}
	case core.ProfileConcurrentBurst:
		if p.Concurrency < 1 || p.Bursts < 1 {
			return fmt.Errorf("concurrent burst requires positive concurrency and burst count")
		}
	case core.ProfileRateEscalation:
		if p.StartRate <= 0 || p.Multiplier <= 1 || p.SafetyCap < p.StartRate {
			return fmt.Errorf("rate escalation requires start_rate > 0, multiplier > 1 and safety_cap >= start_rate")
		}
		if p.StepWindow <= 0 {
			p.StepWindow = 10 * time.Second
		}
		if p.MaxSteps < 1 {
			p.MaxSteps = 32
		}
		if p.Workers < 1 {
			p.Workers = 1
		}
	case core.ProfilePayloadSweep:
		if p.PayloadPath == "" && len(p.Endpoints) > 0 {
			p.PayloadPath = p.Endpoints[0]
		}
		if p.PayloadPath == "" || len(p.PayloadSizes) == 0 {
			return fmt.Errorf("payload sweep requires a path and at least one size")
		}
		p.PayloadSizes = slices.Clone(p.PayloadSizes)
		slices.Sort(p.PayloadSizes)
		return nil
	default:
		return fmt.Errorf("unknown profile kind '%s'", p.Kind)
	}

	if len(p.Endpoints) == 0 {
		return fmt.Errorf("%s requires at least one endpoint", p.Kind)
	}
	return nil
}
