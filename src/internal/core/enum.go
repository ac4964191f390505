// FILE: crashwatch/src/internal/core/enum.go
package core

import (
	"fmt"
	"strings"
)

// Category of a classified log incident
type Category string

// Categories in default rule priority order
const (
	CategoryPanic          Category = "PANIC"
	CategoryCPUException   Category = "CPU_EXCEPTION"
	CategoryAssertion      Category = "ASSERTION"
	CategoryMemoryAlloc    Category = "MEMORY_ALLOC"
	CategoryStackOverflow  Category = "STACK_OVERFLOW"
	CategoryHeapCorruption Category = "HEAP_CORRUPTION"
	CategoryWatchdog       Category = "WATCHDOG"
	CategoryTaskCreate     Category = "TASK_CREATE"
	CategoryWiFi           Category = "WIFI"
	CategoryHTTPServer     Category = "HTTP_SERVER"
	CategorySocket         Category = "SOCKET"
	CategoryPower          Category = "POWER"
	CategoryStorage        Category = "STORAGE"
	CategoryLogError       Category = "LOG_ERROR"
	CategoryAppError       Category = "APP_ERROR"
	CategoryGenericFailure Category = "GENERIC_FAILURE"
)

// Categories lists every category in priority order
var Categories = []Category{
	CategoryPanic, CategoryCPUException, CategoryAssertion, CategoryMemoryAlloc,
	CategoryStackOverflow, CategoryHeapCorruption, CategoryWatchdog, CategoryTaskCreate,
	CategoryWiFi, CategoryHTTPServer, CategorySocket, CategoryPower, CategoryStorage,
	CategoryLogError, CategoryAppError, CategoryGenericFailure,
}

// ParseCategory accepts any case
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category: %s", s)
}

// Severity of an incident or candidate cause
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank orders severities, lower is more severe
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// ParseSeverity accepts any case
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev.Rank() > 3 {
		return "", fmt.Errorf("unknown severity: %s", s)
	}
	return sev, nil
}

// OutcomeKind is the tagged result of a request or probe
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeHTTPError       OutcomeKind = "http_error"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeConnectionError OutcomeKind = "connection_error"
)

// LivenessState of the device as declared by the supervisor
type LivenessState string

const (
	StateUp   LivenessState = "UP"
	StateDown LivenessState = "DOWN"
)

// CrashTrigger names the threshold that opened a crash window
type CrashTrigger string

const (
	TriggerConsecutiveFailures CrashTrigger = "consecutive_failures"
	TriggerSilence             CrashTrigger = "silence"
)

// ProfileKind selects a workload profile
type ProfileKind string

const (
	ProfileEndurance       ProfileKind = "ENDURANCE"
	ProfileConcurrentBurst ProfileKind = "CONCURRENT_BURST"
	ProfileRateEscalation  ProfileKind = "RATE_ESCALATION"
	ProfilePayloadSweep    ProfileKind = "PAYLOAD_SWEEP"
)

// ParseProfileKind accepts any case and '-' in place of '_'
func ParseProfileKind(s string) (ProfileKind, error) {
	k := ProfileKind(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case ProfileEndurance, ProfileConcurrentBurst, ProfileRateEscalation, ProfilePayloadSweep:
		return k, nil
	}
	return "", fmt.Errorf("unknown load profile: %s", s)
}

// Verdict is the run-level conclusion
type Verdict string

const (
	VerdictClean            Verdict = "clean"
	VerdictRecovered        Verdict = "recovered"
	VerdictPermanentFailure Verdict = "permanent_failure"
	VerdictUnreachable      Verdict = "unreachable"
	VerdictAborted          Verdict = "aborted"
)
