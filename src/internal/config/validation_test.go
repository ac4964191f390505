// FILE: crashwatch/src/internal/config/validation_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, int64(23), cfg.LogStream.Port)
	assert.Equal(t, int64(20), cfg.Classifier.ContextLines)
	assert.Equal(t, int64(3), cfg.Probe.FailureThreshold)
	assert.Equal(t, int64(10000), cfg.Probe.SilenceTimeoutMS)
	assert.Equal(t, int64(5000), cfg.Correlation.WindowMS)
}

func TestValidate_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "MissingHost",
			mutate:  func(c *Config) { c.Device.Host = "" },
			message: "device: missing host",
		},
		{
			name:    "BadOverflow",
			mutate:  func(c *Config) { c.LogStream.Overflow = "drop_newest" },
			message: "invalid overflow policy",
		},
		{
			name:    "LogStreamDisabledSkipsPort",
			mutate:  func(c *Config) { c.LogStream.Enabled = false; c.LogStream.Port = 0 },
			message: "",
		},
		{
			name: "InvalidRuleRegex",
			mutate: func(c *Config) {
				c.Classifier.Rules = []RuleConfig{{Pattern: "[", Category: "PANIC", Severity: "CRITICAL"}}
			},
			message: "invalid regex",
		},
		{
			name: "UnknownRuleCategory",
			mutate: func(c *Config) {
				c.Classifier.Rules = []RuleConfig{{Pattern: "boom", Category: "EXPLOSION", Severity: "HIGH"}}
			},
			message: "unknown category",
		},
		{
			name:    "ProbeTimeoutAboveInterval",
			mutate:  func(c *Config) { c.Probe.TimeoutMS = 5000 },
			message: "cannot exceed interval_ms",
		},
		{
			name:    "UnknownProfile",
			mutate:  func(c *Config) { c.Workload.Profile = "soak" },
			message: "unknown load profile",
		},
		{
			name: "EscalationMultiplierTooSmall",
			mutate: func(c *Config) {
				c.Workload.Profile = "rate-escalation"
				c.Workload.Multiplier = 1
			},
			message: "multiplier must be greater than 1",
		},
		{
			name: "PayloadSweepNegativeSize",
			mutate: func(c *Config) {
				c.Workload.Profile = "payload_sweep"
				c.Workload.PayloadSizes = []int64{10, -1}
			},
			message: "negative size",
		},
		{
			name:    "BadOnCrash",
			mutate:  func(c *Config) { c.Workload.OnCrash = "retry" },
			message: "invalid on_crash",
		},
		{
			name:    "BadReportFormat",
			mutate:  func(c *Config) { c.Report.Format = "xml" },
			message: "invalid format",
		},
		{
			name: "MetricsHostname",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Listen = "localhost:9464"
			},
			message: "must be an IP address",
		},
		{
			name:    "BadLogLevel",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			message: "invalid level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.message == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidate_NilLoggingGetsDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Logging = nil
	require.NoError(t, Validate(cfg))
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestGetConfigPath(t *testing.T) {
	dir := t.TempDir()

	t.Run("ExplicitFileRelativeToDir", func(t *testing.T) {
		t.Setenv("CRASHWATCH_CONFIG_FILE", "run.toml")
		t.Setenv("CRASHWATCH_CONFIG_DIR", dir)
		assert.Equal(t, filepath.Join(dir, "run.toml"), GetConfigPath())
	})

	t.Run("AbsoluteFileWins", func(t *testing.T) {
		abs := filepath.Join(dir, "abs.toml")
		t.Setenv("CRASHWATCH_CONFIG_FILE", abs)
		t.Setenv("CRASHWATCH_CONFIG_DIR", "/elsewhere")
		assert.Equal(t, abs, GetConfigPath())
	})

	t.Run("DirOnly", func(t *testing.T) {
		t.Setenv("CRASHWATCH_CONFIG_FILE", "")
		t.Setenv("CRASHWATCH_CONFIG_DIR", dir)
		assert.Equal(t, filepath.Join(dir, "crashwatch.toml"), GetConfigPath())
	})
}

func TestWriteTemplate_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte("# existing\n"), 0o644))

	err := Defaults().WriteTemplate(path, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# existing\n", string(data))
}
