// FILE: crashwatch/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Device: DeviceConfig{
			Host:     "esp32-dashboard.local",
			HTTPPort: 80,
			MaxConns: 16,
		},
		LogStream: LogStreamConfig{
			Enabled:       true,
			Port:          23,
			DialTimeoutMS: 5000,
			QueueSize:     1000,
			Overflow:      OverflowDropOldest,
			Reconnect: ReconnectConfig{
				Enabled:     false,
				MaxAttempts: 5,
				BackoffMS:   2000,
			},
			Capture: CaptureConfig{
				Enabled:        false,
				Directory:      "./capture",
				Name:           "device",
				MaxSizeMB:      50,
				MaxTotalSizeMB: 500,
			},
		},
		Classifier: ClassifierConfig{
			ContextLines: 20,
		},
		Probe: ProbeConfig{
			Path:              "/health",
			IntervalMS:        2000,
			TimeoutMS:         2000,
			FailureThreshold:  3,
			SilenceTimeoutMS:  10000,
			MaxRecoveryWaitMS: 60000,
		},
		Workload: WorkloadConfig{
			Profile:          "endurance",
			Endpoints:        []string{"/api/metrics"},
			Method:           "GET",
			RequestTimeoutMS: 5000,
			OnCrash:          OnCrashAbort,
			Rate:             1,
			DurationMS:       60000,
			Workers:          1,
			Concurrency:      5,
			Bursts:           10,
			BurstPauseMS:     2000,
			StartRate:        0.5,
			Multiplier:       1.5,
			SafetyCap:        20,
			StepWindowMS:     10000,
			MaxSteps:         32,
			PayloadPath:      "/api/config",
			PayloadSizes:     []int64{100, 500, 1000, 2000, 5000, 10000, 20000, 50000},
			SettleMS:         2000,
		},
		Correlation: CorrelationConfig{
			WindowMS:          5000,
			MaxCandidates:     25,
			InterimIntervalMS: 0,
		},
		Report: ReportConfig{
			Format: "json",
			Output: "-",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Logging: DefaultLogConfig(),
	}
}

// Load builds the configuration from defaults, config file, environment and
// CLI-style overrides ("--section.key=value"), then validates it
func Load(overrides []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(Defaults()).
		WithEnvPrefix("CRASHWATCH_").
		WithFile(configPath).
		WithArgs(overrides).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		// A missing file just means defaults + env + CLI
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan("", finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, Validate(finalConfig)
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "CRASHWATCH_" + env
	return env
}

// GetConfigPath resolves the config file location
func GetConfigPath() string {
	if configFile := os.Getenv("CRASHWATCH_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("CRASHWATCH_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("CRASHWATCH_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "crashwatch.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(homeDir, ".config", "crashwatch.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "crashwatch.toml"
}
