// FILE: crashwatch/src/internal/config/logging.go
package config

import "fmt"

// LogConfig controls the harness's own diagnostic log, not the device log
type LogConfig struct {
	// "stderr", "stdout", "file", "both", "none"
	Output string `toml:"output"`
	// "debug", "info", "warn", "error"
	Level   string            `toml:"level"`
	File    *LogFileConfig    `toml:"file"`
	Console *LogConsoleConfig `toml:"console"`
}

type LogFileConfig struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"`
}

type LogConsoleConfig struct {
	// "split" sends info/debug to stdout, warn/error to stderr
	Target string `toml:"target"`
	Format string `toml:"format"`
}

func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Output: "stderr",
		Level:  "info",
		File: &LogFileConfig{
			Directory:      "./log",
			Name:           "crashwatch",
			MaxSizeMB:      20,
			MaxTotalSizeMB: 200,
			RetentionHours: 72,
		},
		Console: &LogConsoleConfig{
			Target: "stderr",
			Format: "txt",
		},
	}
}

var (
	validLogOutputs = map[string]bool{"file": true, "stdout": true, "stderr": true, "both": true, "none": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

func validateLogConfig(cfg *LogConfig) error {
	if !validLogOutputs[cfg.Output] {
		return fmt.Errorf("logging: invalid output mode: %s", cfg.Output)
	}
	if !validLogLevels[cfg.Level] {
		return fmt.Errorf("logging: invalid level: %s", cfg.Level)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		if cfg.File == nil || cfg.File.Directory == "" {
			return fmt.Errorf("logging: file output requires file.directory")
		}
	}
	if cfg.Console != nil {
		switch cfg.Console.Target {
		case "stdout", "stderr", "split":
		default:
			return fmt.Errorf("logging: invalid console target: %s", cfg.Console.Target)
		}
		switch cfg.Console.Format {
		case "", "txt", "json":
		default:
			return fmt.Errorf("logging: invalid console format: %s", cfg.Console.Format)
		}
	}
	return nil
}
