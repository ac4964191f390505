// FILE: crashwatch/src/cmd/crashwatch/flags.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/format"

	"github.com/lixenwraith/log"
)

// FlagConfig holds the parsed command line of a run
type FlagConfig struct {
	ConfigFile string
	Host       string
	Profile    string
	Format     string
	Output     string
	Color      string
	LogLevel   string
	LogOutput  string
	Quiet      bool
	Overrides  []string
}

// setFlags collects repeated -set section.key=value overrides
type setFlags []string

func (s *setFlags) String() string {
	return strings.Join(*s, ",")
}

func (s *setFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected section.key=value, got '%s'", v)
	}
	*s = append(*s, v)
	return nil
}

// ParseFlags parses run flags. args excludes the program name and an
// optional leading "run".
func ParseFlags(args []string, errOut io.Writer) (*FlagConfig, error) {
	fc := &FlagConfig{}
	var sets setFlags

	fs := flag.NewFlagSet("crashwatch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { customUsage(errOut) }

	fs.StringVar(&fc.ConfigFile, "config", "", "Config file path")
	fs.StringVar(&fc.Host, "host", "", "Device host name or address (overrides config)")
	fs.StringVar(&fc.Profile, "profile", "", "Load profile: endurance, concurrent_burst, rate_escalation, payload_sweep")
	fs.StringVar(&fc.Format, "format", "", "Report format: "+strings.Join(format.Names(), ", "))
	fs.StringVar(&fc.Output, "output", "", "Report path, '-' for stdout, '.zst' suffix compresses")
	fs.StringVar(&fc.Color, "color", "auto", "Console color: auto, always, never")
	fs.StringVar(&fc.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.StringVar(&fc.LogOutput, "log-output", "", "Log output: file, stdout, stderr, both, none (overrides config)")
	fs.BoolVar(&fc.Quiet, "quiet", false, "Disable the live console and all log output")
	fs.Var(&sets, "set", "Config override section.key=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if fc.LogOutput != "" {
		validOutputs := map[string]bool{
			"file": true, "stdout": true, "stderr": true,
			"both": true, "none": true,
		}
		if !validOutputs[fc.LogOutput] {
			return nil, fmt.Errorf("invalid log-output: %s (valid: file, stdout, stderr, both, none)", fc.LogOutput)
		}
	}
	if fc.LogLevel != "" {
		if _, err := parseLogLevel(fc.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid log-level: %s (valid: debug, info, warn, error)", fc.LogLevel)
		}
	}
	if fc.Profile != "" {
		if _, err := core.ParseProfileKind(fc.Profile); err != nil {
			return nil, err
		}
	}
	switch fc.Color {
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf("invalid color: %s (valid: auto, always, never)", fc.Color)
	}

	fc.Overrides = fc.configArgs(sets)
	return fc, nil
}

// configArgs renders flags as config builder CLI arguments
func (fc *FlagConfig) configArgs(sets []string) []string {
	var args []string
	add := func(key, value string) {
		if value != "" {
			args = append(args, fmt.Sprintf("--%s=%s", key, value))
		}
	}
	add("device.host", fc.Host)
	add("workload.profile", fc.Profile)
	add("report.format", fc.Format)
	add("report.output", fc.Output)
	add("logging.level", fc.LogLevel)
	add("logging.output", fc.LogOutput)
	for _, s := range sets {
		args = append(args, "--"+s)
	}
	return args
}

func customUsage(w io.Writer) {
	fmt.Fprintf(w, "crashwatch - device crash and recovery diagnostic harness\n\n")
	fmt.Fprintf(w, "Usage: crashwatch [run] [options]\n\n")

	fmt.Fprintf(w, "Run:\n")
	fmt.Fprintf(w, "  -config string\n\tConfig file path\n")
	fmt.Fprintf(w, "  -host string\n\tDevice host name or address (overrides config)\n")
	fmt.Fprintf(w, "  -profile string\n\tLoad profile: endurance, concurrent_burst, rate_escalation, payload_sweep\n")
	fmt.Fprintf(w, "  -set section.key=value\n\tAny config override, repeatable\n")

	fmt.Fprintf(w, "\nReport:\n")
	fmt.Fprintf(w, "  -format string\n\tReport format: %s\n", strings.Join(format.Names(), ", "))
	fmt.Fprintf(w, "  -output string\n\tReport path, '-' for stdout, '.zst' suffix compresses\n")
	fmt.Fprintf(w, "  -color string\n\tConsole color: auto, always, never\n")
	fmt.Fprintf(w, "  -quiet\n\tDisable the live console and all log output\n")

	fmt.Fprintf(w, "\nLogging:\n")
	fmt.Fprintf(w, "  -log-output string\n\tLog output: file, stdout, stderr, both, none (overrides config)\n")
	fmt.Fprintf(w, "  -log-level string\n\tLog level: debug, info, warn, error (overrides config)\n")

	fmt.Fprintf(w, "\nExit codes:\n")
	fmt.Fprintf(w, "  0 clean or recovered, 1 error or cancelled, 2 config error,\n")
	fmt.Fprintf(w, "  3 device unreachable, 4 permanent failure\n")
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
