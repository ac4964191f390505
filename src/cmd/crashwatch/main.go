// FILE: crashwatch/src/cmd/crashwatch/main.go
package main

import (
	"context"
	"errors"
	"os"

	"crashwatch/src/cmd/crashwatch/commands"
	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"
	"crashwatch/src/internal/correlate"
	"crashwatch/src/internal/format"
	"crashwatch/src/internal/supervisor"
)

// Process exit codes
const (
	exitOK               = 0
	exitError            = 1
	exitConfig           = 2
	exitUnreachable      = 3
	exitPermanentFailure = 4
)

func main() {
	router := commands.NewCommandRouter()
	handled, err := router.Route(os.Args)
	if err != nil {
		fatal(exitError, "Error: %v\n", err)
	}
	if handled {
		os.Exit(exitOK)
	}

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}

	flagCfg, err := ParseFlags(args, os.Stderr)
	if err != nil {
		fatal(exitConfig, "Error: %v\n", err)
	}

	quietNotice = flagCfg.Quiet

	if flagCfg.ConfigFile != "" {
		os.Setenv("CRASHWATCH_CONFIG_FILE", flagCfg.ConfigFile)
	}

	cfg, err := config.Load(flagCfg.Overrides)
	if err != nil {
		fatal(exitConfig, "Invalid configuration: %v\n", err)
	}

	if err := initializeLogger(cfg, flagCfg.Quiet); err != nil {
		fatal(exitConfig, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	encoder, err := format.New(cfg.Report.Format, logger)
	if err != nil {
		fatal(exitConfig, "Invalid report format: %v\n", err)
	}

	s, err := bootstrapSession(cfg, flagCfg)
	if err != nil {
		fatal(exitConfig, "%v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := NewSignalHandler(logger)
	signals.Handle(cancel)

	report, runErr := s.Run(ctx)
	signals.Stop()

	code := exitCode(report, runErr)

	data, err := encoder.Encode(report)
	if err != nil {
		logger.Error("msg", "Failed to encode report",
			"format", encoder.Name(),
			"error", err)
		fatal(exitError, "Failed to encode report: %v\n", err)
	}
	if err := format.WriteOutput(cfg.Report.Output, data); err != nil {
		fatal(exitError, "Failed to write report: %v\n", err)
	}
	if cfg.Report.Output != "" && cfg.Report.Output != format.Stdout {
		notice("Report written to %s (verdict: %s)\n", cfg.Report.Output, report.Verdict)
	}

	logger.Info("msg", "crashwatch finished",
		"verdict", report.Verdict,
		"exit_code", code)

	if code != exitOK {
		shutdownLogger()
		os.Exit(code)
	}
}

// exitCode maps the run outcome to the process exit status
func exitCode(report *correlate.Report, runErr error) int {
	switch {
	case errors.Is(runErr, supervisor.ErrUnreachable):
		return exitUnreachable
	case errors.Is(runErr, supervisor.ErrRecoveryExceeded):
		return exitPermanentFailure
	case runErr != nil:
		return exitError
	}

	if report == nil {
		return exitError
	}
	switch report.Verdict {
	case core.VerdictClean, core.VerdictRecovered:
		return exitOK
	case core.VerdictUnreachable:
		return exitUnreachable
	case core.VerdictPermanentFailure:
		return exitPermanentFailure
	default:
		return exitError
	}
}
