// FILE: crashwatch/src/cmd/crashwatch/commands/help.go
package commands

import (
	"fmt"
	"sort"
	"strings"
)

// generalHelpTemplate is the default help message shown when no specific command is requested.
const generalHelpTemplate = `crashwatch: drives load against a network device, watches its log stream
and liveness, and reports each crash with its most likely causes.

Usage:
  crashwatch [run] [options]
  crashwatch <command> [options]

Commands:
  run         Execute a diagnostic run (default)
%s

Run Options:
  -config <path>           Path to configuration file (default: crashwatch.toml)
  -host <host>             Device host name or address
  -profile <name>          endurance, concurrent_burst, rate_escalation, payload_sweep
  -format <name>           Report format: json, yaml, cbor, text
  -output <path>           Report path, '-' for stdout, '.zst' suffix compresses
  -color <mode>            Console color: auto, always, never
  -set <section.key=value> Any config override, repeatable
  -log-level <level>       debug, info, warn, error
  -log-output <mode>       file, stdout, stderr, both, none
  -quiet                   Disable the live console and all log output

For command-specific help:
  crashwatch help <command>
  crashwatch <command> --help

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - CLI flags override all other settings
  - Environment variables (CRASHWATCH_SECTION_KEY) override file settings
  - TOML configuration file is the primary method

Exit Codes:
  0  clean run or every crash recovered
  1  error or cancelled run
  2  configuration error
  3  device unreachable at start
  4  device did not recover

Examples:
  # Write a starting configuration
  crashwatch init -o crashwatch.toml

  # One minute of endurance load at 5 req/s, text summary on stdout
  crashwatch -host 192.168.1.40 -set workload.rate=5 -format text

  # Escalate request rate until the device falls over, compressed CBOR report
  crashwatch run -profile rate_escalation -format cbor -output runs/escalation.cbor.zst
`

// HelpCommand handles the display of general or command-specific help messages.
type HelpCommand struct {
	router *CommandRouter
}

// NewHelpCommand creates a new help command handler.
func NewHelpCommand(router *CommandRouter) *HelpCommand {
	return &HelpCommand{router: router}
}

// Execute displays the appropriate help message based on the provided arguments.
func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]

		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Fprint(c.router.out, handler.Help())
			return nil
		}

		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Fprintf(c.router.out, generalHelpTemplate, c.formatCommandList())
	return nil
}

// Description returns a brief one-line description of the command.
func (c *HelpCommand) Description() string {
	return "Display help information"
}

// Help returns the detailed help text for the 'help' command itself.
func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  crashwatch help              Show general help
  crashwatch help <command>    Show help for a specific command

Examples:
  crashwatch help              # Show general help
  crashwatch help rules        # Show rules command help
  crashwatch rules --help      # Alternative way to get command help
`
}

// formatCommandList creates a formatted and aligned list of all available commands.
func (c *HelpCommand) formatCommandList() string {
	commands := c.router.GetCommands()

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	// Aligned with the fixed "run" line of the template
	var lines []string
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %-11s %s", name, commands[name].Description()))
	}

	return strings.Join(lines, "\n")
}
