// FILE: crashwatch/src/cmd/crashwatch/commands/router.go
package commands

import (
	"fmt"
	"io"
	"os"
)

// Handler defines the interface required for all subcommands.
type Handler interface {
	Execute(args []string) error
	Description() string
	Help() string
}

// CommandRouter handles the routing of CLI arguments to the appropriate subcommand handler.
type CommandRouter struct {
	commands map[string]Handler
	out      io.Writer
}

// NewCommandRouter creates and initializes the command router with all available commands.
func NewCommandRouter() *CommandRouter {
	return newCommandRouter(os.Stdout)
}

func newCommandRouter(out io.Writer) *CommandRouter {
	router := &CommandRouter{
		commands: make(map[string]Handler),
		out:      out,
	}

	router.commands["rules"] = NewRulesCommand(out)
	router.commands["init"] = NewInitCommand(out)
	router.commands["version"] = NewVersionCommand(out)
	router.commands["help"] = NewHelpCommand(router)

	return router
}

// Route checks for and executes a subcommand. It reports false when the
// arguments describe a run, which the caller executes.
func (r *CommandRouter) Route(args []string) (bool, error) {
	if len(args) < 2 {
		return false, nil // No command specified, run with defaults
	}

	cmdName := args[1]

	// Special case: help flag at any position shows general help
	for _, arg := range args[1:] {
		if arg == "-h" || arg == "--help" || arg == "-help" {
			if handler, exists := r.commands[cmdName]; exists && cmdName != "help" {
				fmt.Fprint(r.out, handler.Help())
				return true, nil
			}
			return true, r.commands["help"].Execute(nil)
		}
	}

	if cmdName == "run" {
		return false, nil
	}

	handler, exists := r.commands[cmdName]
	if !exists {
		// Check if it looks like a mistyped command (not a flag)
		if cmdName[0] != '-' {
			return false, fmt.Errorf("unknown command: %s\n\nRun 'crashwatch help' for usage", cmdName)
		}
		// It's a flag, let the run handle it
		return false, nil
	}

	return true, handler.Execute(args[2:])
}

// GetCommand returns a specific command handler by its name.
func (r *CommandRouter) GetCommand(name string) (Handler, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommands returns a map of all registered commands.
func (r *CommandRouter) GetCommands() map[string]Handler {
	return r.commands
}
