// FILE: crashwatch/src/cmd/crashwatch/commands/version.go
package commands

import (
	"fmt"
	"io"

	"crashwatch/src/internal/version"
)

// VersionCommand handles version display
type VersionCommand struct {
	out io.Writer
}

// NewVersionCommand creates a new version command
func NewVersionCommand(out io.Writer) *VersionCommand {
	return &VersionCommand{out: out}
}

func (c *VersionCommand) Execute(args []string) error {
	fmt.Fprintln(c.out, "crashwatch "+version.String())
	return nil
}

func (c *VersionCommand) Description() string {
	return "Show version information"
}

func (c *VersionCommand) Help() string {
	return `Version Command - Show crashwatch version information

Usage:
  crashwatch version

Output includes:
  - Version number
  - Build date
  - Git commit hash (if available)
  - Go version used for compilation
`
}
