// FILE: crashwatch/src/cmd/crashwatch/commands/init.go
package commands

import (
	"flag"
	"fmt"
	"io"

	"crashwatch/src/internal/config"
)

// InitCommand writes a configuration file holding every default
type InitCommand struct {
	out io.Writer
}

func NewInitCommand(out io.Writer) *InitCommand {
	return &InitCommand{out: out}
}

func (c *InitCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("o", "crashwatch.toml", "Output path")
	host := fs.String("host", "", "Device host to record in the file")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Defaults()
	if *host != "" {
		cfg.Device.Host = *host
	}
	if err := cfg.WriteTemplate(*path, *force); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Configuration written to %s\n", *path)
	return nil
}

func (c *InitCommand) Description() string {
	return "Write a configuration file with all defaults"
}

func (c *InitCommand) Help() string {
	return `Init Command - Write a configuration file with all defaults

Usage:
  crashwatch init [options]

Options:
  -o <path>         Output path (default: crashwatch.toml)
  -host <host>      Device host to record in the file
  -force            Overwrite an existing file
`
}
