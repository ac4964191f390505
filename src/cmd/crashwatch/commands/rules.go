// FILE: crashwatch/src/cmd/crashwatch/commands/rules.go
package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"crashwatch/src/internal/classify"
	"crashwatch/src/internal/config"
)

// RulesCommand prints the effective classification rules in match order
type RulesCommand struct {
	out io.Writer
}

func NewRulesCommand(out io.Writer) *RulesCommand {
	return &RulesCommand{out: out}
}

func (c *RulesCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "", "Config file with custom rules")
	defaults := fs.Bool("defaults", false, "Show only the built-in rules")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var rules *classify.RuleSet
	var err error
	if *defaults {
		rules, err = classify.NewRuleSet(classify.DefaultRules())
	} else {
		if *configFile != "" {
			os.Setenv("CRASHWATCH_CONFIG_FILE", *configFile)
		}
		var cfg *config.Config
		cfg, err = config.Load(nil)
		if err != nil {
			return err
		}
		rules, err = classify.FromConfig(cfg.Classifier)
	}
	if err != nil {
		return err
	}

	return writeRules(c.out, rules)
}

func writeRules(out io.Writer, rules *classify.RuleSet) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCATEGORY\tSEVERITY\tDESCRIPTION\tPATTERN")
	for i, r := range rules.Rules() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Category, r.Severity, r.Description, r.Pattern)
	}
	return tw.Flush()
}

func (c *RulesCommand) Description() string {
	return "List the classification rules in match order"
}

func (c *RulesCommand) Help() string {
	return `Rules Command - List the classification rules in match order

Usage:
  crashwatch rules [options]

Options:
  -config <path>    Config file whose [[classifier.rules]] are merged in
  -defaults         Show only the built-in rules

The first matching rule classifies a line. Custom rules come before the
built-in table unless classifier.replace_defaults is set.
`
}
