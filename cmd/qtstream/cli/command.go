// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the qtstream command tree.
type Command struct {
	// Name is the word typed to select the command.
	Name string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is the longer text at the top of the command's own
	// help.
	Description string

	// Usage replaces the synthesized usage line when set.
	Usage string

	// Examples follow the flags in help output.
	Examples []Example

	// Params returns a pointer to a struct whose tagged fields become
	// the command's flags (see [BindFlags]). Ignored when Flags is set.
	Params func() any

	// Flags returns the command's flag set. Called once per parse.
	Flags func() *pflag.FlagSet

	// Subcommands are selected by the first positional argument.
	Subcommands []*Command

	// Run executes the command with the positional arguments left
	// after flag parsing. When both Run and Subcommands are set, Run
	// handles arguments that name no subcommand.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	// HelpOutput receives help text. Nil means the root's, or
	// io.Discard if no command in the chain sets one.
	HelpOutput io.Writer

	parent *Command
}

// Example is one entry of a command's help examples.
type Example struct {
	Description string
	Command     string
}

// Execute parses args, walks down to the selected subcommand, and runs
// it with ctx and logger.
func (c *Command) Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name := args[0]
		for _, sub := range c.Subcommands {
			if sub.Name == name {
				sub.parent = c
				return sub.Execute(ctx, args[1:], logger)
			}
		}
		if c.Run == nil {
			if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
				return fmt.Errorf("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.",
					name, suggestion, c.fullName())
			}
			return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", name, c.fullName())
		}
	}

	if len(c.Subcommands) > 0 && c.Run == nil {
		c.PrintHelp(c.helpOutput())
		if len(args) == 0 {
			return fmt.Errorf("subcommand required")
		}
		return fmt.Errorf("subcommand required (got flag %q)", args[0])
	}

	if flagSet := c.flagSet(); flagSet != nil {
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			message := err.Error()
			if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand flag") {
				if suggestion := suggestFlag(args, c.flagSet()); suggestion != "" {
					return fmt.Errorf("%s (did you mean %s?)\n\nRun '%s --help' for usage.",
						message, suggestion, c.fullName())
				}
			}
			return fmt.Errorf("%s\n\nRun '%s --help' for usage.", message, c.fullName())
		}
		args = flagSet.Args()
	}

	if c.Run == nil {
		c.PrintHelp(c.helpOutput())
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(ctx, args, logger.With("command", c.commandPath()))
}

// flagSet builds the command's flags from Flags or Params.
func (c *Command) flagSet() *pflag.FlagSet {
	switch {
	case c.Flags != nil:
		return c.Flags()
	case c.Params != nil:
		return FlagsFromParams(c.Name, c.Params())
	}
	return nil
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if flagSet := c.flagSet(); flagSet != nil {
		if usage := flagSet.FlagUsages(); usage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

func (c *Command) helpOutput() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.HelpOutput != nil {
			return command.HelpOutput
		}
	}
	return io.Discard
}

// fullName is the command path including the root ("qtstream decode").
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

// commandPath is the command path without the root, used as the
// "command" log attribute ("decode").
func (c *Command) commandPath() string {
	if c.parent == nil {
		return c.Name
	}
	if c.parent.parent == nil {
		return c.Name
	}
	return c.parent.commandPath() + "/" + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
