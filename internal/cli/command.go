package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node of the command tree.
type Command struct {
	Name    string
	Summary string
	Usage   string

	// Flags returns the flag set of the command. Nil means no flags.
	Flags func() *pflag.FlagSet

	// Subcommands are dispatched on the first positional argument.
	Subcommands []*Command

	// Run executes the command with the positional args left after flag parsing.
	// It is used when no subcommand matches.
	Run func(ctx context.Context, args []string) error

	help   io.Writer
	parent *Command
}

// Execute parses args and dispatches to a subcommand or Run.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpWriter())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		for _, sub := range c.Subcommands {
			if sub.Name == args[0] {
				sub.parent = c
				return sub.Execute(ctx, args[1:])
			}
		}
		if c.Run == nil {
			return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.fullName())
		}
	}

	if c.Run == nil {
		c.PrintHelp(c.helpWriter())
		return fmt.Errorf("subcommand required")
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
		}
		args = flagSet.Args()
	}

	return c.Run(ctx, args)
}

// PrintHelp writes the usage of the command to w.
func (c *Command) PrintHelp(w io.Writer) {
	if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", c.fullName())
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", c.fullName())
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		var flagHelp strings.Builder
		flagSet := c.Flags()
		flagSet.SetOutput(&flagHelp)
		flagSet.PrintDefaults()
		if flagHelp.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", flagHelp.String())
		}
	}
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func (c *Command) helpWriter() io.Writer {
	for cmd := c; cmd != nil; cmd = cmd.parent {
		if cmd.help != nil {
			return cmd.help
		}
	}
	return io.Discard
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
