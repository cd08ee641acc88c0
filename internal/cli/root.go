package cli

import (
	"context"
	"fmt"

	"github.com/benmeehan/iotctl/internal/constants"
)

// Root builds the command tree.
func (a *App) Root() *Command {
	return &Command{
		Name:    "iotctl",
		Summary: "Manage and connect to devices of an IoT platform.",
		Usage:   "iotctl [--config path] [--verbose] <command> [args]",
		Subcommands: []*Command{
			a.loginCommand(),
			a.logoutCommand(),
			a.whoamiCommand(),
			a.deviceCommand(),
			a.productCommand(),
			{
				Name:    "version",
				Summary: "Print the version",
				Run: func(ctx context.Context, args []string) error {
					_, err := fmt.Fprintf(a.Stdout, "iotctl %s\n", constants.Version)
					return err
				},
			},
		},
	}
}
