package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/benmeehan/iotctl/internal/services"
	"github.com/benmeehan/iotctl/pkg/terminal"
)

func (a *App) loginCommand() *Command {
	var server, username, password string

	return &Command{
		Name:    "login",
		Summary: "Authenticate against the platform and store the session",
		Usage:   "iotctl login [--server host] [--username name] [--password secret]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
			fs.StringVarP(&server, "server", "s", "", "platform host (default from configuration)")
			fs.StringVarP(&username, "username", "u", "", "account name")
			fs.StringVarP(&password, "password", "p", "", "account password, prompted when omitted")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if server == "" {
				server = a.Config.Server
			}
			if server == "" {
				return fmt.Errorf("no server given: use --server or set server in the configuration")
			}
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				var err error
				if password, err = terminal.ReadPassword(a.Stderr, "Password: "); err != nil {
					return err
				}
			}

			record, err := a.Client.Login(ctx, server, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			a.Logger.Info().Str("user", record.Username).Str("server", record.Server).Msg("Logged in")
			_, err = fmt.Fprintf(a.Stdout, "Logged in to %s as %s\n", record.Server, record.Username)
			return err
		},
	}
}

func (a *App) logoutCommand() *Command {
	return &Command{
		Name:    "logout",
		Summary: "Forget the stored session",
		Run: func(ctx context.Context, args []string) error {
			if err := a.Store.Clear(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			_, err := fmt.Fprintln(a.Stdout, "Logged out")
			return err
		},
	}
}

func (a *App) whoamiCommand() *Command {
	return &Command{
		Name:    "whoami",
		Summary: "Show the stored session",
		Run: func(ctx context.Context, args []string) error {
			record, err := a.Store.Load()
			if err != nil {
				return err
			}
			if !record.IsConfigured() {
				return services.ErrNotConfigured
			}

			expiry := "unknown"
			if exp, err := record.ExpiresAt(); err == nil {
				expiry = exp.Local().Format(time.RFC3339)
			}

			_, err = fmt.Fprintf(a.Stdout, "Server:   %s\nUsername: %s\nExpires:  %s\n", record.Server, record.Username, expiry)
			return err
		},
	}
}
