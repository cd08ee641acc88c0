package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/benmeehan/iotctl/internal/constants"
	"github.com/benmeehan/iotctl/internal/services"
	"github.com/benmeehan/iotctl/pkg/terminal"
)

func (a *App) deviceCommand() *Command {
	cmd := &Command{
		Name:    "device",
		Summary: "Work with a single device",
		Usage:   "iotctl device list | iotctl device <id> <console|tcp|tls|http|status|resource|property> [args]",
		Subcommands: []*Command{
			{
				Name:    "list",
				Summary: "List your devices",
				Run: func(ctx context.Context, args []string) error {
					devices, err := a.deviceService().ListDevices(ctx, "")
					if err != nil {
						return err
					}
					return a.printJSON(devices)
				},
			},
		},
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if len(args) < 2 {
			cmd.PrintHelp(a.Stderr)
			return fmt.Errorf("a device id and an action are required")
		}
		actions := a.deviceActions(args[0])
		actions.parent = cmd
		return actions.Execute(ctx, args[1:])
	}
	return cmd
}

func (a *App) deviceActions(deviceID string) *Command {
	return &Command{
		Name: deviceID,
		Subcommands: []*Command{
			a.consoleCommand(deviceID),
			a.tunnelCommand(deviceID, constants.TunnelKindTCP, "Expose a TCP service of the device (default port 22)"),
			a.tunnelCommand(deviceID, constants.TunnelKindTLS, "Expose a TLS service of the device (default port 443)"),
			a.tunnelCommand(deviceID, constants.TunnelKindHTTP, "Expose a web service of the device (default port 80)"),
			{
				Name:    "status",
				Summary: "Show the device and its connection state",
				Run: func(ctx context.Context, args []string) error {
					device, err := a.deviceService().DeviceStatus(ctx, deviceID)
					if err != nil {
						return err
					}
					return a.printJSON(device)
				},
			},
			a.resourceCommand(deviceID),
			a.propertyCommand(deviceID),
		},
	}
}

func (a *App) consoleCommand(deviceID string) *Command {
	return &Command{
		Name:    "console",
		Summary: "Open an interactive shell on the device",
		Run: func(ctx context.Context, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
			defer stop()

			sigCh := make(chan os.Signal, 8)
			signal.Notify(sigCh, os.Interrupt)
			defer signal.Stop(sigCh)

			interrupts := make(chan struct{})
			go forwardSignals(ctx, sigCh, interrupts)

			console := services.NewConsoleService(a.Client, a.Store, a.Config.Console.GraceDelay, a.Logger)
			console.Notices = a.Stderr
			return console.OpenConsole(ctx, deviceID, services.ConsoleIO{
				Console:    terminal.NewStdConsole(),
				Interrupts: interrupts,
				Resizes:    terminal.NotifyResize(ctx),
			})
		},
	}
}

// forwardSignals turns every received signal into one interrupt request until ctx is done.
func forwardSignals(ctx context.Context, sigCh <-chan os.Signal, interrupts chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			select {
			case interrupts <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (a *App) tunnelCommand(deviceID, kind, summary string) *Command {
	var port uint16
	var noOpen bool

	return &Command{
		Name:    kind,
		Summary: summary,
		Usage:   fmt.Sprintf("iotctl device %s %s [target] [-p port] [--no-open]", deviceID, kind),
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet(kind, pflag.ContinueOnError)
			fs.Uint16VarP(&port, "port", "p", 0, "server-side listening port (default random in 50000-51000)")
			fs.BoolVar(&noOpen, "no-open", false, "do not open http tunnels in the browser")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("expected at most one target, got %d", len(args))
			}
			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			tunnels := services.NewTunnelService(a.Client, a.Store, a.Config.Tunnel.OpenBrowser, a.Logger)
			tunnels.Out = a.Stdout
			return tunnels.CreateTunnel(ctx, deviceID, kind, target, services.TunnelOptions{LocalPort: port, NoOpen: noOpen})
		},
	}
}

func (a *App) resourceCommand(deviceID string) *Command {
	var input string

	return &Command{
		Name:    "resource",
		Summary: "Read a device resource, or call it with --input",
		Usage:   fmt.Sprintf("iotctl device %s resource <name> [--input JSON]", deviceID),
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("resource", pflag.ContinueOnError)
			fs.StringVarP(&input, "input", "i", "", "JSON input sent to the resource")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("a resource name is required")
			}
			body, err := jsonArg("--input", input)
			if err != nil {
				return err
			}

			out, err := a.deviceService().Resource(ctx, deviceID, args[0], body)
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	}
}

func (a *App) propertyCommand(deviceID string) *Command {
	var value string

	return &Command{
		Name:    "property",
		Summary: "Read a device property, or change it with --set",
		Usage:   fmt.Sprintf("iotctl device %s property <name> [--set JSON]", deviceID),
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("property", pflag.ContinueOnError)
			fs.StringVar(&value, "set", "", "new JSON value of the property")
			return fs
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("a property name is required")
			}
			body, err := jsonArg("--set", value)
			if err != nil {
				return err
			}

			out, err := a.deviceService().Property(ctx, deviceID, args[0], body)
			if err != nil {
				return err
			}
			if len(out) == 0 {
				return nil
			}
			return a.printJSON(out)
		},
	}
}

// jsonArg validates an optional JSON flag value. An empty value yields nil.
func jsonArg(flag, value string) (json.RawMessage, error) {
	if value == "" {
		return nil, nil
	}
	if !json.Valid([]byte(value)) {
		return nil, fmt.Errorf("%s must be valid JSON", flag)
	}
	return json.RawMessage(value), nil
}
