package cli

import (
	"context"
	"fmt"

	"github.com/benmeehan/iotctl/internal/services"
)

func (a *App) productCommand() *Command {
	cmd := &Command{
		Name:    "product",
		Summary: "Query all devices of a product",
		Usage:   "iotctl product <id> <devices|status>",
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if len(args) != 2 {
			cmd.PrintHelp(a.Stderr)
			return fmt.Errorf("a product id and an action are required")
		}
		productID := args[0]

		switch args[1] {
		case "devices":
			devices, err := a.deviceService().ListDevices(ctx, productID)
			if err != nil {
				return err
			}
			return a.printJSON(devices)
		case "status":
			fleet := services.NewFleetService(a.deviceService(), a.Config.Fleet.Workers, a.Logger)
			statuses, err := fleet.ProductStatus(ctx, productID)
			if err != nil {
				return err
			}
			return a.printJSON(statuses)
		default:
			return fmt.Errorf("unknown product action %q", args[1])
		}
	}
	return cmd
}
