package main

import (
	"context"
	"fmt"
	"os"

	"github.com/benmeehan/iotctl/internal/cli"
)

func main() {
	app := cli.NewApp()
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
