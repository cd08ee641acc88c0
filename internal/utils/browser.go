package utils

import (
	"context"
	"fmt"

	"github.com/pkg/browser"
)

// OpenBrowser opens url in the default browser of the host.
func OpenBrowser(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
