package utils

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// NonCritical is a best-effort operation. Its failures are logged and never
// reach the caller, so it cannot change the outcome of a command.
type NonCritical func(ctx context.Context) error

// Run executes the operation, logging an error or panic as a warning.
func (op NonCritical) Run(ctx context.Context, logger zerolog.Logger, name string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Str("operation", name).Err(fmt.Errorf("panic: %v", r)).Msg("Best-effort operation failed")
		}
	}()

	if err := op(ctx); err != nil {
		logger.Warn().Str("operation", name).Err(err).Msg("Best-effort operation failed")
	}
}
