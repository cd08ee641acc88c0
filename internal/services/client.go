package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/benmeehan/iotctl/pkg/api"
	"github.com/benmeehan/iotctl/pkg/session"
)

// APIClient is the authenticated transport used by the services.
type APIClient interface {
	Do(ctx context.Context, method, path string, body, out any) error
	DialStream(ctx context.Context, path string) (api.Stream, error)
}

// loadSession returns the stored session or ErrNotConfigured.
func loadSession(store session.Store) (*session.Record, error) {
	record, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !record.IsConfigured() {
		return nil, ErrNotConfigured
	}
	return record, nil
}

// notConfigured maps the transport's missing-session error to ErrNotConfigured.
func notConfigured(err error) error {
	if errors.Is(err, api.ErrNoSession) {
		return ErrNotConfigured
	}
	return err
}
