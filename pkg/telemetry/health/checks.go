package health

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/rotor/pkg/credentials"
)

// ErrNoActiveCredentials fails readiness when every pooled key is removed.
var ErrNoActiveCredentials = errors.New("no active credentials in pool")

// StoreCheck verifies the credential store is reachable.
func StoreCheck(store credentials.Store) CheckFunc {
	return func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("credential store unreachable: %w", err)
		}
		return nil
	}
}

// PoolCheck verifies at least one credential is active. Without one,
// pool-backed requests can only fail.
func PoolCheck(store credentials.Store) CheckFunc {
	return func(ctx context.Context) error {
		active, err := store.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list credentials: %w", err)
		}
		if len(active) == 0 {
			return ErrNoActiveCredentials
		}
		return nil
	}
}
