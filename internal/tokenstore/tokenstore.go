// Package tokenstore persists the two session tokens across process restarts.
// The session is the only component that reads or writes it.
package tokenstore

import (
	"context"
	"fmt"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Fixed credential keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// ErrNotFound is returned by Get for a key that holds no value.
var ErrNotFound = fmt.Errorf("credential %w", apperrors.ErrNotFound)

// Store is a durable string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
