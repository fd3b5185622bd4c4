package storage

import (
	"context"
	"errors"
)

// Store is a durable string slot store. Implementations must return
// ErrQuotaExceeded (possibly wrapped) when a write is rejected for size or
// capacity reasons so callers can degrade instead of failing.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var (
	ErrNotFound      = errors.New("storage key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)
