package localstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("localstore: key not found")

// Store is the per-device key/value area a browser would keep in localStorage.
// Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Provider hands out the store of one device.
type Provider interface {
	Device(id string) Store
}
