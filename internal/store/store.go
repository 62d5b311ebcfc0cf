// Package store persists connection documents to the shared token file.
// The file is a single human-readable JSON document holding one entry per
// named connection, so several identities (different tenants or clouds) can
// coexist at one well-known path. This is a leaf package: it knows nothing
// about what a connection contains beyond it being a JSON value.
package store

import (
	"context"
	"errors"
)

// ErrNotFound signals that the token file or the requested connection entry
// does not exist. Callers treat this as "never logged in", not as a failure
// worth reporting to the user.
var ErrNotFound = errors.New("store: connection not found")

// TokenStore persists one serialized connection document under a named key.
type TokenStore interface {
	// Get returns the raw serialized connection document, or ErrNotFound.
	Get(ctx context.Context) (string, error)

	// Set writes the serialized connection into the shared file, merging
	// with any other named connections already present. OS-level write
	// errors are returned unwrapped so the command layer can surface the
	// underlying reason verbatim.
	Set(ctx context.Context, serialized string) error

	// Remove deletes only this store's entry from the shared file.
	// Idempotent: a missing file or entry is a successful no-op.
	Remove(ctx context.Context) error
}
