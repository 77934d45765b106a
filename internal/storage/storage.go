// Package storage provides the object-store boundary used for original
// file bytes and generated thumbnails.
package storage

import (
	"context"
	"time"
)

// ObjectStore stores and retrieves byte blobs by key.
type ObjectStore interface {
	// Put stores the blob and returns the key it is stored under.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	// Get returns the blob for the key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited download URL for the key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
