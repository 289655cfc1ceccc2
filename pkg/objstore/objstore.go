// Package objstore abstracts the upload object store: presigned write URLs
// for clients and object fetch for the text-extraction stage.
package objstore

import (
	"context"
	"time"
)

// ObjectStore is the boundary to the durable object storage backend.
type ObjectStore interface {
	// PresignPut returns a short-lived URL granting a single PUT of the key.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// Get fetches the full object body.
	Get(ctx context.Context, key string) ([]byte, error)

	// Head returns the object size without fetching the body.
	Head(ctx context.Context, key string) (int64, error)
}
