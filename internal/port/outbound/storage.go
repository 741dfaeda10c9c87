package outbound

import (
	"context"
)

// ObjectStoragePort defines the object storage operations used by the notification archive.
type ObjectStoragePort interface {
	// Put uploads an object to storage.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// Get retrieves an object from storage.
	Get(ctx context.Context, key string) ([]byte, error)
}
