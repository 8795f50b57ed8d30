// Package storage provides the file-storage facade the task attachment
// service writes through: an object-store client with a local-disk fallback
// used when the bucket upload fails.
package storage

import (
	"context"
	"io"
)

// UploadResult reports where a stored object landed.
type UploadResult struct {
	Key   string
	URL   string
	Local bool
}

// Store is the surface the files service depends on.
type Store interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}
