package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("storage: object not found")

// ArtifactStore abstracts the object store holding uploaded source images
// and rendered outputs. Keys are namespaced per job (renders/{id}/...).
type ArtifactStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the object. Deleting a missing key is not an error;
	// the reaper treats "already gone" as success.
	Delete(ctx context.Context, key string) error

	// PresignUpload returns a time-limited URL a client can PUT the object
	// to directly, bypassing the API.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignDownload returns a time-limited URL for fetching the object.
	// Callers sign on every request and never persist the result.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}
