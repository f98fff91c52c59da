package document

import (
	"context"
	"time"
)

// ObjectStorageService abstracts the object store holding document content.
// Uploads and downloads go through presigned URLs; the backend never
// streams file bytes itself except for server-side copies.
type ObjectStorageService interface {
	// GenerateUploadURL returns a presigned PUT URL for the given key
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL returns a presigned GET URL for the given key
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// CopyObject copies an object to a new key without downloading it.
	// Used when copying folders between matters.
	CopyObject(ctx context.Context, sourceKey, destinationKey string) error

	// DeleteObject removes an object
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks whether an object exists. Upload confirmation
	// verifies the client actually completed the presigned PUT.
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}
