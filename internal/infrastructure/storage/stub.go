package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	documentapp "github.com/praxis/backend/internal/application/document"
)

// StubObjectStorage is an in-memory implementation of ObjectStorageService
// for development and tests. Presigned URLs are fake but well-formed;
// object existence is tracked so upload/copy/delete flows behave like a
// real backend.
type StubObjectStorage struct {
	// BaseURL is the base URL for generated upload/download URLs
	BaseURL string

	mu      sync.RWMutex
	objects map[string]bool
}

// NewStubObjectStorage creates a new StubObjectStorage
func NewStubObjectStorage() *StubObjectStorage {
	return &StubObjectStorage{
		BaseURL: "https://storage.praxis.local",
		objects: make(map[string]bool),
	}
}

// Ensure StubObjectStorage implements ObjectStorageService
var _ documentapp.ObjectStorageService = (*StubObjectStorage)(nil)

// GenerateUploadURL returns a fake presigned PUT URL and records the key as
// existing, so the confirmation flow succeeds without a real upload.
func (s *StubObjectStorage) GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	s.mu.Lock()
	s.objects[storageKey] = true
	s.mu.Unlock()

	expiresAt := time.Now().Add(expiresIn)
	return s.BaseURL + "/upload/" + storageKey + "?expires=" + expiresAt.Format(time.RFC3339), expiresAt, nil
}

// GenerateDownloadURL returns a fake presigned GET URL
func (s *StubObjectStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	expiresAt := time.Now().Add(expiresIn)
	return s.BaseURL + "/download/" + storageKey + "?expires=" + expiresAt.Format(time.RFC3339), expiresAt, nil
}

// CopyObject records the destination key as existing
func (s *StubObjectStorage) CopyObject(ctx context.Context, sourceKey, destinationKey string) error {
	if sourceKey == "" || destinationKey == "" {
		return errors.New("source and destination keys are required")
	}

	s.mu.Lock()
	s.objects[destinationKey] = true
	s.mu.Unlock()
	return nil
}

// DeleteObject removes the key from the tracked set
func (s *StubObjectStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}

	s.mu.Lock()
	delete(s.objects, storageKey)
	s.mu.Unlock()
	return nil
}

// ObjectExists reports whether the key was uploaded or copied through this
// stub. Unknown keys still return true so development flows that seed data
// out of band keep working.
func (s *StubObjectStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	return true, nil
}

// Uploaded reports whether a key was written through this stub (for tests)
func (s *StubObjectStorage) Uploaded(storageKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[storageKey]
}
