package storage

import (
	"fmt"

	documentapp "github.com/praxis/backend/internal/application/document"
	infraconfig "github.com/praxis/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewObjectStorage creates the storage backend selected by configuration.
// Provider "s3" covers any S3-compatible service; "stub" is for development.
func NewObjectStorage(cfg *infraconfig.StorageConfig, logger *zap.Logger) (documentapp.ObjectStorageService, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3ObjectStorage(cfg, WithLogger(logger))
	case "stub", "":
		logger.Warn("using stub object storage, uploaded files are not persisted")
		return NewStubObjectStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
