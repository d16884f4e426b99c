package storage

import (
	"context"
	"fmt"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New returns the object storage selected by cfg.Driver
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (appbilling.ObjectStorage, error) {
	switch cfg.Driver {
	case "s3":
		s, err := NewS3ObjectStorage(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("Using S3 object storage", zap.String("bucket", s.Bucket()))
		return s, nil
	case "", "memory":
		logger.Warn("Using in-memory object storage; attachments are lost on restart")
		return NewMemoryObjectStorage(""), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
