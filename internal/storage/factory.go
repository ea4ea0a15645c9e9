package storage

import (
	"context"
	"fmt"

	"github.com/ikkim/gigmarket-backend/config"
)

// New returns the adapter selected by cfg.Storage.Driver.
func New(ctx context.Context, cfg *config.Config) (ObjectStorage, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Storage.LocalBaseURL, cfg.Storage.LocalBucket), nil
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
