package storage

import (
	"context"
	"fmt"

	"github.com/ignite/paidmedia-monitor/internal/config"
)

// New builds the object store selected by configuration.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Type {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage type s3 requires s3_bucket")
		}
		return NewS3Store(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.GetAWSProfile())
	case "local", "":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
