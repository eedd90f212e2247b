package storage

import (
	"context"
	"fmt"
	"time"
)

// URLResolver turns stored object keys into URLs clients can fetch.
type URLResolver interface {
	// GetURL returns a URL for accessing the object.
	// For local storage this is the public base URL joined with the key.
	// For S3, this is a presigned URL valid for the given duration unless
	// a public URL prefix is configured.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Config selects and configures a storage backend.
type Config struct {
	Driver string      `mapstructure:"driver"` // "local", "s3"
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New creates the URLResolver selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (URLResolver, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	case "local", "":
		return NewLocalStorage(cfg.Local)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
