package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage resolves keys against a static file server's public URL.
type LocalStorage struct {
	publicURL string
}

// LocalConfig holds configuration for local storage.
type LocalConfig struct {
	PublicURL string `mapstructure:"public_url"` // e.g. http://localhost:8080/static
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	return &LocalStorage{
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// cleanKey normalises key and rejects keys that would climb out of the URL root.
func cleanKey(key string) (string, error) {
	k := filepath.ToSlash(filepath.Clean("/" + key))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return k, nil
}

// GetURL returns publicURL/key, or /key when no public URL is configured.
func (s *LocalStorage) GetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.publicURL + "/" + k, nil
}
