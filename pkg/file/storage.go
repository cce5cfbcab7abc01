package file

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Storage persists opaque blobs by key.
type Storage interface {
	// Put writes data under key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the blob stored under key or ErrFileNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob. Missing blobs return ErrFileNotFound.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes every listed blob, ignoring missing ones.
	DeleteMany(ctx context.Context, keys []string) error
	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// cleanKey normalizes key and rejects anything that could leave the root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return cleaned, nil
}
