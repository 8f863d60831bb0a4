// Package objstore fetches uploaded objects by bucket and key.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports a missing object.
var ErrNotFound = errors.New("object not found")

// ObjectStore reads whole objects. Size is bounded upstream, so there are
// no range fetches.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// FSStore maps buckets to directories under a root path. It is the
// development and test backend; production deployments put an S3-style
// gateway behind the same interface.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed object store rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// resolve joins bucket and key under root, rejecting path escapes.
func (s *FSStore) resolve(bucket, key string) (string, error) {
	path := filepath.Join(s.root, filepath.Clean("/"+bucket), filepath.Clean("/"+key))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object locator %s/%s", bucket, key)
	}
	return path, nil
}
