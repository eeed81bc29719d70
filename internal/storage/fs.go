package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FSBackend stores objects on the local filesystem, one file per
// object under <root>/<bucket>/<key>. It stands in for a real provider
// in local runs and tests: downloading a missing key fabricates
// placeholder content, and FailNext injects transient faults.
type FSBackend struct {
	root string

	mu       sync.Mutex
	failures int
	failSeq  int
}

// NewFSBackend creates a filesystem backend rooted at dir
func NewFSBackend(dir string) *FSBackend {
	return &FSBackend{root: dir}
}

// FailNext makes the next n operations fail
func (b *FSBackend) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
	b.failSeq = 0
}

func (b *FSBackend) injectFailure(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures <= 0 {
		return nil
	}
	b.failures--
	b.failSeq++
	return fmt.Errorf("simulated %s failure #%d", op, b.failSeq)
}

// Download reads the object. A missing key is materialized with
// placeholder content so local runs need no seeding.
func (b *FSBackend) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := b.injectFailure("download"); err != nil {
		return nil, err
	}

	path := b.objectPath(bucket, key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		dummy := []byte("Simulated content for " + key)
		if writeErr := b.writeObject(path, dummy); writeErr != nil {
			return nil, writeErr
		}
		return dummy, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return data, nil
}

// Upload writes the object, creating bucket directories as needed
func (b *FSBackend) Upload(ctx context.Context, bucket, key string, data []byte) error {
	if err := b.injectFailure("upload"); err != nil {
		return err
	}

	return b.writeObject(b.objectPath(bucket, key), data)
}

func (b *FSBackend) writeObject(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (b *FSBackend) objectPath(bucket, key string) string {
	return filepath.Join(b.root, bucket, filepath.FromSlash(key))
}
