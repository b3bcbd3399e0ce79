package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalMediaStore serves attached image bytes from the local filesystem.
// In production the refs point at an external media service; the lookup
// contract is the same either way.
type LocalMediaStore struct {
	baseDir string
}

func NewLocalMediaStore(baseDir string) (*LocalMediaStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalMediaStore{baseDir: baseDir}, nil
}

// Fetch reads the bytes for ref, honoring ctx cancellation between the
// open and the read.
func (s *LocalMediaStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(ref)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid media ref: %s", ref)
	}
	f, err := os.Open(filepath.Join(s.baseDir, clean))
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	return data, nil
}

// Put stores bytes under ref, used by tests and local development.
func (s *LocalMediaStore) Put(ctx context.Context, ref string, reader io.Reader) error {
	fullPath := filepath.Join(s.baseDir, filepath.Clean(ref))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("failed to write media: %w", err)
	}
	return nil
}
