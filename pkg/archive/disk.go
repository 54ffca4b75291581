package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore writes frames into a local capture directory: one .rgba
// blob and one .json sidecar per frame.
type DiskStore struct {
	dir    string
	closed bool
}

// NewDiskStore creates the capture directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create capture dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Put writes the blob first, then the sidecar. A sidecar without a
// blob never appears on disk; the reverse can, and readers treat a
// missing sidecar as an aborted write.
func (s *DiskStore) Put(_ context.Context, rec Record, pixels []byte) error {
	if s.closed {
		return ErrClosed
	}

	name := blobName(rec.Sequence)
	blobPath := filepath.Join(s.dir, name+".rgba")
	if err := os.WriteFile(blobPath, pixels, 0o644); err != nil {
		return fmt.Errorf("archive: write blob: %w", err)
	}

	meta, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: encode sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name+".json"), meta, 0o644); err != nil {
		os.Remove(blobPath)
		return fmt.Errorf("archive: write sidecar: %w", err)
	}
	return nil
}

// Close marks the store closed. Files already written stay on disk.
func (s *DiskStore) Close() error {
	s.closed = true
	return nil
}

// Dir returns the capture directory path.
func (s *DiskStore) Dir() string {
	return s.dir
}
