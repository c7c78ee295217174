package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for keys that would leave the base directory
var ErrInvalidKey = errors.New("invalid object key")

// LocalFSSource keeps schedule exports as files under a base directory
type LocalFSSource struct {
	BaseDir string
}

// NewLocalFSSource creates a new LocalFSSource, creating baseDir when missing.
func NewLocalFSSource(baseDir string) (*LocalFSSource, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalFSSource{BaseDir: baseDir}, nil
}

// path resolves key below BaseDir. Keys use forward slashes.
func (d *LocalFSSource) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(d.BaseDir, clean), nil
}

func (d *LocalFSSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

func (d *LocalFSSource) Save(ctx context.Context, key string, body io.Reader) error {
	fullPath, err := d.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// write to a temporary file first so readers never see a partial export
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save file content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save file content: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
