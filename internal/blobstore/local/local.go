package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbonduro/renocheck/internal/blobstore"
)

// Store keeps objects on disk under basePath and serves them from baseURL.
type Store struct {
	basePath string
	baseURL  string
}

func New(basePath, baseURL string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes r to objectPath. It returns blobstore.ErrBucketNotFound when
// the base directory has been removed since New.
func (s *Store) Upload(ctx context.Context, objectPath, contentType string, r io.Reader, size int64) error {
	if _, err := os.Stat(s.basePath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to upload %s: %w", objectPath, blobstore.ErrBucketNotFound)
	}

	filePath, err := s.safeJoin(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

func (s *Store) PublicURL(_ context.Context, objectPath string) (string, error) {
	if _, err := s.safeJoin(objectPath); err != nil {
		return "", err
	}
	return s.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(objectPath), "/"), nil
}

// Open returns the stored object and its content type.
func (s *Store) Open(_ context.Context, objectPath string) (io.ReadCloser, string, error) {
	filePath, err := s.safeJoin(objectPath)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("object not found")
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, blobstore.ContentType(filePath), nil
}

// safeJoin resolves objectPath relative to basePath and rejects directory traversal.
func (s *Store) safeJoin(objectPath string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, objectPath))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}
