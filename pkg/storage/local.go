package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// PublicPrefix is the URL path the server mounts the local upload directory on.
const PublicPrefix = "/uploads"

// Local stores blobs in a directory served statically under PublicPrefix.
type Local struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewLocal creates the upload directory when missing.
func NewLocal(dir, baseURL string, logger *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// Dir returns the directory blobs are written to.
func (l *Local) Dir() string { return l.dir }

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.dir, clean), nil
}

// Put writes body to key and returns its public URL.
func (l *Local) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", fmt.Errorf("close file: %w", err)
	}
	return l.baseURL + PublicPrefix + "/" + key, nil
}

// Delete removes key. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
