package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid blob path")

// BlobStore stores uploaded bytes under a slash-separated path and hands
// back a URL clients can fetch them from.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Delete(ctx context.Context, name string) error
}

// DiskStore keeps blobs under a root directory; the HTTP server exposes the
// same directory under BaseURL.
type DiskStore struct {
	root    string
	baseURL string
}

func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	// Write then rename so readers never see a half-written file.
	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit blob: %w", err)
	}

	return s.URL(clean), nil
}

func (s *DiskStore) Delete(_ context.Context, name string) error {
	clean, err := CleanPath(name)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// URL is the public address of a stored blob.
func (s *DiskStore) URL(name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

// CleanPath normalizes a blob path and rejects anything that would escape
// the store root.
func CleanPath(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasSuffix(clean, ".part") {
		return "", ErrInvalidPath
	}
	return clean, nil
}
