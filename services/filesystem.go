package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemAssetStore keeps blobs under a local directory, for development.
type FileSystemAssetStore struct {
	rootDir string
	baseURL string
}

func NewFileSystemAssetStore(rootDir, baseURL string) (*FileSystemAssetStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemAssetStore{rootDir: rootDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FileSystemAssetStore) Upload(ctx context.Context, body io.Reader, kind AssetKind, filename, contentType string) (*StoredAsset, error) {
	key, err := objectKey(kind, filename)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, body)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write asset file: %w", err)
	}

	return &StoredAsset{
		URL:    s.baseURL + "/" + key,
		ID:     key,
		Format: extension(filename),
		Bytes:  n,
	}, nil
}

func (s *FileSystemAssetStore) Delete(ctx context.Context, id string, kind AssetKind) error {
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("invalid asset id %q", id)
	}
	if err := os.Remove(filepath.Join(s.rootDir, clean)); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	return nil
}

// Root is the directory served for asset URLs.
func (s *FileSystemAssetStore) Root() string {
	return s.rootDir
}
