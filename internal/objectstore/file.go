package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore keeps objects as plain files under a base directory. It serves
// local dry runs against a mounted share and tests that bypass S3.
type FileStore struct {
	base string
}

// NewFileStore returns a store rooted at base.
func NewFileStore(base string) *FileStore {
	return &FileStore{base: base}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}

// Upload copies the source file to the key's location, replacing any previous copy.
func (s *FileStore) Upload(ctx context.Context, key, sourcePath, _ string) (string, error) {
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		uploadErrors.Add(ctx, 1)
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	uploadCount.Add(ctx, 1)
	uploadBytes.Add(ctx, n)

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dst)}).String(), nil
}

// ObjectSize stats the file behind key.
func (s *FileStore) ObjectSize(_ context.Context, key string) (int64, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return 0, err
	}
	return info.Size(), nil
}
