package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalObjectStore keeps objects on the local filesystem under
// baseDir/bucket/key. Object URLs are plain file paths, which the image
// pipeline reads directly.
type LocalObjectStore struct {
	baseDir string
}

var _ ObjectStore = (*LocalObjectStore)(nil)

func NewLocalObjectStore(dir string) (*LocalObjectStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}

	return &LocalObjectStore{baseDir: baseDir}, nil
}

func (s *LocalObjectStore) fullpath(bucket, key string) string {
	return filepath.Join(s.baseDir, bucket, filepath.FromSlash(key))
}

func (s *LocalObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	if err := os.MkdirAll(filepath.Join(s.baseDir, bucket), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create bucket directory %s: %w", bucket, err)
	}
	return nil
}

func (s *LocalObjectStore) PutObject(ctx context.Context, bucket, key string, data io.Reader) error {
	path := s.fullpath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", bucket, key, err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s/%s: %w", bucket, key, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, data); err != nil {
		return fmt.Errorf("failed to write file %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *LocalObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(s.fullpath(bucket, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *LocalObjectStore) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := os.Remove(s.fullpath(bucket, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *LocalObjectStore) ObjectURL(bucket, key string) string {
	return s.fullpath(bucket, key)
}
