package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes objects below a root directory that the HTTP server
// exposes under baseURL (by default /uploads).
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root and one sub-directory per category.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	for _, c := range []Category{CategoryDoctors, CategoryClinics, CategoryReports, CategoryMisc} {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &DiskStore{root: root, baseURL: baseURL}, nil
}

// Root is the directory served as static files.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) Save(ctx context.Context, category Category, up Upload) (*Object, error) {
	if err := validate(category, up); err != nil {
		return nil, err
	}
	data, err := readLimited(up.Content)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := objectKey(category, up.FileName)
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("finalise upload: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         joinURL(s.baseURL, key),
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return ErrObjectNotFound
	}
	if err := os.Remove(filepath.Join(s.root, clean)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (s *DiskStore) DeleteURL(ctx context.Context, url string) error {
	key, ok := KeyFromURL(s.baseURL, url)
	if !ok {
		return ErrObjectNotFound
	}
	return s.Delete(ctx, key)
}

// KeyFromURL strips baseURL from a stored URL. It returns false for URLs that
// were not issued by this store.
func KeyFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
