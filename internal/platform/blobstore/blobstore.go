// Package blobstore stores uploaded files (doctor photos, clinic images,
// reports) and returns the public path the rest of the system persists.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/clinicbook/clinic/internal/platform/apperr"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("only jpeg, png, gif, pdf, doc and docx files are allowed")
	ErrInvalidCategory    = errors.New("unknown upload category")
	ErrMissingFileName    = errors.New("file name is required")
)

// AppError reports upload validation failures as InvalidArgument and
// passes other errors through.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return apperr.InvalidArgument("FILE_TOO_LARGE", err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return apperr.InvalidArgument("INVALID_FILE_TYPE", err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrInvalidCategory):
		return apperr.InvalidArgument("INVALID_FILE", err.Error())
	}
	return err
}

// MaxFileSize is the per-file upload limit (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// Category groups uploads into top-level folders.
type Category string

const (
	CategoryDoctors Category = "doctors"
	CategoryClinics Category = "clinics"
	CategoryReports Category = "reports"
	CategoryMisc    Category = "misc"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDoctors, CategoryClinics, CategoryReports, CategoryMisc:
		return true
	}
	return false
}

// allowedTypes maps accepted extensions to the MIME types they may carry.
var allowedTypes = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

// Upload is a file to be stored.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store is implemented by every storage backend.
type Store interface {
	Save(ctx context.Context, category Category, up Upload) (*Object, error)
	Delete(ctx context.Context, key string) error
	// DeleteURL removes the object behind a URL returned by Save.
	DeleteURL(ctx context.Context, url string) error
}

// ValidateType checks that both the extension and the declared MIME type are
// on the allow list. Parameters such as "; charset=" are ignored.
func ValidateType(fileName, contentType string) error {
	ext := strings.ToLower(path.Ext(fileName))
	mimes, ok := allowedTypes[ext]
	if !ok {
		return ErrInvalidContentType
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, m := range mimes {
		if m == ct {
			return nil
		}
	}
	return ErrInvalidContentType
}

// readLimited reads up to MaxFileSize bytes and fails if there is more.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func validate(category Category, up Upload) error {
	if !category.Valid() {
		return ErrInvalidCategory
	}
	if up.FileName == "" {
		return ErrMissingFileName
	}
	return ValidateType(up.FileName, up.ContentType)
}

// objectKey builds "<category>/<uuid><ext>". Client file names never reach
// the file system.
func objectKey(category Category, fileName string) string {
	return string(category) + "/" + uuid.New().String() + strings.ToLower(path.Ext(fileName))
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// sniffLen is how much of a file is inspected when the client sends no type.
// Office formats need more than the first few hundred bytes.
const sniffLen = 3072

// FromFormFile opens a multipart file header as an Upload. When the client
// sent no Content-Type the type is sniffed from the file header.
func FromFormFile(fh *multipart.FileHeader) (Upload, func() error, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, nil, fmt.Errorf("open form file: %w", err)
	}
	ct := fh.Header.Get("Content-Type")
	var r io.Reader = f
	if ct == "" || ct == "application/octet-stream" {
		head := make([]byte, sniffLen)
		n, _ := io.ReadFull(f, head)
		ct = mimetype.Detect(head[:n]).String()
		r = io.MultiReader(bytes.NewReader(head[:n]), f)
	}
	return Upload{FileName: fh.Filename, ContentType: ct, Content: r}, f.Close, nil
}

// MemoryStore keeps objects in memory. Used in tests and when no upload
// directory is configured.
type MemoryStore struct {
	baseURL string
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, category Category, up Upload) (*Object, error) {
	if err := validate(category, up); err != nil {
		return nil, err
	}
	data, err := readLimited(up.Content)
	if err != nil {
		return nil, err
	}

	key := objectKey(category, up.FileName)
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return &Object{
		Key:         key,
		URL:         joinURL(s.baseURL, key),
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) DeleteURL(ctx context.Context, url string) error {
	key, ok := KeyFromURL(s.baseURL, url)
	if !ok {
		return ErrObjectNotFound
	}
	return s.Delete(ctx, key)
}

// Get returns a stored object's bytes.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}
