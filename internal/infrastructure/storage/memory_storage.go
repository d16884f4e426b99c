package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
)

// MemoryObject is a stored object
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryObjectStorage keeps objects in process memory. Download URLs point at
// BaseURL and are not signed; it is meant for local runs and tests.
type MemoryObjectStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]MemoryObject
}

// NewMemoryObjectStorage creates an empty store
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost/files"
	}
	return &MemoryObjectStorage{BaseURL: baseURL, objects: make(map[string]MemoryObject)}
}

// Put reads body fully and stores it
func (s *MemoryObjectStorage) Put(_ context.Context, storageKey string, body io.Reader, size int64, contentType string) error {
	if storageKey == "" {
		return errMissingKey
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("object size mismatch: declared %d, read %d", size, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = MemoryObject{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

// GenerateDownloadURL returns an unsigned URL under BaseURL
func (s *MemoryObjectStorage) GenerateDownloadURL(_ context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errMissingKey
	}
	s.mu.RLock()
	_, ok := s.objects[storageKey]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, fmt.Errorf("object %q not found", storageKey)
	}

	expiresAt := time.Now().Add(expiresIn)
	q := url.Values{"expires": {expiresAt.UTC().Format(time.RFC3339)}}
	return s.BaseURL + "/" + url.PathEscape(storageKey) + "?" + q.Encode(), expiresAt, nil
}

// DeleteObject removes storageKey; missing keys are ignored
func (s *MemoryObjectStorage) DeleteObject(_ context.Context, storageKey string) error {
	if storageKey == "" {
		return errMissingKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

// Get returns a stored object
func (s *MemoryObjectStorage) Get(storageKey string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	return obj, ok
}

// Ensure MemoryObjectStorage implements ObjectStorage
var _ appbilling.ObjectStorage = (*MemoryObjectStorage)(nil)
