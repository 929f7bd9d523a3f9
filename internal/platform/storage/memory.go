package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory is an in-process ObjectStore used by tests and local runs without a bucket.
type Memory struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	deletes int
}

// NewMemory returns an empty Memory store.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, objects: make(map[string][]byte), types: make(map[string]string)}
}

// Bucket returns the bucket name.
func (m *Memory) Bucket() string { return m.bucket }

// Put stores body under path.
func (m *Memory) Put(_ context.Context, path, contentType string, body io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = buf.Bytes()
	m.types[path] = contentType
	return nil
}

// Delete removes path.
func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return ErrObjectNotExist
	}
	delete(m.objects, path)
	delete(m.types, path)
	m.deletes++
	return nil
}

// Has reports whether path exists.
func (m *Memory) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Deletes returns how many objects were removed.
func (m *Memory) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}
