package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/justapithecus/colbench/colbench"
)

// Memory implements colbench.Store using an in-memory map. It stands in for
// a remote object store in tests.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// Put writes data to the given path, replacing any existing object.
// Returns ErrInvalidPath if the path is empty or contains traversal sequences.
func (m *Memory) Put(_ context.Context, p string, r io.Reader) error {
	normalized, valid := normalizePath(p)
	if !valid {
		return colbench.ErrInvalidPath
	}

	// Read data before acquiring lock to minimize lock duration
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[normalized] = data
	m.mu.Unlock()
	return nil
}

// Get retrieves data from the given path.
// Returns ErrNotFound if the path does not exist.
func (m *Memory) Get(_ context.Context, p string) (io.ReadCloser, error) {
	normalized, valid := normalizePath(p)
	if !valid {
		return nil, colbench.ErrInvalidPath
	}

	m.mu.RLock()
	data, exists := m.data[normalized]
	m.mu.RUnlock()

	if !exists {
		return nil, colbench.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// Exists checks whether a path exists.
func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	normalized, valid := normalizePath(p)
	if !valid {
		return false, colbench.ErrInvalidPath
	}

	m.mu.RLock()
	_, exists := m.data[normalized]
	m.mu.RUnlock()

	return exists, nil
}

// Delete removes the path if it exists.
func (m *Memory) Delete(_ context.Context, p string) error {
	normalized, valid := normalizePath(p)
	if !valid {
		return colbench.ErrInvalidPath
	}

	m.mu.Lock()
	delete(m.data, normalized)
	m.mu.Unlock()

	return nil
}

// normalizePath cleans a slash-separated object path.
// Returns the normalized path and whether it's valid.
func normalizePath(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	cleaned := strings.TrimPrefix(path.Clean(p), "/")
	if cleaned == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

var _ colbench.Store = (*Memory)(nil)
