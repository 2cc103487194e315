package vcs

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is the error returned by MemorySource for paths marked failing.
var ErrInjected = errors.New("vcs: injected failure")

// MemorySource is an in-memory ContentSource for tests.
type MemorySource struct {
	mu      sync.RWMutex
	base    map[string][]byte
	head    map[string][]byte
	failing map[string]bool
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		base:    make(map[string][]byte),
		head:    make(map[string][]byte),
		failing: make(map[string]bool),
	}
}

// Set stores content for path on the given side.
func (m *MemorySource) Set(side Side, path string, data []byte) *MemorySource {
	m.mu.Lock()
	defer m.mu.Unlock()

	if side == Base {
		m.base[path] = data
	} else {
		m.head[path] = data
	}

	return m
}

// Fail makes every read of path return ErrInjected.
func (m *MemorySource) Fail(path string) *MemorySource {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failing[path] = true

	return m
}

// Content implements ContentSource.
func (m *MemorySource) Content(_ context.Context, side Side, path string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing[path] {
		return nil, false, ErrInjected
	}

	var (
		data []byte
		ok   bool
	)

	if side == Base {
		data, ok = m.base[path]
	} else {
		data, ok = m.head[path]
	}

	return data, ok, nil
}
