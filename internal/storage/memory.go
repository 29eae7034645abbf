package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type Object struct {
	ContentType string
	Data        []byte
}

// Memory keeps objects in a map. Used by tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	puts    int
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		objects: make(map[string]Object),
		baseURL: baseURL,
	}
}

func (m *Memory) Put(ctx context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	m.puts++
	m.mu.Unlock()
	return joinURL(m.baseURL, key), nil
}

func (m *Memory) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

func (m *Memory) OpenFile(_ context.Context, key string) (io.ReadCloser, string, int64, error) {
	obj, ok := m.Get(key)
	if !ok {
		return nil, "", 0, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), obj.ContentType, int64(len(obj.Data)), nil
}

func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// Puts counts write calls, including overwrites.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
