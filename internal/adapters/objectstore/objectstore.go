// Package objectstore хранит вложения и выдаёт на них публичные URL.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"chronoplan/internal/domain"
)

// Object: сохранённое вложение.
type Object struct {
	ContentType string
	Data        []byte
}

// Reader отдаёт вложение по пути для HTTP-раздачи.
type Reader interface {
	Open(ctx context.Context, path string) (Object, error)
}

// PublicURL строит адрес вложения.
func PublicURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/files/" + strings.TrimLeft(path, "/")
}

// MaxObjectSize ограничивает размер одного вложения.
const MaxObjectSize = 10 << 20

func readAll(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if len(data) > MaxObjectSize {
		return nil, domain.E(domain.KindUpload, "put object", fmt.Errorf("object exceeds %d bytes", MaxObjectSize))
	}
	return data, nil
}

func validPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// Memory: процессное хранилище вложений.
type Memory struct {
	baseURL string
	mu      sync.Mutex
	objects map[string]Object
	failPut error
}

var (
	_ domain.ObjectStore = (*Memory)(nil)
	_ Reader             = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище.
func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, objects: make(map[string]Object)}
}

// FailPuts заставляет Put возвращать err.
func (m *Memory) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = err
}

// Put сохраняет вложение.
func (m *Memory) Put(_ context.Context, path string, body io.Reader, contentType string) error {
	m.mu.Lock()
	failPut := m.failPut
	m.mu.Unlock()
	if failPut != nil {
		return failPut
	}
	if !validPath(path) {
		return domain.Invalid("put object", "invalid object path")
	}
	data, err := readAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = Object{ContentType: contentType, Data: data}
	return nil
}

// DownloadURL возвращает публичный адрес вложения.
func (m *Memory) DownloadURL(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return "", domain.E(domain.KindNotFound, "download url", nil)
	}
	return PublicURL(m.baseURL, path), nil
}

// Open возвращает вложение.
func (m *Memory) Open(_ context.Context, path string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return Object{}, domain.E(domain.KindNotFound, "open object", nil)
	}
	return obj, nil
}

// Paths возвращает сохранённые пути.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	return out
}
