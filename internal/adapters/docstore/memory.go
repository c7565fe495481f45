package docstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
)

// Memory: процессное хранилище документов. Слушатели вызываются синхронно под мьютексом,
// поэтому снимки приходят в порядке записей.
type Memory struct {
	mu        sync.Mutex
	docs      map[string]map[string]map[string]any
	listeners map[string]map[int]domain.SnapshotFunc
	nextID    int
	offline   error

	calls atomic.Int64
}

var _ domain.DocumentStore = (*Memory)(nil)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		docs:      make(map[string]map[string]map[string]any),
		listeners: make(map[string]map[int]domain.SnapshotFunc),
	}
}

// Calls возвращает число обращений к хранилищу.
func (m *Memory) Calls() int64 { return m.calls.Load() }

// SetOffline включает режим, в котором каждый вызов завершается ошибкой сети. nil выключает его.
func (m *Memory) SetOffline(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = err
}

// BreakListeners завершает слушателей коллекции ошибкой.
func (m *Memory) BreakListeners(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, fn := range m.listeners[collection] {
		fn(nil, err)
		delete(m.listeners[collection], id)
		metrics.ListenerStopped(kind(collection))
	}
}

// Listeners возвращает число активных слушателей коллекции.
func (m *Memory) Listeners(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[collection])
}

func (m *Memory) check(op string) error {
	m.calls.Add(1)
	if m.offline != nil {
		return domain.E(domain.KindNetwork, op, m.offline)
	}
	return nil
}

// Get возвращает документ.
func (m *Memory) Get(_ context.Context, path string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("get document"); err != nil {
		return domain.Document{}, err
	}
	collection, id := SplitPath(path)
	data, ok := m.docs[collection][id]
	if !ok {
		return domain.Document{}, domain.E(domain.KindNotFound, "get document", nil)
	}
	return domain.Document{ID: id, Data: cloneData(data)}, nil
}

// Set перезаписывает документ.
func (m *Memory) Set(_ context.Context, path string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("set document"); err != nil {
		return err
	}
	collection, id := SplitPath(path)
	m.put(collection, id, data)
	return nil
}

// Add создаёт документ с новым идентификатором.
func (m *Memory) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("add document"); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.put(collection, id, data)
	return id, nil
}

// Delete удаляет документ.
func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete document"); err != nil {
		return err
	}
	collection, id := SplitPath(path)
	if _, ok := m.docs[collection][id]; !ok {
		return nil
	}
	delete(m.docs[collection], id)
	m.notify(collection)
	return nil
}

// Listen регистрирует слушателя и сразу отдаёт текущий снимок.
func (m *Memory) Listen(_ context.Context, collection string, fn domain.SnapshotFunc) (domain.ListenerRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("listen collection"); err != nil {
		return nil, err
	}
	if m.listeners[collection] == nil {
		m.listeners[collection] = make(map[int]domain.SnapshotFunc)
	}
	m.nextID++
	id := m.nextID
	m.listeners[collection][id] = fn
	metrics.ListenerStarted(kind(collection))
	fn(m.snapshot(collection), nil)
	return &memoryRegistration{store: m, collection: collection, id: id}, nil
}

func (m *Memory) put(collection, id string, data map[string]any) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]map[string]any)
	}
	m.docs[collection][id] = cloneData(data)
	m.notify(collection)
}

func (m *Memory) notify(collection string) {
	listeners := m.listeners[collection]
	if len(listeners) == 0 {
		return
	}
	ids := make([]int, 0, len(listeners))
	for id := range listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		listeners[id](m.snapshot(collection), nil)
	}
}

func (m *Memory) snapshot(collection string) []domain.Document {
	docs := make([]domain.Document, 0, len(m.docs[collection]))
	for id, data := range m.docs[collection] {
		docs = append(docs, domain.Document{ID: id, Data: cloneData(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

type memoryRegistration struct {
	store      *Memory
	collection string
	id         int
	once       sync.Once
}

func (r *memoryRegistration) Remove() {
	r.once.Do(func() {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		if _, ok := r.store.listeners[r.collection][r.id]; ok {
			delete(r.store.listeners[r.collection], r.id)
			metrics.ListenerStopped(kind(r.collection))
		}
	})
}
