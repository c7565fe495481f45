// Package state хранит снимок состояния экрана. Изменения применяются по одному в
// собственной горутине, читатели получают целый снимок без блокировок.
package state

import (
	"context"
	"sync"
	"sync/atomic"

	"chronoplan/internal/domain"
)

type request[S any] struct {
	fn   func(S) S
	done chan struct{}
}

// Store: снимок состояния экрана с единственным писателем и группой задач,
// отменяемых вместе.
type Store[S any] struct {
	snap     atomic.Pointer[S]
	requests chan request[S]
	stop     chan struct{}
	stopped  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// New создаёт хранилище с начальным состоянием.
func New[S any](initial S) *Store[S] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store[S]{
		requests: make(chan request[S]),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.snap.Store(&initial)
	go s.loop()
	return s
}

func (s *Store[S]) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stop:
			return
		case req := <-s.requests:
			next := req.fn(*s.snap.Load())
			s.snap.Store(&next)
			close(req.done)
		}
	}
}

// Snapshot возвращает последний опубликованный снимок.
func (s *Store[S]) Snapshot() S { return *s.snap.Load() }

// Update применяет fn к текущему снимку и ждёт публикации результата.
// После Close вызов ничего не делает.
func (s *Store[S]) Update(fn func(S) S) {
	req := request[S]{fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return
	}
	select {
	case <-req.done:
	case <-s.stopped:
	}
}

// Context отменяется при Close.
func (s *Store[S]) Context() context.Context { return s.ctx }

// Launch запускает задачу в группе хранилища. После Close задачи не запускаются.
func (s *Store[S]) Launch(task func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.tasks.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.tasks.Done()
		task(s.ctx)
	}()
}

// Close отменяет задачи, дожидается их и останавливает писателя.
func (s *Store[S]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.tasks.Wait()
	close(s.stop)
	<-s.stopped
}

// Collect читает поток в задаче хранилища и передаёт каждое значение в onValue.
// По завершению потока вызывается onDone с его ошибкой.
func Collect[S, T any](s *Store[S], open func(ctx context.Context) domain.Feed[T], onValue func(T), onDone func(error)) {
	s.Launch(func(ctx context.Context) {
		feed := open(ctx)
		defer feed.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-feed.Updates():
				if !ok {
					if onDone != nil {
						onDone(feed.Err())
					}
					return
				}
				onValue(v)
			}
		}
	})
}
