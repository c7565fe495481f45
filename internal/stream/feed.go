// Package stream реализует холодные потоки для view-моделей.
package stream

import (
	"context"
	"sync"

	"chronoplan/internal/domain"
)

// Feed: поток значений с гарантированным освобождением источника при завершении.
type Feed[T any] struct {
	out    chan T
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

var _ domain.Feed[int] = (*Feed[int])(nil)

func newFeed[T any](ctx context.Context) (*Feed[T], context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Feed[T]{out: make(chan T), done: make(chan struct{}), cancel: cancel}, ctx
}

// Updates возвращает канал значений. Канал закрывается при завершении потока.
func (f *Feed[T]) Updates() <-chan T { return f.out }

// Err возвращает причину завершения или nil.
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close отменяет подписку и ждёт освобождения источника.
func (f *Feed[T]) Close() {
	f.cancel()
	<-f.done
}

func (f *Feed[T]) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Emitter передаёт значения из колбэка слушателя в поток. Непрочитанное значение
// заменяется более свежим.
type Emitter[T any] struct {
	mu      sync.Mutex
	pending T
	has     bool
	closed  bool
	err     error
	signal  chan struct{}
}

func newEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{signal: make(chan struct{}, 1)}
}

// Send публикует значение. После Close или Fail вызов игнорируется.
func (e *Emitter[T]) Send(v T) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.pending, e.has = v, true
	e.mu.Unlock()
	e.notify()
}

// Fail завершает поток с ошибкой.
func (e *Emitter[T]) Fail(err error) {
	e.finish(err)
}

// Close завершает поток без ошибки.
func (e *Emitter[T]) Close() {
	e.finish(nil)
}

func (e *Emitter[T]) finish(err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed, e.err = true, err
	e.mu.Unlock()
	e.notify()
}

func (e *Emitter[T]) notify() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *Emitter[T]) take() (v T, has, closed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, has = e.pending, e.has
	var zero T
	e.pending, e.has = zero, false
	return v, has, e.closed, e.err
}

// RegisterFunc регистрирует слушателя и возвращает функцию его снятия.
type RegisterFunc[T any] func(em *Emitter[T]) (release func(), err error)

// FromCallback строит поток поверх колбэчного слушателя. release вызывается ровно один раз
// при любом завершении: Close подписчика, отмена ctx, Close или Fail эмиттера.
func FromCallback[T any](ctx context.Context, register RegisterFunc[T]) *Feed[T] {
	f, ctx := newFeed[T](ctx)
	em := newEmitter[T]()
	go func() {
		defer close(f.done)
		defer close(f.out)
		release, err := register(em)
		if err != nil {
			f.fail(err)
			return
		}
		if release != nil {
			defer release()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-em.signal:
			}
			v, has, closed, err := em.take()
			if has {
				select {
				case f.out <- v:
				case <-ctx.Done():
					return
				}
			}
			if closed {
				f.fail(err)
				return
			}
		}
	}()
	return f
}

// Just возвращает поток из одного значения, который затем завершается.
func Just[T any](v T) *Feed[T] {
	return FromCallback(context.Background(), func(em *Emitter[T]) (func(), error) {
		em.Send(v)
		em.Close()
		return nil, nil
	})
}

// Failed возвращает поток, который сразу завершается ошибкой.
func Failed[T any](err error) *Feed[T] {
	return FromCallback(context.Background(), func(em *Emitter[T]) (func(), error) {
		return nil, err
	})
}
