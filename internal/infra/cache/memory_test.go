package cache

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryOnce(t *testing.T) {
	c := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	calls := 0
	fn := func() error { calls++; return nil }
	_ = c.Once("verify:u1", time.Minute, fn)
	_ = c.Once("verify:u1", time.Minute, fn)
	if calls != 1 {
		t.Fatalf("ожидали один вызов, получили %d", calls)
	}

	now = now.Add(2 * time.Minute)
	_ = c.Once("verify:u1", time.Minute, fn)
	if calls != 2 {
		t.Fatalf("после истечения TTL ожидали повторный вызов")
	}
}

func TestMemoryOnceReleasesOnError(t *testing.T) {
	c := NewMemory()
	boom := errors.New("smtp down")
	if err := c.Once("k", time.Minute, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку fn, получили %v", err)
	}
	called := false
	_ = c.Once("k", time.Minute, func() error { called = true; return nil })
	if !called {
		t.Fatalf("ключ должен освобождаться после ошибки")
	}
}

func TestMemoryGetMiss(t *testing.T) {
	c := NewMemory()
	if _, err := c.Get("absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("ожидали ErrMiss, получили %v", err)
	}
	_ = c.Set("k", []byte("v"), 0)
	v, err := c.Get("k")
	if err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}
