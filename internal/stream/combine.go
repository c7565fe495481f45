package stream

import (
	"context"

	"chronoplan/internal/domain"
)

// Pair: согласованный снимок двух источников.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Combine объединяет два потока: каждое значение любого источника порождает пару с последним
// значением другого. Источник, который ещё ничего не прислал, даёт нулевое значение.
// Завершение одного источника не сбрасывает его последнее значение; поток завершается,
// когда завершены оба, или сразу при ошибке любого из них.
func Combine[A, B any](ctx context.Context, a domain.Feed[A], b domain.Feed[B]) *Feed[Pair[A, B]] {
	f, ctx := newFeed[Pair[A, B]](ctx)
	go func() {
		defer close(f.done)
		defer close(f.out)
		defer a.Close()
		defer b.Close()

		var cur Pair[A, B]
		ach, bch := a.Updates(), b.Updates()
		for ach != nil || bch != nil {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ach:
				if !ok {
					if err := a.Err(); err != nil {
						f.fail(err)
						return
					}
					ach = nil
					continue
				}
				cur.First = v
			case v, ok := <-bch:
				if !ok {
					if err := b.Err(); err != nil {
						f.fail(err)
						return
					}
					bch = nil
					continue
				}
				cur.Second = v
			}
			select {
			case f.out <- cur:
			case <-ctx.Done():
				return
			}
		}
	}()
	return f
}
