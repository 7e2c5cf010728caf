// Package broadcast fans values out to a dynamic, ordered set of observers.
//
// Observers are notified synchronously in subscription order. A panicking
// observer is logged and skipped, the remaining observers still receive the
// value. Subscribing the same observer twice yields two independent
// subscriptions. Subscribe and Unsubscribe may be called from any goroutine,
// Publish works on a snapshot taken when it starts.
package broadcast

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

type Observer[T any] interface {
	Observe(ctx context.Context, v T)
}

type ObserverFunc[T any] func(ctx context.Context, v T)

func (f ObserverFunc[T]) Observe(ctx context.Context, v T) {
	f(ctx, v)
}

// Subscription identifies one registration of an observer.
type Subscription[T any] struct {
	b        *Broadcast[T]
	observer Observer[T]
}

// Close removes the subscription, calling it more than once is a no-op.
func (s *Subscription[T]) Close() {
	if s == nil || s.b == nil {
		return
	}
	s.b.Unsubscribe(s)
}

type Broadcast[T any] struct {
	mx   sync.Mutex
	subs []*Subscription[T]
}

func New[T any]() *Broadcast[T] {
	return &Broadcast[T]{}
}

func (b *Broadcast[T]) Subscribe(o Observer[T]) *Subscription[T] {
	s := &Subscription[T]{b: b, observer: o}
	b.mx.Lock()
	b.subs = append(b.subs, s)
	b.mx.Unlock()
	return s
}

// Unsubscribe removes s. Unknown subscriptions are ignored.
func (b *Broadcast[T]) Unsubscribe(s *Subscription[T]) {
	b.mx.Lock()
	defer b.mx.Unlock()
	idx := slices.Index(b.subs, s)
	if idx < 0 {
		return
	}
	b.subs = slices.Delete(b.subs, idx, idx+1)
}

// Scope subscribes all observers and returns a function releasing them.
func (b *Broadcast[T]) Scope(observers ...Observer[T]) func() {
	subs := make([]*Subscription[T], 0, len(observers))
	for _, o := range observers {
		subs = append(subs, b.Subscribe(o))
	}
	return func() {
		for _, s := range subs {
			s.Close()
		}
	}
}

func (b *Broadcast[T]) Publish(ctx context.Context, v T) {
	b.mx.Lock()
	subs := slices.Clone(b.subs)
	b.mx.Unlock()

	for _, s := range subs {
		notify(ctx, s.observer, v)
	}
}

func (b *Broadcast[T]) Len() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.subs)
}

func notify[T any](ctx context.Context, o Observer[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "observer panicked: ignoring", "panic", r)
		}
	}()
	o.Observe(ctx, v)
}
