// AngelaMos | 2026
// namespace.go

package cache

import (
	"context"
	"time"
)

// Namespace is a typed view over a key prefix. Every value written under
// the prefix goes through the same JSON encoding of T.
type Namespace[T any] struct {
	store  *Store
	prefix string
	ttl    time.Duration
}

func NewNamespace[T any](store *Store, prefix string, ttl time.Duration) *Namespace[T] {
	return &Namespace[T]{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (n *Namespace[T]) Key(id string) string {
	return n.prefix + ":" + id
}

func (n *Namespace[T]) Pattern() string {
	return n.prefix + ":*"
}

func (n *Namespace[T]) Get(ctx context.Context, id string) (T, bool) {
	var v T
	if !n.store.Get(ctx, n.Key(id), &v) {
		var zero T
		return zero, false
	}
	return v, true
}

func (n *Namespace[T]) Set(ctx context.Context, id string, v T) bool {
	return n.store.Set(ctx, n.Key(id), v, n.ttl)
}

func (n *Namespace[T]) Invalidate(ctx context.Context, id string) bool {
	return n.store.Delete(ctx, n.Key(id))
}

func (n *Namespace[T]) Purge(ctx context.Context) int64 {
	return n.store.ClearPattern(ctx, n.Pattern())
}
