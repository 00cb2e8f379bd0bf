package cache

import "time"

// View is a typed handle onto one namespace of a Store, so callers of a
// given namespace see a concrete value type instead of any.
type View[V any] struct {
	store *Store
	ns    string
}

// NewView creates a typed view over the named namespace.
func NewView[V any](store *Store, ns string) View[V] {
	return View[V]{store: store, ns: ns}
}

// Namespace returns the namespace this view reads and writes.
func (v View[V]) Namespace() string { return v.ns }

func (v View[V]) Set(key string, value V) {
	v.store.Set(v.ns, key, value)
}

// Get returns the value for key if present and unexpired against ttl
// (<= 0 selects the store default).
func (v View[V]) Get(key string, ttl time.Duration) (V, bool) {
	raw, ok := v.store.Get(v.ns, key, ttl)
	if !ok {
		var zero V
		return zero, false
	}
	val, ok := raw.(V)
	if !ok {
		// Another writer stored a foreign type under this namespace.
		var zero V
		return zero, false
	}
	return val, true
}

func (v View[V]) Has(key string, ttl time.Duration) bool {
	return v.store.Has(v.ns, key, ttl)
}

func (v View[V]) Delete(key string) bool {
	return v.store.Delete(v.ns, key)
}

func (v View[V]) Clear() {
	v.store.Clear(v.ns)
}

func (v View[V]) Stats() (Stats, bool) {
	return v.store.GetStats(v.ns)
}
