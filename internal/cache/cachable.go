package cache

import (
	"reflect"
	"sync"
	"time"
)

// Cachable is implemented by every entity type the Manager can store.
// CacheID must be unique among values of the same type; ids of different
// types live in separate namespaces.
type Cachable interface {
	CacheID() string
}

// ChildCacher is implemented by composite entities. CacheChildren is called
// after the entity itself is stored and should Put each nested entity, so
// children become independent records of their own type.
type ChildCacher interface {
	CacheChildren(m *Manager)
}

// Consistent is implemented (on the pointer) by composite entities that need
// more than Resync to catch up with the cache: typically Resync on the
// receiver followed by Refresh or RefreshAll on each nested entity.
type Consistent interface {
	EstablishConsistency(m *Manager, stale time.Time)
}

// TypeNamer overrides the type identifier derived from the Go type. It is
// called on the zero value (a pointer to a zero value for pointer entity
// types) and must return a constant that no other entity type returns; the
// Manager panics when a second type reaches a table owned by another.
type TypeNamer interface {
	CacheType() string
}

// Cloner is implemented by entities holding slices, maps or pointers. When
// present, values are cloned on the way into and out of the store; without it
// those fields are shared with the stored record and must be treated as
// read-only.
type Cloner[T any] interface {
	Clone() T
}

var typeIDs sync.Map // reflect.Type -> string

// TypeID returns the identifier T is stored under: the package path and type
// name, unless T implements TypeNamer. The identifier is also the blob name
// used for persistence, so it has to stay stable across runs.
func TypeID[T Cachable]() string {
	t := reflect.TypeFor[T]()
	if id, ok := typeIDs.Load(t); ok {
		return id.(string)
	}
	id := typeName(t)
	if n, ok := namer(t); ok {
		id = n.CacheType()
	}
	typeIDs.Store(t, id)
	return id
}

// namer returns a TypeNamer for t built on a zero value. Pointer types get a
// pointer to a fresh zero value so value-receiver methods never see nil.
func namer(t reflect.Type) (TypeNamer, bool) {
	v := reflect.Zero(t)
	if t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem())
	}
	n, ok := v.Interface().(TypeNamer)
	return n, ok
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		return "*" + typeName(t.Elem())
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Resync replaces *v with the latest value cached under its id, unless that
// value is absent or was stored at or before stale. It reports whether *v
// was replaced. Resync does not touch nested entities.
func Resync[T Cachable](m *Manager, v *T, stale time.Time) bool {
	latest, ok := Get[T](m, (*v).CacheID(), stale)
	if !ok {
		return false
	}
	*v = latest
	return true
}

// Refresh establishes consistency for *v: it defers to the type's
// EstablishConsistency when *T implements Consistent and falls back to
// Resync otherwise.
func Refresh[T Cachable](m *Manager, v *T, stale time.Time) {
	if c, ok := any(v).(Consistent); ok {
		c.EstablishConsistency(m, stale)
		return
	}
	Resync(m, v, stale)
}

// RefreshAll refreshes every element and returns the result in a new slice;
// vs itself may be shared with a stored record and is never written.
func RefreshAll[T Cachable](m *Manager, vs []T, stale time.Time) []T {
	if vs == nil {
		return nil
	}
	out := make([]T, len(vs))
	copy(out, vs)
	for i := range out {
		Refresh(m, &out[i], stale)
	}
	return out
}

func cacheChildren[T Cachable](m *Manager, v T) {
	switch c := any(v).(type) {
	case ChildCacher:
		c.CacheChildren(m)
	default:
		if pc, ok := any(&v).(ChildCacher); ok {
			pc.CacheChildren(m)
		}
	}
}

func clone[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}
