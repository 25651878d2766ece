package cache

import (
	"reflect"
	"sort"
	"time"
)

// table is the type-agnostic face of one entity type's records, used by
// operations that span types (flush, inspection) without knowing T.
type table interface {
	len() int
	flush(cutoff time.Time) int
	infos(typeID string) []Info
	lookup(id string) (value any, lastUpdated time.Time, ok bool)
	remove(id string) bool
	valueType() reflect.Type
}

// typedTable holds every record of one concrete type, keyed by entity id.
type typedTable[T Cachable] map[string]Record[T]

func (t typedTable[T]) len() int { return len(t) }

// flush removes records stored at or before cutoff.
func (t typedTable[T]) flush(cutoff time.Time) int {
	removed := 0
	for id, rec := range t {
		if !rec.LastUpdated.After(cutoff) {
			delete(t, id)
			removed++
		}
	}
	return removed
}

func (t typedTable[T]) infos(typeID string) []Info {
	out := make([]Info, 0, len(t))
	for id, rec := range t {
		out = append(out, Info{TypeID: typeID, ID: id, LastUpdated: rec.LastUpdated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t typedTable[T]) lookup(id string) (any, time.Time, bool) {
	rec, ok := t[id]
	if !ok {
		return nil, time.Time{}, false
	}
	return rec.Value, rec.LastUpdated, true
}

func (t typedTable[T]) remove(id string) bool {
	if _, ok := t[id]; !ok {
		return false
	}
	delete(t, id)
	return true
}

func (typedTable[T]) valueType() reflect.Type { return reflect.TypeFor[T]() }

// clone copies the id -> record mapping. Values are shared, which is safe
// because stored records are never mutated.
func (t typedTable[T]) clone() map[string]Record[T] {
	out := make(map[string]Record[T], len(t))
	for id, rec := range t {
		out[id] = rec
	}
	return out
}
