package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leonardcser/entity-cache/internal/storage"
)

// ChangeFunc is called after every write with the written entity's type
// identifier and value.
type ChangeFunc func(typeID string, entity Cachable)

type Options struct {
	// Clock stamps every write. Defaults to time.Now.
	Clock func() time.Time
	// OnChange is the initial change handler; see SetChangeHandler.
	OnChange ChangeFunc
	// SaveConcurrency is how many types Save encodes and stores at once.
	// Values <= 1 save types one after another in registration order.
	SaveConcurrency int
}

// Manager is an in-process store of cachable entities, keyed by type and id.
// It is safe for concurrent use by multiple goroutines: reads share a read
// lock and every write holds the exclusive lock for the duration of the
// in-memory mutation only. Change handlers, CacheChildren hooks and backend
// I/O all run with no lock held.
type Manager struct {
	mu     sync.RWMutex
	tables map[string]table

	clock    atomic.Pointer[func() time.Time]
	onChange atomic.Pointer[ChangeFunc]

	backend         storage.Backend
	regMu           sync.Mutex
	binders         []binder
	saveConcurrency int
}

// New returns an empty Manager that persists registered types to backend.
// backend may be nil if Save, Restore and Clear are never called.
func New(backend storage.Backend, opts Options) *Manager {
	m := &Manager{
		tables:          make(map[string]table),
		backend:         backend,
		saveConcurrency: opts.SaveConcurrency,
	}
	m.SetClock(opts.Clock)
	m.SetChangeHandler(opts.OnChange)
	return m
}

// SetClock replaces the clock used to stamp writes. nil restores time.Now.
func (m *Manager) SetClock(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	m.clock.Store(&fn)
}

// SetChangeHandler installs fn as the single change handler, replacing any
// previous one. nil disables notifications. The handler runs synchronously
// on the writing goroutine after the write has been applied; it may call back
// into the Manager.
func (m *Manager) SetChangeHandler(fn ChangeFunc) {
	if fn == nil {
		m.onChange.Store(nil)
		return
	}
	m.onChange.Store(&fn)
}

// Now reads the clock that stamps writes.
func (m *Manager) Now() time.Time { return (*m.clock.Load())() }

func (m *Manager) notify(typeID string, v Cachable) {
	if fn := m.onChange.Load(); fn != nil {
		(*fn)(typeID, v)
	}
}

// tableFor returns T's table, or nil if nothing of type T was ever stored.
// It panics if another Go type already owns typeID. Callers must hold m.mu.
func tableFor[T Cachable](m *Manager, typeID string) typedTable[T] {
	existing, ok := m.tables[typeID]
	if !ok {
		return nil
	}
	t, ok := existing.(typedTable[T])
	if !ok {
		panic(fmt.Sprintf("cache: type id %q is used by both %s and %s",
			typeID, existing.valueType(), reflect.TypeFor[T]()))
	}
	return t
}

// ensureTable returns T's table, creating it if needed. Callers must hold
// m.mu for writing.
func ensureTable[T Cachable](m *Manager, typeID string) typedTable[T] {
	t := tableFor[T](m, typeID)
	if t == nil {
		t = make(typedTable[T])
		m.tables[typeID] = t
	}
	return t
}

// Get returns the value stored for id if it exists and was written after
// stale (a zero stale accepts any age). Absent and stale records are
// indistinguishable: both report false.
func Get[T Cachable](m *Manager, id string, stale time.Time) (T, bool) {
	rec, ok := GetRecord[T](m, id)
	if !ok || !rec.IsValid(stale) {
		var zero T
		return zero, false
	}
	return rec.Value, true
}

// GetRecord returns the raw record for id regardless of its age.
func GetRecord[T Cachable](m *Manager, id string) (Record[T], bool) {
	typeID := TypeID[T]()
	rec, ok := func() (Record[T], bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		rec, ok := tableFor[T](m, typeID)[id]
		return rec, ok
	}()
	if !ok {
		return Record[T]{}, false
	}
	rec.Value = clone(rec.Value)
	return rec, true
}

// Put stores v under its own CacheID. See PutAs.
func Put[T Cachable](m *Manager, v T) {
	PutAs(m, v, v.CacheID())
}

// PutAs stores v under id, then fires the change handler, then caches v's
// children (each of which fires its own notification).
func PutAs[T Cachable](m *Manager, v T, id string) {
	typeID := TypeID[T]()
	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		ensureTable[T](m, typeID)[id] = Record[T]{LastUpdated: m.Now(), Value: clone(v)}
	}()

	m.notify(typeID, v)
	cacheChildren(m, v)
}

// PutMany stores every value under its own CacheID in a single exclusive
// section. Once all are stored, each value's children are cached, then one
// notification fires per value in input order. Unlike Put, a batch therefore
// notifies for its children before the values that hold them.
func PutMany[T Cachable](m *Manager, vs []T) {
	if len(vs) == 0 {
		return
	}
	typeID := TypeID[T]()
	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t := ensureTable[T](m, typeID)
		for _, v := range vs {
			t[v.CacheID()] = Record[T]{LastUpdated: m.Now(), Value: clone(v)}
		}
	}()

	for _, v := range vs {
		cacheChildren(m, v)
	}
	for _, v := range vs {
		m.notify(typeID, v)
	}
}

// Modify atomically replaces the value stored for id. fn receives the
// current value (ok is false if there is none) and returns the new value and
// whether to keep it; returning false removes the entry. fn runs while the
// exclusive lock is held and must not call back into the Manager.
//
// Modify is the only safe way to do read-modify-write updates: a Get
// followed by a Put can lose concurrent writes to the same id.
func Modify[T Cachable](m *Manager, id string, fn func(v T, ok bool) (T, bool)) {
	typeID := TypeID[T]()
	v, keep := func() (T, bool) {
		m.mu.Lock()
		defer m.mu.Unlock()
		cur, ok := tableFor[T](m, typeID)[id]
		v, keep := fn(clone(cur.Value), ok)
		switch {
		case keep:
			ensureTable[T](m, typeID)[id] = Record[T]{LastUpdated: m.Now(), Value: clone(v)}
		case ok:
			delete(tableFor[T](m, typeID), id)
		}
		return v, keep
	}()
	if !keep {
		return
	}
	cacheChildren(m, v)
	m.notify(typeID, v)
}

// Expire removes the record for id, if any.
func Expire[T Cachable](m *Manager, id string) {
	m.ExpireID(TypeID[T](), id)
}

// ExpireID is Expire for callers that only know the type identifier. It
// reports whether a record was removed.
func (m *Manager) ExpireID(typeID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[typeID]
	if !ok {
		return false
	}
	return t.remove(id)
}

// FlushRecords removes, across all types, every record written at or before
// storedBefore, and returns how many were removed.
func (m *Manager) FlushRecords(storedBefore time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, t := range m.tables {
		removed += t.flush(storedBefore)
	}
	return removed
}

// Reset discards every in-memory record. Persistent storage is untouched.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.tables = make(map[string]table)
	m.mu.Unlock()
}

// Types returns the identifiers of every type with at least one record.
func (m *Manager) Types() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.tables))
	for id, t := range m.tables {
		if t.len() > 0 {
			out = append(out, id)
		}
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of records stored for typeID.
func (m *Manager) Len(typeID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[typeID]; ok {
		return t.len()
	}
	return 0
}

// Records lists the records of typeID, sorted by id.
func (m *Manager) Records(typeID string) []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[typeID]
	if !ok {
		return nil
	}
	return t.infos(typeID)
}

// Lookup returns the JSON encoding of the value stored for (typeID, id).
func (m *Manager) Lookup(typeID, id string) (json.RawMessage, Info, bool, error) {
	m.mu.RLock()
	var (
		value any
		at    time.Time
		ok    bool
	)
	if t, found := m.tables[typeID]; found {
		value, at, ok = t.lookup(id)
	}
	m.mu.RUnlock()
	if !ok {
		return nil, Info{}, false, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, Info{}, false, encodeError(err, typeID)
	}
	return raw, Info{TypeID: typeID, ID: id, LastUpdated: at}, true, nil
}
