package cache

import (
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/entity-cache/internal/storage"
)

// Article -> Section -> []Item mirrors a typical nested entity graph.
type Article struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Child Section `json:"child"`
}

func (a Article) CacheID() string { return a.ID }

func (a Article) CacheChildren(m *Manager) { Put(m, a.Child) }

func (a *Article) EstablishConsistency(m *Manager, stale time.Time) {
	if !Resync(m, a, stale) {
		return
	}
	Refresh(m, &a.Child, stale)
}

func (a Article) Clone() Article {
	a.Child = a.Child.Clone()
	return a
}

type Section struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
	Items []Item `json:"items"`
}

func (s Section) CacheID() string { return s.ID }

func (s Section) CacheChildren(m *Manager) { PutMany(m, s.Items) }

func (s *Section) EstablishConsistency(m *Manager, stale time.Time) {
	if !Resync(m, s, stale) {
		return
	}
	s.Items = RefreshAll(m, s.Items, stale)
}

func (s Section) Clone() Section {
	if s.Items != nil {
		s.Items = append([]Item(nil), s.Items...)
	}
	return s
}

type Item struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (i Item) CacheID() string { return i.ID }

// Counter is a leaf with a fixed type name.
type Counter struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func (c Counter) CacheID() string { return c.ID }

func (Counter) CacheType() string { return "counter" }

// Badge names itself with a value receiver and is stored by pointer.
type Badge struct {
	ID string `json:"id"`
}

func (b Badge) CacheID() string { return b.ID }

func (Badge) CacheType() string { return "badge" }

// Note and Memo claim the same type identifier.
type Note struct {
	ID string `json:"id"`
}

func (n Note) CacheID() string { return n.ID }

func (Note) CacheType() string { return "shared" }

type Memo struct {
	ID string `json:"id"`
}

func (n Memo) CacheID() string { return n.ID }

func (Memo) CacheType() string { return "shared" }

// fakeClock hands out a settable time.
type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// flakyBackend fails Put or Delete for selected names.
type flakyBackend struct {
	*storage.Memory
	failPut    map[string]bool
	failDelete map[string]bool
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{Memory: storage.NewMemory(), failPut: map[string]bool{}, failDelete: map[string]bool{}}
}

func (f *flakyBackend) Put(name string, data []byte) error {
	if f.failPut[name] {
		return errors.New(errors.CodeDatabase, "disk full")
	}
	return f.Memory.Put(name, data)
}

func (f *flakyBackend) Delete(name string) error {
	if f.failDelete[name] {
		return errors.New(errors.CodeDatabase, "permission denied")
	}
	return f.Memory.Delete(name)
}

func sampleArticle() Article {
	return Article{
		ID:   "abc",
		Name: "Hello world",
		Child: Section{
			ID:    "xyz",
			Value: 100,
			Items: []Item{{ID: "blahtest", Value: "test"}},
		},
	}
}
