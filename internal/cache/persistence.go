package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/leonardcser/entity-cache/internal/logger"
	"github.com/leonardcser/entity-cache/internal/storage"
)

// binder saves, restores and deletes the persisted table of one concrete
// type, so Save and Restore can walk a plain list without being generic.
type binder interface {
	typeID() string
	save(m *Manager) error
	restore(m *Manager) error
	remove(m *Manager) error
}

type typedBinder[T Cachable] struct {
	id string
}

// RegisterForPersistence opts T into Save, Restore and Clear. Registration
// is not deduplicated: register each type once, during setup.
func RegisterForPersistence[T Cachable](m *Manager) {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	m.binders = append(m.binders, typedBinder[T]{id: TypeID[T]()})
}

// Registered returns the type identifiers registered for persistence, in
// registration order.
func (m *Manager) Registered() []string {
	binders := m.registered()
	out := make([]string, len(binders))
	for i, b := range binders {
		out[i] = b.typeID()
	}
	return out
}

func (m *Manager) registered() []binder {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	return append([]binder(nil), m.binders...)
}

func (b typedBinder[T]) typeID() string { return b.id }

// save snapshots the table under the read lock, then encodes and stores it
// with no lock held. A type with no records is saved as an empty table.
func (b typedBinder[T]) save(m *Manager) error {
	snapshot := func() map[string]Record[T] {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return tableFor[T](m, b.id).clone()
	}()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return encodeError(err, b.id)
	}
	if err := m.backend.Put(b.id, data); err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "cache: store "+b.id), "type", b.id)
	}
	logger.Debugf("cache: saved %d %s records (%d bytes)", len(snapshot), b.id, len(data))
	return nil
}

// restore replaces T's in-memory table with the persisted one. A type that
// was never saved is left alone.
func (b typedBinder[T]) restore(m *Manager) error {
	data, err := m.backend.Get(b.id)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Debugf("cache: nothing persisted for %s", b.id)
		return nil
	}
	if err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "cache: retrieve "+b.id), "type", b.id)
	}
	var t typedTable[T]
	if err := json.Unmarshal(data, &t); err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeSchemaFailed, "cache: decode "+b.id), "type", b.id)
	}
	if t == nil {
		t = make(typedTable[T])
	}
	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		tableFor[T](m, b.id)
		m.tables[b.id] = t
	}()
	logger.Debugf("cache: restored %d %s records", len(t), b.id)
	return nil
}

func (b typedBinder[T]) remove(m *Manager) error {
	if err := m.backend.Delete(b.id); err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeDatabase, "cache: delete "+b.id), "type", b.id)
	}
	return nil
}

func encodeError(err error, typeID string) error {
	return errors.WithContext(errors.Wrap(err, errors.CodeInternal, "cache: encode "+typeID), "type", typeID)
}

// Save writes every registered type's records to the backend, one blob per
// type. The first failure stops the save and is returned; types saved
// before it stay saved.
func (m *Manager) Save() error {
	binders := m.registered()
	if m.saveConcurrency <= 1 {
		for _, b := range binders {
			if err := b.save(m); err != nil {
				logger.Warnf("cache: save aborted at %s: %v", b.typeID(), err)
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(m.saveConcurrency)
	for _, b := range binders {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return b.save(m)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warnf("cache: save aborted: %v", err)
		return err
	}
	return nil
}

// Restore loads every registered type from the backend, replacing whatever
// that type held in memory. Records of a restored type that are missing from
// its blob are lost. The first failure stops the restore.
func (m *Manager) Restore() error {
	for _, b := range m.registered() {
		if err := b.restore(m); err != nil {
			logger.Warnf("cache: restore aborted at %s: %v", b.typeID(), err)
			return err
		}
	}
	return nil
}

// Clear empties the in-memory store, then deletes every registered type's
// blob. Deletion failures do not stop the others; they are all reported in
// a ClearError. The in-memory clear stands even when deletes fail.
func (m *Manager) Clear() error {
	m.Reset()

	var failures []TypeError
	for _, b := range m.registered() {
		if err := b.remove(m); err != nil {
			failures = append(failures, TypeError{TypeID: b.typeID(), Err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	clearErr := &ClearError{Failures: failures}
	logger.Warnf("%v", clearErr)
	return errors.Wrap(clearErr, errors.CodeDatabase, "cache: clear persistent storage")
}

// TypeError is the failure of a persistence step for one type.
type TypeError struct {
	TypeID string
	Err    error
}

func (e TypeError) Error() string { return e.TypeID + ": " + e.Err.Error() }

func (e TypeError) Unwrap() error { return e.Err }

// ClearError collects every deletion failure of one Clear call.
type ClearError struct {
	Failures []TypeError
}

func (e *ClearError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("cache: %d persisted types could not be deleted: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *ClearError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// TypeIDs returns the identifiers of the failed types.
func (e *ClearError) TypeIDs() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.TypeID
	}
	return out
}
