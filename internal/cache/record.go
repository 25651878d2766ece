package cache

import "time"

// Record is one stored value together with the time the manager wrote it.
// Records are never mutated in place; a write replaces the whole record.
type Record[T any] struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Value       T         `json:"value"`
}

// IsValid reports whether the record may be trusted under the staleness
// cutoff stale. A zero cutoff accepts every record.
func (r Record[T]) IsValid(stale time.Time) bool {
	return isValid(r.LastUpdated, stale)
}

// IsFresh reports whether the record was written after expiry. A zero expiry
// never counts as fresh.
func (r Record[T]) IsFresh(expiry time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return r.LastUpdated.After(expiry)
}

func isValid(lastUpdated, stale time.Time) bool {
	if stale.IsZero() {
		return true
	}
	return lastUpdated.After(stale)
}

// Info is the type-agnostic view of a stored record.
type Info struct {
	TypeID      string    `json:"type"`
	ID          string    `json:"id"`
	LastUpdated time.Time `json:"lastUpdated"`
}
