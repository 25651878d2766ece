// Package cache is an in-process store of typed entities keyed by (type, id).
//
// Each concrete entity type gets its own flat table of timestamped records.
// Nested entities are not linked: when a composite is stored, its
// CacheChildren hook pushes each child into the child's own table, and the
// parent keeps an inlined copy that may go stale. A holder of a stale copy
// calls Refresh, which replaces the value with the latest cached version and,
// for types implementing Consistent, recurses into the children.
//
// Registered types can be saved to and restored from a storage.Backend, one
// JSON blob per type.
package cache
