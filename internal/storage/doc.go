// Package storage persists the per-feed cursor state.
//
// Drivers:
//   - file:   a single JSON document ({"last_ids": {...}}), written atomically
//   - sqlite: a "cursors" table in a SQLite database file
//   - redis:  one hash with a field per feed key
//
// Drivers surface raw errors. Callers that need tolerant behaviour wrap a
// Store (see internal/cursor).
package storage
