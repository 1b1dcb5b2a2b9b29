// Package cursor wraps a storage.Store with the tolerant semantics the poll
// cycle relies on: Load never fails and Save never propagates errors.
package cursor

import (
	"context"
	"errors"
	"io/fs"

	"transferbot/internal/storage"
	"transferbot/pkg/logx"
)

type Store struct {
	backend storage.Store
	log     logx.Logger
}

func New(backend storage.Store, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{backend: backend, log: log}
}

// Load returns the persisted cursors for keys. Any backend failure yields a
// state with every key at 0. Keys missing from the backend are filled with 0.
func (s *Store) Load(ctx context.Context, keys []string) storage.CursorState {
	if s == nil || s.backend == nil {
		return Normalize(storage.NewCursorState(), keys)
	}
	st, err := s.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("no cursor state yet; starting from zero")
		} else {
			s.log.Warn("cursor load failed; starting from zero", logx.Err(err))
		}
		return Normalize(storage.NewCursorState(), keys)
	}
	return Normalize(st, keys)
}

// Save persists st. Errors are logged and swallowed: a lost checkpoint only
// risks a duplicate notification.
func (s *Store) Save(ctx context.Context, st storage.CursorState) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Save(ctx, st); err != nil {
		s.log.Warn("cursor save failed", logx.Err(err))
	}
}

func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Normalize converts the legacy single-cursor shape into the per-feed mapping
// and ensures every key is present. The legacy value goes to the first key.
// Keys not configured are kept so removing a feed from config does not lose
// its cursor.
func Normalize(st storage.CursorState, keys []string) storage.CursorState {
	out := st.Clone()
	if out.LegacyLastID != nil {
		if len(keys) > 0 {
			if _, ok := out.LastIDs[keys[0]]; !ok {
				out.LastIDs[keys[0]] = *out.LegacyLastID
			}
		}
		out.LegacyLastID = nil
	}
	for _, k := range keys {
		if _, ok := out.LastIDs[k]; !ok {
			out.LastIDs[k] = 0
		}
	}
	return out
}
