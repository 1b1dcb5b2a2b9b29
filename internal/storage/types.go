package storage

import (
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON file at Path
//   - "sqlite": SQLite database file at Path
//   - "redis": Redis at RedisAddr, hash "<RedisPrefix>:last_ids"
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

// CursorState maps feed key to the highest record id already notified.
type CursorState struct {
	LastIDs map[string]int64 `json:"last_ids"`

	// LegacyLastID is set when the file driver read the old single-feed
	// shape {"last_id": N}. It is never written back.
	LegacyLastID *int64 `json:"-"`
}

func NewCursorState() CursorState {
	return CursorState{LastIDs: map[string]int64{}}
}

// Get returns the cursor for key, 0 when unknown.
func (s CursorState) Get(key string) int64 {
	return s.LastIDs[key]
}

func (s *CursorState) Set(key string, id int64) {
	if s.LastIDs == nil {
		s.LastIDs = map[string]int64{}
	}
	s.LastIDs[key] = id
}

func (s CursorState) Clone() CursorState {
	out := CursorState{LastIDs: make(map[string]int64, len(s.LastIDs))}
	for k, v := range s.LastIDs {
		out.LastIDs[k] = v
	}
	if s.LegacyLastID != nil {
		v := *s.LegacyLastID
		out.LegacyLastID = &v
	}
	return out
}
