package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"transferbot/pkg/logx"
)

// fileStore keeps the cursor state in one JSON document:
//
//	{"last_ids": {"<feed-key>": <int>, ...}}
//
// The legacy single-feed shape {"last_id": <int>} is accepted on read.
// Writes go to a temp file in the same directory and are renamed into place.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("state.path is required for file driver")
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) Load(ctx context.Context) (CursorState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CursorState{}, ErrClosed
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return CursorState{}, err
	}
	return decodeCursorFile(b, s.log)
}

func decodeCursorFile(b []byte, log logx.Logger) (CursorState, error) {
	var doc map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return CursorState{}, fmt.Errorf("decode cursor file: %w", err)
	}

	st := NewCursorState()
	if raw, ok := doc["last_ids"]; ok {
		var ids map[string]json.RawMessage
		if err := json.Unmarshal(raw, &ids); err != nil {
			return CursorState{}, fmt.Errorf("decode last_ids: %w", err)
		}
		// One bad entry must not cost the other feeds their cursors.
		for k, v := range ids {
			id, ok := rawToID(v)
			if !ok {
				log.Debug("ignoring non-numeric cursor", logx.String("feed", k), logx.String("value", string(v)))
				continue
			}
			st.LastIDs[k] = id
		}
		return st, nil
	}
	if raw, ok := doc["last_id"]; ok {
		if v, ok := rawToID(raw); ok {
			st.LegacyLastID = &v
		}
	}
	return st, nil
}

// rawToID accepts a JSON number or a numeric string.
func rawToID(raw json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return numberToID(n)
}

// numberToID accepts integers and integral floats ("12", "12.0").
func numberToID(n json.Number) (int64, bool) {
	if v, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func (s *fileStore) Save(ctx context.Context, st CursorState) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ids := st.LastIDs
	if ids == nil {
		ids = map[string]int64{}
	}
	b, err := json.Marshal(struct {
		LastIDs map[string]int64 `json:"last_ids"`
	}{ids})
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		s.log.Debug("chmod cursor file failed", logx.Err(err))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		cleanup()
		return err
	}
	return nil
}
