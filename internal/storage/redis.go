package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"transferbot/pkg/logx"
)

// redisStore keeps one hash "<prefix>:last_ids" with a field per feed key.
type redisStore struct {
	rdb *redis.Client
	key string
	log logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("state.redis_addr is required for redis driver")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &redisStore{rdb: rdb, key: hashKey(cfg.RedisPrefix), log: log}, nil
}

func hashKey(prefix string) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "transferbot"
	}
	return prefix + ":last_ids"
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

func (s *redisStore) Load(ctx context.Context) (CursorState, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return CursorState{}, err
	}
	st := NewCursorState()
	for k, raw := range fields {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.log.Debug("ignoring non-numeric cursor", logx.String("feed", k), logx.String("value", raw))
			continue
		}
		st.LastIDs[k] = v
	}
	return st, nil
}

func (s *redisStore) Save(ctx context.Context, st CursorState) error {
	if len(st.LastIDs) == 0 {
		return nil
	}
	values := make(map[string]any, len(st.LastIDs))
	for k, v := range st.LastIDs {
		values[k] = v
	}
	return s.rdb.HSet(ctx, s.key, values).Err()
}
