package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "giveawaybot/pkg/logx"
)

const defaultRedisPrefix = "giveawaybot"

// redisStore keeps each collection in one hash: field = key, value = JSON.
type redisStore struct {
	rdb    *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("storage.addr is required for redis driver")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Debug("redis store opened", logx.String("addr", addr), logx.Int("db", cfg.DB))
	return &redisStore{rdb: rdb, prefix: redisPrefix(cfg.Prefix), log: log}, nil
}

func redisPrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), ":")
	if p == "" {
		return defaultRedisPrefix
	}
	return p
}

func (s *redisStore) hashKey(coll Collection) string {
	return s.prefix + ":" + string(coll)
}

func (s *redisStore) Close() error { return s.rdb.Close() }

func (s *redisStore) Get(ctx context.Context, coll Collection, key string) (json.RawMessage, error) {
	v, err := s.rdb.HGet(ctx, s.hashKey(coll), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(v), nil
}

func (s *redisStore) Put(ctx context.Context, coll Collection, key string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("storage: invalid document for %s/%s", coll, key)
	}
	return s.rdb.HSet(ctx, s.hashKey(coll), key, string(doc)).Err()
}

func (s *redisStore) Delete(ctx context.Context, coll Collection, key string) error {
	return s.rdb.HDel(ctx, s.hashKey(coll), key).Err()
}

func (s *redisStore) All(ctx context.Context, coll Collection) (map[string]json.RawMessage, error) {
	m, err := s.rdb.HGetAll(ctx, s.hashKey(coll)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}
