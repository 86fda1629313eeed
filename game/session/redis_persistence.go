package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wricardo/mcp-training/memorygame/game/service"
)

const (
	// redisKeyPrefix is the key layout: memorygame:session:{id} -> session JSON
	redisKeyPrefix = "memorygame:session:"

	redisOpTimeout = 5 * time.Second
)

// RedisPersistence implements SessionPersistence on a Redis server. Each
// session is one string key whose TTL is refreshed on every save.
type RedisPersistence struct {
	rdb   *redis.Client
	ttl   time.Duration
	codec sessionCodec
}

// NewRedisPersistence creates a Redis-backed session store. A ttl of zero
// keeps records until they are deleted.
func NewRedisPersistence(rdb *redis.Client, ttl time.Duration, configManager service.ConfigManager) (*RedisPersistence, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if configManager == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPersistence{
		rdb:   rdb,
		ttl:   ttl,
		codec: sessionCodec{configs: configManager},
	}, nil
}

// buildSessionKey builds memorygame:session:{id}
func buildSessionKey(id string) string {
	return redisKeyPrefix + id
}

// Save stores the session JSON and refreshes its TTL
func (rp *RedisPersistence) Save(session *service.Session) error {
	data, err := rp.codec.encode(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rp.rdb.Set(ctx, buildSessionKey(session.ID), data, rp.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load fetches and decodes a session
func (rp *RedisPersistence) Load(id string) (*service.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := rp.rdb.Get(ctx, buildSessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return rp.codec.decode(id, data)
}

// Delete removes a session key
func (rp *RedisPersistence) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	removed, err := rp.rdb.Del(ctx, buildSessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if removed == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll scans for session keys
func (rp *RedisPersistence) ListAll() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	var sessionIDs []string
	iter := rp.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sessionIDs = append(sessionIDs, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessionIDs, nil
}

// Exists checks whether a session key is present
func (rp *RedisPersistence) Exists(id string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := rp.rdb.Exists(ctx, buildSessionKey(id)).Result()
	return err == nil && n > 0
}
