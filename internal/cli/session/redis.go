package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis constructs a redis-backed session store for one server.
// The session is a single string key, so token and role are written together.
func NewRedis(server string, cfg RedisConfig) (Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "gridsight:session:"
	}

	return &redisStore{
		client: client,
		key:    prefix + server,
		ttl:    cfg.TTL,
	}, nil
}

func (r *redisStore) Load(ctx context.Context) (Session, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return decode(raw)
}

func (r *redisStore) Save(ctx context.Context, s Session) error {
	if err := validateForSave(s); err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *redisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close releases the redis connection pool
func (r *redisStore) Close() error {
	return r.client.Close()
}
