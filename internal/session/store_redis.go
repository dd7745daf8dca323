package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "storefront:session:"

	// maxUpdateAttempts bounds optimistic retries when another instance
	// writes the same session between our read and our write.
	maxUpdateAttempts = 100
)

var ErrUpdateConflict = errors.New("session changed concurrently too many times")

// RedisStore keeps sessions in Redis so they survive restarts and can be
// shared by several app instances. Update is safe across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	data, err := r.client.GetEx(ctx, redisKeyPrefix+id, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return decode(id, data)
}

func (r *RedisStore) Put(ctx context.Context, id string, s Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+id, data, r.ttl).Err()
}

// Update watches the session key, applies fn to the stored value and writes
// it in a MULTI/EXEC. A concurrent write to the key aborts the transaction
// and the whole read-modify-write is retried.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(s *Session, found bool) error) (Session, error) {
	key := redisKeyPrefix + id

	var out Session
	txf := func(tx *redis.Tx) error {
		var (
			s     Session
			found = true
		)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			found = false
		case err != nil:
			return err
		default:
			if s, err = decode(id, data); err != nil {
				return err
			}
		}

		if err := fn(&s, found); err != nil {
			return err
		}
		encoded, err := encode(s)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, r.ttl)
			return nil
		})
		if err == nil {
			out = s
			out.ID = id
		}
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return out, nil
	}
	return Session{}, ErrUpdateConflict
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisKeyPrefix+id).Err()
}
