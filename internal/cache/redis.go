package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/internal/repository"
	"todo-api/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const todosCacheKey = "todos:all"

// Client connects to Redis using REDIS_URL. Returns nil when the URL is invalid or
// the server doesn't answer; callers then run without a cache.
func Client(ctx context.Context, cfg *config.Config) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error(ctx, "Invalid REDIS_URL", "error", err, "url", cfg.RedisURL)
		return nil
	}
	opts.PoolSize = cfg.RedisPoolSize
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error(ctx, "Redis ping failed", "error", err)
		client.Close()
		return nil
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", cfg.RedisPoolSize)
	return client
}

// CacheKey returns the key for a single todo.
func CacheKey(id int64) string {
	return fmt.Sprintf("todo:%d", id)
}

// Store is a read-through cache in front of another repository.Store.
// Single todos and the unfiltered list are cached; filtered lists always hit the
// backing store because the deadline window moves with the clock. Writes go to the
// backing store first and then drop the affected keys.
type Store struct {
	next   repository.Store
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewStore(next repository.Store, client *redis.Client, ttl time.Duration) *Store {
	return &Store{next: next, client: client, ttl: ttl}
}

func (s *Store) FindByID(ctx context.Context, id int64) (*models.Todo, error) {
	key := CacheKey(id)
	var todo models.Todo
	if s.get(ctx, key, &todo) {
		return &todo, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		ver, ok := s.version(ctx, key)
		t, err := s.next.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			s.setIfCurrent(ctx, key, ver, t)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Todo).Clone(), nil
}

func (s *Store) FindAll(ctx context.Context, filter repository.Filter) ([]models.Todo, error) {
	if !filter.IsZero() {
		return s.next.FindAll(ctx, filter)
	}
	var todos []models.Todo
	if s.get(ctx, todosCacheKey, &todos) {
		return todos, nil
	}
	v, err, _ := s.group.Do(todosCacheKey, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		ver, ok := s.version(ctx, todosCacheKey)
		todos, err := s.next.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			s.setIfCurrent(ctx, todosCacheKey, ver, todos)
		}
		return todos, nil
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]models.Todo)
	out := make([]models.Todo, len(shared))
	for i := range shared {
		out[i] = *shared[i].Clone()
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, todo *models.Todo) error {
	if err := s.next.Create(ctx, todo); err != nil {
		return err
	}
	s.Invalidate(ctx, todo.ID)
	return nil
}

func (s *Store) Update(ctx context.Context, todo *models.Todo) error {
	if err := s.next.Update(ctx, todo); err != nil {
		return err
	}
	s.Invalidate(ctx, todo.ID)
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	return nil
}

// Ping checks both Redis and the backing store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return s.next.Ping(ctx)
}

// Invalidate deletes the todo's key and the list key so the next read goes to the store.
// It also bumps their version keys, which stops a read that started before the write
// from caching what it saw.
func (s *Store) Invalidate(ctx context.Context, id int64) {
	ctx = context.WithoutCancel(ctx)
	keys := []string{CacheKey(id), todosCacheKey}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, versionKey(key))
			pipe.Expire(ctx, versionKey(key), s.versionTTL())
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "Redis invalidate todo failed", "error", err, "id", id)
	}
	for _, key := range keys {
		s.group.Forget(key)
	}
}

func versionKey(key string) string {
	return key + ":ver"
}

// versionTTL outlives any entry written under the version it guards.
func (s *Store) versionTTL() time.Duration {
	return s.ttl + time.Minute
}

// version reads the current version of key. ok is false when Redis can't answer,
// in which case the caller must not cache.
func (s *Store) version(ctx context.Context, key string) (ver string, ok bool) {
	ver, err := s.client.Get(ctx, versionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", true
	}
	if err != nil {
		logger.Debug(ctx, "Redis version read failed", "error", err, "key", key)
		return "", false
	}
	return ver, true
}

func (s *Store) get(ctx context.Context, key string, dst any) bool {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get failed", "error", err, "key", key)
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Debug(ctx, "Redis unmarshal failed", "error", err, "key", key)
		return false
	}
	return true
}

var errStaleRead = errors.New("cache: version changed during read")

// setIfCurrent caches v under key only while key's version still equals ver.
// The version key is WATCHed, so an Invalidate landing before EXEC aborts the write.
func (s *Store) setIfCurrent(ctx context.Context, key, ver string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Debug(ctx, "Marshal for cache failed", "error", err, "key", key)
		return
	}
	vk := versionKey(key)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != ver {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		return err
	}, vk)
	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		logger.Debug(ctx, "Skipped caching stale read", "key", key)
	default:
		logger.Debug(ctx, "Redis set failed", "error", err, "key", key)
	}
}
