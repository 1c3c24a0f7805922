package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions 描述 redis 后端的连接参数。
type RedisOptions struct {
	// Client cannot be nil.
	Client redis.UniversalClient
	// Namespace 作为全部键的前缀，默认 esw。
	Namespace string
	// Timeout 限制单次读写耗时，默认 1s。
	Timeout time.Duration
}

// NewRedisStorage 基于 redis 构建多实例共享的缓存。键布局：
//
//	<ns>:caches          SET，记录全部缓存名称
//	<ns>:cache:<name>    HASH，field 为 key，value 为响应快照
func NewRedisStorage(opts RedisOptions) (Storage, error) {
	if opts.Client == nil {
		return nil, errors.New("nil client")
	}
	if opts.Namespace == "" {
		opts.Namespace = "esw"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	return &redisStorage{opts: opts}, nil
}

type redisStorage struct {
	opts RedisOptions
}

type redisCache struct {
	storage *redisStorage
	name    string
}

func (s *redisStorage) namesKey() string {
	return s.opts.Namespace + ":caches"
}

func (s *redisStorage) cacheKey(name string) string {
	return fmt.Sprintf("%s:cache:%s", s.opts.Namespace, name)
}

func (s *redisStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func (s *redisStorage) Open(ctx context.Context, name string) (Cache, error) {
	if name == "" {
		return nil, errors.New("cache name required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.opts.Client.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("redis sadd: %w", err)
	}
	return &redisCache{storage: s, name: name}, nil
}

func (s *redisStorage) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	names, err := s.opts.Client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return names, nil
}

func (s *redisStorage) Delete(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.opts.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.cacheKey(name))
		pipe.SRem(ctx, s.namesKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete cache: %w", err)
	}
	return nil
}

func (s *redisStorage) Close() error {
	return s.opts.Client.Close()
}

func (c *redisCache) Match(ctx context.Context, key string) (*Response, error) {
	ctx, cancel := c.storage.withTimeout(ctx)
	defer cancel()
	b, err := c.storage.opts.Client.HGet(ctx, c.storage.cacheKey(c.name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return decodeResponse(b)
}

func (c *redisCache) Put(ctx context.Context, key string, resp *Response) error {
	encoded, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	ctx, cancel := c.storage.withTimeout(ctx)
	defer cancel()
	if err := c.storage.opts.Client.HSet(ctx, c.storage.cacheKey(c.name), key, encoded).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}
