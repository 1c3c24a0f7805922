package cache

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/any-hub/esw-index/internal/config"
)

// NewStorage 根据 StorageBackend 选择缓存后端，调用方负责 Close。
func NewStorage(cfg config.GlobalConfig) (Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemoryStorage(), nil
	case config.BackendFS, "":
		return NewFileStorage(cfg.StoragePath)
	case config.BackendLevelDB:
		return NewLevelDBStorage(cfg.StoragePath)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		})
		return NewRedisStorage(RedisOptions{Client: client})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
