package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// leveldb 键布局：
//
//	c:<name>            缓存存在标记（Open 时写入）
//	e:<name>\x00<key>   响应快照
const (
	levelCachePrefix = "c:"
	levelEntryPrefix = "e:"
)

// NewLevelDBStorage 在 path 下打开（或创建）leveldb 数据库。
func NewLevelDBStorage(path string) (Storage, error) {
	if path == "" {
		return nil, errors.New("storage path required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &levelStorage{db: db}, nil
}

type levelStorage struct {
	db *leveldb.DB
}

type levelCache struct {
	db   *leveldb.DB
	name string
}

func (s *levelStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("cache name required")
	}
	if err := s.db.Put([]byte(levelCachePrefix+name), nil, nil); err != nil {
		return nil, err
	}
	return &levelCache{db: s.db, name: name}, nil
}

func (s *levelStorage) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelCachePrefix)), nil)
	defer it.Release()

	var out []string
	for it.Next() {
		out = append(out, string(it.Key()[len(levelCachePrefix):]))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *levelStorage) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(levelCachePrefix + name))

	it := s.db.NewIterator(util.BytesPrefix(levelEntryKeyPrefix(name)), nil)
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		batch.Delete(key)
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *levelStorage) Close() error {
	return s.db.Close()
}

func (c *levelCache) Match(ctx context.Context, key string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := c.db.Get(levelEntryKey(c.name, key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeResponse(b)
}

func (c *levelCache) Put(ctx context.Context, key string, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	return c.db.Put(levelEntryKey(c.name, key), encoded, nil)
}

func levelEntryKeyPrefix(name string) []byte {
	return []byte(levelEntryPrefix + name + "\x00")
}

func levelEntryKey(name, key string) []byte {
	return append(levelEntryKeyPrefix(name), key...)
}
