// Package cache defines the named, persistent response caches that hold the
// entry document for each worker generation. A Storage opens caches by name
// (`esw-index-<version>`), lists the names it holds and deletes whole caches;
// a Cache stores response snapshots keyed by absolute URL. Backends live side
// by side (memory, fs, leveldb, redis) and share the gob+snappy snapshot codec
// so higher layers never care where a generation is persisted.
package cache
