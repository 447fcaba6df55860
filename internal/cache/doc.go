// Package cache provides the generic caches used by genart.
//
// # ShardedCache[K, V]
//
// A 16-shard LRU cache for keys hit from many goroutines at once, such as
// compiled programs keyed by formula fingerprint while a sheet of previews
// renders in parallel.
//
//	programs := cache.NewSharded[uint64, *genart.Program](64, cache.Uint64Hasher)
//	p := programs.GetOrCreate(fp, func() *genart.Program { return genart.Compile(f) })
//
// # Cache[K, V]
//
// A single-lock LRU with a soft limit and an optional eviction callback, for
// values that own external resources (GPU pipelines) and must be released
// when dropped.
//
// Neither cache may be copied after creation.
package cache
