package genart

import "github.com/gogpu/genart/internal/cache"

// ProgramCache memoizes Compile by formula fingerprint, so liveness runs once
// per formula rather than once per render or per pixel.
//
// ProgramCache is safe for concurrent use.
type ProgramCache struct {
	programs *cache.ShardedCache[uint64, *Program]
}

// CacheStats is a snapshot of ProgramCache statistics.
type CacheStats = cache.Stats

// NewProgramCache creates a cache holding roughly capacity programs.
// A non-positive capacity uses the cache default.
func NewProgramCache(capacity int) *ProgramCache {
	perShard := 0
	if capacity > 0 {
		perShard = max(capacity/cache.DefaultShardCount, 1)
	}
	return &ProgramCache{
		programs: cache.NewSharded[uint64, *Program](perShard, cache.Uint64Hasher),
	}
}

// Get returns the compiled program for f, compiling it on a miss.
//
// The key is the fingerprint of f as given, not of its normalized form, so
// formulas that differ only in an ignored control field get separate entries
// that compile to equal programs.
func (c *ProgramCache) Get(f Formula) *Program {
	fp := f.Fingerprint()
	return c.programs.GetOrCreate(fp, func() *Program {
		Logger().Debug("genart: compiling program", "fingerprint", fp)
		return Compile(f)
	})
}

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int {
	return c.programs.Len()
}

// Stats returns hit/miss statistics.
func (c *ProgramCache) Stats() CacheStats {
	return c.programs.Stats()
}
