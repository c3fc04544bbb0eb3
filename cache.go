package watc

import "github.com/watc-project/watc/internal/ssa"

// CacheKey identifies one compiled function's cache entry: the embedder is
// responsible for making it unique per (module content hash, function
// index, target ISA, compiler version) tuple, since this package has no
// module-hashing logic of its own.
type CacheKey [32]byte

// CacheStore lets an embedder persist CompiledFunction results across
// process restarts (or across instances of the same module within one
// process) instead of recompiling every function every time. CompileFunction never
// calls a CacheStore itself — CompileWithCache does — so an embedder that
// doesn't want caching can use CompileFunction directly with zero overhead.
type CacheStore interface {
	// Get returns a previously-stored CompiledFunction's serialized bytes,
	// and false if key isn't present.
	Get(key CacheKey) ([]byte, bool)
	// Put stores a CompiledFunction's serialized bytes under key.
	Put(key CacheKey, value []byte)
}

// CompileWithCache wraps CompileFunction with a CacheStore lookup: a hit
// deserializes the cached CompiledFunction via decode; a miss compiles
// normally and stores the result via encode before returning it.
func (c *Compiler) CompileWithCache(store CacheStore, key CacheKey, decode func([]byte) (*CompiledFunction, error), encode func(*CompiledFunction) ([]byte, error), funcIndex uint32, sig *ssa.Signature, body Body) (*CompiledFunction, error) {
	if raw, ok := store.Get(key); ok {
		cf, err := decode(raw)
		if err != nil {
			return nil, environmentError(funcIndex, err)
		}
		return cf, nil
	}
	cf, err := c.CompileFunction(funcIndex, sig, body)
	if err != nil {
		return nil, err
	}
	raw, err := encode(cf)
	if err != nil {
		return nil, environmentError(funcIndex, err)
	}
	store.Put(key, raw)
	return cf, nil
}
