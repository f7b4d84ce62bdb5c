package collector

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/threefd/tracegc/internal/gcconfig"
	"github.com/threefd/tracegc/internal/gcpool"
)

// sizeClassPools lazily creates one DynamicMemPool per power-of-two size
// class, the same slab-per-size-class idea a buffer pool uses (one
// chan-backed slab per rounded buffer size) adapted to gcpool's
// fixed-block-size pools. Without size classing, a single pool
// sized for the smallest request would hand out blocks narrower than
// larger callers' vertex ranges, corrupting the digraph's address-range
// containment index.
//
// DynamicMemPool's own container/list.List and btree.BTreeG index are not
// safe for concurrent use, and AllocAndRegister's allocation runs on the
// calling producer goroutine while the matching Release runs later on the
// worker goroutine when the vertex is destroyed — so mu is held for the
// full GetFreeBlock/ReturnBlock call on every path below, not just the
// pool-map lookup, making a DynamicMemPool effectively single-threaded
// from its own point of view regardless of which goroutine reaches it.
type sizeClassPools struct {
	cfg gcconfig.Settings

	mu    sync.Mutex
	pools map[uint32]*gcpool.DynamicMemPool
}

func newSizeClassPools(cfg gcconfig.Settings) *sizeClassPools {
	return &sizeClassPools{cfg: cfg, pools: make(map[uint32]*gcpool.DynamicMemPool)}
}

// classFor rounds nbytes up to the next power of two, floored at 2 bytes
// (AllocAndRegister's documented minimum alignment).
func classFor(nbytes int) uint32 {
	if nbytes <= 2 {
		return 2
	}
	class := uint32(2)
	for class < uint32(nbytes) {
		class <<= 1
	}
	return class
}

// locked returns (lazily creating) the pool for nbytes' size class.
// Callers must hold mu.
func (s *sizeClassPools) locked(nbytes int) (*gcpool.DynamicMemPool, error) {
	class := classFor(nbytes)

	if p, ok := s.pools[class]; ok {
		return p, nil
	}

	p, err := gcpool.NewDynamicMemPool(gcpool.Config{
		InitialSize:   s.cfg.PoolInitialSize,
		BlockSize:     class,
		GrowingFactor: s.cfg.PoolGrowingFactor,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "collector: failed to create a size-class %d pool", class)
	}
	s.pools[class] = p
	return p, nil
}

// alloc serves one block sized for nbytes. mu is held for the whole
// GetFreeBlock call so two producer goroutines allocating from the same
// size class can never interleave inside DynamicMemPool.
func (s *sizeClassPools) alloc(nbytes int) (uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, err := s.locked(nbytes)
	if err != nil {
		return 0, err
	}

	addr, err := pool.GetFreeBlock()
	if err != nil {
		return 0, errors.Wrap(err, "collector: allocation failed")
	}
	return addr, nil
}

// free returns addr, previously obtained from alloc(nbytes), to its
// owning pool. mu is held for the whole ReturnBlock call for the same
// reason as alloc.
func (s *sizeClassPools) free(nbytes int, addr uintptr) error {
	class := classFor(nbytes)

	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[class]
	if !ok {
		return errors.Errorf("collector: no size-class %d pool to return block %#x to", class, addr)
	}
	return pool.ReturnBlock(addr)
}

// shrink releases every fully-drained pool across every size class.
func (s *sizeClassPools) shrink() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pools {
		p.Shrink()
	}
}

// numPools sums backing pools across every size class, for tests.
func (s *sizeClassPools) numPools() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, p := range s.pools {
		total += p.NumPools()
	}
	return total
}
