package gcpool

import (
	"container/list"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// Config carries the tunables the original DynamicMemPool took at
// construction time; field names mirror the gc.mem_blocks_pool.* keys.
type Config struct {
	InitialSize    uint32
	BlockSize      uint32
	GrowingFactor  float64
}

type poolEntry struct {
	base uintptr
	pool *MemoryPool
}

func lessPoolEntry(a, b poolEntry) bool { return a.base < b.base }

// DynamicMemPool manages a growing set of same-block-size MemoryPools,
// routing Get/Put to the pool that owns a given address.
type DynamicMemPool struct {
	cfg Config

	// byBase indexes every pool created so far by its base address, so
	// ReturnBlock can find the owning pool with an upper-bound lookup
	// exactly like the original's std::map::upper_bound.
	byBase *btree.BTreeG[poolEntry]

	// available is the FIFO of pools known to have at least one free
	// block, mirroring the original's std::queue<MemoryPool*>.
	available *list.List
}

// NewDynamicMemPool validates cfg and returns an empty pool set; the first
// chunk is created lazily on the first GetFreeBlock call.
func NewDynamicMemPool(cfg Config) (*DynamicMemPool, error) {
	if cfg.InitialSize == 0 || cfg.BlockSize == 0 {
		return nil, errors.New("gcpool: dynamic pool cannot start zero-sized")
	}
	if cfg.GrowingFactor <= 0 {
		return nil, errors.New("gcpool: growing factor must be positive")
	}

	return &DynamicMemPool{
		cfg:       cfg,
		byBase:    btree.NewG(32, lessPoolEntry),
		available: list.New(),
	}, nil
}

// GetFreeBlock serves a block from the first pool in the available queue
// that still has room, growing the set of pools if none do.
func (d *DynamicMemPool) GetFreeBlock() (uintptr, error) {
	for e := d.available.Front(); e != nil; e = d.available.Front() {
		pool := e.Value.(*MemoryPool)
		if addr, ok := pool.GetFreeBlock(); ok {
			return addr, nil
		}
		// Pool is now exhausted; drop it from the available queue and
		// try the next one.
		d.available.Remove(e)
	}

	size := d.cfg.InitialSize
	if d.byBase.Len() > 0 {
		size = growSize(d.cfg.InitialSize, d.cfg.GrowingFactor)
	}

	pool, err := NewMemoryPool(size, d.cfg.BlockSize)
	if err != nil {
		return 0, errors.Wrap(err, "gcpool: failed to grow dynamic pool")
	}

	d.byBase.ReplaceOrInsert(poolEntry{base: pool.BaseAddress(), pool: pool})

	addr, ok := pool.GetFreeBlock()
	if !ok {
		// A freshly created pool must have room; this would indicate a
		// construction bug, not a runtime condition callers can recover from.
		return 0, errors.New("gcpool: newly grown pool reports no free blocks")
	}
	d.available.PushBack(pool)

	return addr, nil
}

func growSize(initial uint32, factor float64) uint32 {
	grown := uint32(float64(initial) * factor)
	if grown == 0 {
		grown = initial
	}
	if grown > maxBlocksPerPool {
		grown = maxBlocksPerPool
	}
	return grown
}

// ReturnBlock finds the pool owning addr via an upper-bound lookup and
// returns the block to it, re-enqueueing the pool as available if it had
// previously been fully drained.
func (d *DynamicMemPool) ReturnBlock(addr uintptr) error {
	var owner *MemoryPool
	d.byBase.DescendLessOrEqual(poolEntry{base: addr}, func(item poolEntry) bool {
		owner = item.pool
		return false
	})

	if owner == nil || !owner.Contains(addr) {
		return errors.Errorf("gcpool: address %#x does not belong to any pool in this set", addr)
	}

	wasEmpty := owner.IsEmpty()
	if err := owner.ReturnBlock(addr); err != nil {
		return err
	}

	if wasEmpty {
		d.available.PushBack(owner)
	}

	return nil
}

// Shrink releases every pool in the set that is currently entirely free,
// bounding steady-state memory use without touching the host allocator on
// the allocation hot path.
func (d *DynamicMemPool) Shrink() {
	var toDelete []*MemoryPool

	for e := d.available.Front(); e != nil; {
		next := e.Next()
		pool := e.Value.(*MemoryPool)
		if pool.IsFull() {
			d.available.Remove(e)
			toDelete = append(toDelete, pool)
		}
		e = next
	}

	for _, pool := range toDelete {
		d.byBase.Delete(poolEntry{base: pool.BaseAddress()})
	}
}

// NumPools reports how many backing pools currently exist, for tests and
// metrics.
func (d *DynamicMemPool) NumPools() int { return d.byBase.Len() }
