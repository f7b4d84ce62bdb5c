package gcpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPool_AddressTagging(t *testing.T) {
	pool, err := NewMemoryPool(64, 16)
	require.NoError(t, err)

	for i := 0; i < 64; i++ {
		addr, ok := pool.GetFreeBlock()
		require.True(t, ok)
		assert.Zero(t, addr&0x3, "block address must have its two low bits clear")

		tagged := addr | 0x1
		assert.Equal(t, addr, tagged&^uintptr(0x3), "masking the tag bit must recover the original address")
	}
}

func TestMemoryPool_Exhaustion(t *testing.T) {
	const n = 8
	pool, err := NewMemoryPool(n, 8)
	require.NoError(t, err)

	var addrs []uintptr
	for i := 0; i < n; i++ {
		addr, ok := pool.GetFreeBlock()
		require.True(t, ok)
		addrs = append(addrs, addr)
	}

	_, ok := pool.GetFreeBlock()
	assert.False(t, ok, "pool should be exhausted after handing out every block")
	assert.True(t, pool.IsEmpty())

	require.NoError(t, pool.ReturnBlock(addrs[0]))
	assert.False(t, pool.IsEmpty())

	addr, ok := pool.GetFreeBlock()
	assert.True(t, ok)
	assert.Equal(t, addrs[0], addr, "the returned block should be the next one handed out")

	_, ok = pool.GetFreeBlock()
	assert.False(t, ok)
}

func TestMemoryPool_ReturnOutOfRange(t *testing.T) {
	pool, err := NewMemoryPool(4, 8)
	require.NoError(t, err)

	other, err := NewMemoryPool(4, 8)
	require.NoError(t, err)

	addr, ok := other.GetFreeBlock()
	require.True(t, ok)

	err = pool.ReturnBlock(addr)
	assert.ErrorIs(t, err, ErrBlockOutOfRange)
}

func TestMemoryPool_RejectsOversizedRequest(t *testing.T) {
	_, err := NewMemoryPool(maxBlocksPerPool+1, 8)
	assert.Error(t, err)
}

func TestMemoryPool_AllReturned(t *testing.T) {
	pool, err := NewMemoryPool(4, 8)
	require.NoError(t, err)

	var addrs []uintptr
	for i := 0; i < 4; i++ {
		addr, _ := pool.GetFreeBlock()
		addrs = append(addrs, addr)
	}
	assert.False(t, pool.AllReturned())

	for _, addr := range addrs {
		require.NoError(t, pool.ReturnBlock(addr))
	}
	assert.True(t, pool.AllReturned())
}
