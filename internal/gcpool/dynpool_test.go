package gcpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDynPool(t *testing.T) *DynamicMemPool {
	t.Helper()
	d, err := NewDynamicMemPool(Config{InitialSize: 4, BlockSize: 8, GrowingFactor: 1.0})
	require.NoError(t, err)
	return d
}

func TestDynamicMemPool_GrowsOnDemand(t *testing.T) {
	d := newTestDynPool(t)

	seen := make(map[uintptr]bool)
	for i := 0; i < 10; i++ { // more than one pool's worth of blocks
		addr, err := d.GetFreeBlock()
		require.NoError(t, err)
		assert.False(t, seen[addr], "no address should be handed out twice while still held")
		seen[addr] = true
	}

	assert.GreaterOrEqual(t, d.NumPools(), 2)
}

func TestDynamicMemPool_ReturnRoutesToOwningPool(t *testing.T) {
	d := newTestDynPool(t)

	var addrs []uintptr
	for i := 0; i < 12; i++ {
		addr, err := d.GetFreeBlock()
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}

	for _, addr := range addrs {
		require.NoError(t, d.ReturnBlock(addr))
	}
}

func TestDynamicMemPool_ShrinkFreesFullyReturnedPools(t *testing.T) {
	d := newTestDynPool(t)

	var addrs []uintptr
	for i := 0; i < 8; i++ {
		addr, err := d.GetFreeBlock()
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	require.GreaterOrEqual(t, d.NumPools(), 2)

	for _, addr := range addrs {
		require.NoError(t, d.ReturnBlock(addr))
	}

	d.Shrink()
	assert.Equal(t, 0, d.NumPools(), "no pools should remain once all blocks are returned and Shrink runs")
}

func TestDynamicMemPool_ReturnUnknownAddressFails(t *testing.T) {
	d := newTestDynPool(t)

	_, err := d.GetFreeBlock()
	require.NoError(t, err)

	err = d.ReturnBlock(0xdeadbeef)
	assert.Error(t, err)
}

func TestDynamicMemPool_RejectsBadConfig(t *testing.T) {
	_, err := NewDynamicMemPool(Config{InitialSize: 0, BlockSize: 8, GrowingFactor: 1})
	assert.Error(t, err)

	_, err = NewDynamicMemPool(Config{InitialSize: 4, BlockSize: 8, GrowingFactor: 0})
	assert.Error(t, err)
}
