package digraph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeArray_SortedAfterRandomAddRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var arr edgeArray

	live := map[uintptr]bool{}
	liveRoots := map[uintptr]bool{}

	for i := 0; i < 2000; i++ {
		addr := uintptr(rng.Intn(500)) * 4 // vertex-like addresses, 4-byte aligned

		switch rng.Intn(4) {
		case 0:
			if !live[addr] {
				arr.addRegular(addr)
				live[addr] = true
			}
		case 1:
			if live[addr] {
				assert.True(t, arr.removeRegular(addr))
				live[addr] = false
			}
		case 2:
			if !liveRoots[addr] {
				arr.addRoot(addr)
				liveRoots[addr] = true
			}
		case 3:
			if liveRoots[addr] {
				assert.True(t, arr.removeRoot(addr))
				liveRoots[addr] = false
			}
		}

		require_Sorted(t, &arr)

		expectedRoots := 0
		for _, v := range liveRoots {
			if v {
				expectedRoots++
			}
		}
		assert.Equal(t, expectedRoots, arr.rootCount)
	}
}

func require_Sorted(t *testing.T, e *edgeArray) {
	t.Helper()
	assert.True(t, e.sorted(), "edge array must stay sorted: %v", e.items)
}

func TestEdgeArray_HasRootEdges(t *testing.T) {
	var arr edgeArray
	assert.False(t, arr.hasRootEdges())

	arr.addRegular(16)
	assert.False(t, arr.hasRootEdges())

	arr.addRoot(0x1000)
	assert.True(t, arr.hasRootEdges())

	assert.True(t, arr.removeRoot(0x1000))
	assert.False(t, arr.hasRootEdges())
}

func TestEdgeArray_ForEachRegularSkipsRootTagged(t *testing.T) {
	var arr edgeArray
	arr.addRegular(8)
	arr.addRegular(24)
	arr.addRoot(0x2000)

	var seen []uintptr
	arr.forEachRegular(func(addr uintptr) bool {
		seen = append(seen, addr)
		return true
	})

	assert.ElementsMatch(t, []uintptr{8, 24}, seen)
}

func TestEdgeArray_ShrinksCapacityOnRemoval(t *testing.T) {
	var arr edgeArray
	for i := 0; i < 64; i++ {
		arr.addRegular(uintptr(i) * 4)
	}
	bigCap := cap(arr.items)

	for i := 0; i < 60; i++ {
		arr.removeRegular(uintptr(i) * 4)
	}

	assert.Less(t, cap(arr.items), bigCap)
}
