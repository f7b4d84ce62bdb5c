package digraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingFree(order *[]string, name string) FreeCallback {
	return FreeCallback{
		Destruct: func() { *order = append(*order, name) },
		Release:  func() {},
	}
}

// S1 single object.
func TestGraph_S1_SingleObject(t *testing.T) {
	g := New(64)

	var order []string
	g.NewObject(0x1000, 0x8000, 32, recordingFree(&order, "obj"))
	require.Equal(t, 1, g.VertexCount())

	g.UnregisterSlot(0x1000)

	assert.Equal(t, []string{"obj"}, order)
	assert.Equal(t, 0, g.VertexCount())
}

// S2 chain of three: a (root) -> b -> c. Releasing the root must destroy
// c, then b, then a.
func TestGraph_S2_ChainOfThree(t *testing.T) {
	g := New(64)

	const (
		rootSlot = 0x10000
		aAddr    = 0x20000
		aSlotB   = 0x20008 // slot embedded in a, pointing at b
		bAddr    = 0x30000
		bSlotC   = 0x30008 // slot embedded in b, pointing at c
		cAddr    = 0x40000
	)

	var order []string
	g.NewObject(rootSlot, aAddr, 0x100, recordingFree(&order, "a"))
	g.NewObject(aSlotB, bAddr, 0x100, recordingFree(&order, "b"))
	g.NewObject(bSlotC, cAddr, 0x100, recordingFree(&order, "c"))
	require.Equal(t, 3, g.VertexCount())

	g.ReleaseReference(rootSlot)

	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, 0, g.VertexCount())
}

// S3 cycle: x and y each hold a slot pointing at the other, one external
// root on x. Releasing the root must destroy both exactly once.
func TestGraph_S3_Cycle(t *testing.T) {
	g := New(64)

	const (
		rootSlot = 0x50000
		xAddr    = 0x60000
		xSlotY   = 0x60008 // slot embedded in x, pointing at y
		yAddr    = 0x70000
		ySlotX   = 0x70008 // slot embedded in y, pointing at x
	)

	var order []string
	g.NewObject(rootSlot, xAddr, 0x100, recordingFree(&order, "x"))
	g.NewObject(xSlotY, yAddr, 0x100, recordingFree(&order, "y"))
	g.RegisterSlot(ySlotX, xAddr) // y's embedded slot now also points at x

	g.ReleaseReference(rootSlot)

	assert.ElementsMatch(t, []string{"x", "y"}, order)
	assert.Len(t, order, 2, "each vertex must be destroyed exactly once")
	assert.Equal(t, 0, g.VertexCount())
}

// S4 same cycle as S3, but the external root is never released: neither
// vertex may be destroyed.
func TestGraph_S4_RootKeepsCycleAlive(t *testing.T) {
	g := New(64)

	const (
		rootSlot = 0x50000
		xAddr    = 0x60000
		xSlotY   = 0x60008
		yAddr    = 0x70000
		ySlotX   = 0x70008
	)

	var order []string
	g.NewObject(rootSlot, xAddr, 0x100, recordingFree(&order, "x"))
	g.NewObject(xSlotY, yAddr, 0x100, recordingFree(&order, "y"))
	g.RegisterSlot(ySlotX, xAddr)

	assert.Empty(t, order)
	assert.Equal(t, 2, g.VertexCount())
}

// S6 constructor abort: the free callback's Destruct must never run, but
// the vertex is still reclaimed (Release still runs).
func TestGraph_S6_AbortConstruction(t *testing.T) {
	g := New(64)

	const slot = 0x90000
	destructCalled := false
	released := false

	g.NewObject(slot, 0xa0000, 16, FreeCallback{
		Destruct: func() { destructCalled = true },
		Release:  func() { released = true },
	})

	g.AbortConstruction(slot)

	assert.False(t, destructCalled, "an aborted construction must never run the user finalizer")
	assert.True(t, released, "the raw memory must still be released")
	assert.Equal(t, 0, g.VertexCount())
}

// Property 8: root-reached retention in a larger cycle.
func TestGraph_RootReachedRetentionInLargerCycle(t *testing.T) {
	g := New(64)

	const (
		rootSlot = 0xb0000
		v1       = 0xc0000
		v1SlotV2 = 0xc0008
		v2       = 0xd0000
		v2SlotV3 = 0xd0008
		v3       = 0xe0000
		v3SlotV1 = 0xe0008
	)

	var order []string
	g.NewObject(rootSlot, v1, 0x100, recordingFree(&order, "v1"))
	g.NewObject(v1SlotV2, v2, 0x100, recordingFree(&order, "v2"))
	g.NewObject(v2SlotV3, v3, 0x100, recordingFree(&order, "v3"))
	g.RegisterSlot(v3SlotV1, v1) // closes the cycle v1->v2->v3->v1

	assert.Empty(t, order)
	assert.Equal(t, 3, g.VertexCount())

	g.ReleaseReference(rootSlot)

	assert.Len(t, order, 3)
	assert.Equal(t, 0, g.VertexCount())
}

// Acyclic sharing: destroying an object whose outgoing edge points at a
// peer that a second root still holds must not destroy the peer.
func TestGraph_DestroyingOneVertexDoesNotTouchUnrelatedPeer(t *testing.T) {
	g := New(64)

	const (
		rootA  = 0x100000
		aAddr  = 0x110000
		aSlotB = 0x110008
		bAddr  = 0x120000
		rootB  = 0x130000 // a second, independent root also pointing at b
	)

	var order []string
	g.NewObject(rootA, aAddr, 0x100, recordingFree(&order, "a"))
	g.NewObject(aSlotB, bAddr, 0x100, recordingFree(&order, "b"))
	g.RegisterSlot(rootB, bAddr)

	g.ReleaseReference(rootA)

	assert.Equal(t, []string{"a"}, order, "b is still reachable through rootB and must survive")
	assert.Equal(t, 1, g.VertexCount())
}

func TestGraph_InvariantViolationIsReportedNotPanicked(t *testing.T) {
	g := New(64)

	var gotOp string
	var gotAddr uintptr
	g.OnViolation = func(op string, slotAddr uintptr) {
		gotOp, gotAddr = op, slotAddr
	}

	g.UnregisterSlot(0xdeadbeef) // never registered

	assert.Equal(t, "unregister-slot", gotOp)
	assert.Equal(t, uintptr(0xdeadbeef), gotAddr)
}

func TestGraph_FreeCallbackPanicIsRecovered(t *testing.T) {
	g := New(64)

	var panicked bool
	g.OnPanic = func(addr uintptr, recovered any) { panicked = true }

	released := false
	g.NewObject(0x200000, 0x210000, 16, FreeCallback{
		Destruct: func() { panic("boom") },
		Release:  func() { released = true },
	})

	g.UnregisterSlot(0x200000)

	assert.True(t, panicked)
	assert.True(t, released, "release must still run after a panicking finalizer")
}
