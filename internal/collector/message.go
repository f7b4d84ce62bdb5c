package collector

import "github.com/threefd/tracegc/internal/digraph"

// kind tags a message as exactly one of the seven operations
// names. A closed tagged union dispatched by a single switch, matching the
// Design Note that prefers this over polymorphic message objects — there is
// no open set of message types to extend, so there is nothing for an
// interface/vtable indirection to buy.
type kind int

const (
	kindNewObject kind = iota
	kindRegisterSlot
	kindRegisterSlotCopy
	kindUpdateReference
	kindReleaseReference
	kindAbortConstruction
	kindUnregisterSlot
)

func (k kind) String() string {
	switch k {
	case kindNewObject:
		return "new-object"
	case kindRegisterSlot:
		return "register-slot"
	case kindRegisterSlotCopy:
		return "register-slot-copy"
	case kindUpdateReference:
		return "update-reference"
	case kindReleaseReference:
		return "release-reference"
	case kindAbortConstruction:
		return "abort-construction"
	case kindUnregisterSlot:
		return "unregister-slot"
	default:
		return "unknown"
	}
}

// message is the single concrete type enqueued for every operation; only
// the fields relevant to kind are populated.
type message struct {
	kind kind

	slotAddr  uintptr
	blockAddr uintptr
	size      uintptr
	leftAddr  uintptr
	rightAddr uintptr

	free digraph.FreeCallback
}

// apply runs the message against g on the worker goroutine.
func (m *message) apply(g *digraph.Graph) {
	switch m.kind {
	case kindNewObject:
		g.NewObject(m.slotAddr, m.blockAddr, m.size, m.free)
	case kindRegisterSlot:
		g.RegisterSlot(m.slotAddr, m.blockAddr)
	case kindRegisterSlotCopy:
		g.RegisterSlotCopy(m.leftAddr, m.rightAddr)
	case kindUpdateReference:
		g.UpdateReference(m.leftAddr, m.rightAddr)
	case kindReleaseReference:
		g.ReleaseReference(m.slotAddr)
	case kindAbortConstruction:
		g.AbortConstruction(m.slotAddr)
	case kindUnregisterSlot:
		g.UnregisterSlot(m.slotAddr)
	}
}
