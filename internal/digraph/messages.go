package digraph

// This file implements the seven message semantics as
// plain methods on Graph. The tagged-union dispatch that picks which of
// these to call lives in internal/collector, matching the Design Note that
// prefers a single switch over polymorphic message objects.

// NewObject registers a freshly allocated managed block at blockAddr as a
// new vertex, and registers slotAddr as the slot that first points to it.
func (g *Graph) NewObject(slotAddr, blockAddr, size uintptr, free FreeCallback) {
	v := &vertex{addr: blockAddr, size: size, free: free}
	g.insertVertex(v)

	container := g.containerOf(slotAddr)
	g.registerSlot(slotAddr, v, container)
}

// RegisterSlot registers slotAddr as pointing at the vertex for blockAddr
// (or at nothing, if blockAddr is zero).
func (g *Graph) RegisterSlot(slotAddr, blockAddr uintptr) {
	var pointed *vertex
	if blockAddr != 0 {
		pointed = g.vertexAt(blockAddr)
	}
	container := g.containerOf(slotAddr)
	g.registerSlot(slotAddr, pointed, container)
}

// RegisterSlotCopy registers leftAddr as a copy of rightAddr, pointing at
// whatever rightAddr currently points at.
func (g *Graph) RegisterSlotCopy(leftAddr, rightAddr uintptr) {
	var pointed *vertex
	if right, ok := g.slots.get(rightAddr); ok {
		pointed = right.pointed
	}
	container := g.containerOf(leftAddr)
	g.registerSlot(leftAddr, pointed, container)
}

// UpdateReference repoints leftAddr at whatever rightAddr currently points
// at, evaluating the old target for reclamation.
func (g *Graph) UpdateReference(leftAddr, rightAddr uintptr) {
	left, ok := g.slots.get(leftAddr)
	if !ok {
		g.violation("update-reference", leftAddr)
		return
	}

	old := left.pointed
	g.unlinkSlot(left)

	var next *vertex
	if right, ok2 := g.slots.get(rightAddr); ok2 {
		next = right.pointed
	}
	left.pointed = next
	g.linkSlot(left)

	if old != nil {
		g.evaluate(old)
	}
}

// ReleaseReference resets slotAddr to point at nothing, evaluating the old
// target for reclamation.
func (g *Graph) ReleaseReference(slotAddr uintptr) {
	e, ok := g.slots.get(slotAddr)
	if !ok {
		g.violation("release-reference", slotAddr)
		return
	}

	old := e.pointed
	g.unlinkSlot(e)
	e.pointed = nil

	if old != nil {
		g.evaluate(old)
	}
}

// AbortConstruction behaves like ReleaseReference, except the target vertex
// (whose constructor never finished) will have its memory released without
// its finalizer ever running.
func (g *Graph) AbortConstruction(slotAddr uintptr) {
	e, ok := g.slots.get(slotAddr)
	if !ok {
		g.violation("abort-construction", slotAddr)
		return
	}

	old := e.pointed
	g.unlinkSlot(e)
	e.pointed = nil

	if old != nil {
		old.free.Destruct = nil
		g.evaluate(old)
	}
}

// UnregisterSlot removes slotAddr entirely, evaluating its old target for
// reclamation.
func (g *Graph) UnregisterSlot(slotAddr uintptr) {
	e, ok := g.slots.get(slotAddr)
	if !ok {
		g.violation("unregister-slot", slotAddr)
		return
	}

	old := e.pointed
	g.unlinkSlot(e)
	g.slots.delete(slotAddr)

	if old != nil {
		g.evaluate(old)
	}
}

func (g *Graph) violation(op string, slotAddr uintptr) {
	if g.OnViolation != nil {
		g.OnViolation(op, slotAddr)
	}
}

// registerSlot creates the slot table entry and links it into the edge
// arrays of pointed/container, if present.
func (g *Graph) registerSlot(slotAddr uintptr, pointed, container *vertex) {
	e := &slotEntry{addr: slotAddr, pointed: pointed, container: container}
	g.slots.put(e)
	g.linkSlot(e)
}

func (g *Graph) linkSlot(e *slotEntry) {
	if e.pointed == nil {
		return
	}
	if e.container != nil {
		e.pointed.in.addRegular(e.container.addr)
		e.container.out.addRegular(e.pointed.addr)
	} else {
		e.pointed.in.addRoot(e.addr)
	}
}

func (g *Graph) unlinkSlot(e *slotEntry) {
	if e.pointed == nil {
		return
	}
	if e.container != nil {
		e.pointed.in.removeRegular(e.container.addr)
		e.container.out.removeRegular(e.pointed.addr)
	} else {
		e.pointed.in.removeRoot(e.addr)
	}
}
