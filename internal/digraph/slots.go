package digraph

// slotEntry is the graph's record for one registered smart-pointer slot:
// where it lives, what it currently points at, and whether it is a root
// (container == nil) or a regular edge inside another managed block.
type slotEntry struct {
	addr      uintptr
	pointed   *vertex
	container *vertex
}

func (s *slotEntry) isRoot() bool { return s.container == nil }

// slotTable is the slot address to vertex mapping (§4.4.2). Implemented on
// top of Go's native map, which is itself a chained hash table with
// automatic growth; gc.sptr_objects_hash_table.initial_size_log2 is honored
// as a pre-sizing hint passed to make(), and
// gc.sptr_objects_hash_table.load_factor_threshold has no knob to bind to
// since the runtime map already manages its own load factor (see
// DESIGN.md for why no third-party hash table replaces this).
type slotTable struct {
	entries map[uintptr]*slotEntry
}

func newSlotTable(sizeHint int) *slotTable {
	if sizeHint <= 0 {
		sizeHint = 256
	}
	return &slotTable{entries: make(map[uintptr]*slotEntry, sizeHint)}
}

func (t *slotTable) get(addr uintptr) (*slotEntry, bool) {
	e, ok := t.entries[addr]
	return e, ok
}

func (t *slotTable) put(e *slotEntry) {
	t.entries[e.addr] = e
}

func (t *slotTable) delete(addr uintptr) {
	delete(t.entries, addr)
}

func (t *slotTable) len() int { return len(t.entries) }
