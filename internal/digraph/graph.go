// Package digraph implements the managed object graph (C4): vertices for
// managed blocks, the slot-to-vertex mapping, and reachability-based
// reclamation. All of it is confined to the collector's single worker
// goroutine (see internal/collector), so none of it needs internal
// locking, matching mheap.go's own "the owner already serializes access"
// stance for such internal bookkeeping.
package digraph

import (
	"github.com/google/btree"
)

// FreeCallback is what runs when a vertex becomes unreachable. Destruct
// invokes the user's object finalizer and may be nil (abort-construction
// sets it to nil because the constructor never completed, so there is
// nothing meaningful to finalize); Release returns the underlying memory
// to its owning pool and always runs.
type FreeCallback struct {
	Destruct func()
	Release  func()
}

type vertex struct {
	addr uintptr
	size uintptr
	free FreeCallback

	out edgeArray // edges to vertices this block embeds
	in  edgeArray // edges from slots pointing at this block

	mark      uint64 // stamped with Graph.generation during a backward sweep
	destroyed bool   // guards against double-destruction during cascades
}

func (v *vertex) containsAddr(addr uintptr) bool {
	return addr >= v.addr && addr < v.addr+v.size
}

type vertexEntry struct {
	addr uintptr
	v    *vertex
}

func lessVertexEntry(a, b vertexEntry) bool { return a.addr < b.addr }

// DestroyedObserver is notified whenever a vertex's Release callback has
// run, for metrics and tests. May be nil.
type DestroyedObserver func(blockAddr uintptr)

// PanicObserver is notified whenever a Destruct callback panics during
// reclamation. The sweep keeps going for the rest of the component, per the
// free-callback-panicked error category. May be nil.
type PanicObserver func(blockAddr uintptr, recovered any)

// ViolationObserver is notified when a message references a slot address
// that is not currently registered. In a correctly used program this never
// fires; it exists so a misbehaving caller (e.g. double-unregistering a
// slot) is logged rather than silently ignored, per the
// invariant-violation error category. May be nil.
type ViolationObserver func(op string, slotAddr uintptr)

// SweepObserver is notified every time a backward reachability sweep runs
// to resolve whether a potential cycle is garbage, with the number of
// vertices the sweep visited. May be nil.
type SweepObserver func(componentSize int)

// Graph owns every vertex and the slot-to-vertex mapping. The zero value is
// not usable; use New.
type Graph struct {
	vertices map[uintptr]*vertex
	index    *btree.BTreeG[vertexEntry]
	slots    *slotTable

	generation uint64

	OnDestroyed DestroyedObserver
	OnPanic     PanicObserver
	OnViolation ViolationObserver
	OnSweep     SweepObserver
}

// New returns an empty graph, sizing the slot table's initial bucket count
// from sizeHint (derived from gc.sptr_objects_hash_table.initial_size_log2).
func New(sizeHint int) *Graph {
	return &Graph{
		vertices: make(map[uintptr]*vertex),
		index:    btree.NewG(32, lessVertexEntry),
		slots:    newSlotTable(sizeHint),
	}
}

// VertexCount returns how many live vertices the graph currently holds.
func (g *Graph) VertexCount() int { return len(g.vertices) }

// containerOf returns the vertex whose managed block contains slotAddr, or
// nil if slotAddr is a root (not inside any managed block). This is the
// only place the graph consults the address-ordered vertex index; see
// the vertex containment index.
func (g *Graph) containerOf(slotAddr uintptr) *vertex {
	var found *vertex
	g.index.DescendLessOrEqual(vertexEntry{addr: slotAddr}, func(item vertexEntry) bool {
		if item.v.containsAddr(slotAddr) {
			found = item.v
		}
		return false
	})
	return found
}

func (g *Graph) vertexAt(blockAddr uintptr) *vertex {
	return g.vertices[blockAddr]
}

func (g *Graph) insertVertex(v *vertex) {
	g.vertices[v.addr] = v
	g.index.ReplaceOrInsert(vertexEntry{addr: v.addr, v: v})
}

func (g *Graph) eraseVertex(v *vertex) {
	delete(g.vertices, v.addr)
	g.index.Delete(vertexEntry{addr: v.addr})
}
