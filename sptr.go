package tracegc

import (
	"unsafe"

	"github.com/threefd/tracegc/internal/digraph"
)

// Sptr is the smart pointer every message in §4.4.3 is emitted on behalf
// of: a generic struct with exactly one uintptr-sized field (the pointed
// managed block's address), matching the original's layout requirement
// that lets the collector distinguish a root slot from one embedded inside
// another managed block purely by address-range containment.
type Sptr[T any] struct {
	addr uintptr
}

// AllocAndRegister allocates a T on the ordinary Go heap (the "host heap"
// of the smart-pointer contract — unlike internal/gcpool's fixed-block arenas, a
// caller-supplied T may embed slices, maps or interfaces the Go GC must
// keep scanning, which a raw byte pool cannot provide for), and registers
// s as a new root reachable through it. destruct runs exactly once, on the
// collector's worker goroutine, when the block becomes unreachable.
//
// s must be called through an addressable variable (a local, a field, a
// slice element) that keeps its own address stable for the rest of its
// life as a smart pointer — the same requirement every other Sptr method
// has, since a message is only ever identified by the slot's own address.
// A package-level AllocAndRegister[T](...) returning Sptr[T] by value
// cannot offer this guarantee (the caller's copy lives at a different
// address than the one registered), which is why this is a pointer-
// receiver method on an already-addressable Sptr instead.
func (s *Sptr[T]) AllocAndRegister(destruct func(*T)) error {
	c, err := instance()
	if err != nil {
		return err
	}

	obj := new(T)
	blockAddr := uintptr(unsafe.Pointer(obj))
	size := unsafe.Sizeof(*obj)

	if err := c.RegisterNewObject(s.slotAddr(), blockAddr, size, digraph.FreeCallback{
		Destruct: func() {
			if destruct != nil {
				destruct(obj)
			}
		},
		Release: func() {}, // Go's own GC reclaims obj once the graph drops this closure's reference
	}); err != nil {
		return err
	}

	s.addr = blockAddr
	return nil
}

// IsNil reports whether the Sptr currently points at nothing.
func (s Sptr[T]) IsNil() bool { return s.addr == 0 }

// Get dereferences the Sptr back to its managed object, or nil if it
// currently points at nothing. The returned pointer must not be retained
// past the object's reclamation (the
// collector has no way to know about references it was never told of, so
// holding onto a *T after its last Sptr releases it is a use-after-free
// bug on the caller's part, exactly as with the original's raw pointer
// escape hatch).
func (s Sptr[T]) Get() *T {
	if s.addr == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(s.addr))
}

// slotAddr returns this Sptr value's own address, used as the slot
// identity for every message it emits. Callers must only use Sptr values
// addressably (through a variable, field or allocation), never as a
// temporary, or slotAddr would be meaningless.
func (s *Sptr[T]) slotAddr() uintptr { return uintptr(unsafe.Pointer(s)) }

// Set repoints s at other's current target, evaluating s's old target for
// reclamation and registering the new reference.
func (s *Sptr[T]) Set(other *Sptr[T]) error {
	c, err := instance()
	if err != nil {
		return err
	}
	if s.addr != 0 {
		err = c.UpdateReference(s.slotAddr(), other.slotAddr())
	} else {
		err = c.RegisterSlotCopy(s.slotAddr(), other.slotAddr())
	}
	if err != nil {
		return err
	}
	s.addr = other.addr
	return nil
}

// Reset clears s, evaluating its old target for reclamation.
func (s *Sptr[T]) Reset() error {
	c, err := instance()
	if err != nil {
		return err
	}
	if err := c.ReleaseReference(s.slotAddr()); err != nil {
		return err
	}
	s.addr = 0
	return nil
}

// Close unregisters s's slot entirely, evaluating its old target for
// reclamation. Call this when an Sptr embedded in a managed block or a
// long-lived root is itself being torn down, so the collector does not
// keep a stale edge pointing at freed slot storage. Go has no destructor
// hook run automatically when a value goes out of scope, so unlike the
// original's RAII-driven unregistration, Close must be called explicitly
// (see DESIGN.md's Open Question on object-lifetime hooks).
func (s *Sptr[T]) Close() error {
	c, err := instance()
	if err != nil {
		return err
	}
	if err := c.UnregisterSlot(s.slotAddr()); err != nil {
		return err
	}
	s.addr = 0
	return nil
}

// Abort releases s like Reset, except the object's destruct callback
// passed to AllocAndRegister never runs — only the raw memory is reclaimed
// by the Go garbage collector once the graph drops its last reference.
// Intended for a constructor that allocated via AllocAndRegister but
// failed before the object reached a valid state, mirroring the
// abort-construction message.
func (s *Sptr[T]) Abort() error {
	c, err := instance()
	if err != nil {
		return err
	}
	if err := c.AbortConstruction(s.slotAddr()); err != nil {
		return err
	}
	s.addr = 0
	return nil
}
