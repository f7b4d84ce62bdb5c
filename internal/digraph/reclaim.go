package digraph

// evaluate decides the fate of v after one of its incoming edges was just
// removed or cleared.
func (g *Graph) evaluate(v *vertex) {
	if v.destroyed {
		return
	}

	if v.in.size() == 0 {
		g.destroy(v)
		return
	}

	if v.in.hasRootEdges() {
		return // reachable from a root directly; nothing to do
	}

	component := g.backwardSweep(v)
	if component == nil {
		return // some peer in the component is root-reachable; all stay live
	}

	for _, mv := range component {
		g.destroy(mv)
	}
}

// backwardSweep follows incoming edges backward from start, using the
// current generation stamp to mark visited vertices exactly once. It
// returns the full set of vertices reached if none of them has a root
// incoming edge (the whole component is garbage), or nil if any of them
// does (the whole component stays live).
//
// The walk uses an explicit stack rather than recursion, matching
// mgcwork.go's iterative work-queue draining, so a long chain of managed
// blocks cannot blow the stack.
func (g *Graph) backwardSweep(start *vertex) []*vertex {
	g.generation++
	gen := g.generation

	stack := []*vertex{start}
	start.mark = gen

	var visited []*vertex
	live := false

	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		visited = append(visited, cur)

		if cur.in.hasRootEdges() {
			live = true
		}

		cur.in.forEachRegular(func(peerAddr uintptr) bool {
			peer := g.vertexAt(peerAddr)
			if peer != nil && peer.mark != gen {
				peer.mark = gen
				stack = append(stack, peer)
			}
			return true
		})
	}

	if g.OnSweep != nil {
		g.OnSweep(len(visited))
	}

	if live {
		return nil
	}
	return visited
}

// destroy removes v from the graph, unlinks its outgoing edges from every
// peer it points at (cascading an evaluation of each, since losing that
// edge may make the peer collectible too), then runs v's free callback:
// Destruct (if set) followed by Release. A panic from Destruct is
// recovered and reported through OnPanic so the rest of a sweep's
// reclamations still complete. Idempotent, since a vertex already destroyed
// by a cascade may be visited again by the component loop in evaluate.
func (g *Graph) destroy(v *vertex) {
	if v.destroyed {
		return
	}
	v.destroyed = true
	g.eraseVertex(v)

	v.out.forEachRegular(func(peerAddr uintptr) bool {
		if peer := g.vertexAt(peerAddr); peer != nil {
			peer.in.removeRegular(v.addr)
			g.evaluate(peer)
		}
		return true
	})

	if v.free.Destruct != nil {
		g.safeDestruct(v)
	}
	if v.free.Release != nil {
		v.free.Release()
	}

	if g.OnDestroyed != nil {
		g.OnDestroyed(v.addr)
	}
}

func (g *Graph) safeDestruct(v *vertex) {
	defer func() {
		if r := recover(); r != nil && g.OnPanic != nil {
			g.OnPanic(v.addr, r)
		}
	}()
	v.free.Destruct()
}
