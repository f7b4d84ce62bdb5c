// Package collector implements C5: the worker goroutine that owns the
// managed object graph and drains the message queue user goroutines feed
// it, plus the non-blocking public API that builds and enqueues those
// messages.
package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/threefd/tracegc/internal/digraph"
	"github.com/threefd/tracegc/internal/gcconfig"
	"github.com/threefd/tracegc/internal/gclog"
	"github.com/threefd/tracegc/internal/gcmetrics"
	"github.com/threefd/tracegc/internal/mpscqueue"
)

// ErrShutdown is returned by every API call made after Shutdown has
// completed, so a caller's use-after-shutdown bug surfaces immediately
// instead of silently dropping a message.
var ErrShutdown = errors.New("collector: use after shutdown")

// Collector is C5: the worker goroutine, its message queue and the graph
// it mutates. The zero value is not usable; use New.
type Collector struct {
	cfg  gcconfig.Settings
	log  *gclog.Logger
	metr *gcmetrics.Registry

	pools *sizeClassPools
	graph *digraph.Graph
	queue *mpscqueue.Queue[message]

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	workerErr atomic.Value // error

	shutdown atomic.Bool
}

// New builds a Collector and starts its worker goroutine. cfg is normally
// gcconfig.Default() or gcconfig.Load's result; log must be non-nil
// (gclog.NewNop discards everything); metr may be nil to record no metrics.
func New(cfg gcconfig.Settings, log *gclog.Logger, metr *gcmetrics.Registry) (*Collector, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		cfg:    cfg,
		log:    log,
		metr:   metr,
		pools:  newSizeClassPools(cfg),
		graph:  digraph.New(1 << cfg.SlotTableSizeLog2),
		queue:  mpscqueue.New[message](),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	c.graph.OnDestroyed = func(blockAddr uintptr) {
		if c.metr != nil {
			c.metr.VerticesDestroyed.Inc()
		}
	}
	c.graph.OnPanic = func(blockAddr uintptr, recovered any) {
		if c.metr != nil {
			c.metr.FinalizerPanics.Inc()
		}
		c.log.Critical("free callback panicked", zap.Uintptr("block_addr", blockAddr), zap.Any("recovered", recovered))
	}
	c.graph.OnViolation = func(op string, slotAddr uintptr) {
		if c.metr != nil {
			c.metr.InvariantViolations.WithLabelValues(op).Inc()
		}
		c.log.Error("invariant violation: unregistered slot address", zap.String("op", op), zap.Uintptr("slot_addr", slotAddr))
	}
	c.graph.OnSweep = func(componentSize int) {
		if c.metr != nil {
			c.metr.BackwardSweeps.Inc()
			c.metr.BackwardSweepSize.Observe(float64(componentSize))
		}
	}

	c.wg.Add(1)
	go c.run()

	return c, nil
}

// run is the worker loop: a multi-case select over a timer, a cancellation
// context and a best-effort wake signal.
func (c *Collector) run() {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.workerErr.Store(errors.Errorf("collector: worker goroutine panicked: %v", r))
			c.log.Critical("worker goroutine panicked", zap.Any("recovered", r))
		}
	}()

	ticker := time.NewTicker(c.sleepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.drainQueue()
			return
		case <-ticker.C:
			c.drainQueue()
			if c.queue.IsEmpty() {
				c.pools.shrink()
			}
			c.updateGaugeMetrics()
		case <-c.wake:
			c.drainQueue()
		}
	}
}

func (c *Collector) sleepInterval() time.Duration {
	if c.cfg.MsgLoopSleep <= 0 {
		return 100 * time.Millisecond
	}
	return c.cfg.MsgLoopSleep
}

func (c *Collector) drainQueue() {
	drained := false
	for {
		m := c.queue.Dequeue()
		if m == nil {
			break
		}
		drained = true
		if c.metr != nil {
			c.metr.MessagesApplied.WithLabelValues(m.kind.String()).Inc()
			c.metr.QueueDepth.Dec()
		}
		m.apply(c.graph)
	}
	if drained {
		c.updateGaugeMetrics()
	}
}

// updateGaugeMetrics refreshes the point-in-time gauges against the
// worker's own state. Safe to call often: VertexCount/numPools are cheap
// reads, not full recomputations.
func (c *Collector) updateGaugeMetrics() {
	if c.metr == nil {
		return
	}
	c.metr.LiveVertices.Set(float64(c.graph.VertexCount()))
	c.metr.LivePools.Set(float64(c.pools.numPools()))
}

func (c *Collector) enqueue(m message) error {
	if c.shutdown.Load() {
		return ErrShutdown
	}
	c.queue.Enqueue(&m)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	if c.metr != nil {
		c.metr.QueueDepth.Inc()
	}
	return nil
}

// AllocAndRegister allocates an nbytes block aligned to at least 2 bytes
// from the dynamic pool, registers it as a new vertex reachable from
// slotAddr, and returns the block address. Allocation failure is returned
// synchronously; registration itself cannot fail.
//
// The caller's free.Release is wrapped so the block returns to its
// size-class pool the moment the vertex is actually destroyed, instead of
// leaking out of gcpool for the rest of the process's life.
func (c *Collector) AllocAndRegister(nbytes int, slotAddr uintptr, free digraph.FreeCallback) (uintptr, error) {
	if c.shutdown.Load() {
		return 0, ErrShutdown
	}

	addr, err := c.pools.alloc(nbytes)
	if err != nil {
		return 0, err
	}

	if c.metr != nil {
		c.metr.VerticesCreated.Inc()
		// Only the mutex-guarded pool count is refreshed here: this runs on
		// the producer goroutine, and the graph belongs to the worker.
		c.metr.LivePools.Set(float64(c.pools.numPools()))
	}

	wrapped := digraph.FreeCallback{
		Destruct: free.Destruct,
		Release: func() {
			if free.Release != nil {
				free.Release()
			}
			_ = c.pools.free(nbytes, addr)
		},
	}

	if err := c.enqueue(message{kind: kindNewObject, slotAddr: slotAddr, blockAddr: addr, size: uintptr(nbytes), free: wrapped}); err != nil {
		_ = c.pools.free(nbytes, addr)
		return 0, err
	}
	return addr, nil
}

// RegisterNewObject enqueues a new-object message directly, for callers
// that allocate their backing memory themselves.
func (c *Collector) RegisterNewObject(slotAddr, blockAddr uintptr, size uintptr, free digraph.FreeCallback) error {
	if err := c.enqueue(message{kind: kindNewObject, slotAddr: slotAddr, blockAddr: blockAddr, size: size, free: free}); err != nil {
		return err
	}
	if c.metr != nil {
		c.metr.VerticesCreated.Inc()
	}
	return nil
}

// RegisterSlot enqueues a register-slot message.
func (c *Collector) RegisterSlot(slotAddr, blockAddr uintptr) error {
	return c.enqueue(message{kind: kindRegisterSlot, slotAddr: slotAddr, blockAddr: blockAddr})
}

// RegisterSlotCopy enqueues a register-slot-copy message.
func (c *Collector) RegisterSlotCopy(leftAddr, rightAddr uintptr) error {
	return c.enqueue(message{kind: kindRegisterSlotCopy, leftAddr: leftAddr, rightAddr: rightAddr})
}

// UpdateReference enqueues an update-reference message.
func (c *Collector) UpdateReference(leftAddr, rightAddr uintptr) error {
	return c.enqueue(message{kind: kindUpdateReference, leftAddr: leftAddr, rightAddr: rightAddr})
}

// ReleaseReference enqueues a release-reference message.
func (c *Collector) ReleaseReference(slotAddr uintptr) error {
	return c.enqueue(message{kind: kindReleaseReference, slotAddr: slotAddr})
}

// AbortConstruction enqueues an abort-construction message.
func (c *Collector) AbortConstruction(slotAddr uintptr) error {
	return c.enqueue(message{kind: kindAbortConstruction, slotAddr: slotAddr})
}

// UnregisterSlot enqueues an unregister-slot message.
func (c *Collector) UnregisterSlot(slotAddr uintptr) error {
	return c.enqueue(message{kind: kindUnregisterSlot, slotAddr: slotAddr})
}

// Shutdown cancels the worker's termination context, waits for it to exit
// (bounded by ctx), and marks the collector closed so further API calls
// return ErrShutdown. Safe to call from a deferred/recover context: it
// never panics.
func (c *Collector) Shutdown(ctx context.Context) error {
	if !c.shutdown.CompareAndSwap(false, true) {
		return nil // already shut down
	}

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if v := c.workerErr.Load(); v != nil {
		if err, ok := v.(error); ok {
			return err
		}
	}
	return nil
}

// QueueEmpty reports whether the message queue is currently drained, for
// tests polling shutdown-draining behavior.
func (c *Collector) QueueEmpty() bool { return c.queue.IsEmpty() }

// VertexCount reports how many managed blocks are currently live, for
// tests and metrics scraping.
func (c *Collector) VertexCount() int { return c.graph.VertexCount() }

// PoolCount reports how many backing memory pools the dynamic pool set
// currently holds, for scenario S5's "shrinks to zero pools" assertion.
func (c *Collector) PoolCount() int { return c.pools.numPools() }
