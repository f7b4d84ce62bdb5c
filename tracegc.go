// Package tracegc is a reference-counted tracing garbage collector for Go
// programs that hold heap objects behind an Sptr[T] smart pointer instead
// of behind the Go runtime's own GC. One dedicated worker goroutine owns a
// directed graph of managed-object dependencies and reclaims a block the
// instant nothing reachable from a root still points at it, cycles
// included, via backward reachability rather than forward mark-sweep.
package tracegc

import (
	"context"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/threefd/tracegc/internal/collector"
	"github.com/threefd/tracegc/internal/gcconfig"
	"github.com/threefd/tracegc/internal/gclog"
	"github.com/threefd/tracegc/internal/gcmetrics"
)

var (
	mu      sync.Mutex
	theColl *collector.Collector
)

// Options configures Init. A zero-valued Options uses default settings, a
// no-op logger and records no metrics.
type Options struct {
	Viper    *viper.Viper        // nil uses gcconfig.Default()
	Logger   *zap.Logger         // nil uses a no-op logger
	Registry *gcmetrics.Registry // nil disables metrics recording
}

// Init constructs the process-wide collector singleton on first call; every
// call after the first (until Shutdown) returns the same instance. A plain
// mutex-guarded pointer stands in for the original's double-checked-locking
// construction — sync.Once would be the idiomatic choice for a singleton
// that is never torn down, but Shutdown must be able to clear it so a later
// Init re-creates a fresh collector.
func Init(opts Options) (*collector.Collector, error) {
	mu.Lock()
	defer mu.Unlock()

	if theColl != nil {
		return theColl, nil
	}

	cfg := gcconfig.Default()
	if opts.Viper != nil {
		cfg = gcconfig.Load(opts.Viper)
	}

	zl := opts.Logger
	if zl == nil {
		zl = zap.NewNop()
	}

	c, err := collector.New(cfg, gclog.New(zl), opts.Registry)
	if err != nil {
		return nil, err
	}
	theColl = c
	return c, nil
}

// instance returns the singleton, auto-initializing it with defaults on
// first use so a caller that skips Init still gets a working collector —
// mirroring the original's "constructed on first use" singleton contract.
func instance() (*collector.Collector, error) {
	mu.Lock()
	if theColl != nil {
		c := theColl
		mu.Unlock()
		return c, nil
	}
	mu.Unlock()
	return Init(Options{})
}

// Shutdown cancels the collector's worker goroutine, drains any messages
// it left queued (so every pending finalizer still runs), and clears the
// singleton so a later Init/allocation re-creates it fresh. Safe to call
// multiple times or from a deferred/recover context.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	c := theColl
	theColl = nil
	mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Shutdown(ctx)
}
