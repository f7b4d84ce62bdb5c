package tracegc

import (
	"github.com/threefd/tracegc/internal/collector"
)

// ErrShutdown is returned by a call that reaches a collector after that
// collector has been shut down. Sptr methods called after Shutdown has
// returned do not see it: they start a fresh collector instead (see
// instance). It is the same sentinel internal/collector returns, re-exported
// so callers never need to import an internal package to use errors.Is.
var ErrShutdown = collector.ErrShutdown
