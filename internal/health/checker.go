// Package health aggregates readiness probes for the service's
// collaborators (database, ledger).
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one collaborator. A nil return means healthy.
type Probe func(ctx context.Context) error

// Checker runs named readiness probes with a shared timeout.
type Checker struct {
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewChecker creates a Checker. timeout bounds each probe (default 5s).
func NewChecker(timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		timeout: timeout,
		logger:  logger,
		probes:  make(map[string]Probe),
	}
}

// Register adds a named probe. Registering the same name replaces it.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Check runs every probe and returns per-probe status strings plus overall
// readiness. A failed probe reports its error text.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	results := make(map[string]string, len(probes))
	ready := true
	for name, p := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p(probeCtx)
		cancel()
		if err != nil {
			c.logger.Warn("readiness probe failed",
				zap.String("probe", name),
				zap.Error(err),
			)
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}
	return results, ready
}
