package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quoteforge/quoteforge/internal/health"
	"go.uber.org/zap"
)

var ctx = context.Background()

func TestCheck_noProbesIsReady(t *testing.T) {
	c := health.NewChecker(time.Second, zap.NewNop())

	results, ready := c.Check(ctx)
	if !ready {
		t.Error("checker with no probes must report ready")
	}
	if len(results) != 0 {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestCheck_allHealthy(t *testing.T) {
	c := health.NewChecker(time.Second, zap.NewNop())
	c.Register("postgres", func(ctx context.Context) error { return nil })
	c.Register("cache", func(ctx context.Context) error { return nil })

	results, ready := c.Check(ctx)
	if !ready {
		t.Error("expected ready")
	}
	if results["postgres"] != "ok" || results["cache"] != "ok" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestCheck_oneFailingProbe(t *testing.T) {
	c := health.NewChecker(time.Second, zap.NewNop())
	c.Register("postgres", func(ctx context.Context) error { return nil })
	c.Register("broken", func(ctx context.Context) error { return errors.New("connection refused") })

	results, ready := c.Check(ctx)
	if ready {
		t.Error("a failing probe must make the checker not ready")
	}
	if results["postgres"] != "ok" {
		t.Errorf("healthy probe result: %q", results["postgres"])
	}
	if results["broken"] != "connection refused" {
		t.Errorf("failing probe must report its error text, got %q", results["broken"])
	}
}

func TestCheck_probeTimeout(t *testing.T) {
	c := health.NewChecker(20*time.Millisecond, zap.NewNop())
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	_, ready := c.Check(ctx)
	if ready {
		t.Error("probe exceeding its timeout must fail")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Check must honour the per-probe timeout")
	}
}

func TestRegister_replacesProbe(t *testing.T) {
	c := health.NewChecker(time.Second, zap.NewNop())
	c.Register("db", func(ctx context.Context) error { return errors.New("down") })
	c.Register("db", func(ctx context.Context) error { return nil })

	_, ready := c.Check(ctx)
	if !ready {
		t.Error("re-registered probe must replace the old one")
	}
}
