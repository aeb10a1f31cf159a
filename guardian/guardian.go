// Package guardian implements the Route Guardian: a background poller
// that deletes any default route not going through the tunnel, adapted
// from the teacher's HealthChecker stop-channel idiom (vpn/health.go)
// and repurposed from connection polling to route-table polling.
package guardian

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/mutate"
	"github.com/yllada/openvpn-supervisor/process"
)

// Guardian polls the route table and deletes stray default routes,
// logging each correction so the Monitor Loop's pattern-analysis
// statistic can later summarize them.
type Guardian struct {
	mu      sync.Mutex
	runner  process.Runner
	logger  common.Logger
	running bool
	stopCh  chan struct{}

	onCorrection func(at time.Time)
}

// New returns a Guardian ready to Start.
func New(runner process.Runner, logger common.Logger) *Guardian {
	return &Guardian{runner: runner, logger: logger}
}

// SetOnCorrection registers a callback invoked once per route
// correction, used by the Monitor Loop to record the reconnection log
// and correction timestamps owned by the Session.
func (g *Guardian) SetOnCorrection(fn func(at time.Time)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCorrection = fn
}

// Start launches the polling goroutine. It is a no-op if already running.
func (g *Guardian) Start(ctx context.Context) {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.stopCh = make(chan struct{})
	stopCh := g.stopCh
	g.mu.Unlock()

	go g.runLoop(ctx, stopCh)
}

// Stop halts the polling goroutine. Safe to call even if not running.
func (g *Guardian) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	g.running = false
	close(g.stopCh)
}

// IsRunning reports whether the polling goroutine is active.
func (g *Guardian) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Guardian) runLoop(ctx context.Context, stopCh chan struct{}) {
	lastCorrection := time.Time{}
	interval := common.GuardianLowAlertInterval

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		stray := mutate.StrayDefaultRoutes(ctx, g.runner)
		if len(stray) > 0 {
			if err := mutate.DeleteRoute(ctx, g.runner, stray[0]); err != nil {
				g.logger.Warn("route correction failed, retrying next tick", "error", err)
			} else {
				now := time.Now()
				lastCorrection = now
				g.mu.Lock()
				cb := g.onCorrection
				g.mu.Unlock()
				if cb != nil {
					cb(now)
				}
			}
		}

		if !lastCorrection.IsZero() && time.Since(lastCorrection) < common.GuardianHighAlertWindow {
			interval = common.GuardianHighAlertInterval
		} else {
			interval = common.GuardianLowAlertInterval
		}
	}
}
