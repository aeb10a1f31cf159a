// Package monitor implements the Monitor Loop: the tick-based liveness
// check that decides whether the tunnel is still carrying traffic, and
// drives a full teardown/reconnect when it isn't. Adapted from the
// teacher's HealthChecker.runLoop/attemptReconnect idiom (vpn/health.go),
// generalized from per-connection health checks to this single
// supervised tunnel's liveness.
package monitor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/process"
)

var ipPattern = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)

// CheckLiveness reports whether the tunnel looks disconnected: the
// openvpn process is gone, the default route no longer goes through
// tun, or the public IP no longer matches expectedVPNIP after three
// retries across the public-IP echo services.
func CheckLiveness(ctx context.Context, runner process.Runner, expectedVPNIP string) (disconnected bool) {
	res, err := runner.Run(ctx, "pgrep", "-x", "openvpn")
	if err != nil || res.ExitCode != 0 {
		return true
	}

	routes, err := runner.Run(ctx, "ip", "route")
	if err != nil {
		return true
	}
	routeOK := (strings.Contains(routes.Stdout, "0.0.0.0/1") &&
		strings.Contains(routes.Stdout, "128.0.0.0/1") &&
		strings.Contains(routes.Stdout, "dev tun")) ||
		strings.Contains(routes.Stdout, "default dev tun")
	if !routeOK {
		return true
	}

	for round := 0; round < 3; round++ {
		for _, service := range common.PublicIPEchoServices {
			res, err := runner.Run(ctx, "curl", "-s", "--max-time", "5", service)
			if err != nil {
				continue
			}
			ip := strings.TrimSpace(res.Stdout)
			if ipPattern.MatchString(ip) && ip == expectedVPNIP {
				return false
			}
		}
		if round < 2 {
			select {
			case <-ctx.Done():
				return true
			case <-time.After(common.IPVerifyRetryDelay):
			}
		}
	}
	return true
}
