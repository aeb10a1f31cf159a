package mutate

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/yllada/openvpn-supervisor/process"
)

// DeleteDefaultRoute removes the route described by routeDetails (the
// text following "default" in `ip route show default`), so the tunnel's
// own default route can take over cleanly.
func DeleteDefaultRoute(ctx context.Context, runner process.Runner, routeDetails string) error {
	if routeDetails == "" {
		return nil
	}
	args := append([]string{"ip", "route", "del", "default"}, strings.Fields(routeDetails)...)
	_, err := runner.Run(ctx, "sudo", args...)
	return err
}

// InstallDefaultRoute installs routeDetails (in the same form) as the
// default route via `ip route replace default`.
func InstallDefaultRoute(ctx context.Context, runner process.Runner, routeDetails string) error {
	if routeDetails == "" {
		return nil
	}
	args := append([]string{"ip", "route", "replace", "default"}, strings.Fields(routeDetails)...)
	_, err := runner.Run(ctx, "sudo", args...)
	return err
}

// HasDefaultRouteViaTun reports whether the current default route goes
// through a tun device (classic `default dev tunN`) or through the
// split 0.0.0.0/1+128.0.0.0/1 pair some push configurations use.
func HasDefaultRouteViaTun(ctx context.Context, runner process.Runner) bool {
	res, err := runner.Run(ctx, "ip", "route", "show")
	if err != nil {
		return false
	}
	hasLow, hasHigh := false, false
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.HasPrefix(line, "default") && strings.Contains(line, "dev tun") {
			return true
		}
		if strings.HasPrefix(line, "0.0.0.0/1") && strings.Contains(line, "dev tun") {
			hasLow = true
		}
		if strings.HasPrefix(line, "128.0.0.0/1") && strings.Contains(line, "dev tun") {
			hasHigh = true
		}
	}
	return hasLow && hasHigh
}

// StrayDefaultRoutes returns every "default" route line that does NOT go
// through a tun device — the Route Guardian deletes these on sight.
func StrayDefaultRoutes(ctx context.Context, runner process.Runner) []string {
	res, err := runner.Run(ctx, "ip", "route")
	if err != nil {
		return nil
	}
	var stray []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.HasPrefix(line, "default") && !strings.Contains(line, "dev tun") {
			stray = append(stray, line)
		}
	}
	return stray
}

// DeleteRoute removes exactly the route line as reported by `ip route`
// (it is passed back verbatim to `ip route del`).
func DeleteRoute(ctx context.Context, runner process.Runner, routeLine string) error {
	args := append([]string{"ip", "route", "del"}, strings.Fields(routeLine)...)
	_, err := runner.Run(ctx, "sudo", args...)
	return err
}

// ApplySplitTunnelExclude installs one ACCEPT-worthy exclude route per
// CIDR back through the original gateway/interface, so that traffic to
// those networks bypasses the tunnel. Adapted from the teacher's
// applySplitTunnelExcludeMode, generalized from profile-owned state to
// plain parameters.
func ApplySplitTunnelExclude(ctx context.Context, runner process.Runner, cidrs []string, origGateway, origIface string) error {
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		var err error
		if origGateway != "" {
			_, err = runner.Run(ctx, "sudo", "ip", "route", "replace", cidr, "via", origGateway, "dev", origIface)
		} else if origIface != "" {
			_, err = runner.Run(ctx, "sudo", "ip", "route", "replace", cidr, "dev", origIface)
		} else {
			continue
		}
		if err != nil {
			return fmt.Errorf("excluding %s from tunnel: %w", cidr, err)
		}
	}
	return nil
}

// ApplySplitTunnelInclude installs one route per CIDR through the tunnel.
// The routes are added next to the tunnel's default route; they do not
// stop other traffic from using the tunnel.
func ApplySplitTunnelInclude(ctx context.Context, runner process.Runner, cidrs []string, tunGateway, tunIface string) error {
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		var err error
		if tunGateway != "" {
			_, err = runner.Run(ctx, "sudo", "ip", "route", "replace", cidr, "via", tunGateway, "dev", tunIface)
		} else {
			_, err = runner.Run(ctx, "sudo", "ip", "route", "replace", cidr, "dev", tunIface)
		}
		if err != nil {
			return fmt.Errorf("including %s in tunnel: %w", cidr, err)
		}
	}
	return nil
}

// GatewayFromRouteDetails extracts the "via <gateway>" address from a
// default route details string (as returned by
// introspect.DefaultRouteDetails), or "" if the route has no gateway
// (point-to-point links route straight to the device).
func GatewayFromRouteDetails(routeDetails string) string {
	fields := strings.Fields(routeDetails)
	for i, f := range fields {
		if f == "via" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// NormalizeRoute turns a CIDR (or bare IP) into a canonical "network/bits"
// form, matching the teacher's normalizeNetworkRoute behavior.
func NormalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return ""
	}
	if !strings.Contains(route, "/") {
		if ip := net.ParseIP(route); ip != nil {
			return route + "/32"
		}
		return route
	}
	_, ipNet, err := net.ParseCIDR(route)
	if err != nil {
		return route
	}
	return ipNet.String()
}
