// Package mutate applies and reverses every change the supervisor makes
// to host network state: the managed connection profile, routes, DNS,
// and the firewall kill switch. Every exported mutation here is meant to
// be called only after the corresponding Journal key has been written.
package mutate

import (
	"context"
	"fmt"
	"strings"

	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/process"
)

// ActiveManagedConnection returns the name of the NetworkManager
// connection profile currently carrying traffic on a non-loopback,
// non-tun device, or "" if none is found.
func ActiveManagedConnection(ctx context.Context, runner process.Runner) string {
	res, err := runner.Run(ctx, "nmcli", "-t", "-f", "NAME,DEVICE", "connection", "show", "--active")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		name, dev := parts[0], strings.ToLower(parts[1])
		if dev == "" || dev == "lo" || strings.HasPrefix(dev, "tun") {
			continue
		}
		return name
	}
	return ""
}

func nmProp(ctx context.Context, runner process.Runner, connection, prop string) string {
	res, err := runner.Run(ctx, "nmcli", "-g", prop, "connection", "show", connection)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

// NeutralizeManagedConnection reads the three relevant profile properties
// off connection, journals them as nm_original_state/nm_connection, then
// sets them so the profile can no longer install a competing default
// route or bring up IPv6.
func NeutralizeManagedConnection(ctx context.Context, runner process.Runner, j *journal.Journal, connection string) error {
	never := nmProp(ctx, runner, connection, "ipv4.never-default")
	if never == "" {
		never = "no"
	}
	ignoreAuto := nmProp(ctx, runner, connection, "ipv4.ignore-auto-routes")
	if ignoreAuto == "" {
		ignoreAuto = "no"
	}
	v6Method := nmProp(ctx, runner, connection, "ipv6.method")
	if v6Method == "" {
		v6Method = "disabled"
	}

	state := journal.NMOriginalState{
		IPv4NeverDefault:     never,
		IPv4IgnoreAutoRoutes: ignoreAuto,
		IPv6Method:           v6Method,
	}
	if err := j.Set(journal.KeyNMOriginalState, state); err != nil {
		return err
	}
	if err := j.Set(journal.KeyNMConnection, connection); err != nil {
		return err
	}

	if _, err := runner.Run(ctx, "sudo", "nmcli", "connection", "modify", connection, "ipv4.never-default", "yes"); err != nil {
		return fmt.Errorf("neutralizing %s: %w", connection, err)
	}
	if _, err := runner.Run(ctx, "sudo", "nmcli", "connection", "modify", connection, "ipv4.ignore-auto-routes", "yes"); err != nil {
		return fmt.Errorf("neutralizing %s: %w", connection, err)
	}
	// ipv6.method is best-effort: some profiles reject "ignore" outright.
	_, _ = runner.Run(ctx, "sudo", "nmcli", "connection", "modify", connection, "ipv6.method", "ignore")

	return nil
}

// RestoreManagedConnection reverts the three properties to the values
// journaled by NeutralizeManagedConnection and brings the profile back up.
func RestoreManagedConnection(ctx context.Context, runner process.Runner, connection string, state journal.NMOriginalState) error {
	_, _ = runner.Run(ctx, "sudo", "nmcli", "connection", "modify", connection, "ipv4.never-default", state.IPv4NeverDefault)
	_, _ = runner.Run(ctx, "sudo", "nmcli", "connection", "modify", connection, "ipv4.ignore-auto-routes", state.IPv4IgnoreAutoRoutes)
	_, _ = runner.Run(ctx, "sudo", "nmcli", "connection", "modify", connection, "ipv6.method", state.IPv6Method)

	_, err := runner.Run(ctx, "sudo", "nmcli", "connection", "up", connection)
	return err
}
