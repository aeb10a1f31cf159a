package mutate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/process"
)

// DNSApplicator pushes a tunnel interface's DNS servers onto the host
// and reverts them on teardown. There are two implementations selected
// once per connection and recorded in the Journal (arch_dns), never
// re-decided mid-session.
type DNSApplicator interface {
	// Apply points tunIface's DNS resolution at servers.
	Apply(ctx context.Context, runner process.Runner, tunIface string, servers []string) error
	// Restore undoes Apply for tunIface.
	Restore(ctx context.Context, runner process.Runner, tunIface string) error
}

// SystemdResolvedApplicator drives resolvectl, used when systemd-resolved
// owns host DNS resolution.
type SystemdResolvedApplicator struct{}

func (SystemdResolvedApplicator) Apply(ctx context.Context, runner process.Runner, tunIface string, servers []string) error {
	args := append([]string{"resolvectl", "dns", tunIface}, servers...)
	if _, err := runner.Run(ctx, "sudo", args...); err != nil {
		return fmt.Errorf("resolvectl dns: %w", err)
	}
	if _, err := runner.Run(ctx, "sudo", "resolvectl", "domain", tunIface, "~."); err != nil {
		return fmt.Errorf("resolvectl domain: %w", err)
	}
	if _, err := runner.Run(ctx, "sudo", "resolvectl", "default-route", tunIface, "yes"); err != nil {
		return fmt.Errorf("resolvectl default-route: %w", err)
	}
	_, _ = runner.Run(ctx, "sudo", "resolvectl", "flush-caches")
	return nil
}

func (SystemdResolvedApplicator) Restore(ctx context.Context, runner process.Runner, tunIface string) error {
	_, err := runner.Run(ctx, "sudo", "resolvectl", "revert", tunIface)
	_, _ = runner.Run(ctx, "sudo", "resolvectl", "flush-caches")
	return err
}

// NetworkManagerApplicator drives nmcli device modify, used when
// systemd-resolved is not active.
type NetworkManagerApplicator struct{}

func (NetworkManagerApplicator) Apply(ctx context.Context, runner process.Runner, tunIface string, servers []string) error {
	dnsArg := strings.Join(servers, " ")
	_, err := runner.Run(ctx, "sudo", "nmcli", "device", "modify", tunIface, "ipv4.dns", dnsArg, "ipv4.ignore-auto-dns", "yes")
	if err != nil {
		return fmt.Errorf("nmcli dns apply: %w", err)
	}
	return nil
}

func (NetworkManagerApplicator) Restore(ctx context.Context, runner process.Runner, tunIface string) error {
	_, err := runner.Run(ctx, "sudo", "nmcli", "device", "modify", tunIface, "ipv4.dns", "", "ipv4.ignore-auto-dns", "no")
	return err
}

// ResolvConfPath is the file locked/restored by LockResolvConf and
// RestoreResolvConf, a var so tests can redirect it.
var ResolvConfPath = "/etc/resolv.conf"

// LockResolvConf is used on hosts without systemd-resolved: it replaces
// /etc/resolv.conf with a file naming the pushed DNS servers, then marks
// it immutable via chattr so nothing else can rewrite it out from under
// the kill switch.
func LockResolvConf(ctx context.Context, runner process.Runner, j *journal.Journal, servers []string) error {
	// Clear any stale immutable bit from a previous crash before touching it.
	_, _ = runner.Run(ctx, "sudo", "chattr", "-i", ResolvConfPath)

	var b strings.Builder
	b.WriteString("# Generated by the supervisor while the kill switch is active\n")
	for _, s := range servers {
		fmt.Fprintf(&b, "nameserver %s\n", s)
	}

	tmp := ResolvConfPath + ".supervisor.tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing temp resolv.conf: %w", err)
	}

	if err := j.Set(journal.KeyResolvLocked, true); err != nil {
		return err
	}
	if _, err := runner.Run(ctx, "sudo", "mv", ResolvConfPath, ResolvConfPath+".bak"); err != nil {
		return fmt.Errorf("backing up resolv.conf: %w", err)
	}
	if _, err := runner.Run(ctx, "sudo", "mv", tmp, ResolvConfPath); err != nil {
		return fmt.Errorf("installing resolv.conf: %w", err)
	}
	if _, err := runner.Run(ctx, "sudo", "chattr", "+i", ResolvConfPath); err != nil {
		return fmt.Errorf("locking resolv.conf: %w", err)
	}

	return nil
}

// RestoreResolvConf reverts LockResolvConf: clears the immutable bit and
// moves the backup back into place.
func RestoreResolvConf(ctx context.Context, runner process.Runner) error {
	if _, err := runner.Run(ctx, "sudo", "chattr", "-i", ResolvConfPath); err != nil {
		return err
	}
	_, err := runner.Run(ctx, "sudo", "mv", ResolvConfPath+".bak", ResolvConfPath)
	return err
}
