package mutate

import (
	"context"
	"fmt"

	"github.com/coreos/go-iptables/iptables"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/introspect"
	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/process"
)

const filterTable = "filter"

// KillSwitchOptions configures one installation of the firewall Mutator.
type KillSwitchOptions struct {
	PhysicalInterface string
	TunInterface      string
	VPNEndpointIP     string
	LocalSubnet       string // "" if unknown or LAN traffic should be blocked
	BlockLAN          bool
	BlockDoH          bool
	// ExcludeCIDRs are split-tunnel exclude routes: traffic to these
	// networks is allowed out the physical interface even though the
	// kill switch otherwise only accepts loopback/LAN/VPN/tunnel.
	ExcludeCIDRs []string
}

// InstallKillSwitch flushes both iptables stacks to a default-DROP
// policy and layers ACCEPT rules for loopback, LAN, the VPN endpoint,
// and the tunnel interface, per §4.3. ufw is disabled first if active,
// and the choice is journaled so teardown knows whether to restore it.
func InstallKillSwitch(ctx context.Context, runner process.Runner, j *journal.Journal, opts KillSwitchOptions) error {
	if opts.PhysicalInterface == "" {
		return fmt.Errorf("kill switch requires a physical interface")
	}

	if err := j.Set(journal.KeyFirewallIface, opts.PhysicalInterface); err != nil {
		return err
	}

	if introspect.UFWActive() {
		if err := j.Set(journal.KeyUFWWasActive, true); err != nil {
			return err
		}
		_, _ = runner.Run(ctx, "sudo", "ufw", "disable")
	}

	ipt, err := iptables.New()
	if err != nil {
		return fmt.Errorf("iptables: %w", err)
	}
	ip6t, err := iptables.NewWithProtocol(iptables.ProtocolIPv6)
	if err != nil {
		return fmt.Errorf("ip6tables: %w", err)
	}

	for _, stack := range []*iptables.IPTables{ipt, ip6t} {
		for _, chain := range []string{"INPUT", "FORWARD", "OUTPUT"} {
			if err := stack.ClearChain(filterTable, chain); err != nil {
				return fmt.Errorf("flushing %s: %w", chain, err)
			}
			if err := stack.ChangePolicy(filterTable, chain, "DROP"); err != nil {
				return fmt.Errorf("setting DROP policy on %s: %w", chain, err)
			}
		}
	}

	if err := ipt.AppendUnique(filterTable, "INPUT", "-i", "lo", "-j", "ACCEPT"); err != nil {
		return err
	}
	if err := ipt.AppendUnique(filterTable, "OUTPUT", "-o", "lo", "-j", "ACCEPT"); err != nil {
		return err
	}

	if opts.LocalSubnet != "" && !opts.BlockLAN {
		if err := ipt.AppendUnique(filterTable, "INPUT", "-s", opts.LocalSubnet, "-j", "ACCEPT"); err != nil {
			return err
		}
		if err := ipt.AppendUnique(filterTable, "OUTPUT", "-d", opts.LocalSubnet, "-j", "ACCEPT"); err != nil {
			return err
		}
	}

	if opts.VPNEndpointIP != "" {
		if err := ipt.AppendUnique(filterTable, "OUTPUT", "-o", opts.PhysicalInterface, "-d", opts.VPNEndpointIP, "-j", "ACCEPT"); err != nil {
			return err
		}
		if err := ipt.AppendUnique(filterTable, "INPUT", "-i", opts.PhysicalInterface, "-s", opts.VPNEndpointIP, "-j", "ACCEPT"); err != nil {
			return err
		}
	}

	if opts.TunInterface != "" {
		if err := ipt.AppendUnique(filterTable, "OUTPUT", "-o", opts.TunInterface, "-j", "ACCEPT"); err != nil {
			return err
		}
		if err := ipt.AppendUnique(filterTable, "INPUT", "-i", opts.TunInterface, "-j", "ACCEPT"); err != nil {
			return err
		}
	}

	for _, cidr := range opts.ExcludeCIDRs {
		if cidr == "" {
			continue
		}
		if err := ipt.AppendUnique(filterTable, "OUTPUT", "-o", opts.PhysicalInterface, "-d", cidr, "-j", "ACCEPT"); err != nil {
			return err
		}
		if err := ipt.AppendUnique(filterTable, "INPUT", "-i", opts.PhysicalInterface, "-s", cidr, "-j", "ACCEPT"); err != nil {
			return err
		}
	}

	if opts.BlockDoH {
		if err := j.Set(journal.KeyDoHBlocked, true); err != nil {
			return err
		}
		for _, ip := range common.DoHResolverIPs {
			if err := ipt.Insert(filterTable, "OUTPUT", 1, "-d", ip, "-p", "tcp", "--dport", "443", "-j", "DROP"); err != nil {
				return fmt.Errorf("blocking DoH IP %s: %w", ip, err)
			}
		}
	}

	return nil
}

// TeardownKillSwitch restores both stacks to an ACCEPT policy and empty
// chains, then re-enables ufw if restoreUFW is set.
func TeardownKillSwitch(ctx context.Context, runner process.Runner, restoreUFW bool) error {
	ipt, err := iptables.New()
	if err != nil {
		return fmt.Errorf("iptables: %w", err)
	}
	ip6t, err := iptables.NewWithProtocol(iptables.ProtocolIPv6)
	if err != nil {
		return fmt.Errorf("ip6tables: %w", err)
	}

	for _, stack := range []*iptables.IPTables{ipt, ip6t} {
		for _, chain := range []string{"INPUT", "FORWARD", "OUTPUT"} {
			if err := stack.ChangePolicy(filterTable, chain, "ACCEPT"); err != nil {
				return fmt.Errorf("restoring ACCEPT policy on %s: %w", chain, err)
			}
			if err := stack.ClearChain(filterTable, chain); err != nil {
				return fmt.Errorf("flushing %s: %w", chain, err)
			}
		}
	}

	if restoreUFW {
		_, err := runner.Run(ctx, "sudo", "ufw", "--force", "enable")
		return err
	}
	return nil
}
