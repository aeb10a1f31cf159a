// Package cleanup implements fail-safe teardown: unwinding every
// mutation recorded in a Journal, in the fixed order required for
// correctness (firewall before DNS before routes), then deleting the
// working-directory session files and, on failure, disabling host
// networking entirely.
package cleanup

import (
	"context"
	"os"
	"path/filepath"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/introspect"
	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/mutate"
	"github.com/yllada/openvpn-supervisor/process"
)

// Run unwinds everything j recorded. isFailure selects the fail-closed
// branch: if the tunnel process had been launched, host networking is
// disabled rather than left in an unprotected state. workDir is where
// the ephemeral session files (§6) live and are removed from.
func Run(ctx context.Context, runner process.Runner, notifier common.Notifier, logger common.Logger, j *journal.Journal, workDir string, isFailure bool) {
	logger.Info("cleanup starting", "failure", isFailure)

	_, _ = runner.Run(ctx, "sudo", "killall", "-q", "openvpn")

	fwIface := j.String(journal.KeyFirewallIface)
	ufwWasActive := j.Bool(journal.KeyUFWWasActive)
	cachedIface := j.String(journal.KeyPhysicalInterface)

	ifaces := map[string]bool{}
	if fwIface != "" {
		ifaces[fwIface] = true
	}
	if cachedIface != "" {
		ifaces[cachedIface] = true
	}
	if len(ifaces) > 0 {
		if err := mutate.TeardownKillSwitch(ctx, runner, ufwWasActive); err != nil {
			logger.Warn("kill switch teardown failed", "error", err, "manual_recovery", "sudo iptables -P INPUT ACCEPT; sudo iptables -P OUTPUT ACCEPT; sudo iptables -F")
		}
	}

	if j.Bool(journal.KeyResolvLocked) {
		if err := mutate.RestoreResolvConf(ctx, runner); err != nil {
			logger.Warn("resolv.conf restore failed", "error", err, "manual_recovery", "sudo chattr -i /etc/resolv.conf && sudo mv /etc/resolv.conf.bak /etc/resolv.conf")
		}
	}

	nmConn := j.String(journal.KeyNMConnection)
	archDNS := j.Bool(journal.KeyArchDNS)
	backupCreated := j.Bool(journal.KeyBackupCreated)
	dnsApplied := j.Bool(journal.KeyDNSApplied)

	if nmConn != "" || archDNS || backupCreated || dnsApplied {
		if introspect.SystemdResolvedActive() && fwIface != "" {
			_, _ = runner.Run(ctx, "sudo", "resolvectl", "revert", fwIface)
			_, _ = runner.Run(ctx, "sudo", "resolvectl", "flush-caches")
		}

		if nmConn != "" {
			if backupCreated {
				backupPath := filepath.Join(workDir, common.DNSBackupFileName)
				if common.FileExists(backupPath) {
					_ = os.Remove(backupPath)
				}
			}

			state, _ := j.NMState()
			if err := mutate.RestoreManagedConnection(ctx, runner, nmConn, state); err != nil {
				logger.Warn("NetworkManager profile restore failed", "connection", nmConn, "error", err,
					"manual_recovery", "sudo nmcli connection up "+nmConn)
			}
		}
	}

	if isFailure && j.Bool(journal.KeyVPNStarted) {
		logger.Error("tunnel failed after launch: disabling host networking (fail-closed)")
		_, _ = runner.Run(ctx, "sudo", "nmcli", "networking", "off")
		_ = notifier.NotifyCritical(
			"VPN supervisor: network disabled",
			"The tunnel could not be verified and host networking has been turned off to prevent a leak. Reconnect manually to restore network access.",
		)
	}

	for _, name := range []string{
		common.LogFileName,
		common.PortFileName,
		common.ReconnectionLogName,
		common.DNSActionLogName,
		common.DNSBackupFileName,
	} {
		_ = os.Remove(filepath.Join(workDir, name))
	}

	if err := j.Delete(); err != nil {
		logger.Warn("journal deletion failed", "error", err)
	}

	logger.Info("cleanup complete")
}
