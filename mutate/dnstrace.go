package mutate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/process"
)

// LogDNSAction appends one line to convpn_dns.log under workDir, matching
// the original tool's log_dns_action format.
func LogDNSAction(workDir, action, data string) {
	path := filepath.Join(workDir, common.DNSActionLogName)
	line := fmt.Sprintf("[%s] %s: %s\n", time.Now().Format("2006-01-02 15:04:05"), action, data)
	_ = common.AppendLine(path, line)
}

type dnsBackup struct {
	Timestamp  string              `json:"timestamp"`
	Interfaces map[string][]string `json:"interfaces"`
}

// BackupDNS records physicalIface's current DNS servers to
// convpn_dns_backup.json before the tunnel's DNS is applied over them,
// matching the original tool's backup_original_dns. It is evidentiary only:
// nothing restores host DNS from its contents, the backup file is simply
// removed on teardown.
func BackupDNS(ctx context.Context, runner process.Runner, j *journal.Journal, workDir, physicalIface string) error {
	backup := dnsBackup{
		Timestamp:  time.Now().Format(time.RFC3339),
		Interfaces: map[string][]string{},
	}
	if physicalIface != "" {
		res, err := runner.Run(ctx, "nmcli", "-g", "IP4.DNS", "device", "show", physicalIface)
		if err == nil {
			backup.Interfaces[physicalIface] = strings.Fields(res.Stdout)
		}
	}

	data, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("encoding DNS backup: %w", err)
	}
	path := filepath.Join(workDir, common.DNSBackupFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing DNS backup: %w", err)
	}

	LogDNSAction(workDir, "BACKUP", fmt.Sprintf("Saved to %s", path))
	return j.Set(journal.KeyBackupCreated, true)
}
