package monitor

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/yllada/openvpn-supervisor/common"
)

// recordCorrection appends one "Correction:" line to reconnections.log,
// matching the original tool's route_guardian logging of each route fix.
func recordCorrection(workDir string, at time.Time) {
	path := filepath.Join(workDir, common.ReconnectionLogName)
	_ = common.AppendLine(path, fmt.Sprintf("Correction: %s\n", at.Format("2006-01-02 15:04:05")))
}
