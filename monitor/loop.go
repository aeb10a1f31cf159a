package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/yllada/openvpn-supervisor/cleanup"
	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/guardian"
	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/orchestrator"
	"github.com/yllada/openvpn-supervisor/process"
	"github.com/yllada/openvpn-supervisor/session"
)

// Deps bundles everything the Loop needs to run a tick or a reconnect,
// so the Loop itself stays free of direct exec.Command calls.
type Deps struct {
	Runner       process.Runner
	Notifier     common.Notifier
	Logger       common.Logger
	Orchestrator *orchestrator.Orchestrator
	Guardian     *guardian.Guardian

	WorkDir    string
	ConfigPath string
	LogPath    string
	Username   string
	Password   string
	BlockDoH   bool
	BlockLAN   bool
	SplitTunnelMode   string
	SplitTunnelRoutes []string
	PostScript string

	// NewJournal creates the fresh Journal used for the reconnect attempt.
	NewJournal func() (*journal.Journal, error)
}

// Loop runs the Monitor Loop: poll liveness every MonitorInterval, and on
// a negative result tear down, create a fresh Journal, and call the
// Orchestrator again in reconnecting mode.
func Loop(ctx context.Context, deps Deps, sess *session.Session, initialJournal *journal.Journal) {
	j := initialJournal
	lastAnalysis := time.Time{}

	deps.Guardian.SetOnCorrection(func(at time.Time) {
		sess.RecordCorrection(at)
		recordCorrection(deps.WorkDir, at)
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(common.MonitorInterval):
		}

		if ShouldAnalyze(sess.CorrectionCount, sess.Uptime()) && time.Since(lastAnalysis) > common.MonitorInterval {
			result := AnalyzePattern(sess.Corrections)
			lastAnalysis = time.Now()
			if result.HasPattern {
				deps.Logger.Info("route corrections show a recurring pattern",
					"median_interval", result.MedianInterval.Round(time.Second).String(),
					"confidence_pct", fmt.Sprintf("%.0f", result.PercentWithinTolerance))
			}
		}

		if !CheckLiveness(ctx, deps.Runner, sess.ExpectedVPNIP) {
			continue
		}

		deps.Logger.Warn("tunnel liveness check failed, reconnecting")
		deps.Guardian.Stop()

		cleanup.Run(ctx, deps.Runner, deps.Notifier, deps.Logger, j, deps.WorkDir, false)

		newJournal, err := deps.NewJournal()
		if err != nil {
			deps.Logger.Error("failed to create journal for reconnect", "error", err)
			return
		}
		j = newJournal

		time.Sleep(3 * time.Second)

		req := orchestrator.Request{
			WorkDir:           deps.WorkDir,
			ConfigPath:        deps.ConfigPath,
			LogPath:           deps.LogPath,
			Username:          deps.Username,
			Password:          deps.Password,
			InitialPublicIP:   sess.OriginalPublicIP,
			BlockDoH:          deps.BlockDoH,
			BlockLAN:          deps.BlockLAN,
			SplitTunnelMode:   deps.SplitTunnelMode,
			SplitTunnelRoutes: deps.SplitTunnelRoutes,
			Reconnecting:      true,
		}

		result, err := deps.Orchestrator.Connect(ctx, req, j)
		if err != nil {
			deps.Logger.Error("reconnect failed", "error", err)
			cleanup.Run(ctx, deps.Runner, deps.Notifier, deps.Logger, j, deps.WorkDir, true)
			return
		}

		sess.RecordReconnection(result.PublicIP, result.ForwardedPort)
		_ = deps.Notifier.NotifyCritical(
			"VPN reconnected",
			fmt.Sprintf("The tunnel was rebuilt; the forwarded port may have changed (now %s). Restart any application relying on it.", result.ForwardedPort),
		)

		if deps.PostScript != "" {
			if _, err := process.RunPostScript(ctx, deps.Runner, deps.PostScript); err != nil {
				deps.Logger.Warn("post-connection script failed", "error", err)
			}
		}

		deps.Guardian.Start(ctx)
	}
}
