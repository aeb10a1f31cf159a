// Command openvpn-supervisor is a long-running privileged process that
// brings an OpenVPN tunnel up against a user-selected location, enforces
// that all host traffic egresses through it, repairs routing/DNS
// anomalies in real time, survives tunnel loss through automatic
// reconnection, and guarantees that every exit path — normal shutdown,
// crash, kill-9 — returns the host to its pre-connection network state
// or, failing that, to a fail-closed state.
//
// Usage:
//
//	sudo openvpn-supervisor [--configure] [--version]
//
// It must run as root and expects its working directory (the directory
// the binary lives in) to contain one or more .ovpn files and,
// optionally, a config.json written by a previous run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/yllada/openvpn-supervisor/cleanup"
	"github.com/yllada/openvpn-supervisor/cli"
	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/config"
	"github.com/yllada/openvpn-supervisor/guardian"
	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/monitor"
	"github.com/yllada/openvpn-supervisor/orchestrator"
	"github.com/yllada/openvpn-supervisor/process"
	"github.com/yllada/openvpn-supervisor/session"
)

const appVersion = "1.0.0"

var (
	showVersion  = flag.Bool("version", false, "Show version and exit")
	runConfigure = flag.Bool("configure", false, "Open the configuration menu and exit")
)

// requiredBinaries are checked at startup per §6/§7; absence is a
// Setup error, reported and exited without entering fail-closed.
var requiredBinaries = []string{
	"openvpn", "ip", "nmcli", "iptables", "ip6tables", "curl", "killall", "sudo",
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		os.Exit(0)
	}

	if err := common.InitLogger(common.LogConfig{Level: common.LevelInfo, EnableFile: true}); err != nil {
		log.Printf("warning: could not enable file logging: %v", err)
	}
	logger := common.GetLogger()

	workDir, err := executableDir()
	if err != nil {
		logger.Error("could not resolve working directory", "error", err)
		os.Exit(1)
	}

	for _, name := range requiredBinaries {
		if _, err := exec.LookPath(name); err != nil {
			logger.Error("missing required dependency", "binary", name, "error", common.ErrMissingDependency)
			os.Exit(1)
		}
	}

	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		logger.Error("working directory not usable", "dir", workDir, "error", common.ErrNoWorkingDir)
		os.Exit(1)
	}

	cfg, err := config.Load(filepath.Join(workDir, common.ConfigFileName))
	if err != nil {
		logger.Error("could not load configuration", "error", err)
		os.Exit(1)
	}

	if *runConfigure {
		if err := cli.New(workDir, cfg).MainMenu(); err != nil {
			logger.Error("configuration menu exited with an error", "error", err)
		}
		os.Exit(0)
	}

	runner := process.NewRunner()
	notifier := common.DesktopNotifier{}

	lockPath := filepath.Join(workDir, common.LockFileName)
	j, err := acquireInstanceLock(lockPath, runner, notifier, logger, workDir)
	if err != nil {
		logger.Error("could not acquire instance lock", "error", err)
		os.Exit(1)
	}

	term := cli.New(workDir, cfg)
	locations, err := term.Locations()
	if err != nil || len(locations) == 0 {
		logger.Error("no tunnel configurations found", "error", common.ErrNoTunnelConfigs)
		os.Exit(1)
	}

	if !cfg.HasCredentials() {
		logger.Error("no credentials configured", "error", common.ErrNoCredentials)
		fmt.Println("Run with --configure to set VPN credentials first.")
		os.Exit(1)
	}

	choice, err := term.PickLocation(locations, cfg.LastChoice+1)
	if err != nil {
		logger.Error("no location selected", "error", err)
		os.Exit(1)
	}
	location := locations[choice-1]
	cfg.LastChoice = choice - 1
	_ = cfg.Save(filepath.Join(workDir, common.ConfigFileName))

	key, err := config.MachineKey()
	if err != nil {
		logger.Error("could not derive storage key", "error", err)
		os.Exit(1)
	}
	username, password, err := cfg.Credentials(key)
	if err != nil {
		logger.Error("could not decrypt stored credentials", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("interrupt received, shutting down")
		cancel()
	}()

	go keepSudoAlive(ctx, runner)

	initialIP := currentPublicIP(ctx, runner)

	orch := orchestrator.New(logger)
	req := orchestrator.Request{
		WorkDir:           workDir,
		ConfigPath:        filepath.Join(workDir, location+".ovpn"),
		LogPath:           filepath.Join(workDir, common.LogFileName),
		Username:          username,
		Password:          password,
		InitialPublicIP:   initialIP,
		BlockDoH:          cfg.BlockDoH,
		BlockLAN:          cfg.BlockLAN,
		SplitTunnelMode:   cfg.SplitTunnelMode,
		SplitTunnelRoutes: cfg.SplitTunnelRoutes,
	}

	result, err := orch.Connect(ctx, req, j)
	if err != nil {
		logger.Error("connection failed", "error", err)
		cleanup.Run(ctx, runner, notifier, logger, j, workDir, true)
		os.Exit(1)
	}

	fmt.Println("=======================================")
	fmt.Println("    Connected")
	fmt.Println("=======================================")
	fmt.Printf("  Location:      %s\n", location)
	fmt.Printf("  Original IP:   %s\n", initialIP)
	fmt.Printf("  Tunnel IP:     %s\n", result.PublicIP)
	fmt.Printf("  Forwarded port: %s\n", result.ForwardedPort)

	if cfg.PostScript != "" {
		if _, err := process.RunPostScript(ctx, runner, cfg.PostScript); err != nil {
			logger.Warn("post-connection script failed", "error", err)
		}
	}

	guard := guardian.New(runner, logger)
	guard.Start(ctx)

	sess := session.New(initialIP, result.PublicIP, result.InternalIP, result.ForwardedPort)

	deps := monitor.Deps{
		Runner:            runner,
		Notifier:          notifier,
		Logger:            logger,
		Orchestrator:      orch,
		Guardian:          guard,
		WorkDir:           workDir,
		ConfigPath:        req.ConfigPath,
		LogPath:           req.LogPath,
		Username:          username,
		Password:          password,
		BlockDoH:          cfg.BlockDoH,
		BlockLAN:          cfg.BlockLAN,
		SplitTunnelMode:   req.SplitTunnelMode,
		SplitTunnelRoutes: req.SplitTunnelRoutes,
		PostScript:        cfg.PostScript,
		NewJournal: func() (*journal.Journal, error) {
			return journal.New(lockPath)
		},
	}

	monitor.Loop(ctx, deps, sess, j)

	guard.Stop()
	cleanup.Run(context.Background(), runner, notifier, logger, j, workDir, false)
}

// acquireInstanceLock applies the §4.1 Instance Lock contract: a fresh
// Journal if no lock exists, adoption (with a Cleanup pass) of a stale
// lock left by a dead predecessor, or a hard failure if another
// supervisor is genuinely still running.
func acquireInstanceLock(lockPath string, runner process.Runner, notifier common.Notifier, logger common.Logger, workDir string) (*journal.Journal, error) {
	existing, err := journal.Load(lockPath)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return journal.New(lockPath)
	}

	switch journal.Probe(existing) {
	case journal.DecisionAlreadyRunning:
		return nil, common.ErrAlreadyRunning
	case journal.DecisionAdoptStale:
		logger.Warn("adopting journal left by a dead instance", "pid", existing.PID)
		cleanup.Run(context.Background(), runner, notifier, logger, existing, workDir, false)
		return journal.New(lockPath)
	default:
		return journal.New(lockPath)
	}
}

func executableDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(exePath)
	if err != nil {
		resolved = exePath
	}
	return filepath.Dir(resolved), nil
}

// keepSudoAlive refreshes the sudo timestamp periodically so later
// privileged subprocess calls don't prompt interactively mid-session.
func keepSudoAlive(ctx context.Context, runner process.Runner) {
	ticker := time.NewTicker(common.SudoKeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = runner.Run(ctx, "sudo", "-v")
		}
	}
}

func currentPublicIP(ctx context.Context, runner process.Runner) string {
	for _, service := range common.PublicIPEchoServices {
		res, err := runner.Run(ctx, "curl", "-s", "--max-time", "5", service)
		if err == nil && res.ExitCode == 0 {
			return strings.TrimSpace(res.Stdout)
		}
	}
	return ""
}
