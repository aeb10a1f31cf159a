// Package orchestrator drives a single tunnel lifecycle: launching
// openvpn, waiting for it to come up, applying DNS and the kill switch,
// replacing the default route, and verifying the tunnel actually carries
// traffic. It is the forward half of the state machine described in
// SPEC_FULL.md §4.4, adapted from the teacher's vpn.Manager.Connect/
// runConnection/monitorOutput idiom.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/introspect"
	"github.com/yllada/openvpn-supervisor/journal"
	"github.com/yllada/openvpn-supervisor/mutate"
	"github.com/yllada/openvpn-supervisor/process"
)

// Result is everything the rest of the supervisor needs once a tunnel is
// verified up.
type Result struct {
	PublicIP          string
	InternalIP        string
	ForwardedPort     string
	PhysicalInterface string
	TunInterface      string
	RemoteEndpoint    introspect.RemoteEndpoint
}

// Request carries everything the Orchestrator needs that isn't derived
// from log scraping or live introspection.
type Request struct {
	WorkDir        string
	ConfigPath     string
	LogPath        string
	Username       string
	Password       string
	InitialPublicIP string
	BlockDoH       bool
	BlockLAN       bool
	// SplitTunnelMode is "" (disabled), "include", or "exclude".
	SplitTunnelMode   string
	SplitTunnelRoutes []string
	Reconnecting   bool
}

// Orchestrator composes a Runner and Logger; all host mutation goes
// through the mutate package, never directly through exec here.
type Orchestrator struct {
	Runner process.Runner
	Logger common.Logger
}

// New returns an Orchestrator using the production Runner.
func New(logger common.Logger) *Orchestrator {
	return &Orchestrator{Runner: process.NewRunner(), Logger: logger}
}

// Connect runs the full connect/reconnect sequence against j, returning
// a Result on success or a wrapped sentinel error from common/errors.go
// naming the failure mode. Every step records its commitment to j before
// acting, so a crash mid-sequence leaves the Journal sufficient to undo
// whatever has happened so far.
func (o *Orchestrator) Connect(ctx context.Context, req Request, j *journal.Journal) (Result, error) {
	startLine := fmt.Sprintf("Time: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	_ = os.WriteFile(filepath.Join(req.WorkDir, common.ReconnectionLogName), []byte(startLine), 0644)

	physicalIface := introspect.PhysicalInterface()
	if physicalIface != "" {
		_ = j.Set(journal.KeyPhysicalInterface, physicalIface)
	}

	if !req.Reconnecting {
		if conn := mutate.ActiveManagedConnection(ctx, o.Runner); conn != "" {
			if err := mutate.NeutralizeManagedConnection(ctx, o.Runner, j, conn); err != nil {
				o.Logger.Warn("failed to neutralize managed connection", "connection", conn, "error", err)
			}
		}
	}

	var tun *process.Tunnel
	var lastErr error
	for attempt := 1; attempt <= common.ConnectAttempts; attempt++ {
		_, _ = o.Runner.Run(ctx, "sudo", "killall", "-q", "openvpn")

		var err error
		tun, err = process.LaunchOpenVPN(req.WorkDir, req.ConfigPath, req.LogPath, req.Username, req.Password)
		if err != nil {
			lastErr = err
			continue
		}
		if err := j.Set(journal.KeyVPNStarted, true); err != nil {
			return Result{}, err
		}

		if o.waitForInit(ctx, tun) {
			lastErr = nil
			break
		}
		lastErr = common.ErrLaunchTimeout
		_ = tun.Kill()
		if attempt < common.ConnectAttempts {
			sleepCtx(ctx, common.ConnectRetryDelay)
		}
	}
	if lastErr != nil {
		return Result{}, common.WrapError(lastErr, "tunnel launch failed")
	}

	logText := tun.LogText()

	dnsServers := introspect.PushedDNSServers(logText)
	if len(dnsServers) == 0 {
		return Result{}, common.ErrNoPushedDNS
	}

	tunIface := introspect.TunInterfaceFromLog(logText)
	for i := 0; tunIface == "" && i < 5; i++ {
		sleepCtx(ctx, time.Second)
		tunIface = introspect.TunInterfaceFromLinks()
	}

	if tunIface != "" {
		_ = j.Set(journal.KeyDNSApplied, true)
		if err := mutate.BackupDNS(ctx, o.Runner, j, req.WorkDir, physicalIface); err != nil {
			o.Logger.Warn("DNS backup failed", "error", err)
		}

		usingSystemdResolved := introspect.SystemdResolvedActive()
		var applicator mutate.DNSApplicator
		if usingSystemdResolved {
			_ = j.Set(journal.KeyArchDNS, true)
			applicator = mutate.SystemdResolvedApplicator{}
		} else {
			applicator = mutate.NetworkManagerApplicator{}
		}

		dnsDetail := fmt.Sprintf("Interface: %s, DNS: %s", tunIface, strings.Join(dnsServers, " "))
		if err := applicator.Apply(ctx, o.Runner, tunIface, dnsServers); err != nil {
			o.Logger.Warn("DNS apply failed", "interface", tunIface, "error", err)
			if !usingSystemdResolved {
				if lockErr := mutate.LockResolvConf(ctx, o.Runner, j, dnsServers); lockErr != nil {
					o.Logger.Warn("resolv.conf fallback failed", "error", lockErr)
				} else {
					mutate.LogDNSAction(req.WorkDir, "LOCK_RESOLV", dnsDetail)
				}
			}
		} else if usingSystemdResolved {
			mutate.LogDNSAction(req.WorkDir, "ARCH_APPLY", dnsDetail)
		} else {
			mutate.LogDNSAction(req.WorkDir, "APPLY_NM", dnsDetail)
		}
	}

	endpoint, haveEndpoint := introspect.ExtractRemoteEndpoint(logText)
	if physicalIface != "" {
		if !haveEndpoint || tunIface == "" {
			return Result{}, common.ErrNoRemoteEndpoint
		}
		localSubnet := introspect.LocalSubnet(physicalIface)
		var excludeCIDRs []string
		if req.SplitTunnelMode == common.SplitTunnelModeExclude {
			excludeCIDRs = req.SplitTunnelRoutes
		}
		opts := mutate.KillSwitchOptions{
			PhysicalInterface: physicalIface,
			TunInterface:      tunIface,
			VPNEndpointIP:     endpoint.IP,
			LocalSubnet:       localSubnet,
			BlockLAN:          req.BlockLAN,
			BlockDoH:          req.BlockDoH,
			ExcludeCIDRs:      excludeCIDRs,
		}
		if err := mutate.InstallKillSwitch(ctx, o.Runner, j, opts); err != nil {
			return Result{}, common.WrapError(err, "kill switch install failed")
		}
	}

	origRoute := introspect.DefaultRouteDetails()
	if req.SplitTunnelMode == common.SplitTunnelModeExclude && len(req.SplitTunnelRoutes) > 0 {
		origGateway := mutate.GatewayFromRouteDetails(origRoute)
		if err := mutate.ApplySplitTunnelExclude(ctx, o.Runner, req.SplitTunnelRoutes, origGateway, physicalIface); err != nil {
			o.Logger.Warn("split tunnel exclude routes failed", "error", err)
		}
	}
	if origRoute != "" {
		_, _ = o.Runner.Run(ctx, "sudo", "ip", "route", "del", "default")
	}
	if !o.waitForDefaultRoute(ctx) {
		return Result{}, common.ErrRouteReplaceFail
	}

	if req.SplitTunnelMode == common.SplitTunnelModeInclude && len(req.SplitTunnelRoutes) > 0 {
		if err := mutate.ApplySplitTunnelInclude(ctx, o.Runner, req.SplitTunnelRoutes, "", tunIface); err != nil {
			o.Logger.Warn("split tunnel include routes failed", "error", err)
		}
	}

	sleepCtx(ctx, 3*time.Second)

	if !o.ping(ctx, "8.8.8.8") {
		return Result{}, common.ErrPingFailed
	}

	newIP, verified := o.verifyPublicIP(ctx, req.InitialPublicIP)
	if !verified {
		return Result{}, common.ErrIPNotVerified
	}

	internalIP := introspect.InternalTunnelIP(logText)
	port := o.lookupForwardedPort(ctx, internalIP)
	if port != "unavailable" && port != "unsupported" {
		portPath := filepath.Join(req.WorkDir, common.PortFileName)
		if err := os.WriteFile(portPath, []byte(port), 0644); err != nil {
			o.Logger.Warn("failed to save forwarded port", "path", portPath, "error", err)
		}
	}

	return Result{
		PublicIP:          newIP,
		InternalIP:        internalIP,
		ForwardedPort:     port,
		PhysicalInterface: physicalIface,
		TunInterface:      tunIface,
		RemoteEndpoint:    endpoint,
	}, nil
}

func (o *Orchestrator) waitForInit(ctx context.Context, tun *process.Tunnel) bool {
	deadline := time.Now().Add(common.ConnectTimeout)
	for time.Now().Before(deadline) {
		if tun.ContainsMarker(process.MarkerInitComplete) {
			return true
		}
		if tun.ContainsMarker(process.MarkerAuthFailed) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return false
}

func (o *Orchestrator) waitForDefaultRoute(ctx context.Context) bool {
	for i := 0; i < 10; i++ {
		if mutate.HasDefaultRouteViaTun(ctx, o.Runner) {
			return true
		}
		sleepCtx(ctx, time.Second)
	}
	return false
}

func (o *Orchestrator) ping(ctx context.Context, host string) bool {
	res, err := o.Runner.Run(ctx, "ping", "-c", "1", "-W", "3", host)
	return err == nil && res.ExitCode == 0
}

var ipPattern = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)

func (o *Orchestrator) verifyPublicIP(ctx context.Context, initialIP string) (string, bool) {
	for attempt := 1; attempt <= common.IPVerifyAttempts; attempt++ {
		for _, service := range common.PublicIPEchoServices {
			res, err := o.Runner.Run(ctx, "curl", "-s", "--max-time", fmt.Sprintf("%d", int(common.CurlTimeout.Seconds())), service)
			if err != nil {
				continue
			}
			ip := strings.TrimSpace(res.Stdout)
			if ipPattern.MatchString(ip) && ip != initialIP {
				return ip, true
			}
		}
		if attempt < common.IPVerifyAttempts {
			sleepCtx(ctx, common.IPVerifyRetryDelay)
		}
	}
	return "", false
}

type portAPIResponse struct {
	Supported bool   `json:"supported"`
	Status    string `json:"status"`
}

var digitsPattern = regexp.MustCompile(`\d+`)

// lookupForwardedPort returns the numeric port from the port-assignment
// API's response, "unsupported" if the API says the connection doesn't
// support forwarding, or "unavailable" if it could not be determined.
func (o *Orchestrator) lookupForwardedPort(ctx context.Context, internalIP string) string {
	if internalIP == "" {
		return "unavailable"
	}
	url := fmt.Sprintf("https://connect.pvdatanet.com/v3/Api/port?ip[]=%s", internalIP)
	client := &http.Client{Timeout: common.PortLookupTimeout}

	for attempt := 0; attempt < common.PortLookupAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "unavailable"
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		var body portAPIResponse
		decErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if decErr != nil {
			continue
		}

		if !body.Supported {
			return "unsupported"
		}
		if port := digitsPattern.FindString(body.Status); port != "" {
			return port
		}
	}
	return "unavailable"
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
