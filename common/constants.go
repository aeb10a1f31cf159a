// Package common provides shared constants, types, and utilities
// used across the supervisor.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "convpn-supervisor"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "convpn"
)

// File names used under the working directory. These match the external
// interface contract exactly: other tooling (and crash recovery across
// restarts) depends on the literal names.
const (
	ConfigFileName       = "config.json"
	LogFileName          = "openvpn.log"
	PortFileName         = "forwarded_port.txt"
	ReconnectionLogName  = "reconnections.log"
	DNSActionLogName     = "convpn_dns.log"
	DNSBackupFileName    = "convpn_dns_backup.json"
	LockFileName         = "convpn.lock"
	AppLogFileName       = "vpn-manager.log"
)

// Connection orchestrator timing (§4.4).
const (
	// ConnectTimeout is the per-attempt bound on seeing the init-sequence marker.
	ConnectTimeout = 20 * time.Second
	// ConnectAttempts is the number of launch attempts before FAIL.
	ConnectAttempts = 3
	// ConnectRetryDelay is the backoff between launch attempts.
	ConnectRetryDelay = 10 * time.Second
	// IPVerifyAttempts is the number of public-IP verification rounds.
	IPVerifyAttempts = 3
	// IPVerifyRetryDelay is the gap between IP verification rounds.
	IPVerifyRetryDelay = 5 * time.Second
	// PortLookupAttempts is the number of port-API call attempts.
	PortLookupAttempts = 3
	// PortLookupTimeout is the per-call HTTP timeout for the port API.
	PortLookupTimeout = 5 * time.Second
	// CurlTimeout bounds each public-IP echo request.
	CurlTimeout = 5 * time.Second
)

// Route Guardian timing (§4.5).
const (
	GuardianLowAlertInterval  = 2 * time.Second
	GuardianHighAlertInterval = 1 * time.Second
	GuardianHighAlertWindow   = 900 * time.Second
)

// Monitor Loop timing (§4.6).
const (
	MonitorInterval        = 45 * time.Second
	PatternAnalysisMinDur  = 1800 * time.Second
	PatternAnalysisMinCorr = 4
	PatternEchoThreshold   = 3 * time.Second
	PatternTolerance       = 30 * time.Second
)

// Sudo keeper timing (§5).
const SudoKeepAliveInterval = 60 * time.Second

// Well-known DoH resolver IPs blocked by the kill switch when DoH-blocking
// is enabled (Cloudflare, Google, Quad9).
var DoHResolverIPs = []string{
	"1.1.1.1", "1.0.0.1",
	"8.8.8.8", "8.8.4.4",
	"9.9.9.9", "149.112.112.112",
}

// Public IP echo endpoints, tried in order; any one succeeding is sufficient.
var PublicIPEchoServices = []string{
	"ifconfig.me",
	"icanhazip.com",
	"ipinfo.io/ip",
}

// Split tunnel modes.
const (
	SplitTunnelModeInclude = "include"
	SplitTunnelModeExclude = "exclude"
)
