// Package introspect scrapes the tunnel process log and the host's
// network state for the facts the Orchestrator, Guardian, and Monitor
// Loop need: the internal tunnel IP, pushed DNS servers, the remote
// endpoint, the active tun interface, and the current default route.
//
// OpenVPN's log format differs across versions and build options (DCO
// vs classic tun, old vs new push syntax), so every extractor here tries
// several patterns in order and returns the first match.
package introspect

import (
	"net"
	"os/exec"
	"regexp"
	"strings"
)

var (
	internalIPPatterns = []*regexp.Regexp{
		regexp.MustCompile(`net_addr_v4_add:\s+([0-9.]+)`),
		regexp.MustCompile(`ifconfig\s+([0-9.]+)\s+[0-9.]+`),
		regexp.MustCompile(`ip\s+addr\s+add\s+([0-9.]+)`),
	}

	dnsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`dhcp-option DNS ([\d.]+)`),
		regexp.MustCompile(`net_dns_v4_add:\s+([\d.]+)`),
	}

	remoteEndpointPattern = regexp.MustCompile(`(?i)(UDP|TCP).*?remote:.*?(?:\[.*?\])?\s*([0-9.]+):([0-9]+)`)
	tunDeviceOpenedPattern = regexp.MustCompile(`TUN/TAP device (tun\d+) opened`)
	defaultRoutePattern    = regexp.MustCompile(`(?m)^default (.*)`)
)

// InternalTunnelIP extracts the locally assigned tunnel IP from the
// captured OpenVPN log. Returns "" if none of the known patterns match.
func InternalTunnelIP(logContent string) string {
	return firstMatch(internalIPPatterns, logContent)
}

// PushedDNSServers extracts the DNS servers pushed by the server,
// de-duplicated while preserving the order first seen.
func PushedDNSServers(logContent string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pat := range dnsPatterns {
		for _, m := range pat.FindAllStringSubmatch(logContent, -1) {
			ip := m[1]
			if !seen[ip] {
				seen[ip] = true
				out = append(out, ip)
			}
		}
	}
	return out
}

// RemoteEndpoint is the VPN server endpoint as reported in the tunnel log.
type RemoteEndpoint struct {
	IP    string
	Port  string
	Proto string // "udp" or "tcp"
}

// ExtractRemoteEndpoint scans the log for the negotiated remote link.
func ExtractRemoteEndpoint(logContent string) (RemoteEndpoint, bool) {
	m := remoteEndpointPattern.FindStringSubmatch(logContent)
	if m == nil {
		return RemoteEndpoint{}, false
	}
	proto := "tcp"
	if strings.EqualFold(m[1], "udp") {
		proto = "udp"
	}
	return RemoteEndpoint{IP: m[2], Port: m[3], Proto: proto}, true
}

// TunInterfaceFromLog extracts the tun device name OpenVPN reports
// opening, without touching the live link table.
func TunInterfaceFromLog(logContent string) string {
	m := tunDeviceOpenedPattern.FindStringSubmatch(logContent)
	if m == nil {
		return ""
	}
	return m[1]
}

// TunInterfaceFromLinks asks the kernel directly for the first "tunN"
// interface, used as a fallback when the log hasn't reported one yet.
func TunInterfaceFromLinks() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if strings.HasPrefix(iface.Name, "tun") {
			return iface.Name
		}
	}
	return ""
}

// DefaultRouteDetails returns the `ip route show default` line's
// arguments (everything after "default"), or "" if there is none.
func DefaultRouteDetails() string {
	out, err := exec.Command("ip", "route", "show", "default").Output()
	if err != nil {
		return ""
	}
	m := defaultRoutePattern.FindStringSubmatch(string(out))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// PhysicalInterface returns the device carrying the current default
// route, skipping any route whose device is a tun interface.
func PhysicalInterface() string {
	out, err := exec.Command("ip", "route", "show", "default").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "default") || strings.Contains(line, "tun") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "dev" && i+1 < len(fields) {
				return fields[i+1]
			}
		}
	}
	return ""
}

// LocalSubnet returns the link-scoped kernel route (e.g. "192.168.1.0/24")
// for iface, used to let the kill switch accept LAN traffic.
func LocalSubnet(iface string) string {
	out, err := exec.Command("ip", "-o", "route", "show", "dev", iface, "scope", "link").Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.Contains(line, "proto kernel") && strings.Contains(line, "src") {
			fields := strings.Fields(line)
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}

// UFWActive reports whether ufw is installed and reports itself active.
func UFWActive() bool {
	if _, err := exec.LookPath("ufw"); err != nil {
		return false
	}
	out, err := exec.Command("sudo", "ufw", "status").Output()
	if err != nil {
		return false
	}
	s := string(out)
	return strings.Contains(s, "Status: active") || strings.Contains(s, "Estado: activo")
}

// SystemdResolvedActive reports whether resolvectl can talk to a running
// systemd-resolved, selecting which DNS backend Mutators should use.
func SystemdResolvedActive() bool {
	if _, err := exec.LookPath("resolvectl"); err != nil {
		return false
	}
	return exec.Command("resolvectl", "status").Run() == nil
}

func firstMatch(patterns []*regexp.Regexp, content string) string {
	for _, pat := range patterns {
		if m := pat.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	}
	return ""
}
