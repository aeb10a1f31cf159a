package introspect

import (
	"reflect"
	"testing"
)

func TestInternalTunnelIP(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want string
	}{
		{"dco pattern", "net_addr_v4_add: 10.8.0.2/24 dev tun0", "10.8.0.2"},
		{"classic ifconfig", "ifconfig 10.8.0.6 255.255.255.0", "10.8.0.6"},
		{"legacy ip addr add", "ip addr add 10.8.0.10 dev tun0", "10.8.0.10"},
		{"no match", "PUSH: Received control message", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InternalTunnelIP(tt.log); got != tt.want {
				t.Errorf("InternalTunnelIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPushedDNSServers(t *testing.T) {
	log := `PUSH: Received control message
dhcp-option DNS 10.8.0.1
dhcp-option DNS 10.8.0.2
dhcp-option DNS 10.8.0.1
net_dns_v4_add: 10.8.0.3`

	got := PushedDNSServers(log)
	want := []string{"10.8.0.1", "10.8.0.2", "10.8.0.3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PushedDNSServers() = %v, want %v", got, want)
	}
}

func TestExtractRemoteEndpoint(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want RemoteEndpoint
		ok   bool
	}{
		{
			name: "udp with brackets",
			log:  "UDPv4 link remote: [AF_INET]217.138.222.67:1194",
			want: RemoteEndpoint{IP: "217.138.222.67", Port: "1194", Proto: "udp"},
			ok:   true,
		},
		{
			name: "tcp",
			log:  "TCPv4_CLIENT link remote: 203.0.113.5:443",
			want: RemoteEndpoint{IP: "203.0.113.5", Port: "443", Proto: "tcp"},
			ok:   true,
		},
		{name: "no match", log: "nothing relevant here", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractRemoteEndpoint(tt.log)
			if ok != tt.ok {
				t.Fatalf("ExtractRemoteEndpoint() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractRemoteEndpoint() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTunInterfaceFromLog(t *testing.T) {
	if got := TunInterfaceFromLog("TUN/TAP device tun0 opened"); got != "tun0" {
		t.Errorf("TunInterfaceFromLog() = %q, want tun0", got)
	}
	if got := TunInterfaceFromLog("no device mentioned"); got != "" {
		t.Errorf("TunInterfaceFromLog() = %q, want empty", got)
	}
}
