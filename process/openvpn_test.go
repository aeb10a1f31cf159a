package process

import "testing"

func TestTunnel_ContainsMarker(t *testing.T) {
	tun := &Tunnel{lines: []string{"PUSH: Received", "Initialization Sequence Completed"}}
	if !tun.ContainsMarker(MarkerInitComplete) {
		t.Error("ContainsMarker() = false, want true")
	}
	if tun.ContainsMarker(MarkerAuthFailed) {
		t.Error("ContainsMarker() = true, want false")
	}
}

func TestTunnel_LogText(t *testing.T) {
	tun := &Tunnel{lines: []string{"line one", "line two"}}
	want := "line one\nline two"
	if got := tun.LogText(); got != want {
		t.Errorf("LogText() = %q, want %q", got, want)
	}
}
