package orchestrator

import (
	"context"
	"testing"

	"github.com/yllada/openvpn-supervisor/process"
)

func TestPing_SuccessAndFailure(t *testing.T) {
	fake := process.NewFakeRunner()
	fake.SetResult("ping -c 1 -W 3 8.8.8.8", process.Result{ExitCode: 0}, nil)
	fake.SetResult("ping -c 1 -W 3 10.0.0.1", process.Result{ExitCode: 1}, nil)

	o := &Orchestrator{Runner: fake}

	if !o.ping(context.Background(), "8.8.8.8") {
		t.Error("ping() = false for a succeeding command, want true")
	}
	if o.ping(context.Background(), "10.0.0.1") {
		t.Error("ping() = true for a failing command, want false")
	}
}

func TestVerifyPublicIP(t *testing.T) {
	fake := process.NewFakeRunner()
	fake.SetResult("curl -s --max-time 5 ifconfig.me", process.Result{Stdout: "203.0.113.9\n"}, nil)

	o := &Orchestrator{Runner: fake}

	ip, ok := o.verifyPublicIP(context.Background(), "198.51.100.1")
	if !ok {
		t.Fatal("verifyPublicIP() ok = false, want true")
	}
	if ip != "203.0.113.9" {
		t.Errorf("verifyPublicIP() = %q, want %q", ip, "203.0.113.9")
	}
}

func TestVerifyPublicIP_SameAsInitialDoesNotCount(t *testing.T) {
	fake := process.NewFakeRunner()
	fake.SetResult("curl -s --max-time 5 ifconfig.me", process.Result{Stdout: "198.51.100.1"}, nil)
	fake.SetResult("curl -s --max-time 5 icanhazip.com", process.Result{Stdout: "198.51.100.1"}, nil)
	fake.SetResult("curl -s --max-time 5 ipinfo.io/ip", process.Result{Stdout: "198.51.100.1"}, nil)

	o := &Orchestrator{Runner: fake}

	_, ok := o.verifyPublicIP(context.Background(), "198.51.100.1")
	if ok {
		t.Error("verifyPublicIP() ok = true when every service echoes the pre-connect IP, want false")
	}
}
