package guardian

import (
	"context"
	"testing"
	"time"

	"github.com/yllada/openvpn-supervisor/process"
)

func TestGuardian_CorrectsStrayDefaultRoute(t *testing.T) {
	fake := process.NewFakeRunner()
	fake.SetResult("ip route", process.Result{Stdout: "default via 10.0.0.1 dev eth0\n10.8.0.0/24 dev tun0"}, nil)

	g := New(fake, noopLogger{})

	corrected := make(chan time.Time, 1)
	g.SetOnCorrection(func(at time.Time) { corrected <- at })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)
	defer g.Stop()

	select {
	case <-corrected:
	case <-time.After(5 * time.Second):
		t.Fatal("guardian did not correct the stray default route in time")
	}

	if !fake.Called("sudo", "ip", "route", "del", "default", "via", "10.0.0.1", "dev", "eth0") {
		t.Error("guardian did not issue the expected route deletion")
	}
}

func TestGuardian_StartStop_Idempotent(t *testing.T) {
	g := New(process.NewFakeRunner(), noopLogger{})
	ctx := context.Background()

	g.Start(ctx)
	g.Start(ctx) // second Start should be a no-op, not a panic on double-init
	if !g.IsRunning() {
		t.Fatal("guardian should be running after Start")
	}

	g.Stop()
	g.Stop() // second Stop should be a no-op, not a panic on double-close
	if g.IsRunning() {
		t.Fatal("guardian should not be running after Stop")
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
