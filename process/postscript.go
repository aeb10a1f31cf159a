package process

import (
	"context"
	"os"
)

// RunPostScript invokes path as the real user rather than root, per the
// SUDO_USER external-interface contract: the supervisor itself always
// runs privileged, but a user-configured post-connection hook should not
// inherit that privilege silently.
func RunPostScript(ctx context.Context, runner Runner, path string) (Result, error) {
	if path == "" {
		return Result{}, nil
	}
	if user := os.Getenv("SUDO_USER"); user != "" {
		return runner.Run(ctx, "sudo", "-u", user, path)
	}
	return runner.Run(ctx, path)
}
