// Package common provides shared constants, types, and utilities
// used across the VPN Manager application.
package common

import "errors"

// Sentinel errors for the supervisor.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("operation cancelled")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Permission errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrRootRequired     = errors.New("root privileges required")

	// Setup errors (§7): missing dependency, no writable working directory,
	// no .ovpn files, no credentials. Reported, exits non-zero, never
	// enters fail-closed.
	ErrMissingDependency = errors.New("required external binary not found on PATH")
	ErrNoWorkingDir      = errors.New("working directory is not writable")
	ErrNoTunnelConfigs   = errors.New("no .ovpn files found")
	ErrNoCredentials     = errors.New("no credentials configured")

	// Orchestrator failures (§4.4, §7): each is a named FAIL sink.
	ErrLaunchTimeout    = errors.New("tunnel did not complete initialization within the connect timeout")
	ErrNoPushedDNS      = errors.New("no DNS servers were pushed by the server")
	ErrNoRemoteEndpoint = errors.New("remote endpoint could not be determined from the tunnel log")
	ErrRouteReplaceFail = errors.New("failed to install default route through the tunnel")
	ErrPingFailed       = errors.New("reachability check through the tunnel failed")
	ErrIPNotVerified    = errors.New("public IP did not change after connecting")

	// Already-running / instance lock (§4.1, §8).
	ErrAlreadyRunning = errors.New("a supervisor instance is already running")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
