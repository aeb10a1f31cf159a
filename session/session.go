// Package session holds the in-memory state owned exclusively by the
// Monitor Loop for the lifetime of one supervised tunnel.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session tracks everything the Monitor Loop needs across ticks: what IP
// the tunnel is expected to present, how many times it has been
// corrected or fully reconnected, and when each correction happened (for
// the pattern-analysis statistic).
type Session struct {
	ID string

	OriginalPublicIP string
	ExpectedVPNIP    string
	InternalIP       string
	ForwardedPort    string

	StartTime time.Time

	ReconnectionCount int
	CorrectionCount   int
	Corrections       []time.Time
}

// New starts a Session for a freshly verified tunnel.
func New(originalIP, vpnIP, internalIP, forwardedPort string) *Session {
	return &Session{
		ID:               uuid.New().String(),
		OriginalPublicIP: originalIP,
		ExpectedVPNIP:    vpnIP,
		InternalIP:       internalIP,
		ForwardedPort:    forwardedPort,
		StartTime:        time.Now(),
	}
}

// RecordCorrection appends a Route Guardian correction timestamp.
func (s *Session) RecordCorrection(at time.Time) {
	s.CorrectionCount++
	s.Corrections = append(s.Corrections, at)
}

// RecordReconnection resets the per-connection correction counters after
// a full reconnect, matching the original tool's reset-on-reconnect
// behavior (a reconnect is a new baseline, not a continuation of the old
// pattern).
func (s *Session) RecordReconnection(vpnIP, forwardedPort string) {
	s.ReconnectionCount++
	s.ExpectedVPNIP = vpnIP
	s.ForwardedPort = forwardedPort
	s.CorrectionCount = 0
	s.Corrections = nil
}

// Uptime returns time elapsed since the Session started.
func (s *Session) Uptime() time.Duration {
	return time.Since(s.StartTime)
}
