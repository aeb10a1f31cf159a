// Package journal implements the supervisor's append-only undo log: a
// persisted record of every mutation applied to host state, and the sole
// input to crash recovery and Cleanup.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/yllada/openvpn-supervisor/common"
)

// Action keys recognized by Cleanup. See SPEC_FULL.md §3 for the exact
// semantics of each.
const (
	KeyPhysicalInterface = "physical_interface"
	KeyNMConnection      = "nm_connection"
	KeyNMOriginalState   = "nm_original_state"
	KeyVPNStarted        = "vpn_started"
	KeyFirewallIface     = "firewall_iface"
	KeyUFWWasActive      = "ufw_was_active"
	KeyDoHBlocked        = "doh_blocked"
	KeyDNSApplied        = "dns_applied"
	KeyArchDNS           = "arch_dns"
	KeyResolvLocked      = "resolv_locked"
	KeyBackupCreated     = "backup_created"
)

// NMOriginalState is the value shape stored under KeyNMOriginalState.
type NMOriginalState struct {
	IPv4NeverDefault     string `json:"ipv4.never-default"`
	IPv4IgnoreAutoRoutes string `json:"ipv4.ignore-auto-routes"`
	IPv6Method           string `json:"ipv6.method"`
}

// Journal is the process-wide, disk-backed mutation record.
type Journal struct {
	mu      sync.Mutex
	path    string
	PID     int                    `json:"pid"`
	RunID   string                 `json:"run_id"`
	Actions map[string]interface{} `json:"actions"`
}

// New creates a fresh Journal for the current process and persists it
// immediately, per §4.1: Cleanup on success also deletes the Journal, and
// the replacement must exist before any Mutator runs.
func New(path string) (*Journal, error) {
	j := &Journal{
		path:    path,
		PID:     os.Getpid(),
		RunID:   uuid.New().String(),
		Actions: make(map[string]interface{}),
	}
	if err := j.persist(); err != nil {
		return nil, common.WrapError(err, "failed to create journal")
	}
	return j, nil
}

// Load reads an existing Journal from disk, or returns (nil, nil) if
// absent. A present-but-unparsable Journal is still treated as present
// (crash residue) rather than silently discarded: it comes back with no
// pid and an empty Actions map, which the Instance Lock adopts as stale.
func Load(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.WrapError(err, "failed to read journal")
	}

	j := &Journal{path: path}
	if err := json.Unmarshal(data, j); err != nil {
		// Crash residue with corrupted content: still a Journal, just with
		// no recoverable pid or actions.
		return &Journal{path: path, Actions: make(map[string]interface{})}, nil
	}
	if j.Actions == nil {
		j.Actions = make(map[string]interface{})
	}
	return j, nil
}

// Set writes a key BEFORE the corresponding host mutation, per the
// invariant in §3: callers must call Set and check its error before
// performing the host change it describes.
func (j *Journal) Set(key string, value interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Actions[key] = value
	return j.persistLocked()
}

// Get returns a raw action value and whether it was present.
func (j *Journal) Get(key string) (interface{}, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.Actions[key]
	return v, ok
}

// Bool returns an action value coerced to bool, defaulting to false.
func (j *Journal) Bool(key string) bool {
	v, ok := j.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// String returns an action value coerced to string, defaulting to "".
func (j *Journal) String(key string) string {
	v, ok := j.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NMState returns the journaled nm_original_state, if present.
func (j *Journal) NMState() (NMOriginalState, bool) {
	v, ok := j.Get(KeyNMOriginalState)
	if !ok {
		return NMOriginalState{}, false
	}
	// Round-trip through JSON: the value may be a map[string]interface{}
	// (freshly decoded) or a NMOriginalState (set in-process this run).
	switch t := v.(type) {
	case NMOriginalState:
		return t, true
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return NMOriginalState{}, false
		}
		var st NMOriginalState
		if err := json.Unmarshal(raw, &st); err != nil {
			return NMOriginalState{}, false
		}
		return st, true
	}
}

// Delete removes the on-disk Journal file. Invariant (§4.7): if Cleanup
// returns without failure mode, the Journal file must not exist.
func (j *Journal) Delete() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return common.WrapError(err, "failed to delete journal")
	}
	return nil
}

// Path returns the on-disk location of this Journal.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) persist() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.persistLocked()
}

func (j *Journal) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0600)
}
