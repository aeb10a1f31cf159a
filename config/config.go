// Package config manages the supervisor's persisted configuration: the
// one file a user actually edits across runs (language, last-picked
// location, display options, encrypted credentials, optional
// post-connection hook, and firewall flags).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the supervisor's on-disk configuration, persisted as
// config.json under the working directory (§6).
type Config struct {
	// Language is the selected menu language: "en" or "es".
	Language string `json:"language"`
	// LastChoice is the index of the last selected .ovpn location.
	LastChoice int `json:"last_choice"`

	// Display parsing options, used to turn .ovpn file names into a
	// location picker: whether the name is "configured" for parsing,
	// the expected format string, the field separator, and which
	// split fields hold the city and country.
	DisplayConfigured bool   `json:"display_configured"`
	DisplayFormat      string `json:"display_format"`
	Separator          string `json:"separator"`
	CityIndex          int    `json:"city_index"`
	CountryIndex       int    `json:"country_index"`

	// VPNUserEnc and VPNPassEnc hold credentials encrypted with the
	// XOR-over-machine-id cipher, hex-encoded. Empty means unset.
	VPNUserEnc string `json:"vpn_user_enc"`
	VPNPassEnc string `json:"vpn_pass_enc"`

	// PostScript is an optional executable invoked after a successful
	// connect or reconnect, run as SUDO_USER rather than root.
	PostScript string `json:"post_script"`

	// BlockDoH inserts kill-switch rules dropping well-known DoH
	// resolver IPs on tcp/443.
	BlockDoH bool `json:"block_doh"`
	// BlockLAN omits the kill-switch ACCEPT rule for the local subnet.
	BlockLAN bool `json:"block_lan"`

	// SplitTunnelMode is "" (disabled), "include", or "exclude".
	SplitTunnelMode   string   `json:"split_tunnel_mode,omitempty"`
	SplitTunnelRoutes []string `json:"split_tunnel_routes,omitempty"`
}

// DefaultConfig returns the configuration used on first launch.
func DefaultConfig() *Config {
	return &Config{
		Language:          "en",
		LastChoice:        -1,
		DisplayConfigured: false,
		Separator:         "-",
		CityIndex:         0,
		CountryIndex:      1,
		BlockDoH:          true,
		BlockLAN:          false,
	}
}

// Load reads the configuration from path, creating it with defaults if
// absent.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// validate normalizes values that must fall within a known set.
func (c *Config) validate() error {
	if c.Language != "en" && c.Language != "es" {
		c.Language = "en"
	}
	if c.Separator == "" {
		c.Separator = "-"
	}
	switch c.SplitTunnelMode {
	case "", "include", "exclude":
	default:
		c.SplitTunnelMode = ""
	}
	return nil
}

// Save persists the configuration to path with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := c.validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

// HasCredentials reports whether both encrypted credential fields are set.
func (c *Config) HasCredentials() bool {
	return c.VPNUserEnc != "" && c.VPNPassEnc != ""
}

// SetCredentials encrypts and stores username/password using key.
func (c *Config) SetCredentials(username, password string, key []byte) error {
	enc, err := Encrypt(username, key)
	if err != nil {
		return err
	}
	c.VPNUserEnc = enc

	enc, err = Encrypt(password, key)
	if err != nil {
		return err
	}
	c.VPNPassEnc = enc
	return nil
}

// Credentials decrypts and returns username/password using key.
func (c *Config) Credentials(key []byte) (username, password string, err error) {
	username, err = Decrypt(c.VPNUserEnc, key)
	if err != nil {
		return "", "", err
	}
	password, err = Decrypt(c.VPNPassEnc, key)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}
