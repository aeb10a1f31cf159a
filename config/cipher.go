package config

import (
	"encoding/hex"
	"net"
	"os"
	"strings"
)

// machineIDPaths are tried in order, matching the original tool's
// get_machine_key(): systemd's machine-id first, then D-Bus's copy.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineKey derives the XOR cipher key for this host: the contents of
// /etc/machine-id (or the D-Bus fallback), or failing both, a key
// derived from the first network interface's hardware address.
func MachineKey() ([]byte, error) {
	for _, p := range machineIDPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			key := strings.TrimSpace(string(data))
			if key != "" {
				return []byte(key), nil
			}
		}
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return []byte(iface.HardwareAddr.String()), nil
	}

	// Nothing usable: fall back to a fixed key rather than failing outright,
	// matching uuid.getnode()'s behavior of always returning something.
	return []byte("convpn-supervisor"), nil
}

// xorCipher XORs each byte of text against key, cycling key as needed.
// It is its own inverse.
func xorCipher(text, key []byte) []byte {
	if len(key) == 0 {
		return append([]byte(nil), text...)
	}
	out := make([]byte, len(text))
	for i, b := range text {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// Encrypt XORs plaintext against key and hex-encodes the result.
func Encrypt(plaintext string, key []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	enc := xorCipher([]byte(plaintext), key)
	return hex.EncodeToString(enc), nil
}

// Decrypt hex-decodes ciphertext and XORs it back against key.
func Decrypt(ciphertext string, key []byte) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	return string(xorCipher(raw, key)), nil
}
