package config

import "testing"

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		key       []byte
	}{
		{"short key", "hunter2", []byte("ab")},
		{"long key", "a very long password with spaces", []byte("0123456789abcdef")},
		{"empty plaintext", "", []byte("key")},
		{"key longer than text", "hi", []byte("this-key-is-longer-than-the-text")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encrypt(tt.plaintext, tt.key)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			dec, err := Decrypt(enc, tt.key)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if dec != tt.plaintext {
				t.Errorf("round trip = %q, want %q", dec, tt.plaintext)
			}
		})
	}
}

func TestEncrypt_WrongKeyDoesNotRoundTrip(t *testing.T) {
	enc, err := Encrypt("secret", []byte("key1"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	dec, err := Decrypt(enc, []byte("key2"))
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if dec == "secret" {
		t.Error("decrypting with the wrong key should not recover the plaintext")
	}
}

func TestMachineKey_NeverEmpty(t *testing.T) {
	key, err := MachineKey()
	if err != nil {
		t.Fatalf("MachineKey() error = %v", err)
	}
	if len(key) == 0 {
		t.Error("MachineKey() returned an empty key")
	}
}
