package vaultcodec

import (
	"bytes"
	"testing"

	"github.com/nevrhq/nevr/internal/vaulterr"
)

func mustKey(t *testing.T) string {
	t.Helper()
	k, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k
}

func TestRoundTrip(t *testing.T) {
	key := mustKey(t)
	plaintext := []byte("A=1\nB=\"hello world\"\n")

	vault, err := Encrypt(plaintext, key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(vault, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestWrongKeyFails(t *testing.T) {
	k1 := mustKey(t)
	k2 := mustKey(t)
	plaintext := []byte("A=1\n")

	vault, err := Encrypt(plaintext, k1, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(vault, k2)
	if !vaulterr.Is(err, vaulterr.DecryptFailed) && !vaulterr.Is(err, vaulterr.IntegrityFailed) {
		t.Fatalf("Decrypt with wrong key = %v, want DecryptFailed or IntegrityFailed", err)
	}
}

func TestTamperHMACFails(t *testing.T) {
	key := mustKey(t)
	vault, err := Encrypt([]byte("A=1\n"), key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	vault.HMAC[0] ^= 0xFF

	_, err = Decrypt(vault, key)
	if !vaulterr.Is(err, vaulterr.IntegrityFailed) {
		t.Fatalf("Decrypt with flipped hmac = %v, want IntegrityFailed", err)
	}
}

func TestTamperCiphertextFails(t *testing.T) {
	key := mustKey(t)
	vault, err := Encrypt([]byte("A=1\n"), key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	vault.Encrypted[0] ^= 0xFF

	_, err = Decrypt(vault, key)
	if !vaulterr.Is(err, vaulterr.IntegrityFailed) && !vaulterr.Is(err, vaulterr.DecryptFailed) {
		t.Fatalf("Decrypt with flipped ciphertext = %v, want IntegrityFailed or DecryptFailed", err)
	}
}

func TestMetadataPreservation(t *testing.T) {
	key := mustKey(t)
	first, err := Encrypt([]byte("A=1\n"), key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	first.Metadata.CreatedBy = "alice"

	second, err := Encrypt([]byte("A=1\nB=2\n"), key, &first.Metadata)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if !second.Metadata.CreatedAt.Equal(first.Metadata.CreatedAt) {
		t.Fatalf("CreatedAt changed: %v vs %v", second.Metadata.CreatedAt, first.Metadata.CreatedAt)
	}
	if second.Metadata.CreatedBy != "alice" {
		t.Fatalf("CreatedBy = %q, want alice", second.Metadata.CreatedBy)
	}
	if second.Metadata.Variables != 2 {
		t.Fatalf("Variables = %d, want 2", second.Metadata.Variables)
	}
}

func TestValidateKeyFormat(t *testing.T) {
	key := mustKey(t)
	if !ValidateKeyFormat(key) {
		t.Fatalf("generated key failed validation: %s", key)
	}
	if ValidateKeyFormat("not-a-key") {
		t.Fatal("expected invalid key format to fail")
	}
	if ValidateKeyFormat("nevr_") {
		t.Fatal("expected empty body to fail (too short)")
	}
}

func TestVersionMismatch(t *testing.T) {
	key := mustKey(t)
	vault, err := Encrypt([]byte("A=1\n"), key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	vault.Version = 99

	_, err = Decrypt(vault, key)
	if !vaulterr.Is(err, vaulterr.VersionMismatch) {
		t.Fatalf("Decrypt with bad version = %v, want VersionMismatch", err)
	}
}

// TestScenarioS2TamperDetection mirrors the literal scenario from the
// spec: flipping the first byte of the ciphertext must be caught by the
// HMAC check before the AEAD primitive runs.
func TestScenarioS2TamperDetection(t *testing.T) {
	key := mustKey(t)
	vault, err := Encrypt([]byte("A=1\nB=\"hello world\"\n"), key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	vault.Encrypted[0] ^= 0xFF

	_, err = Decrypt(vault, key)
	if !vaulterr.Is(err, vaulterr.IntegrityFailed) {
		t.Fatalf("expected IntegrityFailed, got %v", err)
	}
}
