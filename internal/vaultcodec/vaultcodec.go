// Package vaultcodec implements authenticated encryption of an env block
// into a self-describing vault file, and decryption back. The approach —
// derive a key, AES-256-GCM the plaintext, persist the pieces as a JSON
// record — is adapted from the secrets service's encrypt/decrypt pair,
// extended with a PBKDF2 key-derivation step and an HMAC integrity layer
// so corrupted ciphertext (e.g. a bad git merge) fails fast with a
// distinct error kind before the AEAD primitive ever runs.
package vaultcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nevrhq/nevr/internal/envfile"
	"github.com/nevrhq/nevr/internal/vaulterr"
)

// Version is the only vault file format this build understands.
const Version = 1

const (
	saltSize       = 32
	ivSize         = 16
	keySize        = 32 // AES-256
	pbkdf2Rounds   = 600_000
	minKeyBodySize = 32
)

// keyEnvelopePattern matches the external key format: nevr_<base64url>.
var keyEnvelopePattern = regexp.MustCompile(`^nevr_[A-Za-z0-9_-]+$`)

// Metadata is the plaintext, non-secret portion of a vault file.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Variables int       `json:"variables"`
}

// File is the on-disk representation of a vault. All byte fields are
// hex-encoded in JSON via the json.Marshaler/Unmarshaler implementations
// on hexBytes, matching the external-interface contract.
type File struct {
	Version   int       `json:"version"`
	Salt      hexBytes  `json:"salt"`
	IV        hexBytes  `json:"iv"`
	AuthTag   hexBytes  `json:"authTag"`
	Encrypted hexBytes  `json:"encrypted"`
	HMAC      hexBytes  `json:"hmac"`
	Metadata  Metadata  `json:"metadata"`
}

// hexBytes marshals as lowercase hex instead of base64, matching the
// external-interface contract that every byte field on disk is hex.
type hexBytes []byte

func (b hexBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(b) + `"`), nil
}

func (b *hexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		*b = nil
		return nil
	}
	s := string(data[1 : len(data)-1])
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// GenerateKey produces a new nevr_<base64url> key backed by 32
// cryptographically random bytes.
func GenerateKey() (string, error) {
	raw := make([]byte, minKeyBodySize)
	if _, err := rand.Read(raw); err != nil {
		return "", vaulterr.Wrap(vaulterr.InvalidKey, "failed to generate key", err)
	}
	return "nevr_" + base64.RawURLEncoding.EncodeToString(raw), nil
}

// ValidateKeyFormat reports whether s matches the nevr_<base64url>
// envelope and decodes to at least 32 bytes.
func ValidateKeyFormat(s string) bool {
	if !keyEnvelopePattern.MatchString(s) {
		return false
	}
	body := s[len("nevr_"):]
	decoded, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return false
	}
	return len(decoded) >= minKeyBodySize
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Rounds, keySize, sha512.New)
}

// Encrypt seals plaintext under passphrase into a new File. When prior is
// non-nil, its createdAt and createdBy are carried forward per the
// metadata preservation policy; updatedAt is always refreshed.
func Encrypt(plaintext []byte, passphrase string, prior *Metadata) (*File, error) {
	if !ValidateKeyFormat(passphrase) {
		return nil, vaulterr.New(vaulterr.InvalidKey, "passphrase does not match the nevr_<base64url> envelope")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, vaulterr.Wrap(vaulterr.InvalidKey, "failed to generate salt", err)
	}

	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.DecryptFailed, "failed to initialize cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.DecryptFailed, "failed to initialize AEAD", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, vaulterr.Wrap(vaulterr.DecryptFailed, "failed to generate iv", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext := sealed[:tagStart]
	authTag := sealed[tagStart:]

	mac := hmac.New(sha256.New, key)
	mac.Write(ciphertext)
	digest := mac.Sum(nil)

	now := time.Now().UTC()
	meta := Metadata{
		CreatedAt: now,
		UpdatedAt: now,
		Variables: envfile.CountPairs(string(plaintext)),
	}
	if prior != nil {
		meta.CreatedAt = prior.CreatedAt
		meta.CreatedBy = prior.CreatedBy
	}

	return &File{
		Version:   Version,
		Salt:      salt,
		IV:        iv,
		AuthTag:   authTag,
		Encrypted: ciphertext,
		HMAC:      digest,
		Metadata:  meta,
	}, nil
}

// Decrypt verifies and opens a File, returning the plaintext. Checks run
// in the order mandated by the format: version, then HMAC integrity,
// then AEAD.
func Decrypt(vault *File, passphrase string) ([]byte, error) {
	if vault.Version != Version {
		return nil, vaulterr.New(vaulterr.VersionMismatch,
			fmt.Sprintf("vault version %d, expected %d", vault.Version, Version))
	}
	if !ValidateKeyFormat(passphrase) {
		return nil, vaulterr.New(vaulterr.InvalidKey, "passphrase does not match the nevr_<base64url> envelope")
	}

	key := deriveKey(passphrase, vault.Salt)

	mac := hmac.New(sha256.New, key)
	mac.Write(vault.Encrypted)
	expected := mac.Sum(nil)
	if subtle.ConstantTimeCompare(expected, vault.HMAC) != 1 {
		return nil, vaulterr.New(vaulterr.IntegrityFailed, "hmac integrity check failed")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.DecryptFailed, "failed to initialize cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.DecryptFailed, "failed to initialize AEAD", err)
	}

	sealed := append(append([]byte{}, vault.Encrypted...), vault.AuthTag...)
	plaintext, err := gcm.Open(nil, vault.IV, sealed, nil)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.DecryptFailed, "aead authentication failed", err)
	}

	return plaintext, nil
}
