// Package crypto provides password-based encryption for API secrets kept on
// disk, so keys never have to live in plaintext config files.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-secret JSON schema version.
	currentVersion = 1
)

// encryptedSecretJSON is the on-disk format for an encrypted secret.
type encryptedSecretJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// SecretConfig carries the information LoadSecret needs to resolve a secret.
// Populate the fields from environment variables or a config file.
type SecretConfig struct {
	// RawSecret, when non-empty, is returned directly without touching disk.
	RawSecret string

	// EncryptedPath is the path to a JSON file produced by EncryptSecret.
	EncryptedPath string

	// Password decrypts the file at EncryptedPath.
	Password string
}

// EncryptSecret encrypts a secret with a password using PBKDF2-HMAC-SHA256
// key derivation and AES-256-GCM authenticated encryption. It returns the
// JSON blob suitable for writing to disk.
func EncryptSecret(secret, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if secret == "" {
		return nil, errors.New("crypto: secret must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm mode: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(secret), nil)

	blob := encryptedSecretJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal encrypted secret: %w", err)
	}
	return data, nil
}

// DecryptSecret reverses EncryptSecret given the same password.
func DecryptSecret(data []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	var blob encryptedSecretJSON
	if err := json.Unmarshal(data, &blob); err != nil {
		return "", fmt.Errorf("crypto: parse encrypted secret: %w", err)
	}
	if blob.Version != currentVersion {
		return "", fmt.Errorf("crypto: unsupported secret version %d", blob.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(blob.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decode ciphertext: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("crypto: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("crypto: gcm mode: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: invalid nonce length %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("crypto: decryption failed (wrong password or corrupted file)")
	}
	return string(plaintext), nil
}

// LoadSecret resolves a secret from config. A raw secret wins; otherwise the
// encrypted file is read and decrypted.
func LoadSecret(cfg SecretConfig) (string, error) {
	if s := strings.TrimSpace(cfg.RawSecret); s != "" {
		return s, nil
	}
	if cfg.EncryptedPath == "" {
		return "", errors.New("crypto: no secret source configured")
	}

	data, err := os.ReadFile(cfg.EncryptedPath)
	if err != nil {
		return "", fmt.Errorf("crypto: read %s: %w", cfg.EncryptedPath, err)
	}
	return DecryptSecret(data, cfg.Password)
}
