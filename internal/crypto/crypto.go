// Package crypto implements the credential vault's cryptographic primitives:
// AES-256-GCM at-rest encryption with a fresh 96-bit IV per call, and HKDF
// derivation of per-vendor sub-keys from a single configured root key
// (spec.md §4.3; adapted from the teacher's internal/crypto.go, trimmed of
// the Neo-specific ECDSA/VRF/base58 helpers that have no home in this
// domain).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen   = 32 // AES-256
	nonceLen = 12 // 96-bit IV required by GCM
)

// Encrypt encrypts plaintext with AES-256-GCM under key (must be 32 bytes),
// returning base64(iv‖ciphertext‖tag): the 16-byte GCM tag follows the
// ciphertext, in the order Seal emits it; it is not placed before the
// ciphertext. A fresh random IV is generated on every call.
func Encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("crypto: new gcm: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: read nonce: %w", err)
	}
	// Seal appends the GCM auth tag after the ciphertext; prepending the
	// nonce yields the iv‖ciphertext‖tag layout.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It fails closed: any ciphertext-integrity
// failure (the GCM tag not verifying) is returned as an error and never
// yields partial plaintext.
func Decrypt(key []byte, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	if len(raw) < nonceLen {
		return nil, fmt.Errorf("crypto: ciphertext too short")
	}
	nonce, sealed := raw[:nonceLen], raw[nonceLen:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt: %w", err)
	}
	return plaintext, nil
}

// DeriveVendorKey derives a 32-byte per-vendor sub-key from the root key via
// HKDF-SHA256, so one configured root key can be scoped per vendor without
// the operator storing N keys.
func DeriveVendorKey(rootKey []byte, vendor string) ([]byte, error) {
	reader := hkdf.New(sha256.New, rootKey, nil, []byte("accounting-gateway/vendor/"+vendor))
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("crypto: derive vendor key: %w", err)
	}
	return key, nil
}

// KeyLen is the required root/vendor key length in bytes (32 = 64 hex
// chars, per spec.md §6's environment contract).
const KeyLen = keyLen
