package crypto

import (
	"bytes"
	"testing"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901") // 32 bytes is exactly what AES-256 needs
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	plaintext := []byte(`{"accessToken":"secret-value"}`)

	ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext == "" {
		t.Fatal("Encrypt() returned empty string")
	}

	got, err := Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestEncryptProducesDistinctCiphertextEachCall(t *testing.T) {
	key := testKey()
	plaintext := []byte("same plaintext both times")

	a, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if a == b {
		t.Error("two Encrypt() calls on the same plaintext produced identical ciphertext; IV is not varying")
	}
}

func TestDecryptFailsClosedOnTamperedCiphertext(t *testing.T) {
	key := testKey()
	ciphertext, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := Decrypt(key, string(tampered)); err == nil {
		t.Error("Decrypt() succeeded on tampered ciphertext, want authentication failure")
	}
}

func TestDecryptFailsClosedOnWrongKey(t *testing.T) {
	ciphertext, err := Encrypt(testKey(), []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	wrongKey := []byte("98765432109876543210987654321098")
	if _, err := Decrypt(wrongKey, ciphertext); err == nil {
		t.Error("Decrypt() succeeded with the wrong key, want failure")
	}
}

func TestDeriveVendorKeyIsDeterministicAndVendorScoped(t *testing.T) {
	root := testKey()

	a1, err := DeriveVendorKey(root, "fortnox")
	if err != nil {
		t.Fatalf("DeriveVendorKey() error = %v", err)
	}
	a2, err := DeriveVendorKey(root, "fortnox")
	if err != nil {
		t.Fatalf("DeriveVendorKey() error = %v", err)
	}
	if !bytes.Equal(a1, a2) {
		t.Error("DeriveVendorKey() is not deterministic for the same root key and vendor")
	}
	if len(a1) != KeyLen {
		t.Errorf("DeriveVendorKey() length = %d, want %d", len(a1), KeyLen)
	}

	b, err := DeriveVendorKey(root, "visma")
	if err != nil {
		t.Fatalf("DeriveVendorKey() error = %v", err)
	}
	if bytes.Equal(a1, b) {
		t.Error("DeriveVendorKey() produced the same key for two different vendors")
	}
}
