package app

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestCredentialCipher_RoundTrip(t *testing.T) {
	cipher := testCipher(t)

	sealed, err := cipher.Encrypt("access-token-secret")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if strings.Contains(sealed, "access-token-secret") {
		t.Fatal("ciphertext contains the plaintext")
	}

	opened, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if opened != "access-token-secret" {
		t.Fatalf("round trip produced %q", opened)
	}
}

func TestCredentialCipher_NoncePerEncryption(t *testing.T) {
	cipher := testCipher(t)

	a, err := cipher.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	b, err := cipher.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestCredentialCipher_TamperDetected(t *testing.T) {
	cipher := testCipher(t)

	sealed, err := cipher.Encrypt("access-token-secret")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		t.Fatalf("ciphertext is not valid base64: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := cipher.Decrypt(tampered); err == nil {
		t.Fatal("tampered ciphertext decrypted without error")
	}
}

func TestCredentialCipher_RejectsBadInput(t *testing.T) {
	cipher := testCipher(t)

	if _, err := cipher.Decrypt("not base64!!"); err == nil {
		t.Fatal("expected error for non-base64 input")
	}
	if _, err := cipher.Decrypt(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected error for ciphertext shorter than the nonce")
	}
}

func TestNewCredentialCipher_KeyValidation(t *testing.T) {
	if _, err := NewCredentialCipher("not base64!!"); err == nil {
		t.Fatal("expected error for non-base64 key")
	}
	shortKey := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := NewCredentialCipher(shortKey); err == nil {
		t.Fatal("expected error for wrong-length key")
	}
}
