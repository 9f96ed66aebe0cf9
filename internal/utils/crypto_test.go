// internal/utils/crypto_test.go
package utils

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt("sk-proveedor-secreto", "frase de paso corta")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if sealed == "sk-proveedor-secreto" {
		t.Fatal("ciphertext equals plaintext")
	}

	plain, err := Decrypt(sealed, "frase de paso corta")
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "sk-proveedor-secreto" {
		t.Errorf("plaintext = %q", plain)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	sealed, err := Encrypt("secreto", "clave correcta")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := Decrypt(sealed, "clave incorrecta"); err == nil {
		t.Fatal("wrong passphrase must fail the tag check")
	}
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	if _, err := Decrypt("AAAA", "clave"); err == nil {
		t.Fatal("truncated ciphertext must be rejected")
	}
}

func TestEncryptLongPassphraseTruncates(t *testing.T) {
	long := strings.Repeat("a", 32) + "cola ignorada"

	sealed, err := Encrypt("secreto", long)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	// only the first 32 bytes of the passphrase take part
	plain, err := Decrypt(sealed, strings.Repeat("a", 32))
	if err != nil {
		t.Fatalf("decrypt with truncated passphrase failed: %v", err)
	}
	if plain != "secreto" {
		t.Errorf("plaintext = %q", plain)
	}
}
