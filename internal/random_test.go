package internal

import (
	"strings"
	"testing"
)

func TestNewSessionTokenUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := NewSessionToken()
		if err != nil {
			t.Fatalf("NewSessionToken: %v", err)
		}
		if len(token) != 43 { // 32 bytes, base64url without padding
			t.Fatalf("unexpected token length %d", len(token))
		}
		if _, ok := seen[token]; ok {
			t.Fatalf("duplicate token generated")
		}
		seen[token] = struct{}{}
	}
}

func TestHashSessionTokenSaltDependent(t *testing.T) {
	token, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}

	h1 := HashSessionToken(token, []byte("salt-a"))
	h2 := HashSessionToken(token, []byte("salt-b"))

	if h1 == h2 {
		t.Fatalf("hash must depend on salt")
	}
	if h1 == token || h2 == token {
		t.Fatalf("hash must never equal the plaintext token")
	}
	if HashSessionToken(token, []byte("salt-a")) != h1 {
		t.Fatalf("hash must be deterministic for same salt")
	}
}

func TestNewNumericCode(t *testing.T) {
	for _, length := range []int{4, 6, 8, 10} {
		code, err := NewNumericCode(length)
		if err != nil {
			t.Fatalf("NewNumericCode(%d): %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("expected %d digits, got %q", length, code)
		}
		for _, c := range code {
			if !strings.ContainsRune("0123456789", c) {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}

	if _, err := NewNumericCode(3); err == nil {
		t.Fatalf("expected error for too-short code")
	}
	if _, err := NewNumericCode(11); err == nil {
		t.Fatalf("expected error for too-long code")
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !ConstantTimeEquals("123456", "123456") {
		t.Fatalf("equal strings must compare true")
	}
	if ConstantTimeEquals("123456", "123457") {
		t.Fatalf("differing strings must compare false")
	}
	if ConstantTimeEquals("123456", "12345") {
		t.Fatalf("differing lengths must compare false")
	}
}
