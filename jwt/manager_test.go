package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		Lifetime: time.Hour,
		Issuer:   "authcore-test",
	}
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	mgr, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.Create("user-1", "alice@example.org", "tenant-1")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	claims, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "alice@example.org" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.TenantID != "tenant-1" {
		t.Fatalf("tenant = %q", claims.TenantID)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Fatalf("unexpected expiry: %v", claims.ExpiresAt)
	}
}

func TestCreateRequiresTenant(t *testing.T) {
	mgr, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	if _, err := mgr.Create("user-1", "a@b.c", ""); err == nil {
		t.Fatal("expected error for missing tenant id")
	}
	if _, err := mgr.Create("", "a@b.c", "tenant-1"); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestParseExpiredDistinctFromMalformed(t *testing.T) {
	cfg := testConfig()
	cfg.Lifetime = time.Millisecond
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.Create("user-1", "a@b.c", "tenant-1")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = mgr.Parse(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	_, err = mgr.Parse("not.a.token")
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	mgr, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	other := testConfig()
	other.Secret = []byte("ffffffffffffffffffffffffffffffff")
	otherMgr, err := NewManager(other)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := otherMgr.Create("user-1", "a@b.c", "tenant-1")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := mgr.Parse(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for foreign signature, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	mgr, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.Create("user-1", "a@b.c", "tenant-1")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	if _, err := mgr.Parse(tampered); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for tampered payload, got %v", err)
	}
}

func TestShortSecretRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = []byte("too-short")
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected short secret to be rejected at load time")
	}
}
