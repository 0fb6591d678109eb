package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	sessionTokenSize = 32
	minCodeLength    = 4
	maxCodeLength    = 10
)

// NewSessionToken returns a fresh 256-bit opaque bearer token encoded as
// unpadded base64url. The raw value is returned to the caller exactly once;
// storage only ever sees the salted hash.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashSessionToken computes SHA-256(token || salt). The salt is a
// process-wide secret so that a database dump alone cannot be used to
// forge valid lookups.
func HashSessionToken(token string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(token))
	h.Write(salt)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ConstantTimeEquals compares two strings without leaking the position of
// the first differing byte.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewNumericCode generates a random code of the given length over digits
// 0-9. Bytes from the CSPRNG are rejection-sampled so every digit is
// uniform (250..255 would bias toward 0-5 under plain modulo).
func NewNumericCode(length int) (string, error) {
	if length < minCodeLength || length > maxCodeLength {
		return "", errors.New("invalid code length")
	}

	var b strings.Builder
	b.Grow(length)

	buf := make([]byte, 1)
	for b.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if buf[0] >= 250 {
			continue
		}
		b.WriteByte('0' + buf[0]%10)
	}

	return b.String(), nil
}
