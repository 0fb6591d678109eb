package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

var (
	// ErrTokenExpired is returned when the token signature is valid but the
	// token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed is returned for tokens that cannot be parsed, carry
	// an unexpected algorithm, or fail signature verification.
	ErrTokenMalformed = errors.New("token malformed or untrusted")
)

// Config holds token issuance parameters. Secret must be at least 32 bytes;
// shorter secrets are rejected at construction time, not at first use.
type Config struct {
	Secret   []byte
	Lifetime time.Duration
	Issuer   string
	Leeway   time.Duration
}

// Manager signs and verifies access tokens. Immutable after construction and
// safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the access-token claim set. TenantID is required for every newly
// issued token; tokens without one are only accepted during verification for
// the benefit of sessions issued before tenant scoping was mandatory.
type Claims struct {
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.Lifetime <= 0 {
		return nil, errors.New("jwt lifetime must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Create issues a signed token for the given subject. tenantID must be
// non-empty.
func (m *Manager) Create(userID, email, tenantID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id required")
	}
	if tenantID == "" {
		return "", errors.New("tenant id required")
	}

	now := time.Now()
	claims := Claims{
		Email:    email,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Lifetime)),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies tokenStr and returns its claims. Expiry failures surface as
// [ErrTokenExpired]; everything else collapses to [ErrTokenMalformed].
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
