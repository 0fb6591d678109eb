package authcore

import (
	"context"

	"github.com/authcore-io/authcore/repository"
)

type clientIPKey struct{}
type userAgentKey struct{}
type asnKey struct{}

// WithTenant scopes ctx to a tenant. Every engine operation except the
// background cleanup requires a tenant scope and fails without one.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return repository.WithTenant(ctx, tenantID)
}

// WithClientIP records the caller's network address for rate limiting,
// stuffing detection and audit.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// WithUserAgent records the caller's user agent for session records and audit.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// WithASN records the caller's autonomous system number for the stuffing
// detector's coarse source signal.
func WithASN(ctx context.Context, asn string) context.Context {
	return context.WithValue(ctx, asnKey{}, asn)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func userAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

func clientASN(ctx context.Context) string {
	asn, _ := ctx.Value(asnKey{}).(string)
	return asn
}
