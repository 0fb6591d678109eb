package repository

import "context"

type tenantScopeKey struct{}

// WithTenant returns a context carrying the tenant scope applied to every
// repository call made with it. There is no ambient default tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantScopeKey{}, tenantID)
}

// TenantFromContext extracts the tenant scope, reporting whether one is set.
func TenantFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, _ := ctx.Value(tenantScopeKey{}).(string)
	return tenantID, tenantID != ""
}

// TenantID extracts the tenant scope or fails with [ErrTenant]. Repository
// implementations call this before any statement executes.
func TenantID(ctx context.Context) (string, error) {
	tenantID, ok := TenantFromContext(ctx)
	if !ok {
		return "", ErrTenant
	}
	return tenantID, nil
}
