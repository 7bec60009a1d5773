package domain

import "context"

// TenantScope identifies the tenant/project namespace a request operates in.
// Both ids are opaque; they are only ever hashed or embedded into bucket names.
type TenantScope struct {
	TenantID  string `json:"tenantId"`
	ProjectID string `json:"projectId"`
}

type tenantContextKey struct{}

// WithTenant returns a context carrying the pre-authenticated caller scope.
func WithTenant(ctx context.Context, scope TenantScope) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, scope)
}

// TenantFromContext returns the caller scope placed on ctx by WithTenant.
func TenantFromContext(ctx context.Context) (TenantScope, bool) {
	scope, ok := ctx.Value(tenantContextKey{}).(TenantScope)
	return scope, ok
}
