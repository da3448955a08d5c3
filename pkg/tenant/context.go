package tenant

import (
	"context"
	"errors"
	"strings"
)

// Header names used on every tenant-scoped request. The core backend
// expects exactly these; changing them breaks the API contract.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderSchemaName = "X-Schema-Name"
	HeaderBusinessID = "X-Business-ID"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	tenantIDKey   contextKey = "tenant_id"
	schemaNameKey contextKey = "schema_name"
	businessIDKey contextKey = "business_id"
)

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
)

// Context is the resolved tenant identity attached to a request. It is
// derived, never authoritative: callers recompute it through a Resolver
// rather than caching it across requests.
type Context struct {
	TenantID   string `json:"tenant_id"`
	SchemaName string `json:"schema_name"`
	BusinessID string `json:"business_id,omitempty"`
}

// IsZero reports whether no tenant could be resolved.
func (c Context) IsZero() bool {
	return c.TenantID == "" && c.SchemaName == "" && c.BusinessID == ""
}

// DeriveSchema returns the canonical schema name for a tenant ID:
// "tenant_" plus the ID with dashes replaced by underscores.
func DeriveSchema(tenantID string) string {
	if tenantID == "" {
		return ""
	}
	return "tenant_" + strings.ReplaceAll(tenantID, "-", "_")
}

// WithContext adds the resolved tenant to the request context.
// This is called by middleware after extracting tenant from headers or JWT.
func WithContext(ctx context.Context, tc Context) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, tc.TenantID)
	ctx = context.WithValue(ctx, schemaNameKey, tc.SchemaName)
	ctx = context.WithValue(ctx, businessIDKey, tc.BusinessID)
	return ctx
}

// WithTenantID adds only the tenant ID to the context. The schema name is
// derived on read if it was never set explicitly.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// FromContext extracts the full tenant context. A missing schema name is
// derived from the tenant ID.
func FromContext(ctx context.Context) Context {
	tc := Context{}
	if id, ok := ctx.Value(tenantIDKey).(string); ok {
		tc.TenantID = id
	}
	if schema, ok := ctx.Value(schemaNameKey).(string); ok {
		tc.SchemaName = schema
	}
	if biz, ok := ctx.Value(businessIDKey).(string); ok {
		tc.BusinessID = biz
	}
	if tc.SchemaName == "" && tc.TenantID != "" {
		tc.SchemaName = DeriveSchema(tc.TenantID)
	}
	return tc
}

// TenantID extracts the tenant ID from context.
// Returns ErrNoTenantInContext if it is not present.
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// SchemaName extracts the tenant schema name from context, deriving it
// from the tenant ID when absent. Repositories use this to set the
// search_path for tenant isolation.
func SchemaName(ctx context.Context) (string, error) {
	if schema, ok := ctx.Value(schemaNameKey).(string); ok && schema != "" {
		return schema, nil
	}
	if id, ok := ctx.Value(tenantIDKey).(string); ok && id != "" {
		return DeriveSchema(id), nil
	}
	return "", ErrNoTenantInContext
}

// BusinessID extracts the business ID from context, if any.
func BusinessID(ctx context.Context) string {
	if biz, ok := ctx.Value(businessIDKey).(string); ok {
		return biz
	}
	return ""
}

// MustTenantID extracts the tenant ID and panics if not found.
// Use only where a missing tenant is a programming error.
func MustTenantID(ctx context.Context) string {
	id, err := TenantID(ctx)
	if err != nil {
		panic("tenant ID not found in context")
	}
	return id
}
