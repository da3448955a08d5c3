package tenant

import (
	"net/http"

	"github.com/crewflow/crewflow-platform/pkg/logger"
)

// Resolver resolves the tenant context from layered sources and produces
// the canonical request headers. Priority order, first non-empty wins:
//
//  1. explicit per-call override
//  2. in-memory store
//  3. persistent file store
//  4. cookie
//
// Resolution never fails: a broken source is logged and the next one is
// consulted; the final fallback is the zero Context, in which case the
// caller proceeds without tenant headers and the backend rejects if it
// requires one.
type Resolver struct {
	stores []Store
	log    *logger.Logger
}

// NewResolver creates a resolver over the given stores, ordered by
// priority (highest first).
func NewResolver(log *logger.Logger, stores ...Store) *Resolver {
	return &Resolver{
		stores: stores,
		log:    log.WithComponent("tenant-resolver"),
	}
}

// ResolveOption tweaks a single resolution.
type ResolveOption func(*resolveConfig)

type resolveConfig struct {
	override string
	request  *http.Request
}

// WithOverride forces the tenant ID for this call only. Highest priority.
func WithOverride(tenantID string) ResolveOption {
	return func(c *resolveConfig) { c.override = tenantID }
}

// WithRequest lets resolution fall back to the tenantId cookie of an
// inbound request when no store has a value.
func WithRequest(r *http.Request) ResolveOption {
	return func(c *resolveConfig) { c.request = r }
}

// Resolve returns the current tenant context. The schema name is always
// derived when absent, so a caller holding only a tenant ID still gets a
// complete context.
func (r *Resolver) Resolve(opts ...ResolveOption) Context {
	cfg := resolveConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.override != "" {
		return Context{
			TenantID:   cfg.override,
			SchemaName: DeriveSchema(cfg.override),
			BusinessID: r.lookup(KeyBusinessID),
		}
	}

	tenantID := r.lookup(KeyTenantID)
	if tenantID == "" && cfg.request != nil {
		if c, err := cfg.request.Cookie(KeyTenantID); err == nil {
			tenantID = c.Value
		}
	}
	if tenantID == "" {
		return Context{}
	}

	return Context{
		TenantID:   tenantID,
		SchemaName: DeriveSchema(tenantID),
		BusinessID: r.lookup(KeyBusinessID),
	}
}

// lookup walks the stores in priority order and returns the first
// non-empty value. Store failures are logged, never propagated.
func (r *Resolver) lookup(key string) string {
	for _, store := range r.stores {
		value, err := store.Get(key)
		if err != nil {
			r.log.Warn().
				Err(err).
				Str("store", store.Name()).
				Str("key", key).
				Msg("tenant store read failed, falling back")
			continue
		}
		if value != "" {
			return value
		}
	}
	return ""
}

// ApplyHeaders resolves the tenant and sets the canonical headers on h.
// Empty fields are omitted rather than sent blank.
func (r *Resolver) ApplyHeaders(h http.Header, opts ...ResolveOption) Context {
	tc := r.Resolve(opts...)
	if tc.TenantID != "" {
		h.Set(HeaderTenantID, tc.TenantID)
	}
	if tc.SchemaName != "" {
		h.Set(HeaderSchemaName, tc.SchemaName)
	}
	if tc.BusinessID != "" {
		h.Set(HeaderBusinessID, tc.BusinessID)
	}
	return tc
}

// SetTenantID fans the new tenant ID out to every store so subsequent
// resolves are consistent regardless of which source answers first. The
// write is all-or-nothing from the caller's point of view: the first
// store failure aborts and reports, leaving the error to the caller
// rather than silently diverging sources.
func (r *Resolver) SetTenantID(tenantID string) error {
	for _, store := range r.stores {
		if err := store.Set(KeyTenantID, tenantID); err != nil {
			r.log.Error().
				Err(err).
				Str("store", store.Name()).
				Msg("failed to persist tenant ID")
			return err
		}
	}
	r.log.Debug().Str("tenant_id", tenantID).Msg("tenant ID updated in all stores")
	return nil
}

// SetBusinessID fans the business ID out to every store.
func (r *Resolver) SetBusinessID(businessID string) error {
	for _, store := range r.stores {
		if err := store.Set(KeyBusinessID, businessID); err != nil {
			r.log.Error().
				Err(err).
				Str("store", store.Name()).
				Msg("failed to persist business ID")
			return err
		}
	}
	return nil
}
