// Package gateway is the edge of the platform: it terminates auth,
// stamps tenant headers from JWT claims, and reverse-proxies to the
// payroll service and the core backend.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewflow/crewflow-platform/pkg/config"
	"github.com/crewflow/crewflow-platform/pkg/errors"
	pkghttp "github.com/crewflow/crewflow-platform/pkg/httputil"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

// EventPublisher is the subset of the messaging publisher the gateway
// needs for tenant switch notifications.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Proxy reverse-proxies requests to the backing services
type Proxy struct {
	cfg          *config.Config
	log          *logger.Logger
	publisher    EventPublisher
	payrollProxy *httputil.ReverseProxy
	coreProxy    *httputil.ReverseProxy
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithEventPublisher enables tenant switch events. Without it the
// gateway serves traffic normally and switches go unannounced.
func WithEventPublisher(pub EventPublisher) ProxyOption {
	return func(p *Proxy) { p.publisher = pub }
}

// NewProxy creates a proxy over the configured service URLs
func NewProxy(cfg *config.Config, log *logger.Logger, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		cfg: cfg,
		log: log.WithComponent("gateway-proxy"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.payrollProxy = p.createProxy(cfg.Services.PayrollServiceURL)
	p.coreProxy = p.createProxy(cfg.Services.CoreAPIURL)

	return p
}

func (p *Proxy) createProxy(targetURL string) *httputil.ReverseProxy {
	target, _ := url.Parse(targetURL)

	proxy := httputil.NewSingleHostReverseProxy(target)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		pkghttp.Error(w, errors.Internal("service unavailable"))
	}

	return proxy
}

// ForwardToPayroll forwards requests to the payroll service
func (p *Proxy) ForwardToPayroll(w http.ResponseWriter, r *http.Request) {
	p.payrollProxy.ServeHTTP(w, r)
}

// ForwardToCore forwards requests to the core backend API
func (p *Proxy) ForwardToCore(w http.ResponseWriter, r *http.Request) {
	p.coreProxy.ServeHTTP(w, r)
}

// AuthMiddleware validates the bearer token and turns its claims into
// the canonical user and tenant headers for downstream services. The
// token is the single source of tenant identity at the edge; services
// behind the gateway trust the headers, never the raw token.
func (p *Proxy) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkghttp.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			pkghttp.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(p.cfg.JWT.Secret), nil
		})

		if err != nil {
			p.log.Debug().Err(err).Msg("token validation failed")
			if errors.Is(err, jwt.ErrTokenExpired) {
				pkghttp.Error(w, errors.TokenExpired())
			} else {
				pkghttp.Error(w, errors.TokenInvalid())
			}
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			pkghttp.Error(w, errors.TokenInvalid())
			return
		}

		userID, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)

		tenantID, _ := claims["tenant_id"].(string)
		businessID, _ := claims["business_id"].(string)
		schemaName, _ := claims["schema_name"].(string)
		if schemaName == "" {
			schemaName = tenant.DeriveSchema(tenantID)
		}

		// A tenant-scoped path needs tenant identity in the token;
		// without it every downstream request would be rejected anyway.
		if tenantID == "" && !pkghttp.IsTenantBypassPath(r.URL.Path) {
			pkghttp.Error(w, errors.Forbidden("token carries no tenant context"))
			return
		}

		ctx := pkghttp.WithUserContext(r.Context(), userID, email, role)
		if tenantID != "" {
			ctx = tenant.WithContext(ctx, tenant.Context{
				TenantID:   tenantID,
				SchemaName: schemaName,
				BusinessID: businessID,
			})
		}

		r.Header.Set("X-User-ID", userID)
		r.Header.Set("X-User-Email", email)
		r.Header.Set("X-User-Role", role)

		if tenantID != "" {
			r.Header.Set(tenant.HeaderTenantID, tenantID)
			r.Header.Set(tenant.HeaderSchemaName, schemaName)
			if businessID != "" {
				r.Header.Set(tenant.HeaderBusinessID, businessID)
			}
		}

		if perms, ok := claims["permissions"].([]interface{}); ok {
			permStrings := make([]string, 0, len(perms))
			for _, raw := range perms {
				if s, ok := raw.(string); ok && s != "" {
					permStrings = append(permStrings, s)
				}
			}
			r.Header.Set("X-User-Permissions", strings.Join(permStrings, ","))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantSwitchMiddleware honors a per-request tenant override header
// from the UI's business switcher. The override only narrows within the
// businesses the token already grants; the core backend re-checks
// membership, so the gateway just forwards the claim.
func (p *Proxy) TenantSwitchMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if override := r.Header.Get("X-Switch-Tenant"); override != "" {
			schema := tenant.DeriveSchema(override)
			r.Header.Set(tenant.HeaderTenantID, override)
			r.Header.Set(tenant.HeaderSchemaName, schema)
			r = r.WithContext(tenant.WithTenantID(r.Context(), override))
			p.log.Debug().Str("tenant_id", override).Msg("tenant override applied")

			if p.publisher != nil {
				err := p.publisher.Publish(r.Context(), messaging.EventTenantSwitched,
					messaging.TenantSwitchedEvent{
						TenantID:   override,
						SchemaName: schema,
						SwitchedBy: r.Header.Get("X-User-ID"),
					})
				if err != nil {
					p.log.Warn().Err(err).Msg("failed to publish tenant switch event")
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
