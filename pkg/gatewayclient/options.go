package gatewayclient

import (
	"encoding/json"
	"time"
)

// Default request timeouts. Status polls use the shorter poll timeout so a
// stuck poll does not hold its loop for half a minute.
const (
	DefaultTimeout = 30 * time.Second
	PollTimeout    = 10 * time.Second
	DefaultTTL     = 5 * time.Minute
)

// Options controls a single call through the client. The zero value is a
// plain uncached, unretried request with the default timeout.
type Options struct {
	// Params are query parameters; they participate in the cache key.
	Params map[string]string

	// UseCache serves GETs from the response cache when a fresh entry
	// exists and stores successful responses. Ignored for mutations.
	UseCache bool

	// CacheTTL overrides the default entry lifetime.
	CacheTTL time.Duration

	// InvalidatePatterns are cache key patterns evicted after a
	// successful mutating call.
	InvalidatePatterns []string

	// Timeout overrides the default per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first
	// for timeout-class failures. Non-timeout errors are never retried.
	MaxRetries int

	// Fallback, when set, is returned instead of a classified error.
	// Callers treating the fallback as authoritative is a bug; it exists
	// for degraded-but-functional rendering.
	Fallback json.RawMessage

	// TenantOverride forces the tenant for this call only.
	TenantOverride string
}

func (o *Options) timeout() time.Duration {
	if o != nil && o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

func (o *Options) ttl() time.Duration {
	if o != nil && o.CacheTTL > 0 {
		return o.CacheTTL
	}
	return DefaultTTL
}

func (o *Options) retries() int {
	if o == nil || o.MaxRetries < 0 {
		return 0
	}
	return o.MaxRetries
}
