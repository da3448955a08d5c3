// Package gatewayclient is the single outbound path to the core backend.
// It layers endpoint normalization, tenant header injection, response
// caching, retry-on-timeout and error classification over plain HTTP so
// that domain services either get data or a clearly classified failure,
// never an unhandled transport error.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/crewflow/crewflow-platform/pkg/cache"
	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

// Client calls the core backend API.
type Client struct {
	baseURL  string
	http     *http.Client
	resolver *tenant.Resolver
	cache    *cache.Cache
	log      *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Test hook and escape
// hatch for transports with custom TLS or proxies.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithCache replaces the response cache.
func WithCache(rc *cache.Cache) ClientOption {
	return func(c *Client) { c.cache = rc }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, resolver *tenant.Resolver, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{},
		resolver: resolver,
		cache:    cache.New(),
		log:      log.WithComponent("gateway-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the response cache for targeted invalidation.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Get issues a GET. With opts.UseCache a fresh cached response
// short-circuits the network call entirely.
func (c *Client) Get(ctx context.Context, endpoint string, opts *Options) (json.RawMessage, error) {
	endpoint = NormalizeEndpoint(endpoint)

	var key string
	if opts != nil && opts.UseCache {
		key = CacheKey(endpoint, opts.Params)
		if value, ok := c.cache.Get(key); ok {
			c.log.Debug().Str("endpoint", endpoint).Msg("cache hit")
			return value, nil
		}
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil, opts)
	if err != nil {
		return c.fallback(endpoint, opts, err)
	}

	if key != "" {
		c.cache.Set(key, body, opts.ttl())
	}
	return body, nil
}

// Post issues a POST and invalidates the listed cache patterns on success.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, opts *Options) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPost, endpoint, payload, opts)
}

// Put issues a PUT and invalidates the listed cache patterns on success.
func (c *Client) Put(ctx context.Context, endpoint string, payload any, opts *Options) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPut, endpoint, payload, opts)
}

// Delete issues a DELETE and invalidates the listed cache patterns on
// success.
func (c *Client) Delete(ctx context.Context, endpoint string, opts *Options) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodDelete, endpoint, nil, opts)
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, payload any, opts *Options) (json.RawMessage, error) {
	endpoint = NormalizeEndpoint(endpoint)

	body, err := c.do(ctx, method, endpoint, payload, opts)
	if err != nil {
		return c.fallback(endpoint, opts, err)
	}

	if opts != nil && len(opts.InvalidatePatterns) > 0 {
		removed := c.cache.Invalidate(opts.InvalidatePatterns...)
		if removed > 0 {
			c.log.Debug().
				Str("endpoint", endpoint).
				Int("evicted", removed).
				Msg("cache entries invalidated")
		}
	}
	return body, nil
}

// do runs the request with the retry policy: up to opts.MaxRetries extra
// attempts, timeout-class failures only. The returned error is always a
// classified *errors.AppError.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any, opts *Options) (json.RawMessage, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "MARSHAL_ERROR", "failed to encode request body", http.StatusInternalServerError)
		}
	}

	attempts := 1 + opts.retries()

	var lastErr *errors.AppError
	for attempt := 1; attempt <= attempts; attempt++ {
		body, appErr := c.attempt(ctx, method, endpoint, reqBody, opts)
		if appErr == nil {
			return body, nil
		}
		lastErr = appErr

		if appErr.Kind != errors.KindTimeout || attempt == attempts {
			break
		}
		c.log.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("request timed out, retrying")
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, reqBody []byte, opts *Options) (json.RawMessage, *errors.AppError) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	target := c.baseURL + endpoint
	if opts != nil && len(opts.Params) > 0 {
		query := url.Values{}
		for k, v := range opts.Params {
			query.Set(k, v)
		}
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "REQUEST_ERROR", "failed to build request", http.StatusInternalServerError)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resolveOpts []tenant.ResolveOption
	if opts != nil && opts.TenantOverride != "" {
		resolveOpts = append(resolveOpts, tenant.WithOverride(opts.TenantOverride))
	}
	c.resolver.ApplyHeaders(req.Header, resolveOpts...)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Classify(err, 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Classify(err, 0)
	}

	if resp.StatusCode >= 400 {
		appErr := errors.Classify(nil, resp.StatusCode)
		c.log.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("kind", string(appErr.Kind)).
			Msg("backend returned error status")
		return nil, appErr
	}

	return body, nil
}

// fallback applies the uniform failure policy: return the caller's
// fallback data if supplied, otherwise the classified error.
func (c *Client) fallback(endpoint string, opts *Options, err error) (json.RawMessage, error) {
	if opts != nil && opts.Fallback != nil {
		c.log.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Msg("request failed, serving fallback data")
		return opts.Fallback, nil
	}
	return nil, err
}

// Decode unmarshals a response body into v, wrapping decode failures as
// classified errors so shape mismatches surface at the boundary.
func Decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "DECODE_ERROR",
			fmt.Sprintf("unexpected response shape: %v", err), http.StatusBadGateway)
	}
	return nil
}
