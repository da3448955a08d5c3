package gatewayclient

import (
	"net/url"
	"sort"
	"strings"
)

// NormalizeEndpoint appends a trailing slash to an endpoint path unless it
// carries a file extension or is a download/print endpoint. The core
// backend's router requires the trailing slash; this is a compatibility
// contract, not a style choice.
func NormalizeEndpoint(endpoint string) string {
	if endpoint == "" || endpoint == "/" {
		return "/"
	}

	path, query, hasQuery := strings.Cut(endpoint, "?")

	if !strings.HasSuffix(path, "/") && !isSlashExempt(path) {
		path += "/"
	}

	if hasQuery {
		return path + "?" + query
	}
	return path
}

// isSlashExempt reports whether a path must keep its exact form: file-like
// segments (extension in the last element) and binary download or print
// endpoints.
func isSlashExempt(path string) bool {
	last := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		last = path[idx+1:]
	}
	if strings.Contains(last, ".") {
		return true
	}
	return strings.Contains(path, "/download") || strings.Contains(path, "/print")
}

// CacheKey builds the cache key for an endpoint and its query params.
// Params are sorted so logically identical requests share one entry.
func CacheKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
