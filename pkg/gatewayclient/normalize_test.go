package gatewayclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/api/jobs", "/api/jobs/"},
		{"/api/jobs/", "/api/jobs/"},
		{"/api/jobs/42", "/api/jobs/42/"},
		{"/api/jobs?status=open", "/api/jobs/?status=open"},
		{"/api/jobs/?status=open", "/api/jobs/?status=open"},

		// File-like last segments keep their exact form
		{"/files/report.pdf", "/files/report.pdf"},
		{"/files/archive.tar.gz", "/files/archive.tar.gz"},

		// Download and print endpoints are never rewritten
		{"/api/invoices/42/download", "/api/invoices/42/download"},
		{"/api/estimates/est-1/print", "/api/estimates/est-1/print"},
		{"/api/files/download/42", "/api/files/download/42"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeEndpoint(tc.in), "input %q", tc.in)
	}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "/api/jobs/", CacheKey("/api/jobs/", nil))

	// Param order does not change the key
	a := CacheKey("/api/jobs/", map[string]string{"status": "open", "page": "2"})
	b := CacheKey("/api/jobs/", map[string]string{"page": "2", "status": "open"})
	assert.Equal(t, a, b)
	assert.Equal(t, "/api/jobs/?page=2&status=open", a)

	// Values are escaped
	assert.Equal(t, "/api/jobs/?q=a+b%26c", CacheKey("/api/jobs/", map[string]string{"q": "a b&c"}))
}
