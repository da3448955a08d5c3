package gatewayclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

func newTestResolver(tenantID string) *tenant.Resolver {
	memory := tenant.NewMemoryStore()
	if tenantID != "" {
		memory.Set(tenant.KeyTenantID, tenantID)
	}
	return tenant.NewResolver(logger.Nop(), memory)
}

func TestClient_SendsTenantHeaders(t *testing.T) {
	var gotTenant, gotSchema string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = r.Header.Get(tenant.HeaderTenantID)
		gotSchema = r.Header.Get(tenant.HeaderSchemaName)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("acme-1"), logger.Nop())
	_, err := client.Get(context.Background(), "/api/jobs", nil)
	require.NoError(t, err)

	assert.Equal(t, "acme-1", gotTenant)
	assert.Equal(t, "tenant_acme_1", gotSchema)
}

func TestClient_TenantOverride(t *testing.T) {
	var gotTenant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = r.Header.Get(tenant.HeaderTenantID)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("acme-1"), logger.Nop())
	_, err := client.Get(context.Background(), "/api/jobs", &Options{TenantOverride: "other-2"})
	require.NoError(t, err)
	assert.Equal(t, "other-2", gotTenant)
}

func TestClient_CachedGetHitsNetworkOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"n":1}`))
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("t-1"), logger.Nop())
	opts := &Options{UseCache: true}

	for i := 0; i < 3; i++ {
		body, err := client.Get(context.Background(), "/api/jobs", opts)
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(body))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Different params miss the cache
	_, err := client.Get(context.Background(), "/api/jobs", &Options{
		UseCache: true,
		Params:   map[string]string{"status": "open"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_MutationInvalidatesCache(t *testing.T) {
	var gets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("t-1"), logger.Nop())

	_, err := client.Get(context.Background(), "/api/jobs", &Options{UseCache: true})
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "/api/jobs", &Options{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))

	_, err = client.Post(context.Background(), "/api/jobs", map[string]string{"name": "new"}, &Options{
		InvalidatePatterns: []string{"/api/jobs"},
	})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/api/jobs", &Options{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
}

func TestClient_RetriesTimeoutsOnly(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("t-1"), logger.Nop())
	_, err := client.Get(context.Background(), "/api/jobs", &Options{
		Timeout:    5 * time.Millisecond,
		MaxRetries: 2,
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ServerErrorsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("t-1"), logger.Nop())
	_, err := client.Get(context.Background(), "/api/jobs", &Options{MaxRetries: 3})
	require.Error(t, err)
	assert.Equal(t, errors.KindServer, errors.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_FallbackData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("t-1"), logger.Nop())
	body, err := client.Get(context.Background(), "/api/jobs", &Options{
		Fallback: json.RawMessage(`[]`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestClient_ErrorStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   errors.Kind
	}{
		{http.StatusUnauthorized, errors.KindAuth},
		{http.StatusForbidden, errors.KindAuth},
		{http.StatusNotFound, errors.KindNotFound},
		{http.StatusUnprocessableEntity, errors.KindValidation},
		{http.StatusBadGateway, errors.KindServer},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		client := New(server.URL, newTestResolver("t-1"), logger.Nop())
		_, err := client.Get(context.Background(), "/api/jobs", nil)
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, errors.KindOf(err), "status %d", tc.status)

		server.Close()
	}
}

func TestClient_QueryParams(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, newTestResolver("t-1"), logger.Nop())
	_, err := client.Get(context.Background(), "/api/jobs", &Options{
		Params: map[string]string{"status": "open"},
	})
	require.NoError(t, err)
	assert.Equal(t, "status=open", gotQuery)
}

func TestDecode(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, Decode(json.RawMessage(`{"name":"x"}`), &out))
	assert.Equal(t, "x", out.Name)

	err := Decode(json.RawMessage(`"not an object"`), &out)
	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "DECODE_ERROR", appErr.Code)
}
