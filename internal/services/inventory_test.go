package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
	"github.com/crewflow/crewflow-platform/pkg/testutil"
)

type memSnapshots struct {
	mu    sync.Mutex
	saved map[string]json.RawMessage
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{saved: make(map[string]json.RawMessage)}
}

func (m *memSnapshots) Save(ctx context.Context, key string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[key] = payload
	return nil
}

func (m *memSnapshots) Load(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payload, ok := m.saved[key]; ok {
		return payload, nil
	}
	return nil, errors.NotFound("snapshot")
}

func newTestClient(t *testing.T, baseURL string) *gatewayclient.Client {
	t.Helper()
	resolver := tenant.NewResolver(logger.Nop(), tenant.NewMemoryStore())
	return gatewayclient.New(baseURL, resolver, logger.Nop())
}

func TestProducts_NetworkSuccessRefreshesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inventory/products/", r.URL.Path)
		json.NewEncoder(w).Encode([]Product{{ID: "p1", Name: "Copper Pipe", Price: 4.50}})
	}))
	defer server.Close()

	snapshots := newMemSnapshots()
	publisher := testutil.NewMockPublisher()
	svc := NewInventoryService(newTestClient(t, server.URL), snapshots, publisher, logger.Nop())

	list, err := svc.Products(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceNetwork, list.Source)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Copper Pipe", list.Products[0].Name)

	_, ok := snapshots.saved[snapshotKeyProducts]
	assert.True(t, ok, "network result should be snapshotted")
	publisher.AssertEventPublished(t, messaging.EventInventorySnapshotSaved)
}

func TestProducts_FallsBackToLegacyEndpoint(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/inventory/products/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]Product{{ID: "p1", Name: "Legacy Product"}})
	}))
	defer server.Close()

	svc := NewInventoryService(newTestClient(t, server.URL), nil, nil, logger.Nop())

	list, err := svc.Products(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceNetwork, list.Source)
	assert.Equal(t, []string{"/api/inventory/products/", "/api/products/"}, paths)
}

func TestProducts_ServesSnapshotWhenBothEndpointsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	snapshots := newMemSnapshots()
	snapshots.saved[snapshotKeyProducts] = testutil.MustJSONBytes([]Product{
		{ID: "p1", Name: "Snapshotted Pipe", Price: 3.25},
	})
	publisher := testutil.NewMockPublisher()
	svc := NewInventoryService(newTestClient(t, server.URL), snapshots, publisher, logger.Nop())

	list, err := svc.Products(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceSnapshot, list.Source)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Snapshotted Pipe", list.Products[0].Name)
	publisher.AssertEventPublished(t, messaging.EventInventoryFallbackUsed)
}

func TestProducts_PlaceholderWhenEverythingFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher := testutil.NewMockPublisher()
	svc := NewInventoryService(newTestClient(t, server.URL), newMemSnapshots(), publisher, logger.Nop())

	list, err := svc.Products(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourcePlaceholder, list.Source)
	assert.NotEmpty(t, list.Products)
	for _, p := range list.Products {
		assert.Zero(t, p.Price, "placeholder products must not carry prices")
	}
	publisher.AssertEventPublished(t, messaging.EventInventoryFallbackUsed)
}

func TestRefreshSnapshot_StoresNetworkResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Product{{ID: "p1", Name: "Fresh"}})
	}))
	defer server.Close()

	snapshots := newMemSnapshots()
	svc := NewInventoryService(newTestClient(t, server.URL), snapshots, nil, logger.Nop())

	require.NoError(t, svc.RefreshSnapshot(context.Background()))

	_, ok := snapshots.saved[snapshotKeyProducts]
	assert.True(t, ok)
}
