package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

func newInvalidatorFixture(t *testing.T) (*CacheInvalidator, *gatewayclient.Client) {
	t.Helper()
	resolver := tenant.NewResolver(logger.Nop(), tenant.NewMemoryStore())
	client := gatewayclient.New("http://backend.invalid", resolver, logger.Nop())
	return NewCacheInvalidator(client, logger.Nop()), client
}

func TestCacheInvalidator_TenantSwitchPurgesEverything(t *testing.T) {
	inv, client := newInvalidatorFixture(t)

	client.Cache().Set("/api/jobs/", []byte(`[]`), time.Minute)
	client.Cache().Set("/api/estimates/", []byte(`[]`), time.Minute)
	require.Equal(t, 2, client.Cache().Len())

	event, err := messaging.NewEvent(messaging.EventTenantSwitched, "test", "",
		messaging.TenantSwitchedEvent{TenantID: "other-tenant"})
	require.NoError(t, err)

	require.NoError(t, inv.HandleTenantSwitched(context.Background(), event))
	assert.Equal(t, 0, client.Cache().Len())
}

func TestCacheInvalidator_EstimateConversionEvictsListings(t *testing.T) {
	inv, client := newInvalidatorFixture(t)

	client.Cache().Set("/api/estimates/", []byte(`[]`), time.Minute)
	client.Cache().Set("/api/invoices/", []byte(`[]`), time.Minute)
	client.Cache().Set("/api/jobs/", []byte(`[]`), time.Minute)

	event, err := messaging.NewEvent(messaging.EventEstimateConverted, "test", "",
		messaging.EstimateConvertedEvent{EstimateID: "est-1", InvoiceID: "inv-1"})
	require.NoError(t, err)

	require.NoError(t, inv.HandleEstimateConverted(context.Background(), event))

	// Jobs survive, estimate and invoice listings do not
	assert.Equal(t, 1, client.Cache().Len())
	_, ok := client.Cache().Get("/api/jobs/")
	assert.True(t, ok)
}

func TestCacheInvalidator_MalformedEventData(t *testing.T) {
	inv, _ := newInvalidatorFixture(t)

	event := &messaging.Event{
		Type: messaging.EventTenantSwitched,
		Data: []byte(`{not json`),
	}
	assert.Error(t, inv.HandleTenantSwitched(context.Background(), event))
}
