package services

import (
	"context"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
)

// CacheInvalidator keeps the gateway client's response cache coherent
// with events from the rest of the platform. Cache keys carry no tenant
// component, so a tenant switch must drop everything.
type CacheInvalidator struct {
	client *gatewayclient.Client
	logger *logger.Logger
}

// NewCacheInvalidator creates a cache invalidator over the shared client
func NewCacheInvalidator(client *gatewayclient.Client, log *logger.Logger) *CacheInvalidator {
	return &CacheInvalidator{
		client: client,
		logger: log.WithComponent("cache-invalidator"),
	}
}

// RegisterHandlers binds the invalidator to the platform event exchanges
func (c *CacheInvalidator) RegisterHandlers(consumer *messaging.Consumer) error {
	if err := consumer.Subscribe(messaging.ExchangeTenantEvents, "tenant.*"); err != nil {
		return err
	}
	if err := consumer.Subscribe(messaging.ExchangeEstimateEvents, "estimate.*"); err != nil {
		return err
	}

	consumer.RegisterHandler(messaging.EventTenantSwitched, c.HandleTenantSwitched)
	consumer.RegisterHandler(messaging.EventEstimateConverted, c.HandleEstimateConverted)
	return nil
}

// HandleTenantSwitched purges the whole response cache. Every cached
// entry was fetched under the previous tenant's headers.
func (c *CacheInvalidator) HandleTenantSwitched(ctx context.Context, event *messaging.Event) error {
	var data messaging.TenantSwitchedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.client.Cache().Purge()
	c.logger.Info().
		Str("tenant_id", data.TenantID).
		Msg("response cache purged after tenant switch")
	return nil
}

// HandleEstimateConverted evicts estimate and invoice listings, which a
// conversion changes on the backend without a local mutation.
func (c *CacheInvalidator) HandleEstimateConverted(ctx context.Context, event *messaging.Event) error {
	var data messaging.EstimateConvertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	removed := c.client.Cache().Invalidate("/api/estimates", "/api/invoices")
	c.logger.Debug().
		Str("estimate_id", data.EstimateID).
		Str("invoice_id", data.InvoiceID).
		Int("evicted", removed).
		Msg("estimate caches invalidated")
	return nil
}
