package services

import (
	"context"
	"encoding/json"

	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
)

// Product data sources, in order of preference
const (
	SourceNetwork     = "network"
	SourceSnapshot    = "snapshot"
	SourcePlaceholder = "placeholder"
)

// snapshotKeyProducts is the snapshot slot for the product catalog
const snapshotKeyProducts = "offline_products"

// Product is a catalog product as returned by the core API
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku,omitempty"`
	Category string  `json:"category,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ProductList is a product catalog tagged with where the data came
// from, so the UI can flag possibly stale results.
type ProductList struct {
	Products []Product `json:"products"`
	Source   string    `json:"source"`
}

// SnapshotStore persists catalog snapshots for offline fallback.
// Load returns a not-found error when no snapshot exists under the key.
type SnapshotStore interface {
	Save(ctx context.Context, key string, payload json.RawMessage) error
	Load(ctx context.Context, key string) (json.RawMessage, error)
}

// EventPublisher is the subset of the messaging publisher the services
// need
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// InventoryService serves the product catalog with a degradation chain:
// primary endpoint, then the legacy endpoint, then the last saved
// snapshot, then a built-in placeholder. Callers always get a list.
type InventoryService struct {
	client    *gatewayclient.Client
	snapshots SnapshotStore
	publisher EventPublisher
	log       *logger.Logger
}

// NewInventoryService creates an inventory service. snapshots and
// publisher may be nil; the corresponding fallback tier and events are
// then skipped.
func NewInventoryService(client *gatewayclient.Client, snapshots SnapshotStore, publisher EventPublisher, log *logger.Logger) *InventoryService {
	return &InventoryService{
		client:    client,
		snapshots: snapshots,
		publisher: publisher,
		log:       log.WithComponent("inventory-service"),
	}
}

// Products returns the product catalog. Network data refreshes the
// stored snapshot; when both endpoints fail the snapshot is served, and
// as a last resort a placeholder list keeps dependent screens usable.
func (s *InventoryService) Products(ctx context.Context) (*ProductList, error) {
	raw, err := s.client.Get(ctx, "/api/inventory/products", &gatewayclient.Options{
		UseCache: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("primary product endpoint failed, trying legacy endpoint")
		raw, err = s.client.Get(ctx, "/api/products", &gatewayclient.Options{
			UseCache: true,
		})
	}

	if err == nil {
		var products []Product
		if decodeErr := gatewayclient.Decode(raw, &products); decodeErr != nil {
			return nil, decodeErr
		}
		s.saveSnapshot(ctx, raw, len(products))
		return &ProductList{Products: products, Source: SourceNetwork}, nil
	}

	reason := err.Error()

	if s.snapshots != nil {
		snap, snapErr := s.snapshots.Load(ctx, snapshotKeyProducts)
		if snapErr == nil {
			var products []Product
			if decodeErr := gatewayclient.Decode(snap, &products); decodeErr == nil {
				s.log.Warn().Msg("serving product catalog from offline snapshot")
				s.publishFallback(ctx, SourceSnapshot, reason)
				return &ProductList{Products: products, Source: SourceSnapshot}, nil
			}
		} else if !errors.Is(snapErr, errors.ErrNotFound) {
			s.log.Warn().Err(snapErr).Msg("failed to load product snapshot")
		}
	}

	s.log.Warn().Msg("serving placeholder product catalog")
	s.publishFallback(ctx, SourcePlaceholder, reason)
	return &ProductList{Products: placeholderProducts(), Source: SourcePlaceholder}, nil
}

// RefreshSnapshot fetches the catalog from the network and stores it,
// bypassing the response cache. Used by background refresh.
func (s *InventoryService) RefreshSnapshot(ctx context.Context) error {
	raw, err := s.client.Get(ctx, "/api/inventory/products", nil)
	if err != nil {
		return err
	}

	var products []Product
	if err := gatewayclient.Decode(raw, &products); err != nil {
		return err
	}

	if s.snapshots == nil {
		return nil
	}
	if err := s.snapshots.Save(ctx, snapshotKeyProducts, raw); err != nil {
		return err
	}
	s.publishSnapshotSaved(ctx, len(products))
	return nil
}

func (s *InventoryService) saveSnapshot(ctx context.Context, raw json.RawMessage, count int) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, snapshotKeyProducts, raw); err != nil {
		s.log.Warn().Err(err).Msg("failed to save product snapshot")
		return
	}
	s.publishSnapshotSaved(ctx, count)
}

func (s *InventoryService) publishSnapshotSaved(ctx context.Context, count int) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, messaging.EventInventorySnapshotSaved, messaging.InventorySnapshotSavedEvent{
		ProductCount: count,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to publish snapshot event")
	}
}

func (s *InventoryService) publishFallback(ctx context.Context, source, reason string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, messaging.EventInventoryFallbackUsed, messaging.InventoryFallbackUsedEvent{
		Source: source,
		Reason: reason,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to publish fallback event")
	}
}

// placeholderProducts is the minimal catalog served when no real data
// is reachable. Prices are zero so nothing gets billed off placeholder
// rows.
func placeholderProducts() []Product {
	return []Product{
		{ID: "placeholder-labor", Name: "Labor", Unit: "hour"},
		{ID: "placeholder-materials", Name: "Materials", Unit: "each"},
		{ID: "placeholder-service-fee", Name: "Service Fee", Unit: "each"},
	}
}
