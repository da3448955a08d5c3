package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
)

// Estimate is a customer estimate as returned by the core API
type Estimate struct {
	ID         string         `json:"id"`
	Number     string         `json:"number"`
	CustomerID string         `json:"customer_id"`
	Status     string         `json:"status"`
	Lines      []EstimateLine `json:"lines,omitempty"`
	Subtotal   float64        `json:"subtotal"`
	Tax        float64        `json:"tax"`
	Total      float64        `json:"total"`
	CreatedAt  string         `json:"created_at,omitempty"`
}

// EstimateLine is a single estimate line item
type EstimateLine struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// EstimateInput is the payload for creating or updating an estimate
type EstimateInput struct {
	CustomerID string         `json:"customer_id" validate:"required,uuid"`
	Lines      []EstimateLine `json:"lines" validate:"required,min=1,dive"`
	Notes      string         `json:"notes,omitempty"`
}

// Invoice is the invoice produced by converting an estimate
type Invoice struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	EstimateID string  `json:"estimate_id,omitempty"`
	CustomerID string  `json:"customer_id"`
	Status     string  `json:"status"`
	Total      float64 `json:"total"`
	DueDate    string  `json:"due_date,omitempty"`
}

// EstimateService manages estimates and their conversion to invoices
type EstimateService struct {
	client    *gatewayclient.Client
	publisher EventPublisher
	log       *logger.Logger
}

// NewEstimateService creates an estimate service. publisher may be nil.
func NewEstimateService(client *gatewayclient.Client, publisher EventPublisher, log *logger.Logger) *EstimateService {
	return &EstimateService{
		client:    client,
		publisher: publisher,
		log:       log.WithComponent("estimate-service"),
	}
}

// List returns estimates matching the given filters
func (s *EstimateService) List(ctx context.Context, filters map[string]string) ([]Estimate, error) {
	raw, err := s.client.Get(ctx, "/api/estimates", &gatewayclient.Options{
		Params:   filters,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var estimates []Estimate
	if err := gatewayclient.Decode(raw, &estimates); err != nil {
		return nil, err
	}
	return estimates, nil
}

// Get returns a single estimate by ID
func (s *EstimateService) Get(ctx context.Context, id string) (*Estimate, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("/api/estimates/%s", id), &gatewayclient.Options{
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var e Estimate
	if err := gatewayclient.Decode(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create creates an estimate and evicts cached estimate lists
func (s *EstimateService) Create(ctx context.Context, input EstimateInput) (*Estimate, error) {
	raw, err := s.client.Post(ctx, "/api/estimates", input, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/estimates"},
	})
	if err != nil {
		return nil, err
	}

	var e Estimate
	if err := gatewayclient.Decode(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update updates an estimate and evicts cached estimate data
func (s *EstimateService) Update(ctx context.Context, id string, input EstimateInput) (*Estimate, error) {
	raw, err := s.client.Put(ctx, fmt.Sprintf("/api/estimates/%s", id), input, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/estimates"},
	})
	if err != nil {
		return nil, err
	}

	var e Estimate
	if err := gatewayclient.Decode(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ConvertToInvoice turns an accepted estimate into an invoice. Both the
// estimate and invoice caches are stale after this.
func (s *EstimateService) ConvertToInvoice(ctx context.Context, id string) (*Invoice, error) {
	raw, err := s.client.Post(ctx, fmt.Sprintf("/api/estimates/%s/convert-to-invoice", id), nil, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/estimates", "/api/invoices"},
	})
	if err != nil {
		return nil, err
	}

	var inv Invoice
	if err := gatewayclient.Decode(raw, &inv); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		pubErr := s.publisher.Publish(ctx, messaging.EventEstimateConverted, messaging.EstimateConvertedEvent{
			EstimateID: id,
			InvoiceID:  inv.ID,
		})
		if pubErr != nil {
			s.log.Warn().Err(pubErr).Str("estimate_id", id).Msg("failed to publish conversion event")
		}
	}

	return &inv, nil
}

// Print returns the printable estimate document. The print endpoint is
// exempt from trailing-slash normalization and never cached.
func (s *EstimateService) Print(ctx context.Context, id string) (json.RawMessage, error) {
	return s.client.Get(ctx, fmt.Sprintf("/api/estimates/%s/print", id), nil)
}
