package services

import (
	"context"
	"fmt"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
)

// Material is a job material line as returned by the core API
type Material struct {
	ID        string  `json:"id"`
	JobID     string  `json:"job_id"`
	ProductID string  `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// MaterialInput is the payload for adding or updating a material line
type MaterialInput struct {
	JobID     string  `json:"job_id" validate:"required,uuid"`
	ProductID string  `json:"product_id,omitempty" validate:"omitempty,uuid"`
	Name      string  `json:"name" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Unit      string  `json:"unit,omitempty"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// MaterialService manages job materials through the core API
type MaterialService struct {
	client *gatewayclient.Client
}

// NewMaterialService creates a material service
func NewMaterialService(client *gatewayclient.Client) *MaterialService {
	return &MaterialService{client: client}
}

// ListForJob returns the material lines of a job
func (s *MaterialService) ListForJob(ctx context.Context, jobID string) ([]Material, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("/api/jobs/%s/materials", jobID), &gatewayclient.Options{
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var materials []Material
	if err := gatewayclient.Decode(raw, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// Add adds a material line to a job
func (s *MaterialService) Add(ctx context.Context, input MaterialInput) (*Material, error) {
	raw, err := s.client.Post(ctx, fmt.Sprintf("/api/jobs/%s/materials", input.JobID), input, &gatewayclient.Options{
		InvalidatePatterns: []string{fmt.Sprintf("/api/jobs/%s/materials", input.JobID)},
	})
	if err != nil {
		return nil, err
	}

	var m Material
	if err := gatewayclient.Decode(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Update updates a material line
func (s *MaterialService) Update(ctx context.Context, jobID, materialID string, input MaterialInput) (*Material, error) {
	raw, err := s.client.Put(ctx, fmt.Sprintf("/api/jobs/%s/materials/%s", jobID, materialID), input, &gatewayclient.Options{
		InvalidatePatterns: []string{fmt.Sprintf("/api/jobs/%s/materials", jobID)},
	})
	if err != nil {
		return nil, err
	}

	var m Material
	if err := gatewayclient.Decode(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UseForJob records stock being consumed by a job. Single POST; the
// backend adjusts inventory and the material line atomically.
func (s *MaterialService) UseForJob(ctx context.Context, materialID, jobID string, quantity float64) (*Material, error) {
	payload := map[string]interface{}{
		"job_id":   jobID,
		"quantity": quantity,
	}
	raw, err := s.client.Post(ctx, fmt.Sprintf("/api/materials/%s/use", materialID), payload, &gatewayclient.Options{
		InvalidatePatterns: []string{
			fmt.Sprintf("/api/jobs/%s/materials", jobID),
			"/api/inventory",
		},
	})
	if err != nil {
		return nil, err
	}

	var m Material
	if err := gatewayclient.Decode(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Remove deletes a material line from a job
func (s *MaterialService) Remove(ctx context.Context, jobID, materialID string) error {
	_, err := s.client.Delete(ctx, fmt.Sprintf("/api/jobs/%s/materials/%s", jobID, materialID), &gatewayclient.Options{
		InvalidatePatterns: []string{fmt.Sprintf("/api/jobs/%s/materials", jobID)},
	})
	return err
}
