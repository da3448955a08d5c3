// Package services contains the domain-facing clients of the core
// backend API. Each service wraps the gateway client with typed
// requests, cache policy and the endpoints it owns.
package services

import (
	"context"
	"fmt"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
)

// Job is a field-service job as returned by the core API
type Job struct {
	ID          string  `json:"id"`
	Number      string  `json:"number"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	CustomerID  string  `json:"customer_id"`
	Status      string  `json:"status"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	ScheduledAt string  `json:"scheduled_at,omitempty"`
	Total       float64 `json:"total"`
}

// JobInput is the payload for creating or updating a job
type JobInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description,omitempty"`
	CustomerID  string   `json:"customer_id" validate:"required,uuid"`
	Status      string   `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled in_progress completed cancelled"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	ScheduledAt string   `json:"scheduled_at,omitempty"`
}

// JobService manages jobs through the core API
type JobService struct {
	client *gatewayclient.Client
}

// NewJobService creates a job service
func NewJobService(client *gatewayclient.Client) *JobService {
	return &JobService{client: client}
}

// List returns jobs matching the given filters. Results are cached per
// filter set.
func (s *JobService) List(ctx context.Context, filters map[string]string) ([]Job, error) {
	raw, err := s.client.Get(ctx, "/api/jobs", &gatewayclient.Options{
		Params:   filters,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var jobs []Job
	if err := gatewayclient.Decode(raw, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Get returns a single job by ID
func (s *JobService) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("/api/jobs/%s", id), &gatewayclient.Options{
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var job Job
	if err := gatewayclient.Decode(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Create creates a job and evicts cached job lists
func (s *JobService) Create(ctx context.Context, input JobInput) (*Job, error) {
	raw, err := s.client.Post(ctx, "/api/jobs", input, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/jobs"},
	})
	if err != nil {
		return nil, err
	}

	var job Job
	if err := gatewayclient.Decode(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update updates a job and evicts cached job data
func (s *JobService) Update(ctx context.Context, id string, input JobInput) (*Job, error) {
	raw, err := s.client.Put(ctx, fmt.Sprintf("/api/jobs/%s", id), input, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/jobs"},
	})
	if err != nil {
		return nil, err
	}

	var job Job
	if err := gatewayclient.Decode(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Complete marks a job completed. The backend owns the status
// transition rules; this is a single POST, not a read-modify-write.
func (s *JobService) Complete(ctx context.Context, id string) (*Job, error) {
	raw, err := s.client.Post(ctx, fmt.Sprintf("/api/jobs/%s/complete", id), nil, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/jobs"},
	})
	if err != nil {
		return nil, err
	}

	var job Job
	if err := gatewayclient.Decode(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Delete removes a job and evicts cached job data
func (s *JobService) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, fmt.Sprintf("/api/jobs/%s", id), &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/jobs"},
	})
	return err
}
