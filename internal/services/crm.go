package services

import (
	"context"
	"fmt"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
)

// Customer is a CRM customer record
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CustomerInput is the payload for creating or updating a customer
type CustomerInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Lead is a CRM sales lead
type Lead struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Source     string `json:"source,omitempty"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// CRMService manages customers and leads through the core API
type CRMService struct {
	client *gatewayclient.Client
}

// NewCRMService creates a CRM service
func NewCRMService(client *gatewayclient.Client) *CRMService {
	return &CRMService{client: client}
}

// Customers returns customers matching the given filters
func (s *CRMService) Customers(ctx context.Context, filters map[string]string) ([]Customer, error) {
	raw, err := s.client.Get(ctx, "/api/crm/customers", &gatewayclient.Options{
		Params:   filters,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var customers []Customer
	if err := gatewayclient.Decode(raw, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// Customer returns a single customer by ID
func (s *CRMService) Customer(ctx context.Context, id string) (*Customer, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("/api/crm/customers/%s", id), &gatewayclient.Options{
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var c Customer
	if err := gatewayclient.Decode(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer creates a customer and evicts cached customer lists
func (s *CRMService) CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	raw, err := s.client.Post(ctx, "/api/crm/customers", input, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/crm/customers"},
	})
	if err != nil {
		return nil, err
	}

	var c Customer
	if err := gatewayclient.Decode(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCustomer updates a customer and evicts cached customer data
func (s *CRMService) UpdateCustomer(ctx context.Context, id string, input CustomerInput) (*Customer, error) {
	raw, err := s.client.Put(ctx, fmt.Sprintf("/api/crm/customers/%s", id), input, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/crm/customers"},
	})
	if err != nil {
		return nil, err
	}

	var c Customer
	if err := gatewayclient.Decode(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Leads returns leads matching the given filters
func (s *CRMService) Leads(ctx context.Context, filters map[string]string) ([]Lead, error) {
	raw, err := s.client.Get(ctx, "/api/crm/leads", &gatewayclient.Options{
		Params:   filters,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var leads []Lead
	if err := gatewayclient.Decode(raw, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// ConvertLead converts a lead into a customer
func (s *CRMService) ConvertLead(ctx context.Context, leadID string) (*Customer, error) {
	raw, err := s.client.Post(ctx, fmt.Sprintf("/api/crm/leads/%s/convert", leadID), nil, &gatewayclient.Options{
		InvalidatePatterns: []string{"/api/crm/leads", "/api/crm/customers"},
	})
	if err != nil {
		return nil, err
	}

	var c Customer
	if err := gatewayclient.Decode(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
