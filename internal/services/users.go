package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
)

// User is a platform user as returned by the core API
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Session describes the authenticated user's session
type Session struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	TenantID   string `json:"tenant_id,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// Profile bundles everything the account screen needs in one shot
type Profile struct {
	User        User                   `json:"user"`
	Permissions []string               `json:"permissions"`
	Preferences map[string]interface{} `json:"preferences"`
}

// UserService manages users and sessions through the core API
type UserService struct {
	client *gatewayclient.Client
}

// NewUserService creates a user service
func NewUserService(client *gatewayclient.Client) *UserService {
	return &UserService{client: client}
}

// Session returns the current session. This backs a tenant bypass route,
// so no tenant headers are required upstream.
func (s *UserService) Session(ctx context.Context) (*Session, error) {
	raw, err := s.client.Get(ctx, "/api/session", nil)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := gatewayclient.Decode(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Profile fetches the user record, permissions and preferences
// concurrently and assembles them. One failing leg fails the whole
// call; partial profiles are worse than a retry.
func (s *UserService) Profile(ctx context.Context) (*Profile, error) {
	var profile Profile

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := s.client.Get(ctx, "/api/profile", nil)
		if err != nil {
			return err
		}
		return gatewayclient.Decode(raw, &profile.User)
	})

	g.Go(func() error {
		raw, err := s.client.Get(ctx, "/api/profile/permissions", nil)
		if err != nil {
			return err
		}
		return gatewayclient.Decode(raw, &profile.Permissions)
	})

	g.Go(func() error {
		raw, err := s.client.Get(ctx, "/api/profile/preferences", nil)
		if err != nil {
			return err
		}
		return gatewayclient.Decode(raw, &profile.Preferences)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// MFASettings is the user's multi-factor configuration
type MFASettings struct {
	Enabled bool   `json:"enabled"`
	Method  string `json:"method,omitempty"`
}

// MFASettings returns the current user's multi-factor configuration
func (s *UserService) MFASettings(ctx context.Context) (*MFASettings, error) {
	raw, err := s.client.Get(ctx, "/api/profile/mfa", nil)
	if err != nil {
		return nil, err
	}

	var settings MFASettings
	if err := gatewayclient.Decode(raw, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateMFASettings changes the user's multi-factor configuration
func (s *UserService) UpdateMFASettings(ctx context.Context, settings MFASettings) (*MFASettings, error) {
	raw, err := s.client.Put(ctx, "/api/profile/mfa", settings, nil)
	if err != nil {
		return nil, err
	}

	var updated MFASettings
	if err := gatewayclient.Decode(raw, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// List returns the tenant's users
func (s *UserService) List(ctx context.Context) ([]User, error) {
	raw, err := s.client.Get(ctx, "/api/users", &gatewayclient.Options{
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	var users []User
	if err := gatewayclient.Decode(raw, &users); err != nil {
		return nil, err
	}
	return users, nil
}
