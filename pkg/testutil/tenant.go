package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID         string
	Name       string
	BusinessID string
	SchemaName string
}

// TenantManager manages test tenant schemas
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant creates a new isolated tenant schema for testing.
// Each test can have its own tenant to ensure complete isolation.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	tt := tm.CreateTenant(ctx, "acme-plumbing")
//	ctx = testutil.WithTestTenant(ctx, tt)
//
//	// Now all repository operations will use this tenant's schema
//	run, err := repo.Current(ctx)
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	schemaName := fmt.Sprintf("tenant_%s", strings.ReplaceAll(slug, "-", "_"))

	// Create schema
	_, err := tm.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant schema: %w", err)
	}

	t := TestTenant{
		ID:         id,
		Name:       name,
		BusinessID: uuid.New().String(),
		SchemaName: schemaName,
	}

	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// CreateTenantWithMigrations creates a tenant and applies the given migrations
func (tm *TenantManager) CreateTenantWithMigrations(ctx context.Context, name string, migrations []string) (*TestTenant, error) {
	t, err := tm.CreateTenant(ctx, name)
	if err != nil {
		return nil, err
	}

	// Set search_path and apply migrations
	for _, migration := range migrations {
		_, err = tm.db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", t.SchemaName))
		if err != nil {
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}

		_, err = tm.db.ExecContext(ctx, migration)
		if err != nil {
			return nil, fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	// Reset search_path
	_, err = tm.db.ExecContext(ctx, "SET search_path TO public")
	if err != nil {
		return nil, fmt.Errorf("failed to reset search_path: %w", err)
	}

	return t, nil
}

// DropTenant removes a tenant schema completely
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Drop schema with CASCADE (removes all objects)
	_, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName))
	if err != nil {
		return fmt.Errorf("failed to drop tenant schema: %w", err)
	}

	// Remove from tracked tenants
	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup drops all tenant schemas created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		_, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName))
		if err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

// WithTestTenant creates a context with tenant information for testing.
// This is the primary way to set up tenant context in tests.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithContext(ctx, tenant.Context{
		TenantID:   t.ID,
		SchemaName: t.SchemaName,
		BusinessID: t.BusinessID,
	})
}

// TestTenantContext creates a context with a fake tenant for simple unit tests
// that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithContext(context.Background(), tenant.Context{
		TenantID:   "test-tenant-id",
		SchemaName: "tenant_test",
		BusinessID: "test-business-id",
	})
}

// PayrollMigrations returns the payroll service migrations for tests
func PayrollMigrations() []string {
	return []string{
		// Payroll runs checkpoint table
		`CREATE TABLE IF NOT EXISTS payroll_runs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			started_by UUID NOT NULL,
			pay_period_start DATE,
			pay_period_end DATE,
			current_step INT NOT NULL DEFAULT 1,
			total_steps INT NOT NULL DEFAULT 8,
			status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			state JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			CONSTRAINT payroll_runs_current_step_range CHECK (current_step >= 1 AND current_step <= total_steps),
			CONSTRAINT payroll_runs_run_status_valid CHECK (status IN ('in_progress', 'completed', 'abandoned'))
		)`,

		// One active run per tenant schema
		`CREATE UNIQUE INDEX IF NOT EXISTS payroll_runs_tenant_active
			ON payroll_runs ((status)) WHERE status = 'in_progress'`,

		`CREATE INDEX IF NOT EXISTS idx_payroll_runs_status ON payroll_runs(status)`,
	}
}

// SnapshotMigrations returns the offline snapshot migrations for tests
func SnapshotMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS product_snapshots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			snapshot_key VARCHAR(100) NOT NULL,
			payload JSONB NOT NULL,
			source VARCHAR(20) NOT NULL DEFAULT 'network',
			saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT product_snapshots_snapshot_key_unique UNIQUE (snapshot_key),
			CONSTRAINT product_snapshots_snapshot_source_valid CHECK (source IN ('network', 'snapshot', 'placeholder'))
		)`,
	}
}
