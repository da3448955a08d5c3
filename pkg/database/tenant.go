package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

type txKey struct{}

// WithTenantSchema executes fn inside a transaction whose search_path is
// pinned to the tenant's schema. This is the isolation mechanism for
// schema-per-tenant data: repositories never name the schema in SQL.
//
// Usage in repositories:
//
//	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &run, "SELECT * FROM payroll_runs WHERE id = $1", id)
//	})
//
// SET LOCAL is scoped to the transaction, so pooled connections come back
// clean even under PgBouncer.
func (db *DB) WithTenantSchema(ctx context.Context, fn func(context.Context) error) error {
	schema, err := tenant.SchemaName(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// NOTE: SET LOCAL doesn't support parameterized queries; the
		// schema name is derived from a validated tenant ID, not user
		// input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", schema)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", schema, err)
		}

		// Store the transaction in context so repository calls run on it
		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// Tx extracts the active tenant transaction from context, if any.
func Tx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// GetContext routes through the tenant transaction when one is active.
func (db *DB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := Tx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return db.DB.GetContext(ctx, dest, query, args...)
}

// SelectContext routes through the tenant transaction when one is active.
func (db *DB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := Tx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return db.DB.SelectContext(ctx, dest, query, args...)
}

// ExecContext routes through the tenant transaction when one is active.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (ExecResult, error) {
	if tx := Tx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.DB.ExecContext(ctx, query, args...)
}

// ExecResult is the subset of sql.Result the repositories use.
type ExecResult interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
