package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/crewflow/crewflow-platform/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "current_step_range"):
		return errors.Validation(map[string]string{
			"current_step": "must be within the wizard's step range",
		})

	case strings.Contains(constraint, "run_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: in_progress, completed, abandoned",
		})

	case strings.Contains(constraint, "snapshot_source_valid"):
		return errors.Validation(map[string]string{
			"source": "must be one of: network, snapshot, placeholder",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "payroll_runs_tenant"):
		return "a payroll run is already in progress for this tenant"
	case strings.Contains(constraint, "snapshot_key"):
		return "a snapshot with this key already exists"
	default:
		return "a record with these values already exists"
	}
}
