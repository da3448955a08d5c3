package payroll

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/crewflow/crewflow-platform/internal/wizard"
	"github.com/crewflow/crewflow-platform/pkg/database"
	"github.com/crewflow/crewflow-platform/pkg/errors"
)

// Repository persists payroll runs in the tenant's schema
type Repository struct {
	db *database.DB
}

// NewRepository creates a payroll run repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Current returns the tenant's in-progress run, or a not-found error
func (r *Repository) Current(ctx context.Context) (*Run, error) {
	var run Run
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &run, `
			SELECT id, started_by, pay_period_start, pay_period_end,
			       current_step, total_steps, status, state,
			       created_at, updated_at, completed_at
			FROM payroll_runs
			WHERE status = 'in_progress'
		`)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("payroll run")
		}
		return nil, err
	}
	return &run, nil
}

// Get returns a run by ID
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &run, `
			SELECT id, started_by, pay_period_start, pay_period_end,
			       current_step, total_steps, status, state,
			       created_at, updated_at, completed_at
			FROM payroll_runs
			WHERE id = $1
		`, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("payroll run")
		}
		return nil, err
	}
	return &run, nil
}

// Create starts a new run at step 1. The partial unique index on
// in-progress runs turns a double start into a conflict error.
func (r *Repository) Create(ctx context.Context, startedBy string, periodStart, periodEnd *time.Time, state json.RawMessage) (*Run, error) {
	if state == nil {
		state = json.RawMessage(`{}`)
	}

	run := &Run{
		ID:             uuid.New().String(),
		StartedBy:      startedBy,
		PayPeriodStart: periodStart,
		PayPeriodEnd:   periodEnd,
		CurrentStep:    1,
		TotalSteps:     TotalSteps,
		Status:         RunInProgress,
		State:          state,
	}

	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO payroll_runs (id, started_by, pay_period_start, pay_period_end,
			                          current_step, total_steps, status, state)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, run.ID, run.StartedBy, run.PayPeriodStart, run.PayPeriodEnd,
			run.CurrentStep, run.TotalSteps, run.Status, []byte(run.State))
		return err
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return run, nil
}

// SaveProgress checkpoints the run's step and state. A completed flag
// closes the run.
func (r *Repository) SaveProgress(ctx context.Context, runID string, currentStep int, state json.RawMessage, completed bool) error {
	if state == nil {
		state = json.RawMessage(`{}`)
	}

	status := RunInProgress
	if completed {
		status = RunCompleted
	}

	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE payroll_runs
			SET current_step = $2,
			    state = $3,
			    status = $4,
			    completed_at = CASE WHEN $4 = 'completed' THEN NOW() ELSE completed_at END,
			    updated_at = NOW()
			WHERE id = $1
		`, runID, currentStep, []byte(state), status)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.NotFound("payroll run")
		}
		return nil
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// Abandon closes the run without completing it
func (r *Repository) Abandon(ctx context.Context, runID string) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE payroll_runs
			SET status = 'abandoned', updated_at = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`, runID)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.NotFound("payroll run")
		}
		return nil
	})
}

// progressStore adapts the repository to the wizard's ProgressStore for
// a single run
type progressStore struct {
	repo  *Repository
	runID string
}

func (p *progressStore) Load(ctx context.Context) (*wizard.Progress, error) {
	run, err := p.repo.Get(ctx, p.runID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	state, err := run.StateMap()
	if err != nil {
		return nil, err
	}

	return &wizard.Progress{
		RunID:       run.ID,
		CurrentStep: run.CurrentStep,
		State:       state,
		Completed:   run.Status == RunCompleted,
	}, nil
}

func (p *progressStore) Save(ctx context.Context, progress *wizard.Progress) error {
	state, err := json.Marshal(progress.State)
	if err != nil {
		return err
	}
	return p.repo.SaveProgress(ctx, p.runID, progress.CurrentStep, state, progress.Completed)
}
