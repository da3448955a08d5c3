package payroll

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crewflow/crewflow-platform/internal/wizard"
	"github.com/crewflow/crewflow-platform/pkg/actor"
	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
)

// WizardName identifies the payroll flow in logs and checkpoints
const WizardName = "payroll-run"

// Service orchestrates payroll runs: it owns run lifecycle, rebuilds
// the wizard from the checkpoint on every call, and publishes the run
// lifecycle events.
type Service struct {
	repo      *Repository
	client    *gatewayclient.Client
	publisher EventPublisher
	log       *logger.Logger
}

// NewService creates the payroll service. publisher may be nil in
// tests.
func NewService(repo *Repository, client *gatewayclient.Client, publisher EventPublisher, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		client:    client,
		publisher: publisher,
		log:       log.WithComponent("payroll-service"),
	}
}

// Current returns the tenant's current run view. Without an active run
// the view carries the step metadata only, so the UI can render the
// start screen.
func (s *Service) Current(ctx context.Context) (*RunView, error) {
	run, err := s.repo.Current(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return s.emptyView(), nil
		}
		return nil, err
	}

	w, err := s.buildWizard(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return s.view(w), nil
}

// Start begins a new payroll run for the pay period. A tenant can only
// have one run in progress.
func (s *Service) Start(ctx context.Context, periodStart, periodEnd *time.Time) (*RunView, error) {
	if _, err := s.repo.Current(ctx); err == nil {
		return nil, errors.Conflict("a payroll run is already in progress")
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	state := map[string]interface{}{}
	if periodStart != nil {
		state[KeyPayPeriodStart] = periodStart.Format("2006-01-02")
	}
	if periodEnd != nil {
		state[KeyPayPeriodEnd] = periodEnd.Format("2006-01-02")
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	startedBy := actor.ActorID(ctx)
	run, err := s.repo.Create(ctx, startedBy, periodStart, periodEnd, stateJSON)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventPayrollRunStarted, messaging.PayrollRunStartedEvent{
		RunID:      run.ID,
		StartedBy:  startedBy,
		TotalSteps: TotalSteps,
	})
	s.log.Info().Str("run_id", run.ID).Msg("payroll run started")

	w, err := s.buildWizard(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return s.view(w), nil
}

// SaveProgress merges step input into the run state and checkpoints it
func (s *Service) SaveProgress(ctx context.Context, updates map[string]interface{}) (*RunView, error) {
	w, err := s.currentWizard(ctx)
	if err != nil {
		return nil, err
	}

	if err := w.UpdateState(ctx, updates); err != nil {
		return nil, err
	}
	return s.view(w), nil
}

// Advance runs the current step's side effect and moves the run
// forward. The step's validation gate decides whether forward movement
// is allowed; completing the final step closes the run.
func (s *Service) Advance(ctx context.Context) (*RunView, error) {
	w, err := s.currentWizard(ctx)
	if err != nil {
		return nil, err
	}

	fromStep := w.CurrentStep()
	step := w.Steps()[fromStep-1]

	if err := w.RunCurrent(ctx); err != nil {
		s.publish(ctx, messaging.EventPayrollStepFailed, messaging.PayrollStepFailedEvent{
			RunID:    w.RunID(),
			Step:     fromStep,
			StepName: step.Name,
			Reason:   err.Error(),
		})
		return nil, err
	}

	if err := w.Next(ctx); err != nil {
		return nil, err
	}

	if w.Phase() == wizard.PhaseComplete {
		calc := calculationFromState(w.State())
		s.publish(ctx, messaging.EventPayrollRunCompleted, messaging.PayrollRunCompletedEvent{
			RunID:       w.RunID(),
			CompletedBy: actor.ActorID(ctx),
			Employees:   len(w.State().GetStringSlice(KeyEmployeeIDs)),
			GrossTotal:  calc.GrossTotal,
			NetTotal:    calc.NetTotal,
		})
		s.log.Info().Str("run_id", w.RunID()).Msg("payroll run completed")
	} else {
		s.publish(ctx, messaging.EventPayrollStepAdvanced, messaging.PayrollStepAdvancedEvent{
			RunID:     w.RunID(),
			FromStep:  fromStep,
			ToStep:    w.CurrentStep(),
			StepName:  step.Name,
			Employees: len(w.State().GetStringSlice(KeyEmployeeIDs)),
		})
	}

	return s.view(w), nil
}

// Back moves the run one step backward
func (s *Service) Back(ctx context.Context) (*RunView, error) {
	w, err := s.currentWizard(ctx)
	if err != nil {
		return nil, err
	}

	if err := w.Back(ctx); err != nil {
		return nil, err
	}
	return s.view(w), nil
}

// JumpTo revisits an earlier step
func (s *Service) JumpTo(ctx context.Context, step int) (*RunView, error) {
	w, err := s.currentWizard(ctx)
	if err != nil {
		return nil, err
	}

	if err := w.JumpTo(ctx, step); err != nil {
		return nil, err
	}
	return s.view(w), nil
}

// Restart abandons the current run. The next Start creates a fresh one.
func (s *Service) Restart(ctx context.Context) error {
	run, err := s.repo.Current(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.Abandon(ctx, run.ID); err != nil {
		return err
	}

	s.publish(ctx, messaging.EventPayrollRunAbandoned, messaging.PayrollRunAbandonedEvent{
		RunID:       run.ID,
		AbandonedBy: actor.ActorID(ctx),
		AtStep:      run.CurrentStep,
	})
	s.log.Info().Str("run_id", run.ID).Int("at_step", run.CurrentStep).Msg("payroll run abandoned")
	return nil
}

// currentWizard loads the active run and rebuilds its wizard
func (s *Service) currentWizard(ctx context.Context) (*wizard.Wizard, error) {
	run, err := s.repo.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.buildWizard(ctx, run.ID)
}

func (s *Service) buildWizard(ctx context.Context, runID string) (*wizard.Wizard, error) {
	w, err := wizard.New(WizardName, Steps(StepDeps{Client: s.client, Publisher: s.publisher}), s.log,
		wizard.WithStore(&progressStore{repo: s.repo, runID: runID}),
		wizard.WithSaveMode(wizard.SaveSync),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish payroll event")
	}
}

// view renders the wizard into the run view
func (s *Service) view(w *wizard.Wizard) *RunView {
	current := w.CurrentStep()
	state := w.State()

	steps := make([]StepView, 0, w.StepCount())
	for _, step := range w.Steps() {
		status := string(wizard.StatusIdle)
		switch {
		case step.Order < current:
			status = string(wizard.StatusDone)
		case step.Order == current:
			if ws := w.StepStatus(step.Order); ws != wizard.StatusIdle {
				status = string(ws)
			} else if step.CanAdvance(state) {
				status = string(wizard.StatusDone)
			}
		}
		steps = append(steps, StepView{
			Order:       step.Order,
			Name:        step.Name,
			Title:       step.Title,
			Description: step.Description,
			Status:      status,
		})
	}

	return &RunView{
		RunID:       w.RunID(),
		Phase:       string(w.Phase()),
		CurrentStep: current,
		TotalSteps:  w.StepCount(),
		Steps:       steps,
		State:       state.Snapshot(),
	}
}

// emptyView is the view served before any run exists
func (s *Service) emptyView() *RunView {
	stepDefs := Steps(StepDeps{})
	steps := make([]StepView, 0, len(stepDefs))
	for _, step := range stepDefs {
		steps = append(steps, StepView{
			Order:       step.Order,
			Name:        step.Name,
			Title:       step.Title,
			Description: step.Description,
			Status:      string(wizard.StatusIdle),
		})
	}

	return &RunView{
		Phase:       "none",
		CurrentStep: 0,
		TotalSteps:  TotalSteps,
		Steps:       steps,
		State:       map[string]interface{}{},
	}
}
