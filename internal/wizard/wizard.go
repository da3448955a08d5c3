// Package wizard implements a step-driven flow orchestrator. A wizard
// owns an ordered list of steps, a shared state bag, and a progress
// store so a half-finished flow can be resumed later.
//
// Movement rules:
//   - Next validates the current step before advancing
//   - Back always works
//   - JumpTo only moves backward, to revisit a completed step
package wizard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/logger"
)

// Phase is the coarse lifecycle of the wizard itself
type Phase string

const (
	// PhaseLoading means saved progress has not been loaded yet
	PhaseLoading Phase = "loading"

	// PhaseStep means the wizard is positioned on a step
	PhaseStep Phase = "step"

	// PhaseComplete means the final step finished
	PhaseComplete Phase = "complete"
)

// Progress is the persisted checkpoint of a wizard
type Progress struct {
	RunID       string                 `json:"run_id,omitempty"`
	CurrentStep int                    `json:"current_step"`
	State       map[string]interface{} `json:"state"`
	Completed   bool                   `json:"completed,omitempty"`
}

// ProgressStore loads and saves wizard checkpoints. Load returns
// (nil, nil) when no saved progress exists.
type ProgressStore interface {
	Load(ctx context.Context) (*Progress, error)
	Save(ctx context.Context, p *Progress) error
}

// SaveMode controls whether Save is awaited on each transition
type SaveMode int

const (
	// SaveSync awaits the store on every transition. Use this when a
	// lost checkpoint would repeat a side effect.
	SaveSync SaveMode = iota

	// SaveAsync fires the save in the background and only logs
	// failures. Use this for pure data-collection flows.
	SaveAsync
)

// Wizard orchestrates movement through an ordered set of steps
type Wizard struct {
	name     string
	steps    []Step
	store    ProgressStore
	saveMode SaveMode
	log      *logger.Logger

	mu       sync.Mutex
	phase    Phase
	current  int
	runID    string
	state    *State
	statuses map[int]StepStatus
}

// Option configures a wizard
type Option func(*Wizard)

// WithStore sets the progress store. Without a store the wizard works
// purely in memory.
func WithStore(store ProgressStore) Option {
	return func(w *Wizard) {
		w.store = store
	}
}

// WithSaveMode sets how transitions are persisted
func WithSaveMode(mode SaveMode) Option {
	return func(w *Wizard) {
		w.saveMode = mode
	}
}

// New creates a wizard from the given steps. Steps must have contiguous
// 1-based orders; duplicates or gaps are a programming error.
func New(name string, steps []Step, log *logger.Logger, opts ...Option) (*Wizard, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("wizard %s: no steps defined", name)
	}

	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for i, st := range sorted {
		if st.Order != i+1 {
			return nil, fmt.Errorf("wizard %s: step orders must be contiguous from 1, got %d at position %d", name, st.Order, i)
		}
		if st.Name == "" {
			return nil, fmt.Errorf("wizard %s: step %d has no name", name, st.Order)
		}
	}

	w := &Wizard{
		name:     name,
		steps:    sorted,
		saveMode: SaveSync,
		log:      log,
		phase:    PhaseLoading,
		current:  1,
		state:    NewState(),
		statuses: make(map[int]StepStatus),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start loads saved progress and positions the wizard. When the store
// has a checkpoint the wizard resumes at the saved step with the saved
// state. When there is none it starts fresh at step 1. A load failure
// leaves the wizard in the loading phase so the caller can retry.
func (w *Wizard) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseLoading {
		return errors.Conflict("wizard already started")
	}

	if w.store != nil {
		progress, err := w.store.Load(ctx)
		if err != nil {
			w.log.Error().Err(err).Str("wizard", w.name).Msg("failed to load wizard progress")
			return err
		}
		if progress != nil {
			w.resumeLocked(progress)
			return nil
		}
	}

	w.phase = PhaseStep
	w.current = 1
	w.log.Info().Str("wizard", w.name).Msg("wizard started fresh")
	return nil
}

func (w *Wizard) resumeLocked(p *Progress) {
	w.runID = p.RunID
	w.current = p.CurrentStep
	if w.current < 1 {
		w.current = 1
	}
	if w.current > len(w.steps) {
		w.current = len(w.steps)
	}
	w.state = NewStateFrom(p.State)

	if p.Completed {
		w.phase = PhaseComplete
	} else {
		w.phase = PhaseStep
	}

	w.log.Info().
		Str("wizard", w.name).
		Int("step", w.current).
		Msg("wizard resumed from saved progress")
}

// SetRunID associates a run identifier with the wizard's checkpoints
func (w *Wizard) SetRunID(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runID = id
}

// RunID returns the associated run identifier
func (w *Wizard) RunID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runID
}

// Next validates the current step and moves forward one step. At the
// last step it marks the wizard complete instead.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase == PhaseLoading {
		return errors.Conflict("wizard has not been started")
	}
	if w.phase == PhaseComplete {
		return errors.Conflict("wizard already completed")
	}

	step := w.steps[w.current-1]
	if !step.CanAdvance(w.state) {
		return errors.BadRequest(fmt.Sprintf("step %q is not complete", step.Name))
	}

	if w.current == len(w.steps) {
		w.phase = PhaseComplete
		return w.persistLocked(ctx)
	}

	w.current++
	w.log.Debug().
		Str("wizard", w.name).
		Int("step", w.current).
		Msg("wizard advanced")

	return w.persistLocked(ctx)
}

// Back moves one step backward. No validation applies; the user can
// always revisit earlier input.
func (w *Wizard) Back(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase == PhaseLoading {
		return errors.Conflict("wizard has not been started")
	}

	if w.current <= 1 {
		return errors.BadRequest("already at the first step")
	}

	if w.phase == PhaseComplete {
		w.phase = PhaseStep
	}
	w.current--

	return w.persistLocked(ctx)
}

// JumpTo moves directly to an earlier step. Forward jumps are refused
// so validation gates cannot be skipped.
func (w *Wizard) JumpTo(ctx context.Context, target int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase == PhaseLoading {
		return errors.Conflict("wizard has not been started")
	}

	if target < 1 || target > len(w.steps) {
		return errors.BadRequest(fmt.Sprintf("step %d is out of range", target))
	}
	if target >= w.current {
		return errors.BadRequest("can only jump to a previous step")
	}

	if w.phase == PhaseComplete {
		w.phase = PhaseStep
	}
	w.current = target

	return w.persistLocked(ctx)
}

// RunCurrent executes the current step's side effect, tracking its
// status. A step that is already running is not triggered twice.
func (w *Wizard) RunCurrent(ctx context.Context) error {
	w.mu.Lock()

	if w.phase != PhaseStep {
		w.mu.Unlock()
		return errors.Conflict("wizard is not on a step")
	}

	stepNum := w.current
	step := w.steps[stepNum-1]

	if step.Run == nil {
		w.statuses[stepNum] = StatusDone
		w.mu.Unlock()
		return nil
	}

	if w.statuses[stepNum] == StatusLoading {
		w.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("step %q is already running", step.Name))
	}

	w.statuses[stepNum] = StatusLoading
	state := w.state
	w.mu.Unlock()

	err := step.Run(ctx, state)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.statuses[stepNum] = StatusErrored
		w.log.Error().Err(err).
			Str("wizard", w.name).
			Int("step", stepNum).
			Str("step_name", step.Name).
			Msg("wizard step failed")
		return err
	}

	w.statuses[stepNum] = StatusDone
	return nil
}

// UpdateState merges values into the wizard state and persists the
// checkpoint
func (w *Wizard) UpdateState(ctx context.Context, values map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.Update(values)
	return w.persistLocked(ctx)
}

// Restart abandons current progress and returns to step 1 with empty
// state
func (w *Wizard) Restart(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.phase = PhaseStep
	w.current = 1
	w.state = NewState()
	w.statuses = make(map[int]StepStatus)

	return w.persistLocked(ctx)
}

// persistLocked saves a checkpoint according to the save mode. Callers
// must hold w.mu.
func (w *Wizard) persistLocked(ctx context.Context) error {
	if w.store == nil {
		return nil
	}

	p := &Progress{
		RunID:       w.runID,
		CurrentStep: w.current,
		State:       w.state.Snapshot(),
		Completed:   w.phase == PhaseComplete,
	}

	if w.saveMode == SaveAsync {
		go func() {
			if err := w.store.Save(context.WithoutCancel(ctx), p); err != nil {
				w.log.Warn().Err(err).
					Str("wizard", w.name).
					Int("step", p.CurrentStep).
					Msg("failed to save wizard progress")
			}
		}()
		return nil
	}

	if err := w.store.Save(ctx, p); err != nil {
		w.log.Error().Err(err).
			Str("wizard", w.name).
			Int("step", p.CurrentStep).
			Msg("failed to save wizard progress")
		return err
	}
	return nil
}

// Name returns the wizard's name
func (w *Wizard) Name() string {
	return w.name
}

// Phase returns the wizard's current phase
func (w *Wizard) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// CurrentStep returns the 1-based current step number
func (w *Wizard) CurrentStep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// StepCount returns the number of steps
func (w *Wizard) StepCount() int {
	return len(w.steps)
}

// Steps returns the ordered step definitions
func (w *Wizard) Steps() []Step {
	return w.steps
}

// StepStatus returns the execution status of the given step
func (w *Wizard) StepStatus(step int) StepStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	if status, ok := w.statuses[step]; ok {
		return status
	}
	return StatusIdle
}

// State returns the wizard's shared state
func (w *Wizard) State() *State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
