package wizard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewflow/crewflow-platform/pkg/logger"
)

type memStore struct {
	mu      sync.Mutex
	saved   []*Progress
	loadRet *Progress
	loadErr error
	saveErr error
}

func (m *memStore) Load(ctx context.Context) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadRet, m.loadErr
}

func (m *memStore) Save(ctx context.Context, p *Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, p)
	return nil
}

func (m *memStore) lastSaved() *Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

func threeSteps() []Step {
	return []Step{
		{Order: 1, Name: "collect", Title: "Collect"},
		{Order: 2, Name: "review", Title: "Review", Validate: func(s *State) bool {
			return s.GetBool("reviewed")
		}},
		{Order: 3, Name: "confirm", Title: "Confirm"},
	}
}

func newTestWizard(t *testing.T, store ProgressStore) *Wizard {
	t.Helper()
	w, err := New("test-flow", threeSteps(), logger.Nop(), WithStore(store))
	require.NoError(t, err)
	return w
}

func TestNew_RejectsBadStepOrders(t *testing.T) {
	steps := []Step{
		{Order: 1, Name: "a"},
		{Order: 3, Name: "b"},
	}
	_, err := New("broken", steps, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contiguous")
}

func TestNew_RejectsEmptySteps(t *testing.T) {
	_, err := New("empty", nil, logger.Nop())
	require.Error(t, err)
}

func TestStart_FreshBeginsAtStepOne(t *testing.T) {
	w := newTestWizard(t, &memStore{})

	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, PhaseStep, w.Phase())
	assert.Equal(t, 1, w.CurrentStep())
}

func TestStart_ResumesSavedProgress(t *testing.T) {
	store := &memStore{
		loadRet: &Progress{
			RunID:       "run-1",
			CurrentStep: 2,
			State:       map[string]interface{}{"reviewed": true},
		},
	}
	w := newTestWizard(t, store)

	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, 2, w.CurrentStep())
	assert.Equal(t, "run-1", w.RunID())
	assert.True(t, w.State().GetBool("reviewed"))
}

func TestStart_LoadFailureStaysLoading(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("network down")}
	w := newTestWizard(t, store)

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseLoading, w.Phase())

	// Retry after the store recovers
	store.mu.Lock()
	store.loadErr = nil
	store.mu.Unlock()
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, PhaseStep, w.Phase())
}

func TestStart_ClampsOutOfRangeStep(t *testing.T) {
	store := &memStore{loadRet: &Progress{CurrentStep: 99}}
	w := newTestWizard(t, store)

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, 3, w.CurrentStep())
}

func TestNext_AdvancesAndSaves(t *testing.T) {
	store := &memStore{}
	w := newTestWizard(t, store)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Next(context.Background()))

	assert.Equal(t, 2, w.CurrentStep())
	saved := store.lastSaved()
	require.NotNil(t, saved)
	assert.Equal(t, 2, saved.CurrentStep)
}

func TestNext_BlockedByValidationGate(t *testing.T) {
	w := newTestWizard(t, &memStore{})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Next(context.Background()))

	// Step 2 requires "reviewed" to be set
	err := w.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, w.CurrentStep())

	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{"reviewed": true}))
	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, 3, w.CurrentStep())
}

func TestNext_LastStepCompletes(t *testing.T) {
	store := &memStore{}
	w := newTestWizard(t, store)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{"reviewed": true}))
	require.NoError(t, w.Next(context.Background()))
	require.NoError(t, w.Next(context.Background()))

	require.NoError(t, w.Next(context.Background()))

	assert.Equal(t, PhaseComplete, w.Phase())
	assert.True(t, store.lastSaved().Completed)

	// Completed wizard refuses further advances
	require.Error(t, w.Next(context.Background()))
}

func TestNext_SaveFailureSurfaces(t *testing.T) {
	store := &memStore{saveErr: fmt.Errorf("disk full")}
	w := newTestWizard(t, store)
	require.NoError(t, w.Start(context.Background()))

	err := w.Next(context.Background())
	require.Error(t, err)
}

func TestBack_IgnoresValidation(t *testing.T) {
	w := newTestWizard(t, &memStore{})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Next(context.Background()))

	// "reviewed" is unset so Next is blocked, Back is not
	require.NoError(t, w.Back(context.Background()))
	assert.Equal(t, 1, w.CurrentStep())
}

func TestBack_AtFirstStepFails(t *testing.T) {
	w := newTestWizard(t, &memStore{})
	require.NoError(t, w.Start(context.Background()))

	require.Error(t, w.Back(context.Background()))
	assert.Equal(t, 1, w.CurrentStep())
}

func TestJumpTo_OnlyBackward(t *testing.T) {
	w := newTestWizard(t, &memStore{})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{"reviewed": true}))
	require.NoError(t, w.Next(context.Background()))
	require.NoError(t, w.Next(context.Background()))

	// Forward and same-step jumps refused
	require.Error(t, w.JumpTo(context.Background(), 3))
	require.Error(t, w.JumpTo(context.Background(), 5))

	require.NoError(t, w.JumpTo(context.Background(), 1))
	assert.Equal(t, 1, w.CurrentStep())
}

func TestRunCurrent_StatusTransitions(t *testing.T) {
	ran := false
	steps := []Step{
		{Order: 1, Name: "work", Run: func(ctx context.Context, s *State) error {
			ran = true
			s.Set("result", "ok")
			return nil
		}},
	}
	w, err := New("runner", steps, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, StatusIdle, w.StepStatus(1))
	require.NoError(t, w.RunCurrent(context.Background()))
	assert.True(t, ran)
	assert.Equal(t, StatusDone, w.StepStatus(1))
	assert.Equal(t, "ok", w.State().GetString("result"))
}

func TestRunCurrent_FailureMarksErrored(t *testing.T) {
	steps := []Step{
		{Order: 1, Name: "boom", Run: func(ctx context.Context, s *State) error {
			return fmt.Errorf("upstream rejected")
		}},
	}
	w, err := New("runner", steps, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.Error(t, w.RunCurrent(context.Background()))
	assert.Equal(t, StatusErrored, w.StepStatus(1))

	// An errored step can be retried
	steps[0].Run = nil
	require.Error(t, w.RunCurrent(context.Background())) // original Run still bound
}

func TestRunCurrent_RejectsConcurrentTrigger(t *testing.T) {
	release := make(chan struct{})
	steps := []Step{
		{Order: 1, Name: "slow", Run: func(ctx context.Context, s *State) error {
			<-release
			return nil
		}},
	}
	w, err := New("runner", steps, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- w.RunCurrent(context.Background())
	}()

	// Wait for the step to report loading
	deadline := time.Now().Add(2 * time.Second)
	for w.StepStatus(1) != StatusLoading {
		if time.Now().After(deadline) {
			t.Fatal("step never entered loading status")
		}
		time.Sleep(time.Millisecond)
	}

	// Second trigger while loading is refused
	require.Error(t, w.RunCurrent(context.Background()))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusDone, w.StepStatus(1))
}

func TestRunCurrent_NilRunIsDone(t *testing.T) {
	w := newTestWizard(t, &memStore{})
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.RunCurrent(context.Background()))
	assert.Equal(t, StatusDone, w.StepStatus(1))
}

func TestRestart_ResetsEverything(t *testing.T) {
	store := &memStore{}
	w := newTestWizard(t, store)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{"reviewed": true}))
	require.NoError(t, w.Next(context.Background()))

	require.NoError(t, w.Restart(context.Background()))

	assert.Equal(t, 1, w.CurrentStep())
	assert.Equal(t, PhaseStep, w.Phase())
	_, ok := w.State().Get("reviewed")
	assert.False(t, ok)
}

func TestState_UpdateMerges(t *testing.T) {
	s := NewState()
	s.Update(map[string]interface{}{"a": 1, "b": "keep"})
	s.Update(map[string]interface{}{"a": 2})

	assert.Equal(t, float64(0), s.GetFloat("missing"))
	assert.Equal(t, "keep", s.GetString("b"))
	v, _ := s.Get("a")
	assert.Equal(t, 2, v)
}

func TestState_StringSliceHandlesJSONShapes(t *testing.T) {
	s := NewState()
	s.Set("ids", []interface{}{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, s.GetStringSlice("ids"))

	s.Set("ids", []string{"c"})
	assert.Equal(t, []string{"c"}, s.GetStringSlice("ids"))
}
