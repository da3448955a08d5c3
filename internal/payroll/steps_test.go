package payroll

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewflow/crewflow-platform/internal/wizard"
	"github.com/crewflow/crewflow-platform/pkg/actor"
	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
	"github.com/crewflow/crewflow-platform/pkg/testutil"
)

func newStepsClient(t *testing.T, baseURL string) *gatewayclient.Client {
	t.Helper()
	resolver := tenant.NewResolver(logger.Nop(), tenant.NewMemoryStore())
	return gatewayclient.New(baseURL, resolver, logger.Nop())
}

func newPayrollWizard(t *testing.T, deps StepDeps) *wizard.Wizard {
	t.Helper()
	w, err := wizard.New(WizardName, Steps(deps), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	return w
}

func TestEmployeeSelection_RequiresAtLeastOneEmployee(t *testing.T) {
	w := newPayrollWizard(t, StepDeps{})

	// No employees selected: step 1 blocks
	err := w.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, w.CurrentStep())

	// Empty selection still blocks
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{
		KeyEmployeeIDs: []string{},
	}))
	require.Error(t, w.Next(context.Background()))

	// One employee is enough
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{
		KeyEmployeeIDs: []string{"emp-1"},
	}))
	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, 2, w.CurrentStep())
}

func TestCalculationStep_StoresCalculation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payroll/calculate/", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["employee_ids"])

		json.NewEncoder(w).Encode(Calculation{
			Employees:  []EmployeePay{{EmployeeID: "emp-1", Gross: 2000, Net: 1500}},
			GrossTotal: 2000,
			TaxTotal:   400,
			NetTotal:   1500,
		})
	}))
	defer server.Close()

	w := newPayrollWizard(t, StepDeps{Client: newStepsClient(t, server.URL)})
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{
		KeyEmployeeIDs: []string{"emp-1"},
	}))

	// Walk to the calculation step
	require.NoError(t, w.Next(context.Background()))
	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{
		KeyTimesheetsApproved: true,
	}))
	require.NoError(t, w.Next(context.Background()))
	require.Equal(t, 3, w.CurrentStep())

	// Before the step runs, the gate blocks
	require.Error(t, w.Next(context.Background()))

	require.NoError(t, w.RunCurrent(context.Background()))
	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, 4, w.CurrentStep())

	calc := calculationFromState(w.State())
	assert.Equal(t, 1500.0, calc.NetTotal)
}

func TestApprovalStep_RecordsActor(t *testing.T) {
	w := newPayrollWizard(t, StepDeps{})

	ctx := actor.WithActor(context.Background(), &actor.Actor{
		ID:        "aaaaaaaa-0000-0000-0000-000000000001",
		FirstName: "Pat",
		Email:     "pat@crewflow.io",
	})

	// Jump the state to the approval step's position
	require.NoError(t, w.UpdateState(ctx, map[string]interface{}{
		KeyEmployeeIDs:        []string{"emp-1"},
		KeyTimesheetsApproved: true,
		KeyCalculation:        map[string]interface{}{"net_total": 100.0},
		KeyDeductionsReviewed: true,
	}))
	for w.CurrentStep() < 5 {
		require.NoError(t, w.Next(ctx))
	}

	require.NoError(t, w.RunCurrent(ctx))
	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000001", w.State().GetString(KeyApprovedBy))
	require.NoError(t, w.Next(ctx))
}

func TestPaymentDispatchStep_PublishesEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dispatched":true}`))
	}))
	defer server.Close()

	publisher := testutil.NewMockPublisher()
	w := newPayrollWizard(t, StepDeps{
		Client:    newStepsClient(t, server.URL),
		Publisher: publisher,
	})

	require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{
		KeyEmployeeIDs: []string{"emp-1", "emp-2"},
		KeyCalculation: map[string]interface{}{"net_total": 3000.0},
	}))
	for w.CurrentStep() < 7 {
		require.NoError(t, w.UpdateState(context.Background(), map[string]interface{}{
			KeyTimesheetsApproved: true,
			KeyDeductionsReviewed: true,
			KeyApprovedBy:         "mgr-1",
			KeyFundingConfirmed:   true,
		}))
		require.NoError(t, w.Next(context.Background()))
	}

	require.NoError(t, w.RunCurrent(context.Background()))

	publisher.AssertEventPublished(t, messaging.EventPaymentsDispatched)
	assert.True(t, w.State().GetBool(KeyPaymentsDispatched))
}

func TestFullRun_WalksAllEightSteps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/payroll/calculate/" {
			json.NewEncoder(w).Encode(Calculation{
				Employees:  []EmployeePay{{EmployeeID: "emp-1", Net: 900}},
				GrossTotal: 1200,
				NetTotal:   900,
			})
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	publisher := testutil.NewMockPublisher()
	w := newPayrollWizard(t, StepDeps{
		Client:    newStepsClient(t, server.URL),
		Publisher: publisher,
	})

	ctx := context.Background()
	require.NoError(t, w.UpdateState(ctx, map[string]interface{}{
		KeyEmployeeIDs: []string{"emp-1"},
	}))

	for w.Phase() != wizard.PhaseComplete {
		require.NoError(t, w.RunCurrent(ctx), "step %d failed", w.CurrentStep())

		// Manual review steps get their checkmarks from the user
		switch w.CurrentStep() {
		case 4:
			require.NoError(t, w.UpdateState(ctx, map[string]interface{}{KeyDeductionsReviewed: true}))
		case 5:
			require.NoError(t, w.UpdateState(ctx, map[string]interface{}{KeyApprovedBy: "mgr-1"}))
		}

		require.NoError(t, w.Next(ctx))
	}

	assert.Equal(t, wizard.PhaseComplete, w.Phase())
	publisher.AssertEventPublished(t, messaging.EventPaymentsDispatched)
	publisher.AssertEventPublished(t, messaging.EventPaystubsGenerated)
}
