package payroll

import (
	"context"
	"fmt"

	"github.com/crewflow/crewflow-platform/internal/wizard"
	"github.com/crewflow/crewflow-platform/pkg/actor"
	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
)

// EventPublisher is the subset of the messaging publisher payroll needs
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// StepDeps are the collaborators the step side effects call out to
type StepDeps struct {
	Client    *gatewayclient.Client
	Publisher EventPublisher
}

// Steps builds the eight payroll steps. Gates are cumulative: each step
// requires its own marker in the state, so a resumed run can only sit
// at a step whose predecessors all passed.
func Steps(deps StepDeps) []wizard.Step {
	return []wizard.Step{
		{
			Order:       1,
			Name:        StepEmployeeSelection,
			Title:       "Select Employees",
			Description: "Choose which employees are included in this run",
			Validate: func(s *wizard.State) bool {
				return len(s.GetStringSlice(KeyEmployeeIDs)) >= 1
			},
		},
		{
			Order:       2,
			Name:        StepTimesheetApproval,
			Title:       "Approve Timesheets",
			Description: "Review and approve hours for the pay period",
			Validate: func(s *wizard.State) bool {
				return s.GetBool(KeyTimesheetsApproved)
			},
			Run: func(ctx context.Context, s *wizard.State) error {
				payload := map[string]interface{}{
					"employee_ids":     s.GetStringSlice(KeyEmployeeIDs),
					"pay_period_start": s.GetString(KeyPayPeriodStart),
					"pay_period_end":   s.GetString(KeyPayPeriodEnd),
				}
				_, err := deps.Client.Post(ctx, "/api/payroll/timesheets/approve", payload, nil)
				if err != nil {
					return err
				}
				s.Set(KeyTimesheetsApproved, true)
				return nil
			},
		},
		{
			Order:       3,
			Name:        StepCalculation,
			Title:       "Calculate Pay",
			Description: "Compute gross pay, taxes and net pay per employee",
			Validate: func(s *wizard.State) bool {
				_, ok := s.Get(KeyCalculation)
				return ok
			},
			Run: func(ctx context.Context, s *wizard.State) error {
				payload := map[string]interface{}{
					"employee_ids":     s.GetStringSlice(KeyEmployeeIDs),
					"pay_period_start": s.GetString(KeyPayPeriodStart),
					"pay_period_end":   s.GetString(KeyPayPeriodEnd),
				}
				raw, err := deps.Client.Post(ctx, "/api/payroll/calculate", payload, nil)
				if err != nil {
					return err
				}
				var calc Calculation
				if err := gatewayclient.Decode(raw, &calc); err != nil {
					return err
				}
				s.Set(KeyCalculation, calc)
				return nil
			},
		},
		{
			Order:       4,
			Name:        StepDeductionReview,
			Title:       "Review Deductions",
			Description: "Verify benefit and garnishment deductions",
			Validate: func(s *wizard.State) bool {
				return s.GetBool(KeyDeductionsReviewed)
			},
		},
		{
			Order:       5,
			Name:        StepApproval,
			Title:       "Approve Run",
			Description: "Sign off on the calculated totals",
			Validate: func(s *wizard.State) bool {
				return s.GetString(KeyApprovedBy) != ""
			},
			Run: func(ctx context.Context, s *wizard.State) error {
				s.Set(KeyApprovedBy, actor.ActorID(ctx))
				return nil
			},
		},
		{
			Order:       6,
			Name:        StepFunding,
			Title:       "Confirm Funding",
			Description: "Verify the funding account covers the net total",
			Validate: func(s *wizard.State) bool {
				return s.GetBool(KeyFundingConfirmed)
			},
			Run: func(ctx context.Context, s *wizard.State) error {
				calc := calculationFromState(s)
				payload := map[string]interface{}{
					"net_total": calc.NetTotal,
				}
				_, err := deps.Client.Post(ctx, "/api/payroll/funding/confirm", payload, nil)
				if err != nil {
					return err
				}
				s.Set(KeyFundingConfirmed, true)
				return nil
			},
		},
		{
			Order:       7,
			Name:        StepPaymentDispatch,
			Title:       "Dispatch Payments",
			Description: "Send payments for processing",
			Validate: func(s *wizard.State) bool {
				return s.GetBool(KeyPaymentsDispatched)
			},
			Run: func(ctx context.Context, s *wizard.State) error {
				calc := calculationFromState(s)
				payload := map[string]interface{}{
					"employee_ids": s.GetStringSlice(KeyEmployeeIDs),
				}
				_, err := deps.Client.Post(ctx, "/api/payroll/payments/dispatch", payload, nil)
				if err != nil {
					return err
				}
				s.Set(KeyPaymentsDispatched, true)

				if deps.Publisher != nil {
					pubErr := deps.Publisher.Publish(ctx, messaging.EventPaymentsDispatched, messaging.PaymentsDispatchedEvent{
						PaymentCount: len(calc.Employees),
						NetTotal:     calc.NetTotal,
						Method:       "direct_deposit",
					})
					if pubErr != nil {
						return fmt.Errorf("payments dispatched but event publish failed: %w", pubErr)
					}
				}
				return nil
			},
		},
		{
			Order:       8,
			Name:        StepDistribution,
			Title:       "Distribute Paystubs",
			Description: "Generate and deliver paystubs to employees",
			Validate: func(s *wizard.State) bool {
				return s.GetBool(KeyPaystubsDistributed)
			},
			Run: func(ctx context.Context, s *wizard.State) error {
				payload := map[string]interface{}{
					"employee_ids": s.GetStringSlice(KeyEmployeeIDs),
				}
				_, err := deps.Client.Post(ctx, "/api/payroll/paystubs/distribute", payload, nil)
				if err != nil {
					return err
				}
				s.Set(KeyPaystubsDistributed, true)

				if deps.Publisher != nil {
					pubErr := deps.Publisher.Publish(ctx, messaging.EventPaystubsGenerated, messaging.PaystubsGeneratedEvent{
						Employees: len(s.GetStringSlice(KeyEmployeeIDs)),
					})
					if pubErr != nil {
						return fmt.Errorf("paystubs distributed but event publish failed: %w", pubErr)
					}
				}
				return nil
			},
		},
	}
}

// calculationFromState reads the calculation out of the state bag. The
// value is a Calculation right after the step runs, and a decoded JSON
// map after a resume.
func calculationFromState(s *wizard.State) Calculation {
	v, ok := s.Get(KeyCalculation)
	if !ok {
		return Calculation{}
	}

	switch calc := v.(type) {
	case Calculation:
		return calc
	case map[string]interface{}:
		out := Calculation{}
		if n, ok := calc["gross_total"].(float64); ok {
			out.GrossTotal = n
		}
		if n, ok := calc["tax_total"].(float64); ok {
			out.TaxTotal = n
		}
		if n, ok := calc["net_total"].(float64); ok {
			out.NetTotal = n
		}
		if emps, ok := calc["employees"].([]interface{}); ok {
			for _, e := range emps {
				if em, ok := e.(map[string]interface{}); ok {
					pay := EmployeePay{}
					if id, ok := em["employee_id"].(string); ok {
						pay.EmployeeID = id
					}
					if n, ok := em["net"].(float64); ok {
						pay.Net = n
					}
					out.Employees = append(out.Employees, pay)
				}
			}
		}
		return out
	}
	return Calculation{}
}
