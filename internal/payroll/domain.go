// Package payroll implements the payroll processing flow: an eight step
// wizard that walks a tenant from employee selection through paystub
// distribution, checkpointing after every transition so a run survives
// restarts and browser sessions.
package payroll

import (
	"encoding/json"
	"time"
)

// Run statuses
const (
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunAbandoned  = "abandoned"
)

// Step names, in order
const (
	StepEmployeeSelection = "employee_selection"
	StepTimesheetApproval = "timesheet_approval"
	StepCalculation       = "calculation"
	StepDeductionReview   = "deduction_review"
	StepApproval          = "approval"
	StepFunding           = "funding"
	StepPaymentDispatch   = "payment_dispatch"
	StepDistribution      = "distribution"
)

// TotalSteps is the number of steps in a payroll run
const TotalSteps = 8

// State keys shared between steps
const (
	KeyEmployeeIDs         = "employee_ids"
	KeyTimesheetsApproved  = "timesheets_approved"
	KeyCalculation         = "calculation"
	KeyDeductionsReviewed  = "deductions_reviewed"
	KeyApprovedBy          = "approved_by"
	KeyFundingConfirmed    = "funding_confirmed"
	KeyPaymentsDispatched  = "payments_dispatched"
	KeyPaystubsDistributed = "paystubs_distributed"
	KeyPayPeriodStart      = "pay_period_start"
	KeyPayPeriodEnd        = "pay_period_end"
)

// Run is the persisted checkpoint of a payroll run. It lives in the
// tenant's schema; at most one run is in progress per tenant.
type Run struct {
	ID             string          `db:"id" json:"id"`
	StartedBy      string          `db:"started_by" json:"started_by"`
	PayPeriodStart *time.Time      `db:"pay_period_start" json:"pay_period_start,omitempty"`
	PayPeriodEnd   *time.Time      `db:"pay_period_end" json:"pay_period_end,omitempty"`
	CurrentStep    int             `db:"current_step" json:"current_step"`
	TotalSteps     int             `db:"total_steps" json:"total_steps"`
	Status         string          `db:"status" json:"status"`
	State          json.RawMessage `db:"state" json:"state"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// StateMap decodes the run's state document
func (r *Run) StateMap() (map[string]interface{}, error) {
	if len(r.State) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(r.State, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// Calculation is the payroll calculation result produced at the
// calculation step and carried in the run state.
type Calculation struct {
	Employees  []EmployeePay `json:"employees"`
	GrossTotal float64       `json:"gross_total"`
	TaxTotal   float64       `json:"tax_total"`
	NetTotal   float64       `json:"net_total"`
}

// EmployeePay is one employee's line in the calculation
type EmployeePay struct {
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name"`
	Gross      float64 `json:"gross"`
	Taxes      float64 `json:"taxes"`
	Deductions float64 `json:"deductions"`
	Net        float64 `json:"net"`
}

// StepView is the per-step slice of the run view
type StepView struct {
	Order       int    `json:"order"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

// RunView is what the payroll screens render: the checkpoint plus step
// metadata and statuses.
type RunView struct {
	RunID       string                 `json:"run_id,omitempty"`
	Phase       string                 `json:"phase"`
	CurrentStep int                    `json:"current_step"`
	TotalSteps  int                    `json:"total_steps"`
	Steps       []StepView             `json:"steps"`
	State       map[string]interface{} `json:"state"`
}
