package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Payroll run lifecycle events
	EventPayrollRunStarted   = "payroll.run.started"
	EventPayrollStepAdvanced = "payroll.step.advanced"
	EventPayrollStepFailed   = "payroll.step.failed"
	EventPayrollRunCompleted = "payroll.run.completed"
	EventPayrollRunAbandoned = "payroll.run.abandoned"

	// Payment events
	EventPaymentsDispatched = "payroll.payments.dispatched"
	EventPaystubsGenerated  = "payroll.paystubs.generated"

	// Estimate events
	EventEstimateConverted = "estimate.converted"

	// Inventory events
	EventInventorySnapshotSaved = "inventory.snapshot.saved"
	EventInventoryFallbackUsed  = "inventory.fallback.used"

	// Tenant events
	EventTenantSwitched = "tenant.switched"
)

// Exchange names
const (
	ExchangePayrollEvents   = "payroll.events"
	ExchangeEstimateEvents  = "estimate.events"
	ExchangeInventoryEvents = "inventory.events"
	ExchangeTenantEvents    = "tenant.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Payroll Events

// PayrollRunStartedEvent is published when a payroll run begins
type PayrollRunStartedEvent struct {
	RunID         string    `json:"run_id"`
	TenantID      string    `json:"tenant_id"`
	BusinessID    string    `json:"business_id,omitempty"`
	StartedBy     string    `json:"started_by"`
	PayPeriodFrom time.Time `json:"pay_period_from"`
	PayPeriodTo   time.Time `json:"pay_period_to"`
	TotalSteps    int       `json:"total_steps"`
}

// PayrollStepAdvancedEvent is published when a run moves to the next step
type PayrollStepAdvancedEvent struct {
	RunID     string `json:"run_id"`
	TenantID  string `json:"tenant_id"`
	FromStep  int    `json:"from_step"`
	ToStep    int    `json:"to_step"`
	StepName  string `json:"step_name"`
	Employees int    `json:"employees,omitempty"`
}

// PayrollStepFailedEvent is published when a step errors out
type PayrollStepFailedEvent struct {
	RunID    string `json:"run_id"`
	TenantID string `json:"tenant_id"`
	Step     int    `json:"step"`
	StepName string `json:"step_name"`
	Reason   string `json:"reason"`
}

// PayrollRunCompletedEvent is published when all steps are done
type PayrollRunCompletedEvent struct {
	RunID       string  `json:"run_id"`
	TenantID    string  `json:"tenant_id"`
	CompletedBy string  `json:"completed_by"`
	Employees   int     `json:"employees"`
	GrossTotal  float64 `json:"gross_total"`
	NetTotal    float64 `json:"net_total"`
}

// PayrollRunAbandonedEvent is published when a run is restarted or discarded
type PayrollRunAbandonedEvent struct {
	RunID       string `json:"run_id"`
	TenantID    string `json:"tenant_id"`
	AbandonedBy string `json:"abandoned_by"`
	AtStep      int    `json:"at_step"`
}

// PaymentsDispatchedEvent is published when payments are sent for processing
type PaymentsDispatchedEvent struct {
	RunID        string  `json:"run_id"`
	TenantID     string  `json:"tenant_id"`
	PaymentCount int     `json:"payment_count"`
	NetTotal     float64 `json:"net_total"`
	Method       string  `json:"method"`
}

// PaystubsGeneratedEvent is published when paystubs are distributed
type PaystubsGeneratedEvent struct {
	RunID     string `json:"run_id"`
	TenantID  string `json:"tenant_id"`
	Employees int    `json:"employees"`
}

// Estimate Events

// EstimateConvertedEvent is published when an estimate becomes an invoice
type EstimateConvertedEvent struct {
	EstimateID  string `json:"estimate_id"`
	InvoiceID   string `json:"invoice_id"`
	TenantID    string `json:"tenant_id"`
	ConvertedBy string `json:"converted_by"`
}

// Inventory Events

// InventorySnapshotSavedEvent is published when a product snapshot is cached locally
type InventorySnapshotSavedEvent struct {
	TenantID     string    `json:"tenant_id"`
	ProductCount int       `json:"product_count"`
	SavedAt      time.Time `json:"saved_at"`
}

// InventoryFallbackUsedEvent is published when product data had to be served
// from a snapshot or placeholder because the upstream API was unreachable
type InventoryFallbackUsedEvent struct {
	TenantID string `json:"tenant_id"`
	Source   string `json:"source"`
	Reason   string `json:"reason"`
}

// Tenant Events

// TenantSwitchedEvent is published when the active tenant changes
type TenantSwitchedEvent struct {
	TenantID   string `json:"tenant_id"`
	SchemaName string `json:"schema_name"`
	BusinessID string `json:"business_id,omitempty"`
	SwitchedBy string `json:"switched_by,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
