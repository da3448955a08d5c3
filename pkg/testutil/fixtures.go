package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmployeeFixture represents test employee data as returned by the core API
type EmployeeFixture struct {
	ID             string
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	Position       string
	Department     string
	Country        string
	PayType        string
	HourlyRate     float64
	HireDate       time.Time
	Status         string
}

// TimesheetFixture represents test timesheet data for a pay period
type TimesheetFixture struct {
	ID           string
	EmployeeID   string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	RegularHours float64
	OvertimeHours float64
	Approved     bool
}

// ProductFixture represents test product/material data
type ProductFixture struct {
	ID       string
	Name     string
	SKU      string
	Category string
	Unit     string
	Price    float64
	Quantity int
}

// EstimateFixture represents test estimate data
type EstimateFixture struct {
	ID         string
	Number     string
	CustomerID string
	Status     string
	Total      float64
	CreatedAt  time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Employee creates an employee fixture with defaults
func (f *FixtureFactory) Employee(opts ...func(*EmployeeFixture)) EmployeeFixture {
	seq := f.nextSeq()

	emp := EmployeeFixture{
		ID:             uuid.New().String(),
		EmployeeNumber: fmt.Sprintf("EMP-%04d", seq),
		FirstName:      fmt.Sprintf("Employee%d", seq),
		LastName:       "Test",
		Email:          fmt.Sprintf("employee%d@test.crewflow.io", seq),
		Position:       "Technician",
		Department:     "Field",
		Country:        "US",
		PayType:        "hourly",
		HourlyRate:     25.00,
		HireDate:       time.Now().AddDate(-1, 0, 0),
		Status:         "active",
	}

	for _, opt := range opts {
		opt(&emp)
	}

	return emp
}

// WithEmployeeName sets the employee's first and last name
func WithEmployeeName(first, last string) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.FirstName = first
		e.LastName = last
	}
}

// WithPayType sets the employee's pay type and rate
func WithPayType(payType string, rate float64) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.PayType = payType
		e.HourlyRate = rate
	}
}

// WithCountry sets the employee's country
func WithCountry(country string) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.Country = country
	}
}

// WithEmployeeStatus sets the employee's status
func WithEmployeeStatus(status string) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.Status = status
	}
}

// Timesheet creates a timesheet fixture for the given employee
func (f *FixtureFactory) Timesheet(employeeID string, opts ...func(*TimesheetFixture)) TimesheetFixture {
	periodEnd := time.Now().Truncate(24 * time.Hour)
	periodStart := periodEnd.AddDate(0, 0, -14)

	ts := TimesheetFixture{
		ID:           uuid.New().String(),
		EmployeeID:   employeeID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		RegularHours: 80,
		OvertimeHours: 0,
		Approved:     false,
	}

	for _, opt := range opts {
		opt(&ts)
	}

	return ts
}

// WithHours sets regular and overtime hours on a timesheet
func WithHours(regular, overtime float64) func(*TimesheetFixture) {
	return func(t *TimesheetFixture) {
		t.RegularHours = regular
		t.OvertimeHours = overtime
	}
}

// Approved marks the timesheet as approved
func Approved() func(*TimesheetFixture) {
	return func(t *TimesheetFixture) {
		t.Approved = true
	}
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()

	p := ProductFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Test Product %d", seq),
		SKU:      fmt.Sprintf("SKU-%04d", seq),
		Category: "Materials",
		Unit:     "each",
		Price:    19.99,
		Quantity: 100,
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithProductName sets the product name
func WithProductName(name string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Name = name
	}
}

// WithSKU sets the product SKU
func WithSKU(sku string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.SKU = sku
	}
}

// Estimate creates an estimate fixture with defaults
func (f *FixtureFactory) Estimate(opts ...func(*EstimateFixture)) EstimateFixture {
	seq := f.nextSeq()

	e := EstimateFixture{
		ID:         uuid.New().String(),
		Number:     fmt.Sprintf("EST-%04d", seq),
		CustomerID: uuid.New().String(),
		Status:     "draft",
		Total:      1250.00,
		CreatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// WithEstimateStatus sets the estimate status
func WithEstimateStatus(status string) func(*EstimateFixture) {
	return func(e *EstimateFixture) {
		e.Status = status
	}
}

// DefaultTestEmployees returns a set of standard test employees
func DefaultTestEmployees(factory *FixtureFactory) []EmployeeFixture {
	return []EmployeeFixture{
		factory.Employee(WithEmployeeName("Sam", "Rivera")),
		factory.Employee(WithEmployeeName("Jordan", "Lee"), WithPayType("salary", 0)),
		factory.Employee(WithEmployeeName("Casey", "Nguyen"), WithCountry("CA")),
		factory.Employee(WithEmployeeName("Alex", "Kim"), WithEmployeeStatus("inactive")),
	}
}
