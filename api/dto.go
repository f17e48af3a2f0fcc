/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the production model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Orders:    OrderDTO, CreateOrderRequest, UpdateOrderRequest
  Ledger:    AdvanceRequest, AssignWorkerRequest, TimelineDTO, StageTimingDTO
  Flows:     FlowDTO, StageDTO
  Calendar:  CalendarDTO, HolidayDTO, CreateHolidayRequest
  Deadlines: DeadlineDTO
  Reports:   DeadlineReportDTO, StageTimeDTO, WorkerTimeDTO, SummaryDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags, checked by
  Handler.decode before any domain call.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDERS
// =============================================================================

// OrderDTO represents a work order in API responses.
type OrderDTO struct {
	ID                string  `json:"id"`
	Number            string  `json:"number"`
	Customer          string  `json:"customer"`
	MotorType         string  `json:"motor_type"`
	Category          string  `json:"category"`
	CategoryLabel     string  `json:"category_label"`
	SecondaryActivity string  `json:"secondary_activity,omitempty"`
	Priority          string  `json:"priority"`
	EntryDate         string  `json:"entry_date,omitempty"`
	AuthorizationDate string  `json:"authorization_date,omitempty"`
	DueDate           string  `json:"due_date,omitempty"`
	Stage             string  `json:"stage"`
	StageLabel        string  `json:"stage_label"`
	NextStage         string  `json:"next_stage,omitempty"`
	Progress          float64 `json:"progress"`
	CurrentWorker     string  `json:"current_worker,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	Rework            string  `json:"rework,omitempty"`
	DelayReason       string  `json:"delay_reason,omitempty"`
	DelaySector       string  `json:"delay_sector,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	ConcludedAt       string  `json:"concluded_at,omitempty"`

	ElapsedMinutes int    `json:"elapsed_minutes"`
	ElapsedDisplay string `json:"elapsed_display"`
	DeadlineTier   string `json:"deadline_tier,omitempty"`
	DaysRemaining  *int   `json:"days_remaining,omitempty"`
}

// CreateOrderRequest is the request to open a work order. Category, stage
// and priority accept identifiers or display labels.
type CreateOrderRequest struct {
	Number            string `json:"number" validate:"required,max=50"`
	Customer          string `json:"customer" validate:"required,max=200"`
	MotorType         string `json:"motor_type" validate:"max=200"`
	Category          string `json:"category" validate:"required"`
	SecondaryActivity string `json:"secondary_activity" validate:"max=200"`
	Priority          string `json:"priority" validate:"omitempty,max=20"`
	EntryDate         string `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	AuthorizationDate string `json:"authorization_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate           string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	CurrentWorker     string `json:"current_worker" validate:"max=100"`
	Notes             string `json:"notes"`
}

// UpdateOrderRequest edits an order. Nil fields are left unchanged; an
// empty due date clears it. The stage is changed only through advance.
type UpdateOrderRequest struct {
	Number            *string `json:"number" validate:"omitempty,min=1,max=50"`
	Customer          *string `json:"customer" validate:"omitempty,min=1,max=200"`
	MotorType         *string `json:"motor_type" validate:"omitempty,max=200"`
	Category          *string `json:"category"`
	SecondaryActivity *string `json:"secondary_activity" validate:"omitempty,max=200"`
	Priority          *string `json:"priority"`
	EntryDate         *string `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	AuthorizationDate *string `json:"authorization_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate           *string `json:"due_date"`
	Notes             *string `json:"notes"`
	Rework            *string `json:"rework"`
	DelayReason       *string `json:"delay_reason"`
	DelaySector       *string `json:"delay_sector"`
}

// =============================================================================
// LEDGER
// =============================================================================

// AdvanceRequest moves an order. An empty to_stage means the next stage of
// its sequence.
type AdvanceRequest struct {
	ToStage string `json:"to_stage"`
	Worker  string `json:"worker" validate:"max=100"`
}

// AssignWorkerRequest sets the worker of a visited stage.
type AssignWorkerRequest struct {
	Worker string `json:"worker" validate:"required,max=100"`
}

// StageTimingDTO is one line of an order timeline.
type StageTimingDTO struct {
	Stage             string `json:"stage"`
	Label             string `json:"label"`
	EnteredAt         string `json:"entered_at,omitempty"`
	Worker            string `json:"worker,omitempty"`
	Minutes           int    `json:"minutes"`
	Display           string `json:"display"`
	Live              bool   `json:"live"`
	Current           bool   `json:"current"`
	Counted           bool   `json:"counted"`
	CumulativeMinutes int    `json:"cumulative_minutes"`
}

// TimelineDTO is the per-stage breakdown of one order.
type TimelineDTO struct {
	OrderID      string           `json:"order_id"`
	Stages       []StageTimingDTO `json:"stages"`
	TotalMinutes int              `json:"total_minutes"`
	TotalDisplay string           `json:"total_display"`
}

// =============================================================================
// FLOWS AND CALENDAR
// =============================================================================

// StageDTO is a stage identifier with its label.
type StageDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FlowDTO is the stage sequence of one category.
type FlowDTO struct {
	Category string     `json:"category"`
	Label    string     `json:"label"`
	Stages   []StageDTO `json:"stages"`
}

// CalendarDTO is the effective shift configuration.
type CalendarDTO struct {
	MorningStart   string `json:"morningStart" validate:"required"`
	MorningEnd     string `json:"morningEnd" validate:"required"`
	AfternoonStart string `json:"afternoonStart" validate:"required"`
	AfternoonEnd   string `json:"afternoonEnd" validate:"required"`
	MinutesPerDay  int    `json:"minutes_per_day,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// HolidayDTO represents a holiday.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// CreateHolidayRequest adds a holiday.
type CreateHolidayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"required,max=100"`
}

// =============================================================================
// DEADLINES AND REPORTS
// =============================================================================

// DeadlineDTO is one line of the deadline listing.
type DeadlineDTO struct {
	OrderID       string `json:"order_id"`
	Number        string `json:"number"`
	Customer      string `json:"customer"`
	Stage         string `json:"stage"`
	DueDate       string `json:"due_date"`
	Tier          string `json:"tier"`
	DaysRemaining int    `json:"days_remaining"`
}

// LateOrderDTO details one late delivery.
type LateOrderDTO struct {
	OrderID      string `json:"order_id"`
	Number       string `json:"number"`
	Customer     string `json:"customer"`
	DueDate      string `json:"due_date"`
	ConcludedOn  string `json:"concluded_on"`
	DaysLate     int    `json:"days_late"`
	SlowestStage string `json:"slowest_stage,omitempty"`
	SlowestTime  string `json:"slowest_time,omitempty"`
	DelayReason  string `json:"delay_reason,omitempty"`
	DelaySector  string `json:"delay_sector,omitempty"`
}

// DeadlineReportDTO compares concluded orders with their due dates.
type DeadlineReportDTO struct {
	Concluded int             `json:"concluded"`
	OnTime    int             `json:"on_time"`
	Late      int             `json:"late"`
	LateRate  decimal.Decimal `json:"late_rate"`
	Details   []LateOrderDTO  `json:"details"`
}

// StageTimeDTO aggregates one stage.
type StageTimeDTO struct {
	Stage        string          `json:"stage"`
	Label        string          `json:"label"`
	TotalMinutes int             `json:"total_minutes"`
	Count        int             `json:"count"`
	AvgMinutes   decimal.Decimal `json:"avg_minutes"`
	TotalHours   decimal.Decimal `json:"total_hours"`
}

// WorkerTimeDTO aggregates one worker.
type WorkerTimeDTO struct {
	Worker       string          `json:"worker"`
	TotalMinutes int             `json:"total_minutes"`
	Orders       int             `json:"orders"`
	TotalHours   decimal.Decimal `json:"total_hours"`
}

// SummaryDTO is the production overview.
type SummaryDTO struct {
	Total               int            `json:"total"`
	Open                int            `json:"open"`
	ByStage             map[string]int `json:"by_stage"`
	ByCategory          map[string]int `json:"by_category"`
	InProductionMinutes int            `json:"in_production_minutes"`
	InProductionDisplay string         `json:"in_production_display"`
	Rework              []OrderRefDTO  `json:"rework"`
	OnHold              []OrderRefDTO  `json:"on_hold"`
}

// OrderRefDTO is a short reference to an order.
type OrderRefDTO struct {
	ID       string `json:"id"`
	Number   string `json:"number"`
	Customer string `json:"customer"`
	Note     string `json:"note,omitempty"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
