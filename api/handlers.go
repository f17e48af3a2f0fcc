/*
handlers.go - HTTP API handlers for the work-order engine

PURPOSE:
  Exposes the stage ledger, the working calendar, the deadline monitor and
  the reports via REST. Handles HTTP request/response, JSON serialization,
  and delegates to the production and worktime packages.

ENDPOINTS:
  Orders:
    GET    /api/orders                          List orders (?stage=&category=&open=true)
    POST   /api/orders                          Open a work order
    GET    /api/orders/{id}                     Get order with elapsed business time
    PUT    /api/orders/{id}                     Edit order fields
    DELETE /api/orders/{id}                     Delete order and its records
    POST   /api/orders/{id}/advance             Move to the next (or given) stage
    PUT    /api/orders/{id}/stages/{stage}/worker  Assign a stage worker
    GET    /api/orders/{id}/timeline            Per-stage durations

  Calendar:
    GET    /api/flows                           Stage sequence per category
    GET    /api/calendar                        Shift windows
    PUT    /api/calendar                        Replace shift windows
    POST   /api/calendar/reset                  Restore default shifts
    GET    /api/holidays                        List holidays
    POST   /api/holidays                        Add or rename a holiday
    POST   /api/holidays/defaults               Add the national holidays
    DELETE /api/holidays/{date}                 Remove a holiday

  Deadlines and reports:
    GET    /api/deadlines                       Orders near or past their due date
    GET    /api/reports/deadlines               On time vs late
    GET    /api/reports/stages                  Time per stage
    GET    /api/reports/workers                 Time per worker
    GET    /api/reports/summary                 Production overview

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: persistence (orders, stage records, calendar)
  - Ledger: the only write path for stages and durations
  - Calendar: cached working-calendar provider
  - Monitor: deadline scanner, triggered after every order mutation
  - Reports: aggregated reports over the ledger

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator tags on request DTOs)
  3. Call domain logic (ledger, provider, monitor)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid transitions
  - 404: Order not found, stage never visited
  - 409: Order already concluded
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs: orders and stage records, the
// calendar source, holiday edits and the scenario reset.
type Store interface {
	production.Store
	worktime.ConfigSource
	SaveHoliday(ctx context.Context, h worktime.Holiday) error
	DeleteHoliday(ctx context.Context, d worktime.Date) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Ledger   *production.Ledger
	Calendar *worktime.Provider
	Monitor  *production.Monitor
	Reports  *production.Reporter
	Logger   logrus.FieldLogger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a ledger and a reporter over store. A nil monitor gets
// an idle one so the deadline listing still works.
func NewHandler(store Store, calendar *worktime.Provider, monitor *production.Monitor) *Handler {
	ledger := production.NewLedger(store, calendar)
	if monitor == nil {
		monitor = production.NewMonitor(store, nil, calendar.Location)
	}
	return &Handler{
		Store:    store,
		Ledger:   ledger,
		Calendar: calendar,
		Monitor:  monitor,
		Reports:  production.NewReporter(ledger),
		Logger:   logrus.StandardLogger().WithField("component", "api"),
		validate: validator.New(),
	}
}

func (h *Handler) now() time.Time {
	if h.Ledger.Now == nil {
		return time.Now()
	}
	return h.Ledger.Now()
}

func (h *Handler) location() *time.Location {
	if h.Calendar.Location == nil {
		return time.Local
	}
	return h.Calendar.Location
}

// decode reads a JSON body into dst and validates it. An empty body leaves
// dst at its zero value.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns orders, newest first.
// GET /api/orders?stage=corte,lavagem&category=rebobinar&open=true
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter production.OrderFilter

	if raw := q.Get("stage"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := production.ParseStage(part)
			if !ok {
				writeError(w, http.StatusBadRequest, "Unknown stage", errors.New(part))
				return
			}
			filter.Stages = append(filter.Stages, st)
		}
	}
	if raw := q.Get("category"); raw != "" {
		c, ok := production.ParseCategory(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown category", errors.New(raw))
			return
		}
		filter.Category = c
	}
	filter.OpenOnly = q.Get("open") == "true"

	ctx := r.Context()
	orders, err := h.Store.ListOrders(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	cal := h.Calendar.Calendar(ctx)
	now := h.now()
	dtos := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		dto, err := h.toOrderDTO(ctx, o, cal, now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to compute elapsed time", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrder opens a work order in the first stage of its category.
// POST /api/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, _ := production.ParseCategory(req.Category)
	priority, _ := production.ParsePriority(req.Priority)
	order := production.WorkOrder{
		Number:            req.Number,
		Customer:          req.Customer,
		MotorType:         req.MotorType,
		Category:          category,
		SecondaryActivity: req.SecondaryActivity,
		Priority:          priority,
		CurrentWorker:     req.CurrentWorker,
		Notes:             req.Notes,
	}
	var err error
	if order.EntryDate, err = optionalDate(req.EntryDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry_date (use YYYY-MM-DD)", err)
		return
	}
	if order.AuthorizationDate, err = optionalDate(req.AuthorizationDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid authorization_date (use YYYY-MM-DD)", err)
		return
	}
	if order.DueDate, err = optionalDate(req.DueDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date (use YYYY-MM-DD)", err)
		return
	}
	if order.EntryDate.IsZero() {
		order.EntryDate = worktime.DateOf(h.now(), h.location())
	}

	ctx := r.Context()
	opened, err := h.Ledger.Open(ctx, order)
	if err != nil {
		writeDomainError(w, "Failed to open order", err)
		return
	}
	h.Monitor.Trigger()

	dto, err := h.toOrderDTO(ctx, opened, h.Calendar.Calendar(ctx), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute elapsed time", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// GetOrder returns a single order with its elapsed business time.
// GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	dto, err := h.toOrderDTO(ctx, *order, h.Calendar.Calendar(ctx), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute elapsed time", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// UpdateOrder edits the free-form fields of an order.
// PUT /api/orders/{id}
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	edit, err := req.apply()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	order, err := h.Ledger.Edit(ctx, id, edit)
	if err != nil {
		writeDomainError(w, "Failed to update order", err)
		return
	}
	h.Monitor.Trigger()

	dto, err := h.toOrderDTO(ctx, order, h.Calendar.Calendar(ctx), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute elapsed time", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// apply turns the request into a ledger edit. Dates are parsed up front so
// a bad value fails before the order is locked.
func (req UpdateOrderRequest) apply() (func(*production.WorkOrder), error) {
	var entry, auth, due *worktime.Date
	for _, f := range []struct {
		raw *string
		dst **worktime.Date
	}{
		{req.EntryDate, &entry},
		{req.AuthorizationDate, &auth},
		{req.DueDate, &due},
	} {
		if f.raw == nil {
			continue
		}
		d, err := optionalDate(*f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = &d
	}

	var category *production.Category
	if req.Category != nil {
		c, ok := production.ParseCategory(*req.Category)
		if !ok {
			return nil, production.ErrInvalidOrder
		}
		category = &c
	}

	return func(o *production.WorkOrder) {
		setString(&o.Number, req.Number)
		setString(&o.Customer, req.Customer)
		setString(&o.MotorType, req.MotorType)
		setString(&o.SecondaryActivity, req.SecondaryActivity)
		setString(&o.Notes, req.Notes)
		setString(&o.Rework, req.Rework)
		setString(&o.DelayReason, req.DelayReason)
		setString(&o.DelaySector, req.DelaySector)
		if category != nil {
			o.Category = *category
		}
		if req.Priority != nil {
			o.Priority, _ = production.ParsePriority(*req.Priority)
		}
		if entry != nil {
			o.EntryDate = *entry
		}
		if auth != nil {
			o.AuthorizationDate = *auth
		}
		if due != nil {
			o.DueDate = *due
		}
	}, nil
}

// DeleteOrder removes an order and its stage records.
// DELETE /api/orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.loadOrder(w, r); !ok {
		return
	}
	if err := h.Store.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete order", err)
		return
	}
	h.Monitor.Trigger()
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// AdvanceOrder commits the current stage and enters the next one.
// POST /api/orders/{id}/advance
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AdvanceRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var to production.Stage
	if req.ToStage != "" {
		st, ok := production.ParseStage(req.ToStage)
		if !ok {
			// Let the ledger reject it with ErrUnknownStage.
			st = production.Stage(req.ToStage)
		}
		to = st
	}

	ctx := r.Context()
	order, err := h.Ledger.Advance(ctx, id, to, req.Worker)
	if err != nil {
		writeDomainError(w, "Failed to advance order", err)
		return
	}
	h.Monitor.Trigger()

	dto, err := h.toOrderDTO(ctx, order, h.Calendar.Calendar(ctx), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute elapsed time", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// AssignWorker sets who works a stage the order already entered.
// PUT /api/orders/{id}/stages/{stage}/worker
func (h *Handler) AssignWorker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stage, ok := production.ParseStage(chi.URLParam(r, "stage"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown stage", production.ErrUnknownStage)
		return
	}

	var req AssignWorkerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Ledger.AssignWorker(r.Context(), id, stage, req.Worker)
	if err != nil {
		writeDomainError(w, "Failed to assign worker", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "assigned",
		"stage":  rec.Stage,
		"worker": rec.Worker,
	})
}

// GetTimeline returns the per-stage durations of an order.
// GET /api/orders/{id}/timeline
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	lines, err := h.Ledger.Timeline(ctx, *order, h.Calendar.Calendar(ctx), h.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load timeline", err)
		return
	}

	dto := TimelineDTO{OrderID: order.ID, Stages: make([]StageTimingDTO, 0, len(lines))}
	for _, l := range lines {
		line := StageTimingDTO{
			Stage:             string(l.Stage),
			Label:             l.Stage.Label(),
			Minutes:           l.Minutes,
			Display:           worktime.FormatMinutes(l.Minutes),
			Live:              l.Live,
			Current:           l.Current,
			Counted:           l.Counted,
			CumulativeMinutes: l.Cumulative,
		}
		if l.Record != nil {
			line.EnteredAt = l.Record.EnteredAt.Format(time.RFC3339)
			line.Worker = l.Record.Worker
		}
		dto.Stages = append(dto.Stages, line)
		dto.TotalMinutes = l.Cumulative
	}
	dto.TotalDisplay = worktime.FormatMinutes(dto.TotalMinutes)
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*production.WorkOrder, bool) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get order", err)
		return nil, false
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return nil, false
	}
	return order, true
}

func (h *Handler) toOrderDTO(ctx context.Context, o production.WorkOrder, cal worktime.Calendar, now time.Time) (OrderDTO, error) {
	elapsed, err := h.Ledger.PartialElapsed(ctx, o, cal, now)
	if err != nil {
		return OrderDTO{}, err
	}

	dto := OrderDTO{
		ID:                o.ID,
		Number:            o.Number,
		Customer:          o.Customer,
		MotorType:         o.MotorType,
		Category:          string(o.Category),
		CategoryLabel:     o.Category.Label(),
		SecondaryActivity: o.SecondaryActivity,
		Priority:          string(o.Priority),
		EntryDate:         o.EntryDate.String(),
		AuthorizationDate: o.AuthorizationDate.String(),
		DueDate:           o.DueDate.String(),
		Stage:             string(o.Stage),
		StageLabel:        o.Stage.Label(),
		Progress:          production.ProgressFraction(o),
		CurrentWorker:     o.CurrentWorker,
		Notes:             o.Notes,
		Rework:            o.Rework,
		DelayReason:       o.DelayReason,
		DelaySector:       o.DelaySector,
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         o.UpdatedAt.Format(time.RFC3339),
		ElapsedMinutes:    elapsed,
		ElapsedDisplay:    worktime.FormatMinutes(elapsed),
	}
	if next, ok := production.NextStage(o); ok {
		dto.NextStage = string(next)
	}
	if o.ConcludedAt != nil {
		dto.ConcludedAt = o.ConcludedAt.Format(time.RFC3339)
	}
	if c := production.Classify(o, worktime.DateOf(now, h.location())); c.Evaluated {
		days := c.DaysRemaining
		dto.DeadlineTier = string(c.Tier)
		dto.DaysRemaining = &days
	}
	return dto, nil
}

// =============================================================================
// FLOW AND CALENDAR HANDLERS
// =============================================================================

// ListFlows returns the stage sequence of every category.
// GET /api/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows := make([]FlowDTO, 0, len(production.AllCategories))
	for _, c := range production.AllCategories {
		seq := production.SequenceFor(c)
		f := FlowDTO{Category: string(c), Label: c.Label(), Stages: make([]StageDTO, len(seq))}
		for i, st := range seq {
			f.Stages[i] = StageDTO{ID: string(st), Label: st.Label()}
		}
		flows = append(flows, f)
	}
	writeJSON(w, http.StatusOK, flows)
}

// GetCalendar returns the active shift windows.
// GET /api/calendar
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.calendarDTO(h.Calendar.Calendar(r.Context())))
}

// UpdateCalendar validates and stores new shift windows.
// PUT /api/calendar
func (h *Handler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var req CalendarDTO
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	cfg := worktime.ShiftConfig{
		MorningStart:   req.MorningStart,
		MorningEnd:     req.MorningEnd,
		AfternoonStart: req.AfternoonStart,
		AfternoonEnd:   req.AfternoonEnd,
	}
	if err := h.Calendar.Save(ctx, cfg); err != nil {
		writeDomainError(w, "Failed to save calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, h.calendarDTO(h.Calendar.Calendar(ctx)))
}

// ResetCalendar restores the default shift windows.
// POST /api/calendar/reset
func (h *Handler) ResetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Calendar.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, h.calendarDTO(h.Calendar.Calendar(ctx)))
}

func (h *Handler) calendarDTO(cal worktime.Calendar) CalendarDTO {
	s := cal.Shifts()
	return CalendarDTO{
		MorningStart:   s.MorningStart,
		MorningEnd:     s.MorningEnd,
		AfternoonStart: s.AfternoonStart,
		AfternoonEnd:   s.AfternoonEnd,
		MinutesPerDay:  cal.MinutesPerDay(),
		Timezone:       h.location().String(),
	}
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns all holidays in date order.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.Holidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, HolidayDTO{Date: hol.Date.String(), Name: hol.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday adds a holiday, or renames the one on that date.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := worktime.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Store.SaveHoliday(r.Context(), worktime.Holiday{Date: date, Name: req.Name}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	h.Calendar.Invalidate()

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "created",
		"holiday": date.String(),
	})
}

// AddDefaultHolidays adds the compiled-in national holidays.
// POST /api/holidays/defaults
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defaults := worktime.DefaultHolidays()
	for _, hol := range defaults {
		if err := h.Store.SaveHoliday(ctx, hol); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to add holiday", err)
			return
		}
	}
	h.Calendar.Invalidate()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "added",
		"count":  len(defaults),
	})
}

// DeleteHoliday removes the holiday on a date.
// DELETE /api/holidays/{date}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := worktime.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Store.DeleteHoliday(r.Context(), date); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	h.Calendar.Invalidate()

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// DEADLINES AND REPORTS
// =============================================================================

// ListDeadlines returns open orders whose due date is near or past, most
// urgent first. It does not send notifications.
// GET /api/deadlines
func (h *Handler) ListDeadlines(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Monitor.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deadlines", err)
		return
	}

	dtos := make([]DeadlineDTO, 0, len(listing))
	for _, d := range listing {
		dtos = append(dtos, DeadlineDTO{
			OrderID:       d.Order.ID,
			Number:        d.Order.Number,
			Customer:      d.Order.Customer,
			Stage:         string(d.Order.Stage),
			DueDate:       d.Order.DueDate.String(),
			Tier:          string(d.Classification.Tier),
			DaysRemaining: d.Classification.DaysRemaining,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDeadlineReport compares concluded orders with their due dates.
// GET /api/reports/deadlines
func (h *Handler) GetDeadlineReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Deadlines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build deadline report", err)
		return
	}

	dto := DeadlineReportDTO{
		Concluded: rep.Concluded,
		OnTime:    rep.OnTime,
		Late:      rep.Late,
		LateRate:  rep.LateRate,
		Details:   make([]LateOrderDTO, 0, len(rep.Details)),
	}
	for _, l := range rep.Details {
		line := LateOrderDTO{
			OrderID:     l.OrderID,
			Number:      l.Number,
			Customer:    l.Customer,
			DueDate:     l.DueDate.String(),
			ConcludedOn: l.ConcludedOn.String(),
			DaysLate:    l.DaysLate,
			DelayReason: l.DelayReason,
			DelaySector: l.DelaySector,
		}
		if l.SlowestStage != "" {
			line.SlowestStage = l.SlowestStage.Label()
			line.SlowestTime = worktime.FormatMinutes(l.SlowestMin)
		}
		dto.Details = append(dto.Details, line)
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetStageReport returns committed time per stage.
// GET /api/reports/stages
func (h *Handler) GetStageReport(w http.ResponseWriter, r *http.Request) {
	stages, err := h.Reports.StageTimes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build stage report", err)
		return
	}

	dtos := make([]StageTimeDTO, 0, len(stages))
	for _, s := range stages {
		dtos = append(dtos, StageTimeDTO{
			Stage:        string(s.Stage),
			Label:        s.Stage.Label(),
			TotalMinutes: s.TotalMinutes,
			Count:        s.Count,
			AvgMinutes:   s.AvgMinutes,
			TotalHours:   s.TotalHours,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorkerReport returns committed time per worker.
// GET /api/reports/workers
func (h *Handler) GetWorkerReport(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Reports.WorkerTimes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build worker report", err)
		return
	}

	dtos := make([]WorkerTimeDTO, 0, len(workers))
	for _, wt := range workers {
		dtos = append(dtos, WorkerTimeDTO{
			Worker:       wt.Worker,
			TotalMinutes: wt.TotalMinutes,
			Orders:       wt.Orders,
			TotalHours:   wt.TotalHours,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSummary returns the production overview.
// GET /api/reports/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Reports.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}

	dto := SummaryDTO{
		Total:               s.Total,
		Open:                s.Open,
		ByStage:             make(map[string]int, len(s.ByStage)),
		ByCategory:          make(map[string]int, len(s.ByCategory)),
		InProductionMinutes: s.InProductionMinutes,
		InProductionDisplay: worktime.FormatMinutes(s.InProductionMinutes),
		Rework:              make([]OrderRefDTO, 0, len(s.Rework)),
		OnHold:              make([]OrderRefDTO, 0, len(s.OnHold)),
	}
	for st, n := range s.ByStage {
		dto.ByStage[string(st)] = n
	}
	for c, n := range s.ByCategory {
		dto.ByCategory[string(c)] = n
	}
	for _, o := range s.Rework {
		dto.Rework = append(dto.Rework, OrderRefDTO{ID: o.ID, Number: o.Number, Customer: o.Customer, Note: o.Rework})
	}
	for _, o := range s.OnHold {
		dto.OnHold = append(dto.OnHold, OrderRefDTO{ID: o.ID, Number: o.Number, Customer: o.Customer, Note: o.Notes})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps production and worktime errors to a status code.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case production.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, production.ErrOrderConcluded):
		writeError(w, http.StatusConflict, message, err)
	case production.IsClientError(err),
		errors.Is(err, worktime.ErrInvalidShiftConfig),
		errors.Is(err, worktime.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func optionalDate(s string) (worktime.Date, error) {
	if strings.TrimSpace(s) == "" {
		return worktime.Date{}, nil
	}
	return worktime.ParseDate(s)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
