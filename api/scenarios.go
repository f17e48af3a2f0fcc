/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	shop-floor data. Each scenario opens work orders and replays their stage
	history through the ledger, so every duration in the demo is committed
	by the same code path as real traffic.

AVAILABLE SCENARIOS:

	shop-floor:       Open orders of every category at different stages
	deadlines:        Open orders due in -2..10 days, for the deadline alerts
	late-deliveries:  Concluded orders, on time and late, for the reports

HOW SCENARIOS WORK:
 1. Reset orders and stage records (calendar and holidays are kept)
 2. For each scripted order, set a scripted clock to its opening instant
 3. Open it through a ledger reading that clock
 4. Step the clock forward and advance the order, once per script step

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "shop-floor"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add its scripted orders to 'scenarioScripts'

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Scripts are written relative to today and never step the clock past now.

SEE ALSO:
  - handlers.go: Handler
  - production/ledger.go: Open, Advance
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "shop-floor",
		Name:        "Shop Floor",
		Description: "Open orders of every category at different stages, one waiting for material",
	},
	{
		ID:          "deadlines",
		Name:        "Deadline Alerts",
		Description: "Open orders overdue, due today, tomorrow and later in the week",
	},
	{
		ID:          "late-deliveries",
		Name:        "Late Deliveries",
		Description: "Concluded orders delivered on time and late, with delay reasons",
	},
}

// step advances an order after some wall time. An empty stage means the
// next stage of the sequence.
type step struct {
	after  time.Duration
	to     production.Stage
	worker string
}

type scriptedOrder struct {
	order     production.WorkOrder
	openedAgo int  // calendar days before today, opened at 07:30
	dueIn     *int // days from today; nil means no due date
	steps     []step
}

func days(n int) *int { return &n }

func next(after time.Duration, worker string) step { return step{after: after, worker: worker} }

var scenarioScripts = map[string][]scriptedOrder{
	"shop-floor": {
		{
			order: production.WorkOrder{
				Number: "OS-1001", Customer: "Metalúrgica Santos", MotorType: "WEG W22 15cv",
				Category: production.CategoryRebobinar, CurrentWorker: "Carlos",
			},
			openedAgo: 3, dueIn: days(7),
			steps: []step{next(4*time.Hour, "Carlos"), next(6*time.Hour, "Ana"), next(20*time.Hour, "Carlos")},
		},
		{
			order: production.WorkOrder{
				Number: "OS-1002", Customer: "Cerâmica Vale", MotorType: "Kohlbach 7,5cv",
				Category: production.CategoryRejuvenescer, Priority: production.PriorityAlta,
			},
			openedAgo: 2, dueIn: days(4),
			steps: []step{next(3*time.Hour, "Marcos")},
		},
		{
			order: production.WorkOrder{
				Number: "OS-1003", Customer: "Frigorífico Sul", MotorType: "Voges 30cv",
				Category: production.CategoryManutencaoMecanica,
				Notes:    "Rolamento 6310 encomendado",
			},
			openedAgo: 4, dueIn: days(9),
			steps: []step{
				next(5*time.Hour, "Paulo"),
				{after: 2 * time.Hour, to: production.StageAguardandoMaterial},
			},
		},
		{
			order: production.WorkOrder{
				Number: "OS-1004", Customer: "Usina Boa Vista", MotorType: "WEG 5cv",
				Category: production.CategoryBalanceamento, Rework: "Vibração acima do limite no teste",
			},
			openedAgo: 1,
			steps:     []step{next(2*time.Hour, "Rafael")},
		},
		{
			order: production.WorkOrder{
				Number: "OS-1005", Customer: "Têxtil Aurora", MotorType: "Eberle 3cv",
				Category: production.CategoryRebobinar, Priority: production.PriorityEmergencia,
			},
			openedAgo: 0,
		},
	},
	"deadlines": {
		{
			order:     production.WorkOrder{Number: "OS-2001", Customer: "Mineração Serra", Category: production.CategoryRebobinar},
			openedAgo: 6, dueIn: days(-2),
			steps: []step{next(8*time.Hour, "Carlos"), next(24*time.Hour, "Ana")},
		},
		{
			order:     production.WorkOrder{Number: "OS-2002", Customer: "Laticínios Campo", Category: production.CategoryBalanceamento},
			openedAgo: 3, dueIn: days(0),
			steps: []step{next(5*time.Hour, "Rafael")},
		},
		{
			order:     production.WorkOrder{Number: "OS-2003", Customer: "Papelão Norte", Category: production.CategoryManutencaoMecanica},
			openedAgo: 2, dueIn: days(1),
		},
		{
			order:     production.WorkOrder{Number: "OS-2004", Customer: "Moinho Real", Category: production.CategoryRejuvenescer},
			openedAgo: 2, dueIn: days(3),
			steps: []step{next(6*time.Hour, "Marcos")},
		},
		{
			order:     production.WorkOrder{Number: "OS-2005", Customer: "Plásticos Leste", Category: production.CategoryRebobinar},
			openedAgo: 1, dueIn: days(5),
		},
		{
			order:     production.WorkOrder{Number: "OS-2006", Customer: "Granja Horizonte", Category: production.CategoryBalanceamento},
			openedAgo: 1, dueIn: days(10),
		},
		{
			order:     production.WorkOrder{Number: "OS-2007", Customer: "Oficina Central", Category: production.CategoryManutencaoMecanica},
			openedAgo: 1,
		},
	},
	"late-deliveries": {
		{
			order:     production.WorkOrder{Number: "OS-3001", Customer: "Cooperativa Agro", Category: production.CategoryBalanceamento},
			openedAgo: 20, dueIn: days(-15),
			steps: []step{next(24*time.Hour, "Rafael"), next(24*time.Hour, "Rafael"), next(24*time.Hour, "Ana"), next(24*time.Hour, "Ana")},
		},
		{
			order: production.WorkOrder{
				Number: "OS-3002", Customer: "Fundição Brasil", Category: production.CategoryBalanceamento,
				DelayReason: "Peça com empeno", DelaySector: "Usinagem",
			},
			openedAgo: 14, dueIn: days(-12),
			steps: []step{next(24*time.Hour, "Rafael"), next(72*time.Hour, "Rafael"), next(24*time.Hour, "Paulo"), next(24*time.Hour, "Paulo")},
		},
		{
			order: production.WorkOrder{
				Number: "OS-3003", Customer: "Hospital Regional", Category: production.CategoryManutencaoMecanica,
				DelayReason: "Aguardando rolamento", DelaySector: "Compras",
			},
			openedAgo: 30, dueIn: days(-25),
			steps: []step{
				{after: 24 * time.Hour, to: production.StageAguardandoMaterial},
				{after: 96 * time.Hour, to: production.StageMontagem, worker: "Paulo"},
				next(24*time.Hour, "Marcos"),
				next(24*time.Hour, "Ana"),
				next(24*time.Hour, "Ana"),
				next(24*time.Hour, "Ana"),
			},
		},
		{
			order:     production.WorkOrder{Number: "OS-3004", Customer: "Padaria Estrela", Category: production.CategoryRejuvenescer},
			openedAgo: 12,
			steps: []step{
				next(8*time.Hour, "Marcos"), next(24*time.Hour, "Marcos"), next(8*time.Hour, "Marcos"),
				next(8*time.Hour, "Carlos"), next(8*time.Hour, "Ana"), next(8*time.Hour, "Ana"), next(8*time.Hour, "Ana"),
			},
		},
		{
			order:     production.WorkOrder{Number: "OS-3005", Customer: "Metalúrgica Santos", Category: production.CategoryRebobinar},
			openedAgo: 5, dueIn: days(7),
			steps: []step{next(4*time.Hour, "Carlos"), next(4*time.Hour, "Ana")},
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the orders and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := scenarioScripts[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears orders and stage records.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	h.Monitor.Trigger()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenarioByID resets the orders and replays a scenario's scripts.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	script, ok := scenarioScripts[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	if err := h.replay(ctx, script); err != nil {
		return err
	}
	h.currentScenario = id
	h.Monitor.Trigger()
	return nil
}

// =============================================================================
// SCENARIO REPLAY
// =============================================================================

type scriptClock struct{ t time.Time }

func (c *scriptClock) now() time.Time { return c.t }

func (h *Handler) replay(ctx context.Context, script []scriptedOrder) error {
	loc := h.location()
	now := h.now()
	today := worktime.DateOf(now, loc)

	clock := &scriptClock{}
	ledger := &production.Ledger{
		Store:     h.Store,
		Calendars: h.Calendar,
		Logger:    h.Logger,
		Now:       clock.now,
	}

	for _, so := range script {
		clock.t = today.AddDays(-so.openedAgo).At(worktime.NewClock(7, 30), loc)
		if clock.t.After(now) {
			clock.t = now
		}

		o := so.order
		o.EntryDate = worktime.DateOf(clock.t, loc)
		o.AuthorizationDate = o.EntryDate
		if so.dueIn != nil {
			o.DueDate = today.AddDays(*so.dueIn)
		}

		opened, err := ledger.Open(ctx, o)
		if err != nil {
			return fmt.Errorf("open %s: %w", o.Number, err)
		}
		for _, st := range so.steps {
			clock.t = clock.t.Add(st.after)
			if clock.t.After(now) {
				clock.t = now
			}
			if _, err := ledger.Advance(ctx, opened.ID, st.to, st.worker); err != nil {
				return fmt.Errorf("advance %s: %w", o.Number, err)
			}
		}
	}
	return nil
}
