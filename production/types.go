/*
Package production tracks work orders through their production stages.

PURPOSE:
  A work order (ordem de serviço) moves through an ordered list of stages
  determined by its category. Every stage visit is a StageRecord in the
  ledger; when the order leaves a stage, the business time it spent there is
  computed once and frozen.

KEY CONCEPTS IN THIS FILE (types.go):
  - Stage: a named production step ("lavagem", "pintura", ...)
  - Category: the main activity, selecting the stage sequence
  - Priority: normal, alta, emergencia
  - WorkOrder: the unit of tracked work

SEE ALSO:
  - record.go: StageRecord and the committed/pending Duration
  - flow.go: stage sequences, next stage, progress
  - ledger.go: the single write path for stage durations
  - deadline.go, monitor.go: due-date classification and alerts
  - reports.go: aggregated reports
*/
package production

import (
	"time"

	"github.com/warp/workorder-engine/worktime"
)

// =============================================================================
// STAGES
// =============================================================================

// Stage identifies a production step. Values are the stored identifiers.
type Stage string

const (
	StagePeritagem          Stage = "peritagem"
	StageCorte              Stage = "corte"
	StageLavagem            Stage = "lavagem"
	StageTratamentoCarcaca  Stage = "tratamento_carcaca"
	StageRebobinar          Stage = "rebobinar"
	StageEstufa             Stage = "estufa"
	StageImpregnacaoEstufa  Stage = "impregnacao_estufa"
	StageDesmontagem        Stage = "desmontagem"
	StageMontagem           Stage = "montagem"
	StageTeste              Stage = "teste"
	StageBalanceamento      Stage = "balanceamento"
	StagePintura            Stage = "pintura"
	StageAcabamento         Stage = "acabamento"
	StageConcluido          Stage = "concluido"
	StageAguardandoMaterial Stage = "aguardando_material"
)

// AllStages lists every known stage in display order.
var AllStages = []Stage{
	StagePeritagem, StageCorte, StageLavagem, StageTratamentoCarcaca, StageRebobinar,
	StageEstufa, StageImpregnacaoEstufa, StageDesmontagem, StageMontagem, StageTeste,
	StageBalanceamento, StagePintura, StageAcabamento, StageConcluido, StageAguardandoMaterial,
}

var stageLabels = map[Stage]string{
	StagePeritagem:          "Peritagem",
	StageCorte:              "Corte",
	StageLavagem:            "Lavagem",
	StageTratamentoCarcaca:  "Tratamento de Carcaça",
	StageRebobinar:          "Rebobinar",
	StageEstufa:             "Estufa",
	StageImpregnacaoEstufa:  "Impregnação e Estufa",
	StageDesmontagem:        "Desmontagem",
	StageMontagem:           "Montagem",
	StageTeste:              "Teste",
	StageBalanceamento:      "Balanceamento",
	StagePintura:            "Pintura",
	StageAcabamento:         "Acabamento",
	StageConcluido:          "Concluído",
	StageAguardandoMaterial: "Aguardando Material Externo",
}

// Label is the display name.
func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { _, ok := stageLabels[s]; return ok }

// Terminal is true for the stage that ends every sequence.
func (s Stage) Terminal() bool { return s == StageConcluido }

// OnHold is true for the waiting-for-material status, which sits outside
// every sequence and is excluded from progress.
func (s Stage) OnHold() bool { return s == StageAguardandoMaterial }

// =============================================================================
// CATEGORIES AND PRIORITIES
// =============================================================================

// Category is the main activity of a work order.
type Category string

const (
	CategoryRebobinar          Category = "rebobinar"
	CategoryRejuvenescer       Category = "rejuvenescer"
	CategoryManutencaoMecanica Category = "manutencao_mecanica"
	CategoryBalanceamento      Category = "balanceamento"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryRebobinar, CategoryRejuvenescer, CategoryManutencaoMecanica, CategoryBalanceamento,
}

var categoryLabels = map[Category]string{
	CategoryRebobinar:          "Rebobinar",
	CategoryRejuvenescer:       "Rejuvenescer",
	CategoryManutencaoMecanica: "Manutenção Mecânica",
	CategoryBalanceamento:      "Balanceamento",
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) Valid() bool { _, ok := categoryLabels[c]; return ok }

// Priority orders work on the shop floor. It does not affect timing.
type Priority string

const (
	PriorityNormal     Priority = "normal"
	PriorityAlta       Priority = "alta"
	PriorityEmergencia Priority = "emergencia"
)

// =============================================================================
// WORK ORDER
// =============================================================================

// WorkOrder is the unit of tracked production work.
//
// Stage, UpdatedAt and ConcludedAt belong to the ledger: they change only when
// the order advances. Everything else is free-form data edited by users.
type WorkOrder struct {
	ID                string
	Number            string
	Customer          string
	MotorType         string
	Category          Category
	SecondaryActivity string
	Priority          Priority

	EntryDate         worktime.Date
	AuthorizationDate worktime.Date
	DueDate           worktime.Date // zero when no due date was promised

	Stage         Stage
	CurrentWorker string

	Notes       string
	Rework      string
	DelayReason string
	DelaySector string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConcludedAt *time.Time
}

// Concluded reports whether the order reached the terminal stage.
func (o WorkOrder) Concluded() bool { return o.Stage.Terminal() }

// HasDueDate reports whether a due date was set.
func (o WorkOrder) HasDueDate() bool { return !o.DueDate.IsZero() }

// OrderFilter narrows ListOrders. Zero value matches everything.
type OrderFilter struct {
	Stages   []Stage
	Category Category
	OpenOnly bool // exclude concluded orders
}

// Matches applies the filter in memory.
func (f OrderFilter) Matches(o WorkOrder) bool {
	if f.OpenOnly && o.Concluded() {
		return false
	}
	if f.Category != "" && o.Category != f.Category {
		return false
	}
	if len(f.Stages) == 0 {
		return true
	}
	for _, s := range f.Stages {
		if o.Stage == s {
			return true
		}
	}
	return false
}
