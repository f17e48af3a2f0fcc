package production

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// SEQUENCES - Ordered stages per category
// =============================================================================

var sequences = map[Category][]Stage{
	CategoryRebobinar: {
		StageCorte, StageLavagem, StageTratamentoCarcaca, StageRebobinar, StageImpregnacaoEstufa,
		StageMontagem, StageTeste, StagePintura, StageAcabamento, StageConcluido,
	},
	CategoryRejuvenescer: {
		StageLavagem, StageEstufa, StageImpregnacaoEstufa, StageMontagem, StageTeste,
		StagePintura, StageAcabamento, StageConcluido,
	},
	CategoryManutencaoMecanica: {
		StageDesmontagem, StageMontagem, StageTeste, StagePintura, StageAcabamento, StageConcluido,
	},
	CategoryBalanceamento: {
		StageLavagem, StageBalanceamento, StagePintura, StageAcabamento, StageConcluido,
	},
}

// DefaultCategory is used when a category is missing or unrecognized.
const DefaultCategory = CategoryRebobinar

// SequenceFor returns the ordered stages for a category. Unknown categories
// get the default sequence. The result is a copy.
func SequenceFor(c Category) []Stage {
	seq, ok := sequences[c]
	if !ok {
		seq = sequences[DefaultCategory]
	}
	return append([]Stage(nil), seq...)
}

// InitialStage is the first stage of the category's sequence.
func InitialStage(c Category) Stage {
	return SequenceFor(c)[0]
}

// IndexOf returns the position of the stage in the sequence, or -1.
func IndexOf(seq []Stage, s Stage) int {
	for i, st := range seq {
		if st == s {
			return i
		}
	}
	return -1
}

// NextStage returns the stage after the order's current one. It reports
// false when the order is concluded or its stage is outside the sequence.
func NextStage(o WorkOrder) (Stage, bool) {
	seq := SequenceFor(o.Category)
	i := IndexOf(seq, o.Stage)
	if i < 0 || i == len(seq)-1 {
		return "", false
	}
	return seq[i+1], true
}

// ProgressFraction is the position of the current stage in the sequence
// as a value in [0, 1]. Stages outside the sequence report 0.
func ProgressFraction(o WorkOrder) float64 {
	seq := SequenceFor(o.Category)
	i := IndexOf(seq, o.Stage)
	if i < 0 {
		return 0
	}
	return float64(i+1) / float64(len(seq))
}

// =============================================================================
// NORMALIZATION - Free-text labels to identifiers
// =============================================================================

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases, strips accents and turns separators into underscores.
func fold(s string) string {
	out, _, err := transform.String(stripMarks, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(out)
}

var categoryAliases = map[string]Category{
	"rebobinar":           CategoryRebobinar,
	"rebobinamento":       CategoryRebobinar,
	"rejuvenescer":        CategoryRejuvenescer,
	"rejuvenescimento":    CategoryRejuvenescer,
	"manutencao_mecanica": CategoryManutencaoMecanica,
	"manutencao":          CategoryManutencaoMecanica,
	"balanceamento":       CategoryBalanceamento,
}

var stageAliases = map[string]Stage{
	"impregnacao_e_estufa":        StageImpregnacaoEstufa,
	"impregnacao":                 StageImpregnacaoEstufa,
	"tratamento_de_carcaca":       StageTratamentoCarcaca,
	"aguardando_material_externo": StageAguardandoMaterial,
	"aguardando":                  StageAguardandoMaterial,
}

// ParseCategory accepts an identifier or a display label. Unknown input
// falls back to DefaultCategory and ok is false.
func ParseCategory(s string) (c Category, ok bool) {
	if c, ok := categoryAliases[fold(s)]; ok {
		return c, true
	}
	return DefaultCategory, false
}

// ParseStage accepts an identifier or a display label. Unknown input falls
// back to the first stage of the default sequence and ok is false.
func ParseStage(s string) (Stage, bool) {
	key := fold(s)
	if st := Stage(key); st.Valid() {
		return st, true
	}
	if st, ok := stageAliases[key]; ok {
		return st, true
	}
	return InitialStage(DefaultCategory), false
}

// ParsePriority accepts "normal", "alta", "emergencia" in any case or
// accent. Anything else is normal.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(fold(s)) {
	case PriorityNormal:
		return PriorityNormal, true
	case PriorityAlta:
		return PriorityAlta, true
	case PriorityEmergencia:
		return PriorityEmergencia, true
	}
	return PriorityNormal, false
}
