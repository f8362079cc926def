package insight

import (
	"sort"
	"strings"

	"github.com/sparke-study/oracle-service/internal/domain/concept"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIFF ENGINE
// Сравнивает две версии графа концептов. Концепты сопоставляются по
// нормализованной метке: сначала точно по обзору прошлого отчёта (он
// сохраняет исходный регистр для вывода), затем точно по прошлому графу,
// затем нечётко по Жаккару множеств topTerms. Несопоставленные концепты
// считаются новыми, исчезнувшие из текущего графа - выпавшими.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultMasteryDeltaThreshold - минимальное изменение mastery,
	// попадающее в дифф.
	DefaultMasteryDeltaThreshold = 0.05

	// DefaultFuzzyJaccardMin - порог Жаккара для нечёткого сопоставления.
	DefaultFuzzyJaccardMin = 0.25
)

// DiffConfig - настройки сравнения версий.
type DiffConfig struct {
	MasteryDeltaThreshold float64
	FuzzyMatchEnabled     bool
	FuzzyJaccardMin       float64
}

// withDefaults подставляет значения по умолчанию вместо нулевых порогов.
func (c DiffConfig) withDefaults() DiffConfig {
	if c.MasteryDeltaThreshold <= 0 {
		c.MasteryDeltaThreshold = DefaultMasteryDeltaThreshold
	}
	if c.FuzzyJaccardMin <= 0 {
		c.FuzzyJaccardMin = DefaultFuzzyJaccardMin
	}
	return c
}

// MasteryChange - одно изменение mastery между версиями.
type MasteryChange struct {
	Label  string  `json:"label"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Delta  float64 `json:"delta"`
}

// WarningsDiff - разница множеств кодов предупреждений.
type WarningsDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Diff - результат сравнения. Оба поля присутствуют всегда, даже пустыми:
// контракт для потребителей единообразен.
type Diff struct {
	MasteryChanges []MasteryChange `json:"masteryChanges"`
	WarningsDiff   WarningsDiff    `json:"warningsDiff"`
}

// conceptIndex - подготовленные соответствия одного графа.
type conceptIndex struct {
	order   []string
	mastery map[string]float64
	terms   map[string]map[string]bool
	labels  map[string]string
}

func indexGraph(g *concept.Graph) conceptIndex {
	idx := conceptIndex{
		mastery: make(map[string]float64),
		terms:   make(map[string]map[string]bool),
		labels:  make(map[string]string),
	}
	if g == nil {
		return idx
	}
	for _, c := range g.Concepts {
		ln := normLabel(c.Label)
		if ln == "" {
			continue
		}
		if _, seen := idx.mastery[ln]; !seen {
			idx.order = append(idx.order, ln)
		}
		idx.mastery[ln] = c.MasteryScore
		idx.terms[ln] = c.TermSet()
		idx.labels[ln] = c.Label
	}
	return idx
}

func normLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ComputeDiff сравнивает предыдущую и текущую версии. Предыдущий отчёт и
// предыдущий граф опциональны: без них все текущие концепты новые.
func ComputeDiff(
	prevInsight *Payload,
	curInsight Payload,
	prevGraph *concept.Graph,
	curGraph concept.Graph,
	cfg DiffConfig,
) Diff {
	cfg = cfg.withDefaults()

	prevOverMastery := make(map[string]float64)
	prevOverLabel := make(map[string]string)
	if prevInsight != nil {
		for _, c := range prevInsight.ConceptOverview {
			ln := normLabel(c.Label)
			if ln == "" {
				continue
			}
			prevOverMastery[ln] = c.Mastery
			prevOverLabel[ln] = c.Label
		}
	}

	prev := indexGraph(prevGraph)
	cur := indexGraph(&curGraph)

	changes := []MasteryChange{}
	for _, ln := range cur.order {
		curMastery := cur.mastery[ln]

		var prevMastery *float64
		labelOut := ""
		if m, ok := prevOverMastery[ln]; ok {
			prevMastery = &m
			labelOut = prevOverLabel[ln]
		} else if m, ok := prev.mastery[ln]; ok {
			prevMastery = &m
		} else if cfg.FuzzyMatchEnabled {
			if matched, ok := fuzzyMatch(cur.terms[ln], prev, cfg.FuzzyJaccardMin); ok {
				if m, found := prevOverMastery[matched]; found {
					prevMastery = &m
					labelOut = prevOverLabel[matched]
				} else if m, found := prev.mastery[matched]; found {
					prevMastery = &m
				}
			}
		}
		if labelOut == "" {
			labelOut = ln
		}

		if prevMastery == nil {
			if curMastery >= cfg.MasteryDeltaThreshold {
				changes = append(changes, MasteryChange{
					Label:  labelOut,
					Before: 0.0,
					After:  concept.Round3(curMastery),
					Delta:  concept.Round3(curMastery),
				})
			}
			continue
		}

		delta := curMastery - *prevMastery
		if abs(delta) >= cfg.MasteryDeltaThreshold {
			changes = append(changes, MasteryChange{
				Label:  labelOut,
				Before: concept.Round3(*prevMastery),
				After:  concept.Round3(curMastery),
				Delta:  concept.Round3(delta),
			})
		}
	}

	changes = append(changes, droppedConcepts(prev, cur, prevOverLabel, cfg.MasteryDeltaThreshold)...)

	return Diff{
		MasteryChanges: changes,
		WarningsDiff:   diffWarnings(prevInsight, curInsight),
	}
}

// fuzzyMatch ищет лучший по Жаккару прошлый концепт не ниже порога.
// Перебор идёт в порядке прошлого графа, равный счёт оставляет первого.
func fuzzyMatch(curTerms map[string]bool, prev conceptIndex, jaccardMin float64) (string, bool) {
	if len(curTerms) == 0 {
		return "", false
	}
	best := ""
	bestScore := 0.0
	for _, ln := range prev.order {
		score := concept.Jaccard(curTerms, prev.terms[ln])
		if score >= jaccardMin && score > bestScore {
			best = ln
			bestScore = score
		}
	}
	return best, best != ""
}

// droppedConcepts добавляет записи для концептов, исчезнувших из текущего
// графа. Порядок - лексикографический по нормализованной метке.
func droppedConcepts(prev, cur conceptIndex, prevOverLabel map[string]string, threshold float64) []MasteryChange {
	var droppedKeys []string
	for _, ln := range prev.order {
		if _, ok := cur.mastery[ln]; !ok {
			droppedKeys = append(droppedKeys, ln)
		}
	}
	sort.Strings(droppedKeys)

	var out []MasteryChange
	for _, ln := range droppedKeys {
		old := prev.mastery[ln]
		if old < threshold {
			continue
		}
		labelOut := prevOverLabel[ln]
		if labelOut == "" {
			labelOut = prev.labels[ln]
		}
		if labelOut == "" {
			labelOut = ln
		}
		out = append(out, MasteryChange{
			Label:  labelOut,
			Before: concept.Round3(old),
			After:  0.0,
			Delta:  concept.Round3(-old),
		})
	}
	return out
}

func diffWarnings(prevInsight *Payload, curInsight Payload) WarningsDiff {
	prevSet := make(map[string]bool)
	if prevInsight != nil {
		for _, code := range prevInsight.WarningCodes() {
			prevSet[code] = true
		}
	}
	curSet := make(map[string]bool)
	for _, code := range curInsight.WarningCodes() {
		curSet[code] = true
	}

	added := []string{}
	for code := range curSet {
		if !prevSet[code] {
			added = append(added, code)
		}
	}
	removed := []string{}
	for code := range prevSet {
		if !curSet[code] {
			removed = append(removed, code)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return WarningsDiff{Added: added, Removed: removed}
}

// FallbackLabelDiff - запасное сравнение строго по меткам, когда основной
// дифф не дал ни одного изменения (например, при выключенном нечётком
// сопоставлении). Метки сравниваются без нормализации регистра.
func FallbackLabelDiff(prevGraph *concept.Graph, curGraph concept.Graph, threshold float64) []MasteryChange {
	if threshold <= 0 {
		threshold = DefaultMasteryDeltaThreshold
	}
	prevMap := labelMasteryMap(prevGraph)
	curMap := labelMasteryMap(&curGraph)

	var changes []MasteryChange
	for _, label := range sortedKeys(intersect(prevMap, curMap)) {
		old, cur := prevMap[label], curMap[label]
		delta := cur - old
		if abs(delta) >= threshold {
			changes = append(changes, MasteryChange{
				Label:  label,
				Before: concept.Round3(old),
				After:  concept.Round3(cur),
				Delta:  concept.Round3(delta),
			})
		}
	}
	for _, label := range sortedKeys(subtract(curMap, prevMap)) {
		cur := curMap[label]
		if cur >= threshold {
			changes = append(changes, MasteryChange{
				Label:  label,
				Before: 0.0,
				After:  concept.Round3(cur),
				Delta:  concept.Round3(cur),
			})
		}
	}
	for _, label := range sortedKeys(subtract(prevMap, curMap)) {
		old := prevMap[label]
		if old >= threshold {
			changes = append(changes, MasteryChange{
				Label:  label,
				Before: concept.Round3(old),
				After:  0.0,
				Delta:  concept.Round3(-old),
			})
		}
	}
	return changes
}

func labelMasteryMap(g *concept.Graph) map[string]float64 {
	out := make(map[string]float64)
	if g == nil {
		return out
	}
	for _, c := range g.Concepts {
		if c.Label != "" {
			out[c.Label] = c.MasteryScore
		}
	}
	return out
}

func intersect(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range a {
		if _, ok := b[k]; ok {
			out[k] = v
		}
	}
	return out
}

func subtract(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range a {
		if _, ok := b[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
