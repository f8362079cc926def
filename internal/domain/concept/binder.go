package concept

import (
	"sort"
	"strings"

	"github.com/sparke-study/oracle-service/internal/domain/question"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION BINDER
// Привязывает каждый вопрос к 1-2 лучшим концептам по лексическому
// перекрытию подсказки со словарём концепта. Вопрос без перекрытия уходит
// в core-foundations, поэтому непустая подсказка всегда даёт привязку.
// ══════════════════════════════════════════════════════════════════════════════

// fallbackBindWeight - вес привязки к core-foundations при нулевом перекрытии.
const fallbackBindWeight = 0.2

// BindQuestions возвращает привязки вопрос-концепт. topK ограничивает число
// концептов на вопрос (1 в SMALLSET, 2 в RICH). Вопросы с пустой подсказкой
// пропускаются.
func BindQuestions(questions []question.Question, terms []ConceptTerms, topK int) []Binding {
	if topK < 1 {
		topK = 1
	}

	var bindings []Binding
	for _, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			continue
		}
		tokens := Tokenize(q.Prompt)

		type candidate struct {
			slug  string
			score float64
		}
		var scored []candidate
		for _, ct := range terms {
			if len(ct.Terms) == 0 {
				continue
			}
			overlap := 0
			for _, term := range ct.Terms {
				if tokens[term] {
					overlap++
				}
			}
			if overlap > 0 {
				scored = append(scored, candidate{slug: ct.Slug, score: float64(overlap)})
			}
		}
		if len(scored) == 0 {
			scored = []candidate{{slug: FallbackSlug, score: fallbackBindWeight}}
		}

		// Стабильная сортировка: при равном перекрытии выигрывает концепт,
		// чья тема пришла раньше.
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].score > scored[j].score
		})
		if len(scored) > topK {
			scored = scored[:topK]
		}

		for _, c := range scored {
			bindings = append(bindings, Binding{
				QuestionID:  q.ID,
				ConceptSlug: c.slug,
				Weight:      Round3(c.score),
				Confidence:  Clamp(0.45+c.score*0.1, 0, 0.95),
				Rationale:   "Prompt language overlaps with " + strings.ReplaceAll(c.slug, "-", " "),
			})
		}
	}
	return bindings
}
