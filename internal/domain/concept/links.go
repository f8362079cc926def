package concept

import "sort"

// ══════════════════════════════════════════════════════════════════════════════
// LINK DERIVER
// Связи пар концептов из совместной встречаемости: чем больше общих
// вопросов, тем сильнее связь. Связи выводятся заново при каждой сборке
// графа и отдельно не персистятся.
// ══════════════════════════════════════════════════════════════════════════════

// prerequisiteWeightMin - порог веса, выше которого связь считается
// PREREQUISITE, а не SUPPORTS.
const prerequisiteWeightMin = 0.35

// DeriveLinks строит связи из привязок. Для каждого вопроса берётся
// множество различных привязанных концептов; каждая неупорядоченная пара
// внутри множества увеличивает счётчик общих вопросов. Slug в паре хранятся
// в отсортированном порядке, пары выводятся в порядке первого появления.
func DeriveLinks(bindings []Binding) []Link {
	conceptsByQuestion := make(map[string][]string)
	var questionOrder []string
	for _, b := range bindings {
		if b.QuestionID == "" || b.ConceptSlug == "" {
			continue
		}
		if _, seen := conceptsByQuestion[b.QuestionID]; !seen {
			questionOrder = append(questionOrder, b.QuestionID)
		}
		conceptsByQuestion[b.QuestionID] = append(conceptsByQuestion[b.QuestionID], b.ConceptSlug)
	}

	type pair struct{ left, right string }
	counts := make(map[pair]int)
	var pairOrder []pair

	for _, qid := range questionOrder {
		slugs := conceptsByQuestion[qid]
		unique := make(map[string]bool, len(slugs))
		for _, s := range slugs {
			unique[s] = true
		}
		sorted := make([]string, 0, len(unique))
		for s := range unique {
			sorted = append(sorted, s)
		}
		sort.Strings(sorted)

		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				p := pair{left: sorted[i], right: sorted[j]}
				if _, seen := counts[p]; !seen {
					pairOrder = append(pairOrder, p)
				}
				counts[p]++
			}
		}
	}

	links := make([]Link, 0, len(pairOrder))
	for _, p := range pairOrder {
		count := counts[p]
		weight := 0.2 + 0.1*float64(count)
		if weight > 1.0 {
			weight = 1.0
		}
		relation := RelationSupports
		if weight > prerequisiteWeightMin {
			relation = RelationPrerequisite
		}
		links = append(links, Link{
			FromSlug:        p.left,
			ToSlug:          p.right,
			Relation:        relation,
			Weight:          Round3(weight),
			SharedQuestions: count,
		})
	}
	return links
}
