package concept

import (
	"fmt"

	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONCEPT BUILDER
// Превращает список тем в узлы графа: slug, покрытие, посевные оценки
// mastery/difficulty и выравнивание по таксономии. Оценки здесь только
// стартовые - их переписывает MetricRefiner после привязки вопросов.
// ══════════════════════════════════════════════════════════════════════════════

// ConceptTerms - словарь привязки одного концепта: термины темы плюс
// термины сопоставленной таксономической записи. Порядок записей повторяет
// порядок тем (синтетический fallback всегда последний), что делает разбор
// ничьих при привязке вопросов детерминированным.
type ConceptTerms struct {
	Slug  string
	Terms []string
}

// BuildConcepts строит узлы концептов из тем. Возвращает узлы и упорядоченный
// словарь термов для последующей привязки вопросов. Гарантирует наличие
// синтетического концепта core-foundations.
func BuildConcepts(
	topics []subject.Topic,
	docTypes subject.DocTypeMap,
	taxonomy *TaxonomyIndex,
	taxonomyMatchMin float64,
) ([]Concept, []ConceptTerms) {
	if taxonomyMatchMin <= 0 {
		taxonomyMatchMin = DefaultTaxonomyMatchMin
	}

	counter := make(slugCounter)
	concepts := make([]Concept, 0, len(topics)+1)
	terms := make([]ConceptTerms, 0, len(topics)+1)

	totalWeight := 0.0
	for _, t := range topics {
		totalWeight += docTypes.WeightedWeight(t)
	}
	if totalWeight == 0 {
		totalWeight = 1.0
	}

	for _, topic := range topics {
		label := topic.Label
		if label == "" {
			label = "Concept"
		}
		baseSlug := Slugify(label)
		slug := counter.unique(baseSlug)

		weight := docTypes.WeightedWeight(topic)
		if weight == 0 {
			weight = 1.0
		}
		coverage := weight / totalWeight

		taxonomyPath, extraTerms := alignTaxonomy(topic, baseSlug, taxonomy, taxonomyMatchMin)

		concepts = append(concepts, Concept{
			Slug:         slug,
			Label:        label,
			Description:  fmt.Sprintf("Key ideas around %s", label),
			TaxonomyPath: taxonomyPath,
			MasteryScore: Clamp(0.4+coverage, 0.15, 0.95),
			Difficulty:   Clamp(1.2-coverage, 0.2, 0.95),
			Coverage:     coverage,
			Metadata: Metadata{
				Source:      "oracle.topics",
				TopTerms:    topic.Terms,
				DocumentIDs: topic.DocumentIDs,
			},
		})

		vocab := make([]string, 0, len(topic.Terms)+len(extraTerms))
		for _, t := range topic.Terms {
			if term := normalizeTerm(t.Term); term != "" {
				vocab = append(vocab, term)
			}
		}
		vocab = append(vocab, extraTerms...)
		terms = append(terms, ConceptTerms{Slug: slug, Terms: vocab})
	}

	if !hasSlug(terms, FallbackSlug) {
		concepts = append(concepts, fallbackConcept())
		terms = append(terms, ConceptTerms{Slug: FallbackSlug})
	}

	return concepts, terms
}

// fallbackConcept возвращает синтетический концепт, к которому привязываются
// вопросы без лексического перекрытия с темами.
func fallbackConcept() Concept {
	return Concept{
		Slug:         FallbackSlug,
		Label:        "Core Foundations",
		Description:  "Baseline comprehension and recall questions",
		TaxonomyPath: "foundation",
		MasteryScore: 0.55,
		Difficulty:   0.35,
		Coverage:     0.2,
		Metadata:     Metadata{Source: "oracle.inferred"},
	}
}

func hasSlug(terms []ConceptTerms, slug string) bool {
	for _, t := range terms {
		if t.Slug == slug {
			return true
		}
	}
	return false
}

// alignTaxonomy подбирает лучшую таксономическую запись для темы.
// Точное совпадение slug метки даёт счёт 2.0; иначе счёт - перекрытие термов,
// нормированное размером словаря записи. Принимается лучший счёт не ниже
// порога; при равенстве выигрывает первая запись.
func alignTaxonomy(
	topic subject.Topic,
	baseSlug string,
	taxonomy *TaxonomyIndex,
	matchMin float64,
) (path string, extraTerms []string) {
	if taxonomy == nil || len(taxonomy.Entries) == 0 {
		return "", nil
	}

	topicTerms := make(map[string]bool, len(topic.Terms))
	for _, t := range topic.Terms {
		if term := normalizeTerm(t.Term); term != "" {
			topicTerms[term] = true
		}
	}

	var best *TaxonomyEntry
	bestScore := 0.0
	for i := range taxonomy.Entries {
		entry := &taxonomy.Entries[i]
		score := 0.0
		entrySet := termSet(entry.Terms)
		if Slugify(entry.Label) == baseSlug {
			score = 2.0
		} else if len(topicTerms) > 0 && len(entrySet) > 0 {
			overlap := 0
			for term := range entrySet {
				if topicTerms[term] {
					overlap++
				}
			}
			score = float64(overlap) / float64(len(entrySet))
		}
		if score > bestScore {
			best = entry
			bestScore = score
		}
	}

	if best == nil || bestScore < matchMin {
		return "", nil
	}

	path = best.Path
	if path == "" {
		path = best.Label
	}
	seen := make(map[string]bool)
	for _, term := range best.Terms {
		t := normalizeTerm(term)
		if t != "" && !seen[t] {
			seen[t] = true
			extraTerms = append(extraTerms, t)
		}
	}
	return path, extraTerms
}

func termSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		if term := normalizeTerm(t); term != "" {
			set[term] = true
		}
	}
	return set
}
