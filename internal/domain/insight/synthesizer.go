package insight

import (
	"sort"

	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// INSIGHT SYNTHESIZER
// Читающий преобразователь: граф не мутируется, все карточки и
// предупреждения выводятся из готовых метрик.
// ══════════════════════════════════════════════════════════════════════════════

const (
	maxTopicHighlights  = 6
	maxRiskConcepts     = 3
	maxEvidencePerNode  = 3
	promptPreviewLength = 160

	lowDataExamLimit     = 1
	lowDataQuestionLimit = 5
	nonTextShareLimit    = 0.3
	marksConfidenceFloor = 0.7
)

// Synthesize собирает аналитический payload по готовому графу,
// исходным темам, вопросам и типам документов.
func Synthesize(
	graph concept.Graph,
	topics []subject.Topic,
	questions []question.Question,
	docTypes subject.DocTypeMap,
	mode concept.Mode,
) Payload {
	risk := lowestMastery(graph.Concepts, maxRiskConcepts)

	p := Payload{
		TopicHighlights:  topicHighlights(topics),
		ConceptOverview:  conceptOverview(graph.Concepts),
		RiskConcepts:     riskCards(risk),
		QuestionFamilies: familyCards(graph.Families),
		StudyPlan:        studyPlan(risk),
		Gaps:             detectGaps(topics, docTypes),
		Mode:             string(mode),
	}
	p.Archetypes, p.ConceptEvidence = bindingBreakdown(graph, questions, docTypes)
	p.Warnings = qualityWarnings(questions, docTypes, p.Gaps)
	return p
}

func topicHighlights(topics []subject.Topic) []TopicHighlight {
	out := make([]TopicHighlight, 0, maxTopicHighlights)
	for _, t := range topics {
		if len(out) >= maxTopicHighlights {
			break
		}
		out = append(out, TopicHighlight{Label: t.Label, Weight: t.Weight, Terms: t.Terms})
	}
	return out
}

func conceptOverview(concepts []concept.Concept) []ConceptOverview {
	out := make([]ConceptOverview, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, ConceptOverview{Label: c.Label, Mastery: c.MasteryScore, Difficulty: c.Difficulty})
	}
	return out
}

// lowestMastery возвращает n концептов с наименьшим mastery, сохраняя
// исходный порядок при равенстве.
func lowestMastery(concepts []concept.Concept, n int) []concept.Concept {
	sorted := make([]concept.Concept, len(concepts))
	copy(sorted, concepts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MasteryScore < sorted[j].MasteryScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func riskCards(risk []concept.Concept) []RiskConcept {
	out := make([]RiskConcept, 0, len(risk))
	for _, c := range risk {
		out = append(out, RiskConcept{Label: c.Label, Mastery: c.MasteryScore})
	}
	return out
}

func familyCards(families []concept.Family) []FamilyCard {
	out := make([]FamilyCard, 0, len(families))
	for _, f := range families {
		out = append(out, FamilyCard{Label: f.Label, Synopsis: f.Synopsis, Frequency: f.Frequency})
	}
	return out
}

func studyPlan(risk []concept.Concept) []StudyPlanItem {
	out := make([]StudyPlanItem, 0, len(risk))
	for _, c := range risk {
		out = append(out, StudyPlanItem{
			Title: c.Label,
			Focus: "Close gaps on prerequisite theory.",
			RecommendedActions: []string{
				"Review solved examples",
				"Attempt one timed drill",
			},
		})
	}
	return out
}

// detectGaps находит темы, представленные в syllabus/конспектах,
// но ни разу не встретившиеся в экзаменах.
func detectGaps(topics []subject.Topic, docTypes subject.DocTypeMap) []Gap {
	var gaps []Gap
	if len(docTypes) == 0 {
		return gaps
	}
	for _, t := range topics {
		hasExam := false
		hasSyllabus := false
		for _, docID := range t.DocumentIDs {
			switch docTypes.TypeOf(docID) {
			case subject.ResourceExam:
				hasExam = true
			case subject.ResourceSyllabus, subject.ResourceLectureNotes:
				hasSyllabus = true
			}
		}
		if hasSyllabus && !hasExam {
			gaps = append(gaps, Gap{
				Label:       t.Label,
				Reason:      "syllabus-only",
				DocumentIDs: t.DocumentIDs,
			})
		}
	}
	return gaps
}

// bindingBreakdown строит распределение режимов и топ-вопросы по баллам
// для каждого концепта, имеющего привязки. Порядок концептов - порядок
// первой встреченной привязки.
func bindingBreakdown(
	graph concept.Graph,
	questions []question.Question,
	docTypes subject.DocTypeMap,
) ([]ArchetypeEntry, []ConceptEvidence) {
	if len(graph.QuestionConcepts) == 0 || len(questions) == 0 {
		return nil, nil
	}

	byID := make(map[string]question.Question, len(questions))
	for _, q := range questions {
		if q.ID != "" {
			byID[q.ID] = q
		}
	}

	byConcept := graph.QuestionIDsByConcept()
	var slugOrder []string
	seen := make(map[string]bool)
	for _, b := range graph.QuestionConcepts {
		if b.ConceptSlug == "" || seen[b.ConceptSlug] {
			continue
		}
		seen[b.ConceptSlug] = true
		slugOrder = append(slugOrder, b.ConceptSlug)
	}

	var archetypes []ArchetypeEntry
	var evidence []ConceptEvidence
	for _, slug := range slugOrder {
		node := graph.ConceptBySlug(slug)
		label := slug
		if node != nil {
			label = node.Label
		}

		qids := make([]string, 0, len(byConcept[slug]))
		for _, qid := range byConcept[slug] {
			if _, ok := byID[qid]; ok {
				qids = append(qids, qid)
			}
		}
		if len(qids) == 0 {
			continue
		}

		archetypes = append(archetypes, ArchetypeEntry{Label: label, Modes: modeHistogram(qids, byID)})
		evidence = append(evidence, conceptEvidence(label, qids, byID, docTypes))
	}
	return archetypes, evidence
}

func modeHistogram(qids []string, byID map[string]question.Question) []ModeCount {
	counts := make(map[string]int)
	for _, qid := range qids {
		mode := string(byID[qid].AssessmentMode)
		if mode == "" {
			mode = string(question.ModeUnknown)
		}
		counts[mode]++
	}
	out := make([]ModeCount, 0, len(counts))
	for mode, count := range counts {
		out = append(out, ModeCount{Mode: mode, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

func conceptEvidence(
	label string,
	qids []string,
	byID map[string]question.Question,
	docTypes subject.DocTypeMap,
) ConceptEvidence {
	top := make([]string, len(qids))
	copy(top, qids)
	sort.SliceStable(top, func(i, j int) bool {
		return byID[top[i]].MarksOrZero() > byID[top[j]].MarksOrZero()
	})
	if len(top) > maxEvidencePerNode {
		top = top[:maxEvidencePerNode]
	}

	ev := ConceptEvidence{Label: label}
	for _, qid := range top {
		q := byID[qid]
		docType := string(subject.ResourceOther)
		if q.DocumentID != "" {
			docType = string(docTypes.TypeOf(q.DocumentID))
		}
		ev.Evidence = append(ev.Evidence, EvidenceItem{
			DocumentID: q.DocumentID,
			DocType:    docType,
			Marks:      q.Marks,
		})
		ev.Examples = append(ev.Examples, ExampleItem{
			Prompt:     truncatePrompt(q.Prompt),
			Marks:      q.Marks,
			DocumentID: q.DocumentID,
		})
	}
	return ev
}

func truncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= promptPreviewLength {
		return prompt
	}
	return string(runes[:promptPreviewLength]) + "…"
}

// qualityWarnings выводит предупреждения о качестве данных по фиксированным
// порогам.
func qualityWarnings(questions []question.Question, docTypes subject.DocTypeMap, gaps []Gap) []Warning {
	var warnings []Warning

	totalExams := docTypes.ExamCount()
	if totalExams <= lowDataExamLimit || len(questions) < lowDataQuestionLimit {
		warnings = append(warnings, Warning{
			Code:    "LOW_DATA",
			Message: "Limited exam evidence; insights may be less stable.",
			Evidence: map[string]any{
				"examCount":     totalExams,
				"questionCount": len(questions),
			},
		})
	}

	if len(gaps) > 0 {
		examples := make([]string, 0, 3)
		for _, g := range gaps {
			if len(examples) >= 3 {
				break
			}
			examples = append(examples, g.Label)
		}
		warnings = append(warnings, Warning{
			Code:    "SYLLABUS_ONLY",
			Message: "Some topics appear only in syllabus/notes and not exams.",
			Evidence: map[string]any{
				"topicCount": len(gaps),
				"examples":   examples,
			},
		})
	}

	if len(questions) > 0 {
		nonText := 0
		confTotal := 0.0
		confCount := 0
		for _, q := range questions {
			if q.HasNonText {
				nonText++
			}
			if q.MarksConfidence != nil {
				confTotal += *q.MarksConfidence
				confCount++
			}
		}
		nonTextShare := float64(nonText) / float64(len(questions))
		// Средняя уверенность считается только по вопросам, где parser её
		// сообщил; без единого значения порог не срабатывает.
		avgConf := 1.0
		if confCount > 0 {
			avgConf = confTotal / float64(confCount)
		}
		if nonTextShare >= nonTextShareLimit || avgConf < marksConfidenceFloor {
			warnings = append(warnings, Warning{
				Code:    "STRUCTURE_QUALITY",
				Message: "Low structural quality detected; OCR or layout may affect parsing.",
				Evidence: map[string]any{
					"nonTextShare":       concept.Round3(nonTextShare),
					"avgMarksConfidence": concept.Round3(avgConf),
					"totalQuestions":     len(questions),
				},
			})
		}
	}
	return warnings
}
