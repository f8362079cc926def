// Package insight содержит производные представления поверх графа концептов:
// аналитический payload, прогноз, blueprint экзамена и дифф версий.
// Все вычисления чистые и детерминированные.
package insight

import "github.com/sparke-study/oracle-service/internal/domain/subject"

// ══════════════════════════════════════════════════════════════════════════════
// INSIGHT PAYLOAD
// ══════════════════════════════════════════════════════════════════════════════

// TopicHighlight - карточка темы для верхней части отчёта.
type TopicHighlight struct {
	Label  string              `json:"label"`
	Weight float64             `json:"weight"`
	Terms  []subject.TopicTerm `json:"terms"`
}

// ConceptOverview - сводная строка по концепту.
type ConceptOverview struct {
	Label      string  `json:"label"`
	Mastery    float64 `json:"mastery"`
	Difficulty float64 `json:"difficulty"`
}

// RiskConcept - концепт с наименьшим mastery.
type RiskConcept struct {
	Label   string  `json:"label"`
	Mastery float64 `json:"mastery"`
}

// FamilyCard - краткая карточка семейства вопросов.
type FamilyCard struct {
	Label     string `json:"label"`
	Synopsis  string `json:"synopsis"`
	Frequency int    `json:"frequency"`
}

// StudyPlanItem - рекомендация по рисковому концепту.
type StudyPlanItem struct {
	Title              string   `json:"title"`
	Focus              string   `json:"focus"`
	RecommendedActions []string `json:"recommendedActions"`
}

// Gap - тема, представленная только в syllabus/конспектах, но не в экзаменах.
type Gap struct {
	Label       string   `json:"label"`
	Reason      string   `json:"reason"`
	DocumentIDs []string `json:"documentIds"`
}

// ModeCount - количество вопросов одного режима внутри концепта.
type ModeCount struct {
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// ArchetypeEntry - распределение режимов оценивания по концепту.
type ArchetypeEntry struct {
	Label string      `json:"label"`
	Modes []ModeCount `json:"modes"`
}

// EvidenceItem - ссылка на документ-источник вопроса.
type EvidenceItem struct {
	DocumentID string   `json:"documentId,omitempty"`
	DocType    string   `json:"docType"`
	Marks      *float64 `json:"marks"`
}

// ExampleItem - усечённый текст вопроса-примера.
type ExampleItem struct {
	Prompt     string   `json:"prompt"`
	Marks      *float64 `json:"marks"`
	DocumentID string   `json:"documentId,omitempty"`
}

// ConceptEvidence - топ вопросов по баллам для одного концепта.
type ConceptEvidence struct {
	Label    string         `json:"label"`
	Evidence []EvidenceItem `json:"evidence"`
	Examples []ExampleItem  `json:"examples"`
}

// Warning - структурное предупреждение о качестве данных.
type Warning struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Payload - готовый аналитический отчёт по предмету. Производное
// представление: пересчитывается целиком на каждой сессии.
type Payload struct {
	TopicHighlights  []TopicHighlight  `json:"topicHighlights"`
	ConceptOverview  []ConceptOverview `json:"conceptOverview"`
	RiskConcepts     []RiskConcept     `json:"riskConcepts"`
	QuestionFamilies []FamilyCard      `json:"questionFamilies"`
	StudyPlan        []StudyPlanItem   `json:"studyPlan"`
	Gaps             []Gap             `json:"gaps"`
	Archetypes       []ArchetypeEntry  `json:"archetypes"`
	ConceptEvidence  []ConceptEvidence `json:"conceptEvidence"`
	Warnings         []Warning         `json:"warnings"`
	Mode             string            `json:"mode"`
}

// WarningCodes возвращает коды предупреждений в порядке появления.
func (p Payload) WarningCodes() []string {
	codes := make([]string, 0, len(p.Warnings))
	for _, w := range p.Warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

// ══════════════════════════════════════════════════════════════════════════════
// FORECAST
// ══════════════════════════════════════════════════════════════════════════════

// Probability - одна строка прогноза с фиксированной формулой.
type Probability struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ForecastEvidence - вспомогательные данные прогноза для UI и отладки.
type ForecastEvidence struct {
	Mode          string        `json:"mode"`
	ConceptCount  int           `json:"conceptCount"`
	LowestMastery []RiskConcept `json:"lowestMastery"`
}

// Forecast - прогноз уверенности к следующему экзамену.
type Forecast struct {
	Archetype          string           `json:"archetype"`
	NextExamConfidence float64          `json:"nextExamConfidence"`
	Probabilities      []Probability    `json:"probabilities"`
	Evidence           ForecastEvidence `json:"evidence"`
}
