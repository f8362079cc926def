package core

import (
	"github.com/sparke-study/oracle-service/internal/domain/insight"
)

// ══════════════════════════════════════════════════════════════════════════════
// DATA TRANSFER OBJECTS
// Wire-формы internal API core-service. Доменные типы не знают о JSON:
// всё сопоставление живёт в mapper.go.
// ══════════════════════════════════════════════════════════════════════════════

// DocumentDTO represents a subject document on the wire.
type DocumentDTO struct {
	ID           string `json:"id"`
	ResourceType string `json:"resourceType"`
}

// ChunkDTO represents one extracted text chunk.
type ChunkDTO struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
}

// QuestionDTO represents a parsed exam question.
type QuestionDTO struct {
	ID              string   `json:"id"`
	Index           int      `json:"index"`
	Prompt          string   `json:"prompt"`
	AssessmentMode  string   `json:"assessmentMode"`
	DocumentID      string   `json:"documentId"`
	Marks           *float64 `json:"marks"`
	MarksConfidence *float64 `json:"marksConfidence"`
	HasNonText      bool     `json:"hasNonText"`
	SolutionProfile string   `json:"solutionProfile,omitempty"`
}

// TopicTermDTO - термин темы с весом.
type TopicTermDTO struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// TopicDTO represents a topic cluster.
type TopicDTO struct {
	Label       string         `json:"label"`
	Weight      float64        `json:"weight"`
	Terms       []TopicTermDTO `json:"terms"`
	DocumentIDs []string       `json:"documentIds"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCEPT GRAPH WIRE FORM
// ══════════════════════════════════════════════════════════════════════════════

// ConceptMetadataDTO - происхождение концепта.
type ConceptMetadataDTO struct {
	Source      string         `json:"source"`
	TopTerms    []TopicTermDTO `json:"topTerms"`
	DocumentIDs []string       `json:"documentIds"`
}

// ConceptDTO represents a concept node.
type ConceptDTO struct {
	Slug         string             `json:"slug"`
	Label        string             `json:"label"`
	Description  string             `json:"description"`
	TaxonomyPath string             `json:"taxonomyPath,omitempty"`
	MasteryScore float64            `json:"masteryScore"`
	Difficulty   float64            `json:"difficulty"`
	Coverage     float64            `json:"coverage"`
	Metadata     ConceptMetadataDTO `json:"metadata"`
}

// QuestionRefDTO - ссылка на вопрос во вложенном объекте.
type QuestionRefDTO struct {
	QuestionID string `json:"questionId"`
}

// BindingDTO represents a question-to-concept binding.
type BindingDTO struct {
	Question    QuestionRefDTO `json:"question"`
	ConceptSlug string         `json:"conceptSlug"`
	Weight      float64        `json:"weight"`
	Confidence  float64        `json:"confidence"`
	Rationale   string         `json:"rationale"`
}

// LinkMetadataDTO - метаданные связи.
type LinkMetadataDTO struct {
	SharedQuestions int `json:"sharedQuestions"`
}

// LinkDTO represents a concept link.
type LinkDTO struct {
	FromSlug string          `json:"fromSlug"`
	ToSlug   string          `json:"toSlug"`
	Relation string          `json:"relation"`
	Weight   float64         `json:"weight"`
	Metadata LinkMetadataDTO `json:"metadata"`
}

// FamilyMemberDTO - участник семейства вопросов.
type FamilyMemberDTO struct {
	Question QuestionRefDTO `json:"question"`
	Role     string         `json:"role"`
}

// FamilyDTO represents a question family.
type FamilyDTO struct {
	Label      string            `json:"label"`
	Archetype  string            `json:"archetype"`
	Difficulty float64           `json:"difficulty"`
	Frequency  int               `json:"frequency"`
	Synopsis   string            `json:"synopsis"`
	Members    []FamilyMemberDTO `json:"members"`
}

// GraphDTO represents a full concept-graph version.
type GraphDTO struct {
	Concepts         []ConceptDTO `json:"concepts"`
	Links            []LinkDTO    `json:"links"`
	QuestionConcepts []BindingDTO `json:"questionConcepts"`
	Families         []FamilyDTO  `json:"families"`
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES & VERSIONS
// ══════════════════════════════════════════════════════════════════════════════

// TemplateDTO represents a stored exam template.
type TemplateDTO struct {
	ID        string             `json:"id"`
	Version   int                `json:"version"`
	Season    string             `json:"season,omitempty"`
	Blueprint *insight.Blueprint `json:"blueprint,omitempty"`
}

// TemplateResponseDTO wraps the latest template lookup.
type TemplateResponseDTO struct {
	Template *TemplateDTO `json:"template"`
}

// TemplatePutDTO is the body for persisting a new template version.
type TemplatePutDTO struct {
	Blueprint insight.Blueprint `json:"blueprint"`
}

// VersionPayloadDTO - содержимое сохранённой версии отчёта.
type VersionPayloadDTO struct {
	Insight      *insight.Payload `json:"insight,omitempty"`
	ConceptGraph *GraphDTO        `json:"conceptGraph,omitempty"`
}

// InsightVersionDTO represents the latest stored insight version.
type InsightVersionDTO struct {
	VersionID string            `json:"versionId,omitempty"`
	Payload   VersionPayloadDTO `json:"payload"`
}

// ReadyPayloadDTO - публикуемый срез финальной версии.
type ReadyPayloadDTO struct {
	Insight      insight.Payload         `json:"insight"`
	RiskConcepts []insight.RiskConcept   `json:"riskConcepts"`
	StudyPlan    []insight.StudyPlanItem `json:"studyPlan"`
	Template     *TemplateDTO            `json:"template"`
	Warnings     []string                `json:"warnings,omitempty"`
	Diffs        *insight.Diff           `json:"diffs,omitempty"`
	ConceptGraph *GraphDTO               `json:"conceptGraph,omitempty"`
}

// VersionUpdateDTO is the body of the insight-version upsert.
// Поля-указатели опускаются, когда соответствующая часть не посылается.
type VersionUpdateDTO struct {
	SessionID     string            `json:"sessionId"`
	Status        string            `json:"status"`
	VersionID     string            `json:"versionId,omitempty"`
	ProgressStage string            `json:"progressStage,omitempty"`
	ProgressRatio *float64          `json:"progressRatio,omitempty"`
	Payload       *ReadyPayloadDTO  `json:"payload,omitempty"`
	Forecast      *insight.Forecast `json:"forecast,omitempty"`
	Diffs         *insight.Diff     `json:"diffs,omitempty"`
	Publish       bool              `json:"publish,omitempty"`
}

// VersionPutResponseDTO is the upsert response.
type VersionPutResponseDTO struct {
	VersionID string `json:"versionId"`
}

// SessionSummaryDTO - счётчики входных данных.
type SessionSummaryDTO struct {
	DocCount      int `json:"docCount"`
	ChunkCount    int `json:"chunkCount"`
	QuestionCount int `json:"questionCount"`
}

// TimingsDTO - длительности этапов в секундах.
type TimingsDTO struct {
	Topics  float64 `json:"topics"`
	Graph   float64 `json:"graph"`
	Insight float64 `json:"insight"`
	Total   float64 `json:"total"`
}

// SessionResultDTO - полный результат сессии для core-service.
type SessionResultDTO struct {
	Summary      SessionSummaryDTO `json:"summary"`
	Topics       []TopicDTO        `json:"topics"`
	ConceptGraph GraphDTO          `json:"conceptGraph"`
	Insight      insight.Payload   `json:"insight"`
	Forecast     insight.Forecast  `json:"forecast"`
	Template     *TemplateDTO      `json:"template"`
	Warnings     []string          `json:"warnings,omitempty"`
	Diffs        insight.Diff      `json:"diffs"`
	Timings      TimingsDTO        `json:"timings"`
}

// SessionUpdateDTO is the body of the terminal session update.
type SessionUpdateDTO struct {
	Status string            `json:"status"`
	Result *SessionResultDTO `json:"result,omitempty"`
}
