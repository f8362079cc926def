// Package session описывает жизненный цикл одного запуска аналитической
// сессии: статусы, стадии прогресса и журнал запусков.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & STAGES
// ══════════════════════════════════════════════════════════════════════════════

// Status - терминальный или промежуточный статус запуска.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
	StatusSkipped    Status = "SKIPPED"
)

// Stage - стадия конвейера, сообщаемая наружу вместе с долей прогресса.
type Stage string

const (
	StageCollectDocuments Stage = "collect-documents"
	StageCollectChunks    Stage = "collect-chunks"
	StageTopics           Stage = "topics"
	StageTopicsReady      Stage = "topics-ready"
	StageConceptGraph     Stage = "concept-graph"
	StageInsightSynthesis Stage = "insight-synthesis"
	StageInsightReady     Stage = "insight-ready"

	// Стадии, используемые только в отчётах об ошибках.
	StageAuth           Stage = "auth"
	StageMissingSubject Stage = "missing-subject"
	StageChunks         Stage = "chunks"
	StageError          Stage = "error"
)

// stageRatios - доля прогресса каждой стадии.
var stageRatios = map[Stage]float64{
	StageCollectDocuments: 0.03,
	StageCollectChunks:    0.05,
	StageTopics:           0.25,
	StageTopicsReady:      0.45,
	StageConceptGraph:     0.6,
	StageInsightSynthesis: 0.8,
	StageInsightReady:     0.98,
}

// Ratio возвращает долю прогресса стадии; стадии ошибок дают 1.0.
func (s Stage) Ratio() float64 {
	if r, ok := stageRatios[s]; ok {
		return r
	}
	return 1.0
}

// Progress - одно сообщение о ходе сессии для внешнего приёмника.
type Progress struct {
	Status Status
	Stage  Stage
	Ratio  float64
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

// Run представляет одну запись журнала запусков сессий.
type Run struct {
	// ID - внутренний идентификатор записи.
	ID uuid.UUID

	// SubjectID - предмет, для которого шла сессия.
	SubjectID string

	// SessionID - идентификатор сессии в core-service.
	SessionID string

	// DocumentIDs - документы, выбранные для этой сессии.
	DocumentIDs []string

	// Status - текущий статус запуска.
	Status Status

	// Stage - последняя достигнутая стадия.
	Stage Stage

	// Error - текст ошибки для FAILED, иначе пусто.
	Error string

	// Timings - длительности этапов в секундах.
	Timings Timings

	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewRun создаёт запись журнала в статусе PROCESSING.
func NewRun(subjectID, sessionID string, documentIDs []string) *Run {
	return &Run{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		SessionID:   sessionID,
		DocumentIDs: documentIDs,
		Status:      StatusProcessing,
		Stage:       StageCollectDocuments,
		StartedAt:   time.Now().UTC(),
	}
}

// Finish переводит запись в терминальный статус.
func (r *Run) Finish(status Status, stage Stage, errText string) {
	now := time.Now().UTC()
	r.Status = status
	r.Stage = stage
	r.Error = errText
	r.FinishedAt = &now
}

// Timings - длительности этапов конвейера в секундах, округлённые до
// миллисекунд.
type Timings struct {
	Topics  float64 `json:"topics"`
	Graph   float64 `json:"graph"`
	Insight float64 `json:"insight"`
	Total   float64 `json:"total"`
}

// Repository - журнал запусков. Журнал существует ради наблюдаемости:
// ошибки записи не должны прерывать саму сессию.
type Repository interface {
	Save(ctx context.Context, run *Run) error
	UpdateStage(ctx context.Context, id uuid.UUID, status Status, stage Stage) error
	FinishRun(ctx context.Context, run *Run) error
	LastForSubject(ctx context.Context, subjectID string) (*Run, error)
}
