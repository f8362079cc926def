// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
// Каждая команда валидирует вход, прогоняет конвейер и отчитывается о
// прогрессе внешнему приёмнику.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/insight"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/session"
	"github.com/sparke-study/oracle-service/internal/domain/shared"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN INSIGHT SESSION COMMAND
// Полный прогон аналитической сессии предмета: документы, чанки, темы,
// граф концептов, отчёт, прогноз, дифф с прошлой версией.
// ══════════════════════════════════════════════════════════════════════════════

// RunInsightSessionCommand contains the data needed to run one session.
type RunInsightSessionCommand struct {
	// SubjectID идентифицирует предмет в core-service.
	SubjectID string

	// SessionID идентифицирует сессию, запрошенную пользователем.
	SessionID string

	// DocumentIDs - документы, выбранные для анализа.
	DocumentIDs []string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RunInsightSessionCommand) Validate() error {
	if c.SubjectID == "" {
		return shared.ErrSubjectMissing
	}
	if c.SessionID == "" {
		return shared.ErrSessionMissing
	}
	if len(c.DocumentIDs) == 0 {
		return shared.ErrDocumentsMissing
	}
	return nil
}

// documentIDSet нормализует список документов в множество непустых id.
func (c RunInsightSessionCommand) documentIDSet() map[string]bool {
	set := make(map[string]bool, len(c.DocumentIDs))
	for _, id := range c.DocumentIDs {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

// RunInsightSessionResult contains the outcome of one session run.
type RunInsightSessionResult struct {
	// Status - "ok", "skipped" или "error".
	Status string

	// Reason заполняется для skipped/error.
	Reason string

	SubjectID string
	SessionID string

	// Topics - количество найденных тем.
	Topics int
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT PAYLOAD
// ══════════════════════════════════════════════════════════════════════════════

// SessionSummary - счётчики входных данных сессии.
type SessionSummary struct {
	DocCount      int `json:"docCount"`
	ChunkCount    int `json:"chunkCount"`
	QuestionCount int `json:"questionCount"`
}

// TemplateInfo - сведения о последнем сохранённом шаблоне экзамена.
type TemplateInfo struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Season  string `json:"season,omitempty"`
}

// SessionResult - полный результат, доставляемый в core-service вместе с
// терминальным статусом сессии.
type SessionResult struct {
	Summary      SessionSummary   `json:"summary"`
	Topics       []subject.Topic  `json:"topics"`
	ConceptGraph concept.Graph    `json:"conceptGraph"`
	Insight      insight.Payload  `json:"insight"`
	Forecast     insight.Forecast `json:"forecast"`
	Template     *TemplateInfo    `json:"template"`
	Warnings     []string         `json:"warnings,omitempty"`
	Diffs        insight.Diff     `json:"diffs"`
	Timings      session.Timings  `json:"timings"`
}

// ReadyPayload - срез результата, публикуемый вместе с финальной версией.
type ReadyPayload struct {
	Insight      insight.Payload         `json:"insight"`
	RiskConcepts []insight.RiskConcept   `json:"riskConcepts"`
	StudyPlan    []insight.StudyPlanItem `json:"studyPlan"`
	Template     *TemplateInfo           `json:"template"`
	Warnings     []string                `json:"warnings,omitempty"`
	Diffs        insight.Diff            `json:"diffs"`
	ConceptGraph concept.Graph           `json:"conceptGraph"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// DocumentLister fetches subject documents with resource types.
type DocumentLister interface {
	ListDocuments(ctx context.Context, subjectID string) ([]subject.Document, error)
}

// ChunkLister fetches subject text chunks.
type ChunkLister interface {
	ListChunks(ctx context.Context, subjectID string) ([]subject.Chunk, error)
}

// QuestionLister fetches parsed exam questions.
type QuestionLister interface {
	ListQuestions(ctx context.Context, subjectID string) ([]question.Question, error)
}

// TopicModeler computes subject topics from text records.
type TopicModeler interface {
	ComputeTopics(ctx context.Context, records []subject.TextRecord) ([]subject.Topic, error)
}

// LatestTemplate - последний шаблон экзамена с его blueprint.
type LatestTemplate struct {
	Info      TemplateInfo
	Blueprint *insight.Blueprint
}

// TemplateStore reads and writes exam-template versions.
type TemplateStore interface {
	GetLatestTemplate(ctx context.Context, subjectID string) (*LatestTemplate, error)
	PutTemplate(ctx context.Context, subjectID string, blueprint insight.Blueprint) error
}

// VersionSnapshot - предыдущая версия отчёта и графа, если была.
type VersionSnapshot struct {
	Insight      *insight.Payload
	ConceptGraph *concept.Graph
}

// InsightVersionStore reads the previous insight version and writes graphs.
type InsightVersionStore interface {
	GetLatestVersion(ctx context.Context, subjectID string) (*VersionSnapshot, error)
	PutConceptGraph(ctx context.Context, subjectID string, graph concept.Graph) error
}

// ProgressSink receives progress updates and the final published version.
// Реализация может сохранять versionId между вызовами одной сессии.
type ProgressSink interface {
	Report(ctx context.Context, subjectID, sessionID string, p session.Progress) error
	PublishReady(ctx context.Context, subjectID, sessionID string, payload ReadyPayload, forecast insight.Forecast) error
}

// SessionUpdater delivers the terminal session status with the full result.
type SessionUpdater interface {
	UpdateSession(ctx context.Context, subjectID, sessionID string, status session.Status, result *SessionResult) error
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// EngineConfig - настройки движка, передаваемые явно вместо глобального
// синглтона.
type EngineConfig struct {
	TaxonomyMatchMin          float64
	DiffMasteryDeltaThreshold float64
	DiffFuzzyMatchEnabled     bool
	DiffFuzzyJaccardMin       float64
	SuppressTemplateWarnings  bool
}

// DefaultEngineConfig returns default engine thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TaxonomyMatchMin:          concept.DefaultTaxonomyMatchMin,
		DiffMasteryDeltaThreshold: insight.DefaultMasteryDeltaThreshold,
		DiffFuzzyMatchEnabled:     false,
		DiffFuzzyJaccardMin:       insight.DefaultFuzzyJaccardMin,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RunInsightSessionHandler handles the RunInsightSessionCommand.
type RunInsightSessionHandler struct {
	documents DocumentLister
	chunks    ChunkLister
	questions QuestionLister
	topics    TopicModeler
	templates TemplateStore
	versions  InsightVersionStore
	progress  ProgressSink
	sessions  SessionUpdater
	journal   session.Repository

	cfg EngineConfig
	log *slog.Logger
}

// NewRunInsightSessionHandler creates a new RunInsightSessionHandler.
// Журнал запусков опционален: nil отключает его.
func NewRunInsightSessionHandler(
	documents DocumentLister,
	chunks ChunkLister,
	questions QuestionLister,
	topics TopicModeler,
	templates TemplateStore,
	versions InsightVersionStore,
	progress ProgressSink,
	sessions SessionUpdater,
	journal session.Repository,
	cfg EngineConfig,
	log *slog.Logger,
) *RunInsightSessionHandler {
	if cfg.DiffMasteryDeltaThreshold <= 0 {
		cfg.DiffMasteryDeltaThreshold = insight.DefaultMasteryDeltaThreshold
	}
	if cfg.DiffFuzzyJaccardMin <= 0 {
		cfg.DiffFuzzyJaccardMin = insight.DefaultFuzzyJaccardMin
	}
	if log == nil {
		log = slog.Default()
	}
	return &RunInsightSessionHandler{
		documents: documents,
		chunks:    chunks,
		questions: questions,
		topics:    topics,
		templates: templates,
		versions:  versions,
		progress:  progress,
		sessions:  sessions,
		journal:   journal,
		cfg:       cfg,
		log:       log,
	}
}

// Handle executes the run insight session command.
// Ошибки после старта конвейера сопровождаются отчётом FAILED и
// возвращаются наверх: политика повторов живёт у вызывающего.
func (h *RunInsightSessionHandler) Handle(ctx context.Context, cmd RunInsightSessionCommand) (*RunInsightSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("run_insight_session: %w", err)
	}

	run := session.NewRun(cmd.SubjectID, cmd.SessionID, cmd.DocumentIDs)
	h.journalSave(ctx, run)

	result, err := h.runPipeline(ctx, cmd, run)
	if err != nil {
		h.report(ctx, cmd, session.Progress{Status: session.StatusFailed, Stage: session.StageError, Ratio: 1.0})
		run.Finish(session.StatusFailed, session.StageError, err.Error())
		h.journalFinish(ctx, run)
		return nil, err
	}

	switch result.Status {
	case "skipped":
		run.Finish(session.StatusSkipped, session.StageMissingSubject, "")
	default:
		run.Finish(session.StatusReady, session.StageInsightReady, "")
	}
	h.journalFinish(ctx, run)
	return result, nil
}

func (h *RunInsightSessionHandler) runPipeline(
	ctx context.Context,
	cmd RunInsightSessionCommand,
	run *session.Run,
) (*RunInsightSessionResult, error) {
	started := time.Now()
	docIDSet := cmd.documentIDSet()

	// Типы документов нужны для скоринга, но их отсутствие не фатально.
	h.report(ctx, cmd, progressFor(session.StageCollectDocuments))
	docTypes := subject.DocTypeMap{}
	if docs, err := h.documents.ListDocuments(ctx, cmd.SubjectID); err != nil {
		h.log.Warn("failed to list documents, proceeding without doc types",
			slog.String("subject_id", cmd.SubjectID), slog.Any("error", err))
	} else {
		for _, d := range docs {
			docTypes[d.ID] = d.ResourceType
		}
	}

	h.report(ctx, cmd, progressFor(session.StageCollectChunks))
	h.journalStage(ctx, run, session.StageCollectChunks)
	allChunks, err := h.chunks.ListChunks(ctx, cmd.SubjectID)
	if err != nil {
		switch {
		case shared.IsNotFound(err):
			h.report(ctx, cmd, session.Progress{Status: session.StatusFailed, Stage: session.StageMissingSubject, Ratio: 1.0})
			h.log.Warn("subject not found, skipping session",
				slog.String("subject_id", cmd.SubjectID), slog.String("session_id", cmd.SessionID))
			return &RunInsightSessionResult{
				Status:    "skipped",
				Reason:    "subject not found",
				SubjectID: cmd.SubjectID,
				SessionID: cmd.SessionID,
			}, nil
		case shared.IsUnauthorized(err):
			h.report(ctx, cmd, session.Progress{Status: session.StatusFailed, Stage: session.StageAuth, Ratio: 1.0})
			return nil, fmt.Errorf("run_insight_session: core API rejected credentials: %w", err)
		default:
			h.report(ctx, cmd, session.Progress{Status: session.StatusFailed, Stage: session.StageChunks, Ratio: 1.0})
			return nil, fmt.Errorf("run_insight_session: failed to list chunks: %w", err)
		}
	}

	var selected []subject.Chunk
	for _, c := range allChunks {
		if docIDSet[c.DocumentID] {
			selected = append(selected, c)
		}
	}

	h.report(ctx, cmd, progressFor(session.StageTopics))
	h.journalStage(ctx, run, session.StageTopics)
	records := make([]subject.TextRecord, 0, len(selected))
	for _, c := range selected {
		if c.Text != "" {
			records = append(records, subject.TextRecord{Text: c.Text, DocumentID: c.DocumentID})
		}
	}
	topics, err := h.topics.ComputeTopics(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("run_insight_session: topic modeling failed: %w", err)
	}
	h.report(ctx, cmd, progressFor(session.StageTopicsReady))
	topicsDone := time.Now()

	// Вопросы опциональны: без них граф строится только из тем.
	questions, err := h.questions.ListQuestions(ctx, cmd.SubjectID)
	if err != nil {
		h.log.Warn("failed to list questions, proceeding without them",
			slog.String("subject_id", cmd.SubjectID), slog.Any("error", err))
		questions = nil
	}

	h.report(ctx, cmd, progressFor(session.StageConceptGraph))
	h.journalStage(ctx, run, session.StageConceptGraph)
	graph, mode := concept.BuildGraph(topics, questions, docTypes, nil, h.cfg.TaxonomyMatchMin)
	graphDone := time.Now()

	h.log.Info("session graph built",
		slog.String("session_id", cmd.SessionID),
		slog.Int("topics", len(topics)),
		slog.Int("concepts", len(graph.Concepts)),
		slog.Int("families", len(graph.Families)))

	if err := h.versions.PutConceptGraph(ctx, cmd.SubjectID, graph); err != nil {
		h.log.Warn("failed to upsert concept graph",
			slog.String("subject_id", cmd.SubjectID), slog.Any("error", err))
	}

	templateInfo, warnings := h.trackTemplate(ctx, cmd.SubjectID, questions)

	h.report(ctx, cmd, progressFor(session.StageInsightSynthesis))
	h.journalStage(ctx, run, session.StageInsightSynthesis)
	payload := insight.Synthesize(graph, topics, questions, docTypes, mode)
	forecast := insight.EstimateForecast(graph.Concepts, mode)

	prev := h.fetchPreviousVersion(ctx, cmd.SubjectID)
	diffs := insight.ComputeDiff(prev.Insight, payload, prev.ConceptGraph, graph, insight.DiffConfig{
		MasteryDeltaThreshold: h.cfg.DiffMasteryDeltaThreshold,
		FuzzyMatchEnabled:     h.cfg.DiffFuzzyMatchEnabled,
		FuzzyJaccardMin:       h.cfg.DiffFuzzyJaccardMin,
	})
	if len(diffs.MasteryChanges) == 0 {
		diffs.MasteryChanges = insight.FallbackLabelDiff(prev.ConceptGraph, graph, h.cfg.DiffMasteryDeltaThreshold)
		if diffs.MasteryChanges == nil {
			diffs.MasteryChanges = []insight.MasteryChange{}
		}
	}
	forecast = insight.NudgeConfidence(forecast, diffs.MasteryChanges)

	if prev.Insight == nil && prev.ConceptGraph == nil {
		warnings = append(warnings, "diffs_baseline_unavailable")
	}
	insightDone := time.Now()

	result := &SessionResult{
		Summary: SessionSummary{
			DocCount:      len(docIDSet),
			ChunkCount:    len(selected),
			QuestionCount: len(questions),
		},
		Topics:       topics,
		ConceptGraph: graph,
		Insight:      payload,
		Forecast:     forecast,
		Template:     templateInfo,
		Warnings:     warnings,
		Diffs:        diffs,
		Timings: session.Timings{
			Topics:  roundSeconds(topicsDone.Sub(started)),
			Graph:   roundSeconds(graphDone.Sub(topicsDone)),
			Insight: roundSeconds(insightDone.Sub(graphDone)),
			Total:   roundSeconds(insightDone.Sub(started)),
		},
	}
	run.Timings = result.Timings

	if err := h.progress.PublishReady(ctx, cmd.SubjectID, cmd.SessionID, ReadyPayload{
		Insight:      payload,
		RiskConcepts: payload.RiskConcepts,
		StudyPlan:    payload.StudyPlan,
		Template:     templateInfo,
		Warnings:     warnings,
		Diffs:        diffs,
		ConceptGraph: graph,
	}, forecast); err != nil {
		h.log.Warn("failed to publish ready version",
			slog.String("session_id", cmd.SessionID), slog.Any("error", err))
	}

	if err := h.sessions.UpdateSession(ctx, cmd.SubjectID, cmd.SessionID, session.StatusReady, result); err != nil {
		return nil, fmt.Errorf("run_insight_session: failed to update session: %w", err)
	}

	h.log.Info("insight session ready",
		slog.String("session_id", cmd.SessionID),
		slog.String("subject_id", cmd.SubjectID),
		slog.Int("doc_count", len(docIDSet)),
		slog.Int("concept_count", len(graph.Concepts)),
		slog.Int("warning_count", len(warnings)),
		slog.Int("diff_mastery_changes", len(diffs.MasteryChanges)),
		slog.Float64("total_seconds", result.Timings.Total))

	return &RunInsightSessionResult{
		Status:    "ok",
		SubjectID: cmd.SubjectID,
		SessionID: cmd.SessionID,
		Topics:    len(topics),
	}, nil
}

// trackTemplate сопровождает blueprint экзамена: читает последний шаблон,
// решает, пора ли сохранить новый, и выводит советы. Все сетевые сбои
// здесь превращаются в строки-предупреждения, не прерывая сессию.
func (h *RunInsightSessionHandler) trackTemplate(
	ctx context.Context,
	subjectID string,
	questions []question.Question,
) (*TemplateInfo, []string) {
	var warnings []string
	var templateInfo *TemplateInfo
	var prevBlueprint *insight.Blueprint

	latest, err := h.templates.GetLatestTemplate(ctx, subjectID)
	switch {
	case err != nil && shared.IsRetryable(err):
		warnings = append(warnings, "template_fetch_error")
	case err != nil:
		warnings = append(warnings, "template_fetch_failed")
	case latest != nil:
		info := latest.Info
		templateInfo = &info
		prevBlueprint = latest.Blueprint
	}

	current := insight.InferBlueprint(questions)
	if insight.ShouldUpdateTemplate(prevBlueprint, current) {
		if err := h.templates.PutTemplate(ctx, subjectID, current); err != nil {
			if shared.IsRetryable(err) {
				warnings = append(warnings, "template_update_error")
			} else {
				warnings = append(warnings, "template_update_failed")
			}
		} else {
			warnings = append(warnings, "template_updated")
		}
	}

	warnings = append(warnings, insight.TeacherStyleWarnings(current)...)
	if h.cfg.SuppressTemplateWarnings {
		warnings = nil
	}
	return templateInfo, warnings
}

// fetchPreviousVersion читает прошлую версию отчёта; любой сбой означает
// отсутствие базы для диффа.
func (h *RunInsightSessionHandler) fetchPreviousVersion(ctx context.Context, subjectID string) VersionSnapshot {
	snap, err := h.versions.GetLatestVersion(ctx, subjectID)
	if err != nil || snap == nil {
		if err != nil && !shared.IsNotFound(err) {
			h.log.Warn("failed to fetch previous insight version",
				slog.String("subject_id", subjectID), slog.Any("error", err))
		}
		return VersionSnapshot{}
	}
	return *snap
}

// report отправляет прогресс и глотает сбой: отчётность не важнее сессии.
func (h *RunInsightSessionHandler) report(ctx context.Context, cmd RunInsightSessionCommand, p session.Progress) {
	if err := h.progress.Report(ctx, cmd.SubjectID, cmd.SessionID, p); err != nil {
		h.log.Warn("progress report failed",
			slog.String("session_id", cmd.SessionID),
			slog.String("stage", string(p.Stage)),
			slog.Any("error", err))
	}
}

func (h *RunInsightSessionHandler) journalSave(ctx context.Context, run *session.Run) {
	if h.journal == nil {
		return
	}
	if err := h.journal.Save(ctx, run); err != nil {
		h.log.Warn("run journal save failed", slog.Any("error", err))
	}
}

func (h *RunInsightSessionHandler) journalStage(ctx context.Context, run *session.Run, stage session.Stage) {
	if h.journal == nil {
		return
	}
	run.Stage = stage
	if err := h.journal.UpdateStage(ctx, run.ID, session.StatusProcessing, stage); err != nil {
		h.log.Warn("run journal stage update failed", slog.Any("error", err))
	}
}

func (h *RunInsightSessionHandler) journalFinish(ctx context.Context, run *session.Run) {
	if h.journal == nil {
		return
	}
	if err := h.journal.FinishRun(ctx, run); err != nil {
		h.log.Warn("run journal finish failed", slog.Any("error", err))
	}
}

func progressFor(stage session.Stage) session.Progress {
	return session.Progress{Status: session.StatusProcessing, Stage: stage, Ratio: stage.Ratio()}
}

func roundSeconds(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return float64(d.Milliseconds()) / 1000.0
}
