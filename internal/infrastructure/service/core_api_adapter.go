// Package service adapts infrastructure clients to application interfaces.
package service

import (
	"context"
	"sync"

	"github.com/sparke-study/oracle-service/internal/application/command"
	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/insight"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/session"
	"github.com/sparke-study/oracle-service/internal/domain/shared"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
	"github.com/sparke-study/oracle-service/internal/infrastructure/external/core"
)

// CoreAPIAdapter adapts the core.Client to the command-layer collaborator
// interfaces: listers, template store, version store, progress sink and
// session updater.
type CoreAPIAdapter struct {
	client *core.Client

	// versionIDs хранит versionId, присвоенный core-service первой записи
	// прогресса каждой сессии, чтобы последующие записи обновляли её же.
	versionIDs sync.Map
}

// NewCoreAPIAdapter creates a new CoreAPIAdapter.
func NewCoreAPIAdapter(client *core.Client) *CoreAPIAdapter {
	return &CoreAPIAdapter{client: client}
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTERS
// ══════════════════════════════════════════════════════════════════════════════

func (a *CoreAPIAdapter) ListDocuments(ctx context.Context, subjectID string) ([]subject.Document, error) {
	dtos, err := a.client.GetDocuments(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return a.client.Mapper().DocumentsFromDTO(dtos), nil
}

func (a *CoreAPIAdapter) ListChunks(ctx context.Context, subjectID string) ([]subject.Chunk, error) {
	dtos, err := a.client.GetChunks(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return a.client.Mapper().ChunksFromDTO(dtos), nil
}

// ListQuestions возвращает пустой список для предметов без банка вопросов:
// их отсутствие не отличимо от 404 и не должно завершать сессию.
func (a *CoreAPIAdapter) ListQuestions(ctx context.Context, subjectID string) ([]question.Question, error) {
	dtos, err := a.client.GetQuestions(ctx, subjectID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return a.client.Mapper().QuestionsFromDTO(dtos), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE STORE
// ══════════════════════════════════════════════════════════════════════════════

func (a *CoreAPIAdapter) GetLatestTemplate(ctx context.Context, subjectID string) (*command.LatestTemplate, error) {
	dto, err := a.client.GetLatestExamTemplate(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, nil
	}
	return &command.LatestTemplate{
		Info: command.TemplateInfo{
			ID:      dto.ID,
			Version: dto.Version,
			Season:  dto.Season,
		},
		Blueprint: dto.Blueprint,
	}, nil
}

func (a *CoreAPIAdapter) PutTemplate(ctx context.Context, subjectID string, blueprint insight.Blueprint) error {
	return a.client.PutExamTemplate(ctx, subjectID, core.TemplatePutDTO{Blueprint: blueprint})
}

// ══════════════════════════════════════════════════════════════════════════════
// INSIGHT VERSION STORE
// ══════════════════════════════════════════════════════════════════════════════

func (a *CoreAPIAdapter) GetLatestVersion(ctx context.Context, subjectID string) (*command.VersionSnapshot, error) {
	dto, err := a.client.GetLatestInsightVersion(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, nil
	}
	return &command.VersionSnapshot{
		Insight:      dto.Payload.Insight,
		ConceptGraph: a.client.Mapper().GraphFromDTO(dto.Payload.ConceptGraph),
	}, nil
}

func (a *CoreAPIAdapter) PutConceptGraph(ctx context.Context, subjectID string, graph concept.Graph) error {
	return a.client.PutConceptGraph(ctx, subjectID, a.client.Mapper().GraphToDTO(graph))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS SINK
// ══════════════════════════════════════════════════════════════════════════════

func (a *CoreAPIAdapter) Report(ctx context.Context, subjectID, sessionID string, p session.Progress) error {
	status := p.Status
	if status == "" {
		status = session.StatusProcessing
	}
	ratio := p.Ratio
	body := core.VersionUpdateDTO{
		SessionID:     sessionID,
		Status:        string(status),
		VersionID:     a.versionID(sessionID),
		ProgressStage: string(p.Stage),
		ProgressRatio: &ratio,
	}
	resp, err := a.client.PutInsightVersion(ctx, subjectID, body)
	if err != nil {
		return err
	}
	a.rememberVersionID(sessionID, resp)
	return nil
}

func (a *CoreAPIAdapter) PublishReady(
	ctx context.Context,
	subjectID, sessionID string,
	payload command.ReadyPayload,
	forecast insight.Forecast,
) error {
	ratio := session.StageInsightReady.Ratio()
	graphDTO := a.client.Mapper().GraphToDTO(payload.ConceptGraph)
	diffs := payload.Diffs
	body := core.VersionUpdateDTO{
		SessionID:     sessionID,
		Status:        string(session.StatusReady),
		VersionID:     a.versionID(sessionID),
		ProgressStage: string(session.StageInsightReady),
		ProgressRatio: &ratio,
		Payload: &core.ReadyPayloadDTO{
			Insight:      payload.Insight,
			RiskConcepts: payload.RiskConcepts,
			StudyPlan:    payload.StudyPlan,
			Template:     templateToDTO(payload.Template),
			Warnings:     payload.Warnings,
			Diffs:        &diffs,
			ConceptGraph: &graphDTO,
		},
		Forecast: &forecast,
		Publish:  true,
	}
	resp, err := a.client.PutInsightVersion(ctx, subjectID, body)
	if err != nil {
		return err
	}
	a.rememberVersionID(sessionID, resp)
	return nil
}

func (a *CoreAPIAdapter) versionID(sessionID string) string {
	if v, ok := a.versionIDs.Load(sessionID); ok {
		return v.(string)
	}
	return ""
}

func (a *CoreAPIAdapter) rememberVersionID(sessionID string, resp *core.VersionPutResponseDTO) {
	if resp != nil && resp.VersionID != "" {
		a.versionIDs.Store(sessionID, resp.VersionID)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION UPDATER
// ══════════════════════════════════════════════════════════════════════════════

func (a *CoreAPIAdapter) UpdateSession(
	ctx context.Context,
	subjectID, sessionID string,
	status session.Status,
	result *command.SessionResult,
) error {
	// Сессия закрыта: versionId этой сессии больше не понадобится.
	defer a.versionIDs.Delete(sessionID)

	body := core.SessionUpdateDTO{Status: string(status)}
	if result != nil {
		body.Result = a.resultToDTO(result)
	}
	return a.client.PutInsightSession(ctx, subjectID, sessionID, body)
}

func (a *CoreAPIAdapter) resultToDTO(r *command.SessionResult) *core.SessionResultDTO {
	return &core.SessionResultDTO{
		Summary: core.SessionSummaryDTO{
			DocCount:      r.Summary.DocCount,
			ChunkCount:    r.Summary.ChunkCount,
			QuestionCount: r.Summary.QuestionCount,
		},
		Topics:       a.client.Mapper().TopicsToDTO(r.Topics),
		ConceptGraph: a.client.Mapper().GraphToDTO(r.ConceptGraph),
		Insight:      r.Insight,
		Forecast:     r.Forecast,
		Template:     templateToDTO(r.Template),
		Warnings:     r.Warnings,
		Diffs:        r.Diffs,
		Timings: core.TimingsDTO{
			Topics:  r.Timings.Topics,
			Graph:   r.Timings.Graph,
			Insight: r.Timings.Insight,
			Total:   r.Timings.Total,
		},
	}
}

func templateToDTO(info *command.TemplateInfo) *core.TemplateDTO {
	if info == nil {
		return nil
	}
	return &core.TemplateDTO{
		ID:      info.ID,
		Version: info.Version,
		Season:  info.Season,
	}
}
