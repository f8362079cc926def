package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/insight"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/session"
	"github.com/sparke-study/oracle-service/internal/domain/shared"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeCore struct {
	documents []subject.Document
	chunks    []subject.Chunk
	questions []question.Question

	chunksErr    error
	questionsErr error

	latestTemplate *LatestTemplate
	templateErr    error
	putTemplates   []insight.Blueprint

	latestVersion *VersionSnapshot
	putGraphs     []concept.Graph

	reports    []session.Progress
	reportErr  error
	published  []ReadyPayload
	publishErr error
	updated    []session.Status
	results    []*SessionResult
	updateErr  error
}

func (f *fakeCore) ListDocuments(_ context.Context, _ string) ([]subject.Document, error) {
	return f.documents, nil
}

func (f *fakeCore) ListChunks(_ context.Context, _ string) ([]subject.Chunk, error) {
	if f.chunksErr != nil {
		return nil, f.chunksErr
	}
	return f.chunks, nil
}

func (f *fakeCore) ListQuestions(_ context.Context, _ string) ([]question.Question, error) {
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return f.questions, nil
}

func (f *fakeCore) GetLatestTemplate(_ context.Context, _ string) (*LatestTemplate, error) {
	return f.latestTemplate, f.templateErr
}

func (f *fakeCore) PutTemplate(_ context.Context, _ string, bp insight.Blueprint) error {
	f.putTemplates = append(f.putTemplates, bp)
	return nil
}

func (f *fakeCore) GetLatestVersion(_ context.Context, _ string) (*VersionSnapshot, error) {
	return f.latestVersion, nil
}

func (f *fakeCore) PutConceptGraph(_ context.Context, _ string, g concept.Graph) error {
	f.putGraphs = append(f.putGraphs, g)
	return nil
}

func (f *fakeCore) Report(_ context.Context, _, _ string, p session.Progress) error {
	if f.reportErr != nil {
		return f.reportErr
	}
	f.reports = append(f.reports, p)
	return nil
}

func (f *fakeCore) PublishReady(_ context.Context, _, _ string, payload ReadyPayload, _ insight.Forecast) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeCore) UpdateSession(_ context.Context, _, _ string, status session.Status, result *SessionResult) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, status)
	f.results = append(f.results, result)
	return nil
}

type fakeModeler struct {
	topics []subject.Topic
	err    error

	records []subject.TextRecord
}

func (f *fakeModeler) ComputeTopics(_ context.Context, records []subject.TextRecord) ([]subject.Topic, error) {
	f.records = records
	return f.topics, f.err
}

func newTestHandler(core *fakeCore, modeler *fakeModeler) *RunInsightSessionHandler {
	return NewRunInsightSessionHandler(
		core, core, core, modeler, core, core, core, core,
		nil, DefaultEngineConfig(), nil,
	)
}

func validCommand() RunInsightSessionCommand {
	return RunInsightSessionCommand{
		SubjectID:   "subj-1",
		SessionID:   "sess-1",
		DocumentIDs: []string{"d1", "d2"},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRunInsightSessionCommand_Validate(t *testing.T) {
	assert.NoError(t, validCommand().Validate())

	missingSubject := validCommand()
	missingSubject.SubjectID = ""
	assert.ErrorIs(t, missingSubject.Validate(), shared.ErrEmptyValue)

	missingSession := validCommand()
	missingSession.SessionID = ""
	assert.Error(t, missingSession.Validate())

	missingDocs := validCommand()
	missingDocs.DocumentIDs = nil
	assert.Error(t, missingDocs.Validate())
}

func TestHandle_HappyPath(t *testing.T) {
	marks := 5.0
	fullConf := 1.0
	core := &fakeCore{
		documents: []subject.Document{
			{ID: "d1", ResourceType: subject.ResourceExam},
			{ID: "d2", ResourceType: subject.ResourceNotes},
		},
		chunks: []subject.Chunk{
			{ID: "c1", DocumentID: "d1", Text: "Matrix determinants and their properties."},
			{ID: "c2", DocumentID: "d2", Text: "Vector spaces and basis selection."},
			{ID: "c3", DocumentID: "unselected", Text: "Unrelated document text."},
		},
		questions: []question.Question{
			{ID: "q1", Prompt: "Compute the matrix determinant", AssessmentMode: question.ModeCalculation, DocumentID: "d1", Marks: &marks, MarksConfidence: &fullConf},
		},
	}
	modeler := &fakeModeler{topics: []subject.Topic{
		{Label: "Matrices", Weight: 2, Terms: []subject.TopicTerm{{Term: "matrix"}, {Term: "determinant"}}, DocumentIDs: []string{"d1"}},
	}}

	handler := newTestHandler(core, modeler)
	result, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 1, result.Topics)

	// Chunks outside the requested documents never reach the modeler.
	require.Len(t, modeler.records, 2)
	assert.Equal(t, "d1", modeler.records[0].DocumentID)

	// Pipeline artifacts land upstream.
	require.Len(t, core.putGraphs, 1)
	assert.NotEmpty(t, core.putGraphs[0].Concepts)
	require.Len(t, core.published, 1)
	require.Len(t, core.updated, 1)
	assert.Equal(t, session.StatusReady, core.updated[0])

	require.Len(t, core.results, 1)
	res := core.results[0]
	assert.Equal(t, 2, res.Summary.DocCount)
	assert.Equal(t, 2, res.Summary.ChunkCount)
	assert.Equal(t, 1, res.Summary.QuestionCount)
	assert.Contains(t, res.Warnings, "diffs_baseline_unavailable")

	// Progress moves monotonically through the pipeline stages.
	require.NotEmpty(t, core.reports)
	assert.Equal(t, session.StageCollectDocuments, core.reports[0].Stage)
	prev := 0.0
	for _, p := range core.reports {
		assert.GreaterOrEqual(t, p.Ratio, prev)
		prev = p.Ratio
	}
}

func TestHandle_InvalidCommand(t *testing.T) {
	handler := newTestHandler(&fakeCore{}, &fakeModeler{})

	_, err := handler.Handle(context.Background(), RunInsightSessionCommand{})

	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestHandle_SubjectNotFoundSkips(t *testing.T) {
	core := &fakeCore{chunksErr: shared.ErrSubjectNotFound}
	handler := newTestHandler(core, &fakeModeler{})

	result, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, "skipped", result.Status)
	assert.Equal(t, "subject not found", result.Reason)

	last := core.reports[len(core.reports)-1]
	assert.Equal(t, session.StatusFailed, last.Status)
	assert.Equal(t, session.StageMissingSubject, last.Stage)
}

func TestHandle_AuthFailure(t *testing.T) {
	core := &fakeCore{chunksErr: shared.ErrCoreAPIUnauthorized}
	handler := newTestHandler(core, &fakeModeler{})

	_, err := handler.Handle(context.Background(), validCommand())

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	var sawAuth bool
	for _, p := range core.reports {
		if p.Stage == session.StageAuth {
			sawAuth = true
		}
	}
	assert.True(t, sawAuth)
}

func TestHandle_ChunkFetchFailure(t *testing.T) {
	core := &fakeCore{chunksErr: errors.New("connection reset")}
	handler := newTestHandler(core, &fakeModeler{})

	_, err := handler.Handle(context.Background(), validCommand())

	require.Error(t, err)
	last := core.reports[len(core.reports)-1]
	assert.Equal(t, session.StatusFailed, last.Status)
	assert.Equal(t, session.StageError, last.Stage)
}

func TestHandle_TopicModelerFailure(t *testing.T) {
	core := &fakeCore{}
	handler := newTestHandler(core, &fakeModeler{err: errors.New("modeler down")})

	_, err := handler.Handle(context.Background(), validCommand())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic modeling failed")
}

func TestHandle_UpdateSessionFailure(t *testing.T) {
	core := &fakeCore{updateErr: errors.New("write rejected")}
	handler := newTestHandler(core, &fakeModeler{})

	_, err := handler.Handle(context.Background(), validCommand())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update session")
}

func TestHandle_QuestionFetchFailureIsTolerated(t *testing.T) {
	core := &fakeCore{questionsErr: errors.New("flaky endpoint")}
	handler := newTestHandler(core, &fakeModeler{})

	result, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 0, core.results[0].Summary.QuestionCount)
}

func TestTrackTemplate_FirstRunPersists(t *testing.T) {
	core := &fakeCore{
		questions: []question.Question{
			{ID: "q1", Prompt: "Discuss things", AssessmentMode: question.ModeTheory},
		},
	}
	handler := newTestHandler(core, &fakeModeler{})

	result, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	require.Len(t, core.putTemplates, 1)
	assert.Contains(t, core.results[0].Warnings, "template_updated")
	assert.NotContains(t, core.results[0].Warnings, "template_fetch_failed")
}

func TestTrackTemplate_FetchNotFoundWarns(t *testing.T) {
	core := &fakeCore{
		templateErr: shared.NewDomainError("core", "GetLatestTemplate", shared.ErrNotFound, "no template"),
	}
	handler := newTestHandler(core, &fakeModeler{})

	_, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Contains(t, core.results[0].Warnings, "template_fetch_failed")
}

func TestTrackTemplate_RetryableFetchWarns(t *testing.T) {
	core := &fakeCore{templateErr: shared.ErrCoreAPIUnavailable}
	handler := newTestHandler(core, &fakeModeler{})

	_, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Contains(t, core.results[0].Warnings, "template_fetch_error")
}

func TestTrackTemplate_SuppressedWarnings(t *testing.T) {
	core := &fakeCore{}
	cfg := DefaultEngineConfig()
	cfg.SuppressTemplateWarnings = true
	handler := NewRunInsightSessionHandler(
		core, core, core, &fakeModeler{}, core, core, core, core,
		nil, cfg, nil,
	)

	_, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	// Even the baseline warning appended after template tracking survives,
	// template-specific ones do not.
	for _, w := range core.results[0].Warnings {
		assert.NotContains(t, []string{"template_updated", "template_fetch_error"}, w)
	}
}

func TestHandle_DiffAgainstPreviousVersion(t *testing.T) {
	prevGraph := concept.Graph{Concepts: []concept.Concept{
		{Slug: "core-foundations", Label: "Core Foundations", MasteryScore: 0.9},
	}}
	core := &fakeCore{
		latestVersion: &VersionSnapshot{ConceptGraph: &prevGraph},
	}
	handler := newTestHandler(core, &fakeModeler{})

	_, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	res := core.results[0]
	assert.NotContains(t, res.Warnings, "diffs_baseline_unavailable")
	require.NotEmpty(t, res.Diffs.MasteryChanges)
}

func TestHandle_ProgressSinkFailuresTolerated(t *testing.T) {
	core := &fakeCore{
		documents:  []subject.Document{{ID: "d1", ResourceType: subject.ResourceExam}},
		chunks:     []subject.Chunk{{ID: "c1", DocumentID: "d1", Text: "Limits and continuity."}},
		reportErr:  errors.New("progress endpoint down"),
		publishErr: errors.New("publish endpoint down"),
	}
	handler := newTestHandler(core, &fakeModeler{})

	result, err := handler.Handle(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	// The terminal session update still carries the full result.
	require.Equal(t, []session.Status{session.StatusReady}, core.updated)
	require.Len(t, core.results, 1)
	assert.Empty(t, core.published)
}
