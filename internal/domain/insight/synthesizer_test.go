package insight

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

func confOf(v float64) *float64 { return &v }

func TestSynthesize_CardSections(t *testing.T) {
	graph := concept.Graph{
		Concepts: []concept.Concept{
			{Slug: "a", Label: "Algebra", MasteryScore: 0.3, Difficulty: 0.8},
			{Slug: "b", Label: "Biology", MasteryScore: 0.7, Difficulty: 0.4},
		},
		Families: []concept.Family{
			{Label: "Theory Family", Synopsis: "Mixed-format assessment block.", Frequency: 3},
		},
	}
	topics := []subject.Topic{{Label: "Algebra", Weight: 2}}

	p := Synthesize(graph, topics, nil, nil, concept.ModeRich)

	require.Len(t, p.TopicHighlights, 1)
	assert.Equal(t, "Algebra", p.TopicHighlights[0].Label)

	require.Len(t, p.ConceptOverview, 2)
	assert.Equal(t, ConceptOverview{Label: "Algebra", Mastery: 0.3, Difficulty: 0.8}, p.ConceptOverview[0])

	// Risk list is sorted by mastery ascending.
	require.Len(t, p.RiskConcepts, 2)
	assert.Equal(t, "Algebra", p.RiskConcepts[0].Label)

	require.Len(t, p.QuestionFamilies, 1)
	assert.Equal(t, 3, p.QuestionFamilies[0].Frequency)

	require.Len(t, p.StudyPlan, 2)
	assert.Equal(t, "Algebra", p.StudyPlan[0].Title)
	assert.NotEmpty(t, p.StudyPlan[0].RecommendedActions)

	assert.Equal(t, "RICH", p.Mode)
}

func TestSynthesize_HighlightAndRiskCaps(t *testing.T) {
	var graph concept.Graph
	var topics []subject.Topic
	for i := 0; i < 10; i++ {
		graph.Concepts = append(graph.Concepts, concept.Concept{
			Slug:         fmt.Sprintf("c%d", i),
			Label:        fmt.Sprintf("Concept %d", i),
			MasteryScore: 0.1 * float64(i+1),
		})
		topics = append(topics, subject.Topic{Label: fmt.Sprintf("Topic %d", i)})
	}

	p := Synthesize(graph, topics, nil, nil, concept.ModeRich)

	assert.Len(t, p.TopicHighlights, maxTopicHighlights)
	assert.Len(t, p.RiskConcepts, maxRiskConcepts)
	assert.Len(t, p.StudyPlan, maxRiskConcepts)
	assert.Equal(t, "Concept 0", p.RiskConcepts[0].Label)
}

func TestSynthesize_Gaps(t *testing.T) {
	topics := []subject.Topic{
		{Label: "Only Taught", DocumentIDs: []string{"syl"}},
		{Label: "Also Examined", DocumentIDs: []string{"syl", "exam"}},
		{Label: "Unmapped", DocumentIDs: []string{"other"}},
	}
	docTypes := subject.DocTypeMap{
		"syl":  subject.ResourceSyllabus,
		"exam": subject.ResourceExam,
	}

	p := Synthesize(concept.Graph{}, topics, nil, docTypes, concept.ModeRich)

	require.Len(t, p.Gaps, 1)
	assert.Equal(t, "Only Taught", p.Gaps[0].Label)
	assert.Equal(t, "syllabus-only", p.Gaps[0].Reason)
}

func TestSynthesize_ArchetypesAndEvidence(t *testing.T) {
	marksHigh, marksLow := 10.0, 2.0
	graph := concept.Graph{
		Concepts: []concept.Concept{{Slug: "algebra", Label: "Algebra"}},
		QuestionConcepts: []concept.Binding{
			{QuestionID: "q1", ConceptSlug: "algebra"},
			{QuestionID: "q2", ConceptSlug: "algebra"},
			{QuestionID: "q3", ConceptSlug: "missing-question"},
		},
	}
	questions := []question.Question{
		{ID: "q1", Prompt: "Solve it", AssessmentMode: question.ModeCalculation, DocumentID: "exam", Marks: &marksLow, MarksConfidence: confOf(1)},
		{ID: "q2", Prompt: "Discuss it", AssessmentMode: question.ModeTheory, DocumentID: "exam", Marks: &marksHigh, MarksConfidence: confOf(1)},
	}
	docTypes := subject.DocTypeMap{"exam": subject.ResourceExam}

	p := Synthesize(graph, nil, questions, docTypes, concept.ModeRich)

	require.Len(t, p.Archetypes, 1)
	arch := p.Archetypes[0]
	assert.Equal(t, "Algebra", arch.Label)
	require.Len(t, arch.Modes, 2)
	// Equal counts break ties alphabetically.
	assert.Equal(t, ModeCount{Mode: "CALCULATION", Count: 1}, arch.Modes[0])
	assert.Equal(t, ModeCount{Mode: "THEORY", Count: 1}, arch.Modes[1])

	require.Len(t, p.ConceptEvidence, 1)
	ev := p.ConceptEvidence[0]
	assert.Equal(t, "Algebra", ev.Label)
	require.Len(t, ev.Evidence, 2)
	// Highest marks first.
	assert.Equal(t, &marksHigh, ev.Evidence[0].Marks)
	assert.Equal(t, "EXAM", ev.Evidence[0].DocType)
	assert.Equal(t, "Discuss it", ev.Examples[0].Prompt)
}

func TestSynthesize_PromptTruncation(t *testing.T) {
	marks := 5.0
	long := strings.Repeat("ab ", 100)
	graph := concept.Graph{
		Concepts:         []concept.Concept{{Slug: "a", Label: "A"}},
		QuestionConcepts: []concept.Binding{{QuestionID: "q1", ConceptSlug: "a"}},
	}
	questions := []question.Question{
		{ID: "q1", Prompt: long, Marks: &marks, MarksConfidence: confOf(1)},
	}

	p := Synthesize(graph, nil, questions, nil, concept.ModeRich)

	require.Len(t, p.ConceptEvidence, 1)
	require.Len(t, p.ConceptEvidence[0].Examples, 1)
	prompt := p.ConceptEvidence[0].Examples[0].Prompt
	assert.Equal(t, promptPreviewLength+1, len([]rune(prompt)))
	assert.True(t, strings.HasSuffix(prompt, "…"))
}

func TestSynthesize_LowDataWarning(t *testing.T) {
	p := Synthesize(concept.Graph{}, nil, nil, subject.DocTypeMap{}, concept.ModeRich)

	assert.Contains(t, p.WarningCodes(), "LOW_DATA")
}

func TestSynthesize_NoLowDataWithEnoughEvidence(t *testing.T) {
	docTypes := subject.DocTypeMap{
		"e1": subject.ResourceExam,
		"e2": subject.ResourceExam,
	}
	var questions []question.Question
	for i := 0; i < 6; i++ {
		questions = append(questions, question.Question{
			ID: fmt.Sprintf("q%d", i), Prompt: "p", MarksConfidence: confOf(1),
		})
	}

	p := Synthesize(concept.Graph{}, nil, questions, docTypes, concept.ModeRich)

	assert.NotContains(t, p.WarningCodes(), "LOW_DATA")
	assert.NotContains(t, p.WarningCodes(), "STRUCTURE_QUALITY")
}

func TestSynthesize_StructureQualityWarning(t *testing.T) {
	var questions []question.Question
	for i := 0; i < 6; i++ {
		questions = append(questions, question.Question{
			ID: fmt.Sprintf("q%d", i), Prompt: "p", HasNonText: true, MarksConfidence: confOf(0.5),
		})
	}

	p := Synthesize(concept.Graph{}, nil, questions, subject.DocTypeMap{"e1": subject.ResourceExam, "e2": subject.ResourceExam}, concept.ModeRich)

	codes := p.WarningCodes()
	require.Contains(t, codes, "STRUCTURE_QUALITY")
}

func TestSynthesize_StructureQualityIgnoresAbsentConfidence(t *testing.T) {
	// Два распознанных вопроса с низкой уверенностью среди четырёх без
	// неё: среднее берётся по заполненным значениям (0.5 < 0.7).
	questions := []question.Question{
		{ID: "q1", Prompt: "p", MarksConfidence: confOf(0.5)},
		{ID: "q2", Prompt: "p", MarksConfidence: confOf(0.5)},
		{ID: "q3", Prompt: "p"},
		{ID: "q4", Prompt: "p"},
		{ID: "q5", Prompt: "p"},
		{ID: "q6", Prompt: "p"},
	}
	docTypes := subject.DocTypeMap{"e1": subject.ResourceExam, "e2": subject.ResourceExam}

	p := Synthesize(concept.Graph{}, nil, questions, docTypes, concept.ModeRich)

	assert.Contains(t, p.WarningCodes(), "STRUCTURE_QUALITY")
}

func TestSynthesize_NoConfidenceReportedMeansFullConfidence(t *testing.T) {
	var questions []question.Question
	for i := 0; i < 6; i++ {
		questions = append(questions, question.Question{ID: fmt.Sprintf("q%d", i), Prompt: "p"})
	}
	docTypes := subject.DocTypeMap{"e1": subject.ResourceExam, "e2": subject.ResourceExam}

	p := Synthesize(concept.Graph{}, nil, questions, docTypes, concept.ModeRich)

	assert.NotContains(t, p.WarningCodes(), "STRUCTURE_QUALITY")
}

func TestSynthesize_SyllabusOnlyWarning(t *testing.T) {
	topics := []subject.Topic{{Label: "Orphan", DocumentIDs: []string{"syl"}}}
	docTypes := subject.DocTypeMap{"syl": subject.ResourceSyllabus}

	p := Synthesize(concept.Graph{}, topics, nil, docTypes, concept.ModeRich)

	assert.Contains(t, p.WarningCodes(), "SYLLABUS_ONLY")
}
