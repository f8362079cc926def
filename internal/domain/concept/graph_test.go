package concept

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

func TestResolveMode(t *testing.T) {
	exam := func(n int) subject.DocTypeMap {
		m := subject.DocTypeMap{}
		for i := 0; i < n; i++ {
			m["e"+strconv.Itoa(i)] = subject.ResourceExam
		}
		return m
	}

	assert.Equal(t, ModeRich, ResolveMode(nil))
	assert.Equal(t, ModeRich, ResolveMode(exam(0)))
	assert.Equal(t, ModeSmallSet, ResolveMode(exam(1)))
	assert.Equal(t, ModeSmallSet, ResolveMode(exam(3)))
	assert.Equal(t, ModeRich, ResolveMode(exam(4)))
}

func TestMode_TopK(t *testing.T) {
	assert.Equal(t, 1, ModeSmallSet.TopK())
	assert.Equal(t, 2, ModeRich.TopK())
}

func TestGraph_ConceptBySlug(t *testing.T) {
	g := Graph{Concepts: []Concept{{Slug: "algebra", Label: "Algebra"}}}

	require.NotNil(t, g.ConceptBySlug("algebra"))
	assert.Equal(t, "Algebra", g.ConceptBySlug("algebra").Label)
	assert.Nil(t, g.ConceptBySlug("missing"))
}

func TestGroupQuestionIDs(t *testing.T) {
	bindings := []Binding{
		{QuestionID: "q1", ConceptSlug: "a"},
		{QuestionID: "q2", ConceptSlug: "a"},
		{QuestionID: "q1", ConceptSlug: "b"},
		{QuestionID: "", ConceptSlug: "a"},
		{QuestionID: "q3", ConceptSlug: ""},
	}

	idx := GroupQuestionIDs(bindings)

	assert.Equal(t, []string{"q1", "q2"}, idx["a"])
	assert.Equal(t, []string{"q1"}, idx["b"])
	assert.NotContains(t, idx, "")
}

func TestConcept_TermSet(t *testing.T) {
	c := Concept{Metadata: Metadata{TopTerms: []subject.TopicTerm{
		{Term: " Matrix "},
		{Term: "VECTOR"},
		{Term: ""},
	}}}

	set := c.TermSet()

	assert.True(t, set["matrix"])
	assert.True(t, set["vector"])
	assert.Len(t, set, 2)
}

func TestBuildGraph_EndToEnd(t *testing.T) {
	topics := []subject.Topic{
		{Label: "Matrix Operations", Weight: 2, Terms: []subject.TopicTerm{{Term: "matrix"}, {Term: "determinant"}}, DocumentIDs: []string{"exam1"}},
		{Label: "Vector Spaces", Weight: 1, Terms: []subject.TopicTerm{{Term: "vector"}, {Term: "basis"}}, DocumentIDs: []string{"notes1"}},
	}
	questions := []question.Question{
		{ID: "q1", Prompt: "Compute the matrix determinant", AssessmentMode: question.ModeCalculation, DocumentID: "exam1"},
		{ID: "q2", Prompt: "Find a basis for the vector space", AssessmentMode: question.ModeCalculation, DocumentID: "exam1"},
		{ID: "q3", Prompt: "Describe the grading policy", AssessmentMode: question.ModeTheory, DocumentID: "notes1"},
	}
	docTypes := subject.DocTypeMap{
		"exam1":  subject.ResourceExam,
		"notes1": subject.ResourceNotes,
	}

	graph, mode := BuildGraph(topics, questions, docTypes, nil, 0)

	assert.Equal(t, ModeSmallSet, mode)
	require.Len(t, graph.Concepts, 3)
	assert.Equal(t, "matrix-operations", graph.Concepts[0].Slug)
	assert.Equal(t, FallbackSlug, graph.Concepts[2].Slug)

	// Every non-empty prompt yields at least one binding; the off-topic
	// question lands on the fallback concept.
	byConcept := graph.QuestionIDsByConcept()
	assert.Contains(t, byConcept["matrix-operations"], "q1")
	assert.Contains(t, byConcept["vector-spaces"], "q2")
	assert.Contains(t, byConcept[FallbackSlug], "q3")

	require.NotEmpty(t, graph.Families)

	// Refined metrics stay inside the contractual bounds.
	for _, c := range graph.Concepts {
		assert.GreaterOrEqual(t, c.MasteryScore, 0.2)
		assert.LessOrEqual(t, c.MasteryScore, 0.95)
		assert.GreaterOrEqual(t, c.Difficulty, 0.2)
		assert.LessOrEqual(t, c.Difficulty, 0.95)
	}
}
