package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

func TestMapper_DocumentsFromDTO(t *testing.T) {
	mapper := NewMapper()

	docs := mapper.DocumentsFromDTO([]DocumentDTO{
		{ID: "d1", ResourceType: "exam"},
		{ID: "", ResourceType: "notes"},
		{ID: "d2", ResourceType: "bogus"},
	})

	require.Len(t, docs, 2)
	assert.Equal(t, subject.Document{ID: "d1", ResourceType: subject.ResourceExam}, docs[0])
	assert.Equal(t, subject.ResourceOther, docs[1].ResourceType)
}

func TestMapper_QuestionsFromDTO(t *testing.T) {
	mapper := NewMapper()
	marks := 5.0
	lowConf := 0.4

	questions := mapper.QuestionsFromDTO([]QuestionDTO{
		{ID: "q1", Index: 1, Prompt: "Solve", AssessmentMode: "calculation", DocumentID: "d1", Marks: &marks},
		{ID: "q2", Prompt: "Discuss", AssessmentMode: "theory", MarksConfidence: &lowConf},
		{ID: "", Prompt: "dropped"},
	})

	require.Len(t, questions, 2)

	q1 := questions[0]
	assert.Equal(t, question.ModeCalculation, q1.AssessmentMode)
	assert.Equal(t, &marks, q1.Marks)
	// Missing confidence stays absent rather than defaulting.
	assert.Nil(t, q1.MarksConfidence)

	require.NotNil(t, questions[1].MarksConfidence)
	assert.Equal(t, 0.4, *questions[1].MarksConfidence)
}

func TestMapper_GraphRoundTrip(t *testing.T) {
	mapper := NewMapper()
	g := concept.Graph{
		Concepts: []concept.Concept{{
			Slug:         "algebra",
			Label:        "Algebra",
			Description:  "Key ideas around Algebra",
			TaxonomyPath: "math/algebra",
			MasteryScore: 0.7,
			Difficulty:   0.4,
			Coverage:     0.5,
			Metadata: concept.Metadata{
				Source:      "oracle.topics",
				TopTerms:    []subject.TopicTerm{{Term: "matrix", Score: 0.9}},
				DocumentIDs: []string{"d1"},
			},
		}},
		Links: []concept.Link{{
			FromSlug:        "algebra",
			ToSlug:          "calculus",
			Relation:        concept.RelationPrerequisite,
			Weight:          0.4,
			SharedQuestions: 2,
		}},
		QuestionConcepts: []concept.Binding{{
			QuestionID:  "q1",
			ConceptSlug: "algebra",
			Weight:      1,
			Confidence:  0.55,
			Rationale:   "Prompt language overlaps with algebra",
		}},
		Families: []concept.Family{{
			Label:      "Theory Family",
			Archetype:  "Theory",
			Difficulty: 0.5,
			Frequency:  2,
			Synopsis:   "Mixed-format assessment block.",
			Members:    []concept.FamilyMember{{QuestionID: "q1", Role: "seed"}},
		}},
	}

	dto := mapper.GraphToDTO(g)
	back := mapper.GraphFromDTO(&dto)

	require.NotNil(t, back)
	assert.Equal(t, g.Concepts, back.Concepts)
	assert.Equal(t, g.Links, back.Links)
	assert.Equal(t, g.QuestionConcepts, back.QuestionConcepts)
	assert.Equal(t, g.Families, back.Families)
}

func TestMapper_GraphFromDTO_Nil(t *testing.T) {
	assert.Nil(t, NewMapper().GraphFromDTO(nil))
}

func TestMapper_TopicsToDTO(t *testing.T) {
	dto := NewMapper().TopicsToDTO([]subject.Topic{{
		Label:       "Matrices",
		Weight:      3,
		Terms:       []subject.TopicTerm{{Term: "matrix", Score: 0.8}},
		DocumentIDs: []string{"d1", "d2"},
	}})

	require.Len(t, dto, 1)
	assert.Equal(t, "Matrices", dto[0].Label)
	assert.Equal(t, 3.0, dto[0].Weight)
	require.Len(t, dto[0].Terms, 1)
	assert.Equal(t, "matrix", dto[0].Terms[0].Term)
}
