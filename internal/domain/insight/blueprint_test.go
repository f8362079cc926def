package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparke-study/oracle-service/internal/domain/question"
)

func q(index int, mode question.AssessmentMode, marks float64) question.Question {
	return question.Question{
		ID:             "q",
		Index:          index,
		Prompt:         "prompt",
		AssessmentMode: mode,
		Marks:          &marks,
	}
}

func TestInferBlueprint(t *testing.T) {
	questions := []question.Question{
		q(1, question.ModeObjective, 2),
		q(2, question.ModeObjective, 4),
		q(3, question.ModeTheory, 8),
		q(4, question.ModeEssay, 15),
	}

	bp := InferBlueprint(questions)

	assert.Equal(t, 4, bp.QuestionCount)
	assert.Equal(t, 29.0, bp.MarksTotal)
	assert.Equal(t, 0.5, bp.ModeMix[string(question.ModeObjective)])
	assert.Equal(t, 0.25, bp.ModeMix[string(question.ModeTheory)])
	assert.Equal(t, 0.5, bp.MCQRatio)

	assert.Equal(t, MarksHistogram{Small: 2, Medium: 1, Large: 1}, bp.MarksHistogram)
	assert.True(t, bp.BigLastQuestion)
}

func TestInferBlueprint_EmptyModeCountsAsUnknown(t *testing.T) {
	bp := InferBlueprint([]question.Question{{ID: "q1", Index: 1, Prompt: "p"}})

	assert.Equal(t, 1.0, bp.ModeMix[string(question.ModeUnknown)])
	assert.Zero(t, bp.MCQRatio)
}

func TestInferBlueprint_HistogramBoundaries(t *testing.T) {
	bp := InferBlueprint([]question.Question{
		q(1, question.ModeTheory, 5),
		q(2, question.ModeTheory, 6),
		q(3, question.ModeTheory, 10),
		q(4, question.ModeTheory, 11),
	})

	assert.Equal(t, MarksHistogram{Small: 1, Medium: 2, Large: 1}, bp.MarksHistogram)
}

func TestInferBlueprint_SmallLastQuestion(t *testing.T) {
	bp := InferBlueprint([]question.Question{
		q(1, question.ModeTheory, 20),
		q(2, question.ModeTheory, 3),
	})

	assert.False(t, bp.BigLastQuestion)
}

func TestInferBlueprint_Empty(t *testing.T) {
	bp := InferBlueprint(nil)

	assert.Zero(t, bp.QuestionCount)
	assert.Empty(t, bp.ModeMix)
	assert.False(t, bp.BigLastQuestion)
}

func TestShouldUpdateTemplate(t *testing.T) {
	cur := InferBlueprint([]question.Question{
		q(1, question.ModeObjective, 2),
		q(2, question.ModeTheory, 10),
	})

	// No previous blueprint: always persist the first one.
	assert.True(t, ShouldUpdateTemplate(nil, cur))

	// Identical blueprint: nothing to do.
	same := cur
	assert.False(t, ShouldUpdateTemplate(&same, cur))

	// An empty exam never updates the template.
	assert.False(t, ShouldUpdateTemplate(nil, InferBlueprint(nil)))
}

func TestShouldUpdateTemplate_ModeMixDrift(t *testing.T) {
	prev := Blueprint{
		QuestionCount: 4,
		ModeMix:       map[string]float64{"THEORY": 0.75, "OBJECTIVE": 0.25},
		MCQRatio:      0.25,
	}
	cur := Blueprint{
		QuestionCount: 4,
		ModeMix:       map[string]float64{"THEORY": 0.5, "CALCULATION": 0.5},
		MCQRatio:      0.25,
	}

	assert.True(t, ShouldUpdateTemplate(&prev, cur))
}

func TestShouldUpdateTemplate_BigLastFlip(t *testing.T) {
	prev := Blueprint{QuestionCount: 3, BigLastQuestion: false}
	cur := Blueprint{QuestionCount: 3, BigLastQuestion: true}

	assert.True(t, ShouldUpdateTemplate(&prev, cur))
}

func TestShouldUpdateTemplate_MCQRatioDrift(t *testing.T) {
	prev := Blueprint{QuestionCount: 3, MCQRatio: 0.1}
	cur := Blueprint{QuestionCount: 3, MCQRatio: 0.4}

	assert.True(t, ShouldUpdateTemplate(&prev, cur))

	close := Blueprint{QuestionCount: 3, MCQRatio: 0.3}
	assert.False(t, ShouldUpdateTemplate(&prev, close))
}

func TestTeacherStyleWarnings(t *testing.T) {
	warns := TeacherStyleWarnings(Blueprint{
		ModeMix: map[string]float64{
			string(question.ModeCalculation): 0.6,
			string(question.ModeTheory):      0.2,
		},
		MCQRatio: 0.6,
	})

	assert.Contains(t, warns, "calculation_heavy")
	assert.Contains(t, warns, "mcq_heavy")
	assert.NotContains(t, warns, "big_last_question")
}

func TestTeacherStyleWarnings_TheoryHeavy(t *testing.T) {
	warns := TeacherStyleWarnings(Blueprint{
		ModeMix: map[string]float64{
			string(question.ModeTheory):      0.7,
			string(question.ModeApplication): 0.1,
		},
		BigLastQuestion: true,
	})

	assert.Contains(t, warns, "theory_heavy_low_application")
	assert.Contains(t, warns, "big_last_question")
}

func TestTeacherStyleWarnings_Unclassified(t *testing.T) {
	warns := TeacherStyleWarnings(Blueprint{
		ModeMix: map[string]float64{string(question.ModeUnknown): 1.0},
	})

	require.Contains(t, warns, "insufficient_classified_modes")
}
