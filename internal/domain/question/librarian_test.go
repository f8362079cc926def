package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromText_NumberedLines(t *testing.T) {
	text := `1. Define the term opportunity cost. (5 marks)
2) Calculate the equilibrium price from the table below.
Show your work.
Q3: Discuss the limitations of GDP as a welfare measure. 10 marks`

	questions := ExtractFromText(text)

	require.Len(t, questions, 3)

	assert.Equal(t, 1, questions[0].Index)
	assert.Equal(t, "Define the term opportunity cost. (5 marks)", questions[0].Prompt)
	require.NotNil(t, questions[0].Marks)
	assert.Equal(t, 5.0, *questions[0].Marks)
	assert.Equal(t, ModeDefinition, questions[0].AssessmentMode)
	assert.Equal(t, "knowledge", questions[0].TaxonomyHint)

	// Unnumbered continuation lines stick to the current question.
	assert.Equal(t, 2, questions[1].Index)
	assert.Equal(t, "Calculate the equilibrium price from the table below. Show your work.", questions[1].Prompt)
	assert.Equal(t, ModeCalculation, questions[1].AssessmentMode)

	assert.Equal(t, 3, questions[2].Index)
	require.NotNil(t, questions[2].Marks)
	assert.Equal(t, 10.0, *questions[2].Marks)
	assert.Equal(t, ModeTheory, questions[2].AssessmentMode)
}

func TestExtractFromText_FallbackParagraphs(t *testing.T) {
	text := "First paragraph without numbering.\n\nSecond paragraph of prose."

	questions := ExtractFromText(text)

	require.Len(t, questions, 2)
	assert.Equal(t, 1, questions[0].Index)
	assert.Equal(t, "First paragraph without numbering.", questions[0].Prompt)
	assert.Equal(t, 2, questions[1].Index)
}

func TestExtractFromText_Empty(t *testing.T) {
	assert.Empty(t, ExtractFromText(""))
	assert.Empty(t, ExtractFromText("   \n\n  "))
}

func TestExtractMarks(t *testing.T) {
	require.NotNil(t, ExtractMarks("Explain inflation. 12 marks"))
	assert.Equal(t, 12.0, *ExtractMarks("Explain inflation. 12 marks"))
	assert.Equal(t, 1.0, *ExtractMarks("(1 mark)"))
	assert.Nil(t, ExtractMarks("Explain inflation."))
}

func TestInferAssessmentMode(t *testing.T) {
	cases := []struct {
		prompt string
		want   AssessmentMode
	}{
		{"Which of these is correct? (A) one (B) two (C) three (D) four", ModeObjective},
		{"Calculate the net present value of the project.", ModeCalculation},
		{"Given the following scenario, advise the client.", ModeApplication},
		{"Define the term elasticity.", ModeDefinition},
		{"Compare monopoly and perfect competition.", ModeComparison},
		{"Discuss the role of central banks.", ModeTheory},
		{"Something entirely different here.", ModeUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, InferAssessmentMode(tc.prompt), tc.prompt)
	}
}

func TestInferAssessmentMode_OptionsBeatVerbs(t *testing.T) {
	prompt := "Calculate the answer and pick one: (A) 1 (B) 2 (C) 3 (D) 4"
	assert.Equal(t, ModeObjective, InferAssessmentMode(prompt))
}

func TestInferTaxonomyHint(t *testing.T) {
	assert.Equal(t, "analysis", InferTaxonomyHint("Explain why prices rise."))
	assert.Equal(t, "knowledge", InferTaxonomyHint("List three causes of inflation."))
	assert.Equal(t, "application", InferTaxonomyHint("Solve for x."))
	assert.Equal(t, "", InferTaxonomyHint("Something else entirely."))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeObjective, ParseMode("objective"))
	assert.Equal(t, ModeEssay, ParseMode("  Essay "))
	assert.Equal(t, ModeUnknown, ParseMode("bogus"))
	assert.Equal(t, ModeUnknown, ParseMode(""))
}

func TestQuestion_MarksOrZero(t *testing.T) {
	marks := 7.5
	assert.Equal(t, 7.5, Question{Marks: &marks}.MarksOrZero())
	assert.Zero(t, Question{}.MarksOrZero())
}
