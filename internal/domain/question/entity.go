// Package question содержит доменную модель экзаменационного вопроса и
// эвристики "библиотекаря": разбор текста на вопросы, определение режима
// оценивания и извлечение баллов. Без внешних зависимостей.
package question

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentMode представляет формат оценивания вопроса.
type AssessmentMode string

const (
	ModeObjective   AssessmentMode = "OBJECTIVE"
	ModeCalculation AssessmentMode = "CALCULATION"
	ModeApplication AssessmentMode = "APPLICATION"
	ModeDefinition  AssessmentMode = "DEFINITION"
	ModeComparison  AssessmentMode = "COMPARISON"
	ModeEssay       AssessmentMode = "ESSAY"
	ModeSubjective  AssessmentMode = "SUBJECTIVE"
	ModePractical   AssessmentMode = "PRACTICAL"
	ModeTheory      AssessmentMode = "THEORY"
	ModeUnknown     AssessmentMode = "UNKNOWN"
)

// ParseMode нормализует строку в AssessmentMode.
// Пустые и неизвестные значения приводятся к ModeUnknown.
func ParseMode(s string) AssessmentMode {
	m := AssessmentMode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeObjective, ModeCalculation, ModeApplication, ModeDefinition,
		ModeComparison, ModeEssay, ModeSubjective, ModePractical, ModeTheory:
		return m
	default:
		return ModeUnknown
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Question представляет разобранный экзаменационный вопрос.
type Question struct {
	// ID - идентификатор вопроса в core-service.
	ID string

	// Index - порядковый номер в исходном документе.
	Index int

	// Prompt - полный текст вопроса.
	Prompt string

	// AssessmentMode - формат оценивания.
	AssessmentMode AssessmentMode

	// DocumentID - документ-источник.
	DocumentID string

	// Marks - количество баллов (nil, если не извлечено).
	Marks *float64

	// MarksConfidence - уверенность извлечения баллов [0,1]
	// (nil, если parser уверенность не сообщил).
	MarksConfidence *float64

	// HasNonText - вопрос содержит нетекстовые элементы (таблицы, рисунки).
	HasNonText bool

	// SolutionProfile - профиль решения, если известен.
	SolutionProfile string
}

// MarksOrZero возвращает баллы или 0, если они не извлечены.
func (q Question) MarksOrZero() float64 {
	if q.Marks == nil {
		return 0
	}
	return *q.Marks
}
