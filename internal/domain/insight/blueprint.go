package insight

import (
	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/question"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXAM TEMPLATE BLUEPRINT
// Сводная структура экзамена по текущим вопросам. Используется для
// отслеживания дрейфа шаблона между сессиями и советов в стиле
// преподавателя.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// modeMixDriftThreshold - суммарный сдвиг долей режимов, при котором
	// шаблон считается изменившимся.
	modeMixDriftThreshold = 0.2

	// mcqRatioDriftThreshold - сдвиг доли MCQ, при котором шаблон
	// считается изменившимся.
	mcqRatioDriftThreshold = 0.25
)

// MarksHistogram - распределение баллов по корзинам.
type MarksHistogram struct {
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
}

// Blueprint - сводка состава экзамена.
type Blueprint struct {
	ModeMix         map[string]float64 `json:"modeMix"`
	QuestionCount   int                `json:"questionCount"`
	MarksTotal      float64            `json:"marksTotal"`
	MarksHistogram  MarksHistogram     `json:"marksHistogram"`
	MCQRatio        float64            `json:"mcqRatio"`
	BigLastQuestion bool               `json:"bigLastQuestion"`
}

// InferBlueprint выводит blueprint из списка вопросов.
func InferBlueprint(questions []question.Question) Blueprint {
	modes := make(map[string]int)
	total := 0
	totalMarks := 0.0
	marks := make([]float64, 0, len(questions))
	for _, q := range questions {
		mode := string(q.AssessmentMode)
		if mode == "" {
			mode = string(question.ModeUnknown)
		}
		modes[mode]++
		total++
		m := q.MarksOrZero()
		totalMarks += m
		marks = append(marks, m)
	}

	mix := make(map[string]float64, len(modes))
	if total > 0 {
		for mode, count := range modes {
			mix[mode] = float64(count) / float64(total)
		}
	}

	hist := MarksHistogram{}
	maxMark := 0.0
	for _, m := range marks {
		switch {
		case int(m) <= 5:
			hist.Small++
		case int(m) <= 10:
			hist.Medium++
		default:
			hist.Large++
		}
		if m > maxMark {
			maxMark = m
		}
	}

	// Последний вопрос - с максимальным index.
	lastMark := 0.0
	if len(questions) > 0 {
		last := questions[0]
		for _, q := range questions[1:] {
			if q.Index > last.Index {
				last = q
			}
		}
		lastMark = last.MarksOrZero()
	}
	bigLast := len(questions) > 0 && lastMark >= maxFloat(5.0, 0.5*maxMark)

	return Blueprint{
		ModeMix:         mix,
		QuestionCount:   total,
		MarksTotal:      concept.Round3(totalMarks),
		MarksHistogram:  hist,
		MCQRatio:        concept.Round3(mix[string(question.ModeObjective)]),
		BigLastQuestion: bigLast,
	}
}

// ShouldUpdateTemplate решает, пора ли сохранять новую версию шаблона.
// Сигнал комбинированный: суммарный сдвиг долей режимов, переключение
// признака "большой последний вопрос" или заметный сдвиг доли MCQ.
func ShouldUpdateTemplate(prev *Blueprint, cur Blueprint) bool {
	if cur.QuestionCount == 0 {
		return false
	}
	if prev == nil {
		return true
	}

	keys := make(map[string]bool)
	for k := range prev.ModeMix {
		keys[k] = true
	}
	for k := range cur.ModeMix {
		keys[k] = true
	}
	drift := 0.0
	for k := range keys {
		drift += abs(prev.ModeMix[k] - cur.ModeMix[k])
	}

	if drift > modeMixDriftThreshold {
		return true
	}
	if prev.BigLastQuestion != cur.BigLastQuestion {
		return true
	}
	return abs(prev.MCQRatio-cur.MCQRatio) > mcqRatioDriftThreshold
}

// TeacherStyleWarnings выводит советы по составу экзамена из фиксированных
// порогов blueprint.
func TeacherStyleWarnings(cur Blueprint) []string {
	var warns []string
	calc := cur.ModeMix[string(question.ModeCalculation)]
	theory := cur.ModeMix[string(question.ModeTheory)]
	app := cur.ModeMix[string(question.ModeApplication)]

	if calc > 0.5 {
		warns = append(warns, "calculation_heavy")
	}
	if theory > 0.6 && app < 0.2 {
		warns = append(warns, "theory_heavy_low_application")
	}
	if calc+theory+app < 0.4 {
		warns = append(warns, "insufficient_classified_modes")
	}
	if cur.MCQRatio > 0.5 {
		warns = append(warns, "mcq_heavy")
	}
	if cur.BigLastQuestion {
		warns = append(warns, "big_last_question")
	}
	return warns
}
