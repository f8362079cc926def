package concept

import (
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRIC REFINER
// Пересчитывает mastery/difficulty каждого концепта по накопленным сигналам:
// плотность семейств, число различных экзаменационных документов,
// суммарные баллы привязанных вопросов и бонус за таксономию. Формула
// зависит от режима SMALLSET/RICH.
// ══════════════════════════════════════════════════════════════════════════════

const taxonomyPathBonus = 0.05

// conceptSignals - сырые сигналы одного концепта до нормализации.
type conceptSignals struct {
	families float64
	exams    float64
	marks    float64
}

// RefineMetrics переписывает masteryScore и difficulty у переданных
// концептов на месте. Экзаменационный сигнал считает только документы
// с типом EXAM.
func RefineMetrics(
	concepts []Concept,
	bindings []Binding,
	questions []question.Question,
	docTypes subject.DocTypeMap,
	mode Mode,
) {
	byID := make(map[string]question.Question, len(questions))
	for _, q := range questions {
		if q.ID != "" {
			byID[q.ID] = q
		}
	}
	byConcept := GroupQuestionIDs(bindings)

	totalExamDocs := float64(docTypes.ExamCount())
	if totalExamDocs < 1 {
		totalExamDocs = 1
	}

	signals := make(map[string]conceptSignals, len(concepts))
	maxFamilies, maxExams, maxMarks := 1.0, 1.0, 1.0
	for _, c := range concepts {
		qids := byConcept[c.Slug]
		if len(qids) == 0 {
			signals[c.Slug] = conceptSignals{}
			continue
		}
		s := conceptSignals{
			families: float64(countFamilies(qids, byID)),
			exams:    float64(countExamDocs(qids, byID, docTypes)),
			marks:    sumMarks(qids, byID),
		}
		signals[c.Slug] = s
		if s.families > maxFamilies {
			maxFamilies = s.families
		}
		if s.exams > maxExams {
			maxExams = s.exams
		}
		if s.marks > maxMarks {
			maxMarks = s.marks
		}
	}

	for i := range concepts {
		s := signals[concepts[i].Slug]
		fam := s.families / maxFamilies
		exm := s.exams / maxExams
		mrk := s.marks / maxMarks
		cov := concepts[i].Coverage

		bonus := 0.0
		if concepts[i].TaxonomyPath != "" {
			bonus = taxonomyPathBonus
		}

		var score float64
		if mode == ModeSmallSet {
			score = 0.15 + 0.35*fam + 0.35*(exm/totalExamDocs) + 0.15*cov + bonus
		} else {
			score = 0.2 + 0.3*cov + 0.25*fam + 0.25*exm + bonus
			score = minFloat(1.0, score+0.1*mrk)
		}
		score = Clamp(score, 0, 1)

		mastery := Clamp(0.3+0.6*score, 0.2, 0.95)
		concepts[i].MasteryScore = mastery
		concepts[i].Difficulty = Clamp(1.1-mastery, 0.2, 0.95)
	}
}

// countFamilies повторяет жадную кластеризацию только над вопросами
// одного концепта и возвращает число получившихся семейств.
func countFamilies(qids []string, byID map[string]question.Question) int {
	tokens := make([]map[string]bool, len(qids))
	for i, qid := range qids {
		tokens[i] = Tokenize(byID[qid].Prompt)
	}
	used := make([]bool, len(tokens))
	families := 0
	for i := range tokens {
		if used[i] {
			continue
		}
		used[i] = true
		for j := i + 1; j < len(tokens); j++ {
			if used[j] {
				continue
			}
			if Jaccard(tokens[i], tokens[j]) >= FamilyJaccardMin {
				used[j] = true
			}
		}
		families++
	}
	return families
}

// countExamDocs считает уникальные экзаменационные документы среди
// привязанных вопросов.
func countExamDocs(qids []string, byID map[string]question.Question, docTypes subject.DocTypeMap) int {
	seen := make(map[string]bool)
	for _, qid := range qids {
		docID := byID[qid].DocumentID
		if docID == "" || seen[docID] {
			continue
		}
		if docTypes.TypeOf(docID) == subject.ResourceExam {
			seen[docID] = true
		}
	}
	return len(seen)
}

func sumMarks(qids []string, byID map[string]question.Question) float64 {
	total := 0.0
	for _, qid := range qids {
		total += byID[qid].MarksOrZero()
	}
	return total
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
