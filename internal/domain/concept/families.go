package concept

import (
	"strings"

	"github.com/sparke-study/oracle-service/internal/domain/question"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAMILY CLUSTERER
// Жадная однопроходная кластеризация подсказок вопросов: первый
// некластеризованный вопрос открывает семейство и поглощает все последующие
// с Жаккаром токенов не ниже порога. Порядок обхода является частью
// контракта - он делает результат воспроизводимым между запусками.
// ══════════════════════════════════════════════════════════════════════════════

// memberDifficultyDefault - вопросы не несут собственной сложности,
// поэтому участники семейств оцениваются одинаково.
const memberDifficultyDefault = 0.5

// ClusterFamilies группирует вопросы в семейства почти одинаковых
// формулировок. Результат ограничен MaxFamilies семействами по
// MaxFamilyMembers участников.
func ClusterFamilies(questions []question.Question) []Family {
	tokens := make([]map[string]bool, len(questions))
	for i, q := range questions {
		tokens[i] = Tokenize(q.Prompt)
	}

	used := make([]bool, len(questions))
	var families []Family

	for i := range questions {
		if used[i] {
			continue
		}
		used[i] = true
		memberIdx := []int{i}
		for j := i + 1; j < len(questions); j++ {
			if used[j] {
				continue
			}
			if Jaccard(tokens[i], tokens[j]) >= FamilyJaccardMin {
				used[j] = true
				memberIdx = append(memberIdx, j)
			}
		}

		archetype := dominantMode(questions, memberIdx)
		difficulties := make([]float64, len(memberIdx))
		for k := range difficulties {
			difficulties[k] = memberDifficultyDefault
		}

		members := make([]FamilyMember, 0, len(memberIdx))
		for _, k := range memberIdx {
			if len(members) >= MaxFamilyMembers {
				break
			}
			members = append(members, FamilyMember{QuestionID: questions[k].ID, Role: "seed"})
		}

		families = append(families, Family{
			Label:      titleMode(archetype) + " Family",
			Archetype:  titleMode(archetype),
			Difficulty: Average(difficulties),
			Frequency:  len(memberIdx),
			Synopsis:   modeSynopsis(archetype),
			Members:    members,
		})
	}

	if len(families) > MaxFamilies {
		families = families[:MaxFamilies]
	}
	return families
}

// dominantMode возвращает самый частый режим оценивания среди участников.
// Ничья разрешается в пользу режима, встретившегося раньше.
func dominantMode(questions []question.Question, memberIdx []int) question.AssessmentMode {
	counts := make(map[question.AssessmentMode]int)
	var order []question.AssessmentMode
	for _, k := range memberIdx {
		mode := questions[k].AssessmentMode
		if mode == "" {
			mode = question.ModeUnknown
		}
		if _, seen := counts[mode]; !seen {
			order = append(order, mode)
		}
		counts[mode]++
	}
	if len(order) == 0 {
		return question.ModeUnknown
	}
	best := order[0]
	for _, mode := range order[1:] {
		if counts[mode] > counts[best] {
			best = mode
		}
	}
	return best
}

// modeSynopsis - фиксированное описание семейства по архетипу.
func modeSynopsis(mode question.AssessmentMode) string {
	switch mode {
	case question.ModeObjective:
		return "Fast-moving MCQ drills expected."
	case question.ModeEssay:
		return "Long-form reasoning and synthesis."
	case question.ModeSubjective:
		return "Short constructed responses emphasised."
	case question.ModePractical:
		return "Hands-on demonstrations likely."
	default:
		return "Mixed-format assessment block."
	}
}

func titleMode(mode question.AssessmentMode) string {
	s := strings.ToLower(string(mode))
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
