package question

import (
	"regexp"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIBRARIAN
// Разбор сырого текста на вопросы и классификация режима оценивания.
// Эвристики намеренно простые: строгий разбор PDF - задача вышестоящего
// сервиса, здесь только страховочный вариант для plain-text входов.
// ══════════════════════════════════════════════════════════════════════════════

var (
	questionLineRe = regexp.MustCompile(`(?i)^\s*(?:q(?:uestion)?\s*)?(\d{1,3})[).:\-]\s*(.+)$`)
	marksRe        = regexp.MustCompile(`(?i)(\d{1,3})\s*marks?`)
	objectiveOptRe = regexp.MustCompile(`\([A-D]\)`)
)

// ParsedQuestion - вопрос, извлечённый из plain-text документа.
type ParsedQuestion struct {
	Index          int
	Prompt         string
	Marks          *float64
	AssessmentMode AssessmentMode
	TaxonomyHint   string
}

// ExtractFromText разбирает plain-text документ на вопросы по нумерованным
// строкам ("3.", "Q7:", "12)"). Строки без номера прилипают к текущему
// вопросу. Если ни одной нумерованной строки нет, текст режется на
// псевдо-вопросы по абзацам (не более 10).
func ExtractFromText(text string) []ParsedQuestion {
	var (
		questions    []ParsedQuestion
		buffer       []string
		currentNum   int
		haveCurrent  bool
		logicalIndex int
	)

	flush := func() {
		if !haveCurrent && len(buffer) == 0 {
			return
		}
		var parts []string
		for _, seg := range buffer {
			if s := strings.TrimSpace(seg); s != "" {
				parts = append(parts, s)
			}
		}
		buffer = nil
		raw := strings.Join(parts, " ")
		if raw == "" {
			return
		}
		logicalIndex++
		index := currentNum
		if !haveCurrent || index == 0 {
			index = logicalIndex
		}
		questions = append(questions, ParsedQuestion{
			Index:          index,
			Prompt:         raw,
			Marks:          ExtractMarks(raw),
			AssessmentMode: InferAssessmentMode(raw),
			TaxonomyHint:   InferTaxonomyHint(raw),
		})
	}

	for _, line := range strings.Split(text, "\n") {
		if m := questionLineRe.FindStringSubmatch(line); m != nil {
			flush()
			currentNum, _ = strconv.Atoi(m[1])
			haveCurrent = true
			if seed := strings.TrimSpace(m[2]); seed != "" {
				buffer = []string{seed}
			} else {
				buffer = nil
			}
			continue
		}
		if haveCurrent {
			buffer = append(buffer, line)
		}
	}
	flush()

	if len(questions) == 0 {
		for i, chunk := range fallbackChunks(text) {
			questions = append(questions, ParsedQuestion{
				Index:          i + 1,
				Prompt:         chunk,
				AssessmentMode: InferAssessmentMode(chunk),
				TaxonomyHint:   InferTaxonomyHint(chunk),
			})
		}
	}
	return questions
}

// fallbackChunks режет текст на группы абзацев, когда нумерация не найдена.
func fallbackChunks(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}
	size := len(paragraphs) / 5
	if size < 1 {
		size = 1
	}
	var chunks []string
	for i := 0; i < len(paragraphs); i += size {
		end := i + size
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		chunk := strings.Join(paragraphs[i:end], " ")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) > 10 {
		chunks = chunks[:10]
	}
	return chunks
}

// ExtractMarks извлекает количество баллов из текста вопроса ("... 10 marks").
func ExtractMarks(raw string) *float64 {
	m := marksRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// InferAssessmentMode определяет режим оценивания по ключевым словам.
// Порядок проверок важен: варианты (A)-(D) выигрывают у любых глаголов.
func InferAssessmentMode(raw string) AssessmentMode {
	head := raw
	if len(head) > 400 {
		head = head[:400]
	}
	if objectiveOptRe.MatchString(head) {
		return ModeObjective
	}
	text := strings.ToLower(raw)
	if containsAny(text, "calculate", "compute", "derive", "solve", "evaluate", "approximate", "show your work") {
		return ModeCalculation
	}
	if containsAny(text, "apply", "case", "scenario", "given the following", "advise", "recommend", "use the following data") {
		return ModeApplication
	}
	if containsAny(text, "define", "what is", "list", "state", "identify", "give the definition") {
		return ModeDefinition
	}
	if containsAny(text, "compare", "contrast", "difference between", "versus", "vs.") {
		return ModeComparison
	}
	if containsAny(text, "discuss", "critically", "assess", "explain", "describe", "analyze", "justify") {
		return ModeTheory
	}
	return ModeUnknown
}

// InferTaxonomyHint сопоставляет глагол вопроса ступени таксономии.
func InferTaxonomyHint(raw string) string {
	text := strings.ToLower(raw)
	switch {
	case containsAny(text, "explain", "justify", "analyze"):
		return "analysis"
	case containsAny(text, "define", "list", "state"):
		return "knowledge"
	case containsAny(text, "apply", "solve", "compute"):
		return "application"
	default:
		return ""
	}
}

func containsAny(s string, keys ...string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
