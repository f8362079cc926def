package subject

import (
	"regexp"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT META
// Лёгкие эвристики по сырому тексту документа: язык, заголовки, тип ресурса.
// Используются для обогащения метаданных документа до запуска тяжёлых стадий.
// ══════════════════════════════════════════════════════════════════════════════

// DocumentMeta - результат эвристического анализа текста документа.
type DocumentMeta struct {
	// Lang - предполагаемый язык ("en" или "unknown").
	Lang string

	// HeadingCount - количество строк, похожих на заголовки.
	HeadingCount int

	// Headings - извлечённый план документа.
	Headings []Heading

	// DetectedResourceType - тип документа, угаданный по ключевым словам.
	DetectedResourceType ResourceType

	// DetectedQuestions - похоже ли содержимое на список вопросов.
	DetectedQuestions bool
}

// Heading - элемент плана документа.
type Heading struct {
	Title string

	// Level - номер из нумерованного заголовка ("2. Methods" -> 2), 0 если нет.
	Level int
}

var (
	numberedHeadingRe = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	romanHeadingRe    = regexp.MustCompile(`^([IVX]+)\.\s+(.+)$`)
	headingLikeRe     = regexp.MustCompile(`^(\d+\.|[IVX]+\.)\s+\w+`)
	capsHeadingRe     = regexp.MustCompile(`^[A-Z0-9\-\s:]{4,}$`)
	questionWordRe    = regexp.MustCompile(`(?i)\bquestion\b`)
)

var commonEnglishWords = []string{"the", "and", "of", "to", "in", "for", "is", "on", "with", "that"}

const maxOutlineItems = 50

// ComputeDocumentMeta анализирует сырой текст и возвращает его мета-описание.
func ComputeDocumentMeta(text string) DocumentMeta {
	return DocumentMeta{
		Lang:                 detectLang(text),
		HeadingCount:         estimateHeadings(text),
		Headings:             extractHeadings(text),
		DetectedResourceType: detectResourceType(text),
		DetectedQuestions:    detectQuestions(text),
	}
}

func detectLang(text string) string {
	sample := strings.ToLower(text)
	hits := 0
	for _, w := range commonEnglishWords {
		if strings.Contains(sample, w) {
			hits++
		}
	}
	if hits >= 2 {
		return "en"
	}
	return "unknown"
}

func estimateHeadings(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if headingLikeRe.MatchString(line) {
			count++
			continue
		}
		if len(line) <= 60 && capsHeadingRe.MatchString(line) && strings.ToUpper(line) == line {
			count++
		}
	}
	return count
}

func extractHeadings(text string) []Heading {
	var out []Heading
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if title != "" {
				out = append(out, Heading{Title: title, Level: parseLevel(m[1])})
				if len(out) >= maxOutlineItems {
					break
				}
			}
			continue
		}
		if m := romanHeadingRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if title != "" {
				out = append(out, Heading{Title: title})
				if len(out) >= maxOutlineItems {
					break
				}
			}
			continue
		}
		if len(line) <= 60 && capsHeadingRe.MatchString(line) && strings.ToUpper(line) == line {
			out = append(out, Heading{Title: titleCase(line)})
			if len(out) >= maxOutlineItems {
				break
			}
		}
	}
	return out
}

func parseLevel(s string) int {
	level := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		level = level*10 + int(r-'0')
	}
	return level
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func detectResourceType(text string) ResourceType {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "syllabus"):
		return ResourceSyllabus
	case strings.Contains(t, "exam") || strings.Contains(t, "midterm") || strings.Contains(t, "final"):
		return ResourceExam
	case strings.Contains(t, "practice") || strings.Contains(t, "worksheet"):
		return ResourcePracticeSet
	case strings.Contains(t, "lecture") && strings.Contains(t, "notes"):
		return ResourceLectureNotes
	case strings.Contains(t, "textbook") || strings.Contains(t, "chapter"):
		return ResourceTextbook
	case strings.Contains(t, "notes"):
		return ResourceNotes
	default:
		return ResourceOther
	}
}

func detectQuestions(text string) bool {
	qmarks := strings.Count(text, "?")
	words := len(questionWordRe.FindAllString(text, -1))
	return qmarks >= 3 || words >= 2
}
