package concept

import (
	"math"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEXT HELPERS
// Общие примитивы: slug, токенизация, Жаккар, клампы. Держим их в одном
// месте, чтобы построитель, привязчик и дифф работали с одинаковым словарём.
// ══════════════════════════════════════════════════════════════════════════════

// minTokenLen - минимальная длина токена при токенизации подсказок.
const minTokenLen = 4

// Slugify приводит метку к slug: нижний регистр, не-алфавитные символы
// сливаются в дефисы. Пустой результат заменяется на "concept".
func Slugify(label string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "concept"
	}
	return slug
}

// slugCounter обеспечивает уникальность slug в пределах одного графа:
// повторная метка получает суффикс -2, -3, ...
type slugCounter map[string]int

func (s slugCounter) unique(base string) string {
	count := s[base]
	s[base] = count + 1
	if count == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(count+1)
}

// Tokenize разбивает текст на множество токенов: нижний регистр, только
// буквы и цифры, длина не меньше minTokenLen.
func Tokenize(value string) map[string]bool {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return ' '
	}, value)

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) >= minTokenLen {
			tokens[tok] = true
		}
	}
	return tokens
}

// Jaccard возвращает |A∩B| / |A∪B|; 0 для пустых множеств.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Clamp ограничивает v отрезком [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round3 округляет до трёх знаков - контракт всех числовых полей payload.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Average возвращает среднее; 0 для пустого среза.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
