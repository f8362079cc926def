// Package subject содержит доменную модель учебного предмета: документы,
// фрагменты текста и тематические кластеры, из которых строится граф
// концептов. Это ядро бизнес-логики - здесь нет внешних зависимостей.
package subject

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ResourceType представляет тип учебного документа.
type ResourceType string

const (
	ResourceExam         ResourceType = "EXAM"
	ResourcePracticeSet  ResourceType = "PRACTICE_SET"
	ResourceLectureNotes ResourceType = "LECTURE_NOTES"
	ResourceSyllabus     ResourceType = "SYLLABUS"
	ResourceTextbook     ResourceType = "TEXTBOOK"
	ResourceNotes        ResourceType = "NOTES"
	ResourceOther        ResourceType = "OTHER"
)

// ParseResourceType нормализует строку в ResourceType.
// Неизвестные значения приводятся к ResourceOther.
func ParseResourceType(s string) ResourceType {
	switch ResourceType(strings.ToUpper(strings.TrimSpace(s))) {
	case ResourceExam:
		return ResourceExam
	case ResourcePracticeSet:
		return ResourcePracticeSet
	case ResourceLectureNotes:
		return ResourceLectureNotes
	case ResourceSyllabus:
		return ResourceSyllabus
	case ResourceTextbook:
		return ResourceTextbook
	case ResourceNotes:
		return ResourceNotes
	default:
		return ResourceOther
	}
}

// Weight возвращает вес типа документа для оценки покрытия тем.
// Экзамены весят больше всего: они показывают, что реально спрашивают.
func (t ResourceType) Weight() float64 {
	switch t {
	case ResourceExam:
		return 1.0
	case ResourcePracticeSet:
		return 0.85
	case ResourceLectureNotes:
		return 0.7
	case ResourceSyllabus:
		return 0.65
	case ResourceTextbook:
		return 0.6
	case ResourceNotes:
		return 0.55
	default:
		return 0.5
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Document представляет учебный документ предмета.
type Document struct {
	// ID - идентификатор документа в core-service.
	ID string

	// ResourceType - классификация документа (EXAM, SYLLABUS, ...).
	ResourceType ResourceType
}

// Chunk представляет фрагмент извлечённого текста документа.
type Chunk struct {
	// ID - идентификатор фрагмента.
	ID string

	// DocumentID - документ-источник.
	DocumentID string

	// Text - сырой текст фрагмента.
	Text string
}

// TextRecord - минимальная запись для тематического моделирования.
type TextRecord struct {
	Text       string
	DocumentID string
}

// TopicTerm - термин темы с TF-IDF-подобным весом.
type TopicTerm struct {
	Term  string
	Score float64
}

// Topic представляет тематический кластер, материализованный выше по потоку.
// Темы иммутабельны: движок их читает, но никогда не изменяет.
type Topic struct {
	// Label - человекочитаемое имя темы.
	Label string

	// Weight - базовый вес кластера.
	Weight float64

	// Terms - характерные термины темы.
	Terms []TopicTerm

	// DocumentIDs - документы, в которых тема встречается.
	DocumentIDs []string
}

// ══════════════════════════════════════════════════════════════════════════════
// DOC TYPE MAP
// ══════════════════════════════════════════════════════════════════════════════

// DocTypeMap сопоставляет идентификатор документа его типу.
type DocTypeMap map[string]ResourceType

// ExamCount возвращает количество экзаменационных документов.
func (m DocTypeMap) ExamCount() int {
	n := 0
	for _, t := range m {
		if t == ResourceExam {
			n++
		}
	}
	return n
}

// TypeOf возвращает тип документа, ResourceOther для неизвестных.
func (m DocTypeMap) TypeOf(documentID string) ResourceType {
	if m == nil {
		return ResourceOther
	}
	if t, ok := m[documentID]; ok {
		return t
	}
	return ResourceOther
}

// WeightedWeight возвращает вес темы, скорректированный типами её документов:
// среднее весов типов, умноженное на базовый вес. Без карты типов или без
// документов возвращается базовый вес как есть.
func (m DocTypeMap) WeightedWeight(t Topic) float64 {
	if len(m) == 0 || len(t.DocumentIDs) == 0 {
		return t.Weight
	}
	sum := 0.0
	for _, id := range t.DocumentIDs {
		sum += m.TypeOf(id).Weight()
	}
	avg := sum / float64(len(t.DocumentIDs))
	if avg == 0 {
		avg = 1.0
	}
	return t.Weight * avg
}
