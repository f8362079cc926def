// Package concept содержит ядро движка: построение графа концептов предмета
// из тем, вопросов и типов документов. Всё вычисляется заново при каждом
// запуске сессии - граф не мутируется инкрементально. Без внешних зависимостей.
package concept

import (
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING MODE
// ══════════════════════════════════════════════════════════════════════════════

// Mode определяет режим скоринга, выбираемый по количеству экзаменационных
// документов. SMALLSET - данных мало, формулы консервативнее.
type Mode string

const (
	// ModeSmallSet - от 1 до 3 экзаменационных документов.
	ModeSmallSet Mode = "SMALLSET"

	// ModeRich - 4 и более экзаменов, либо экзаменов нет вовсе
	// (ноль экзаменов - это отсутствие данных, а не их дефицит).
	ModeRich Mode = "RICH"
)

// ResolveMode выбирает режим скоринга по карте типов документов.
func ResolveMode(docTypes subject.DocTypeMap) Mode {
	n := docTypes.ExamCount()
	if n > 0 && n <= smallSetExamLimit {
		return ModeSmallSet
	}
	return ModeRich
}

// TopK возвращает максимальное число концептов на один вопрос.
func (m Mode) TopK() int {
	if m == ModeSmallSet {
		return 1
	}
	return 2
}

// ══════════════════════════════════════════════════════════════════════════════
// TUNING CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// smallSetExamLimit - верхняя граница SMALLSET по числу экзаменов.
	smallSetExamLimit = 3

	// FamilyJaccardMin - порог Жаккара для склейки вопросов в семейство.
	FamilyJaccardMin = 0.35

	// DefaultTaxonomyMatchMin - порог принятия таксономического совпадения.
	DefaultTaxonomyMatchMin = 0.2

	// MaxFamilies - жёсткий потолок семейств на граф.
	MaxFamilies = 8

	// MaxFamilyMembers - жёсткий потолок участников одного семейства.
	MaxFamilyMembers = 12

	// FallbackSlug - синтетический концепт, гарантирующий каждому вопросу
	// хотя бы одну привязку.
	FallbackSlug = "core-foundations"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Metadata - происхождение концепта и его словарь.
type Metadata struct {
	// Source - откуда концепт появился ("oracle.topics" или "oracle.inferred").
	Source string

	// TopTerms - характерные термины исходной темы.
	TopTerms []subject.TopicTerm

	// DocumentIDs - документы исходной темы.
	DocumentIDs []string
}

// Concept представляет узел графа концептов.
type Concept struct {
	// Slug - уникальный в пределах графа идентификатор (label + суффикс).
	Slug string

	// Label - человекочитаемое имя.
	Label string

	// Description - короткое описание для UI.
	Description string

	// TaxonomyPath - путь в таксономии предмета, пустой если не сопоставлен.
	TaxonomyPath string

	// MasteryScore - оценка освоенности [0.2, 0.95].
	MasteryScore float64

	// Difficulty - оценка сложности [0.2, 0.95]; difficulty ≈ 1.1 - mastery.
	Difficulty float64

	// Coverage - нормированная доля темы в общем взвешенном весе [0, 1].
	Coverage float64

	// Metadata - происхождение и словарь.
	Metadata Metadata
}

// TermSet возвращает множество термов концепта в нижнем регистре.
func (c Concept) TermSet() map[string]bool {
	set := make(map[string]bool, len(c.Metadata.TopTerms))
	for _, t := range c.Metadata.TopTerms {
		if term := normalizeTerm(t.Term); term != "" {
			set[term] = true
		}
	}
	return set
}

// Binding представляет привязку вопроса к концепту.
type Binding struct {
	// QuestionID - идентификатор вопроса.
	QuestionID string

	// ConceptSlug - привязанный концепт.
	ConceptSlug string

	// Weight - сила лексического перекрытия.
	Weight float64

	// Confidence - уверенность привязки [0, 0.95].
	Confidence float64

	// Rationale - объяснение привязки для UI.
	Rationale string
}

// Relation - тип связи между концептами.
type Relation string

const (
	RelationPrerequisite Relation = "PREREQUISITE"
	RelationSupports     Relation = "SUPPORTS"
)

// Link представляет ненаправленную связь пары концептов, выведенную из
// совместной встречаемости в вопросах. Slugs хранятся в отсортированном
// порядке.
type Link struct {
	FromSlug string
	ToSlug   string
	Relation Relation

	// Weight - сила связи [0, 1].
	Weight float64

	// SharedQuestions - сколько вопросов привязано к обоим концептам.
	SharedQuestions int
}

// FamilyMember - ссылка на вопрос внутри семейства.
type FamilyMember struct {
	QuestionID string
	Role       string
}

// Family представляет кластер почти одинаковых формулировок вопросов.
type Family struct {
	Label     string
	Archetype string

	// Difficulty - средняя сложность участников.
	Difficulty float64

	// Frequency - размер кластера.
	Frequency int

	// Synopsis - фиксированное описание по архетипу.
	Synopsis string

	// Members - участники, не более MaxFamilyMembers.
	Members []FamilyMember
}

// Graph - версия графа концептов: единица персистентности и диффа.
type Graph struct {
	Concepts         []Concept
	Links            []Link
	QuestionConcepts []Binding
	Families         []Family
}

// ConceptBySlug возвращает концепт по slug, nil если нет.
func (g Graph) ConceptBySlug(slug string) *Concept {
	for i := range g.Concepts {
		if g.Concepts[i].Slug == slug {
			return &g.Concepts[i]
		}
	}
	return nil
}

// QuestionIDsByConcept группирует привязанные вопросы по концептам,
// сохраняя порядок привязок. Чистая функция: вызывается везде, где нужен
// индекс, вместо разделяемого ленивого состояния.
func (g Graph) QuestionIDsByConcept() map[string][]string {
	return GroupQuestionIDs(g.QuestionConcepts)
}

// GroupQuestionIDs строит индекс slug -> questionIds из списка привязок.
func GroupQuestionIDs(bindings []Binding) map[string][]string {
	out := make(map[string][]string)
	for _, b := range bindings {
		if b.QuestionID == "" || b.ConceptSlug == "" {
			continue
		}
		out[b.ConceptSlug] = append(out[b.ConceptSlug], b.QuestionID)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TAXONOMY INDEX
// ══════════════════════════════════════════════════════════════════════════════

// TaxonomyEntry - запись справочной таксономии предмета.
type TaxonomyEntry struct {
	Label string
	Terms []string
	Path  string
}

// TaxonomyIndex - опциональный справочник для выравнивания концептов.
type TaxonomyIndex struct {
	Entries []TaxonomyEntry
}
