package concept

import (
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// BuildGraph прогоняет полный конвейер построения графа концептов:
// концепты из тем, привязка вопросов, связи, семейства и финальный
// пересчёт метрик. Все шаги детерминированы относительно порядка входа.
func BuildGraph(
	topics []subject.Topic,
	questions []question.Question,
	docTypes subject.DocTypeMap,
	taxonomy *TaxonomyIndex,
	taxonomyMatchMin float64,
) (Graph, Mode) {
	mode := ResolveMode(docTypes)

	concepts, terms := BuildConcepts(topics, docTypes, taxonomy, taxonomyMatchMin)
	bindings := BindQuestions(questions, terms, mode.TopK())
	links := DeriveLinks(bindings)
	families := ClusterFamilies(questions)
	RefineMetrics(concepts, bindings, questions, docTypes, mode)

	return Graph{
		Concepts:         concepts,
		Links:            links,
		QuestionConcepts: bindings,
		Families:         families,
	}, mode
}
