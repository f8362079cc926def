package core

import (
	"github.com/sparke-study/oracle-service/internal/domain/concept"
	"github.com/sparke-study/oracle-service/internal/domain/question"
	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO <-> Domain conversion
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts between wire DTOs and domain entities.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// DocumentsFromDTO converts document DTOs to domain documents.
func (m *Mapper) DocumentsFromDTO(dtos []DocumentDTO) []subject.Document {
	docs := make([]subject.Document, 0, len(dtos))
	for _, d := range dtos {
		if d.ID == "" {
			continue
		}
		docs = append(docs, subject.Document{
			ID:           d.ID,
			ResourceType: subject.ParseResourceType(d.ResourceType),
		})
	}
	return docs
}

// ChunksFromDTO converts chunk DTOs to domain chunks.
func (m *Mapper) ChunksFromDTO(dtos []ChunkDTO) []subject.Chunk {
	chunks := make([]subject.Chunk, 0, len(dtos))
	for _, c := range dtos {
		chunks = append(chunks, subject.Chunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
		})
	}
	return chunks
}

// QuestionsFromDTO converts question DTOs to domain questions.
// Отсутствующая уверенность извлечения баллов остаётся nil: средняя
// уверенность считается только по заполненным значениям.
func (m *Mapper) QuestionsFromDTO(dtos []QuestionDTO) []question.Question {
	questions := make([]question.Question, 0, len(dtos))
	for _, q := range dtos {
		if q.ID == "" {
			continue
		}
		questions = append(questions, question.Question{
			ID:              q.ID,
			Index:           q.Index,
			Prompt:          q.Prompt,
			AssessmentMode:  question.ParseMode(q.AssessmentMode),
			DocumentID:      q.DocumentID,
			Marks:           q.Marks,
			MarksConfidence: q.MarksConfidence,
			HasNonText:      q.HasNonText,
			SolutionProfile: q.SolutionProfile,
		})
	}
	return questions
}

// TopicsToDTO converts domain topics to wire form.
func (m *Mapper) TopicsToDTO(topics []subject.Topic) []TopicDTO {
	out := make([]TopicDTO, 0, len(topics))
	for _, t := range topics {
		out = append(out, TopicDTO{
			Label:       t.Label,
			Weight:      t.Weight,
			Terms:       m.termsToDTO(t.Terms),
			DocumentIDs: t.DocumentIDs,
		})
	}
	return out
}

func (m *Mapper) termsToDTO(terms []subject.TopicTerm) []TopicTermDTO {
	out := make([]TopicTermDTO, 0, len(terms))
	for _, t := range terms {
		out = append(out, TopicTermDTO{Term: t.Term, Score: t.Score})
	}
	return out
}

func (m *Mapper) termsFromDTO(terms []TopicTermDTO) []subject.TopicTerm {
	out := make([]subject.TopicTerm, 0, len(terms))
	for _, t := range terms {
		out = append(out, subject.TopicTerm{Term: t.Term, Score: t.Score})
	}
	return out
}

// GraphToDTO converts a domain concept graph to wire form.
func (m *Mapper) GraphToDTO(g concept.Graph) GraphDTO {
	dto := GraphDTO{
		Concepts:         make([]ConceptDTO, 0, len(g.Concepts)),
		Links:            make([]LinkDTO, 0, len(g.Links)),
		QuestionConcepts: make([]BindingDTO, 0, len(g.QuestionConcepts)),
		Families:         make([]FamilyDTO, 0, len(g.Families)),
	}

	for _, c := range g.Concepts {
		dto.Concepts = append(dto.Concepts, ConceptDTO{
			Slug:         c.Slug,
			Label:        c.Label,
			Description:  c.Description,
			TaxonomyPath: c.TaxonomyPath,
			MasteryScore: c.MasteryScore,
			Difficulty:   c.Difficulty,
			Coverage:     c.Coverage,
			Metadata: ConceptMetadataDTO{
				Source:      c.Metadata.Source,
				TopTerms:    m.termsToDTO(c.Metadata.TopTerms),
				DocumentIDs: c.Metadata.DocumentIDs,
			},
		})
	}

	for _, l := range g.Links {
		dto.Links = append(dto.Links, LinkDTO{
			FromSlug: l.FromSlug,
			ToSlug:   l.ToSlug,
			Relation: string(l.Relation),
			Weight:   l.Weight,
			Metadata: LinkMetadataDTO{SharedQuestions: l.SharedQuestions},
		})
	}

	for _, b := range g.QuestionConcepts {
		dto.QuestionConcepts = append(dto.QuestionConcepts, BindingDTO{
			Question:    QuestionRefDTO{QuestionID: b.QuestionID},
			ConceptSlug: b.ConceptSlug,
			Weight:      b.Weight,
			Confidence:  b.Confidence,
			Rationale:   b.Rationale,
		})
	}

	for _, f := range g.Families {
		members := make([]FamilyMemberDTO, 0, len(f.Members))
		for _, mem := range f.Members {
			members = append(members, FamilyMemberDTO{
				Question: QuestionRefDTO{QuestionID: mem.QuestionID},
				Role:     mem.Role,
			})
		}
		dto.Families = append(dto.Families, FamilyDTO{
			Label:      f.Label,
			Archetype:  f.Archetype,
			Difficulty: f.Difficulty,
			Frequency:  f.Frequency,
			Synopsis:   f.Synopsis,
			Members:    members,
		})
	}

	return dto
}

// GraphFromDTO converts a stored concept graph back to domain form.
func (m *Mapper) GraphFromDTO(dto *GraphDTO) *concept.Graph {
	if dto == nil {
		return nil
	}
	g := &concept.Graph{}

	for _, c := range dto.Concepts {
		g.Concepts = append(g.Concepts, concept.Concept{
			Slug:         c.Slug,
			Label:        c.Label,
			Description:  c.Description,
			TaxonomyPath: c.TaxonomyPath,
			MasteryScore: c.MasteryScore,
			Difficulty:   c.Difficulty,
			Coverage:     c.Coverage,
			Metadata: concept.Metadata{
				Source:      c.Metadata.Source,
				TopTerms:    m.termsFromDTO(c.Metadata.TopTerms),
				DocumentIDs: c.Metadata.DocumentIDs,
			},
		})
	}

	for _, l := range dto.Links {
		g.Links = append(g.Links, concept.Link{
			FromSlug:        l.FromSlug,
			ToSlug:          l.ToSlug,
			Relation:        concept.Relation(l.Relation),
			Weight:          l.Weight,
			SharedQuestions: l.Metadata.SharedQuestions,
		})
	}

	for _, b := range dto.QuestionConcepts {
		g.QuestionConcepts = append(g.QuestionConcepts, concept.Binding{
			QuestionID:  b.Question.QuestionID,
			ConceptSlug: b.ConceptSlug,
			Weight:      b.Weight,
			Confidence:  b.Confidence,
			Rationale:   b.Rationale,
		})
	}

	for _, f := range dto.Families {
		members := make([]concept.FamilyMember, 0, len(f.Members))
		for _, mem := range f.Members {
			members = append(members, concept.FamilyMember{
				QuestionID: mem.Question.QuestionID,
				Role:       mem.Role,
			})
		}
		g.Families = append(g.Families, concept.Family{
			Label:      f.Label,
			Archetype:  f.Archetype,
			Difficulty: f.Difficulty,
			Frequency:  f.Frequency,
			Synopsis:   f.Synopsis,
			Members:    members,
		})
	}

	return g
}
