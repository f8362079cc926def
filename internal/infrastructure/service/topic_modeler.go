package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

// ══════════════════════════════════════════════════════════════════════════════
// FREQUENCY TOPIC MODELER
// ══════════════════════════════════════════════════════════════════════════════

const (
	topicTermsPerCluster = 5
	topicMinTokenLen     = 3
	topicMinClusters     = 3
	topicMaxClusters     = 20
)

// topicStopwords - служебные слова, не несущие тематической нагрузки.
var topicStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "any": true, "can": true,
	"has": true, "have": true, "was": true, "were": true, "with": true,
	"this": true, "that": true, "from": true, "they": true, "will": true,
	"what": true, "when": true, "which": true, "their": true, "there": true,
	"about": true, "into": true, "more": true, "other": true, "some": true,
	"such": true, "than": true, "then": true, "these": true, "would": true,
	"each": true, "between": true, "also": true, "its": true, "been": true,
	"one": true, "two": true, "may": true, "using": true, "used": true,
	"use": true, "following": true, "given": true, "your": true, "how": true,
	"why": true, "where": true, "who": true, "whom": true, "does": true,
	"did": true, "should": true, "could": true, "must": true, "shall": true,
}

// FrequencyTopicModeler clusters text records around their dominant
// TF-IDF term. Детерминированная аппроксимация полноценного тематического
// моделирования: каждая запись прикрепляется к своему самому весомому
// термину, группы становятся темами.
type FrequencyTopicModeler struct{}

// NewFrequencyTopicModeler creates a new FrequencyTopicModeler.
func NewFrequencyTopicModeler() *FrequencyTopicModeler {
	return &FrequencyTopicModeler{}
}

// ComputeTopics derives subject topics from chunk text records.
// Темы упорядочены по убыванию веса (размера кластера); метка темы -
// её сильнейший термин.
func (m *FrequencyTopicModeler) ComputeTopics(_ context.Context, records []subject.TextRecord) ([]subject.Topic, error) {
	if len(records) == 0 {
		return nil, nil
	}

	counts := make([]map[string]int, len(records))
	df := make(map[string]int)
	for i, rec := range records {
		counts[i] = termCounts(rec.Text)
		for term := range counts[i] {
			df[term]++
		}
	}

	n := len(records)
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log(float64(1+n)/float64(1+d)) + 1
	}

	// Якорный термин записи: максимальный tf·idf, при равенстве -
	// лексикографически меньший, чтобы результат не зависел от порядка
	// обхода map.
	type cluster struct {
		scores  map[string]float64
		docIDs  map[string]bool
		members int
	}
	clusters := make(map[string]*cluster)
	for i, rec := range records {
		anchor, scores := anchorTerm(counts[i], idf)
		if anchor == "" {
			continue
		}
		cl := clusters[anchor]
		if cl == nil {
			cl = &cluster{scores: make(map[string]float64), docIDs: make(map[string]bool)}
			clusters[anchor] = cl
		}
		for term, score := range scores {
			cl.scores[term] += score
		}
		if rec.DocumentID != "" {
			cl.docIDs[rec.DocumentID] = true
		}
		cl.members++
	}

	topics := make([]subject.Topic, 0, len(clusters))
	for anchor, cl := range clusters {
		terms := topTerms(cl.scores, cl.members, topicTermsPerCluster)
		label := anchor
		if len(terms) > 0 {
			label = terms[0].Term
		}
		topics = append(topics, subject.Topic{
			Label:       label,
			Weight:      float64(cl.members),
			Terms:       terms,
			DocumentIDs: sortedKeys(cl.docIDs),
		})
	}

	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Weight != topics[j].Weight {
			return topics[i].Weight > topics[j].Weight
		}
		return topics[i].Label < topics[j].Label
	})
	if limit := clusterLimit(n); len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// clusterLimit ограничивает число тем: ~sqrt(n/10) в пределах [3, 20],
// но не больше числа записей.
func clusterLimit(n int) int {
	k := int(math.Round(math.Sqrt(math.Max(1, float64(n)/10.0))))
	if k < topicMinClusters {
		k = topicMinClusters
	}
	if k > topicMaxClusters {
		k = topicMaxClusters
	}
	if k > n {
		k = n
	}
	return k
}

func termCounts(text string) map[string]int {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return ' '
	}, text)

	counts := make(map[string]int)
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < topicMinTokenLen || topicStopwords[tok] {
			continue
		}
		counts[tok]++
	}
	return counts
}

func anchorTerm(counts map[string]int, idf map[string]float64) (string, map[string]float64) {
	if len(counts) == 0 {
		return "", nil
	}
	scores := make(map[string]float64, len(counts))
	best := ""
	bestScore := 0.0
	for term, tf := range counts {
		score := float64(tf) * idf[term]
		scores[term] = score
		if score > bestScore || (score == bestScore && (best == "" || term < best)) {
			best = term
			bestScore = score
		}
	}
	return best, scores
}

func topTerms(scores map[string]float64, members, limit int) []subject.TopicTerm {
	if members <= 0 {
		members = 1
	}
	terms := make([]subject.TopicTerm, 0, len(scores))
	for term, sum := range scores {
		terms = append(terms, subject.TopicTerm{Term: term, Score: sum / float64(members)})
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Score != terms[j].Score {
			return terms[i].Score > terms[j].Score
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
