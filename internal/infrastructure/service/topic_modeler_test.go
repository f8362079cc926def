package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparke-study/oracle-service/internal/domain/subject"
)

func TestComputeTopics_Empty(t *testing.T) {
	modeler := NewFrequencyTopicModeler()

	topics, err := modeler.ComputeTopics(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, topics)
}

func TestComputeTopics_ClustersByAnchorTerm(t *testing.T) {
	modeler := NewFrequencyTopicModeler()
	records := []subject.TextRecord{
		{Text: "matrix matrix determinant", DocumentID: "d1"},
		{Text: "matrix matrix inverse", DocumentID: "d2"},
		{Text: "photosynthesis photosynthesis chlorophyll", DocumentID: "d3"},
	}

	topics, err := modeler.ComputeTopics(context.Background(), records)

	require.NoError(t, err)
	require.Len(t, topics, 2)

	// Heaviest cluster first.
	first := topics[0]
	assert.Equal(t, 2.0, first.Weight)
	assert.Equal(t, "matrix", first.Label)
	assert.Equal(t, []string{"d1", "d2"}, first.DocumentIDs)
	require.NotEmpty(t, first.Terms)
	assert.Equal(t, "matrix", first.Terms[0].Term)

	second := topics[1]
	assert.Equal(t, 1.0, second.Weight)
	assert.Equal(t, "photosynthesis", second.Label)
}

func TestComputeTopics_Deterministic(t *testing.T) {
	modeler := NewFrequencyTopicModeler()
	records := []subject.TextRecord{
		{Text: "supply demand equilibrium price", DocumentID: "d1"},
		{Text: "inflation monetary policy interest", DocumentID: "d2"},
		{Text: "supply curve shifts demand", DocumentID: "d1"},
	}

	first, err := modeler.ComputeTopics(context.Background(), records)
	require.NoError(t, err)
	second, err := modeler.ComputeTopics(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeTopics_StopwordsIgnored(t *testing.T) {
	modeler := NewFrequencyTopicModeler()
	records := []subject.TextRecord{
		{Text: "the and for with this that matrix", DocumentID: "d1"},
	}

	topics, err := modeler.ComputeTopics(context.Background(), records)

	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "matrix", topics[0].Label)
	for _, term := range topics[0].Terms {
		assert.NotContains(t, []string{"the", "and", "for"}, term.Term)
	}
}

func TestComputeTopics_TermLimitPerCluster(t *testing.T) {
	modeler := NewFrequencyTopicModeler()
	records := []subject.TextRecord{
		{Text: "alpha beta gamma delta epsilon zeta eta theta", DocumentID: "d1"},
	}

	topics, err := modeler.ComputeTopics(context.Background(), records)

	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Len(t, topics[0].Terms, topicTermsPerCluster)
}

func TestComputeTopics_ClusterLimit(t *testing.T) {
	modeler := NewFrequencyTopicModeler()
	var records []subject.TextRecord
	for i := 0; i < 40; i++ {
		records = append(records, subject.TextRecord{
			Text:       fmt.Sprintf("unique%dalpha unique%dalpha filler%dbeta", i, i, i),
			DocumentID: fmt.Sprintf("d%d", i),
		})
	}

	topics, err := modeler.ComputeTopics(context.Background(), records)

	require.NoError(t, err)
	// 40 records with all-distinct anchors collapse to clusterLimit(40).
	assert.Len(t, topics, clusterLimit(40))
}

func TestClusterLimit(t *testing.T) {
	assert.Equal(t, 1, clusterLimit(1))
	assert.Equal(t, 3, clusterLimit(10))
	assert.Equal(t, 3, clusterLimit(100))
	assert.Equal(t, 7, clusterLimit(500))
	assert.Equal(t, 20, clusterLimit(10000))
}
