package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	results   []SearchResult
	lastTopK  int
	lastNs    string
	lastIndex string
}

func (f *fakeStore) Provider() string { return "fake" }

func (f *fakeStore) Search(ctx context.Context, indexName string, options SearchOptions) ([]SearchResult, error) {
	f.lastTopK = options.TopK
	f.lastNs = options.Namespace
	f.lastIndex = indexName
	return f.results, nil
}

func TestParseRequestedPage(t *testing.T) {
	tests := []struct {
		message  string
		page     int
		specific bool
	}{
		{"what is on page 5?", 5, true},
		{"show me pg 12", 12, true},
		{"go to page no 3", 3, true},
		{"page number 7 please", 7, true},
		{"Page 2", 2, true},
		{"tell me about pricing", 0, false},
		{"turn the page", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			page, specific := ParseRequestedPage(tt.message)
			assert.Equal(t, tt.specific, specific)
			assert.Equal(t, tt.page, page)
		})
	}
}

func TestRetrieve_PageSpecificFiltersAndWidens(t *testing.T) {
	store := &fakeStore{results: []SearchResult{
		{Content: "chunk a", Metadata: map[string]interface{}{"page": float64(5)}},
		{Content: "chunk b", Metadata: map[string]interface{}{"page": "5"}},
		{Content: "chunk c", Metadata: map[string]interface{}{"page": float64(6)}},
		{Content: "chunk d", Metadata: map[string]interface{}{}},
	}}
	retriever := NewRetriever(store, fakeEmbedder{})

	result, err := retriever.Retrieve(context.Background(), "ns", "idx", "what is on page 5", 1)
	require.NoError(t, err)

	assert.True(t, result.IsPageSpecific)
	assert.Equal(t, 5, result.Page)
	// Numeric and string page metadata both match.
	require.Len(t, result.Results, 2)
	assert.Equal(t, "chunk a", result.Results[0].Content)
	assert.Equal(t, "chunk b", result.Results[1].Content)
	// Page-specific queries widen the candidate pool.
	assert.Equal(t, pageSpecificTopK, store.lastTopK)
}

func TestRetrieve_GeneralQueryUsesRequestedTopK(t *testing.T) {
	store := &fakeStore{results: []SearchResult{
		{Content: "top match", Metadata: map[string]interface{}{"page": float64(3)}},
		{Content: "second", Metadata: map[string]interface{}{"page": float64(9)}},
	}}
	retriever := NewRetriever(store, fakeEmbedder{})

	result, err := retriever.Retrieve(context.Background(), "ns", "idx", "tell me about pricing", 2)
	require.NoError(t, err)

	assert.False(t, result.IsPageSpecific)
	assert.Equal(t, 3, result.Page)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, 2, store.lastTopK)
	assert.Equal(t, "ns", store.lastNs)
	assert.Equal(t, "idx", store.lastIndex)
}

func TestRetrieve_NoResultsMeansNoPage(t *testing.T) {
	store := &fakeStore{}
	retriever := NewRetriever(store, fakeEmbedder{})

	result, err := retriever.Retrieve(context.Background(), "ns", "idx", "anything", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Page)
	assert.Empty(t, result.Results)
}

func TestRetrieve_TopKDefaultsToOne(t *testing.T) {
	store := &fakeStore{}
	retriever := NewRetriever(store, fakeEmbedder{})

	_, err := retriever.Retrieve(context.Background(), "ns", "idx", "anything", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lastTopK)
}
