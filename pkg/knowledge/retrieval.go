package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// pagePattern recognizes "page 5", "pg 5", "page no 5", "page number 5".
var pagePattern = regexp.MustCompile(`(?i)(?:page|pg)(?:\s+(?:no|number|num))?\s*(\d+)`)

// pageSpecificTopK is how many candidates a page-specific query pulls so
// every chunk of the requested page can be found.
const pageSpecificTopK = 20

// QueryEmbedder embeds query text. Satisfied by *Embedder.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrievalResult is the outcome of a retrieval pass. Page carries the
// requested page for page-specific queries, otherwise the page of the top
// match when its metadata names one (0 when unknown).
type RetrievalResult struct {
	Results        []SearchResult `json:"results"`
	Page           int            `json:"page"`
	IsPageSpecific bool           `json:"is_page_specific"`
}

// Retriever answers knowledge base queries for one bot, combining the
// embedder and the vector store behind a single call.
type Retriever struct {
	store    VectorStore
	embedder QueryEmbedder
}

// NewRetriever wires an embedder to a vector store.
func NewRetriever(store VectorStore, embedder QueryEmbedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve embeds the message and searches the namespace. When the message
// asks for a specific page, a wider search runs and only chunks from that
// page are returned.
func (r *Retriever) Retrieve(ctx context.Context, namespace, indexName, message string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = 1
	}

	embedding, err := r.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	requestedPage, isPageSpecific := ParseRequestedPage(message)
	searchTopK := topK
	if isPageSpecific {
		searchTopK = pageSpecificTopK
	}

	results, err := r.store.Search(ctx, indexName, SearchOptions{
		TopK:      searchTopK,
		Namespace: namespace,
		Embedding: embedding,
	})
	if err != nil {
		return nil, err
	}

	if isPageSpecific {
		pageResults := make([]SearchResult, 0, len(results))
		for _, result := range results {
			if metadataPageMatches(result.Metadata, requestedPage) {
				pageResults = append(pageResults, result)
			}
		}
		return &RetrievalResult{
			Results:        pageResults,
			Page:           requestedPage,
			IsPageSpecific: true,
		}, nil
	}

	page := 0
	if len(results) > 0 {
		page = metadataPage(results[0].Metadata)
	}
	return &RetrievalResult{
		Results:        results,
		Page:           page,
		IsPageSpecific: false,
	}, nil
}

// ParseRequestedPage extracts the page number from a page-specific query.
// The second return is false when the message names no page.
func ParseRequestedPage(message string) (int, bool) {
	match := pagePattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	page, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return page, true
}

// metadataPageMatches accepts the page whether the ingestion pipeline
// stored it as a number or a string.
func metadataPageMatches(metadata map[string]interface{}, page int) bool {
	if metadata == nil {
		return false
	}
	val, ok := metadata["page"]
	if !ok {
		return false
	}
	switch v := val.(type) {
	case float64:
		return int(v) == page
	case int:
		return v == page
	case string:
		return v == strconv.Itoa(page)
	}
	return false
}

func metadataPage(metadata map[string]interface{}) int {
	if metadata == nil {
		return 0
	}
	switch v := metadata["page"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if page, err := strconv.Atoi(v); err == nil {
			return page
		}
	}
	return 0
}
