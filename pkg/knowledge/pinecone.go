package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// pineconeVectorStore queries Pinecone over its HTTP API. Namespaces scope
// each tenant's documents inside a shared index.
type pineconeVectorStore struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewPineconeVectorStore creates a Pinecone store.
// Config options:
//   - api_key: Pinecone API key (required)
//   - base_url: API endpoint (default: https://api.pinecone.io)
func NewPineconeVectorStore(config map[string]interface{}) (VectorStore, error) {
	apiKey := getStringFromConfig(config, "api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}

	baseURL := getStringFromConfig(config, "base_url")
	if baseURL == "" {
		baseURL = "https://api.pinecone.io"
	}

	return &pineconeVectorStore{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

func (p *pineconeVectorStore) Provider() string {
	return ProviderPinecone
}

func (p *pineconeVectorStore) Search(ctx context.Context, indexName string, options SearchOptions) ([]SearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(options.Embedding) == 0 {
		return nil, fmt.Errorf("embedding vector is required for pinecone search")
	}

	topK := options.TopK
	if topK <= 0 {
		topK = 10
	}

	queryReq := map[string]interface{}{
		"vector":          options.Embedding,
		"topK":            topK,
		"includeMetadata": true,
	}
	if options.Namespace != "" {
		queryReq["namespace"] = options.Namespace
	}

	reqBody, _ := json.Marshal(queryReq)
	url := fmt.Sprintf("%s/indexes/%s/query", p.baseURL, indexName)

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pinecone query failed with status: %d", resp.StatusCode)
	}

	var queryResp struct {
		Matches []struct {
			ID       string                 `json:"id"`
			Score    float64                `json:"score"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var results []SearchResult
	for _, match := range queryResp.Matches {
		if options.Threshold > 0 && match.Score < options.Threshold {
			continue
		}
		content := ""
		if contentField, ok := match.Metadata["text"].(string); ok {
			content = contentField
		} else if contentField, ok := match.Metadata["content"].(string); ok {
			content = contentField
		}
		results = append(results, SearchResult{
			Content:  content,
			Score:    match.Score,
			Metadata: match.Metadata,
			Source:   match.ID,
		})
	}
	return results, nil
}

func init() {
	RegisterVectorStoreProvider(ProviderPinecone, func(config map[string]interface{}) (VectorStore, error) {
		return NewPineconeVectorStore(config)
	})
}
