package knowledge

import "context"

const (
	// ProviderPinecone Pinecone vector database
	ProviderPinecone = "pinecone"
	// ProviderZilliz Milvus/Zilliz vector database
	ProviderZilliz = "zilliz"
)

var DefaultProvider = ProviderPinecone

// SearchResult is one retrieved chunk from a vector store.
type SearchResult struct {
	// Content retrieved text
	Content string `json:"content"`
	// Score relevance score (0-1)
	Score float64 `json:"score"`
	// Metadata chunk metadata, carries the source page for slide decks
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	// Source source identifier (vector ID)
	Source string `json:"source,omitempty"`
}

// SearchOptions controls a vector search. The query text is embedded by
// the caller; stores only see the vector.
type SearchOptions struct {
	// TopK returns top K most relevant results
	TopK int `json:"top_k"`
	// Threshold relevance threshold (0-1), lower-scoring results are dropped
	Threshold float64 `json:"threshold,omitempty"`
	// Namespace scopes the search to one tenant's documents
	Namespace string `json:"namespace,omitempty"`
	// Embedding query vector
	Embedding []float32 `json:"embedding"`
}

// VectorStore is the read side of a knowledge base. Each tenant's bot
// names an index and a namespace inside it.
type VectorStore interface {
	// Provider returns the vector store provider name
	Provider() string

	// Search runs a similarity search against an index
	Search(ctx context.Context, indexName string, options SearchOptions) ([]SearchResult, error)
}

// Manager creates and caches vector store instances per provider + config.
type Manager interface {
	GetVectorStore(provider string, config map[string]interface{}) (VectorStore, error)
	RegisterProvider(name string, factory func(config map[string]interface{}) (VectorStore, error))
	ListProviders() []string
	ClearCache()
}
