package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// milvusVectorStore queries a Milvus/Zilliz collection. The collection is
// the index and the namespace maps to a partition when present.
type milvusVectorStore struct {
	client client.Client
}

// NewMilvusVectorStore creates a Milvus store.
// Config options:
//   - address: Milvus server address (default: localhost:19530)
//   - username: username (optional)
//   - password: password (optional)
func NewMilvusVectorStore(config map[string]interface{}) (VectorStore, error) {
	addr := getStringFromConfig(config, "address")
	if addr == "" {
		addr = "localhost:19530"
	}

	clientConfig := client.Config{
		Address:  addr,
		Username: getStringFromConfig(config, "username"),
		Password: getStringFromConfig(config, "password"),
	}

	milvusClient, err := client.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{client: milvusClient}, nil
}

func (m *milvusVectorStore) Provider() string {
	return ProviderZilliz
}

func (m *milvusVectorStore) Search(ctx context.Context, indexName string, options SearchOptions) ([]SearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(options.Embedding) == 0 {
		return nil, fmt.Errorf("embedding vector is required for milvus search")
	}

	topK := options.TopK
	if topK <= 0 {
		topK = 10
	}

	var partitions []string
	if options.Namespace != "" {
		partitions = []string{options.Namespace}
	}

	vectors := []entity.Vector{
		entity.FloatVector(options.Embedding),
	}

	searchResults, err := m.client.Search(ctx, indexName, partitions, "",
		[]string{"id", "content", "metadata"}, vectors, "embedding", entity.L2, topK, nil)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	var results []SearchResult
	for _, searchResult := range searchResults {
		ids := searchResult.IDs
		scores := searchResult.Scores

		for i := 0; i < searchResult.ResultCount; i++ {
			content := ""
			if contentCol := searchResult.Fields.GetColumn("content"); contentCol != nil {
				if contentStr, err := contentCol.GetAsString(i); err == nil {
					content = contentStr
				}
			}

			metadata := make(map[string]interface{})
			if metaCol := searchResult.Fields.GetColumn("metadata"); metaCol != nil {
				if metaStr, err := metaCol.GetAsString(i); err == nil && metaStr != "" {
					_ = json.Unmarshal([]byte(metaStr), &metadata)
				}
			}

			// L2 distance normalized into a 0-1 relevance score
			score := 1.0
			if scores != nil && i < len(scores) {
				score = 1.0 - float64(scores[i])/2.0
				if score < 0 {
					score = 0
				}
				if score > 1 {
					score = 1
				}
			}
			if options.Threshold > 0 && score < options.Threshold {
				continue
			}

			idStr := ""
			if ids != nil {
				if idVal, err := ids.Get(i); err == nil {
					idStr = fmt.Sprintf("%v", idVal)
				}
			}

			results = append(results, SearchResult{
				Content:  content,
				Score:    score,
				Metadata: metadata,
				Source:   idStr,
			})
		}
	}
	return results, nil
}

func init() {
	RegisterVectorStoreProvider(ProviderZilliz, func(config map[string]interface{}) (VectorStore, error) {
		return NewMilvusVectorStore(config)
	})
}
