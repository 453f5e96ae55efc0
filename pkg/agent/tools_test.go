package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/knowledge"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

type fakeRoom struct {
	mu           sync.Mutex
	metadata     string
	participant  *room.Participant
	disconnected bool
	published    map[string][]map[string]interface{}
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{published: make(map[string][]map[string]interface{})}
}

func (r *fakeRoom) Name() string     { return "test-room" }
func (r *fakeRoom) Metadata() string { return r.metadata }

func (r *fakeRoom) PublishData(ctx context.Context, topic string, payload []byte) error {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[topic] = append(r.published[topic], data)
	return nil
}

func (r *fakeRoom) PublishAudio(ctx context.Context, frame []byte) error { return nil }
func (r *fakeRoom) WaitForParticipant(ctx context.Context) (*room.Participant, error) {
	if r.participant != nil {
		return r.participant, nil
	}
	return &room.Participant{Identity: "caller"}, nil
}
func (r *fakeRoom) OnData(handler func(msg room.IncomingData)) {}
func (r *fakeRoom) OnAudio(handler func(frame []byte))         {}
func (r *fakeRoom) OnDisconnect(handler func())                {}
func (r *fakeRoom) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = true
	return nil
}

func (r *fakeRoom) topicMessages(topic string) []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published[topic]
}

type fakeSearcher struct {
	answer  string
	sources []string
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, []string, error) {
	return f.answer, f.sources, f.err
}

type fakeVectorStore struct {
	results []knowledge.SearchResult
	err     error
}

func (f *fakeVectorStore) Provider() string { return "fake" }
func (f *fakeVectorStore) Search(ctx context.Context, indexName string, options knowledge.SearchOptions) ([]knowledge.SearchResult, error) {
	return f.results, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func setupToolsTest(t *testing.T) (*ToolDeps, *fakeRoom, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CustomerRealtimeInformation{}))

	r := newFakeRoom()
	deps := &ToolDeps{
		DB: db,
		Runtime: &RuntimeContext{
			Room:           r,
			Namespace:      "tenant-7",
			IndexName:      "kb-index",
			CustomerID:     7,
			ChatBotID:      3,
			ConversationID: "3",
			UserSessionID:  "0",
		},
	}
	return deps, r, db
}

func TestSearchWeb_PublishesSources(t *testing.T) {
	deps, r, _ := setupToolsTest(t)
	deps.Searcher = &fakeSearcher{
		answer:  "Go 1.24 is the latest release.",
		sources: []string{"https://go.dev/blog", "https://go.dev/doc"},
	}

	result := searchWeb(context.Background(), deps, map[string]interface{}{"query": "latest go version"})
	assert.Contains(t, result, "Go 1.24 is the latest release.")

	sources := r.topicMessages(room.TopicWebSearchSources)
	require.Len(t, sources, 1)
	assert.ElementsMatch(t, []interface{}{"https://go.dev/blog", "https://go.dev/doc"},
		sources[0]["sources"])
	assert.NotEmpty(t, r.topicMessages(room.TopicMessage))
}

func TestSearchWeb_RecoversQueryFromHistory(t *testing.T) {
	deps, _, _ := setupToolsTest(t)
	searcher := &fakeSearcher{answer: "recovered"}
	deps.Searcher = searcher
	deps.LastUserMessage = func() string { return "what is the weather" }

	result := searchWeb(context.Background(), deps, map[string]interface{}{})
	assert.Contains(t, result, "recovered")
}

func TestSearchWeb_NoQuery(t *testing.T) {
	deps, _, _ := setupToolsTest(t)
	deps.Searcher = &fakeSearcher{}

	result := searchWeb(context.Background(), deps, map[string]interface{}{})
	assert.Equal(t, "Please specify what to search for.", result)
}

func TestSearchWeb_ErrorBecomesString(t *testing.T) {
	deps, _, _ := setupToolsTest(t)
	deps.Searcher = &fakeSearcher{err: errors.New("upstream timeout")}

	result := searchWeb(context.Background(), deps, map[string]interface{}{"query": "anything"})
	assert.Contains(t, result, "upstream timeout")
}

func TestTavilySearcher_DeduplicatesAndCapsSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/search", req.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "advanced", body["search_depth"])
		assert.Equal(t, true, body["include_answer"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"answer": "answer text",
			"results": []map[string]string{
				{"url": "https://a.example.com"},
				{"url": "https://a.example.com"},
				{"url": "https://b.example.com"},
				{"url": "https://c.example.com"},
				{"url": "https://d.example.com"},
				{"url": "https://e.example.com"},
				{"url": "https://f.example.com"},
			},
		})
	}))
	defer server.Close()

	searcher := NewTavilySearcher("tv-key", server.URL)
	answer, sources, err := searcher.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "answer text", answer)
	assert.Len(t, sources, 5)
	assert.Equal(t, "https://a.example.com", sources[0])
}

func TestSearchKnowledgeBase_ReturnsTopMatch(t *testing.T) {
	deps, r, _ := setupToolsTest(t)
	deps.Retriever = knowledge.NewRetriever(&fakeVectorStore{
		results: []knowledge.SearchResult{
			{Content: "Our office opens at 9am.", Score: 0.92, Metadata: map[string]interface{}{"page": float64(4)}},
		},
	}, fakeEmbedder{})

	result := searchKnowledgeBase(context.Background(), deps, map[string]interface{}{"query": "opening hours"})
	assert.Contains(t, result, "Our office opens at 9am.")

	pages := r.topicMessages(room.TopicPresentationPageNumber)
	require.Len(t, pages, 1)
	assert.EqualValues(t, 4, pages[0]["pageNumber"])
}

func TestSearchKnowledgeBase_Unconfigured(t *testing.T) {
	deps, _, _ := setupToolsTest(t)
	deps.Runtime.Namespace = ""

	result := searchKnowledgeBase(context.Background(), deps, map[string]interface{}{"query": "anything"})
	assert.Contains(t, result, "Knowledge base is not configured yet")
}

func TestSearchKnowledgeBase_NoResults(t *testing.T) {
	deps, _, _ := setupToolsTest(t)
	deps.Retriever = knowledge.NewRetriever(&fakeVectorStore{}, fakeEmbedder{})

	result := searchKnowledgeBase(context.Background(), deps, map[string]interface{}{"query": "unknown topic"})
	assert.Contains(t, result, "Falling back to general knowledge")
}

func TestStoreLongTermMemory(t *testing.T) {
	deps, _, db := setupToolsTest(t)

	result := storeLongTermMemory(context.Background(), deps, map[string]interface{}{
		"key": "favorite_color", "value": "blue",
	})
	assert.Equal(t, "Stored successfully in memory", result)

	info, err := models.GetRealtimeInformation(db, 7)
	require.NoError(t, err)
	assert.Equal(t, "blue", info["favorite_color"])

	result = storeLongTermMemory(context.Background(), deps, map[string]interface{}{"key": "only-key"})
	assert.Equal(t, "Both key and value are required to store information.", result)
}
