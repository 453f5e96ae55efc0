package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/voicebridge-ai/voicebridge/pkg/cache"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// Config holds the process-wide configuration for the call agent.
type Config struct {
	Mode string `env:"MODE"`
	Addr string `env:"ADDR"`

	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`

	Log logger.LogConfig

	// Media room / job dispatcher
	RoomURL       string `env:"ROOM_URL"`
	RoomAPIKey    string `env:"ROOM_API_KEY"`
	RoomAPISecret string `env:"ROOM_API_SECRET"`
	AgentName     string `env:"AGENT_NAME"`

	// SIP
	SIPOutboundTrunkID string `env:"SIP_OUTBOUND_TRUNK_ID"`

	// Model providers
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	GroqAPIKey    string `env:"GROQ_API_KEY"`
	GroqBaseURL   string `env:"GROQ_BASE_URL"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	// TTS / STT providers
	CartesiaAPIKey  string `env:"CARTESIA_API_KEY"`
	CartesiaBaseURL string `env:"CARTESIA_BASE_URL"`
	DeepgramAPIKey  string `env:"DEEPGRAM_API_KEY"`
	STTProvider     string `env:"STT_PROVIDER"`

	// Web search
	TavilyAPIKey  string `env:"TAVILY_API_KEY"`
	TavilyBaseURL string `env:"TAVILY_BASE_URL"`

	// Knowledge base
	KnowledgeBaseProvider string `env:"KNOWLEDGE_BASE_PROVIDER"`
	EmbeddingModel        string `env:"EMBEDDING_MODEL"`

	// Pinecone
	PineconeApiKey  string `env:"PINECONE_API_KEY"`
	PineconeBaseURL string `env:"PINECONE_BASE_URL"`

	// Milvus
	MilvusAddress   string `env:"MILVUS_ADDRESS"`
	MilvusUsername  string `env:"MILVUS_USERNAME"`
	MilvusPassword  string `env:"MILVUS_PASSWORD"`
	MilvusDimension int    `env:"MILVUS_DIMENSION"`

	// Credits
	TokensPerCredit     int `env:"TOKENS_PER_CREDIT"`
	MinimumCredit       int `env:"MINIMUM_CREDIT"`
	TextChatCreditFloor int `env:"TEXT_CHAT_CREDIT_FLOOR"`

	// Orchestrator capabilities
	SupportsTextChat    bool `env:"SUPPORTS_TEXT_CHAT"`
	SupportsLeadCapture bool `env:"SUPPORTS_LEAD_CAPTURE"`

	Cache cache.Config
}

var GlobalConfig *Config

// Load reads the optional .env file for the current APP_ENV and fills
// GlobalConfig. Every value has a default so the agent can start with no
// .env at all.
func Load() error {
	env := os.Getenv("APP_ENV")
	if err := loadEnvFile(env); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	GlobalConfig = &Config{
		Mode: getStringOrDefault("MODE", "development"),
		Addr: getStringOrDefault("ADDR", ":7080"),

		DBDriver: getStringOrDefault("DB_DRIVER", "mysql"),
		DSN:      getStringOrDefault("DSN", "voicebridge:voicebridge@tcp(localhost:3306)/voicebridge?parseTime=true"),

		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/agent.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},

		RoomURL:       getStringOrDefault("ROOM_URL", "ws://localhost:7880"),
		RoomAPIKey:    getStringOrDefault("ROOM_API_KEY", ""),
		RoomAPISecret: getStringOrDefault("ROOM_API_SECRET", ""),
		AgentName:     getStringOrDefault("AGENT_NAME", "telephone-enhanced-agent"),

		SIPOutboundTrunkID: getStringOrDefault("SIP_OUTBOUND_TRUNK_ID", ""),

		OpenAIAPIKey:  getStringOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getStringOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GroqAPIKey:    getStringOrDefault("GROQ_API_KEY", ""),
		GroqBaseURL:   getStringOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GeminiAPIKey:  getStringOrDefault("GEMINI_API_KEY", ""),
		GeminiBaseURL: getStringOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),

		CartesiaAPIKey:  getStringOrDefault("CARTESIA_API_KEY", ""),
		CartesiaBaseURL: getStringOrDefault("CARTESIA_BASE_URL", "https://api.cartesia.ai"),
		DeepgramAPIKey:  getStringOrDefault("DEEPGRAM_API_KEY", ""),
		STTProvider:     getStringOrDefault("STT_PROVIDER", "whisper"),

		TavilyAPIKey:  getStringOrDefault("TAVILY_API_KEY", ""),
		TavilyBaseURL: getStringOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),

		KnowledgeBaseProvider: getStringOrDefault("KNOWLEDGE_BASE_PROVIDER", "pinecone"),
		EmbeddingModel:        getStringOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),

		PineconeApiKey:  getStringOrDefault("PINECONE_API_KEY", ""),
		PineconeBaseURL: getStringOrDefault("PINECONE_BASE_URL", "https://api.pinecone.io"),

		MilvusAddress:   getStringOrDefault("MILVUS_ADDRESS", "localhost:19530"),
		MilvusUsername:  getStringOrDefault("MILVUS_USERNAME", ""),
		MilvusPassword:  getStringOrDefault("MILVUS_PASSWORD", ""),
		MilvusDimension: getIntOrDefault("MILVUS_DIMENSION", 1536),

		TokensPerCredit:     getIntOrDefault("TOKENS_PER_CREDIT", 70),
		MinimumCredit:       getIntOrDefault("MINIMUM_CREDIT", 20),
		TextChatCreditFloor: getIntOrDefault("TEXT_CHAT_CREDIT_FLOOR", 10),

		SupportsTextChat:    getBoolOrDefault("SUPPORTS_TEXT_CHAT", true),
		SupportsLeadCapture: getBoolOrDefault("SUPPORTS_LEAD_CAPTURE", false),

		Cache: loadCacheConfig(),
	}
	return nil
}

func loadEnvFile(env string) error {
	filename := ".env"
	if env != "" {
		candidate := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(candidate); err == nil {
			filename = candidate
		}
	}
	return godotenv.Load(filename)
}

func getStringOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func loadCacheConfig() cache.Config {
	return cache.Config{
		Type: getStringOrDefault("CACHE_TYPE", "local"),
		Redis: cache.RedisConfig{
			Addr:         getStringOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     getStringOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			PoolSize:     getIntOrDefault("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntOrDefault("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getDurationOrDefault("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationOrDefault("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationOrDefault("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Local: cache.LocalConfig{
			MaxSize:           getIntOrDefault("LOCAL_CACHE_MAX_SIZE", 1000),
			DefaultExpiration: getDurationOrDefault("LOCAL_CACHE_DEFAULT_EXPIRATION", 5*time.Minute),
			CleanupInterval:   getDurationOrDefault("LOCAL_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
	}
}
