package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/precedent/internal/logger"
)

// Provider names accepted for the embedding and generation backends.
const (
	ProviderHash   = "hash"
	ProviderStub   = "stub"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StoreChromem = "chromem"
	StoreQdrant  = "qdrant"
)

// MinPromptBudgetChars leaves room for the fixed instruction block and at
// least a small code unit.
const MinPromptBudgetChars = 2000

// MinPromptBudgetTokens is the token form of MinPromptBudgetChars.
const MinPromptBudgetTokens = 700

// Config holds the application's configuration values.
type Config struct {
	Server      ServerConfig
	Logging     logger.Config
	Embedding   EmbeddingConfig
	LLM         LLMConfig
	VectorStore VectorStoreConfig
	Retrieval   RetrievalConfig
	Pipeline    PipelineConfig
	Timeouts    TimeoutConfig
	Retry       RetryConfig
	Logs        LogFilesConfig
}

type ServerConfig struct {
	Port string
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
	BatchSize int
}

type LLMConfig struct {
	Provider     string
	Model        string
	Temperature  float64
	MaxTokens    int
	OpenAIAPIKey string
	GeminiAPIKey string
	OllamaHost   string
}

type VectorStoreConfig struct {
	Backend        string
	Path           string
	CollectionName string
	QdrantHost     string
	QdrantPort     int
	QdrantAPIKey   string
	QdrantTLS      bool
}

type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
	PromptBudgetChars   int
	// PromptBudgetTokens, when positive, replaces PromptBudgetChars.
	PromptBudgetTokens int
	ReviewGuidePath    string
}

type PipelineConfig struct {
	MaxConcurrentReviews int
	MaxParallelChunks    int
	MaxWorkers           int
}

type TimeoutConfig struct {
	Embedding   time.Duration
	VectorStore time.Duration
	Generation  time.Duration
}

type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type LogFilesConfig struct {
	FeedbackPath string
	MetricsPath  string
}

var defaultEmbeddingModels = map[string]struct {
	model     string
	dimension int
}{
	ProviderHash:   {model: "hash-v1", dimension: 256},
	ProviderOllama: {model: "nomic-embed-text", dimension: 768},
	ProviderOpenAI: {model: "text-embedding-3-small", dimension: 1536},
	ProviderGemini: {model: "text-embedding-004", dimension: 768},
}

var defaultGeneratorModels = map[string]string{
	ProviderStub:   "stub",
	ProviderOllama: "gemma3:latest",
	ProviderOpenAI: "gpt-4-turbo-preview",
	ProviderGemini: "gemini-1.5-flash",
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("EMBEDDING_PROVIDER", ProviderOllama)
	v.SetDefault("EMBEDDING_BATCH_SIZE", 100)
	v.SetDefault("LLM_PROVIDER", ProviderOllama)
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("TEMPERATURE", 0.3)
	v.SetDefault("MAX_TOKENS", 1000)
	v.SetDefault("VECTOR_STORE", StoreChromem)
	v.SetDefault("COLLECTION_NAME", "code_reviews")
	v.SetDefault("QDRANT_HOST", "localhost")
	v.SetDefault("QDRANT_PORT", 6334)
	v.SetDefault("TOP_K_RESULTS", 5)
	v.SetDefault("SIMILARITY_THRESHOLD", 0.7)
	v.SetDefault("PROMPT_BUDGET_CHARS", 12000)
	v.SetDefault("PROMPT_BUDGET_TOKENS", 0)
	v.SetDefault("MAX_CONCURRENT_REVIEWS", 4)
	v.SetDefault("MAX_PARALLEL_CHUNKS", 4)
	v.SetDefault("MAX_WORKERS", 2)
	v.SetDefault("EMBEDDING_TIMEOUT", 30*time.Second)
	v.SetDefault("VECTOR_STORE_TIMEOUT", 10*time.Second)
	v.SetDefault("GENERATION_TIMEOUT", 60*time.Second)
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_INITIAL_INTERVAL", time.Second)
	v.SetDefault("RETRY_MAX_INTERVAL", 10*time.Second)
	v.SetDefault("FEEDBACK_LOG_PATH", "data/feedback.jsonl")
	v.SetDefault("METRICS_LOG_PATH", "data/metrics.jsonl")
}

// LoadConfig reads configuration from environment variables and an optional
// .env file into a fresh viper instance and validates the result.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read .env file: %w", err)
			}
		}
	}

	return Load(v)
}

// Load builds a validated Config from an already prepared viper instance.
// Callers bind their own flags and env prefix before calling it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	embedProvider := strings.ToLower(v.GetString("EMBEDDING_PROVIDER"))
	embedModel := v.GetString("EMBEDDING_MODEL")
	dimension := v.GetInt("EMBEDDING_DIMENSION")
	if def, ok := defaultEmbeddingModels[embedProvider]; ok {
		if embedModel == "" {
			embedModel = def.model
		}
		if dimension == 0 {
			dimension = def.dimension
		}
	}

	// Gemini keeps its own model setting so switching providers does not
	// require touching LLM_MODEL.
	llmProvider := strings.ToLower(v.GetString("LLM_PROVIDER"))
	llmModel := v.GetString("LLM_MODEL")
	if llmProvider == ProviderGemini && v.GetString("GEMINI_MODEL") != "" {
		llmModel = v.GetString("GEMINI_MODEL")
	}
	if llmModel == "" {
		llmModel = defaultGeneratorModels[llmProvider]
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
		},
		Logging: logger.Config{
			Level:    strings.ToLower(v.GetString("LOG_LEVEL")),
			Format:   v.GetString("LOG_FORMAT"),
			Output:   v.GetString("LOG_OUTPUT"),
			FilePath: v.GetString("LOG_FILE"),
		},
		Embedding: EmbeddingConfig{
			Provider:  embedProvider,
			Model:     embedModel,
			Dimension: dimension,
			BatchSize: v.GetInt("EMBEDDING_BATCH_SIZE"),
		},
		LLM: LLMConfig{
			Provider:     llmProvider,
			Model:        llmModel,
			Temperature:  v.GetFloat64("TEMPERATURE"),
			MaxTokens:    v.GetInt("MAX_TOKENS"),
			OpenAIAPIKey: v.GetString("OPENAI_API_KEY"),
			GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
			OllamaHost:   v.GetString("OLLAMA_HOST"),
		},
		VectorStore: VectorStoreConfig{
			Backend:        strings.ToLower(v.GetString("VECTOR_STORE")),
			Path:           v.GetString("VECTOR_STORE_PATH"),
			CollectionName: v.GetString("COLLECTION_NAME"),
			QdrantHost:     v.GetString("QDRANT_HOST"),
			QdrantPort:     v.GetInt("QDRANT_PORT"),
			QdrantAPIKey:   v.GetString("QDRANT_API_KEY"),
			QdrantTLS:      v.GetBool("QDRANT_TLS"),
		},
		Retrieval: RetrievalConfig{
			TopK:                v.GetInt("TOP_K_RESULTS"),
			SimilarityThreshold: v.GetFloat64("SIMILARITY_THRESHOLD"),
			PromptBudgetChars:   v.GetInt("PROMPT_BUDGET_CHARS"),
			PromptBudgetTokens:  v.GetInt("PROMPT_BUDGET_TOKENS"),
			ReviewGuidePath:     v.GetString("REVIEW_GUIDE_PATH"),
		},
		Pipeline: PipelineConfig{
			MaxConcurrentReviews: v.GetInt("MAX_CONCURRENT_REVIEWS"),
			MaxParallelChunks:    v.GetInt("MAX_PARALLEL_CHUNKS"),
			MaxWorkers:           v.GetInt("MAX_WORKERS"),
		},
		Timeouts: TimeoutConfig{
			Embedding:   v.GetDuration("EMBEDDING_TIMEOUT"),
			VectorStore: v.GetDuration("VECTOR_STORE_TIMEOUT"),
			Generation:  v.GetDuration("GENERATION_TIMEOUT"),
		},
		Retry: RetryConfig{
			MaxAttempts:     v.GetInt("RETRY_MAX_ATTEMPTS"),
			InitialInterval: v.GetDuration("RETRY_INITIAL_INTERVAL"),
			MaxInterval:     v.GetDuration("RETRY_MAX_INTERVAL"),
		},
		Logs: LogFilesConfig{
			FeedbackPath: v.GetString("FEEDBACK_LOG_PATH"),
			MetricsPath:  v.GetString("METRICS_LOG_PATH"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.VectorStore.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}

	switch {
	case c.Pipeline.MaxConcurrentReviews < 1:
		return fmt.Errorf("MAX_CONCURRENT_REVIEWS must be at least 1")
	case c.Pipeline.MaxParallelChunks < 1:
		return fmt.Errorf("MAX_PARALLEL_CHUNKS must be at least 1")
	case c.Pipeline.MaxWorkers < 1:
		return fmt.Errorf("MAX_WORKERS must be at least 1")
	case c.Timeouts.Embedding <= 0, c.Timeouts.VectorStore <= 0, c.Timeouts.Generation <= 0:
		return fmt.Errorf("timeouts must be positive")
	case c.Retry.MaxAttempts < 1:
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	case c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval:
		return fmt.Errorf("retry intervals must be positive and RETRY_MAX_INTERVAL >= RETRY_INITIAL_INTERVAL")
	case c.Logs.FeedbackPath == "" || c.Logs.MetricsPath == "":
		return fmt.Errorf("FEEDBACK_LOG_PATH and METRICS_LOG_PATH must be set")
	}
	return nil
}

func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case ProviderHash, ProviderOllama, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("EMBEDDING_MODEL must be set")
	}
	if c.Dimension < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be at least 1")
	}
	return nil
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderStub, ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set for provider %s", c.Provider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set for provider %s", c.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("LLM_MODEL must be set")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE must be within [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("MAX_TOKENS must be at least 1")
	}
	return nil
}

func (c *VectorStoreConfig) Validate() error {
	if strings.TrimSpace(c.CollectionName) == "" {
		return fmt.Errorf("COLLECTION_NAME must be set")
	}
	switch c.Backend {
	case StoreChromem:
	case StoreQdrant:
		if c.QdrantHost == "" || c.QdrantPort <= 0 {
			return fmt.Errorf("QDRANT_HOST and QDRANT_PORT must be set for the qdrant backend")
		}
	default:
		return fmt.Errorf("unsupported vector store: %q", c.Backend)
	}
	return nil
}

func (c *RetrievalConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("TOP_K_RESULTS must be at least 1")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0, 1], got %v", c.SimilarityThreshold)
	}
	if c.PromptBudgetChars < MinPromptBudgetChars {
		return fmt.Errorf("PROMPT_BUDGET_CHARS must be at least %d", MinPromptBudgetChars)
	}
	if c.PromptBudgetTokens != 0 && c.PromptBudgetTokens < MinPromptBudgetTokens {
		return fmt.Errorf("PROMPT_BUDGET_TOKENS must be 0 or at least %d", MinPromptBudgetTokens)
	}
	return nil
}
