package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Database   Database   `mapstructure:"database"`
	Redis      Redis      `mapstructure:"redis"`
	Queue      Queue      `mapstructure:"queue"`
	Gemini     Gemini     `mapstructure:"gemini"`
	Index      Index      `mapstructure:"index"`
	Scoring    Scoring    `mapstructure:"scoring"`
	Scheduler  Scheduler  `mapstructure:"scheduler"`
	Classifier Classifier `mapstructure:"classifier"`
	Analysis   Analysis   `mapstructure:"analysis"`
	Server     Server     `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// Database holds the relational store configuration
type Database struct {
	URL string `mapstructure:"url"`
}

// Redis holds the queue broker configuration
type Redis struct {
	URL string `mapstructure:"url"`
}

// Queue holds ingestion queue configuration
type Queue struct {
	Stream        string `mapstructure:"stream"`
	Group         string `mapstructure:"group"`
	Prefetch      int    `mapstructure:"prefetch"`
	MaxDeliveries int    `mapstructure:"max_deliveries"`
}

// Gemini holds LLM and embedding model configuration
type Gemini struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	EmbeddingDim   int           `mapstructure:"embedding_dim"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int32         `mapstructure:"max_tokens"`
	Temperature    float32       `mapstructure:"temperature"`
}

// Index holds ANN index configuration
type Index struct {
	Path                string  `mapstructure:"path"`
	SnapshotEvery       int     `mapstructure:"snapshot_every"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// Scoring holds hotness scoring configuration
type Scoring struct {
	HotnessThreshold float64 `mapstructure:"hotness_threshold"`
	HeuristicWeight  float64 `mapstructure:"heuristic_weight"`
	LearnedWeight    float64 `mapstructure:"learned_weight"`
	ModelPath        string  `mapstructure:"model_path"`
}

// Scheduler holds source scheduler configuration
type Scheduler struct {
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
	MaxFailures     int           `mapstructure:"max_failures"`
	SourcesFile     string        `mapstructure:"sources_file"`
}

// Classifier holds relevance classifier configuration
type Classifier struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// Analysis holds ranking and enrichment job configuration
type Analysis struct {
	DefaultTopK    int           `mapstructure:"default_top_k"`
	Concurrency    int           `mapstructure:"concurrency"`
	MaxArticles    int           `mapstructure:"max_articles"`  // Articles included per enrichment prompt
	ExcerptChars   int           `mapstructure:"excerpt_chars"` // Body excerpt length per article
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Server holds HTTP server configuration
type Server struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORS           CORS          `mapstructure:"cors"`
}

// CORS holds CORS middleware configuration
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file and environment
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsradar")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// ValidateService checks the settings every long-running service requires.
// A missing database or broker URL is a fatal misconfiguration: the caller
// should refuse to start.
func (c *Config) ValidateService() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set DATABASE_URL)")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required (set REDIS_URL)")
	}
	if c.Index.SimilarityThreshold <= 0 || c.Index.SimilarityThreshold > 1 {
		return fmt.Errorf("index.similarity_threshold must be in (0,1], got %v", c.Index.SimilarityThreshold)
	}
	if c.Scoring.HeuristicWeight+c.Scoring.LearnedWeight <= 0 {
		return fmt.Errorf("scoring blend weights must be positive")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("queue.stream", "news:ingest")
	viper.SetDefault("queue.group", "ingest-workers")
	viper.SetDefault("queue.prefetch", 10)
	viper.SetDefault("queue.max_deliveries", 3)

	viper.SetDefault("gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("gemini.embedding_dim", 384)
	viper.SetDefault("gemini.timeout", "60s")
	viper.SetDefault("gemini.max_tokens", 2000)
	viper.SetDefault("gemini.temperature", 0.5)

	viper.SetDefault("index.path", "./data/ann_index")
	viper.SetDefault("index.snapshot_every", 100)
	viper.SetDefault("index.similarity_threshold", 0.85)

	viper.SetDefault("scoring.hotness_threshold", 0.7)
	viper.SetDefault("scoring.heuristic_weight", 0.7)
	viper.SetDefault("scoring.learned_weight", 0.3)

	viper.SetDefault("scheduler.interval_minutes", 5)
	viper.SetDefault("scheduler.run_timeout", "4m")
	viper.SetDefault("scheduler.max_failures", 3)
	viper.SetDefault("scheduler.sources_file", "sources.json")

	viper.SetDefault("classifier.min_confidence", 0.5)

	viper.SetDefault("analysis.default_top_k", 5)
	viper.SetDefault("analysis.concurrency", 4)
	viper.SetDefault("analysis.max_articles", 5)
	viper.SetDefault("analysis.excerpt_chars", 1000)
	viper.SetDefault("analysis.request_timeout", "120s")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("server.request_timeout", "180s")
	viper.SetDefault("server.cors.enabled", false)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("database.url", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})

	bindEnvKeys("redis.url", []string{
		"REDIS_URL",
	})

	bindEnvKeys("gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NEWSRADAR_DEBUG",
	})
}

// bindEnvKeys binds the first defined environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}
