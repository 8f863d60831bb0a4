package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Objects   ObjectsConfig   `mapstructure:"objects"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type EmbeddingConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	BatchSize   int    `mapstructure:"batch_size"`
	Concurrency int    `mapstructure:"concurrency"`
}

type VectorConfig struct {
	// Backend selects the storage strategy: "qdrant" or "memory".
	Backend   string `mapstructure:"backend"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Dimension int    `mapstructure:"dimension"`
	Distance  string `mapstructure:"distance"`
}

type QueueConfig struct {
	// Path is the badger directory shared by queue and task ledger.
	Path string `mapstructure:"path"`
}

type ObjectsConfig struct {
	Root string `mapstructure:"root"`
}

type WorkerConfig struct {
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	PopWait      time.Duration `mapstructure:"pop_wait"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	Overlap      int           `mapstructure:"overlap"`
	MinChunkSize int           `mapstructure:"min_chunk_size"`
	HealthAddr   string        `mapstructure:"health_addr"`
}

type RetrievalConfig struct {
	MaxResults      int     `mapstructure:"max_results"`
	MaxContextChars int     `mapstructure:"max_context_chars"`
	ScoreThreshold  float64 `mapstructure:"score_threshold"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Vector.Backend == "qdrant" && c.Vector.Host == "" {
		warnings = append(warnings, "vector backend 'qdrant' is configured but host is empty")
	}

	if c.Vector.Dimension < 0 {
		warnings = append(warnings, fmt.Sprintf("vector dimension %d is negative", c.Vector.Dimension))
	}

	if c.Worker.Overlap >= c.Worker.ChunkSize && c.Worker.ChunkSize > 0 {
		warnings = append(warnings, fmt.Sprintf("worker overlap %d is not smaller than chunk_size %d", c.Worker.Overlap, c.Worker.ChunkSize))
	}

	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		warnings = append(warnings, fmt.Sprintf("retrieval score_threshold %.2f is outside [0.0, 1.0]", c.Retrieval.ScoreThreshold))
	}

	if c.Worker.TaskTimeout < 0 {
		warnings = append(warnings, fmt.Sprintf("worker task_timeout %s is negative", c.Worker.TaskTimeout))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RAGLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.dimension", 1536)
	v.SetDefault("vector.distance", "cosine")
	v.SetDefault("worker.task_timeout", 15*time.Minute)
	v.SetDefault("worker.pop_wait", 5*time.Second)
	v.SetDefault("worker.chunk_size", 1000)
	v.SetDefault("worker.overlap", 200)
	v.SetDefault("worker.min_chunk_size", 100)
	v.SetDefault("retrieval.max_results", 5)
	v.SetDefault("retrieval.max_context_chars", 4000)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.concurrency", 4)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("queue.path", "data/badger")
	v.SetDefault("objects.root", "data/objects")
	v.SetDefault("worker.health_addr", ":8081")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
