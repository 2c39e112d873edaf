package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research engine.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig contains oracle (language model) provider settings.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ResearchConfig bounds a single research run.
type ResearchConfig struct {
	MaxToolIterations          int           `mapstructure:"max_tool_iterations"`
	MaxStructuredOutputRetries int           `mapstructure:"max_structured_output_retries"`
	ChunkSize                  int           `mapstructure:"chunk_size"`  // words per chunk
	MaxChunks                  int           `mapstructure:"max_chunks"`  // per merge invocation
	ChunkRetries               int           `mapstructure:"chunk_retries"`
	SimilarityThreshold        float64       `mapstructure:"similarity_threshold"`
	URLsPerQuery               int           `mapstructure:"urls_per_query"`
	ResultsPerSearch           int           `mapstructure:"results_per_search"`
	DomainTimeout              time.Duration `mapstructure:"domain_timeout"`
	RunDeadline                time.Duration `mapstructure:"run_deadline"`
}

// SearchConfig contains web search provider settings.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // brave, serper, searxng, duckduckgo; empty -> auto-detect
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	SearxngURL   string        `mapstructure:"searxng_url"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// FetchConfig contains content extraction settings.
type FetchConfig struct {
	Type     string        `mapstructure:"type"` // chromedp or static
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && (t.MetricsPort <= 0 || t.MetricsPort > 65535) {
		return fmt.Errorf("telemetry.metrics_port out of range: %d", t.MetricsPort)
	}
	return nil
}

// StorageConfig contains optional run-archive settings.
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings for the run archive.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis archive is configured at all.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// setDefaults registers every config key. Keys without a meaningful default
// still get an empty one so AutomaticEnv picks up their SCOUT_* overrides.
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("research.max_tool_iterations", 12)
	viper.SetDefault("research.max_structured_output_retries", 3)
	viper.SetDefault("research.chunk_size", 800)
	viper.SetDefault("research.max_chunks", 20)
	viper.SetDefault("research.chunk_retries", 2)
	viper.SetDefault("research.similarity_threshold", 0.55)
	viper.SetDefault("research.urls_per_query", 2)
	viper.SetDefault("research.results_per_search", 6)
	viper.SetDefault("research.domain_timeout", "90s")
	viper.SetDefault("research.run_deadline", "20m")
	viper.SetDefault("search.provider", "")
	viper.SetDefault("search.brave_api_key", "")
	viper.SetDefault("search.serper_api_key", "")
	viper.SetDefault("search.searxng_url", "")
	viper.SetDefault("search.max_results", 6)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("fetch.type", "static")
	viper.SetDefault("fetch.timeout", "15s")
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.metrics_port", 9323)
	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", "")
	viper.SetDefault("storage.redis.password", "")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.ttl", "168h")
	viper.SetDefault("storage.redis.timeout", "5s")
}

// LoadConfig loads config from file, falling back to defaults plus SCOUT_*
// environment variables when no file is found.
func LoadConfig(path string) (*Config, error) {
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
