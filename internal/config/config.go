package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the OpenScribe server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Security SecurityConfig `yaml:"security"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	Env                string `yaml:"env"`
	LogLevel           string `yaml:"log_level"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrationsDir   string        `yaml:"migrations_dir"`
}

// RedisConfig is optional; an empty URL selects the in-process cache.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type AIConfig struct {
	RequestTimeout  time.Duration   `yaml:"request_timeout"`
	MaxRetries      int             `yaml:"max_retries"`
	LocalMaxRetries int             `yaml:"local_max_retries"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
	Ollama          OllamaConfig    `yaml:"ollama"`
	VLLM            VLLMConfig      `yaml:"vllm"`
}

type OpenAIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

type AnthropicConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIVersion string `yaml:"api_version"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type VLLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type JobsConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
	MinPosts  int           `yaml:"min_posts"`
}

// PromptsConfig points at a template directory; empty uses the embedded templates.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

type SecurityConfig struct {
	EncryptionMasterKey string `yaml:"encryption_master_key"`
}

// MasterKey decodes the hex encryption key.
func (s SecurityConfig) MasterKey() ([]byte, error) {
	return hex.DecodeString(s.EncryptionMasterKey)
}

var validEnvs = map[string]bool{
	"development": true,
	"test":        true,
	"production":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the configuration used when neither a config file nor the environment
// sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Env:                "development",
			LogLevel:           "info",
			RateLimitPerMinute: 60,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			MigrationsDir:   "migrations",
		},
		AI: AIConfig{
			RequestTimeout:  60 * time.Second,
			MaxRetries:      3,
			LocalMaxRetries: 2,
			OpenAI: OpenAIConfig{
				BaseURL:        "https://api.openai.com/v1",
				Model:          "gpt-4o",
				EmbeddingModel: "text-embedding-3-small",
			},
			Anthropic: AnthropicConfig{
				BaseURL:    "https://api.anthropic.com/v1",
				Model:      "claude-sonnet-4-20250514",
				APIVersion: "2023-06-01",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "llama3",
			},
			VLLM: VLLMConfig{
				BaseURL: "http://localhost:8000/v1",
			},
		},
		Jobs: JobsConfig{
			Workers:   4,
			QueueSize: 64,
			Timeout:   10 * time.Minute,
			MinPosts:  3,
		},
	}
}

// Load reads configuration and returns a validated Config. Sources are applied in order:
// defaults, .env files, the YAML file named by OPENSCRIBE_CONFIG, environment variables.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	// Missing .env files are normal outside local development.
	_ = godotenv.Load(".env", ".env.local")

	cfg := Defaults()
	if path := os.Getenv("OPENSCRIBE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q not found", path)
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("OPENSCRIBE_PORT", c.Server.Port)
	c.Server.Env = envString("OPENSCRIBE_ENV", c.Server.Env)
	c.Server.LogLevel = strings.ToLower(envString("LOG_LEVEL", c.Server.LogLevel))
	c.Server.RateLimitPerMinute = envInt("RATE_LIMIT_PER_MINUTE", c.Server.RateLimitPerMinute)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = envDuration("DATABASE_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.MigrationsDir = envString("MIGRATIONS_DIR", c.Database.MigrationsDir)

	c.Redis.URL = envString("REDIS_URL", c.Redis.URL)

	c.AI.RequestTimeout = envDuration("AI_REQUEST_TIMEOUT", c.AI.RequestTimeout)
	c.AI.MaxRetries = envInt("AI_MAX_RETRIES", c.AI.MaxRetries)
	c.AI.LocalMaxRetries = envInt("AI_LOCAL_MAX_RETRIES", c.AI.LocalMaxRetries)
	c.AI.OpenAI.BaseURL = envString("OPENAI_BASE_URL", c.AI.OpenAI.BaseURL)
	c.AI.OpenAI.Model = envString("OPENAI_MODEL", c.AI.OpenAI.Model)
	c.AI.OpenAI.EmbeddingModel = envString("OPENAI_EMBEDDING_MODEL", c.AI.OpenAI.EmbeddingModel)
	c.AI.Anthropic.BaseURL = envString("ANTHROPIC_BASE_URL", c.AI.Anthropic.BaseURL)
	c.AI.Anthropic.Model = envString("ANTHROPIC_MODEL", c.AI.Anthropic.Model)
	c.AI.Anthropic.APIVersion = envString("ANTHROPIC_API_VERSION", c.AI.Anthropic.APIVersion)
	c.AI.Ollama.BaseURL = envString("OLLAMA_BASE_URL", c.AI.Ollama.BaseURL)
	c.AI.Ollama.Model = envString("OLLAMA_MODEL", c.AI.Ollama.Model)
	c.AI.VLLM.BaseURL = envString("VLLM_BASE_URL", c.AI.VLLM.BaseURL)
	c.AI.VLLM.Model = envString("VLLM_MODEL", c.AI.VLLM.Model)

	c.Jobs.Workers = envInt("JOBS_WORKERS", c.Jobs.Workers)
	c.Jobs.QueueSize = envInt("JOBS_QUEUE_SIZE", c.Jobs.QueueSize)
	c.Jobs.Timeout = envDuration("JOBS_TIMEOUT", c.Jobs.Timeout)
	c.Jobs.MinPosts = envInt("JOBS_MIN_POSTS", c.Jobs.MinPosts)

	c.Prompts.Dir = envString("PROMPTS_DIR", c.Prompts.Dir)

	c.Security.EncryptionMasterKey = envString("ENCRYPTION_MASTER_KEY", c.Security.EncryptionMasterKey)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("OPENSCRIBE_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !validEnvs[c.Server.Env] {
		return fmt.Errorf("OPENSCRIBE_ENV must be one of development, test, production; got %q", c.Server.Env)
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	for key, u := range map[string]string{
		"OPENAI_BASE_URL":    c.AI.OpenAI.BaseURL,
		"ANTHROPIC_BASE_URL": c.AI.Anthropic.BaseURL,
		"OLLAMA_BASE_URL":    c.AI.Ollama.BaseURL,
		"VLLM_BASE_URL":      c.AI.VLLM.BaseURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", key, u)
		}
	}
	if c.AI.MaxRetries < 1 {
		return fmt.Errorf("AI_MAX_RETRIES must be at least 1, got %d", c.AI.MaxRetries)
	}
	if c.AI.LocalMaxRetries < 1 {
		return fmt.Errorf("AI_LOCAL_MAX_RETRIES must be at least 1, got %d", c.AI.LocalMaxRetries)
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("JOBS_WORKERS must be at least 1, got %d", c.Jobs.Workers)
	}
	if c.Jobs.QueueSize < 1 {
		return fmt.Errorf("JOBS_QUEUE_SIZE must be at least 1, got %d", c.Jobs.QueueSize)
	}
	if c.Jobs.Timeout <= 0 {
		return fmt.Errorf("JOBS_TIMEOUT must be positive, got %s", c.Jobs.Timeout)
	}
	if c.Jobs.MinPosts < 1 {
		return fmt.Errorf("JOBS_MIN_POSTS must be at least 1, got %d", c.Jobs.MinPosts)
	}

	if c.Security.EncryptionMasterKey == "" {
		return fmt.Errorf("ENCRYPTION_MASTER_KEY is required")
	}
	key, err := c.Security.MasterKey()
	if err != nil || len(key) != 32 {
		return fmt.Errorf("ENCRYPTION_MASTER_KEY must be 64 hex characters (32 bytes)")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
