package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DB, p.SSLMode)
}

// ProviderConfig selects a model backend. Provider "ollama" talks to the
// Ollama HTTP API directly; "openai" goes through langchaingo against any
// OpenAI-compatible endpoint.
type ProviderConfig struct {
	Provider  string `mapstructure:"provider" validate:"oneof=ollama openai"`
	URL       string `mapstructure:"url" validate:"required"`
	Model     string `mapstructure:"model" validate:"required"`
	APIKey    string `mapstructure:"api_key"`
	Dimension int    `mapstructure:"dimension"`
}

type ChunkConfig struct {
	Size int `mapstructure:"size" validate:"min=1"`
	// Overlap is reserved. Chunk boundaries are hard paragraph cuts and the
	// value is only reported.
	Overlap int `mapstructure:"overlap" validate:"min=0"`
}

type LoaderConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type Config struct {
	ServerAddr   string         `mapstructure:"server_addr" validate:"required"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	Embedding    ProviderConfig `mapstructure:"embedding"`
	LLM          ProviderConfig `mapstructure:"llm"`
	ModelTimeout time.Duration  `mapstructure:"model_timeout"`
	Chunk        ChunkConfig    `mapstructure:"chunk"`
	Retrieval    struct {
		TopK int `mapstructure:"top_k" validate:"min=1"`
	} `mapstructure:"retrieval"`
	ImagesDir string       `mapstructure:"images_dir" validate:"required"`
	Loader    LoaderConfig `mapstructure:"loader"`
	Log       LogConfig    `mapstructure:"log"`
}

var defaults = map[string]any{
	"server_addr":          ":3000",
	"postgres.host":        "localhost",
	"postgres.port":        5432,
	"postgres.user":        "postgres",
	"postgres.password":    "",
	"postgres.db":          "coursebot",
	"postgres.sslmode":     "disable",
	"embedding.provider":   "ollama",
	"embedding.url":        "http://localhost:11434/api/embeddings",
	"embedding.model":      "nomic-embed-text",
	"embedding.api_key":    "",
	"embedding.dimension":  768,
	"llm.provider":         "ollama",
	"llm.url":              "http://localhost:11434/api/generate",
	"llm.model":            "llama3.1",
	"llm.api_key":          "",
	"llm.dimension":        0,
	"model_timeout":        "60s",
	"chunk.size":           500,
	"chunk.overlap":        50,
	"retrieval.top_k":      5,
	"images_dir":           "./uploads/images",
	"loader.poll_interval": "10s",
	"loader.max_attempts":  3,
	"log.level":            "info",
	"log.format":           "console",
}

// Load reads an optional .env file and then resolves every key from the
// environment, e.g. postgres.host <- POSTGRES_HOST.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromViper(viper.New())
}

func FromViper(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("invalid config: embedding.dimension must be positive")
	}
	return nil
}
