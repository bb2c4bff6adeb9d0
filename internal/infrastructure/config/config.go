package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	PNCP      PNCPConfig      `koanf:"pncp"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Matching  MatchingConfig  `koanf:"matching"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// PNCPConfig bounds the paginated scan of the procurement registry.
type PNCPConfig struct {
	BaseURL           string        `koanf:"base_url"`
	ItemsBaseURL      string        `koanf:"items_base_url"`
	PageSize          int           `koanf:"page_size"`
	MaxPages          int           `koanf:"max_pages"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	MaxAttempts       int           `koanf:"max_attempts"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	ModalityCode      int           `koanf:"modality_code"`
	States            []string      `koanf:"states"`
}

type EmbeddingConfig struct {
	// Backend selects the phase-1 vectorizer: openai, local, hybrid, mock.
	Backend string `koanf:"backend"`
	// Phase2Backend optionally selects a different phase-2 vectorizer.
	// Empty means reuse the phase-1 instance.
	Phase2Backend string        `koanf:"phase2_backend"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`

	OpenAI OpenAIConfig `koanf:"openai"`
	Local  LocalConfig  `koanf:"local"`
}

type OpenAIConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Model      string        `koanf:"model"`
	Dimensions int           `koanf:"dimensions"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxChars   int           `koanf:"max_chars"`
}

type LocalConfig struct {
	Dimensions int `koanf:"dimensions"`
}

type MatchingConfig struct {
	Phase1Threshold float64 `koanf:"phase1_threshold"`
	Phase2Threshold float64 `koanf:"phase2_threshold"`
}

// BrazilianStates is the full UF scan order used when no subset is configured.
var BrazilianStates = []string{
	"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO", "MA", "MT", "MS",
	"MG", "PA", "PB", "PR", "PE", "PI", "RJ", "RN", "RS", "RO", "RR", "SC",
	"SP", "SE", "TO",
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		PNCP: PNCPConfig{
			BaseURL:           "https://pncp.gov.br/api/consulta/v1/contratacoes/publicacao",
			ItemsBaseURL:      "https://pncp.gov.br/api/pncp/v1",
			PageSize:          50,
			MaxPages:          5,
			RequestTimeout:    30 * time.Second,
			MaxAttempts:       3,
			RequestsPerSecond: 2,
			ModalityCode:      6, // pregao eletronico
			States:            BrazilianStates,
		},
		Embedding: EmbeddingConfig{
			Backend:  "hybrid",
			CacheTTL: 7 * 24 * time.Hour,
			OpenAI: OpenAIConfig{
				BaseURL:    "https://api.openai.com/v1",
				Model:      "text-embedding-3-large",
				Dimensions: 3072,
				Timeout:    30 * time.Second,
				MaxChars:   8000,
			},
			Local: LocalConfig{
				Dimensions: 512,
			},
		},
		Matching: MatchingConfig{
			Phase1Threshold: 0.65,
			Phase2Threshold: 0.70,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if exists
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Config file is optional
	}

	// Override with environment variables. Double underscore separates
	// nesting levels so single underscores survive inside key names:
	// LCM_PNCP__MAX_PAGES=2 targets pncp.max_pages,
	// LCM_EMBEDDING__OPENAI__API_KEY targets embedding.openai.api_key.
	if err := k.Load(env.Provider("LCM_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "LCM_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
