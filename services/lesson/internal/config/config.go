package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config file, relative to
// the service working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	ProviderKind    string `yaml:"providerKind"`
	ProviderAPIKey  string `yaml:"providerApiKey"`
	ProviderBaseURL string `yaml:"providerBaseURL"`
	ProviderModel   string `yaml:"providerModel"`

	TokenBudget        int     `yaml:"tokenBudget"`
	CallTimeoutSeconds int     `yaml:"callTimeoutSeconds"`
	RetryLimit         int     `yaml:"retryLimit"`
	BackoffSeconds     float64 `yaml:"backoffSeconds"`

	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	TrustedProxies     []string `yaml:"trustedProxies"`
	CORSAllowOrigin    string   `yaml:"corsAllowOrigin"`

	ArtifactsEnabled bool   `yaml:"artifactsEnabled"`
	MinioEndpoint    string `yaml:"minioEndpoint"`
	MinioAccessKey   string `yaml:"minioAccessKey"`
	MinioSecretKey   string `yaml:"minioSecretKey"`
	MinioBucket      string `yaml:"minioBucket"`
	MinioUseSSL      bool   `yaml:"minioUseSSL"`

	RabbitURL      string `yaml:"rabbitURL"`
	EventsExchange string `yaml:"eventsExchange"`

	LockTTLSeconds int `yaml:"lockTTLSeconds"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LESSON_PROVIDER_KIND"); v != "" {
		cfg.ProviderKind = v
	}
	if v := os.Getenv("LESSON_PROVIDER_API_KEY"); v != "" {
		cfg.ProviderAPIKey = v
	}
	if v := os.Getenv("LESSON_PROVIDER_BASE_URL"); v != "" {
		cfg.ProviderBaseURL = v
	}
	if v := os.Getenv("LESSON_PROVIDER_MODEL"); v != "" {
		cfg.ProviderModel = v
	}
	if v := os.Getenv("LESSON_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TokenBudget = n
		}
	}
	if v := os.Getenv("LESSON_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("RABBIT_URL"); v != "" {
		cfg.RabbitURL = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.ProviderKind == "" {
		return errors.New("config: providerKind is required (set in config.yaml)")
	}
	if cfg.ProviderKind != "openai" && cfg.ProviderKind != "ollama" {
		return fmt.Errorf("config: providerKind %q is not supported (use openai or ollama)", cfg.ProviderKind)
	}
	if cfg.ProviderKind == "openai" && cfg.ProviderAPIKey == "" {
		return errors.New("config: providerApiKey is required for the openai provider (set in config.yaml or LESSON_PROVIDER_API_KEY)")
	}
	if cfg.ProviderModel == "" {
		return errors.New("config: providerModel is required (set in config.yaml)")
	}
	if cfg.TokenBudget < 0 {
		return errors.New("config: tokenBudget must not be negative")
	}
	if cfg.RateLimitPerMinute > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when rateLimitPerMinute is set (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.ArtifactsEnabled {
		if cfg.MinioEndpoint == "" {
			return errors.New("config: minioEndpoint is required when artifactsEnabled (set in config.yaml or MINIO_ENDPOINT)")
		}
		if cfg.MinioAccessKey == "" {
			return errors.New("config: minioAccessKey is required when artifactsEnabled (set in config.yaml or MINIO_ACCESS_KEY)")
		}
		if cfg.MinioSecretKey == "" {
			return errors.New("config: minioSecretKey is required when artifactsEnabled (set in config.yaml or MINIO_SECRET_KEY)")
		}
		if cfg.MinioBucket == "" {
			return errors.New("config: minioBucket is required when artifactsEnabled (set in config.yaml or MINIO_BUCKET)")
		}
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
