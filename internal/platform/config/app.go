package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pdfbot/internal/domain/kb"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string          `json:"log_level"`
	LogFormat string          `json:"log_format"`
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	Anthropic AnthropicConfig `json:"anthropic"`
	OpenAI    OpenAIConfig    `json:"openai"`
	KB        kb.Config       `json:"kb"`
}

type ServerConfig struct {
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// DatabaseConfig 元数据存储（可选，URL 为空则不启用）
type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// RedisConfig 检索缓存（可选，URL 为空则不启用）
type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

// AnthropicConfig claude 模型接入
type AnthropicConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// OpenAIConfig llama 模型经 OpenAI 兼容端点接入，embedding 也走这里
type OpenAIConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	LlamaModel string `json:"llama_model"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	kbCfg := kb.DefaultConfig()
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			ReadTimeoutSeconds:     30,
			WriteTimeoutSeconds:    600,
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		Anthropic: AnthropicConfig{
			BaseURL: "https://api.anthropic.com/v1",
			Model:   "claude-3-haiku-20240307",
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			LlamaModel: "llama3:70b",
		},
		KB: *kbCfg,
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyInt("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeoutSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	applyString("ANTHROPIC_API_KEY", &c.Anthropic.APIKey)
	applyString("ANTHROPIC_BASE_URL", &c.Anthropic.BaseURL)
	applyString("ANTHROPIC_MODEL", &c.Anthropic.Model)

	applyString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	applyString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	applyString("LLAMA_MODEL", &c.OpenAI.LlamaModel)

	// KB 环境变量
	applyString("KB_DATA_DIR", &c.KB.DataDir)
	applyString("KB_INDEX_DIR", &c.KB.IndexDir)
	applyInt("KB_CHUNK_SIZE", &c.KB.ChunkSize)
	applyInt("KB_CHUNK_OVERLAP", &c.KB.ChunkOverlap)
	applyInt("KB_TOP_K", &c.KB.DefaultTopK)
	applyFloat64("KB_COST_PER_TOKEN", &c.KB.CostPerToken)
	applyInt("KB_MAX_FILE_SIZE", &c.KB.MaxFileSize)
	applyInt("KB_CACHE_TTL", &c.KB.CacheTTL)
	applyInt("KB_RETRY_MAX_ATTEMPTS", &c.KB.RetryMaxAttempts)
	applyInt("LLM_HTTP_TIMEOUT", &c.KB.LLMTimeoutSeconds)

	applyString("EMBEDDING_BASE_URL", &c.KB.EmbeddingBaseURL)
	applyString("EMBEDDING_API_KEY", &c.KB.EmbeddingAPIKey)
	applyString("EMBEDDING_MODEL", &c.KB.EmbeddingModel)
	applyInt("EMBEDDING_DIMS", &c.KB.EmbeddingDims)
	applyInt("EMBEDDING_BATCH_SIZE", &c.KB.EmbeddingBatchSize)
	applyInt("EMBEDDING_HTTP_TIMEOUT", &c.KB.EmbeddingHTTPTimeoutSeconds)
}

func (c *AppConfig) normalize() {
	if c.KB.EmbeddingAPIKey == "" {
		// embedding 默认复用 OpenAI key
		c.KB.EmbeddingAPIKey = c.OpenAI.APIKey
	}
	if c.KB.EmbeddingBaseURL == "" {
		c.KB.EmbeddingBaseURL = c.OpenAI.BaseURL
	}
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.KB.DataDir) == "" {
		return fmt.Errorf("KB_DATA_DIR is required")
	}
	if strings.TrimSpace(c.KB.IndexDir) == "" {
		return fmt.Errorf("KB_INDEX_DIR is required")
	}
	if c.KB.ChunkOverlap >= c.KB.ChunkSize {
		return fmt.Errorf("KB_CHUNK_OVERLAP (%d) must be smaller than KB_CHUNK_SIZE (%d)",
			c.KB.ChunkOverlap, c.KB.ChunkSize)
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}
