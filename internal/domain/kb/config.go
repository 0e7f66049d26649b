package kb

// Config 知识库模块配置
type Config struct {
	// 存储位置
	DataDir  string `json:"data_dir"`  // 每个 kb_id 一个文档子目录
	IndexDir string `json:"index_dir"` // 每个 kb_id 一个索引快照文件

	// Chunker 配置
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`

	// 检索配置
	DefaultTopK int `json:"default_top_k"`

	// Embedding
	EmbeddingBaseURL            string  `json:"embedding_base_url"`
	EmbeddingAPIKey             string  `json:"-"`
	EmbeddingModel              string  `json:"embedding_model"`
	EmbeddingDims               int     `json:"embedding_dims"`
	EmbeddingBatchSize          int     `json:"embedding_batch_size"`
	EmbeddingHTTPTimeoutSeconds int     `json:"embedding_http_timeout_seconds"`
	CostPerToken                float64 `json:"cost_per_token"`

	// LLM 调用
	LLMTimeoutSeconds int `json:"llm_timeout_seconds"` // 单次补全请求上限

	// 远程调用重试
	RetryMaxAttempts int `json:"retry_max_attempts"`

	// 缓存配置
	CacheTTL    int `json:"cache_ttl"`     // 检索缓存 TTL（秒），0=禁用
	MaxFileSize int `json:"max_file_size"` // 上传文件大小上限（MB）
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		DataDir:                     "./data",
		IndexDir:                    "./indexes",
		ChunkSize:                   1000,
		ChunkOverlap:                100,
		DefaultTopK:                 3,
		EmbeddingBaseURL:            "https://api.openai.com/v1",
		EmbeddingModel:              "text-embedding-3-small",
		EmbeddingDims:               1536,
		EmbeddingBatchSize:          64,
		EmbeddingHTTPTimeoutSeconds: 60,
		CostPerToken:                0.0001,
		LLMTimeoutSeconds:           120,
		RetryMaxAttempts:            3,
		CacheTTL:                    300, // 5分钟
		MaxFileSize:                 50,  // 50MB
	}
}
