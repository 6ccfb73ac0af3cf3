package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	DBPath      string           `json:"db_path"`
	DataDir     string           `json:"data_dir"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	Chunking    ChunkingConfig   `json:"chunking"`
	Memory      MemoryConfig     `json:"memory"`
	Cache       CacheConfig      `json:"cache"`
	EmbedCache  EmbedCacheConfig `json:"embed_cache"`
	Rerank      RerankConfig     `json:"rerank"`
	Upload      UploadConfig     `json:"upload"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	Jobs        JobsConfig       `json:"jobs"`
}

type FileStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	ChatModel      string      `json:"chat_model"`
	JSONModel      string      `json:"json_model"`
	EmbedModel     string      `json:"embed_model"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`

	// Fallback, optional. Same shape as the primary block.
	FallbackProvider string      `json:"fallback_provider"`
	FallbackData     interface{} `json:"fallback_data"`
}

type RetrievalConfig struct {
	K           int     `json:"k"`
	FetchK      int     `json:"fetch_k"`
	BM25Weight  float64 `json:"bm25_weight"`
	DenseWeight float64 `json:"dense_weight"`
	LambdaMult  float64 `json:"lambda_mult"`
	HydeEnabled bool    `json:"hyde_enabled"`
}

type ChunkingConfig struct {
	MaxChars         int `json:"max_chars"`
	OverlapSentences int `json:"overlap_sentences"`
	MinChars         int `json:"min_chars"`
}

type MemoryConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type CacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	KeepDays      int  `json:"keep_days"`
}

type RerankConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	TopN     int    `json:"top_n"`
}

type UploadConfig struct {
	MaxUploadMB    int      `json:"max_upload_mb"`
	SupportedTypes []string `json:"supported_types"`
}

type RateLimitConfig struct {
	AskWindowSeconds int `json:"ask_window_seconds"`
}

type JobsConfig struct {
	GraphCheckpointSpec string `json:"graph_checkpoint_spec"`
	EmbedCacheCleanSpec string `json:"embed_cache_clean_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 168
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 6
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 20
	}
	if cfg.Retrieval.BM25Weight == 0 {
		cfg.Retrieval.BM25Weight = 0.35
	}
	if cfg.Retrieval.DenseWeight == 0 {
		cfg.Retrieval.DenseWeight = 0.65
	}
	if cfg.Retrieval.LambdaMult == 0 {
		cfg.Retrieval.LambdaMult = 0.7
	}
	if cfg.Chunking.MaxChars == 0 {
		cfg.Chunking.MaxChars = 1200
	}
	if cfg.Chunking.OverlapSentences == 0 {
		cfg.Chunking.OverlapSentences = 2
	}
	if cfg.Chunking.MinChars == 0 {
		cfg.Chunking.MinChars = 50
	}
	if cfg.Memory.ConfidenceThreshold == 0 {
		cfg.Memory.ConfidenceThreshold = 0.80
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = 4096
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 3600
	}
	if cfg.EmbedCache.LRUSize == 0 {
		cfg.EmbedCache.LRUSize = 10000
	}
	if cfg.EmbedCache.LRUTTLSeconds == 0 {
		cfg.EmbedCache.LRUTTLSeconds = 7200
	}
	if cfg.EmbedCache.KeepDays == 0 {
		cfg.EmbedCache.KeepDays = 30
	}
	if cfg.Rerank.TopN == 0 {
		cfg.Rerank.TopN = 4
	}
	if cfg.Upload.MaxUploadMB == 0 {
		cfg.Upload.MaxUploadMB = 10
	}
	if len(cfg.Upload.SupportedTypes) == 0 {
		cfg.Upload.SupportedTypes = []string{".pdf", ".txt", ".md", ".html", ".htm"}
	}
	if cfg.Jobs.GraphCheckpointSpec == "" {
		cfg.Jobs.GraphCheckpointSpec = "*/10 * * * *"
	}
	if cfg.Jobs.EmbedCacheCleanSpec == "" {
		cfg.Jobs.EmbedCacheCleanSpec = "0 4 * * *"
	}
}
