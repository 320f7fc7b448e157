// Package config holds the application configuration loaded by the CLI.
// Components never read it directly; cmd/ maps each section onto the
// component's own Config struct.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Search      Search      `mapstructure:"search"`
	Generative  Generative  `mapstructure:"generative"`
	Crawler     Crawler     `mapstructure:"crawler"`
	Discovery   Discovery   `mapstructure:"discovery"`
	Processor   Processor   `mapstructure:"processor"`
	Extractor   Extractor   `mapstructure:"extractor"`
	Storage     Storage     `mapstructure:"storage"`
	Embeddings  Embeddings  `mapstructure:"embeddings"`
	VectorStore VectorStore `mapstructure:"vector_store"`
	Chunking    Chunking    `mapstructure:"chunking"`
	Rerank      Rerank      `mapstructure:"rerank"`
	LLM         LLM         `mapstructure:"llm"`
	Redis       Redis       `mapstructure:"redis"`
	Server      Server      `mapstructure:"server"`
	Query       Query       `mapstructure:"query"`
	Ingest      Ingest      `mapstructure:"ingest"`
	MCP         MCP         `mapstructure:"mcp"`
}

// Search holds the structured search API (Google Programmable Search) configuration.
type Search struct {
	APIKey     string        `mapstructure:"api_key"`
	CX         string        `mapstructure:"cx"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// Generative holds the search-with-citations API configuration.
type Generative struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Crawler holds the seed-page crawl configuration.
type Crawler struct {
	Delay     time.Duration       `mapstructure:"delay"`
	MaxDepth  int                 `mapstructure:"max_depth"`
	Timeout   time.Duration       `mapstructure:"timeout"`
	UserAgent string              `mapstructure:"user_agent"`
	Seeds     map[string][]string `mapstructure:"seeds"` // province code -> listing pages
}

// Discovery holds document discovery configuration.
type Discovery struct {
	MaxVariants       int                 `mapstructure:"max_variants"`
	ResultsPerQuery   int                 `mapstructure:"results_per_query"`
	ExtraDomains      map[string][]string `mapstructure:"extra_domains"`
	GlobalDomains     []string            `mapstructure:"global_domains"`
	CheckReachability bool                `mapstructure:"check_reachability"`
	ReachTimeout      time.Duration       `mapstructure:"reach_timeout"`
	QueriesPerSecond  float64             `mapstructure:"queries_per_second"`
	Recency           string              `mapstructure:"recency"`
	CacheEnabled      bool                `mapstructure:"cache_enabled"`
	CacheTTL          time.Duration       `mapstructure:"cache_ttl"`
}

// Processor holds document fetch configuration.
type Processor struct {
	MaxBytes  int64         `mapstructure:"max_bytes"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Extractor selects the text extraction backend: "http" for a remote
// OCR/document service, "local" for in-process PDF/DOCX/HTML extraction,
// or "none" for HTML-only processing.
type Extractor struct {
	Backend    string        `mapstructure:"backend"`
	BaseURL    string        `mapstructure:"base_url"`
	SocketPath string        `mapstructure:"socket_path"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Storage holds S3/MinIO storage configuration.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Embeddings holds embeddings generation configuration.
type Embeddings struct {
	BaseURL       string        `mapstructure:"base_url"`
	SocketPath    string        `mapstructure:"socket_path"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Dimensions    int           `mapstructure:"dimensions"` // 0 derives from the model
	MaxInputChars int           `mapstructure:"max_input_chars"`
	BatchSize     int           `mapstructure:"batch_size"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// VectorStore selects and configures the vector index backend.
type VectorStore struct {
	Backend       string        `mapstructure:"backend"` // "elasticsearch" or "milvus"
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Milvus        Milvus        `mapstructure:"milvus"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Milvus holds Milvus connection configuration.
type Milvus struct {
	Address    string `mapstructure:"address"`
	Collection string `mapstructure:"collection"`
	EF         int    `mapstructure:"ef"`
}

// Chunking holds chunk size configuration, in approximate tokens.
type Chunking struct {
	TargetTokens  int `mapstructure:"target_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens"`
}

// Rerank holds reranker configuration. It uses the LLM section's model.
type Rerank struct {
	Enabled bool          `mapstructure:"enabled"`
	TopK    int           `mapstructure:"top_k"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLM holds chat model configuration.
type LLM struct {
	BaseURL    string        `mapstructure:"base_url"`
	SocketPath string        `mapstructure:"socket_path"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Redis holds Redis connection configuration for the discovery cache.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Server holds HTTP API configuration.
type Server struct {
	Addr        string `mapstructure:"addr"`
	IngestToken string `mapstructure:"ingest_token"`
}

// Query holds question answering configuration.
type Query struct {
	Mode    string        `mapstructure:"mode"` // "retrieval" or "generative"
	TopK    int           `mapstructure:"top_k"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Ingest holds batch ingestion configuration.
type Ingest struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxURLs     int           `mapstructure:"max_urls"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Search: Search{
			MaxRetries: 3,
			RetryDelay: 1 * time.Second,
		},
		Generative: Generative{
			BaseURL: "https://api.perplexity.ai",
			Model:   "sonar",
			Timeout: 60 * time.Second,
		},
		Crawler: Crawler{
			Delay:     1 * time.Second,
			MaxDepth:  2,
			Timeout:   30 * time.Second,
			UserAgent: "regrag/1.0",
		},
		Discovery: Discovery{
			MaxVariants:      20,
			ResultsPerQuery:  10,
			ReachTimeout:     10 * time.Second,
			QueriesPerSecond: 2,
			Recency:          "year",
			CacheTTL:         24 * time.Hour,
		},
		Processor: Processor{
			MaxBytes:  50 << 20,
			Timeout:   60 * time.Second,
			UserAgent: "regrag/1.0",
		},
		Extractor: Extractor{
			Backend: "local",
			Timeout: 60 * time.Second,
		},
		Storage: Storage{
			Endpoint:        "localhost:9002",
			Bucket:          "regrag",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Embeddings: Embeddings{
			BaseURL:       "",
			SocketPath:    "", // User must provide their Docker socket path or a base URL
			Model:         "ai/bge-m3",
			MaxInputChars: 4000,
			BatchSize:     32,
			Timeout:       30 * time.Second,
		},
		VectorStore: VectorStore{
			Backend: "elasticsearch",
			Elasticsearch: Elasticsearch{
				Addresses: []string{"http://localhost:9200"},
				Index:     "regrag-chunks",
			},
			Milvus: Milvus{
				Address:    "localhost:19530",
				Collection: "regrag_chunks",
				EF:         64,
			},
		},
		Chunking: Chunking{
			TargetTokens:  800,
			OverlapTokens: 100,
		},
		Rerank: Rerank{
			Enabled: false,
			TopK:    5,
			Timeout: 1500 * time.Millisecond,
		},
		LLM: LLM{
			Model:   "ai/gemma3",
			Timeout: 30 * time.Second,
		},
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Server: Server{
			Addr: ":8080",
		},
		Query: Query{
			Mode:    "retrieval",
			TopK:    8,
			Timeout: 30 * time.Second,
		},
		Ingest: Ingest{
			Concurrency: 4,
			MaxURLs:     30,
			Timeout:     30 * time.Minute,
		},
		MCP: MCP{
			Name:    "regrag",
			Version: "1.0.0",
		},
	}
}
