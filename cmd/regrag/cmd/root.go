package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/regrag/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "regrag",
	Short: "regrag: question answering over Chinese provincial energy regulations",
	Long: `regrag discovers grid-connection, permitting and market regulations on
provincial government sites, extracts and indexes them, and answers questions
with verbatim quotes and citations, refusing when no evidence is found.

Commands:
  discover  Print candidate document URLs for a province/asset/class
  ingest    Discover, process, chunk, embed and index documents
  reindex   Rebuild vectors from clean storage
  query     Answer a question
  serve     Start the HTTP API
  mcp       Start the MCP server on stdio`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// envKeys are bound explicitly so REGRAG_* variables override keys that do
// not appear in the config file.
var envKeys = []string{
	"search.api_key", "search.cx",
	"generative.api_key", "generative.base_url", "generative.model",
	"discovery.check_reachability", "discovery.cache_enabled",
	"extractor.backend", "extractor.base_url", "extractor.socket_path", "extractor.api_key",
	"storage.endpoint", "storage.bucket", "storage.access_key_id", "storage.secret_access_key", "storage.use_ssl",
	"embeddings.base_url", "embeddings.socket_path", "embeddings.api_key", "embeddings.model", "embeddings.dimensions",
	"vector_store.backend",
	"vector_store.elasticsearch.index", "vector_store.elasticsearch.username", "vector_store.elasticsearch.password",
	"vector_store.milvus.address", "vector_store.milvus.collection",
	"rerank.enabled",
	"llm.base_url", "llm.socket_path", "llm.api_key", "llm.model",
	"redis.addr", "redis.password",
	"server.addr", "server.ingest_token",
	"query.mode", "query.top_k",
	"ingest.concurrency",
	"mcp.name", "mcp.version",
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/regrag")
		viper.AddConfigPath(".")
	}

	// REGRAG_VECTOR_STORE_BACKEND -> vector_store.backend
	viper.SetEnvPrefix("REGRAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("REGRAG_VECTOR_STORE_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.VectorStore.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
