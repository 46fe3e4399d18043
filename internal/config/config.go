package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	ProductHunt ProductHuntConfig `yaml:"producthunt" mapstructure:"producthunt"`
	Serp        SerpConfig        `yaml:"serp" mapstructure:"serp"`
	GitHub      GitHubConfig      `yaml:"github" mapstructure:"github"`
	Arxiv       ArxivConfig       `yaml:"arxiv" mapstructure:"arxiv"`
	Crawl       CrawlConfig       `yaml:"crawl" mapstructure:"crawl"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Queue       QueueConfig       `yaml:"queue" mapstructure:"queue"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`             // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"` // pgx conn string or sqlite path
}

// ProductHuntConfig holds discovery source API settings.
type ProductHuntConfig struct {
	Token   string  `yaml:"token" mapstructure:"token"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

// SerpConfig holds the SERP search proxy settings, shared by the social and
// general channels.
type SerpConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

// GitHubConfig holds code-hosting API settings.
type GitHubConfig struct {
	Token   string  `yaml:"token" mapstructure:"token"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

// ArxivConfig holds paper-index API settings. The endpoint is public, so
// there is no credential; the published etiquette limit is one request per
// three seconds.
type ArxivConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

// CrawlConfig configures the discovery crawl.
type CrawlConfig struct {
	Source    string `yaml:"source" mapstructure:"source"`
	PageSize  int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPosts  int    `yaml:"max_posts" mapstructure:"max_posts"`
	FloorDays int    `yaml:"floor_days" mapstructure:"floor_days"` // backfill stops this many days back
}

// EnrichConfig configures the enrichment orchestrator.
type EnrichConfig struct {
	StalenessDays int `yaml:"staleness_days" mapstructure:"staleness_days"`
	MinScore      int `yaml:"min_score" mapstructure:"min_score"`
	Limit         int `yaml:"limit" mapstructure:"limit"` // max persons planned per run

	// FullSearch drops the per-channel watermark from enqueued tasks so
	// channels are searched from scratch.
	FullSearch bool `yaml:"full_search" mapstructure:"full_search"`
}

// QueueConfig configures the task queue.
type QueueConfig struct {
	MaxAttempts   int `yaml:"max_attempts" mapstructure:"max_attempts"`
	LeaseMinutes  int `yaml:"lease_minutes" mapstructure:"lease_minutes"`
	BackoffBaseMS int `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffCapMS  int `yaml:"backoff_cap_ms" mapstructure:"backoff_cap_ms"`
	Workers       int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MAKERHUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "makerhunt.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("producthunt.base_url", "https://api.producthunt.com/v2/api/graphql")
	v.SetDefault("producthunt.rps", 1.0)
	v.SetDefault("producthunt.burst", 1)
	v.SetDefault("serp.base_url", "https://serpapi.com/search")
	v.SetDefault("serp.rps", 2.0)
	v.SetDefault("serp.burst", 2)
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.rps", 5.0)
	v.SetDefault("github.burst", 5)
	v.SetDefault("arxiv.base_url", "http://export.arxiv.org/api/query")
	v.SetDefault("arxiv.rps", 0.33)
	v.SetDefault("arxiv.burst", 1)
	v.SetDefault("crawl.source", "product_hunt")
	v.SetDefault("crawl.page_size", 20)
	v.SetDefault("crawl.floor_days", 365)
	v.SetDefault("enrich.staleness_days", 7)
	v.SetDefault("enrich.min_score", 0)
	v.SetDefault("enrich.limit", 10000)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.lease_minutes", 10)
	v.SetDefault("queue.backoff_base_ms", 2000)
	v.SetDefault("queue.backoff_cap_ms", 300000)
	v.SetDefault("queue.workers", 4)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
