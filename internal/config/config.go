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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Locator   LocatorConfig   `yaml:"locator" mapstructure:"locator"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	Assistant AssistantConfig `yaml:"assistant" mapstructure:"assistant"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the cache database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures the HTTP page fetcher.
type FetchConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries        int     `yaml:"retries" mapstructure:"retries"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes   int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	CourtesyWaitMs int     `yaml:"courtesy_wait_ms" mapstructure:"courtesy_wait_ms"`
}

// DiscoveryConfig configures the strategy chain.
type DiscoveryConfig struct {
	ConfidenceFloor float64         `yaml:"confidence_floor" mapstructure:"confidence_floor"`
	EnableAssistant bool            `yaml:"enable_assistant" mapstructure:"enable_assistant"`
	PatternTTLDays  int             `yaml:"pattern_ttl_days" mapstructure:"pattern_ttl_days"`
	CommonPaths     []string        `yaml:"common_paths" mapstructure:"common_paths"`
	Subdomain       SubdomainConfig `yaml:"subdomain" mapstructure:"subdomain"`
}

// SubdomainConfig configures candidate subdomain probing.
type SubdomainConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled"`
	MaxCandidates int  `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// LocatorConfig configures directory page resolution.
type LocatorConfig struct {
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"` // pagination cap per directory
}

// GatewayConfig configures the external assistance gateway.
type GatewayConfig struct {
	MaxCallsPerRun   int     `yaml:"max_calls_per_run" mapstructure:"max_calls_per_run"`
	MaxCostPerRunUSD float64 `yaml:"max_cost_per_run_usd" mapstructure:"max_cost_per_run_usd"`
	CacheTTLHours    int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// AssistantConfig holds Anthropic API settings.
type AssistantConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig holds Jina Search API settings.
type SearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures extraction behavior and per-stage concurrency.
// Extraction and resolution caps sit below the fetch cap because those
// stages may trigger metered external calls.
type PipelineConfig struct {
	FetchConcurrency   int     `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	ExtractConcurrency int     `yaml:"extract_concurrency" mapstructure:"extract_concurrency"`
	ResolveConcurrency int     `yaml:"resolve_concurrency" mapstructure:"resolve_concurrency"`
	EnableLinkResolve  bool    `yaml:"enable_link_resolve" mapstructure:"enable_link_resolve"`
	EnableAssociations bool    `yaml:"enable_associations" mapstructure:"enable_associations"`
	ReplacementMargin  float64 `yaml:"replacement_margin" mapstructure:"replacement_margin"`
	MaxRecords         int     `yaml:"max_records" mapstructure:"max_records"`
}

// PricingConfig holds per-provider rates. RatesFile, when set, points at a
// standalone YAML rates file that overrides the inline sections.
type PricingConfig struct {
	RatesFile string                  `yaml:"rates_file" mapstructure:"rates_file"`
	Assistant map[string]ModelPricing `yaml:"assistant" mapstructure:"assistant"`
	Search    SearchPricing           `yaml:"search" mapstructure:"search"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// SearchPricing holds flat per-query search pricing.
type SearchPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "roster.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.rate_per_sec", 4.0)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; RosterBot/1.0)")
	v.SetDefault("fetch.max_body_bytes", 2*1024*1024)
	v.SetDefault("fetch.courtesy_wait_ms", 100)
	v.SetDefault("discovery.confidence_floor", 0.5)
	v.SetDefault("discovery.enable_assistant", true)
	v.SetDefault("discovery.pattern_ttl_days", 30)
	v.SetDefault("discovery.common_paths", []string{
		"/faculty", "/people", "/directory", "/staff", "/our-team",
		"/team", "/about/people", "/faculty-staff", "/members",
	})
	v.SetDefault("discovery.subdomain.enabled", true)
	v.SetDefault("discovery.subdomain.max_candidates", 12)
	v.SetDefault("locator.max_pages", 10)
	v.SetDefault("gateway.max_calls_per_run", 25)
	v.SetDefault("gateway.max_cost_per_run_usd", 1.00)
	v.SetDefault("gateway.cache_ttl_hours", 24*7)
	v.SetDefault("gateway.timeout_secs", 30)
	v.SetDefault("gateway.retries", 2)
	v.SetDefault("gateway.breaker_threshold", 5)
	v.SetDefault("gateway.breaker_reset_secs", 30)
	v.SetDefault("assistant.model", "claude-haiku-4-5-20251001")
	v.SetDefault("assistant.max_tokens", 1024)
	v.SetDefault("search.base_url", "https://s.jina.ai")
	v.SetDefault("pipeline.fetch_concurrency", 8)
	v.SetDefault("pipeline.extract_concurrency", 4)
	v.SetDefault("pipeline.resolve_concurrency", 2)
	v.SetDefault("pipeline.enable_link_resolve", true)
	v.SetDefault("pipeline.enable_associations", true)
	v.SetDefault("pipeline.replacement_margin", 0.2)
	v.SetDefault("pipeline.max_records", 0)
	v.SetDefault("pricing.rates_file", "")
	v.SetDefault("pricing.search.per_query", 0.005)
	v.SetDefault("pricing.assistant", map[string]ModelPricing{
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	})

	// Read config file (optional)
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
