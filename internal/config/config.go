// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Filter     FilterConfig     `yaml:"filter" mapstructure:"filter"`
	SearchAPI  SearchAPIConfig  `yaml:"searchapi" mapstructure:"searchapi"`
	Meta       MetaConfig       `yaml:"meta" mapstructure:"meta"`
	BigQuery   BigQueryConfig   `yaml:"bigquery" mapstructure:"bigquery"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures result persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ScoringConfig points at the ICP and benchmark files and tunes the extractors.
type ScoringConfig struct {
	ICPPath          string        `yaml:"icp_path" mapstructure:"icp_path"`
	BenchmarkPath    string        `yaml:"benchmark_path" mapstructure:"benchmark_path"`
	Profile          string        `yaml:"profile" mapstructure:"profile"`
	EstimateAll      bool          `yaml:"estimate_all" mapstructure:"estimate_all"`
	LeakCorrection   float64       `yaml:"leak_correction" mapstructure:"leak_correction"`
	ImpressionPoints float64       `yaml:"impression_points" mapstructure:"impression_points"`
	OverlapBaseline  float64       `yaml:"overlap_baseline" mapstructure:"overlap_baseline"`
	OverlapRules     []OverlapRule `yaml:"overlap_rules" mapstructure:"overlap_rules"`
}

// OverlapRule configures the competitor_overlap extractor for one vertical.
type OverlapRule struct {
	Vertical string  `yaml:"vertical" mapstructure:"vertical"`
	MinSpend float64 `yaml:"min_spend" mapstructure:"min_spend"`
	Points   float64 `yaml:"points" mapstructure:"points"`
}

// FilterConfig configures the prospect pre-scoring gate.
type FilterConfig struct {
	PlatformDomains   []string `yaml:"platform_domains" mapstructure:"platform_domains"`
	ContentPatterns   []string `yaml:"content_patterns" mapstructure:"content_patterns"`
	EnterpriseNames   []string `yaml:"enterprise_names" mapstructure:"enterprise_names"`
	EnterpriseTerms   []string `yaml:"enterprise_terms" mapstructure:"enterprise_terms"`
	RequireLocale     bool     `yaml:"require_locale" mapstructure:"require_locale"`
	LocaleTLDs        []string `yaml:"locale_tlds" mapstructure:"locale_tlds"`
	LocaleKeywords    []string `yaml:"locale_keywords" mapstructure:"locale_keywords"`
	EnforceSMEBracket bool     `yaml:"enforce_sme_bracket" mapstructure:"enforce_sme_bracket"`
	MinAdVolume       int      `yaml:"min_ad_volume" mapstructure:"min_ad_volume"`
	MaxAdVolume       int      `yaml:"max_ad_volume" mapstructure:"max_ad_volume"`
}

// SearchAPIConfig holds SearchAPI.io settings.
type SearchAPIConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MetaConfig holds Meta Ad Library (Graph API) settings.
type MetaConfig struct {
	AccessToken string  `yaml:"access_token" mapstructure:"access_token"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BigQueryConfig configures the Ads Transparency Center public dataset source.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	Table     string `yaml:"table" mapstructure:"table"`
	Location  string `yaml:"location" mapstructure:"location"`
	MaxRows   int    `yaml:"max_rows" mapstructure:"max_rows"`
}

// DiscoveryConfig configures prospect discovery.
type DiscoveryConfig struct {
	Concurrency       int                `yaml:"concurrency" mapstructure:"concurrency"`
	Region            string             `yaml:"region" mapstructure:"region"`
	LookbackDays      int                `yaml:"lookback_days" mapstructure:"lookback_days"`
	ResolveDomains    bool               `yaml:"resolve_domains" mapstructure:"resolve_domains"`
	PerAdMonthlySpend map[string]float64 `yaml:"per_ad_monthly_spend" mapstructure:"per_ad_monthly_spend"`
}

// NotionConfig holds the outreach database export settings.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings for lead export.
type SalesforceConfig struct {
	ClientID   string `yaml:"client_id" mapstructure:"client_id"`
	Username   string `yaml:"username" mapstructure:"username"`
	KeyPath    string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL   string `yaml:"login_url" mapstructure:"login_url"`
	LeadSource string `yaml:"lead_source" mapstructure:"lead_source"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RetryConfig configures retries for discovery API calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// MonitoringConfig configures run health checks and webhook alerts.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DataErrorRateThreshold float64 `yaml:"data_error_rate_threshold" mapstructure:"data_error_rate_threshold"`
	NoLeadStreak           int     `yaml:"no_lead_streak" mapstructure:"no_lead_streak"`
}

// PricingConfig holds per-provider discovery pricing (USD).
type PricingConfig struct {
	SearchAPIPerRequest float64 `yaml:"searchapi_per_request" mapstructure:"searchapi_per_request"`
	MetaPerRequest      float64 `yaml:"meta_per_request" mapstructure:"meta_per_request"`
	BigQueryPerQuery    float64 `yaml:"bigquery_per_query" mapstructure:"bigquery_per_query"`
}

// Load reads configuration from file and environment. An empty path
// searches for config.yaml in the working directory; a missing file there
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ADLEAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "adlead.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.max_concurrent", 5)

	v.SetDefault("scoring.icp_path", "icp.yaml")
	v.SetDefault("scoring.benchmark_path", "benchmarks.yaml")
	v.SetDefault("scoring.leak_correction", 0.65)
	v.SetDefault("scoring.impression_points", 0.125)
	v.SetDefault("scoring.overlap_baseline", 5)
	v.SetDefault("scoring.overlap_rules", []map[string]any{
		{"vertical": "aesthetic", "min_spend": 2500, "points": 15},
		{"vertical": "dental", "min_spend": 2000, "points": 10},
	})

	v.SetDefault("filter.platform_domains", DefaultPlatformDomains)
	v.SetDefault("filter.content_patterns", DefaultContentPatterns)
	v.SetDefault("filter.enterprise_names", DefaultEnterpriseNames)
	v.SetDefault("filter.enterprise_terms", DefaultEnterpriseTerms)
	v.SetDefault("filter.enforce_sme_bracket", true)
	v.SetDefault("filter.min_ad_volume", 5)
	v.SetDefault("filter.max_ad_volume", 25)

	v.SetDefault("searchapi.base_url", "https://www.searchapi.io/api/v1")
	v.SetDefault("searchapi.rate_limit", 2.0)
	v.SetDefault("searchapi.timeout_secs", 20)
	v.SetDefault("meta.base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("meta.rate_limit", 1.0)
	v.SetDefault("meta.timeout_secs", 20)
	v.SetDefault("bigquery.table", "bigquery-public-data.google_ads_transparency_center.creative_stats")
	v.SetDefault("bigquery.location", "US")
	v.SetDefault("bigquery.max_rows", 500)

	v.SetDefault("discovery.concurrency", 5)
	v.SetDefault("discovery.region", "CA")
	v.SetDefault("discovery.lookback_days", 90)
	v.SetDefault("discovery.resolve_domains", true)
	v.SetDefault("discovery.per_ad_monthly_spend", map[string]float64{
		"google":  180,
		"youtube": 220,
		"meta":    120,
		"default": 150,
	})

	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.lead_source", "Ad Intelligence")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)

	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.data_error_rate_threshold", 0.25)
	v.SetDefault("monitoring.no_lead_streak", 3)

	v.SetDefault("pricing.searchapi_per_request", 0.004)
	v.SetDefault("pricing.meta_per_request", 0.0)
	v.SetDefault("pricing.bigquery_per_query", 0.01)
}

// Validate checks the configuration for the given modes. Bounds checks
// always run; each mode adds the settings it needs. Modes: score, serve,
// searchapi, meta, bigquery, notion, salesforce.
func (c *Config) Validate(modes ...string) error {
	var errs []string

	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
		errs = append(errs, "batch.max_concurrent must be between 1 and 50")
	}
	if c.Discovery.Concurrency < 1 || c.Discovery.Concurrency > 50 {
		errs = append(errs, "discovery.concurrency must be between 1 and 50")
	}
	if c.Scoring.LeakCorrection < 0 || c.Scoring.LeakCorrection > 1 {
		errs = append(errs, "scoring.leak_correction must be between 0 and 1")
	}
	if c.Filter.MinAdVolume < 0 || c.Filter.MaxAdVolume < c.Filter.MinAdVolume {
		errs = append(errs, "filter.min_ad_volume must be >= 0 and <= filter.max_ad_volume")
	}
	if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 ||
		c.Monitoring.DataErrorRateThreshold < 0 || c.Monitoring.DataErrorRateThreshold > 1 {
		errs = append(errs, "monitoring thresholds must be between 0 and 1")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	for _, mode := range modes {
		switch mode {
		case "score":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required (ADLEAD_STORE_DATABASE_URL)")
			}
		case "serve":
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
		case "searchapi":
			if c.SearchAPI.Key == "" {
				errs = append(errs, "searchapi.key is required (ADLEAD_SEARCHAPI_KEY)")
			}
		case "meta":
			if c.Meta.AccessToken == "" {
				errs = append(errs, "meta.access_token is required (ADLEAD_META_ACCESS_TOKEN)")
			}
		case "bigquery":
			if c.BigQuery.ProjectID == "" {
				errs = append(errs, "bigquery.project_id is required (ADLEAD_BIGQUERY_PROJECT_ID)")
			}
		case "notion":
			if c.Notion.Token == "" {
				errs = append(errs, "notion.token is required (ADLEAD_NOTION_TOKEN)")
			}
			if c.Notion.LeadDB == "" {
				errs = append(errs, "notion.lead_db is required (ADLEAD_NOTION_LEAD_DB)")
			}
		case "salesforce":
			if c.Salesforce.ClientID == "" || c.Salesforce.Username == "" || c.Salesforce.KeyPath == "" {
				errs = append(errs, "salesforce.client_id, salesforce.username and salesforce.key_path are required")
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Source: "configuration", Problems: errs}
	}
	return nil
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
