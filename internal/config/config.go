package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/funding-intake/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Proxy      ProxyConfig      `yaml:"proxy" mapstructure:"proxy"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Gemini     ProviderConfig   `yaml:"gemini" mapstructure:"gemini"`
	Anthropic  ProviderConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ProviderConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// FirecrawlConfig holds Firecrawl API settings. An empty key disables the
// provider.
type FirecrawlConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages            int    `yaml:"max_pages" mapstructure:"max_pages"`
	PollIntervalMS      int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	PollAttempts        int    `yaml:"poll_attempts" mapstructure:"poll_attempts"`
	AgentEnabled        bool   `yaml:"agent_enabled" mapstructure:"agent_enabled"`
	AgentPollIntervalMS int    `yaml:"agent_poll_interval_ms" mapstructure:"agent_poll_interval_ms"`
	AgentPollAttempts   int    `yaml:"agent_poll_attempts" mapstructure:"agent_poll_attempts"`
}

// PollInterval returns the crawl poll interval.
func (c FirecrawlConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// AgentPollInterval returns the agent poll interval.
func (c FirecrawlConfig) AgentPollInterval() time.Duration {
	return time.Duration(c.AgentPollIntervalMS) * time.Millisecond
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProxyConfig configures the raw HTML fetchers. Endpoints are URL templates
// where {url} is the query-escaped target and {raw} the target as-is.
type ProxyConfig struct {
	Endpoints       []string `yaml:"endpoints" mapstructure:"endpoints"`
	MinContentChars int      `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	MainContentOnly bool     `yaml:"main_content_only" mapstructure:"main_content_only"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures the content chain.
type FetchConfig struct {
	MaxContentChars     int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ProviderConfig holds one LLM provider's credentials and models.
type ProviderConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	FastModel    string `yaml:"fast_model" mapstructure:"fast_model"`
	QualityModel string `yaml:"quality_model" mapstructure:"quality_model"`
}

// AIConfig selects the provider and sampling parameters.
type AIConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	TopK            int     `yaml:"top_k" mapstructure:"top_k"`
	TopP            float64 `yaml:"top_p" mapstructure:"top_p"`
	MaxOutputTokens int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// ExtractConfig configures parsing and normalization.
type ExtractConfig struct {
	NotesChars     int    `yaml:"notes_chars" mapstructure:"notes_chars"`
	RawNotesChars  int    `yaml:"raw_notes_chars" mapstructure:"raw_notes_chars"`
	VocabularyFile string `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
	LenderContext  int    `yaml:"lender_context" mapstructure:"lender_context"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds the Notion token and the database ID per table.
type NotionConfig struct {
	Token     string            `yaml:"token" mapstructure:"token"`
	Databases map[string]string `yaml:"databases" mapstructure:"databases"`
	RateLimit float64           `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the sObject per
// table.
type SalesforceConfig struct {
	ClientID  string            `yaml:"client_id" mapstructure:"client_id"`
	Username  string            `yaml:"username" mapstructure:"username"`
	KeyPath   string            `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string            `yaml:"login_url" mapstructure:"login_url"`
	Objects   map[string]string `yaml:"objects" mapstructure:"objects"`
	RateLimit float64           `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                    int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs      int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	MaxConcurrentExtraction int      `yaml:"max_concurrent_extractions" mapstructure:"max_concurrent_extractions"`
	AllowedOrigins          []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewBacklogMax     int     `yaml:"review_backlog_max" mapstructure:"review_backlog_max"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads .env, then configuration from file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have empty defaults so AutomaticEnv binds them on Unmarshal.
	for _, key := range []string{
		"firecrawl.key", "jina.key", "gemini.key", "anthropic.key", "anthropic.base_url",
		"perplexity.key", "notion.token", "salesforce.client_id", "salesforce.username",
		"salesforce.key_path", "monitoring.webhook_url", "extract.vocabulary_file",
	} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("firecrawl.max_pages", 5)
	v.SetDefault("firecrawl.poll_interval_ms", 2000)
	v.SetDefault("firecrawl.poll_attempts", 30)
	v.SetDefault("firecrawl.agent_enabled", true)
	v.SetDefault("firecrawl.agent_poll_interval_ms", 1500)
	v.SetDefault("firecrawl.agent_poll_attempts", 70)
	v.SetDefault("jina.enabled", true)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("proxy.endpoints", []string{
		"{raw}",
		"https://api.allorigins.win/raw?url={url}",
		"https://corsproxy.io/?url={url}",
	})
	v.SetDefault("proxy.min_content_chars", 100)
	v.SetDefault("proxy.timeout_secs", 20)
	v.SetDefault("fetch.max_content_chars", 15000)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_cooldown_secs", 30)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.fast_model", "gemini-2.5-flash")
	v.SetDefault("gemini.quality_model", "gemini-2.5-pro")
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.quality_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.fast_model", "sonar")
	v.SetDefault("perplexity.quality_model", "sonar-pro")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("ai.top_k", 40)
	v.SetDefault("ai.top_p", 0.95)
	v.SetDefault("ai.max_output_tokens", 8192)
	v.SetDefault("extract.notes_chars", 2000)
	v.SetDefault("extract.raw_notes_chars", 2000)
	v.SetDefault("extract.lender_context", 25)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "intake.db")
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("server.max_concurrent_extractions", 4)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.rate_per_minute", 20)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.review_backlog_max", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Provider returns the settings of the configured ai.provider.
func (c *Config) Provider() ProviderConfig {
	switch strings.ToLower(c.AI.Provider) {
	case "anthropic":
		return c.Anthropic
	case "perplexity":
		return c.Perplexity
	}
	return c.Gemini
}

// Validate checks the settings a command needs before any network call.
// Modes: lender, vendor, vendor:ai, recommend, batch, serve and
// approve:<sink>.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(msg string) { problems = append(problems, msg) }

	if c.Fetch.MaxContentChars <= 0 {
		add("fetch.max_content_chars must be > 0")
	}
	if c.Proxy.MinContentChars < 0 {
		add("proxy.min_content_chars must be >= 0")
	}
	if c.Firecrawl.PollAttempts <= 0 || c.Firecrawl.PollIntervalMS <= 0 {
		add("firecrawl.poll_attempts and firecrawl.poll_interval_ms must be > 0")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
	default:
		add("store.driver must be sqlite or postgres")
	}

	requireAI := func() {
		provider := strings.ToLower(c.AI.Provider)
		switch provider {
		case "", "gemini", "anthropic", "perplexity":
		default:
			add("ai.provider must be gemini, anthropic or perplexity")
			return
		}
		if provider == "" {
			provider = "gemini"
		}
		p := c.Provider()
		if p.Key == "" {
			add(provider + ".key is required")
		}
		if p.FastModel == "" {
			add(provider + ".fast_model is required")
		}
	}

	switch mode {
	case "lender", "recommend", "vendor:ai":
		requireAI()
	case "vendor":
	case "batch":
		if c.Batch.RatePerMinute <= 0 {
			add("batch.rate_per_minute must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
		if c.Server.MaxConcurrentExtraction < 1 || c.Server.MaxConcurrentExtraction > 50 {
			add("server.max_concurrent_extractions must be between 1 and 50")
		}
		if c.Server.RequestTimeoutSecs <= 0 {
			add("server.request_timeout_secs must be > 0")
		}
	case "approve:store":
	case "approve:notion":
		if c.Notion.Token == "" {
			add("notion.token is required")
		}
	case "approve:salesforce":
		if c.Salesforce.ClientID == "" {
			add("salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			add("salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			add("salesforce.key_path is required")
		}
	default:
		add("unknown mode " + mode)
	}

	if len(problems) == 0 {
		return nil
	}
	return resilience.Configf("config", "%s", strings.Join(problems, "; "))
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
