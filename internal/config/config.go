package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Limits    LimitsConfig    `yaml:"limits" mapstructure:"limits"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts" mapstructure:"timeouts"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Spam      SpamConfig      `yaml:"spam" mapstructure:"spam"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// LimitsConfig configures the global and per-session request quotas.
type LimitsConfig struct {
	MaxGlobalRequests     int `yaml:"max_global_requests" mapstructure:"max_global_requests"`
	ResetIntervalSecs     int `yaml:"reset_interval_secs" mapstructure:"reset_interval_secs"`
	MaxSessionRequests    int `yaml:"max_session_requests" mapstructure:"max_session_requests"`
	SessionTimeWindowSecs int `yaml:"session_time_window_secs" mapstructure:"session_time_window_secs"`
}

// ResetInterval returns the global window length.
func (l LimitsConfig) ResetInterval() time.Duration {
	return time.Duration(l.ResetIntervalSecs) * time.Second
}

// SessionWindow returns the per-session trailing window length.
func (l LimitsConfig) SessionWindow() time.Duration {
	return time.Duration(l.SessionTimeWindowSecs) * time.Second
}

// TimeoutsConfig bounds the wait on each oracle stage.
type TimeoutsConfig struct {
	ClassificationSecs int `yaml:"classification_secs" mapstructure:"classification_secs"`
	RationaleSecs      int `yaml:"rationale_secs" mapstructure:"rationale_secs"`
}

// Classification returns the classification deadline.
func (t TimeoutsConfig) Classification() time.Duration {
	return time.Duration(t.ClassificationSecs) * time.Second
}

// Rationale returns the rationale deadline.
func (t TimeoutsConfig) Rationale() time.Duration {
	return time.Duration(t.RationaleSecs) * time.Second
}

// PricingConfig holds pricing constants.
type PricingConfig struct {
	UrgencyMultiplier float64 `yaml:"urgency_multiplier" mapstructure:"urgency_multiplier"`
}

// SpamConfig configures the contact-form guard.
type SpamConfig struct {
	MinSubmitDelaySecs int `yaml:"min_submit_delay_secs" mapstructure:"min_submit_delay_secs"`
}

// MinSubmitDelay returns the minimum interval between accepted submissions.
func (s SpamConfig) MinSubmitDelay() time.Duration {
	return time.Duration(s.MinSubmitDelaySecs) * time.Second
}

// OracleConfig selects the completion provider and generation parameters.
type OracleConfig struct {
	Provider             string  `yaml:"provider" mapstructure:"provider"`
	Model                string  `yaml:"model" mapstructure:"model"`
	ClassifyTemperature  float64 `yaml:"classify_temperature" mapstructure:"classify_temperature"`
	ClassifyMaxTokens    int     `yaml:"classify_max_tokens" mapstructure:"classify_max_tokens"`
	RationaleTemperature float64 `yaml:"rationale_temperature" mapstructure:"rationale_temperature"`
	RationaleMaxTokens   int     `yaml:"rationale_max_tokens" mapstructure:"rationale_max_tokens"`
	RequestsPerSecond    float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	SystemPromptFile     string  `yaml:"system_prompt_file" mapstructure:"system_prompt_file"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CircuitConfig configures the oracle circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CatalogConfig points at an alternative catalog file. Empty uses the
// embedded catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	TTLMinutes  int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// TTL returns the session lifetime.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// NotifyConfig configures notification sinks. The log sink is always on.
type NotifyConfig struct {
	JournalPath string     `yaml:"journal_path" mapstructure:"journal_path"`
	Mail        MailConfig `yaml:"mail" mapstructure:"mail"`
}

// MailConfig configures SMTP delivery. Empty Host disables mail.
type MailConfig struct {
	Host             string   `yaml:"host" mapstructure:"host"`
	Port             int      `yaml:"port" mapstructure:"port"`
	Username         string   `yaml:"username" mapstructure:"username"`
	Password         string   `yaml:"password" mapstructure:"password"`
	From             string   `yaml:"from" mapstructure:"from"`
	To               []string `yaml:"to" mapstructure:"to"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int      `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CookieSecure   bool     `yaml:"cookie_secure" mapstructure:"cookie_secure"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ESTIMIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("limits.max_global_requests", 100)
	v.SetDefault("limits.reset_interval_secs", 3600)
	v.SetDefault("limits.max_session_requests", 5)
	v.SetDefault("limits.session_time_window_secs", 3600)
	v.SetDefault("timeouts.classification_secs", 30)
	v.SetDefault("timeouts.rationale_secs", 30)
	v.SetDefault("pricing.urgency_multiplier", 1.5)
	v.SetDefault("spam.min_submit_delay_secs", 30)
	v.SetDefault("oracle.provider", "anthropic")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.classify_temperature", 0.3)
	v.SetDefault("oracle.classify_max_tokens", 500)
	v.SetDefault("oracle.rationale_temperature", 0.3)
	v.SetDefault("oracle.rationale_max_tokens", 1000)
	v.SetDefault("oracle.requests_per_second", 5)
	v.SetDefault("oracle.system_prompt_file", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("catalog.path", "")
	v.SetDefault("session.ttl_minutes", 60)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("notify.journal_path", "")
	v.SetDefault("notify.mail.host", "")
	v.SetDefault("notify.mail.port", 587)
	v.SetDefault("notify.mail.username", "")
	v.SetDefault("notify.mail.password", "")
	v.SetDefault("notify.mail.from", "")
	v.SetDefault("notify.mail.to", []string{})
	v.SetDefault("notify.mail.max_attempts", 3)
	v.SetDefault("notify.mail.initial_backoff_ms", 500)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.cookie_secure", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)

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

// OracleKey returns the API key of the selected provider.
func (c *Config) OracleKey() string {
	if c.Oracle.Provider == "gemini" {
		return c.Gemini.Key
	}
	return c.Anthropic.Key
}

// OracleModel returns oracle.model, falling back to the provider's model.
func (c *Config) OracleModel() string {
	if c.Oracle.Model != "" {
		return c.Oracle.Model
	}
	if c.Oracle.Provider == "gemini" {
		return c.Gemini.Model
	}
	return c.Anthropic.Model
}

// Validate checks that the settings a command needs are present and sane.
// Every problem is reported in a single error.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.validatePipeline()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Session.TTLMinutes <= 0 {
			errs = append(errs, "session.ttl_minutes must be > 0")
		}
		if c.Session.MaxSessions <= 0 {
			errs = append(errs, "session.max_sessions must be > 0")
		}
		if c.Spam.MinSubmitDelaySecs < 0 {
			errs = append(errs, "spam.min_submit_delay_secs must be >= 0")
		}
		errs = append(errs, c.validateMail()...)
	case "estimate":
		errs = append(errs, c.validatePipeline()...)
	case "catalog":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string

	switch c.Oracle.Provider {
	case "anthropic", "gemini":
		if c.OracleKey() == "" {
			errs = append(errs, c.Oracle.Provider+".key is required")
		}
		if c.OracleModel() == "" {
			errs = append(errs, "oracle.model is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("oracle.provider must be anthropic or gemini, got %q", c.Oracle.Provider))
	}

	if c.Timeouts.ClassificationSecs <= 0 {
		errs = append(errs, "timeouts.classification_secs must be > 0")
	}
	if c.Timeouts.RationaleSecs <= 0 {
		errs = append(errs, "timeouts.rationale_secs must be > 0")
	}
	if c.Pricing.UrgencyMultiplier < 1 {
		errs = append(errs, "pricing.urgency_multiplier must be >= 1")
	}
	if c.Oracle.ClassifyTemperature < 0 || c.Oracle.ClassifyTemperature > 1 {
		errs = append(errs, "oracle.classify_temperature must be between 0 and 1")
	}
	if c.Oracle.RationaleTemperature < 0 || c.Oracle.RationaleTemperature > 1 {
		errs = append(errs, "oracle.rationale_temperature must be between 0 and 1")
	}
	if c.Oracle.ClassifyMaxTokens <= 0 || c.Oracle.RationaleMaxTokens <= 0 {
		errs = append(errs, "oracle max tokens must be > 0")
	}
	if c.Limits.MaxGlobalRequests > 0 && c.Limits.ResetIntervalSecs <= 0 {
		errs = append(errs, "limits.reset_interval_secs must be > 0")
	}
	if c.Limits.MaxSessionRequests > 0 && c.Limits.SessionTimeWindowSecs <= 0 {
		errs = append(errs, "limits.session_time_window_secs must be > 0")
	}
	if c.Circuit.FailureThreshold < 0 {
		errs = append(errs, "circuit.failure_threshold must be >= 0")
	}

	return errs
}

func (c *Config) validateMail() []string {
	m := c.Notify.Mail
	if m.Host == "" {
		return nil
	}
	var errs []string
	if m.From == "" {
		errs = append(errs, "notify.mail.from is required when notify.mail.host is set")
	}
	if len(m.To) == 0 {
		errs = append(errs, "notify.mail.to is required when notify.mail.host is set")
	}
	return errs
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// entries are also written as JSON to a size-rotated file.
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

	var opts []zap.Option
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	zap.ReplaceGlobals(logger)
	return nil
}
