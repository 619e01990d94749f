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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Targets    TargetsConfig    `yaml:"targets" mapstructure:"targets"`
	Clusters   ClustersConfig   `yaml:"clusters" mapstructure:"clusters"`
	Logs       LogsConfig       `yaml:"logs" mapstructure:"logs"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Eval       EvalConfig       `yaml:"eval" mapstructure:"eval"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the reporting store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PromptsConfig locates the default prompt list.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TargetsConfig locates the default target list.
type TargetsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ClustersConfig locates the cluster/model configuration for reporting.
type ClustersConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogsConfig configures the append-only run log directory.
type LogsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// OpenAIConfig holds OpenAI-compatible search endpoint settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings. SearchDomains, when set,
// restricts Perplexity's web search to the listed domains.
type PerplexityConfig struct {
	Key           string   `yaml:"key" mapstructure:"key"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	Model         string   `yaml:"model" mapstructure:"model"`
	SearchDomains []string `yaml:"search_domains" mapstructure:"search_domains"`
}

// OpenRouterConfig holds OpenRouter API settings. Referer and Title are the
// optional attribution headers OpenRouter uses for app rankings.
type OpenRouterConfig struct {
	Key     string   `yaml:"key" mapstructure:"key"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Models  []string `yaml:"models" mapstructure:"models"`
	Referer string   `yaml:"referer" mapstructure:"referer"`
	Title   string   `yaml:"title" mapstructure:"title"`
}

// EvalConfig configures evaluation run behavior.
type EvalConfig struct {
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CITEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no default, so AutomaticEnv alone never sees them.
	for _, key := range []string{"openai.key", "perplexity.key", "openrouter.key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "citewatch.db")
	v.SetDefault("prompts.path", "config/prompts.txt")
	v.SetDefault("targets.path", "config/targets.json")
	v.SetDefault("clusters.path", "config/clusters.yaml")
	v.SetDefault("logs.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-search-preview")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.models", []string{
		"openai/gpt-oss-20b:free:online",
		"anthropic/claude-3.5-haiku:online",
		"perplexity/sonar:online",
	})
	v.SetDefault("eval.concurrency", 4)
	v.SetDefault("eval.call_timeout_secs", 45)
	v.SetDefault("eval.requests_per_sec", 1.0)
	v.SetDefault("eval.temperature", 0.1)

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

// Validate checks that the configuration is usable for the given mode
// ("eval" for commands that call providers, "serve" for the dashboard API).
// Missing provider keys are a startup error, never a per-prompt failure.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "eval":
		check(c.OpenAI.Key == "" && c.Perplexity.Key == "" && c.OpenRouter.Key == "",
			"at least one provider key is required (openai.key, perplexity.key, or openrouter.key)")
		check(c.Eval.Concurrency < 1 || c.Eval.Concurrency > 32,
			"eval.concurrency must be between 1 and 32")
		check(c.Eval.CallTimeoutSecs < 1,
			"eval.call_timeout_secs must be > 0")
		check(c.Eval.RequestsPerSec <= 0,
			"eval.requests_per_sec must be > 0")
	case "serve":
		check(c.Server.Port <= 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
