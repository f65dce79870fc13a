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
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the checkpoint database backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// ScanConfig configures the extraction engine.
type ScanConfig struct {
	// AppDomain is the expected application domain; responses from other
	// origins are never attributed to a page.
	AppDomain string `yaml:"app_domain" mapstructure:"app_domain"`
	// TimeoutSecs bounds each quiescence wait during a visit.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// SettleMs is the network-idle window for quiescence detection.
	SettleMs int `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// BrowserConfig configures the headless capture browser.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	ExecPath    string `yaml:"exec_path" mapstructure:"exec_path"`
	BodyLimitKB int    `yaml:"body_limit_kb" mapstructure:"body_limit_kb"`
}

// BatchConfig configures batch visiting.
type BatchConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerMinute int `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxAttempts   int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// DiscoveryConfig configures index-page URL discovery.
type DiscoveryConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxURLs     int `yaml:"max_urls" mapstructure:"max_urls"`
}

// ServerConfig configures the read-only results API.
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
	v.SetEnvPrefix("PROMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
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
	v.SetDefault("store.dsn", "promocodes.db")
	v.SetDefault("scan.app_domain", "whop.com")
	v.SetDefault("scan.timeout_secs", 30)
	v.SetDefault("scan.settle_ms", 1500)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.body_limit_kb", 2048)
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.rate_per_minute", 30)
	v.SetDefault("batch.max_attempts", 3)
	v.SetDefault("discovery.timeout_secs", 20)
	v.SetDefault("discovery.max_urls", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
