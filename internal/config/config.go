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
	ServiceNow ServiceNowConfig `yaml:"servicenow" mapstructure:"servicenow"`
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServiceNowConfig holds instance credentials and Table API paging settings.
type ServiceNowConfig struct {
	InstanceURL string           `yaml:"instance_url" mapstructure:"instance_url"`
	Username    string           `yaml:"username" mapstructure:"username"`
	Password    string           `yaml:"password" mapstructure:"password"`
	PageSize    int              `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64          `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries  int              `yaml:"max_retries" mapstructure:"max_retries"`
	MaxRecords  MaxRecordsConfig `yaml:"max_records" mapstructure:"max_records"`
}

// MaxRecordsConfig caps how many rows are fetched per record set. Zero means
// unlimited.
type MaxRecordsConfig struct {
	CIs       int `yaml:"cis" mapstructure:"cis"`
	Audit     int `yaml:"audit" mapstructure:"audit"`
	UserAudit int `yaml:"user_audit" mapstructure:"user_audit"`
	Users     int `yaml:"users" mapstructure:"users"`
}

// ScanConfig configures the staleness scan.
type ScanConfig struct {
	Concurrency           int    `yaml:"concurrency" mapstructure:"concurrency"`
	Schedule              string `yaml:"schedule" mapstructure:"schedule"`
	UserAuditLookbackDays int    `yaml:"user_audit_lookback_days" mapstructure:"user_audit_lookback_days"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// NotifyConfig configures post-scan Slack alerts.
type NotifyConfig struct {
	SlackToken        string `yaml:"slack_token" mapstructure:"slack_token"`
	SlackChannel      string `yaml:"slack_channel" mapstructure:"slack_channel"`
	SlackAPIURL       string `yaml:"slack_api_url" mapstructure:"slack_api_url"`
	CriticalThreshold int    `yaml:"critical_threshold" mapstructure:"critical_threshold"`
}

// Enabled reports whether Slack alerts are configured.
func (n NotifyConfig) Enabled() bool {
	return n.SlackToken != "" && n.SlackChannel != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for config.yaml in the working directory and tolerates its absence; an
// explicit path must exist.
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
	v.SetEnvPrefix("OWNERSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("servicenow.instance_url", "")
	v.SetDefault("servicenow.username", "")
	v.SetDefault("servicenow.password", "")
	v.SetDefault("servicenow.page_size", 1000)
	v.SetDefault("servicenow.timeout_secs", 30)
	v.SetDefault("servicenow.rate_per_sec", 10)
	v.SetDefault("servicenow.max_retries", 3)
	v.SetDefault("servicenow.max_records.cis", 0)
	v.SetDefault("servicenow.max_records.audit", 0)
	v.SetDefault("servicenow.max_records.user_audit", 0)
	v.SetDefault("servicenow.max_records.users", 0)
	v.SetDefault("scan.concurrency", 8)
	v.SetDefault("scan.schedule", "")
	v.SetDefault("scan.user_audit_lookback_days", 90)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ownership.db")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("notify.slack_token", "")
	v.SetDefault("notify.slack_channel", "")
	v.SetDefault("notify.slack_api_url", "")
	v.SetDefault("notify.critical_threshold", 1)
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
