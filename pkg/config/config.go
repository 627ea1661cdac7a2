package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Redis   RedisConfig   `yaml:"redis"`
	Queue   QueueConfig   `yaml:"queue"`
	Logger  LoggerConfig  `yaml:"logger"`
	Routing RoutingConfig `yaml:"routing"`

	Notification NotificationConfig `yaml:"notification"`
}

// NotificationConfig operator alerting configuration
type NotificationConfig struct {
	FeishuWebhookURL string `yaml:"feishu_webhook_url"` // empty disables alerts
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // API key for operator endpoints (optional, if empty, auth is disabled)
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig completion-event queue configuration
type QueueConfig struct {
	Concurrency int `yaml:"concurrency"` // queue processing concurrency
	MaxRetry    int `yaml:"max_retry"`   // maximum retry count per event
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// RoutingConfig routing engine configuration
type RoutingConfig struct {
	MaxRedirectHops    int     `yaml:"max_redirect_hops"`    // override chain hop limit
	OverloadThreshold  float64 `yaml:"overload_threshold"`   // workload fraction that throttles an astrologer
	ReleaseThreshold   float64 `yaml:"release_threshold"`    // workload fraction that lifts the throttle
	RebalanceInterval  int     `yaml:"rebalance_interval"`   // seconds between rebalance passes
	RuleRefreshSeconds int     `yaml:"rule_refresh_seconds"` // rule cache refresh interval
	DirectorySync      int     `yaml:"directory_sync"`       // seconds between directory sync passes
	PresenceTTL        int     `yaml:"presence_ttl"`         // directory presence TTL (seconds)
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return err
	}

	GlobalConfig = &cfg
	return nil
}

// applyDefaults fills unset routing parameters with safe defaults
func applyDefaults(cfg *Config) {
	if cfg.Routing.MaxRedirectHops <= 0 {
		cfg.Routing.MaxRedirectHops = 5
	}
	if cfg.Routing.OverloadThreshold <= 0 || cfg.Routing.OverloadThreshold > 1 {
		cfg.Routing.OverloadThreshold = 0.9
	}
	if cfg.Routing.ReleaseThreshold <= 0 || cfg.Routing.ReleaseThreshold > 1 {
		cfg.Routing.ReleaseThreshold = 0.6
	}
	if cfg.Routing.RebalanceInterval <= 0 {
		cfg.Routing.RebalanceInterval = 60
	}
	if cfg.Routing.RuleRefreshSeconds <= 0 {
		cfg.Routing.RuleRefreshSeconds = 30
	}
	if cfg.Routing.DirectorySync <= 0 {
		cfg.Routing.DirectorySync = 30
	}
	if cfg.Routing.PresenceTTL <= 0 {
		cfg.Routing.PresenceTTL = 300
	}
	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = 10
	}
	if cfg.Queue.MaxRetry < 0 {
		cfg.Queue.MaxRetry = 3
	}
}

func validate(cfg *Config) error {
	if cfg.Routing.ReleaseThreshold >= cfg.Routing.OverloadThreshold {
		return fmt.Errorf("routing: release_threshold (%.2f) must be below overload_threshold (%.2f)",
			cfg.Routing.ReleaseThreshold, cfg.Routing.OverloadThreshold)
	}
	return nil
}
