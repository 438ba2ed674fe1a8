package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	ClickUp  ClickUpConfig  `yaml:"clickup"`
	Zabbix   ZabbixConfig   `yaml:"zabbix"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type ClickUpConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	ListIDs string        `yaml:"list_ids"` // comma-separated
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

// Lists splits the comma-separated list IDs, dropping empty entries.
func (c ClickUpConfig) Lists() []string {
	var ids []string
	for _, id := range strings.Split(c.ListIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	DefaultRetryAfter time.Duration `yaml:"default_retry_after"`
}

type ZabbixConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Enabled reports whether the monitoring integration is configured.
func (z ZabbixConfig) Enabled() bool {
	return z.URL != "" && z.Token != ""
}

type SyncConfig struct {
	PageDelay       time.Duration `yaml:"page_delay"`
	ListDelay       time.Duration `yaml:"list_delay"`
	MaxPageErrors   int           `yaml:"max_page_errors"`
	StalenessWindow time.Duration `yaml:"staleness_window"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	CheckInterval   time.Duration `yaml:"check_interval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if len(cfg.ClickUp.Lists()) == 0 {
		return nil, fmt.Errorf("clickup.list_ids is empty")
	}
	if cfg.ClickUp.Token == "" {
		return nil, fmt.Errorf("clickup.token is empty")
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.ClickUp.BaseURL == "" {
		c.ClickUp.BaseURL = "https://api.clickup.com/api/v2"
	}
	if c.ClickUp.Timeout == 0 {
		c.ClickUp.Timeout = 60 * time.Second
	}
	if c.ClickUp.Retry.MaxAttempts == 0 {
		c.ClickUp.Retry.MaxAttempts = 3
	}
	if c.ClickUp.Retry.InitialBackoff == 0 {
		c.ClickUp.Retry.InitialBackoff = 1 * time.Second
	}
	if c.ClickUp.Retry.MaxBackoff == 0 {
		c.ClickUp.Retry.MaxBackoff = 30 * time.Second
	}
	if c.ClickUp.Retry.DefaultRetryAfter == 0 {
		c.ClickUp.Retry.DefaultRetryAfter = 5 * time.Second
	}
	if c.Sync.PageDelay == 0 {
		c.Sync.PageDelay = 500 * time.Millisecond
	}
	if c.Sync.ListDelay == 0 {
		c.Sync.ListDelay = 1 * time.Second
	}
	if c.Sync.MaxPageErrors == 0 {
		c.Sync.MaxPageErrors = 3
	}
	if c.Sync.StalenessWindow == 0 {
		c.Sync.StalenessWindow = 15 * time.Minute
	}
	if c.Sync.FreshnessWindow == 0 {
		c.Sync.FreshnessWindow = 1 * time.Hour
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
