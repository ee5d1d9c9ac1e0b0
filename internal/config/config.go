package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the service
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Items       []ItemConfig      `mapstructure:"items"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Recorder    RecorderConfig    `mapstructure:"recorder"`
	Importer    ImporterConfig    `mapstructure:"importer"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	GRPCPort       int     `mapstructure:"grpc_port"`
	HTTPPort       int     `mapstructure:"http_port"`
	CacheSize      int     `mapstructure:"cache_size"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type PersistenceConfig struct {
	// Default is the id of the service used when a query names none.
	Default  string          `mapstructure:"default"`
	Timezone string          `mapstructure:"timezone"`
	PageSize int             `mapstructure:"page_size"`
	Services []ServiceConfig `mapstructure:"services"`
}

// ServiceConfig describes one persistence service. Type is one of memory,
// postgres or sqlite; DSN is a connection string or a file path.
type ServiceConfig struct {
	ID    string `mapstructure:"id"`
	Type  string `mapstructure:"type"`
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ItemConfig declares an item. Groups list their members and the function
// combining them.
type ItemConfig struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"`
	Unit     string   `mapstructure:"unit"`
	Function string   `mapstructure:"function"`
	Members  []string `mapstructure:"members"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	QoS      int    `mapstructure:"qos"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RecorderConfig struct {
	// Strategy is everyChange or everyUpdate.
	Strategy string `mapstructure:"strategy"`
	// Cron, when set, additionally snapshots every item on that schedule.
	Cron string `mapstructure:"cron"`
}

type ImporterConfig struct {
	URL      string        `mapstructure:"url"`
	Items    []string      `mapstructure:"items"`
	Lookback time.Duration `mapstructure:"lookback"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file, expanding environment variables
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First unmarshal into a map to handle type conversions
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	// Convert the map to YAML again
	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.cache_size", 1000)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("persistence.default", "memory")
	v.SetDefault("persistence.timezone", "UTC")
	v.SetDefault("persistence.page_size", 100)
	v.SetDefault("persistence.services", []map[string]interface{}{
		{"id": "memory", "type": "memory"},
	})

	v.SetDefault("mqtt.topic", "items/+/state")
	v.SetDefault("mqtt.client_id", "itemhistory")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("kafka.topic", "item-states")
	v.SetDefault("kafka.group_id", "itemhistory")

	v.SetDefault("recorder.strategy", "everyChange")

	v.SetDefault("importer.lookback", "720h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks references between sections.
func (c *Config) Validate() error {
	ids := make(map[string]bool, len(c.Persistence.Services))
	for _, s := range c.Persistence.Services {
		switch s.Type {
		case "memory", "postgres", "sqlite":
		default:
			return fmt.Errorf("%w: service %q has unknown type %q", ErrInvalid, s.ID, s.Type)
		}
		if s.ID == "" || ids[s.ID] {
			return fmt.Errorf("%w: service id %q is empty or duplicated", ErrInvalid, s.ID)
		}
		ids[s.ID] = true
	}
	if c.Persistence.Default != "" && !ids[c.Persistence.Default] {
		return fmt.Errorf("%w: default service %q is not configured", ErrInvalid, c.Persistence.Default)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Recorder.Strategy {
	case "everyChange", "everyUpdate":
	default:
		return fmt.Errorf("%w: unknown recorder strategy %q", ErrInvalid, c.Recorder.Strategy)
	}
	for _, it := range c.Items {
		if it.Name == "" {
			return fmt.Errorf("%w: item without name", ErrInvalid)
		}
		if it.Type == "group" && len(it.Members) == 0 {
			return fmt.Errorf("%w: group %q has no members", ErrInvalid, it.Name)
		}
	}
	return nil
}

// Location is the zone "now" is taken in.
func (c *Config) Location() (*time.Location, error) {
	if c.Persistence.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Persistence.Timezone)
}
