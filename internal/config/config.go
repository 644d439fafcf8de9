package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"etl-records/internal/chain"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// Supported sink back-ends.
const (
	SinkLog   = "log"
	SinkCSV   = "csv"
	SinkJSONL = "jsonl"
	SinkMongo = "mongo"
	SinkKafka = "kafka"
)

type SinkConfig struct {
	Type string `yaml:"type" json:"type"`
	CSV  struct {
		OutputDir string `yaml:"output_dir" json:"output_dir"`
	} `yaml:"csv" json:"csv"`
	JSONL struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"jsonl" json:"jsonl"`
	Mongo struct {
		URI        string `yaml:"uri" json:"uri"`
		Database   string `yaml:"database" json:"database"`
		Collection string `yaml:"collection" json:"collection"`
		BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	} `yaml:"mongo" json:"mongo"`
	Kafka struct {
		BootstrapServers string `yaml:"bootstrap_servers" json:"bootstrap_servers"`
		Topic            string `yaml:"topic" json:"topic"`
	} `yaml:"kafka" json:"kafka"`
}

// SinksConfig holds one success sink per record kind plus the rejection
// sink.
type SinksConfig struct {
	AccessLog   SinkConfig `yaml:"access_log" json:"access_log"`
	Transaction SinkConfig `yaml:"transaction" json:"transaction"`
	SystemError SinkConfig `yaml:"system_error" json:"system_error"`
	Rejected    SinkConfig `yaml:"rejected" json:"rejected"`
}

// Named returns every sink configuration keyed by its sink name.
func (s *SinksConfig) Named() map[string]*SinkConfig {
	return map[string]*SinkConfig{
		"access_log":   &s.AccessLog,
		"transaction":  &s.Transaction,
		"system_error": &s.SystemError,
		"rejected":     &s.Rejected,
	}
}

type RetryConfig struct {
	Attempts int `yaml:"attempts" json:"attempts"`
	DelayMS  int `yaml:"delay_ms" json:"delay_ms"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr string `yaml:"addr"`
}

type APIConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	// Input is a file path or http(s) URL of the JSON batch.
	Input    string        `yaml:"input"`
	LogLevel string        `yaml:"log_level"`
	Rules    chain.Rules   `yaml:"rules"`
	Sinks    SinksConfig   `yaml:"sinks"`
	Retry    RetryConfig   `yaml:"retry"`
	Metrics  MetricsConfig `yaml:"metrics"`
	API      APIConfig     `yaml:"api"`
}

// LoadEnv reads KEY=VALUE pairs from an env file into the process
// environment. A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.Debugf("env file %s not found, skipping", path)
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads and unmarshals the configuration file located at the given path,
// overlays environment overrides, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := ioutil.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	// Resolve relative file locations against the config file directory.
	cfgDir := filepath.Dir(absPath)
	cfg.Input = resolve(cfgDir, cfg.Input)
	for _, sc := range cfg.Sinks.Named() {
		sc.CSV.OutputDir = resolve(cfgDir, sc.CSV.OutputDir)
		sc.JSONL.Path = resolve(cfgDir, sc.JSONL.Path)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays values taken from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("INGEST_INPUT"); v != "" {
		c.Input = v
	}
	if v := os.Getenv("INGEST_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		c.API.Port = v
	}

	mongoURL := os.Getenv("MONGODB_URL")
	kafkaServers := os.Getenv("KAFKA_BOOTSTRAP_SERVER")
	for _, sc := range c.Sinks.Named() {
		if sc.Type == SinkMongo && sc.Mongo.URI == "" {
			sc.Mongo.URI = mongoURL
		}
		if sc.Type == SinkKafka && sc.Kafka.BootstrapServers == "" {
			sc.Kafka.BootstrapServers = kafkaServers
		}
	}
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.DelayMS == 0 {
		c.Retry.DelayMS = 1500
	}
	if c.API.Port == "" {
		c.API.Port = "8080"
	}
	for _, sc := range c.Sinks.Named() {
		if sc.Type == "" {
			sc.Type = SinkLog
		}
	}
	c.Rules = c.Rules.WithDefaults()
}

// Validate checks that every sink is fully configured.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.Rules.AccessLog.MinStatus > c.Rules.AccessLog.MaxStatus {
		return fmt.Errorf("rules.access_log.min_status must not exceed max_status")
	}
	for name, sc := range c.Sinks.Named() {
		if err := sc.validate(); err != nil {
			return fmt.Errorf("sinks.%s: %w", name, err)
		}
	}
	return nil
}

func (sc *SinkConfig) validate() error {
	switch sc.Type {
	case SinkLog:
	case SinkCSV:
		if sc.CSV.OutputDir == "" {
			return fmt.Errorf("csv.output_dir is required when type is csv")
		}
	case SinkJSONL:
		if sc.JSONL.Path == "" {
			return fmt.Errorf("jsonl.path is required when type is jsonl")
		}
	case SinkMongo:
		if sc.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri (or MONGODB_URL) is required when type is mongo")
		}
		if sc.Mongo.Database == "" || sc.Mongo.Collection == "" {
			return fmt.Errorf("mongo.database and mongo.collection are required when type is mongo")
		}
	case SinkKafka:
		if sc.Kafka.BootstrapServers == "" {
			return fmt.Errorf("kafka.bootstrap_servers (or KAFKA_BOOTSTRAP_SERVER) is required when type is kafka")
		}
		if sc.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when type is kafka")
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", sc.Type)
	}
	return nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || isURL(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func isURL(p string) bool {
	return len(p) > 7 && (p[:7] == "http://" || (len(p) > 8 && p[:8] == "https://"))
}
