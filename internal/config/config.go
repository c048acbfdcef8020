package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/igefined/orderbook-sampler/internal/domain"
)

const (
	DataTypeOrderBooks   = "orderbooks"
	DataTypePublicTrades = "publictrades"

	OutputRaw     = "raw"
	OutputNumeric = "numeric"

	SinkFile   = "file"
	SinkSQLite = "sqlite"
	SinkRedis  = "redis"
	SinkKafka  = "kafka"
)

type Config struct {
	Sampling  SamplingConfig  `yaml:"sampling"`
	Gate      GateConfig      `yaml:"gate"`
	ByBit     ByBitConfig     `yaml:"bybit"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type SamplingConfig struct {
	Symbol       string        `yaml:"symbol"`
	Exchanges    []string      `yaml:"exchanges"`
	DataType     string        `yaml:"data_type"`
	OutputFormat string        `yaml:"output_format"`
	Verbose      int           `yaml:"verbose"`
	MinInterval  time.Duration `yaml:"min_interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	Stop         StopConfig    `yaml:"stop"`
	Retry        RetryConfig   `yaml:"retry"`
}

// StopConfig holds the raw stop settings. At most one of MinCount and
// TargetTime may be set; with neither, Elapsed applies.
type StopConfig struct {
	MinCount   int           `yaml:"min_count"`
	TargetTime string        `yaml:"target_time"`
	Elapsed    time.Duration `yaml:"elapsed"`
}

type RetryConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
}

type GateConfig struct {
	WsURL     string `yaml:"ws_url"`
	RestURL   string `yaml:"rest_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Depth     int    `yaml:"depth"`
}

type ByBitConfig struct {
	RestURL string `yaml:"rest_url"`
	Depth   int    `yaml:"depth"`
}

type SyntheticConfig struct {
	Symbols []string      `yaml:"symbols"`
	Latency time.Duration `yaml:"latency"`
}

type SinksConfig struct {
	Enabled []string     `yaml:"enabled"`
	File    FileConfig   `yaml:"file"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
	Kafka   KafkaConfig  `yaml:"kafka"`
}

type FileConfig struct {
	OutputDir string `yaml:"output_dir"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Symbol:       "BTC/USDT",
			Exchanges:    []string{"synthetic"},
			DataType:     DataTypeOrderBooks,
			OutputFormat: OutputRaw,
			Verbose:      1,
			FetchTimeout: 10 * time.Second,
			Stop: StopConfig{
				Elapsed: 60 * time.Second,
			},
			Retry: RetryConfig{
				InitialBackoff: 250 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
				BackoffFactor:  2.0,
			},
		},
		Gate: GateConfig{
			WsURL:   "wss://api.gateio.ws/ws/v4/",
			RestURL: "https://api.gateio.ws/api/v4",
			Depth:   10,
		},
		ByBit: ByBitConfig{
			RestURL: "https://api.bybit.com",
			Depth:   50,
		},
		Synthetic: SyntheticConfig{
			Symbols: []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
			Latency: 50 * time.Millisecond,
		},
		Sinks: SinksConfig{
			File:   FileConfig{OutputDir: "files"},
			SQLite: SQLiteConfig{Path: "data/samples.db"},
			Redis:  RedisConfig{TTL: 24 * time.Hour},
			Kafka:  KafkaConfig{Topic: "orderbook.samples"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	s := &c.Sampling

	s.Symbol = getEnv("SYMBOL", s.Symbol)
	s.Exchanges = getEnvList("EXCHANGES", s.Exchanges)
	s.DataType = getEnv("DATA_TYPE", s.DataType)
	s.OutputFormat = getEnv("OUTPUT_FORMAT", s.OutputFormat)
	if s.Verbose, err = getEnvInt("VERBOSE", s.Verbose); err != nil {
		return err
	}
	if s.MinInterval, err = getEnvDuration("POLL_MIN_INTERVAL", s.MinInterval); err != nil {
		return err
	}
	if s.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", s.FetchTimeout); err != nil {
		return err
	}
	if s.Stop.MinCount, err = getEnvInt("STOP_MIN_COUNT", s.Stop.MinCount); err != nil {
		return err
	}
	s.Stop.TargetTime = getEnv("STOP_TARGET_TIME", s.Stop.TargetTime)
	if s.Stop.Elapsed, err = getEnvDuration("STOP_ELAPSED", s.Stop.Elapsed); err != nil {
		return err
	}
	if s.Retry.InitialBackoff, err = getEnvDuration("RETRY_INITIAL_BACKOFF", s.Retry.InitialBackoff); err != nil {
		return err
	}
	if s.Retry.MaxBackoff, err = getEnvDuration("RETRY_MAX_BACKOFF", s.Retry.MaxBackoff); err != nil {
		return err
	}
	if s.Retry.BackoffFactor, err = getEnvFloat("RETRY_BACKOFF_FACTOR", s.Retry.BackoffFactor); err != nil {
		return err
	}

	c.Gate.WsURL = getEnv("GATE_WS_URL", c.Gate.WsURL)
	c.Gate.RestURL = getEnv("GATE_REST_URL", c.Gate.RestURL)
	c.Gate.APIKey = getEnv("GATE_API_KEY", c.Gate.APIKey)
	c.Gate.APISecret = getEnv("GATE_API_SECRET", c.Gate.APISecret)
	if c.Gate.Depth, err = getEnvInt("GATE_DEPTH", c.Gate.Depth); err != nil {
		return err
	}

	c.ByBit.RestURL = getEnv("BYBIT_REST_URL", c.ByBit.RestURL)
	if c.ByBit.Depth, err = getEnvInt("BYBIT_DEPTH", c.ByBit.Depth); err != nil {
		return err
	}

	c.Synthetic.Symbols = getEnvList("SYNTHETIC_SYMBOLS", c.Synthetic.Symbols)
	if c.Synthetic.Latency, err = getEnvDuration("SYNTHETIC_LATENCY", c.Synthetic.Latency); err != nil {
		return err
	}

	c.Sinks.Enabled = getEnvList("SINKS", c.Sinks.Enabled)
	c.Sinks.File.OutputDir = getEnv("FILE_OUTPUT_DIR", c.Sinks.File.OutputDir)
	c.Sinks.SQLite.Path = getEnv("SQLITE_PATH", c.Sinks.SQLite.Path)
	c.Sinks.Redis.Addr = getEnv("REDIS_ADDR", c.Sinks.Redis.Addr)
	c.Sinks.Redis.Password = getEnv("REDIS_PASSWORD", c.Sinks.Redis.Password)
	if c.Sinks.Redis.DB, err = getEnvInt("REDIS_DB", c.Sinks.Redis.DB); err != nil {
		return err
	}
	if c.Sinks.Redis.TTL, err = getEnvDuration("REDIS_TTL", c.Sinks.Redis.TTL); err != nil {
		return err
	}
	c.Sinks.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Sinks.Kafka.Brokers)
	c.Sinks.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Sinks.Kafka.Topic)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	return nil
}

// Validate reports the first problem as a domain.InvalidConfigurationError.
func (c *Config) Validate() error {
	s := c.Sampling

	if strings.TrimSpace(s.Symbol) == "" {
		return invalid("symbol is required")
	}
	if len(s.Exchanges) == 0 {
		return invalid("at least one exchange is required")
	}
	if s.DataType != DataTypeOrderBooks && s.DataType != DataTypePublicTrades {
		return invalid(fmt.Sprintf("unknown data type %q", s.DataType))
	}
	if s.OutputFormat != OutputRaw && s.OutputFormat != OutputNumeric {
		return invalid(fmt.Sprintf("unknown output format %q", s.OutputFormat))
	}
	if s.Verbose < 0 || s.Verbose > 2 {
		return invalid(fmt.Sprintf("verbose must be 0, 1 or 2, got %d", s.Verbose))
	}
	if s.Stop.MinCount < 0 {
		return invalid("stop min_count must not be negative")
	}
	if s.Stop.MinCount > 0 && s.Stop.TargetTime != "" {
		return invalid("only one of stop min_count and target_time may be set")
	}
	if s.Stop.TargetTime != "" {
		if _, err := time.Parse(time.RFC3339, s.Stop.TargetTime); err != nil {
			return invalid(fmt.Sprintf("stop target_time: %v", err))
		}
	}
	if s.Retry.BackoffFactor < 1 {
		return invalid("retry backoff_factor must be at least 1")
	}

	for _, name := range c.Sinks.Enabled {
		switch name {
		case SinkFile, SinkSQLite, SinkRedis, SinkKafka:
		default:
			return invalid(fmt.Sprintf("unknown sink %q", name))
		}
	}

	return nil
}

func invalid(reason string) error {
	return &domain.InvalidConfigurationError{Reason: reason}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return v, nil
}
