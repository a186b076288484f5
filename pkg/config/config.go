package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/z-wentao/docscribe/pkg/language"
)

// Config is the application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Storage     StorageConfig     `yaml:"storage"`
	Events      EventsConfig      `yaml:"events"`
	Media       MediaConfig       `yaml:"media"`
	Languages   []LanguageConfig  `yaml:"languages"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port          int   `yaml:"port"`
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

type TranscriberConfig struct {
	Provider           string        `yaml:"provider"`         // vocapia | openai
	WorkerPoolSize     int           `yaml:"worker_pool_size"` // jobs run in parallel
	QueueSize          int           `yaml:"queue_size"`
	Retention          time.Duration `yaml:"retention"`
	JobTimeout         time.Duration `yaml:"job_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxSegmentDuration float64       `yaml:"max_segment_duration"` // seconds
	Vocapia            VocapiaConfig `yaml:"vocapia"`
	OpenAI             OpenAIConfig  `yaml:"openai"`
}

type VocapiaConfig struct {
	URL                string        `yaml:"url"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type StorageConfig struct {
	Type       string         `yaml:"type"` // memory | redis | postgres | hybrid
	Repository string         `yaml:"repository"`
	Redis      RedisConfig    `yaml:"redis"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type EventsConfig struct {
	Type     string         `yaml:"type"` // log | rabbitmq
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
}

type MediaConfig struct {
	TempDir string   `yaml:"temp_dir"`
	FFmpeg  string   `yaml:"ffmpeg"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Enabled reports whether media may be fetched from S3.
func (c S3Config) Enabled() bool {
	return c.Region != "" || c.Endpoint != ""
}

type LanguageConfig struct {
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
	Name  string `yaml:"name"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Environment variables that override the file.
const (
	EnvVocapiaURL      = "NUXEO_VOCAPIA_SERVICE_URL"
	EnvVocapiaUsername = "NUXEO_VOCAPIA_SERVICE_USERNAME"
	EnvVocapiaPassword = "NUXEO_VOCAPIA_SERVICE_PASSWORD"
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvLogLevel        = "LOG_LEVEL"
)

// LoadConfig reads the YAML file at configPath, applies the environment
// and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, os.Getenv)
}

// Parse is LoadConfig without the file system. getenv may be nil.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if getenv != nil {
		config.applyEnv(getenv)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Transcriber.Vocapia.URL, EnvVocapiaURL)
	set(&c.Transcriber.Vocapia.Username, EnvVocapiaUsername)
	set(&c.Transcriber.Vocapia.Password, EnvVocapiaPassword)
	set(&c.Transcriber.OpenAI.APIKey, EnvOpenAIKey)
	set(&c.Log.Level, EnvLogLevel)
}

// Validate fills defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 500 << 20
	}

	if err := c.Transcriber.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}

	switch c.Events.Type {
	case "":
		c.Events.Type = "log"
	case "log":
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return fmt.Errorf("events.rabbitmq.url is required")
		}
		if c.Events.RabbitMQ.QueueName == "" {
			c.Events.RabbitMQ.QueueName = "docscribe.events"
		}
	default:
		return fmt.Errorf("unknown events type %q", c.Events.Type)
	}

	if c.Media.TempDir == "" {
		c.Media.TempDir = os.TempDir()
	}
	if c.Media.FFmpeg == "" {
		c.Media.FFmpeg = "ffmpeg"
	}

	if _, err := c.LanguageTable(); err != nil {
		return err
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

func (t *TranscriberConfig) validate() error {
	switch t.Provider {
	case "", "vocapia":
		t.Provider = "vocapia"
		if t.Vocapia.URL == "" {
			return fmt.Errorf("transcriber.vocapia.url is required (or set %s)", EnvVocapiaURL)
		}
	case "openai":
		if t.OpenAI.APIKey == "" || t.OpenAI.APIKey == "your-openai-api-key-here" {
			return fmt.Errorf("transcriber.openai.api_key is required (or set %s)", EnvOpenAIKey)
		}
	default:
		return fmt.Errorf("unknown transcriber provider %q", t.Provider)
	}

	if t.WorkerPoolSize <= 0 {
		t.WorkerPoolSize = 2
	}
	if t.QueueSize <= 0 {
		t.QueueSize = 100
	}
	if t.Retention <= 0 {
		t.Retention = 5 * time.Minute
	}
	if t.JobTimeout <= 0 {
		t.JobTimeout = 30 * time.Minute
	}
	if t.ShutdownTimeout <= 0 {
		t.ShutdownTimeout = 10 * time.Second
	}
	if t.MaxSegmentDuration <= 0 {
		t.MaxSegmentDuration = 30
	}
	if t.Vocapia.Timeout <= 0 {
		t.Vocapia.Timeout = 10 * time.Minute
	}
	return nil
}

func (s *StorageConfig) validate() error {
	if s.Repository == "" {
		s.Repository = "default"
	}
	if s.Type == "" {
		s.Type = "memory"
	}

	needsRedis := s.Type == "redis" || s.Type == "hybrid"
	needsPostgres := s.Type == "postgres" || s.Type == "hybrid"
	if s.Type != "memory" && !needsRedis && !needsPostgres {
		return fmt.Errorf("unknown storage type %q", s.Type)
	}
	if needsRedis && s.Redis.Addr == "" {
		s.Redis.Addr = "localhost:6379"
	}
	if needsPostgres && s.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required for %s storage", s.Type)
	}
	return nil
}

// LanguageTable builds the configured language table, or the default one
// when none is configured.
func (c *Config) LanguageTable() (*language.Table, error) {
	if len(c.Languages) == 0 {
		return language.Default(), nil
	}
	entries := make([]language.Entry, len(c.Languages))
	for i, l := range c.Languages {
		entries[i] = language.Entry{Short: l.Short, Long: l.Long, Name: l.Name}
	}
	t, err := language.New(entries)
	if err != nil {
		return nil, fmt.Errorf("languages: %w", err)
	}
	return t, nil
}
