package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	LLM        LLM        `mapstructure:"llm"`
	SD         SD         `mapstructure:"sd"`
	Prompt     Prompt     `mapstructure:"prompt"`
	Caption    Caption    `mapstructure:"caption"`
	Compositor Compositor `mapstructure:"compositor"`
	Generation Generation `mapstructure:"generation"`
	Storage    Storage    `mapstructure:"storage"`
	Database   Database   `mapstructure:"database"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Retry      Retry      `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP port to listen on
}

// LLM holds configuration for the text-generation service
// (an OpenAI-compatible chat endpoint, e.g. Ollama).
type LLM struct {
	BaseURL string        `mapstructure:"base_url"` // e.g. http://localhost:11434/v1
	Model   string        `mapstructure:"model"`    // e.g. llama3.2:3b
	Timeout time.Duration `mapstructure:"timeout"`  // per-call timeout
}

// SD holds configuration for the Stable Diffusion WebUI txt2img endpoint.
type SD struct {
	BaseURL        string        `mapstructure:"base_url"` // e.g. http://127.0.0.1:7860
	Timeout        time.Duration `mapstructure:"timeout"`
	Steps          int           `mapstructure:"steps"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	SamplerName    string        `mapstructure:"sampler_name"`
	CfgScale       float64       `mapstructure:"cfg_scale"`
	RestoreFaces   bool          `mapstructure:"restore_faces"`
	NegativePrompt string        `mapstructure:"negative_prompt"`
	MaxAttempts    int           `mapstructure:"max_attempts"` // total attempts per request
}

// Prompt holds configuration for scene prompt generation.
type Prompt struct {
	MaxAttempts int `mapstructure:"max_attempts"` // total attempts per request
	MaxLength   int `mapstructure:"max_length"`   // max scene prompt length in runes
}

// Caption holds configuration for caption generation.
type Caption struct {
	MaxAttempts int    `mapstructure:"max_attempts"` // total attempts per request
	MaxLength   int    `mapstructure:"max_length"`   // max caption length in runes
	Fallback    string `mapstructure:"fallback"`     // caption used when generation fails
}

// Compositor holds configuration for caption rendering.
type Compositor struct {
	FontPath    string  `mapstructure:"font_path"`     // TTF file; empty means the built-in face
	MaxLines    int     `mapstructure:"max_lines"`     // max wrapped caption lines
	MinFontSize float64 `mapstructure:"min_font_size"` // smallest candidate font size
	TopBand     bool    `mapstructure:"top_band"`      // render the caption at the top instead of the bottom
}

// Generation holds pipeline-wide settings.
type Generation struct {
	OverallTimeout time.Duration `mapstructure:"overall_timeout"` // outer deadline for one request
	OutputSubdir   string        `mapstructure:"output_subdir"`   // storage subdirectory for artifacts
	MaxIdeaLength  int           `mapstructure:"max_idea_length"` // max idea length in runes
}

// Storage holds configuration for the artifact storage backend.
type Storage struct {
	Type       string `mapstructure:"type"`     // "local" or "s3"
	BaseDir    string `mapstructure:"base_dir"` // base directory for local storage
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Kafka holds configuration for the Kafka task queue.
type Kafka struct {
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines the retry policy for infrastructure calls (Kafka send/fetch/commit).
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv() {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
		"llm.base_url":         "LLM_BASE_URL",
		"llm.model":            "LLM_MODEL",
		"sd.base_url":          "SD_BASE_URL",
		"storage.access_key":   "STORAGE_ACCESS_KEY",
		"storage.secret_key":   "STORAGE_SECRET_KEY",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to read config")
	}

	mustBindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
