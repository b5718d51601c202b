// Package config loads plansmith settings using Viper.
//
// Values come from, in increasing priority: built-in defaults, a YAML file
// (--config or ./plansmith.yaml), and PLANSMITH_* environment variables.
// A .env file in the working directory is loaded first so that provider
// credentials can live next to the project without being exported.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/log"
	"github.com/felixgeelhaar/plansmith/internal/pipeline"
	"github.com/felixgeelhaar/plansmith/internal/provider"
	"github.com/felixgeelhaar/plansmith/internal/telemetry"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "PLANSMITH"

// DefaultConfigName is the file looked up in the working directory
const DefaultConfigName = "plansmith"

// Backend names
const (
	BackendHeuristic = "heuristic"
	BackendLLM       = "llm"
)

// Config holds the application configuration.
type Config struct {
	Pipeline  pipeline.Options          `mapstructure:"pipeline" yaml:"pipeline"`
	Backend   BackendConfig             `mapstructure:"backend" yaml:"backend"`
	Providers []provider.ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Log       LogConfig                 `mapstructure:"log" yaml:"log"`
	Telemetry telemetry.Config          `mapstructure:"telemetry" yaml:"telemetry"`
	Store     StoreConfig               `mapstructure:"store" yaml:"store"`
	Server    ServerConfig              `mapstructure:"server" yaml:"server"`
}

// BackendConfig selects the generation capability
type BackendConfig struct {
	// Name is heuristic or llm
	Name string `mapstructure:"name" yaml:"name"`
	// Provider names the provider entry used by the llm backend. Empty
	// picks the first enabled provider.
	Provider string `mapstructure:"provider" yaml:"provider"`
	// Model overrides the provider's default model
	Model string `mapstructure:"model" yaml:"model"`
	// MaxTokens bounds each response of the llm backend
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
	// ProvidersFile is an optional providers.yaml merged after the
	// providers list
	ProvidersFile string `mapstructure:"providers_file" yaml:"providers_file"`
}

// LogConfig holds the logger settings
type LogConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	Format    string `mapstructure:"format" yaml:"format"`
	AddSource bool   `mapstructure:"add_source" yaml:"add_source"`
}

// StoreConfig holds the plan store settings
type StoreConfig struct {
	// Path is the SQLite database file
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Pipeline: pipeline.DefaultOptions(),
		Backend: BackendConfig{
			Name:      BackendHeuristic,
			MaxTokens: 4000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: telemetry.DefaultConfig(),
		Store: StoreConfig{
			Path: ".plansmith/plans.db",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("pipeline.max_stage_retries", d.Pipeline.MaxStageRetries)
	v.SetDefault("pipeline.max_call_retries", d.Pipeline.MaxCallRetries)
	v.SetDefault("pipeline.call_timeout", d.Pipeline.CallTimeout)
	v.SetDefault("pipeline.call_backoff", d.Pipeline.CallBackoff)
	v.SetDefault("pipeline.concurrency", d.Pipeline.Concurrency)
	v.SetDefault("pipeline.requests_per_second", d.Pipeline.RequestsPerSecond)
	v.SetDefault("pipeline.observer_buffer", d.Pipeline.ObserverBuffer)
	v.SetDefault("pipeline.min_tasks_per_feature", d.Pipeline.MinTasksPerFeature)
	v.SetDefault("pipeline.max_tasks_per_feature", d.Pipeline.MaxTasksPerFeature)
	v.SetDefault("pipeline.max_criteria_per_task", d.Pipeline.MaxCriteriaPerTask)
	v.SetDefault("pipeline.max_prompt_chars", d.Pipeline.MaxPromptChars)
	v.SetDefault("pipeline.export_partial", d.Pipeline.ExportPartial)

	v.SetDefault("backend.name", d.Backend.Name)
	v.SetDefault("backend.provider", d.Backend.Provider)
	v.SetDefault("backend.model", d.Backend.Model)
	v.SetDefault("backend.max_tokens", d.Backend.MaxTokens)
	v.SetDefault("backend.providers_file", d.Backend.ProvidersFile)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.add_source", d.Log.AddSource)

	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.service_version", d.Telemetry.ServiceVersion)
	v.SetDefault("telemetry.environment", d.Telemetry.Environment)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
}

// Load reads configuration from file and environment. An explicit path
// must exist; without one, ./plansmith.yaml is used when present.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(path)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrCodeConfigLoad, "read config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "decode config", err)
	}

	if err := cfg.resolveProviders(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrap(errors.ErrCodeConfigLoad, fmt.Sprintf("load %s", path), err)
	}
	return nil
}

// resolveProviders merges the providers file and expands ${VAR} references
func (c *Config) resolveProviders(getenv func(string) string) error {
	if c.Backend.ProvidersFile != "" {
		pc, err := provider.LoadProvidersConfig(c.Backend.ProvidersFile)
		if err != nil {
			return err
		}
		c.Providers = append(c.Providers, pc.Providers...)
	}
	for i := range c.Providers {
		c.Providers[i].Expand(getenv)
	}
	return nil
}

// ProvidersConfig returns the providers section in the shape the provider
// registry loads
func (c *Config) ProvidersConfig() *provider.ProvidersConfig {
	return &provider.ProvidersConfig{Providers: c.Providers}
}

// LoggerConfig converts the log section for log.New
func (c *Config) LoggerConfig() log.Config {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(c.Log.Level)
	lc.Format = log.ParseFormat(c.Log.Format)
	lc.AddSource = c.Log.AddSource
	lc.ServiceName = c.Telemetry.ServiceName
	lc.ServiceVersion = c.Telemetry.ServiceVersion
	return lc
}
