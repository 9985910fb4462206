// Package config loads and validates the application configuration from a
// YAML file, GACUA_* environment variables, and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// GACUA_LLM_PLANNER_MODEL.
const EnvPrefix = "GACUA"

// Config is the root configuration object.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Computer ComputerConfig `mapstructure:"computer" yaml:"computer"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`
}

// LoggerConfig controls the zap logger and its rotated log file.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console format.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// LLMConfig selects the models and carries the provider credentials.
type LLMConfig struct {
	// APIKey authenticates against the Gemini API. Usually supplied via
	// GEMINI_API_KEY rather than the config file.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// PlannerModel drives the plan step of every turn.
	PlannerModel string `mapstructure:"planner_model" yaml:"planner_model"`
	// GroundingModel resolves element descriptions to bounding boxes.
	GroundingModel string `mapstructure:"grounding_model" yaml:"grounding_model"`
	// RequestsPerMinute caps outbound generate calls; zero disables limiting.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ComputerConfig locates the OS-automation service.
type ComputerConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StorageConfig locates the session store on disk.
type StorageConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// EventsConfig tunes the event hub.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// SetDefaults initializes default values on the viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "gacua")
	v.SetDefault("logger.log_file", "gacua.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- LLM --
	v.SetDefault("llm.planner_model", "gemini-2.5-pro")
	v.SetDefault("llm.grounding_model", "gemini-2.5-flash")
	v.SetDefault("llm.requests_per_minute", 0)

	// -- Computer --
	v.SetDefault("computer.endpoint", "http://127.0.0.1:8001/computer")
	v.SetDefault("computer.timeout", "120s")

	// -- Storage --
	v.SetDefault("storage.root", "~/.gacua/sessions")

	// -- Events --
	v.SetDefault("events.buffer_size", 256)
}

// NewViper builds a viper instance wired for GACUA_* environment overrides
// and an optional config file path.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.gacua")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}
	return v, nil
}

// NewConfigFromViper unmarshals, expands, and validates the configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("llm.api_key", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	root, err := homedir.Expand(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("expanding storage root: %w", err)
	}
	cfg.Storage.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.LLM.PlannerModel == "" {
		return fmt.Errorf("llm.planner_model is a required configuration field")
	}
	if c.LLM.GroundingModel == "" {
		return fmt.Errorf("llm.grounding_model is a required configuration field")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}
	if c.Computer.Endpoint == "" {
		return fmt.Errorf("computer.endpoint is a required configuration field")
	}
	if c.Computer.Timeout <= 0 {
		return fmt.Errorf("computer.timeout must be a positive duration")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is a required configuration field")
	}
	if c.Events.BufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be a positive integer")
	}
	return nil
}
