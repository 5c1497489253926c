// Package config holds the configuration of the typereg command: which
// schema sources fill the type registry and how.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/fairblock/typereg/schemas"
)

const (
	// EnvPrefix is the prefix of environment variables that override
	// configuration values, e.g. TYPEREG_LOG_LEVEL.
	EnvPrefix = "TYPEREG"

	// DefaultConfigName is the base name of the config file looked up when no
	// file is given explicitly.
	DefaultConfigName = "typereg"
)

// Source kinds.
const (
	KindProto      = "proto"
	KindProtoset   = "protoset"
	KindGlobal     = "global"
	KindReflection = "reflection"
)

// Config is the root of the configuration file.
type Config struct {
	LogLevel      string         `yaml:"log_level" mapstructure:"log_level"`
	Strict        bool           `yaml:"strict" mapstructure:"strict"`                 // Fail on type URLs that sources define differently
	IncludeNested bool           `yaml:"include_nested" mapstructure:"include_nested"` // Register nested messages too
	Sources       []SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// SourceConfig describes one schema source. Which fields apply depends on
// Kind.
type SourceConfig struct {
	Kind        string        `yaml:"kind" mapstructure:"kind"`
	ImportPaths []string      `yaml:"import_paths" mapstructure:"import_paths"` // proto
	Files       []string      `yaml:"files" mapstructure:"files"`               // proto, optional
	Path        string        `yaml:"path" mapstructure:"path"`                 // protoset
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`         // reflection
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`           // reflection, optional
	Packages    []string      `yaml:"packages" mapstructure:"packages"`
}

// NewViper returns a viper instance that reads configFile, or a file named
// typereg.yaml in the working directory if configFile is empty, and that
// honors TYPEREG_* environment variables. A missing default file is not an
// error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("log_level", zerolog.LevelInfoValue)
	// keys need a default for environment overrides to be decoded
	v.SetDefault("strict", false)
	v.SetDefault("include_nested", false)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("sources: at least one source is required"))
	}
	for i, src := range c.Sources {
		if err := src.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that the fields required by the source's kind are set.
func (s SourceConfig) Validate() error {
	switch s.Kind {
	case KindProto:
		if len(s.ImportPaths) == 0 {
			return errors.New("proto source requires import_paths")
		}
	case KindProtoset:
		if s.Path == "" {
			return errors.New("protoset source requires path")
		}
	case KindReflection:
		if s.Endpoint == "" {
			return errors.New("reflection source requires endpoint")
		}
		if s.Timeout < 0 {
			return fmt.Errorf("timeout must not be negative, got %v", s.Timeout)
		}
	case KindGlobal:
	case "":
		return errors.New("kind is required")
	default:
		return fmt.Errorf("unknown kind %q, expected one of %s, %s, %s, %s",
			s.Kind, KindProto, KindProtoset, KindGlobal, KindReflection)
	}
	return nil
}

// Level returns the configured log level. Invalid levels, which Validate
// rejects, map to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Sources builds the schema sources in the order they are configured.
func (c *Config) Sources() []schemas.Source {
	sources := make([]schemas.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		opts := schemas.Options{IncludeNested: c.IncludeNested, Packages: sc.Packages}
		switch sc.Kind {
		case KindProto:
			sources = append(sources, &schemas.ProtoSource{ImportPaths: sc.ImportPaths, Files: sc.Files, Options: opts})
		case KindProtoset:
			sources = append(sources, &schemas.ProtosetSource{Path: sc.Path, Options: opts})
		case KindGlobal:
			sources = append(sources, &schemas.GlobalSource{Options: opts})
		case KindReflection:
			sources = append(sources, &schemas.ReflectionSource{Endpoint: sc.Endpoint, Timeout: sc.Timeout, Options: opts})
		}
	}
	return sources
}

// Loader returns a loader for the configured sources.
func (c *Config) Loader(logger zerolog.Logger) *schemas.Loader {
	return &schemas.Loader{Sources: c.Sources(), Strict: c.Strict, Logger: logger}
}
