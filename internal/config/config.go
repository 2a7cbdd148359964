// Package config provides configuration management for coco using Viper for
// loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the COCO_ prefix, and validation. It covers the watch tree,
// source and artifact naming, stylesheet output and logging.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"

	"github.com/conneroisu/coco/internal/logging"
)

// Defaults for every setting.
const (
	DefaultRoot        = "./"
	DefaultPattern     = "**/*.vue"
	DefaultIgnore      = "**/node_modules/**"
	DefaultSourceExt   = ".vue"
	DefaultOutputExt   = ".mjs"
	DefaultScopePrefix = "coco-v"
	DefaultIndent      = "\t"
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
)

// EnvPrefix prefixes environment overrides, e.g. COCO_LOG_LEVEL for
// log.level.
const EnvPrefix = "COCO"

// BindEnv makes v read overrides from COCO_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every key with v so environment overrides apply to
// keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("watch.root", DefaultRoot)
	v.SetDefault("watch.pattern", DefaultPattern)
	v.SetDefault("watch.ignore", []string{DefaultIgnore})
	v.SetDefault("build.source_ext", DefaultSourceExt)
	v.SetDefault("build.output_ext", DefaultOutputExt)
	v.SetDefault("build.scope_prefix", DefaultScopePrefix)
	v.SetDefault("build.indent", DefaultIndent)
	v.SetDefault("style.minify", true)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.file", "")
}

type Config struct {
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`
	Build BuildConfig `mapstructure:"build" yaml:"build"`
	Style StyleConfig `mapstructure:"style" yaml:"style"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

type WatchConfig struct {
	Root    string   `mapstructure:"root" yaml:"root"`
	Pattern string   `mapstructure:"pattern" yaml:"pattern"`
	Ignore  []string `mapstructure:"ignore" yaml:"ignore"`
}

type BuildConfig struct {
	SourceExt   string `mapstructure:"source_ext" yaml:"source_ext"`
	OutputExt   string `mapstructure:"output_ext" yaml:"output_ext"`
	ScopePrefix string `mapstructure:"scope_prefix" yaml:"scope_prefix"`
	// Indent is the indentation unit stripped from section content.
	Indent string `mapstructure:"indent" yaml:"indent"`
}

type StyleConfig struct {
	Minify bool `mapstructure:"minify" yaml:"minify"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File, when set, receives a copy of every log record.
	File string `mapstructure:"file" yaml:"file"`
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, fills in defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle ignore patterns set via viper (workaround for viper slice handling)
	if v.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}

	if config.Watch.Root == "" {
		config.Watch.Root = DefaultRoot
	}
	if config.Watch.Pattern == "" {
		config.Watch.Pattern = DefaultPattern
	}
	if !v.IsSet("watch.ignore") {
		config.Watch.Ignore = []string{DefaultIgnore}
	}

	if config.Build.SourceExt == "" {
		config.Build.SourceExt = DefaultSourceExt
	}
	if config.Build.OutputExt == "" {
		config.Build.OutputExt = DefaultOutputExt
	}
	if config.Build.ScopePrefix == "" {
		config.Build.ScopePrefix = DefaultScopePrefix
	}
	if config.Build.Indent == "" {
		config.Build.Indent = DefaultIndent
	}

	if v.IsSet("style.minify") {
		config.Style.Minify = v.GetBool("style.minify")
	} else {
		config.Style.Minify = true
	}

	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if !doublestar.ValidatePattern(config.Pattern) {
		return fmt.Errorf("invalid pattern %q", config.Pattern)
	}

	for _, pattern := range config.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	return nil
}

var attrName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

func validateBuildConfig(config *BuildConfig) error {
	for _, ext := range []string{config.SourceExt, config.OutputExt} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("extension %q must look like \".ext\"", ext)
		}
	}

	if config.SourceExt == config.OutputExt {
		return fmt.Errorf("source_ext and output_ext are both %q", config.SourceExt)
	}

	// The prefix ends up as a CSS attribute selector and an HTML attribute.
	if !attrName.MatchString(config.ScopePrefix) {
		return fmt.Errorf("scope_prefix %q is not a valid attribute name", config.ScopePrefix)
	}

	if strings.Trim(config.Indent, " \t") != "" {
		return fmt.Errorf("indent must be made of spaces or tabs")
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}

	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}

	return nil
}
