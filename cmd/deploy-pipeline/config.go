package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names. Each flag is also a viper key and, with EnvPrefix, an
// environment variable (e.g. DEPLOY_PIPELINE_HOST_SELECTOR). An environment
// variable always holds a single value, even for repeatable flags, because
// selectors such as "env in (a, b)" contain commas.
const (
	flagPipeline        = "pipeline"
	flagConfig          = "config"
	flagOutput          = "output"
	flagHostSelector    = "host-selector"
	flagPackageSelector = "package-selector"
	flagVars            = "vars"
	flagVarFiles        = "var-files"
	flagReverse         = "reverse"
	flagLogLevel        = "log-level"
	flagLogFormat       = "log-format"
	flagSettings        = "settings"

	// EnvPrefix is the prefix of environment variables overriding settings.
	EnvPrefix = "DEPLOY_PIPELINE"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Pipeline         string    `mapstructure:"pipeline"`
	Inventory        []string  `mapstructure:"config"`
	Output           string    `mapstructure:"output"`
	HostSelectors    []string  `mapstructure:"host-selector"`
	PackageSelectors []string  `mapstructure:"package-selector"`
	Vars             []string  `mapstructure:"vars"`
	VarFiles         []string  `mapstructure:"var-files"`
	Reverse          bool      `mapstructure:"reverse"`
	Log              LogConfig `mapstructure:"log"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	// ErrMissingPipeline is returned when no pipeline file is configured.
	ErrMissingPipeline = errors.New("a pipeline file is required")

	// ErrMissingInventory is returned when no inventory file is configured.
	ErrMissingInventory = errors.New("at least one inventory config file is required")
)

// Validate checks that the required inputs are present.
func (c *Config) Validate() error {
	if c.Pipeline == "" {
		return ErrMissingPipeline
	}
	if len(c.Inventory) == 0 {
		return ErrMissingInventory
	}
	return nil
}

// =============================================================================
// Config Loading
// =============================================================================

// RegisterFlags adds every configuration flag to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP(flagPipeline, "p", "", "pipeline definition file")
	flags.StringArrayP(flagConfig, "c", nil, "inventory file with hosts and packages (repeatable, later files win)")
	flags.StringP(flagOutput, "o", "", "write the rendered pipeline to this file instead of stdout")
	flags.StringArray(flagHostSelector, nil, "additional host selector, e.g. 'env in (prod)' (repeatable)")
	flags.StringArray(flagPackageSelector, nil, "additional package selector (repeatable)")
	flags.StringArray(flagVars, nil, "template variable as key=value (repeatable)")
	flags.StringArray(flagVarFiles, nil, "JSON file with template variables (repeatable)")
	flags.Bool(flagReverse, false, "run order groups in descending order")
	flags.String(flagLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(flagLogFormat, "json", "log format: json or text")
	flags.String(flagSettings, "", "optional settings file providing defaults for these flags")
}

// LoadConfig loads configuration from flags, environment and the optional
// settings file, in that order of precedence.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault(flagReverse, false)

	for _, name := range []string{
		flagPipeline, flagConfig, flagOutput, flagHostSelector,
		flagPackageSelector, flagVars, flagVarFiles, flagReverse,
	} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	if err := v.BindPFlag("log.level", flags.Lookup(flagLogLevel)); err != nil {
		return nil, fmt.Errorf("failed to bind flag %s: %w", flagLogLevel, err)
	}
	if err := v.BindPFlag("log.format", flags.Lookup(flagLogFormat)); err != nil {
		return nil, fmt.Errorf("failed to bind flag %s: %w", flagLogFormat, err)
	}

	// Load from file if provided
	settingsPath, _ := flags.GetString(flagSettings)
	if settingsPath != "" {
		v.SetConfigFile(settingsPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a file that exists but does not parse is an error
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse settings file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unmarshal config. The default hooks split strings on commas; without
	// them a string lifts into a one-element slice.
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to w so that stdout stays free for the rendered pipeline.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
