// Package config provides layered configuration for decaf runs: built-in
// defaults, an optional config file, DECAF_ environment variables and
// command-line flags, in increasing priority.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/decompiler/class"
)

var log = commonlog.GetLogger("decaf.config")

// EnvPrefix prefixes environment overrides, e.g. DECAF_DECOMPILER_WORKERS.
const EnvPrefix = "DECAF"

// Config holds all configuration for a run.
type Config struct {
	Decompiler DecompilerConfig `mapstructure:"decompiler"`
	Log        LogConfig        `mapstructure:"log"`
}

// DecompilerConfig holds the engine limits and switches.
type DecompilerConfig struct {
	Workers               int           `mapstructure:"workers"`
	MethodTimeout         time.Duration `mapstructure:"method_timeout"`
	MaxBlocks             int           `mapstructure:"max_blocks"`
	MaxFixpointIterations int           `mapstructure:"max_fixpoint_iterations"`
	MaxFinallyPasses      int           `mapstructure:"max_finally_passes"`
	UseMethodParameters   bool          `mapstructure:"use_method_parameters"`
	UseDebugVarNames      bool          `mapstructure:"use_debug_var_names"`
	RemoveEmptyRanges     bool          `mapstructure:"remove_empty_ranges"`
	StripNullChecks       bool          `mapstructure:"strip_null_checks"`
	RemoveBridges         bool          `mapstructure:"remove_bridges"`
	RenameFieldCollisions bool          `mapstructure:"rename_field_collisions"`
}

// LogConfig holds logging configuration. Verbosity is handed to
// commonlog.Configure; each step logs one more detailed level.
type LogConfig struct {
	Verbosity int    `mapstructure:"verbosity"`
	File      string `mapstructure:"file"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"workers":        "decompiler.workers",
	"method-timeout": "decompiler.method_timeout",
	"max-blocks":     "decompiler.max_blocks",
	"strip-null":     "decompiler.strip_null_checks",
	"keep-bridges":   "decompiler.remove_bridges",
	"verbose":        "log.verbosity",
	"log-file":       "log.file",
}

// AddFlags registers the flags Load understands.
func AddFlags(fs *pflag.FlagSet) {
	d := class.DefaultOptions()
	fs.Int("workers", d.Workers, "methods reconstructed in parallel")
	fs.Duration("method-timeout", d.Method.Timeout, "wall-clock budget per method (0 disables)")
	fs.Int("max-blocks", d.Method.MaxBlocks, "largest control-flow graph reconstructed")
	fs.Bool("strip-null", d.Method.StripNullChecks, "strip compiler-inserted null checks")
	fs.Bool("keep-bridges", !d.RemoveBridges, "keep synthetic accessors instead of inlining them")
	fs.CountP("verbose", "v", "increase log verbosity")
	fs.String("log-file", "", "write the log to a file instead of stderr")
}

// Load reads configuration from path, or from decaf.yaml in the working
// directory or ~/.config/decaf when path is empty. Flags changed on fs
// override every other source.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("decaf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/decaf")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			log.Debug("no config file, using defaults")
		case path != "" && os.IsNotExist(err):
			return nil, fmt.Errorf("config file %s: %w", path, err)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}
	return decode(v)
}

// LoadFromReader loads configuration from content in the given format.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return decode(v)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if name == "keep-bridges" {
			// inverted switch
			v.Set(key, f.Value.String() != "true")
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := class.DefaultOptions()
	v.SetDefault("decompiler.workers", d.Workers)
	v.SetDefault("decompiler.method_timeout", d.Method.Timeout)
	v.SetDefault("decompiler.max_blocks", d.Method.MaxBlocks)
	v.SetDefault("decompiler.max_fixpoint_iterations", d.Method.MaxFixpointIterations)
	v.SetDefault("decompiler.max_finally_passes", d.Method.MaxFinallyPasses)
	v.SetDefault("decompiler.use_method_parameters", d.UseMethodParameters)
	v.SetDefault("decompiler.use_debug_var_names", d.UseDebugVarNames)
	v.SetDefault("decompiler.remove_empty_ranges", d.Method.RemoveEmptyRanges)
	v.SetDefault("decompiler.strip_null_checks", d.Method.StripNullChecks)
	v.SetDefault("decompiler.remove_bridges", d.RemoveBridges)
	v.SetDefault("decompiler.rename_field_collisions", d.RenameFieldCollisions)

	v.SetDefault("log.verbosity", 0)
	v.SetDefault("log.file", "")
}

// Validate rejects limits that cannot be honoured.
func (c *Config) Validate() error {
	d := c.Decompiler
	if d.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if d.MethodTimeout < 0 {
		return fmt.Errorf("method timeout must not be negative")
	}
	if d.MaxBlocks < 1 || d.MaxFixpointIterations < 1 || d.MaxFinallyPasses < 1 {
		return fmt.Errorf("max_blocks, max_fixpoint_iterations and max_finally_passes must be positive")
	}
	return nil
}

// Options converts the configuration into engine options.
func (c *Config) Options() class.Options {
	d := c.Decompiler
	opts := class.DefaultOptions()
	opts.Workers = d.Workers
	opts.UseMethodParameters = d.UseMethodParameters
	opts.UseDebugVarNames = d.UseDebugVarNames
	opts.RemoveBridges = d.RemoveBridges
	opts.RenameFieldCollisions = d.RenameFieldCollisions
	opts.Method.Timeout = d.MethodTimeout
	opts.Method.MaxBlocks = d.MaxBlocks
	opts.Method.MaxFixpointIterations = d.MaxFixpointIterations
	opts.Method.MaxFinallyPasses = d.MaxFinallyPasses
	opts.Method.RemoveEmptyRanges = d.RemoveEmptyRanges
	opts.Method.StripNullChecks = d.StripNullChecks
	return opts
}
