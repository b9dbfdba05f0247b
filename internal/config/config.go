// Package config loads host configuration from defaults, an optional YAML
// file and EMBEDSVC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/maloquacious/embedsvc/internal/store"
)

// AppName names the per-user data directory.
const AppName = "embedsvc"

// EnvPrefix is the prefix for environment overrides, e.g. EMBEDSVC_DATA_DIR.
const EnvPrefix = "EMBEDSVC"

// InitFailurePolicy selects what happens when the store cannot be initialized.
type InitFailurePolicy string

const (
	// PolicyAbort stops startup with an error.
	PolicyAbort InitFailurePolicy = "abort"
	// PolicyContinueDegraded logs the error and starts the service without a store.
	PolicyContinueDegraded InitFailurePolicy = "continue_degraded"
)

// Config is the host configuration. The bind address and port of the
// embedded service are fixed and deliberately absent.
type Config struct {
	// DataDir holds userdata.db. Default: the per-user config dir + "/embedsvc"
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// OnInitFailure is abort or continue_degraded. Default: abort
	OnInitFailure InitFailurePolicy `mapstructure:"on_init_failure" validate:"oneof=abort continue_degraded" yaml:"on_init_failure"`

	// Seed is always, if_empty or never. Default: always
	Seed store.SeedMode `mapstructure:"seed" validate:"oneof=always if_empty never" yaml:"seed"`

	// DBBacked threads the store into /hello. Default: true
	DBBacked bool `mapstructure:"db_backed" yaml:"db_backed"`

	// ShutdownTimeout bounds the graceful drain; zero means no limit.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0" yaml:"shutdown_timeout"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of logger.Levels, any case. Validate upper-cases it.
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR" yaml:"level"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		DataDir:       store.DefaultDataDir(AppName),
		OnInitFailure: PolicyAbort,
		Seed:          store.SeedAlways,
		DBBacked:      true,
		Logging:       LoggingConfig{Level: "INFO"},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (EMBEDSVC_*)
//  2. Configuration file, when configPath is not empty
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("configuration file not found: %s", configPath)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate normalizes the log level and checks field constraints.
func Validate(cfg *Config) error {
	cfg.Logging.Level = strings.ToUpper(strings.TrimSpace(cfg.Logging.Level))
	return validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("on_init_failure", string(d.OnInitFailure))
	v.SetDefault("seed", string(d.Seed))
	v.SetDefault("db_backed", d.DBBacked)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
}
