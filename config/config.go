package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CMDMESH_"

// DefaultFaultTemplate mirrors the dispatcher default.
const DefaultFaultTemplate = "An unexpected error occurred.\nTimestamp: `{{.Timestamp}}`"

// Duration is a time.Duration that decodes from strings such as "30s" in
// both TOML and environment variables.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds the settings of a bot process.
type Config struct {
	// Prefixes introduce a command in a chat line, e.g. "pf>".
	Prefixes []string `toml:"prefixes" env:"PREFIXES" envSeparator:","`
	// BotID enables "<@BotID>" and "<@!BotID>" as an additional prefix.
	BotID string `toml:"bot_id" env:"BOT_ID"`

	LogLevel  string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"LOG_FORMAT"`

	// MaxConcurrentInvocations bounds lines handled at once. Zero means
	// unbounded.
	MaxConcurrentInvocations int `toml:"max_concurrent_invocations" env:"MAX_CONCURRENT_INVOCATIONS"`
	// Timeout bounds a single dispatch. Zero disables it.
	Timeout Duration `toml:"timeout" env:"TIMEOUT"`
	// FaultTemplate is the text/template shown for contained faults.
	FaultTemplate string `toml:"fault_template" env:"FAULT_TEMPLATE"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Prefixes:                 []string{"pf>", "pf;", "pf!", "pf:"},
		LogLevel:                 "info",
		LogFormat:                "json",
		MaxConcurrentInvocations: 10,
		Timeout:                  Duration{30 * time.Second},
		FaultTemplate:            DefaultFaultTemplate,
	}
}

// Load builds a Config from defaults, then the TOML file at path (skipped
// when path is empty or the file does not exist), then CMDMESH_* environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data, cfg)
}

// Parse decodes TOML data over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse toml: %w", err)
	}
	return nil
}

// ParseEnv applies CMDMESH_* environment variables to cfg.
func ParseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	for i, p := range c.Prefixes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("prefixes[%d] is blank", i))
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.MaxConcurrentInvocations < 0 {
		errs = append(errs, errors.New("max_concurrent_invocations must not be negative"))
	}
	if c.Timeout.Duration < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the structured logger described by the config.
func (c Config) Logger() *logging.StructuredLogger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return logging.NewSlogLogger(level, c.LogFormat, false)
}
