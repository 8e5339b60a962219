// Package config loads pwexport settings from defaults, an optional YAML
// file, PWEXPORT_* environment variables (a .env file is honored) and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pwexport/internal/csvenc"
	"pwexport/internal/extract"
	"pwexport/internal/formatter"
	"pwexport/internal/logging"
	"pwexport/internal/models"
	"pwexport/internal/source"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PWEXPORT"

// Config holds all application configuration.
type Config struct {
	Extract ExtractConfig `mapstructure:"extract"`
	Logging LoggingConfig `mapstructure:"logging"`
	Source  SourceConfig  `mapstructure:"source"`
	Browser BrowserConfig `mapstructure:"browser"`
	Output  OutputConfig  `mapstructure:"output"`
}

// ExtractConfig controls the extraction engine.
type ExtractConfig struct {
	// MaxAttempts is the row count sampling budget.
	MaxAttempts int `mapstructure:"max_attempts"` // default: 10

	// TimeoutSeconds bounds the whole extraction.
	TimeoutSeconds int `mapstructure:"timeout_seconds"` // default: 600

	// ForcedRowCount repeats rows cyclically for volume testing. 0 disables it.
	ForcedRowCount int `mapstructure:"forced_row_count"`

	PollInterval time.Duration `mapstructure:"poll_interval"` // default: 1s
}

// Timeout returns TimeoutSeconds as a duration.
func (c ExtractConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig controls the console logger and the diagnostic log file.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"` // diagnostic log file; default: false
	Path    string `mapstructure:"path"`    // default: "pwexport.log"
	Level   string `mapstructure:"level"`   // default: "info"
	Format  string `mapstructure:"format"`  // "console" or "json"; default: "console"
}

// SourceConfig selects and addresses the source.
type SourceConfig struct {
	Name       string           `mapstructure:"name"` // default: "webvault"
	URL        string           `mapstructure:"url"`
	Snapshot   string           `mapstructure:"snapshot"`
	DetailWait time.Duration    `mapstructure:"detail_wait"` // default: 5s
	Selectors  source.Selectors `mapstructure:"selectors"`
}

// BrowserConfig controls the rod-launched browser.
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless"` // default: true
	Proxy    string `mapstructure:"proxy"`
	Bin      string `mapstructure:"bin"`
}

// OutputConfig controls where and how the result is written.
type OutputConfig struct {
	Path     string `mapstructure:"path"`     // empty writes to stdout
	Format   string `mapstructure:"format"`   // empty infers from Path, then csv
	Encoding string `mapstructure:"encoding"` // default: "utf-8"
}

// flagKeys maps configuration keys to the flag names bound to them.
var flagKeys = map[string]string{
	"extract.max_attempts":     "max-attempts",
	"extract.timeout_seconds":  "timeout",
	"extract.forced_row_count": "forced-rows",
	"logging.enabled":          "log",
	"logging.path":             "log-file",
	"logging.level":            "log-level",
	"source.name":              "source",
	"source.url":               "url",
	"source.snapshot":          "snapshot",
	"browser.proxy":            "proxy",
	"output.path":              "output",
	"output.format":            "format",
	"output.encoding":          "encoding",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("extract.max_attempts", 10)
	v.SetDefault("extract.timeout_seconds", 600)
	v.SetDefault("extract.forced_row_count", 0)
	v.SetDefault("extract.poll_interval", extract.DefaultPollInterval)

	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.path", "pwexport.log")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("source.name", "webvault")
	v.SetDefault("source.url", "")
	v.SetDefault("source.snapshot", "")
	v.SetDefault("source.detail_wait", 5*time.Second)
	d := source.DefaultSelectors()
	v.SetDefault("source.selectors.row", d.Row)
	v.SetDefault("source.selectors.row_target", d.RowTarget)
	v.SetDefault("source.selectors.detail", d.Detail)
	v.SetDefault("source.selectors.detail_url", d.DetailURL)
	v.SetDefault("source.selectors.username", d.Username)
	v.SetDefault("source.selectors.password", d.Password)
	v.SetDefault("source.selectors.close_button", d.CloseButton)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.bin", "")

	v.SetDefault("output.path", "")
	v.SetDefault("output.format", "")
	v.SetDefault("output.encoding", csvenc.EncodingUTF8)
}

// Load builds the configuration. cfgFile may be empty, in which case
// ./pwexport.yaml is read when present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.BindEnv("browser.proxy", EnvPrefix+"_BROWSER_PROXY", EnvPrefix+"_PROXY"); err != nil {
		return nil, fmt.Errorf("bind proxy env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("pwexport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source.Selectors = cfg.Source.Selectors.WithDefaults()

	if cfg.Output.Format == "" {
		cfg.Output.Format = formatter.InferFromExtension(cfg.Output.Path)
		if cfg.Output.Format == "" {
			cfg.Output.Format = "csv"
		}
	}
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	var problems []string
	if c.Extract.MaxAttempts < 1 {
		problems = append(problems, "extract.max_attempts must be at least 1")
	}
	if c.Extract.TimeoutSeconds < 1 {
		problems = append(problems, "extract.timeout_seconds must be at least 1")
	}
	if c.Extract.ForcedRowCount < 0 {
		problems = append(problems, "extract.forced_row_count must not be negative")
	}
	if c.Extract.PollInterval <= 0 {
		problems = append(problems, "extract.poll_interval must be positive")
	}
	if _, ok := source.Get(c.Source.Name); !ok {
		problems = append(problems, fmt.Sprintf("unknown source %q (known: %s)", c.Source.Name, strings.Join(source.Names(), ", ")))
	}
	if !formatter.Valid(c.Output.Format) {
		problems = append(problems, fmt.Sprintf("invalid output format: %s", c.Output.Format))
	}
	if !csvenc.ValidEncoding(c.Output.Encoding) {
		problems = append(problems, fmt.Sprintf("invalid output encoding: %s", c.Output.Encoding))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	if len(problems) > 0 {
		return models.NewError(models.KindInvalidConfig, strings.Join(problems, "; "), nil)
	}
	return nil
}
