// Package config loads tooldebug settings from defaults, an optional YAML
// file, a .env file and TOOLDEBUG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jonwraymond/tooldebug/analysis"
	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/sandbox"
)

// EnvPrefix is prepended to every environment override, e.g.
// TOOLDEBUG_ANALYSIS_PROVIDER.
const EnvPrefix = "TOOLDEBUG"

// DefaultEnvFile is read when Options.EnvFile is empty.
const DefaultEnvFile = ".env"

// ErrUnknownProvider is returned by Validate for an unsupported provider.
var ErrUnknownProvider = errors.New("config: unknown analysis provider")

// Config holds every tooldebug setting.
type Config struct {
	RootDir         string         `mapstructure:"root_dir"`
	DefaultTarget   string         `mapstructure:"default_target"`
	Python          string         `mapstructure:"python"`
	AllowedRootsEnv string         `mapstructure:"allowed_roots_env"`
	Analysis        AnalysisConfig `mapstructure:"analysis"`
	Log             LogConfig      `mapstructure:"log"`
	Metrics         MetricsConfig  `mapstructure:"metrics"`
}

// AnalysisConfig selects the language model provider.
type AnalysisConfig struct {
	Provider      string `mapstructure:"provider"`
	GeminiModel   string `mapstructure:"gemini_model"`
	OpenAIModel   string `mapstructure:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit YAML config file. When empty, tooldebug.yaml in
	// the working directory is used if present.
	File string

	// EnvFile is a dotenv file applied to the process environment before
	// anything else is read. Default: ".env". Missing files are ignored.
	EnvFile string

	// SkipEnvFile disables dotenv loading.
	SkipEnvFile bool
}

// Load resolves the configuration.
func Load(opts Options) (Config, error) {
	if !opts.SkipEnvFile {
		envFile := opts.EnvFile
		if envFile == "" {
			envFile = DefaultEnvFile
		}
		if _, err := LoadDotEnv(envFile); err != nil {
			return Config{}, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("tooldebug")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root_dir", "")
	v.SetDefault("default_target", run.DefaultTarget)
	v.SetDefault("python", run.DefaultPython)
	v.SetDefault("allowed_roots_env", sandbox.DefaultAllowedRootsEnv)
	v.SetDefault("analysis.provider", analysis.ProviderGemini)
	v.SetDefault("analysis.gemini_model", analysis.DefaultGeminiModel)
	v.SetDefault("analysis.openai_model", analysis.DefaultOpenAIModel)
	v.SetDefault("analysis.openai_base_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")
}

// applyDefaults fills values that depend on the process state.
func (c *Config) applyDefaults() error {
	if strings.TrimSpace(c.RootDir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("config: working directory: %w", err)
		}
		c.RootDir = wd
	}
	c.RootDir = sandbox.ExpandHome(c.RootDir)
	c.Analysis.Provider = strings.ToLower(strings.TrimSpace(c.Analysis.Provider))
	return nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Analysis.Provider {
	case analysis.ProviderGemini, analysis.ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Analysis.Provider)
	}
	return nil
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. Keys are upper-cased. A missing file
// is not an error. It returns the names it set.
func LoadDotEnv(path string) ([]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading env file %s: %w", path, err)
	}

	var set []string
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return set, fmt.Errorf("config: set %s: %w", name, err)
		}
		set = append(set, name)
	}
	return set, nil
}
