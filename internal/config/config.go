package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AUTHFLOW_API_BASE_URL.
const EnvPrefix = "AUTHFLOW"

// Config is the resolved runtime configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Locale  string        `mapstructure:"locale"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Form    FormConfig    `mapstructure:"form"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
}

type FormConfig struct {
	// ResetOnFailure clears the form after failed submissions too.
	ResetOnFailure bool `mapstructure:"reset_on_failure"`
}

// Options points Load at its inputs. Empty paths use the defaults: an
// optional authflow.yaml in the working directory and an optional .env.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load reads the env file, the YAML file and AUTHFLOW_* environment
// variables, in increasing precedence, then validates the result.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("authflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read base config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("locale", "id-ID")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", DefaultStatePath())
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("form.reset_on_failure", true)
}

// DefaultStatePath is where the file storage driver keeps its state.
func DefaultStatePath() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "authflow", "state.yaml")
	}
	return filepath.Join(".authflow", "state.yaml")
}

func normalize(cfg *Config) {
	cfg.API.BaseURL = strings.TrimSpace(cfg.API.BaseURL)
	cfg.Locale = strings.TrimSpace(cfg.Locale)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Storage.RedisURL = strings.TrimSpace(cfg.Storage.RedisURL)
}

// Validate checks the fields the flows cannot run without.
func Validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", cfg.API.Timeout)
	}
	if cfg.Locale == "" {
		return errors.New("locale is required")
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", cfg.Log.Format)
	}
	switch cfg.Storage.Driver {
	case "file":
		if cfg.Storage.Path == "" {
			return errors.New("storage.path is required for the file driver")
		}
	case "redis":
		if cfg.Storage.RedisURL == "" {
			return errors.New("storage.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver must be file or redis, got %q", cfg.Storage.Driver)
	}
	return nil
}
