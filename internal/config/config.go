// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port int `mapstructure:"port"`
	// CheckInterval is the number of minutes between scheduled bookmark
	// checks. Zero disables the schedule.
	CheckInterval int `mapstructure:"check_interval"`
	Database      struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Library struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"library"`
	Locks struct {
		// Path holds one lock file per bookmark. Empty keeps locking in-process.
		Path string `mapstructure:"path"`
	} `mapstructure:"locks"`
	Checker struct {
		Timeout int `mapstructure:"timeout"` // seconds per provider fetch
	} `mapstructure:"checker"`
	Downloader struct {
		Workers int `mapstructure:"workers"`
	} `mapstructure:"downloader"`
	Notify struct {
		NATS struct {
			URL     string `mapstructure:"url"`
			Subject string `mapstructure:"subject"`
		} `mapstructure:"nats"`
	} `mapstructure:"notify"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path. An empty path searches the
// current directory for config.yml and falls back to defaults when there is
// none; an explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // name of config file (without extension)
		v.SetConfigType("yml")    // or "yaml"
		v.AddConfigPath(".")      // looking for config in the current directory
	}

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "MANGO_" prefix.
	// e.g., MANGO_DATABASE_PATH will override the `database.path` key.
	v.SetEnvPrefix("MANGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("check_interval", 60)
	v.SetDefault("database.path", "./mango.db")
	v.SetDefault("library.path", "./manga")
	v.SetDefault("locks.path", "")
	v.SetDefault("checker.timeout", 60)
	v.SetDefault("downloader.workers", 1)
	v.SetDefault("notify.nats.url", "")
	v.SetDefault("notify.nats.subject", "mango.chapters")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.CheckInterval < 0 {
		errs = append(errs, fmt.Errorf("check_interval must not be negative, got %d", c.CheckInterval))
	}
	if c.Checker.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("checker.timeout must be positive, got %d", c.Checker.Timeout))
	}
	if c.Downloader.Workers < 1 {
		errs = append(errs, fmt.Errorf("downloader.workers must be at least 1, got %d", c.Downloader.Workers))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Notify.NATS.URL != "" && c.Notify.NATS.Subject == "" {
		errs = append(errs, errors.New("notify.nats.subject is required with notify.nats.url"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
