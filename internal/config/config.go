package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/headline-goat/abengine/internal/experiment"
)

// Config is read from ABENGINE_* environment variables.
type Config struct {
	DBPath        string        `env:"ABENGINE_DB_PATH" envDefault:"./abengine.db"`
	Store         string        `env:"ABENGINE_STORE" envDefault:"sqlite"`
	Port          int           `env:"ABENGINE_PORT" envDefault:"8080"`
	StoreTimeout  time.Duration `env:"ABENGINE_STORE_TIMEOUT" envDefault:"2s"`
	RetryAttempts uint          `env:"ABENGINE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"ABENGINE_RETRY_DELAY" envDefault:"10ms"`
	LogLevel      string        `env:"ABENGINE_LOG_LEVEL" envDefault:"info"`
	AdminToken    string        `env:"ABENGINE_ADMIN_TOKEN"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	return &cfg, nil
}

// ManagerOptions converts the store settings for experiment.NewManager.
func (c *Config) ManagerOptions() experiment.Options {
	return experiment.Options{
		StoreTimeout:  c.StoreTimeout,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

// ConfigureLogging applies LogLevel to the global logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// LoadExperiment reads an experiment definition from a .json, .yaml or .yml file.
func LoadExperiment(path string) (experiment.CreateConfig, error) {
	var cfg experiment.CreateConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read experiment file %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, errors.Errorf("unsupported experiment file type %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "parse experiment file %s", path)
	}
	return cfg, nil
}
