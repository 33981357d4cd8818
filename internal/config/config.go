package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Simplici0/printcost/internal/logger"
)

const (
	defaultDBPath     = "./printcost.db"
	defaultPort       = "8080"
	defaultConfigPath = "config.yaml"
	defaultLogLevel   = "info"
	defaultLogOutput  = "console"
	defaultMaxUpload  = 512
)

// Config holds application configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	DBPath        string    `yaml:"db_path"`
	Port          string    `yaml:"port"`
	OverusePolicy string    `yaml:"overuse_policy"`
	MaxUploadMB   int       `yaml:"max_upload_mb"`
	ImportGcode   string    `yaml:"import_gcode"`
	Log           LogConfig `yaml:"log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MaxUploadBytes is the largest accepted upload.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// LoggerOptions maps the log section to logger options.
func (c Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Output:     c.Log.Output,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

// Load reads .env, the YAML file named by CONFIG_PATH and the environment.
func Load() (Config, error) {
	// Best-effort: a missing .env is fine, production injects real env.
	keys, err := loadDotEnv(".env")
	if err != nil {
		logger.Warnf("ignoring .env: %v", err)
	} else if len(keys) > 0 {
		logger.Infof("loaded %d keys from .env", len(keys))
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// loadFile decodes the YAML file at path. A missing file yields an empty
// Config.
func loadFile(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.Port, "PORT")
	setString(&cfg.OverusePolicy, "OVERUSE_POLICY")
	setString(&cfg.ImportGcode, "IMPORT_GCODE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Output, "LOG_OUTPUT")
	setString(&cfg.Log.File, "LOG_FILE")

	if err := setInt(&cfg.Log.MaxSizeMB, "LOG_MAX_SIZE_MB"); err != nil {
		return err
	}
	return setInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB")
}

func setInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = v
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultMaxUpload
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = defaultLogOutput
	}
}
