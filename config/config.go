package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scraper strategy selectors. Exactly one strategy is active per process.
const (
	ScraperModeProcess = "process"
	ScraperModeHTTP    = "http"
)

// Config holds all process configuration. It is read once at startup and
// passed by reference to the components that need it; nothing looks up
// configuration at call time.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.TimeZone)
}

// Duration wraps time.Duration so YAML configs can use "10m" style values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ScraperConfig describes how to reach the external scraper. In process
// mode the scraper is spawned as a local subprocess; in http mode it is an
// already-running service reached over the network.
type ScraperConfig struct {
	Mode        string   `yaml:"mode"`
	Interpreter string   `yaml:"interpreter"`
	ScriptPath  string   `yaml:"script_path"`
	WorkDir     string   `yaml:"work_dir"`
	URL         string   `yaml:"url"`
	Timeout     Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads the YAML config at path, applying defaults and database env
// overrides. A missing file is not an error: defaults plus environment are
// enough to run against a local database.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        ":8080",
			AllowedOrigin: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "password",
			Name:     "msesync",
			SSLMode:  "disable",
			TimeZone: "Europe/Skopje",
		},
		Scraper: ScraperConfig{
			Mode:        ScraperModeProcess,
			Interpreter: "python3",
			ScriptPath:  "scraper/main.py",
			WorkDir:     ".",
			Timeout:     Duration(10 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func (c *Config) applyEnv() {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
}

func (c *Config) validate() error {
	switch c.Scraper.Mode {
	case ScraperModeProcess:
		if c.Scraper.Interpreter == "" || c.Scraper.ScriptPath == "" {
			return fmt.Errorf("scraper mode %q requires interpreter and script_path", c.Scraper.Mode)
		}
	case ScraperModeHTTP:
		if c.Scraper.URL == "" {
			return fmt.Errorf("scraper mode %q requires url", c.Scraper.Mode)
		}
	default:
		return fmt.Errorf("unknown scraper mode %q", c.Scraper.Mode)
	}
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper timeout must be positive, got %s", c.Scraper.Timeout.Std())
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
