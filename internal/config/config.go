// Package config holds the file backed application configuration.
// Secrets never live in the file; GEMINI_API_KEY comes from the
// environment, with .env picked up for local runs.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Listen is the HTTP listen address for the web app.
	Listen string `yaml:"listen"`

	// Timezone is the IANA identifier exports default to when the
	// request does not name one. Empty means UTC.
	Timezone string `yaml:"timezone"`

	// CalendarName is the X-WR-CALNAME given to exported calendars.
	CalendarName string `yaml:"calendar_name"`

	// StaticDir is served under /static for the review frontend.
	StaticDir string `yaml:"static_dir"`

	// GeminiEndpoint and GeminiModel override the production engine
	// defaults, mostly for pointing a deployment at a proxy.
	GeminiEndpoint string `yaml:"gemini_endpoint"`
	GeminiModel    string `yaml:"gemini_model"`

	// RequestRetryCount is how often a single engine request may be
	// retried at the transport level.
	RequestRetryCount int `yaml:"request_retry_count"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "",
		CalendarName:      "My University Timetable",
		StaticDir:         "server/static",
		RequestRetryCount: 2,
	}
}

// Normalize fills zero values so partially filled config files behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.CalendarName == "" {
		c.CalendarName = "My University Timetable"
	}
	if c.StaticDir == "" {
		c.StaticDir = "server/static"
	}
	if c.RequestRetryCount < 0 {
		c.RequestRetryCount = 0
	}
}

// Load reads the YAML config at path; a missing file just means defaults.
// Either way the process environment gets a .env overlay first.
func Load(path string) (*Config, error) {
	// missing .env is fine, deployments set real env vars
	_ = godotenv.Load()

	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}
