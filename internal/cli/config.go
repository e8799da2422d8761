package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shared-tasks-backend/internal/client"
	"shared-tasks-backend/internal/scenario"
)

// Config is the harness configuration. Values are layered defaults, then the
// YAML file, then SMOKE_* environment variables, then command-line flags.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
	Quiet    bool          `yaml:"quiet"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  client.DefaultBaseURL,
		Password: scenario.DefaultPassword,
		Timeout:  60 * time.Second,
	}
}

// LoadConfig reads path (when non-empty) over the defaults and applies the
// environment seen through getenv.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(getenv("SMOKE_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("SMOKE_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(getenv("SMOKE_TIMEOUT")); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return cfg, fmt.Errorf("SMOKE_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := strings.TrimSpace(getenv("SMOKE_QUIET")); v != "" {
		q, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("SMOKE_QUIET: %w", err)
		}
		cfg.Quiet = q
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base url: %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Password == "" {
		return fmt.Errorf("password must not be empty")
	}
	return nil
}
