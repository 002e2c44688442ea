// ABOUTME: Configuration loader for the ndactl client and dev auth service
// ABOUTME: Layers defaults, optional .env, optional YAML file, then environment variables

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultAuthURL is used when neither flag, env nor file sets the auth service URL
const DefaultAuthURL = "http://localhost:8080"

type Config struct {
	// Client
	AuthURL         string        `yaml:"auth_url"`
	RefreshLead     time.Duration `yaml:"refresh_lead"`      // refresh this long before expiry (default 5m)
	RefreshMaxDelay time.Duration `yaml:"refresh_max_delay"` // cap on refresh timer delay (default 30m)
	WarningWindow   time.Duration `yaml:"warning_window"`    // warning modal opens inside this window (default 5m)

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogDir    string `yaml:"log_dir"` // TUI writes debug.log here (empty = discard)

	DevServer DevServer `yaml:"devserver"`
}

// DevServer configures the stand-in auth service
type DevServer struct {
	Addr          string        `yaml:"addr"`
	UsersFile     string        `yaml:"users_file"` // YAML user list (empty = seeded users)
	SessionTTL    time.Duration `yaml:"session_ttl"`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl"`
	MFACode       string        `yaml:"mfa_code"`
	MFAAttempts   int           `yaml:"mfa_attempts"`
	LockoutWindow time.Duration `yaml:"lockout_window"`
	CookieSecure  bool          `yaml:"cookie_secure"`

	RateLimitEnabled bool `yaml:"rate_limit_enabled"`
	RateLimitAuth    int  `yaml:"rate_limit_auth"` // requests per minute per client IP for login/MFA
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		AuthURL:         DefaultAuthURL,
		RefreshLead:     5 * time.Minute,
		RefreshMaxDelay: 30 * time.Minute,
		WarningWindow:   5 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "text",
		LogDir:          defaultLogDir(),
		DevServer: DevServer{
			Addr:             ":8080",
			SessionTTL:       30 * time.Minute,
			ChallengeTTL:     5 * time.Minute,
			MFACode:          "123456",
			MFAAttempts:      3,
			LockoutWindow:    15 * time.Minute,
			RateLimitEnabled: true,
			RateLimitAuth:    10,
		},
	}
}

// Load builds the configuration. path is an optional YAML file; when empty
// NDA_CONFIG is consulted. A .env file in the working directory is loaded
// first and never overrides variables already set in the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("NDA_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.AuthURL = getEnv("NDA_AUTH_URL", c.AuthURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogDir = getEnv("NDA_LOG_DIR", c.LogDir)

	d := &c.DevServer
	d.Addr = getEnv("NDA_DEV_ADDR", d.Addr)
	d.UsersFile = getEnv("NDA_DEV_USERS_FILE", d.UsersFile)
	d.MFACode = getEnv("NDA_DEV_MFA_CODE", d.MFACode)
	d.CookieSecure = getEnvBool("NDA_DEV_COOKIE_SECURE", d.CookieSecure)
	d.RateLimitEnabled = getEnvBool("NDA_DEV_RATE_LIMIT_ENABLED", d.RateLimitEnabled)
	d.MFAAttempts = getEnvInt("NDA_DEV_MFA_ATTEMPTS", d.MFAAttempts)
	d.RateLimitAuth = getEnvInt("NDA_DEV_RATE_LIMIT_AUTH", d.RateLimitAuth)

	for _, e := range []struct {
		key string
		dst *time.Duration
	}{
		{"NDA_REFRESH_LEAD", &c.RefreshLead},
		{"NDA_REFRESH_MAX_DELAY", &c.RefreshMaxDelay},
		{"NDA_WARNING_WINDOW", &c.WarningWindow},
		{"NDA_DEV_SESSION_TTL", &d.SessionTTL},
		{"NDA_DEV_CHALLENGE_TTL", &d.ChallengeTTL},
		{"NDA_DEV_LOCKOUT_WINDOW", &d.LockoutWindow},
	} {
		if err := getEnvDuration(e.key, e.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks value ranges and names the offending key
func (c *Config) Validate() error {
	c.AuthURL = strings.TrimRight(ensureScheme(c.AuthURL), "/")
	if c.AuthURL == "" {
		return fmt.Errorf("NDA_AUTH_URL is required")
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"NDA_REFRESH_LEAD", c.RefreshLead},
		{"NDA_REFRESH_MAX_DELAY", c.RefreshMaxDelay},
		{"NDA_WARNING_WINDOW", c.WarningWindow},
		{"NDA_DEV_SESSION_TTL", c.DevServer.SessionTTL},
		{"NDA_DEV_CHALLENGE_TTL", c.DevServer.ChallengeTTL},
		{"NDA_DEV_LOCKOUT_WINDOW", c.DevServer.LockoutWindow},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	if c.DevServer.MFAAttempts < 1 || c.DevServer.MFAAttempts > 10 {
		return fmt.Errorf("NDA_DEV_MFA_ATTEMPTS must be between 1 and 10, got %d", c.DevServer.MFAAttempts)
	}
	if c.DevServer.RateLimitAuth < 1 || c.DevServer.RateLimitAuth > 10000 {
		return fmt.Errorf("NDA_DEV_RATE_LIMIT_AUTH must be between 1 and 10000, got %d", c.DevServer.RateLimitAuth)
	}
	if len(c.DevServer.MFACode) != 6 || strings.Trim(c.DevServer.MFACode, "0123456789") != "" {
		return fmt.Errorf("NDA_DEV_MFA_CODE must be 6 digits")
	}
	return nil
}

func defaultLogDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ndactl")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, value)
	}
	*dst = d
	return nil
}

// ensureScheme adds http:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "http://" + url
	}
	return url
}
