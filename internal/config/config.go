package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/brlpulse/internal/convert"
	"github.com/sawpanic/brlpulse/internal/market/numeral"
)

// DefaultPath is where the CLI looks for the configuration file
const DefaultPath = "config/brlpulse.yaml"

// Environment overrides
const (
	EnvHTTPAddr = "BRLPULSE_HTTP_ADDR"
	EnvLogLevel = "BRLPULSE_LOG_LEVEL"
	EnvModel    = "BRLPULSE_MODEL"
)

// Config represents the complete application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Provider  ProviderConfig  `yaml:"provider"`
	HTTP      HTTPConfig      `yaml:"http"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// ProviderConfig represents the generative model provider settings
type ProviderConfig struct {
	Model           string          `yaml:"model"`
	APIKeyEnv       string          `yaml:"api_key_env"`       // Primary credential variable
	APIKeyFallbacks []string        `yaml:"api_key_fallbacks"` // Tried in order when the primary is unset
	BaseURL         string          `yaml:"base_url"`          // Empty uses the SDK default endpoint
	RequestTimeout  time.Duration   `yaml:"request_timeout"`   // Deadline for one provider call
	Circuit         CircuitConfig   `yaml:"circuit"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Budget          BudgetConfig    `yaml:"budget"`
	Numerals        NumeralConfig   `yaml:"numerals"`
}

// CircuitConfig represents circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // Consecutive failures to open circuit
	SuccessThreshold int           `yaml:"success_threshold"` // Successes needed to close circuit
	OpenTimeout      time.Duration `yaml:"open_timeout"`      // Time spent open before probing again
}

// RateLimitConfig bounds outbound provider calls
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"` // 0 disables the limiter
	Burst int     `yaml:"burst"`
}

// BudgetConfig represents the daily provider call budget
type BudgetConfig struct {
	DailyLimit    int64   `yaml:"daily_limit"`    // 0 disables the budget
	WarnThreshold float64 `yaml:"warn_threshold"` // Warn at this fraction of the daily limit
	ResetHour     int     `yaml:"reset_hour"`     // UTC hour to reset (0-23)
}

// NumeralConfig selects how commas in model output are read
type NumeralConfig struct {
	CommaOnly string `yaml:"comma_only"`
	Mixed     string `yaml:"mixed"`
}

// HTTPConfig represents the dashboard server settings
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DashboardConfig represents dashboard behaviour
type DashboardConfig struct {
	DefaultAmount string        `yaml:"default_amount"` // BRL amount prefilled in the converter
	FetchOnStart  bool          `yaml:"fetch_on_start"`
	AutoRefresh   time.Duration `yaml:"auto_refresh"` // 0 disables periodic fetches
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Provider: ProviderConfig{
			Model:           "gemini-2.5-flash",
			APIKeyEnv:       "API_KEY",
			APIKeyFallbacks: []string{"GEMINI_API_KEY"},
			RequestTimeout:  45 * time.Second,
			Circuit: CircuitConfig{
				FailureThreshold: 3,
				SuccessThreshold: 1,
				OpenTimeout:      30 * time.Second,
			},
			RateLimit: RateLimitConfig{RPS: 0.2, Burst: 2},
			Budget:    BudgetConfig{DailyLimit: 0, WarnThreshold: 0.8, ResetHour: 0},
			Numerals: NumeralConfig{
				CommaOnly: numeral.DefaultRules.CommaOnly.String(),
				Mixed:     numeral.DefaultRules.Mixed.String(),
			},
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Dashboard: DashboardConfig{
			DefaultAmount: "1000",
			FetchOnStart:  true,
		},
	}
}

// Load reads .env (if present), the YAML file at path over the defaults, then
// environment overrides, and validates the result. A missing file at DefaultPath
// is not an error; a missing file anywhere else is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies the BRLPULSE_* overrides found through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvHTTPAddr); ok && v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Provider.Model = v
	}
}

// Validate ensures the configuration is valid and consistent
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// Validate ensures the provider configuration is valid
func (p *ProviderConfig) Validate() error {
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if strings.TrimSpace(p.APIKeyEnv) == "" {
		return fmt.Errorf("api_key_env cannot be empty")
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", p.RequestTimeout)
	}
	if p.Circuit.FailureThreshold <= 0 {
		return fmt.Errorf("circuit failure_threshold must be positive, got %d", p.Circuit.FailureThreshold)
	}
	if p.Circuit.SuccessThreshold <= 0 {
		return fmt.Errorf("circuit success_threshold must be positive, got %d", p.Circuit.SuccessThreshold)
	}
	if p.Circuit.OpenTimeout <= 0 {
		return fmt.Errorf("circuit open_timeout must be positive, got %v", p.Circuit.OpenTimeout)
	}
	if p.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit rps cannot be negative, got %f", p.RateLimit.RPS)
	}
	if p.RateLimit.RPS > 0 && p.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit burst must be at least 1, got %d", p.RateLimit.Burst)
	}
	if p.Budget.DailyLimit < 0 {
		return fmt.Errorf("budget daily_limit cannot be negative, got %d", p.Budget.DailyLimit)
	}
	if p.Budget.WarnThreshold <= 0 || p.Budget.WarnThreshold > 1 {
		return fmt.Errorf("budget warn_threshold must be between 0 and 1, got %f", p.Budget.WarnThreshold)
	}
	if p.Budget.ResetHour < 0 || p.Budget.ResetHour > 23 {
		return fmt.Errorf("budget reset_hour must be between 0 and 23, got %d", p.Budget.ResetHour)
	}
	if _, err := p.Numerals.Rules(); err != nil {
		return fmt.Errorf("numerals: %w", err)
	}
	return nil
}

// Rules converts the configured names into parser rules
func (n NumeralConfig) Rules() (numeral.Rules, error) {
	commaOnly, err := numeral.ParseSeparator(n.CommaOnly)
	if err != nil {
		return numeral.Rules{}, fmt.Errorf("comma_only: %w", err)
	}
	mixed, err := numeral.ParseSeparator(n.Mixed)
	if err != nil {
		return numeral.Rules{}, fmt.Errorf("mixed: %w", err)
	}
	return numeral.Rules{CommaOnly: commaOnly, Mixed: mixed}, nil
}

// Validate ensures the HTTP configuration is valid
func (h *HTTPConfig) Validate() error {
	if strings.TrimSpace(h.Addr) == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if h.ReadTimeout < 0 || h.WriteTimeout < 0 || h.IdleTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// Validate ensures the dashboard configuration is valid
func (d *DashboardConfig) Validate() error {
	if _, ok := convert.ParseAmount(d.DefaultAmount); !ok {
		return fmt.Errorf("default_amount %q is not a number", d.DefaultAmount)
	}
	if d.AutoRefresh < 0 {
		return fmt.Errorf("auto_refresh cannot be negative, got %v", d.AutoRefresh)
	}
	if d.AutoRefresh > 0 && d.AutoRefresh < 10*time.Second {
		return fmt.Errorf("auto_refresh must be 0 or at least 10s, got %v", d.AutoRefresh)
	}
	return nil
}

// CredentialNames lists the environment variables tried for the API key, in order
func (p *ProviderConfig) CredentialNames() []string {
	return append([]string{p.APIKeyEnv}, p.APIKeyFallbacks...)
}
