package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by the command.
const (
	EnvAccounts = "WISP_ACCOUNTS"
	EnvBotToken = "TG_BOT_TOKEN"
	EnvChatID   = "TG_CHAT_ID"
)

// DefaultLoginURL is the console page every attempt starts from.
const DefaultLoginURL = "https://wispbyte.com/client/servers"

// Desktop user agents rotated across navigation contexts.
const (
	UserAgentWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"
	UserAgentMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete run configuration. It is built once in the
// entry point and passed down explicitly; inner packages never read the
// environment.
type Config struct {
	// Accounts is the raw comma-separated identifier:secret list
	Accounts string `yaml:"accounts" json:"-"`

	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Batch    BatchConfig    `yaml:"batch" json:"batch"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// TelegramConfig holds the notification destination. Either field empty
// disables notifications.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"-"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
	APIBase  string `yaml:"api_base" json:"api_base"`
}

// Enabled reports whether both destination values are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// BrowserConfig tunes the login session driver.
type BrowserConfig struct {
	LoginURL string `yaml:"login_url" json:"login_url"`

	// AuthenticatedPattern is a glob matched against the page URL
	AuthenticatedPattern string `yaml:"authenticated_pattern" json:"authenticated_pattern"`
	// LoginMarker in the URL (case-insensitive) means the login page is showing
	LoginMarker string `yaml:"login_marker" json:"login_marker"`

	Headless       bool     `yaml:"headless" json:"headless"`
	SkipInstall    bool     `yaml:"skip_install" json:"skip_install"`
	UserAgents     []string `yaml:"user_agents" json:"user_agents"`
	ViewportWidth  int      `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height" json:"viewport_height"`

	PageTimeout      time.Duration `yaml:"page_timeout" json:"page_timeout"`
	StateTimeout     time.Duration `yaml:"state_timeout" json:"state_timeout"`
	ElementTimeout   time.Duration `yaml:"element_timeout" json:"element_timeout"`
	ChallengeTimeout time.Duration `yaml:"challenge_timeout" json:"challenge_timeout"`

	SettleDelay    time.Duration `yaml:"settle_delay" json:"settle_delay"`
	ChallengePause time.Duration `yaml:"challenge_pause" json:"challenge_pause"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`

	// DiagnosticsDir receives the transient failure screenshot
	DiagnosticsDir string `yaml:"diagnostics_dir" json:"diagnostics_dir"`

	Selectors SelectorConfig `yaml:"selectors" json:"selectors"`
}

// SelectorConfig holds the Playwright selectors used on the login form.
type SelectorConfig struct {
	Identifier string `yaml:"identifier" json:"identifier"`
	Secret     string `yaml:"secret" json:"secret"`
	Challenge  string `yaml:"challenge" json:"challenge"`
	Submit     string `yaml:"submit" json:"submit"`
}

// BatchConfig controls dispatch.
type BatchConfig struct {
	// MaxConcurrency caps simultaneous logins; 0 means one goroutine per account
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath is written after each run when non-empty
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIBase: "https://api.telegram.org",
		},
		Browser: BrowserConfig{
			LoginURL:             DefaultLoginURL,
			AuthenticatedPattern: "**/client**",
			LoginMarker:          "login",
			Headless:             true,
			UserAgents:           []string{UserAgentWindows, UserAgentMac},
			ViewportWidth:        1920,
			ViewportHeight:       1080,
			PageTimeout:          90 * time.Second,
			StateTimeout:         30 * time.Second,
			ElementTimeout:       20 * time.Second,
			ChallengeTimeout:     8 * time.Second,
			SettleDelay:          5 * time.Second,
			ChallengePause:       3 * time.Second,
			RetryBackoff:         2 * time.Second,
			MaxRetries:           2,
			DiagnosticsDir:       os.TempDir(),
			Selectors: SelectorConfig{
				Identifier: `input[placeholder*="Email"], input[placeholder*="Username"], input[type="email"], input[type="text"]`,
				Secret:     `input[placeholder*="Password"], input[type="password"]`,
				Challenge:  `text=确认您是真人`,
				Submit:     `button:has-text("Log In")`,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file on top of DefaultConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration. An empty account list is not a
// validation error; the batch reports it through the notifier instead.
func (c *Config) Validate() error {
	b := c.Browser

	if b.LoginURL == "" {
		return fmt.Errorf("%w: login_url is required", ErrInvalid)
	}
	if u, err := url.Parse(b.LoginURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: login_url %q is not an absolute URL", ErrInvalid, b.LoginURL)
	}

	if b.AuthenticatedPattern == "" {
		return fmt.Errorf("%w: authenticated_pattern is required", ErrInvalid)
	}

	if len(b.UserAgents) == 0 {
		return fmt.Errorf("%w: at least one user agent is required", ErrInvalid)
	}

	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return fmt.Errorf("%w: viewport must be positive", ErrInvalid)
	}

	if b.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries cannot be negative", ErrInvalid)
	}

	durations := map[string]time.Duration{
		"page_timeout":      b.PageTimeout,
		"state_timeout":     b.StateTimeout,
		"element_timeout":   b.ElementTimeout,
		"challenge_timeout": b.ChallengeTimeout,
		"settle_delay":      b.SettleDelay,
		"challenge_pause":   b.ChallengePause,
		"retry_backoff":     b.RetryBackoff,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalid, name)
		}
	}

	if b.Selectors.Identifier == "" || b.Selectors.Secret == "" || b.Selectors.Submit == "" {
		return fmt.Errorf("%w: identifier, secret and submit selectors are required", ErrInvalid)
	}

	if c.Batch.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max_concurrency cannot be negative", ErrInvalid)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging level %q (must be 'debug', 'info', 'warn', or 'error')", ErrInvalid, c.Logging.Level)
	}

	return nil
}
