// Package config loads and saves the YAML configuration of schedule-sync.
//
// A missing file is created with defaults on first load. Secrets and per-host settings
// can be overridden from the environment (see ApplyEnv).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lkschedule/schedule-sync/internal/logger"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/storage"
)

const (
	DefaultTimezone    = "Europe/Moscow"
	DefaultCalendarID  = "primary"
	DefaultWeeks       = 4
	DefaultLoginURL    = "https://lk.msal.ru/auth"
	DefaultScheduleURL = scraper.DefaultScheduleURL
	DefaultDataDir     = "~/.schedule-sync"
	DefaultSchedule    = "0 6 * * *"
)

// Page sources.
const (
	SourceBrowser = "browser"
	SourceHTTP    = "http"
)

// Environment variables that override file settings.
const (
	EnvLogin         = "MSAL_LOGIN"
	EnvPassword      = "MSAL_PASSWORD"
	EnvCalendarID    = "CALENDAR_ID"
	EnvTimezone      = "TIMEZONE"
	EnvClientSecrets = "GOOGLE_CLIENT_SECRETS"
	EnvTokenFile     = "GOOGLE_TOKEN_FILE"
	EnvEncryptionKey = "SCHEDULE_SYNC_ENCRYPTION_KEY"
	EnvSource        = "SCHEDULE_SOURCE"
	EnvHTTPCookie    = "MSAL_COOKIE"
)

// Credentials are the schedule portal login.
type Credentials struct {
	Login    string `yaml:"login" json:"login"`
	Password string `yaml:"password" json:"-"`
}

// GoogleConfig describes access to the Google Calendar API.
type GoogleConfig struct {
	// ClientSecrets is the OAuth client JSON downloaded from the Google console.
	ClientSecrets string `yaml:"client_secrets" json:"client_secrets"`
	// TokenFile caches the authorized user token.
	TokenFile string `yaml:"token_file" json:"token_file"`
	// ServerSideFilter asks the API to return only events carrying the managed marker.
	ServerSideFilter bool `yaml:"server_side_filter" json:"server_side_filter"`
	// MaxRetries bounds retries of rate-limited or failed API calls.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// BrowserConfig controls the headless browser session.
type BrowserConfig struct {
	Headful        bool   `yaml:"headful" json:"headful"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	ExecPath       string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
}

// Timeout returns the per-navigation timeout.
func (b BrowserConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// SyncConfig controls reconciliation.
type SyncConfig struct {
	// DeleteMissing removes managed events that no longer appear in the schedule.
	DeleteMissing bool `yaml:"delete_missing" json:"delete_missing"`
	// ApplyConcurrency is the number of calendar mutations in flight; 1 applies them
	// in order.
	ApplyConcurrency int `yaml:"apply_concurrency" json:"apply_concurrency"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone lesson times are interpreted in.
	Timezone   string `yaml:"timezone" json:"timezone"`
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// Weeks is the number of consecutive weeks synchronized per run.
	Weeks       int    `yaml:"weeks" json:"weeks"`
	LoginURL    string `yaml:"login_url" json:"login_url"`
	ScheduleURL string `yaml:"schedule_url" json:"schedule_url"`
	// DataDir holds artifacts, session state and the last run report.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Schedule is the cron expression used by the daemon command.
	Schedule string `yaml:"schedule" json:"schedule"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Source selects how week pages are retrieved: a logged-in browser or plain HTTP
	// requests carrying HTTPCookie.
	Source     string `yaml:"source" json:"source"`
	HTTPCookie string `yaml:"http_cookie,omitempty" json:"-"`
	// EncryptionKey, when set, encrypts the session state and OAuth token at rest.
	EncryptionKey string `yaml:"encryption_key,omitempty" json:"-"`

	Credentials Credentials       `yaml:"credentials" json:"credentials"`
	Google      GoogleConfig      `yaml:"google" json:"google"`
	Browser     BrowserConfig     `yaml:"browser" json:"browser"`
	Sync        SyncConfig        `yaml:"sync" json:"sync"`
	Selectors   scraper.Selectors `yaml:"selectors" json:"selectors"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:    DefaultTimezone,
		CalendarID:  DefaultCalendarID,
		Weeks:       DefaultWeeks,
		LoginURL:    DefaultLoginURL,
		ScheduleURL: DefaultScheduleURL,
		DataDir:     DefaultDataDir,
		Schedule:    DefaultSchedule,
		LogLevel:    "INFO",
		Source:      SourceBrowser,
		Google: GoogleConfig{
			ClientSecrets:    "credentials.json",
			TokenFile:        "token.json",
			ServerSideFilter: true,
			MaxRetries:       3,
		},
		Browser: BrowserConfig{
			TimeoutSeconds: 30,
		},
		Sync: SyncConfig{
			ApplyConcurrency: 1,
		},
		Selectors: scraper.DefaultSelectors(),
	}
}

// Normalize fills in missing or invalid values with defaults so that partially filled
// configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.CalendarID == "" {
		c.CalendarID = d.CalendarID
	}
	if c.Weeks <= 0 {
		c.Weeks = d.Weeks
	}
	if c.LoginURL == "" {
		c.LoginURL = d.LoginURL
	}
	if c.ScheduleURL == "" {
		c.ScheduleURL = d.ScheduleURL
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = d.Source
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = d.LogLevel
	}
	if c.Google.ClientSecrets == "" {
		c.Google.ClientSecrets = d.Google.ClientSecrets
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = d.Google.TokenFile
	}
	if c.Google.MaxRetries < 0 {
		c.Google.MaxRetries = 0
	}
	if c.Browser.TimeoutSeconds <= 0 {
		c.Browser.TimeoutSeconds = d.Browser.TimeoutSeconds
	}
	if c.Sync.ApplyConcurrency <= 0 {
		c.Sync.ApplyConcurrency = 1
	}
	c.Selectors = c.Selectors.WithDefaults()
}

// ApplyEnv overrides settings from environment variables looked up with getenv.
// Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Credentials.Login, EnvLogin)
	set(&c.Credentials.Password, EnvPassword)
	set(&c.CalendarID, EnvCalendarID)
	set(&c.Timezone, EnvTimezone)
	set(&c.Google.ClientSecrets, EnvClientSecrets)
	set(&c.Google.TokenFile, EnvTokenFile)
	set(&c.EncryptionKey, EnvEncryptionKey)
	set(&c.Source, EnvSource)
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	set(&c.HTTPCookie, EnvHTTPCookie)
}

// Location returns the configured time zone, falling back to Europe/Moscow when the
// name cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc
	}
	logger.Warn("invalid timezone, falling back", logger.Fields{
		"timezone": c.Timezone,
		"fallback": DefaultTimezone,
		"error":    err.Error(),
	})
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.FixedZone("MSK", 3*60*60)
}

// ResolvePath expands ~ in p and makes a relative path relative to the data directory.
func (c *Config) ResolvePath(p string) (string, error) {
	p, err := storage.ExpandPath(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := storage.ExpandPath(c.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// Validate reports settings a sync run cannot work without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceBrowser:
		if c.Credentials.Login == "" {
			errs = append(errs, fmt.Errorf("login is not set (credentials.login or %s)", EnvLogin))
		}
		if c.Credentials.Password == "" {
			errs = append(errs, fmt.Errorf("password is not set (credentials.password or %s)", EnvPassword))
		}
	case SourceHTTP:
		if c.HTTPCookie == "" {
			errs = append(errs, fmt.Errorf("http source needs a session cookie (http_cookie or %s)", EnvHTTPCookie))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (must be %q or %q)", c.Source, SourceBrowser, SourceHTTP))
	}
	if c.Weeks <= 0 {
		errs = append(errs, errors.New("weeks must be positive"))
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path and applies the environment.
//
// If the file does not exist, a default config is written there with 0600 permissions
// and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			logger.Info("created default config", logger.Fields{"path": path})
			cfg.ApplyEnv(os.Getenv)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	cfg.ApplyEnv(os.Getenv)

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedule-sync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
