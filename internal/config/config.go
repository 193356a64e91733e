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
)

// Calendar backends.
const (
	BackendGoogle = "google"
	BackendICS    = "ics"
)

// Session stores.
const (
	StoreMemory = "memory"
	StoreValkey = "valkey"
)

// Oracle providers.
const (
	OracleOpenAI = "openai"
	OracleRules  = "rules"
)

// BusinessHoursConfig is the daily window slot search is restricted to.
type BusinessHoursConfig struct {
	// StartHour and EndHour bound the window, [StartHour, EndHour).
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`
	// Timezone the hours are defined in (IANA name or a known abbreviation).
	Timezone string `yaml:"timezone" json:"timezone"`
	// DurationMinutes is the default meeting length.
	DurationMinutes int `yaml:"duration_minutes" json:"duration_minutes"`
	// Weekdays lists business days by English name ("monday", ...).
	Weekdays []string `yaml:"weekdays" json:"weekdays"`
	// GranularityMinutes aligns candidate start times.
	GranularityMinutes int `yaml:"granularity_minutes" json:"granularity_minutes"`
	// MaxCandidates caps the number of slots offered in one turn.
	MaxCandidates int `yaml:"max_candidates" json:"max_candidates"`
	// SearchDays is the search horizon when the user names no date.
	SearchDays int `yaml:"search_days" json:"search_days"`
}

// CalendarConfig selects and configures the calendar backend.
type CalendarConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`

	// Google backend. The token file is produced by an external
	// authentication step; tailortalk only reads and refreshes it.
	TokenFile    string `yaml:"token_file" json:"token_file"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"-"`

	// ICS backend.
	ICSPath string `yaml:"ics_path" json:"ics_path"`

	// Timeout bounds every single provider call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig bounds retries of transient calendar failures.
type RetryConfig struct {
	MaxAttempts     uint          `yaml:"max_attempts" json:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
}

// OracleConfig configures the intent classification oracle.
type OracleConfig struct {
	Provider string        `yaml:"provider" json:"provider"`
	Model    string        `yaml:"model" json:"model"`
	BaseURL  string        `yaml:"base_url" json:"base_url"`
	APIKey   string        `yaml:"api_key" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// HistoryTurns is how many recent turns are sent with each message.
	HistoryTurns int `yaml:"history_turns" json:"history_turns"`
}

// ValkeyConfig holds configuration for the Valkey session store.
type ValkeyConfig struct {
	// URL is the Valkey server address (e.g., "valkey.namespace.svc:6379")
	URL        string `yaml:"url" json:"url"`
	Password   string `yaml:"password" json:"-"`
	TLSEnabled bool   `yaml:"tls_enabled" json:"tls_enabled"`
	// KeyPrefix is the prefix for all Valkey keys (default: "tailortalk:")
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
	DB        int    `yaml:"db" json:"db"`
	// LockTimeout bounds how long a request waits for a busy session.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	Store string `yaml:"store" json:"store"`
	// TTL is the inactivity window after which a session is evicted.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// HistoryLimit bounds the stored turns per session.
	HistoryLimit int          `yaml:"history_limit" json:"history_limit"`
	Valkey       ValkeyConfig `yaml:"valkey" json:"valkey"`
}

// LedgerConfig configures the booking ledger database.
type LedgerConfig struct {
	// Path is the SQLite DSN; ":memory:" keeps the ledger in process.
	Path string `yaml:"path" json:"path"`
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the chat API.
	Listen string `yaml:"listen" json:"listen"`
	// Timezone is the default display zone for new sessions.
	Timezone string `yaml:"timezone" json:"timezone"`
	// TurnTimeout bounds one chat turn end to end.
	TurnTimeout time.Duration `yaml:"turn_timeout" json:"turn_timeout"`

	BusinessHours BusinessHoursConfig `yaml:"business_hours" json:"business_hours"`
	Calendar      CalendarConfig      `yaml:"calendar" json:"calendar"`
	Retry         RetryConfig         `yaml:"retry" json:"retry"`
	Oracle        OracleConfig        `yaml:"oracle" json:"oracle"`
	Sessions      SessionConfig       `yaml:"sessions" json:"sessions"`
	Ledger        LedgerConfig        `yaml:"ledger" json:"ledger"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		Timezone:    "UTC",
		TurnTimeout: 45 * time.Second,
		BusinessHours: BusinessHoursConfig{
			StartHour:          9,
			EndHour:            17,
			Timezone:           "UTC",
			DurationMinutes:    60,
			Weekdays:           []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
			GranularityMinutes: 15,
			MaxCandidates:      10,
			SearchDays:         7,
		},
		Calendar: CalendarConfig{
			Backend:    BackendGoogle,
			CalendarID: "primary",
			TokenFile:  defaultTokenFile(),
			ICSPath:    "calendar.ics",
			Timeout:    30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:     4,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Oracle: OracleConfig{
			Provider:     OracleOpenAI,
			Model:        "gpt-4o-mini",
			Timeout:      20 * time.Second,
			HistoryTurns: 10,
		},
		Sessions: SessionConfig{
			Store:        StoreMemory,
			TTL:          30 * time.Minute,
			HistoryLimit: 50,
			Valkey: ValkeyConfig{
				KeyPrefix:   "tailortalk:",
				LockTimeout: 10 * time.Second,
			},
		},
		Ledger: LedgerConfig{
			Path: "tailortalk.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}

	bh := &c.BusinessHours
	if bh.StartHour == 0 && bh.EndHour == 0 {
		bh.StartHour, bh.EndHour = d.BusinessHours.StartHour, d.BusinessHours.EndHour
	}
	if bh.Timezone == "" {
		bh.Timezone = c.Timezone
	}
	if bh.DurationMinutes <= 0 {
		bh.DurationMinutes = d.BusinessHours.DurationMinutes
	}
	if len(bh.Weekdays) == 0 {
		bh.Weekdays = d.BusinessHours.Weekdays
	}
	if bh.GranularityMinutes <= 0 {
		bh.GranularityMinutes = d.BusinessHours.GranularityMinutes
	}
	if bh.MaxCandidates <= 0 {
		bh.MaxCandidates = d.BusinessHours.MaxCandidates
	}
	if bh.SearchDays <= 0 {
		bh.SearchDays = d.BusinessHours.SearchDays
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = d.TurnTimeout
	}

	cal := &c.Calendar
	cal.Backend = strings.ToLower(cal.Backend)
	if cal.Backend == "" {
		cal.Backend = d.Calendar.Backend
	}
	if cal.CalendarID == "" {
		cal.CalendarID = d.Calendar.CalendarID
	}
	if cal.TokenFile == "" {
		cal.TokenFile = d.Calendar.TokenFile
	}
	if cal.ICSPath == "" {
		cal.ICSPath = d.Calendar.ICSPath
	}
	if cal.Timeout <= 0 {
		cal.Timeout = d.Calendar.Timeout
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = d.Retry.InitialInterval
	}
	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = d.Retry.MaxInterval
	}

	o := &c.Oracle
	o.Provider = strings.ToLower(o.Provider)
	if o.Provider == "" {
		o.Provider = d.Oracle.Provider
	}
	if o.Model == "" {
		o.Model = d.Oracle.Model
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Oracle.Timeout
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = d.Oracle.HistoryTurns
	}

	s := &c.Sessions
	s.Store = strings.ToLower(s.Store)
	if s.Store == "" {
		s.Store = d.Sessions.Store
	}
	if s.TTL <= 0 {
		s.TTL = d.Sessions.TTL
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = d.Sessions.HistoryLimit
	}
	if s.Valkey.KeyPrefix == "" {
		s.Valkey.KeyPrefix = d.Sessions.Valkey.KeyPrefix
	}
	if s.Valkey.LockTimeout <= 0 {
		s.Valkey.LockTimeout = d.Sessions.Valkey.LockTimeout
	}

	if c.Ledger.Path == "" {
		c.Ledger.Path = d.Ledger.Path
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = d.Metrics.Addr
	}
}

// Validate checks invariants that Normalize cannot repair.
func (c *Config) Validate() error {
	bh := c.BusinessHours
	if bh.StartHour < 0 || bh.EndHour > 24 || bh.StartHour >= bh.EndHour {
		return fmt.Errorf("business hours must satisfy 0 <= start < end <= 24, got %d-%d", bh.StartHour, bh.EndHour)
	}
	if _, err := c.BusinessWeekdays(); err != nil {
		return err
	}
	if bh.SearchDays < 1 || bh.SearchDays > 31 {
		return fmt.Errorf("business_hours.search_days must be between 1 and 31, got %d", bh.SearchDays)
	}

	switch c.Calendar.Backend {
	case BackendGoogle, BackendICS:
	default:
		return fmt.Errorf("invalid calendar backend %q, must be one of: google, ics", c.Calendar.Backend)
	}

	switch c.Sessions.Store {
	case StoreMemory:
	case StoreValkey:
		if c.Sessions.Valkey.URL == "" {
			return errors.New("valkey url is required when sessions.store is valkey")
		}
	default:
		return fmt.Errorf("invalid session store %q, must be one of: memory, valkey", c.Sessions.Store)
	}

	switch c.Oracle.Provider {
	case OracleOpenAI, OracleRules:
	default:
		return fmt.Errorf("invalid oracle provider %q, must be one of: openai, rules", c.Oracle.Provider)
	}

	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// BusinessWeekdays parses BusinessHours.Weekdays.
func (c *Config) BusinessWeekdays() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(c.BusinessHours.Weekdays))
	seen := make(map[time.Weekday]bool)
	for _, name := range c.BusinessHours.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in business_hours.weekdays", name)
		}
		if !seen[wd] {
			seen[wd] = true
			days = append(days, wd)
		}
	}
	if len(days) == 0 {
		return nil, errors.New("business_hours.weekdays must name at least one day")
	}
	return days, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
			cfg.ApplyEnv()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path as YAML with 0600 permissions.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "google-token.json"
	}
	return filepath.Join(dir, "tailortalk", "google-token.json")
}
