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

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"keycal/internal/calendar"
	"keycal/internal/drag"
)

// NOTE: YAML is the primary source. A .env file next to the working
// directory and KEYCAL_* variables override it after loading.

// SubscriptionConfig describes a single ICS subscription source.
type SubscriptionConfig struct {
	// ID is an internal identifier used for de-dup, logging and as the
	// event source tag.
	ID string `yaml:"id" json:"id" validate:"required"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url" validate:"required,url"`
	// UserID owns the imported events.
	UserID string `yaml:"user_id" json:"user_id" validate:"required"`
	// Category is applied to events without a recognised CATEGORIES value.
	Category string `yaml:"category" json:"category"`
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver      string `yaml:"driver" json:"driver" validate:"oneof=memory postgres"`
	PostgresURL string `yaml:"postgres_url" json:"postgres_url" validate:"required_if=Driver postgres"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" json:"-"`
	JWTIssuer string `yaml:"jwt_issuer" json:"jwt_issuer"`
	// DemoUser is the user injected for unauthenticated requests in demo mode.
	DemoUser string `yaml:"demo_user" json:"demo_user"`
}

// DragConfig tunes the reschedule gesture. Distances are pixels.
type DragConfig struct {
	HourHeight         float64       `yaml:"hour_height" json:"hour_height"`
	LongPress          time.Duration `yaml:"long_press" json:"long_press"`
	MoveTolerance      float64       `yaml:"move_tolerance" json:"move_tolerance"`
	ScrollThreshold    float64       `yaml:"scroll_threshold" json:"scroll_threshold"`
	ScrollStep         float64       `yaml:"scroll_step" json:"scroll_step"`
	DaySwitchThreshold float64       `yaml:"day_switch_threshold" json:"day_switch_threshold"`
	SnapMinutes        int           `yaml:"snap_minutes" json:"snap_minutes"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" json:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" json:"burst" validate:"gte=0"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "America/Chicago").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStripStart is the weekday the seven-day strip begins on. Goal
	// aggregation always uses Monday–Sunday regardless.
	WeekStripStart string `yaml:"week_strip_start" json:"week_strip_start"`

	// DemoMode serves seeded sample data from memory without requiring tokens.
	DemoMode bool `yaml:"demo_mode" json:"demo_mode"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=console json"`

	Store StoreConfig `yaml:"store" json:"store"`
	Auth  AuthConfig  `yaml:"auth" json:"auth"`
	Drag  DragConfig  `yaml:"drag" json:"drag"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for subscription refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RolloverCron schedules the weekly indicator rollover.
	RolloverCron string `yaml:"rollover" json:"rollover"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// CacheDir holds fetched subscription bodies and their validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Subscriptions is the list of subscribed ICS sources.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions" validate:"dive"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	d := drag.DefaultConfig()
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "Local",
		WeekStripStart: "wednesday",
		DemoMode:       false,
		LogLevel:       "info",
		LogFormat:      "console",
		Store:          StoreConfig{Driver: "memory"},
		Auth:           AuthConfig{JWTIssuer: "keycal", DemoUser: "demo"},
		Drag: DragConfig{
			HourHeight:         d.HourHeight,
			LongPress:          d.LongPress,
			MoveTolerance:      d.MoveTolerance,
			ScrollThreshold:    d.ScrollThreshold,
			ScrollStep:         d.ScrollStep,
			DaySwitchThreshold: d.DaySwitchThreshold,
			SnapMinutes:        d.SnapMinutes,
		},
		RefreshCron:   "*/15 * * * *",
		RolloverCron:  "5 0 * * 1",
		RateLimit:     RateLimitConfig{RPS: 20, Burst: 40},
		CacheDir:      "cache",
		Subscriptions: []SubscriptionConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if _, ok := calendar.ParseWeekday(c.WeekStripStart); !ok {
		// Unknown value; fall back to the default strip.
		c.WeekStripStart = def.WeekStripStart
	}
	c.WeekStripStart = strings.ToLower(c.WeekStripStart)
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		c.LogFormat = def.LogFormat
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Auth.DemoUser == "" {
		c.Auth.DemoUser = def.Auth.DemoUser
	}

	n := drag.Config{
		HourHeight:         c.Drag.HourHeight,
		LongPress:          c.Drag.LongPress,
		MoveTolerance:      c.Drag.MoveTolerance,
		ScrollThreshold:    c.Drag.ScrollThreshold,
		ScrollStep:         c.Drag.ScrollStep,
		DaySwitchThreshold: c.Drag.DaySwitchThreshold,
		SnapMinutes:        c.Drag.SnapMinutes,
	}.Normalize()
	c.Drag = DragConfig(n)

	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.RolloverCron == "" {
		c.RolloverCron = def.RolloverCron
	}
	if c.RateLimit.RPS == 0 && c.RateLimit.Burst == 0 {
		c.RateLimit = def.RateLimit
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
}

// Validate checks the struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if !c.DemoMode && c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required outside demo mode")
	}
	seen := make(map[string]bool, len(c.Subscriptions))
	for _, s := range c.Subscriptions {
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate subscription id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// StripStart resolves WeekStripStart.
func (c *Config) StripStart() time.Weekday {
	if d, ok := calendar.ParseWeekday(c.WeekStripStart); ok {
		return d
	}
	return calendar.DefaultStripStart
}

// DragSettings converts the drag section for the recognizer.
func (c *Config) DragSettings() drag.Config {
	return drag.Config(c.Drag).Normalize()
}

// ApplyEnv overrides fields from KEYCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("KEYCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("KEYCAL_POSTGRES_URL"); v != "" {
		c.Store.Driver = "postgres"
		c.Store.PostgresURL = v
	}
	if v := os.Getenv("KEYCAL_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("KEYCAL_DEMO_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KEYCAL_DEMO_MODE: %w", err)
		}
		c.DemoMode = b
	}
	if v := os.Getenv("KEYCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("KEYCAL_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - continue with the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//   - Then load .env (if present) and apply KEYCAL_* overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
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

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600, since it may hold the JWT secret.
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

	tmp, err := os.CreateTemp(dir, ".keycal-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
