package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	KB         KBConfig          `yaml:"kb"`
	Progress   ProgressConfig    `yaml:"progress"`
	Workspaces WorkspacesConfig  `yaml:"workspaces"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Review     ReviewConfig      `yaml:"review"`
	Grep       GrepConfig        `yaml:"grep"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.KB.Validate(); err != nil {
		return err
	}
	if err := c.Progress.Validate(); err != nil {
		return err
	}
	if err := c.Workspaces.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Review.Validate(); err != nil {
		return err
	}
	if err := c.Grep.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// KBConfig holds the path to the knowledge-base directory and read limits.
type KBConfig struct {
	Path         string `yaml:"path"`
	MaxReadLines int    `yaml:"max_read_lines"`
}

// Validate validates the kb configuration.
func (c *KBConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxReadLines, validation.Required, validation.Min(1)),
	)
}

// ProgressConfig holds the path to the progress directory.
type ProgressConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the progress configuration.
func (c *ProgressConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WorkspacesConfig holds the workspace root and per-file limits.
type WorkspacesConfig struct {
	Path               string `yaml:"path"`
	MaxFileSize        int64  `yaml:"max_file_size"`
	MaxReadLines       int    `yaml:"max_read_lines"`
	MaxHistoryVersions int    `yaml:"max_history_versions"`
}

// Validate validates the workspaces configuration.
func (c *WorkspacesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxReadLines, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxHistoryVersions, validation.Required, validation.Min(1)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ReviewConfig holds spaced-repetition scheduling parameters.
type ReviewConfig struct {
	InitialIntervalDays float64 `yaml:"initial_interval_days"`
	Multiplier          float64 `yaml:"multiplier"`
	MaxIntervalDays     float64 `yaml:"max_interval_days"`
}

// Validate validates the review configuration.
func (c *ReviewConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.InitialIntervalDays, validation.Required, validation.Min(0.5)),
		validation.Field(&c.Multiplier, validation.Required, validation.Min(1.0)),
		validation.Field(&c.MaxIntervalDays, validation.Required, validation.Min(1.0)),
	); err != nil {
		return err
	}
	if c.MaxIntervalDays < c.InitialIntervalDays {
		return fmt.Errorf("review: max_interval_days %.1f is below initial_interval_days %.1f", c.MaxIntervalDays, c.InitialIntervalDays)
	}
	return nil
}

// GrepConfig holds knowledge-base search limits.
type GrepConfig struct {
	ContextLines int `yaml:"context_lines"`
	MaxMatches   int `yaml:"max_matches"`
}

// Validate validates the grep configuration.
func (c *GrepConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ContextLines, validation.Min(0)),
		validation.Field(&c.MaxMatches, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		KB: KBConfig{
			Path:         "./kb",
			MaxReadLines: 500,
		},
		Progress: ProgressConfig{
			Path: "./progress",
		},
		Workspaces: WorkspacesConfig{
			Path:               "./workspaces",
			MaxFileSize:        1 << 20,
			MaxReadLines:       500,
			MaxHistoryVersions: 50,
		},
		SQLite: SQLiteConfig{
			Path: "./studykb.db",
		},
		Review: ReviewConfig{
			InitialIntervalDays: 7,
			Multiplier:          1.5,
			MaxIntervalDays:     90,
		},
		Grep: GrepConfig{
			ContextLines: 2,
			MaxMatches:   50,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
