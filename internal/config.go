package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// MinAutosaveInterval keeps the autosave ticker from hammering the disk.
const MinAutosaveInterval = 100 * time.Millisecond

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Notes    NotesConfig       `yaml:"notes"`
	Autosave AutosaveConfig    `yaml:"autosave"`
	Session  SessionConfig     `yaml:"session"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration and expands "~" in paths.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Autosave.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile receives logs in TUI mode, where stdout belongs to the terminal.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFile != "" {
		p, err := expandHome(c.LogFile)
		if err != nil {
			return err
		}
		c.LogFile = p
	}
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

// NotesConfig holds the notes directory.
type NotesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return err
	}
	p, err := expandHome(c.Path)
	if err != nil {
		return err
	}
	c.Path = p
	return nil
}

// AutosaveConfig controls when editor buffers reach disk.
type AutosaveConfig struct {
	Interval time.Duration `yaml:"interval"`
	// EditDebounce is how long the TUI waits after a keystroke before
	// handing the buffer to the session.
	EditDebounce  time.Duration `yaml:"edit_debounce"`
	FlushOnSwitch bool          `yaml:"flush_on_switch"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(MinAutosaveInterval)),
		validation.Field(&c.EditDebounce, validation.Min(time.Duration(0))),
	)
}

// SessionConfig holds the session state database.
//
// Path defaults to a hidden file inside the notes directory.
type SessionConfig struct {
	Path    string `yaml:"path"`
	Restore bool   `yaml:"restore"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	if c.Path == "" {
		return nil
	}
	p, err := expandHome(c.Path)
	if err != nil {
		return err
	}
	c.Path = p
	return nil
}

// StatePath returns the state database path for notesDir.
func (c *SessionConfig) StatePath(notesDir string) string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(notesDir, ".quicknote-state.db")
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
			LogFile:  "~/.quicknote.log",
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Path: "~/QuickNotes",
		},
		Autosave: AutosaveConfig{
			Interval:      time.Second,
			EditDebounce:  300 * time.Millisecond,
			FlushOnSwitch: true,
		},
		Session: SessionConfig{
			Restore: true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
