// Package prefs persists terminal preferences and the last Setup form.
// Preferences are stored in ~/.config/btcpos/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/jsarenik/btcpos/internal/posconfig"
)

// StoredForm is the Setup form as last used to generate a link.
type StoredForm struct {
	Descriptor      string `toml:"descriptor"`
	Currency        string `toml:"currency"`
	ShowGear        bool   `toml:"show_gear"`
	ShowDescription bool   `toml:"show_description"`
}

// Prefs holds user preferences.
type Prefs struct {
	Theme string     `toml:"theme"`
	Form  StoredForm `toml:"form"`
}

const (
	defaultPrefsPath = "~/.config/btcpos/prefs.toml"
	defaultTheme     = "Nightfox"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme, Form: StoredForm{ShowDescription: true}}
}

// FormFromConfig captures cfg as a StoredForm.
func FormFromConfig(cfg posconfig.Config) StoredForm {
	return StoredForm{
		Descriptor:      cfg.Descriptor,
		Currency:        cfg.Currency,
		ShowGear:        cfg.ShowSettingsGear,
		ShowDescription: cfg.ShowDescription,
	}
}

// Config returns the form as a POS configuration. It is not validated.
func (f StoredForm) Config() posconfig.Config {
	return posconfig.Config{
		Descriptor:       f.Descriptor,
		Currency:         f.Currency,
		ShowSettingsGear: f.ShowGear,
		ShowDescription:  f.ShowDescription,
	}
}

// Empty reports whether no form was ever saved.
func (f StoredForm) Empty() bool {
	return f.Descriptor == "" && f.Currency == ""
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	prefs := defaults()
	resolved, err := resolvePath(path)
	if err != nil {
		return prefs, nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(data, &prefs); err != nil {
		return defaults(), nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
// The file is replaced atomically.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := renameio.WriteFile(resolved, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// SaveForm overwrites the stored form, keeping the other preferences.
func SaveForm(path string, form StoredForm) error {
	p, _ := Load(path)
	p.Form = form
	return Save(path, p)
}

// SaveTheme records the chosen theme, keeping the other preferences.
func SaveTheme(path, theme string) error {
	p, _ := Load(path)
	p.Theme = theme
	return Save(path, p)
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultPrefsPath)
	}
	return ExpandPath(path)
}
