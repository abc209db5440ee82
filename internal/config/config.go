// Package config provides configuration loading and structs for the specsheet tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/pagefields"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool                `yaml:"debug"`
	Server     ServerConfig        `yaml:"server"`
	Storage    StorageConfig       `yaml:"storage"`
	Extraction ExtractionConfig    `yaml:"extraction"`
	Fields     []fields.Definition `yaml:"fields,omitempty"`
	Watch      WatchConfig         `yaml:"watch"`
	Export     ExportConfig        `yaml:"export"`
}

// WatchConfig holds inbox watch settings.
type WatchConfig struct {
	Directories     []string `yaml:"directories"`
	OutputDirectory string   `yaml:"output_directory"`
	Recursive       *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// StorageConfig holds the batch database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ExtractionConfig holds PDF reading and field pairing settings.
type ExtractionConfig struct {
	// Mode is "any" (every non-black run is a value) or "gold" (only gold runs are values).
	Mode string `yaml:"mode"`
	// Collision is "concatenate" or "overwrite" for fields repeated on one page.
	Collision      string      `yaml:"collision"`
	BlackThreshold float64     `yaml:"black_threshold"`
	GoldTones      [][]float64 `yaml:"gold_tones,omitempty"`
	GoldTolerance  float64     `yaml:"gold_tolerance"`
	XTolerance     float64     `yaml:"x_tolerance"`
	MaxFileSizeMB  int         `yaml:"max_file_size_mb"`
	SkipUnreadable bool        `yaml:"skip_unreadable"`
}

// MaxFileSize returns the per-document size limit in bytes.
func (e ExtractionConfig) MaxFileSize() int64 {
	return int64(e.MaxFileSizeMB) << 20
}

// Classifier builds the run classifier described by e.
func (e ExtractionConfig) Classifier() (pagefields.Classifier, error) {
	cl := pagefields.DefaultClassifier()
	switch pagefields.Mode(strings.ToLower(e.Mode)) {
	case pagefields.ModeAnyColor, "":
		cl.Mode = pagefields.ModeAnyColor
	case pagefields.ModeGold:
		cl.Mode = pagefields.ModeGold
	default:
		return cl, fmt.Errorf("unknown extraction mode %q (want %q or %q)", e.Mode, pagefields.ModeAnyColor, pagefields.ModeGold)
	}
	if e.BlackThreshold > 0 {
		cl.BlackThreshold = e.BlackThreshold
	}
	if e.GoldTolerance > 0 {
		cl.GoldTolerance = e.GoldTolerance
	}
	if len(e.GoldTones) > 0 {
		tones := make([]pagefields.RGB, len(e.GoldTones))
		for i, t := range e.GoldTones {
			tones[i] = pagefields.NormalizeColor(t)
		}
		cl.GoldTones = tones
	}
	return cl, nil
}

// CollisionPolicy returns the configured within-page collision policy.
func (e ExtractionConfig) CollisionPolicy() (pagefields.Collision, error) {
	switch c := pagefields.Collision(strings.ToLower(e.Collision)); c {
	case "":
		return pagefields.CollisionConcatenate, nil
	case pagefields.CollisionConcatenate, pagefields.CollisionOverwrite:
		return c, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q (want %q or %q)", e.Collision, pagefields.CollisionConcatenate, pagefields.CollisionOverwrite)
	}
}

// ExportConfig holds spreadsheet output settings.
type ExportConfig struct {
	SheetName       string `yaml:"sheet_name"`
	DefaultFileName string `yaml:"default_file_name"`
}

// FieldSet returns the configured fields, or the built-in 17 when none are configured.
func (c *Config) FieldSet() (*fields.Set, error) {
	if len(c.Fields) == 0 {
		return fields.Default(), nil
	}
	set, err := fields.NewSet(c.Fields)
	if err != nil {
		return nil, fmt.Errorf("invalid fields: %w", err)
	}
	return set, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := c.Extraction.Classifier(); err != nil {
		return err
	}
	if _, err := c.Extraction.CollisionPolicy(); err != nil {
		return err
	}
	if _, err := c.FieldSet(); err != nil {
		return err
	}
	return nil
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Watch.OutputDirectory = expandPath(cfg.Watch.OutputDirectory, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
