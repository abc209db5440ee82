package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/pagefields"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
extraction:
  mode: gold
  collision: overwrite
  skip_unreadable: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Extraction.Mode != "gold" || cfg.Extraction.Collision != "overwrite" || !cfg.Extraction.SkipUnreadable {
		t.Errorf("unexpected extraction config: %+v", cfg.Extraction)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/batches.db"
watch:
  directories: ["./inbox"]
  output_directory: "./outbox"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "batches.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	if want := filepath.Join(dir, "inbox"); cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
	if want := filepath.Join(dir, "outbox"); cfg.Watch.OutputDirectory != want {
		t.Errorf("output directory = %s, want %s", cfg.Watch.OutputDirectory, want)
	}
}

func TestLoad_errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("server: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_fields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "test.db"
fields:
  - name: customer
    aliases: [customer, client]
  - name: date
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	set, err := cfg.FieldSet()
	if err != nil {
		t.Fatal(err)
	}
	cols := set.Columns()
	if len(cols) != 2 || cols[0] != "customer" || cols[1] != "date" {
		t.Errorf("columns = %v", cols)
	}
	if got, ok := fields.NewMatcher(set).Match("Client"); !ok || got != "customer" {
		t.Errorf("Match(Client) = %q, %v", got, ok)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes() != 100<<20 {
		t.Errorf("default upload limit: got %d", cfg.Server.MaxUploadBytes())
	}
	if cfg.Extraction.Mode != "any" || cfg.Extraction.Collision != "concatenate" {
		t.Errorf("default extraction: got %+v", cfg.Extraction)
	}
	if cfg.Extraction.XTolerance != 3 {
		t.Errorf("default x_tolerance: got %v", cfg.Extraction.XTolerance)
	}
	if cfg.Extraction.MaxFileSize() != 50<<20 {
		t.Errorf("default max file size: got %d", cfg.Extraction.MaxFileSize())
	}
	if cfg.Export.SheetName != "Spec Sheets" || cfg.Export.DefaultFileName != "spec_sheets.xlsx" {
		t.Errorf("default export: got %+v", cfg.Export)
	}
	if cfg.Extraction.SkipUnreadable {
		t.Error("skip_unreadable should default to false")
	}
	set, err := cfg.FieldSet()
	if err != nil || set.Len() != 17 {
		t.Errorf("default field set: %v, %v", set, err)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/inbox"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestExtractionConfig_Classifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ExtractionConfig
		want    pagefields.Mode
		wantErr bool
	}{
		{"empty is any", ExtractionConfig{}, pagefields.ModeAnyColor, false},
		{"any", ExtractionConfig{Mode: "any"}, pagefields.ModeAnyColor, false},
		{"gold upper case", ExtractionConfig{Mode: "GOLD"}, pagefields.ModeGold, false},
		{"unknown", ExtractionConfig{Mode: "rainbow"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl, err := tt.cfg.Classifier()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cl.Mode != tt.want {
				t.Errorf("mode = %q, want %q", cl.Mode, tt.want)
			}
		})
	}
}

func TestExtractionConfig_ClassifierOverrides(t *testing.T) {
	cl, err := ExtractionConfig{
		Mode:           "gold",
		BlackThreshold: 0.1,
		GoldTolerance:  0.02,
		GoldTones:      [][]float64{{1, 0.8, 0}},
	}.Classifier()
	if err != nil {
		t.Fatal(err)
	}
	if cl.BlackThreshold != 0.1 || cl.GoldTolerance != 0.02 {
		t.Errorf("thresholds = %v, %v", cl.BlackThreshold, cl.GoldTolerance)
	}
	if len(cl.GoldTones) != 1 || cl.GoldTones[0] != (pagefields.RGB{1, 0.8, 0}) {
		t.Errorf("gold tones = %v", cl.GoldTones)
	}
	if !cl.IsGold(pagefields.RGB{0.99, 0.81, 0}) {
		t.Error("expected custom tone to match")
	}
}

func TestExtractionConfig_CollisionPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    pagefields.Collision
		wantErr bool
	}{
		{"", pagefields.CollisionConcatenate, false},
		{"concatenate", pagefields.CollisionConcatenate, false},
		{"Overwrite", pagefields.CollisionOverwrite, false},
		{"merge", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExtractionConfig{Collision: tt.in}.CollisionPolicy()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad mode", func(c *Config) { c.Extraction.Mode = "blue" }},
		{"bad collision", func(c *Config) { c.Extraction.Collision = "merge" }},
		{"duplicate field", func(c *Config) {
			c.Fields = []fields.Definition{{Name: "a"}, {Name: "a"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPECSHEET_SERVER_PORT", "9191")
	t.Setenv("SPECSHEET_DEBUG", "true")
	t.Setenv("SPECSHEET_EXTRACTION_MODE", "gold")
	t.Setenv("SPECSHEET_EXTRACTION_SKIP_UNREADABLE", "1")
	t.Setenv("SPECSHEET_EXTRACTION_X_TOLERANCE", "4.5")
	t.Setenv("SPECSHEET_WATCH_DIRECTORIES", "/in/a, /in/b,")
	t.Setenv("SPECSHEET_WATCH_RECURSIVE", "false")

	cfg := Default()
	ApplyEnv(cfg)

	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Extraction.Mode != "gold" || !cfg.Extraction.SkipUnreadable || cfg.Extraction.XTolerance != 4.5 {
		t.Errorf("extraction = %+v", cfg.Extraction)
	}
	if len(cfg.Watch.Directories) != 2 || cfg.Watch.Directories[1] != "/in/b" {
		t.Errorf("directories = %v", cfg.Watch.Directories)
	}
	if cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should be false")
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("unset variables must not change values: host = %q", cfg.Server.Host)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		Fields:  []fields.Definition{{Name: "customer", Aliases: []string{"customer"}}},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if len(loaded.Fields) != 1 || loaded.Fields[0].Name != "customer" {
		t.Errorf("loaded fields: got %+v", loaded.Fields)
	}
}
