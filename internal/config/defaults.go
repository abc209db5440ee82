package config

import (
	"github.com/hyperjump/specsheet/internal/extract"
	"github.com/hyperjump/specsheet/internal/pagefields"
	"github.com/hyperjump/specsheet/internal/sheet"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 100
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/specsheet/data/db/batches.db"
	}
	if cfg.Extraction.Mode == "" {
		cfg.Extraction.Mode = string(pagefields.ModeAnyColor)
	}
	if cfg.Extraction.Collision == "" {
		cfg.Extraction.Collision = string(pagefields.CollisionConcatenate)
	}
	if cfg.Extraction.BlackThreshold == 0 {
		cfg.Extraction.BlackThreshold = pagefields.DefaultBlackThreshold
	}
	if cfg.Extraction.GoldTolerance == 0 {
		cfg.Extraction.GoldTolerance = pagefields.DefaultGoldTolerance
	}
	if cfg.Extraction.XTolerance == 0 {
		cfg.Extraction.XTolerance = extract.DefaultXTolerance
	}
	if cfg.Extraction.MaxFileSizeMB == 0 {
		cfg.Extraction.MaxFileSizeMB = int(extract.DefaultMaxSize >> 20)
	}
	if cfg.Export.SheetName == "" {
		cfg.Export.SheetName = sheet.DefaultSheetName
	}
	if cfg.Export.DefaultFileName == "" {
		cfg.Export.DefaultFileName = sheet.DefaultFileName
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
