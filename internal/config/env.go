package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SPECSHEET_SERVER_PORT.
const EnvPrefix = "SPECSHEET"

// ApplyEnv overrides cfg with any SPECSHEET_* environment variables that are set.
// Keys follow the YAML layout with "." replaced by "_", e.g. SPECSHEET_EXTRACTION_MODE.
// List values (watch directories) are comma separated.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	str := map[string]*string{
		"server.host":              &cfg.Server.Host,
		"storage.database_path":    &cfg.Storage.DatabasePath,
		"extraction.mode":          &cfg.Extraction.Mode,
		"extraction.collision":     &cfg.Extraction.Collision,
		"watch.output_directory":   &cfg.Watch.OutputDirectory,
		"export.sheet_name":        &cfg.Export.SheetName,
		"export.default_file_name": &cfg.Export.DefaultFileName,
	}
	ints := map[string]*int{
		"server.port":                 &cfg.Server.Port,
		"server.max_upload_mb":        &cfg.Server.MaxUploadMB,
		"extraction.max_file_size_mb": &cfg.Extraction.MaxFileSizeMB,
	}
	floats := map[string]*float64{
		"extraction.black_threshold": &cfg.Extraction.BlackThreshold,
		"extraction.gold_tolerance":  &cfg.Extraction.GoldTolerance,
		"extraction.x_tolerance":     &cfg.Extraction.XTolerance,
	}
	bools := map[string]*bool{
		"debug":                      &cfg.Debug,
		"extraction.skip_unreadable": &cfg.Extraction.SkipUnreadable,
	}

	set := func(key string) bool {
		_ = v.BindEnv(key)
		return v.IsSet(key)
	}
	for key, dst := range str {
		if set(key) {
			*dst = v.GetString(key)
		}
	}
	for key, dst := range ints {
		if set(key) {
			*dst = v.GetInt(key)
		}
	}
	for key, dst := range floats {
		if set(key) {
			*dst = v.GetFloat64(key)
		}
	}
	for key, dst := range bools {
		if set(key) {
			*dst = v.GetBool(key)
		}
	}
	if set("watch.directories") {
		var dirs []string
		for _, d := range strings.Split(v.GetString("watch.directories"), ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		cfg.Watch.Directories = dirs
	}
	if set("watch.recursive") {
		r := v.GetBool("watch.recursive")
		cfg.Watch.Recursive = &r
	}
}
