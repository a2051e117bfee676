/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user scope,
// an optional .env file, SBD_* environment overrides and the database
// password held in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// StorageConfig selects the breakdown store. The Postgres password is not
// stored on disk; it lives in the OS keychain and is spliced into the DSN.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type NLPConfig struct {
	Model       string `yaml:"model"`
	LexiconPath string `yaml:"lexicon_path"`
}

type AnalysisConfig struct {
	MaxScriptSizeMB int    `yaml:"max_script_size_mb"`
	UploadDir       string `yaml:"upload_dir"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
}

// AppConfig is the user-editable configuration persisted as YAML.
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Logging       LoggingConfig   `yaml:"logging"`
	Storage       StorageConfig   `yaml:"storage"`
	NLP           NLPConfig       `yaml:"nlp"`
	Analysis      AnalysisConfig  `yaml:"analysis"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	dataDir := filepath.Dir(defaultConfigDir())
	return AppConfig{
		ConfigVersion: 1,
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: filepath.Join(dataDir, "scriptbreakdown", "breakdowns.sqlite"),
		},
		NLP:      NLPConfig{Model: "prose-en"},
		Analysis: AnalysisConfig{MaxScriptSizeMB: 10, UploadDir: filepath.Join(os.TempDir(), "scriptbreakdown", "scripts")},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "SBD_CONFIG"
	EnvStorageDriver  = "SBD_STORAGE_DRIVER"
	EnvSQLitePath     = "SBD_SQLITE_PATH"
	EnvPostgresDSN    = "SBD_PG_DSN"
	EnvLexiconPath    = "SBD_LEXICON_PATH"
	EnvNLPModel       = "SBD_NLP_MODEL"
	EnvMaxScriptMB    = "SBD_MAX_SCRIPT_MB"
	EnvUploadDir      = "SBD_UPLOAD_DIR"
	EnvTelemetryOptIn = "SBD_TELEMETRY_OPT_IN"
	EnvTelemetryURL   = "SBD_TELEMETRY_URL"
	EnvLogLevel       = "SBD_LOG_LEVEL"
	EnvLogFormat      = "SBD_LOG_FORMAT"
	EnvLogSource      = "SBD_LOG_SOURCE"
	EnvLogFile        = "SBD_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService  = "ScriptBreakdown"
	keyringPassword = "postgres_password"
)

// SecretStore abstracts the keyring, so we can stub it in tests.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var secretStore SecretStore = osKeyring{}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "ScriptBreakdown")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ScriptBreakdown")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			return filepath.Join(x, "scriptbreakdown")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "scriptbreakdown")
	}
}

// ConfigPath returns the per-user config file path, or SBD_CONFIG when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir := defaultConfigDir()
	if dir == "" || dir == filepath.Join(".config", "scriptbreakdown") {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables already set are left untouched and
// missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load reads .env, the user config file (if present), applies defaults and
// merges environment overrides. A malformed config file is reported.
func Load() (AppConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return Defaults(), err
	}
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit YAML path without .env handling.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML and persists the database password into
// the OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := secretStore.Set(keyringService, keyringPassword, password); err != nil {
			return fmt.Errorf("store password: %w", err)
		}
	}
	return nil
}

// PostgresURL returns the configured DSN with the keyring password spliced in
// when the DSN names a user without a password.
func (s StorageConfig) PostgresURL() (string, error) {
	dsn := strings.TrimSpace(s.PostgresDSN)
	if dsn == "" {
		return "", errors.New("postgres dsn is not configured")
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn, nil
	}
	if _, has := u.User.Password(); has {
		return dsn, nil
	}
	pw, err := secretStore.Get(keyringService, keyringPassword)
	if err != nil || pw == "" {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), pw)
	return u.String(), nil
}

// MaxScriptBytes is the upload limit in bytes.
func (a AnalysisConfig) MaxScriptBytes() int64 {
	mb := a.MaxScriptSizeMB
	if mb <= 0 {
		mb = Defaults().Analysis.MaxScriptSizeMB
	}
	return int64(mb) << 20
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
	if v := strings.TrimSpace(src.Storage.Driver); v != "" {
		dst.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Storage.SQLitePath); v != "" {
		dst.Storage.SQLitePath = v
	}
	if v := strings.TrimSpace(src.Storage.PostgresDSN); v != "" {
		dst.Storage.PostgresDSN = v
	}
	if v := strings.TrimSpace(src.NLP.Model); v != "" {
		dst.NLP.Model = v
	}
	if v := strings.TrimSpace(src.NLP.LexiconPath); v != "" {
		dst.NLP.LexiconPath = v
	}
	if src.Analysis.MaxScriptSizeMB > 0 {
		dst.Analysis.MaxScriptSizeMB = src.Analysis.MaxScriptSizeMB
	}
	if v := strings.TrimSpace(src.Analysis.UploadDir); v != "" {
		dst.Analysis.UploadDir = v
	}
	// booleans: copy directly from the file so user preferences persist
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	if v := strings.TrimSpace(src.Telemetry.EventsURL); v != "" {
		dst.Telemetry.EventsURL = v
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(env string, dst *string, lower bool) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			if lower {
				v = strings.ToLower(v)
			}
			*dst = v
		}
	}
	str(EnvStorageDriver, &cfg.Storage.Driver, true)
	str(EnvSQLitePath, &cfg.Storage.SQLitePath, false)
	str(EnvPostgresDSN, &cfg.Storage.PostgresDSN, false)
	str(EnvLexiconPath, &cfg.NLP.LexiconPath, false)
	str(EnvNLPModel, &cfg.NLP.Model, false)
	str(EnvUploadDir, &cfg.Analysis.UploadDir, false)
	str(EnvTelemetryURL, &cfg.Telemetry.EventsURL, false)
	str(EnvLogLevel, &cfg.Logging.Level, true)
	str(EnvLogFormat, &cfg.Logging.Format, true)
	str(EnvLogFile, &cfg.Logging.File, false)
	if v := strings.TrimSpace(os.Getenv(EnvMaxScriptMB)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Analysis.MaxScriptSizeMB = n
		}
	}
	if v := os.Getenv(EnvTelemetryOptIn); strings.TrimSpace(v) != "" {
		cfg.Telemetry.OptIn = truthy(v)
	}
	if v := os.Getenv(EnvLogSource); strings.TrimSpace(v) != "" {
		cfg.Logging.Source = truthy(v)
	}
}

var envByKey = map[string]string{
	"storage.driver":              EnvStorageDriver,
	"storage.sqlite_path":         EnvSQLitePath,
	"storage.postgres_dsn":        EnvPostgresDSN,
	"nlp.lexicon_path":            EnvLexiconPath,
	"nlp.model":                   EnvNLPModel,
	"analysis.max_script_size_mb": EnvMaxScriptMB,
	"analysis.upload_dir":         EnvUploadDir,
	"telemetry.opt_in":            EnvTelemetryOptIn,
	"telemetry.events_url":        EnvTelemetryURL,
	"logging.level":               EnvLogLevel,
	"logging.format":              EnvLogFormat,
	"logging.source":              EnvLogSource,
	"logging.file":                EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envByKey[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
