/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the user config
// directory, merged over defaults, with GTR_* environment variables as read-only
// overrides. The server API token lives in the OS keyring, never in the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// config_version: bump when the structure changes in a backward-incompatible way.

type WorkspaceConfig struct {
	Root           string `yaml:"root"`
	SourceDir      string `yaml:"source_dir"`
	TranslationDir string `yaml:"translation_dir"`
	NotesDir       string `yaml:"notes_dir"`
	ChapterPattern string `yaml:"chapter_pattern"`
	KeepBackups    int    `yaml:"keep_backups"`
	KeepSnapshots  int    `yaml:"keep_snapshots"`
}

type EditorConfig struct {
	Theme               string `yaml:"theme"` // "light" | "dark"
	UndoMaxPerParagraph int    `yaml:"undo_max_per_paragraph"`
	UndoCoalesceMs      int    `yaml:"undo_coalesce_ms"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type ScraperConfig struct {
	UserAgent   string `yaml:"user_agent"`
	DelayMs     int    `yaml:"delay_ms"`
	Concurrency int    `yaml:"concurrency"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

type ExportConfig struct {
	FontPath string `yaml:"font_path"` // UTF-8 TTF used by the PDF exporter
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	General       GeneralConfig   `yaml:"general"`
	Workspace     WorkspaceConfig `yaml:"workspace"`
	Editor        EditorConfig    `yaml:"editor"`
	Server        ServerConfig    `yaml:"server"`
	Scraper       ScraperConfig   `yaml:"scraper"`
	Export        ExportConfig    `yaml:"export"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Workspace:     WorkspaceConfig{SourceDir: "raw", TranslationDir: "english", NotesDir: "notes", ChapterPattern: "**/*.txt", KeepBackups: 20, KeepSnapshots: 50},
		Editor:        EditorConfig{Theme: "light", UndoMaxPerParagraph: 50, UndoCoalesceMs: 300},
		Server:        ServerConfig{Addr: "127.0.0.1:7321", TimeoutMs: 15000},
		Scraper:       ScraperConfig{UserAgent: "gotranslator/0.1 (+chapter importer)", DelayMs: 1000, Concurrency: 2, TimeoutMs: 20000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "GTR_CONFIG"
	EnvWorkspace      = "GTR_WORKSPACE"
	EnvTheme          = "GTR_THEME"
	EnvServerAddr     = "GTR_SERVER_ADDR"
	EnvScrapeDelayMs  = "GTR_SCRAPE_DELAY_MS"
	EnvScrapeWorkers  = "GTR_SCRAPE_CONCURRENCY"
	EnvScrapeAgent    = "GTR_SCRAPE_USER_AGENT"
	EnvExportFont     = "GTR_EXPORT_FONT"
	EnvTelemetryOptIn = "GTR_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GTR_LOG_LEVEL"
	EnvLogFormat = "GTR_LOG_FORMAT"
	EnvLogSource = "GTR_LOG_SOURCE"
	EnvLogFile   = "GTR_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "GoTranslator"
	keyringToken   = "server_token"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the keyring backend and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = ts
	return prev
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

// LoadDotEnv loads KEY=VALUE files into the process environment without replacing
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// ConfigPath returns the per-user config file path. GTR_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoTranslator")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoTranslator")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "gotranslator")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. The server token is read from the keyring and returned
// separately; a missing token is not an error.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
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
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// SetToken stores the server token in the keyring without touching the config file.
func SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	return tokenStore.Set(keyringService, keyringToken, token)
}

// ClearToken removes the server token from the keyring.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	setString(&dst.Workspace.Root, src.Workspace.Root)
	setString(&dst.Workspace.SourceDir, src.Workspace.SourceDir)
	setString(&dst.Workspace.TranslationDir, src.Workspace.TranslationDir)
	setString(&dst.Workspace.NotesDir, src.Workspace.NotesDir)
	setString(&dst.Workspace.ChapterPattern, src.Workspace.ChapterPattern)
	setInt(&dst.Workspace.KeepBackups, src.Workspace.KeepBackups)
	setInt(&dst.Workspace.KeepSnapshots, src.Workspace.KeepSnapshots)

	setString(&dst.Editor.Theme, strings.ToLower(src.Editor.Theme))
	setInt(&dst.Editor.UndoMaxPerParagraph, src.Editor.UndoMaxPerParagraph)
	setInt(&dst.Editor.UndoCoalesceMs, src.Editor.UndoCoalesceMs)

	setString(&dst.Server.Addr, src.Server.Addr)
	setInt(&dst.Server.TimeoutMs, src.Server.TimeoutMs)

	setString(&dst.Scraper.UserAgent, src.Scraper.UserAgent)
	setInt(&dst.Scraper.DelayMs, src.Scraper.DelayMs)
	setInt(&dst.Scraper.Concurrency, src.Scraper.Concurrency)
	setInt(&dst.Scraper.TimeoutMs, src.Scraper.TimeoutMs)

	setString(&dst.Export.FontPath, src.Export.FontPath)

	setString(&dst.Logging.Level, strings.ToLower(src.Logging.Level))
	setString(&dst.Logging.Format, strings.ToLower(src.Logging.Format))
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.Workspace.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTheme)); v != "" {
		cfg.Editor.Theme = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvScrapeDelayMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scraper.DelayMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvScrapeWorkers)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scraper.Concurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvScrapeAgent)); v != "" {
		cfg.Scraper.UserAgent = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportFont)); v != "" {
		cfg.Export.FontPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"workspace.root":           EnvWorkspace,
	"editor.theme":             EnvTheme,
	"server.addr":              EnvServerAddr,
	"scraper.delay_ms":         EnvScrapeDelayMs,
	"scraper.concurrency":      EnvScrapeWorkers,
	"scraper.user_agent":       EnvScrapeAgent,
	"export.font_path":         EnvExportFont,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

func ms(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Millisecond
}

// Timeout returns the HTTP server read/write timeout.
func (s ServerConfig) Timeout() time.Duration { return ms(s.TimeoutMs, Defaults().Server.TimeoutMs) }

// Delay returns the pause between scraper requests. A negative delay_ms disables
// the pause and is passed on as a negative duration.
func (s ScraperConfig) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

// Timeout returns the per-request scraper timeout.
func (s ScraperConfig) Timeout() time.Duration {
	return ms(s.TimeoutMs, Defaults().Scraper.TimeoutMs)
}

// UndoCoalesce returns the interval within which edits of a paragraph merge.
func (e EditorConfig) UndoCoalesce() time.Duration {
	return ms(e.UndoCoalesceMs, Defaults().Editor.UndoCoalesceMs)
}
