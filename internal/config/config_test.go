/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

// isolate points the config path at a temp file and mocks the keyring.
func isolate(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}
	if cfg.Workspace.SourceDir != "raw" || cfg.Workspace.TranslationDir != "english" || cfg.Editor.Theme != "light" {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
	if cfg.Workspace.KeepBackups != 20 || cfg.Workspace.KeepSnapshots != 50 {
		t.Fatalf("retention defaults = %d backups, %d snapshots", cfg.Workspace.KeepBackups, cfg.Workspace.KeepSnapshots)
	}
}

func TestSaveAndLoadRoundTripWithToken(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Workspace.Root = "/novels/n1"
	cfg.Scraper.Concurrency = 4
	cfg.Workspace.KeepSnapshots = 5
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Workspace.Root != "/novels/n1" || got.Scraper.Concurrency != 4 || got.Workspace.KeepSnapshots != 5 {
		t.Fatalf("file values not loaded: %#v", got)
	}
	if tok != "s3cret" {
		t.Fatalf("token = %q", tok)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken() error: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken() error: %v", err)
	}
}

func TestSetTokenLeavesConfigFileAlone(t *testing.T) {
	path := isolate(t)
	if err := SetToken("  "); err == nil {
		t.Fatalf("blank token accepted")
	}
	if err := SetToken("abc"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("config file written: %v", err)
	}
	if _, tok, _ := Load(); tok != "abc" {
		t.Fatalf("token = %q", tok)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("workspace: [unclosed"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvWorkspace, "/env/novel")
	t.Setenv(EnvTheme, "DARK")
	t.Setenv(EnvScrapeDelayMs, "250")
	t.Setenv(EnvScrapeWorkers, "0") // ignored, must stay positive
	t.Setenv(EnvTelemetryOptIn, "yes")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workspace.Root != "/env/novel" || cfg.Editor.Theme != "dark" || !cfg.General.TelemetryOptIn {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
	if cfg.Scraper.Delay() != 250*time.Millisecond || cfg.Scraper.Concurrency != 2 {
		t.Fatalf("scraper = %#v", cfg.Scraper)
	}
	if env, ok := EnvOverrideFor("workspace.root"); !ok || env != EnvWorkspace {
		t.Fatalf("EnvOverrideFor = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("server.addr"); ok {
		t.Fatalf("server.addr reported as overridden")
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/gtr.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/gtr.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Logging: LoggingConfig{Level: "DEBUG", Format: "json", Source: true, File: " /tmp/gtr.log "}}
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/gtr.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	// zero values in the file keep defaults
	if dst.Workspace.SourceDir != "raw" || dst.Server.TimeoutMs != 15000 {
		t.Fatalf("defaults lost: %#v", dst)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "test.env")
	if err := os.WriteFile(f, []byte("GTR_TEST_DOTENV_A=fromfile\nGTR_TEST_DOTENV_B=fromfile\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Setenv("GTR_TEST_DOTENV_A", "preset")
	t.Cleanup(func() { _ = os.Unsetenv("GTR_TEST_DOTENV_B") })
	if err := LoadDotEnv(f, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}
	if os.Getenv("GTR_TEST_DOTENV_A") != "preset" || os.Getenv("GTR_TEST_DOTENV_B") != "fromfile" {
		t.Fatalf("env = %q, %q", os.Getenv("GTR_TEST_DOTENV_A"), os.Getenv("GTR_TEST_DOTENV_B"))
	}
}

func TestDurations(t *testing.T) {
	if got := (ServerConfig{}).Timeout(); got != 15*time.Second {
		t.Fatalf("default server timeout = %v", got)
	}
	if got := (EditorConfig{UndoCoalesceMs: 50}).UndoCoalesce(); got != 50*time.Millisecond {
		t.Fatalf("UndoCoalesce = %v", got)
	}
	if got := (ScraperConfig{DelayMs: -1}).Delay(); got >= 0 {
		t.Fatalf("negative delay_ms should disable the pause, got %v", got)
	}
}
