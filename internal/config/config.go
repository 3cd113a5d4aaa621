/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the per-user YAML configuration, applies GSP_*
// environment overrides and keeps the backend token in the OS keychain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written into new config files. Bump when the layout
// changes incompatibly.
const CurrentVersion = 1

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	EnableServer   bool   `yaml:"enable_server"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// EditorConfig tunes the placement canvas.
type EditorConfig struct {
	BaseWidth     float64 `yaml:"base_width"` // page width in px at 100% zoom
	ZoomMin       float64 `yaml:"zoom_min"`
	ZoomMax       float64 `yaml:"zoom_max"`
	DefaultZoom   float64 `yaml:"default_zoom"`
	SnapThreshold float64 `yaml:"snap_threshold"` // percent; 0 disables snapping
	ClampEdits    bool    `yaml:"clamp_edits"`
	UndoDepth     int     `yaml:"undo_depth"`
	UndoCoalesce  int     `yaml:"undo_coalesce_ms"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
	Editor        EditorConfig  `yaml:"editor"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Theme: "system"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Editor: EditorConfig{
			BaseWidth:    612,
			ZoomMin:      0.5,
			ZoomMax:      1.5,
			DefaultZoom:  1,
			ClampEdits:   true,
			UndoDepth:    200,
			UndoCoalesce: 500,
		},
	}
}

// Env var names used as overrides.
const (
	EnvBackendURL       = "GSP_BACKEND_URL"
	EnvBackendTimeoutMs = "GSP_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "GSP_TLS_INSECURE"
	EnvTelemetryOptIn   = "GSP_TELEMETRY_OPT_IN"
	EnvEnableServer     = "GSP_ENABLE_SERVER"
	EnvConfigFile       = "GSP_CONFIG"

	EnvLogLevel  = "GSP_LOG_LEVEL"
	EnvLogFormat = "GSP_LOG_FORMAT"
	EnvLogSource = "GSP_LOG_SOURCE"
	EnvLogFile   = "GSP_LOG_FILE"

	EnvSnapThreshold = "GSP_SNAP_THRESHOLD"
	EnvClampEdits    = "GSP_CLAMP_EDITS"
)

// ConfigPath returns the per-user config file path. GSP_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoSignPrep")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoSignPrep")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "gosignprep")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "gosignprep")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. Used by the server before Load.
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

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. The backend token comes from the keychain and is
// returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the YAML file and stores a non-empty token in the keychain.
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
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans are copied as-is so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure

	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}

	if src.Editor == (EditorConfig{}) {
		return
	}
	e := &dst.Editor
	if src.Editor.BaseWidth > 0 {
		e.BaseWidth = src.Editor.BaseWidth
	}
	if src.Editor.ZoomMin > 0 {
		e.ZoomMin = src.Editor.ZoomMin
	}
	if src.Editor.ZoomMax > 0 {
		e.ZoomMax = src.Editor.ZoomMax
	}
	if src.Editor.DefaultZoom > 0 {
		e.DefaultZoom = src.Editor.DefaultZoom
	}
	if src.Editor.SnapThreshold >= 0 {
		e.SnapThreshold = src.Editor.SnapThreshold
	}
	e.ClampEdits = src.Editor.ClampEdits
	if src.Editor.UndoDepth > 0 {
		e.UndoDepth = src.Editor.UndoDepth
	}
	if src.Editor.UndoCoalesce != 0 {
		e.UndoCoalesce = src.Editor.UndoCoalesce
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := os.Getenv(EnvBackendTLSInsec); v != "" {
		cfg.Backend.TLSInsecure = parseBool(v)
	}
	if v := os.Getenv(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := os.Getenv(EnvEnableServer); v != "" {
		cfg.General.EnableServer = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogSource); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnapThreshold)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Editor.SnapThreshold = f
		}
	}
	if v := os.Getenv(EnvClampEdits); v != "" {
		cfg.Editor.ClampEdits = parseBool(v)
	}
}

// EnvOverrideFor reports the env var overriding the dotted config key, if any.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// OverrideKeys returns the dotted config keys that have an environment
// override, sorted.
func OverrideKeys() []string {
	keys := make([]string, 0, len(envByKey))
	for k := range envByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var envByKey = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.enable_server":    EnvEnableServer,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
	"editor.snap_threshold":    EnvSnapThreshold,
	"editor.clamp_edits":       EnvClampEdits,
}

// Timeout returns the backend request timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
