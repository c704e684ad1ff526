package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"evidence-desk/internal/store"

	"github.com/joho/godotenv"
)

const (
	DefaultSettingsPath = "config/evidence-desk.json"

	DefaultServerURL             = "http://127.0.0.1:8000"
	DefaultRequestTimeoutSeconds = 30
	DefaultReconnectDelaySeconds = 2
	DefaultDialRetries           = 3
	DefaultPingIntervalSeconds   = 25
	DefaultDownloadDir           = "downloads"

	envPrefix = "EVIDENCE_DESK_"
)

// Settings is the persisted client configuration. Any zero or invalid
// field falls back to its default on load, so a hand-edited file can
// omit everything it does not care about.
type Settings struct {
	ServerURL             string `json:"server_url,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty"`
	ReconnectDelaySeconds int    `json:"reconnect_delay_seconds,omitempty"`
	DialRetries           int    `json:"dial_retries,omitempty"`
	PingIntervalSeconds   int    `json:"ping_interval_seconds,omitempty"`
	DownloadDir           string `json:"download_dir,omitempty"`
}

type UpdateSettingsOptions struct {
	SettingsPath string
	Settings     Settings
}

type UpdateSettingsResult struct {
	SettingsPath string   `json:"settings_path"`
	Settings     Settings `json:"settings"`
}

func defaultSettings() Settings {
	return Settings{
		ServerURL:             DefaultServerURL,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		ReconnectDelaySeconds: DefaultReconnectDelaySeconds,
		DialRetries:           DefaultDialRetries,
		PingIntervalSeconds:   DefaultPingIntervalSeconds,
		DownloadDir:           DefaultDownloadDir,
	}
}

func normalizeSettings(raw Settings) Settings {
	norm := raw
	norm.ServerURL = normalizeServerURL(norm.ServerURL)
	if norm.RequestTimeoutSeconds <= 0 {
		norm.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if norm.ReconnectDelaySeconds <= 0 {
		norm.ReconnectDelaySeconds = DefaultReconnectDelaySeconds
	}
	if norm.DialRetries <= 0 {
		norm.DialRetries = DefaultDialRetries
	}
	if norm.PingIntervalSeconds < 0 {
		norm.PingIntervalSeconds = DefaultPingIntervalSeconds
	}
	norm.DownloadDir = strings.TrimSpace(norm.DownloadDir)
	if norm.DownloadDir == "" {
		norm.DownloadDir = DefaultDownloadDir
	}
	return norm
}

func normalizeServerURL(raw string) string {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	if s == "" {
		return DefaultServerURL
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return DefaultServerURL
	}
	return s
}

func normalizeSettingsPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return DefaultSettingsPath
	}
	return p
}

// LoadSettings resolves the effective configuration in three layers:
// compiled defaults, then the JSON settings file, then EVIDENCE_DESK_*
// environment variables. A .env file in the working directory is read
// into the environment first when present.
func LoadSettings(settingsPath string) (Settings, error) {
	path := normalizeSettingsPath(settingsPath)

	settings := defaultSettings()
	var fromFile Settings
	err := store.ReadJSON(path, &fromFile)
	switch {
	case err == nil:
		settings = normalizeSettings(fromFile)
	case errors.Is(err, os.ErrNotExist):
	default:
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(&settings)
	return normalizeSettings(settings), nil
}

// EnsureSettings loads the settings file, creating it with defaults
// when missing. The bool reports whether the file was created.
func EnsureSettings(settingsPath string) (Settings, bool, error) {
	path := normalizeSettingsPath(settingsPath)
	var settings Settings
	err := store.ReadJSON(path, &settings)
	if err == nil {
		return normalizeSettings(settings), false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Settings{}, false, fmt.Errorf("read settings %s: %w", path, err)
	}

	settings = defaultSettings()
	if err := saveSettings(path, settings); err != nil {
		return Settings{}, false, err
	}
	return settings, true, nil
}

func UpdateSettings(opts UpdateSettingsOptions) (UpdateSettingsResult, error) {
	path := normalizeSettingsPath(opts.SettingsPath)
	settings := normalizeSettings(opts.Settings)
	if err := saveSettings(path, settings); err != nil {
		return UpdateSettingsResult{}, err
	}
	return UpdateSettingsResult{
		SettingsPath: path,
		Settings:     settings,
	}, nil
}

func saveSettings(path string, settings Settings) error {
	if err := store.Mkdir(filepath.Dir(path)); err != nil {
		return err
	}
	return store.WriteJSON(path, settings)
}

func applyEnvOverrides(settings *Settings) {
	if v, ok := envString("SERVER_URL"); ok {
		settings.ServerURL = v
	}
	if v, ok := envInt("REQUEST_TIMEOUT_SECONDS"); ok {
		settings.RequestTimeoutSeconds = v
	}
	if v, ok := envInt("RECONNECT_DELAY_SECONDS"); ok {
		settings.ReconnectDelaySeconds = v
	}
	if v, ok := envInt("DIAL_RETRIES"); ok {
		settings.DialRetries = v
	}
	if v, ok := envInt("PING_INTERVAL_SECONDS"); ok {
		settings.PingIntervalSeconds = v
	}
	if v, ok := envString("DOWNLOAD_DIR"); ok {
		settings.DownloadDir = v
	}
}

func envString(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return "", false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw, ok := envString(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func (s Settings) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelaySeconds) * time.Second
}

func (s Settings) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSeconds) * time.Second
}
