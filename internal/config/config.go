// Package config loads the launcher's configuration surface from
// environment variables, following the teacher's direct os.Getenv idiom
// (no configuration framework).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	envBasePath          = "MEINEAPP_BASE_PATH"
	envUpdateURL         = "MEINEAPP_UPDATE_URL"
	envPublicKeyFile     = "MEINEAPP_PUBLIC_KEY_FILE"
	envHeartbeatInterval = "MEINEAPP_HEARTBEAT_INTERVAL"
	envHeartbeatTimeout  = "MEINEAPP_HEARTBEAT_TIMEOUT"
	envHTTPTimeout       = "MEINEAPP_HTTP_TIMEOUT"

	defaultUpdateURL         = "http://localhost:8000/update.json"
	defaultHeartbeatInterval = 5 * time.Second
	defaultHeartbeatTimeout  = 15 * time.Second
	defaultHTTPTimeout       = 30 * time.Second
)

// Config is the launcher's full configuration surface. It is built once by
// Load, and the entry point passes its fields into the component
// constructors.
type Config struct {
	BasePath          string
	UpdateInfoURL     string
	PublicKeyPEM      []byte
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	HTTPTimeout       time.Duration
}

// Load builds a Config from the environment, falling back to documented
// defaults for anything unset. defaultPublicKeyPEM is the compile-time
// fallback key; MEINEAPP_PUBLIC_KEY_FILE overrides it for test/staging keys.
func Load(defaultPublicKeyPEM []byte) (*Config, error) {
	cfg := &Config{
		BasePath:          os.Getenv(envBasePath),
		UpdateInfoURL:     os.Getenv(envUpdateURL),
		PublicKeyPEM:      defaultPublicKeyPEM,
		HeartbeatInterval: defaultHeartbeatInterval,
		HeartbeatTimeout:  defaultHeartbeatTimeout,
		HTTPTimeout:       defaultHTTPTimeout,
	}

	if cfg.BasePath == "" {
		cfg.BasePath = filepath.Join(defaultCacheRoot(), "MeineFirma", "MeineApp")
	}
	if cfg.UpdateInfoURL == "" {
		cfg.UpdateInfoURL = defaultUpdateURL
	}

	if keyFile := os.Getenv(envPublicKeyFile); keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", envPublicKeyFile, err)
		}
		cfg.PublicKeyPEM = data
	}

	if err := overrideDuration(envHeartbeatInterval, &cfg.HeartbeatInterval); err != nil {
		return nil, err
	}
	if err := overrideDuration(envHeartbeatTimeout, &cfg.HeartbeatTimeout); err != nil {
		return nil, err
	}
	if err := overrideDuration(envHTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideDuration(envVar string, dst *time.Duration) error {
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", envVar, raw, err)
	}
	*dst = d
	return nil
}

// defaultCacheRoot mirrors the teacher's platform-switch cache-directory
// resolution (internal/workenv.GetCacheRoot in the teacher repo), generalized
// from a single FLAVOR_CACHE_DIR override to this launcher's own base path.
func defaultCacheRoot() string {
	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Caches")
		}
	case "linux":
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return xdgCache
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".cache")
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return localAppData
		}
	}
	return os.TempDir()
}

// isTruthy parses the loose boolean vocabulary the teacher's isEnvTrue accepts.
func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "yes", "on":
		return true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return false
}

// CLIMode reports whether MEINEAPP_LAUNCHER_CLI requests diagnostic-mode
// cobra subcommand dispatch instead of the default run-to-completion mode.
func CLIMode() bool {
	return isTruthy(os.Getenv("MEINEAPP_LAUNCHER_CLI"))
}
