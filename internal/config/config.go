package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.elclones/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names to disable entirely.
	// Known types: "element", "extension".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// BrowserRemoteURL is the DevTools WebSocket URL of an already running browser.
	// Empty launches a local browser.
	BrowserRemoteURL string `json:"browser_remote_url,omitempty"`

	// BrowserHeadless controls headless mode for a launched browser. nil means true.
	BrowserHeadless *bool `json:"browser_headless,omitempty"`

	// StartURL is the page opened when the agent starts.
	StartURL string `json:"start_url,omitempty"`

	// BridgeAddr is the listen address of the websocket message bridge.
	BridgeAddr string `json:"bridge_addr,omitempty"`

	// WebBind and WebPort configure the web control surface.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// SanitizeClones strips scripts and event handlers from markup before it is injected.
	SanitizeClones bool `json:"sanitize_clones,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StartURL:   "about:blank",
		BridgeAddr: "127.0.0.1:7878",
		WebBind:    "127.0.0.1",
		WebPort:    7879,
		LogLevel:   "info",
	}
}

// Headless reports whether a launched browser should run headless.
func (c *Config) Headless() bool {
	if c.BrowserHeadless == nil {
		return true
	}
	return *c.BrowserHeadless
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global directory and the nearest
// .elclones/config.json found walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .elclones/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".elclones", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		DBMaxOpenConns:   firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:   firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		WebPort:          firstInt(overlay.WebPort, base.WebPort),
		BrowserRemoteURL: firstString(overlay.BrowserRemoteURL, base.BrowserRemoteURL),
		StartURL:         firstString(overlay.StartURL, base.StartURL),
		BridgeAddr:       firstString(overlay.BridgeAddr, base.BridgeAddr),
		WebBind:          firstString(overlay.WebBind, base.WebBind),
		LogLevel:         firstString(overlay.LogLevel, base.LogLevel),
	}

	result.BrowserHeadless = overlay.BrowserHeadless
	if result.BrowserHeadless == nil {
		result.BrowserHeadless = base.BrowserHeadless
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.SanitizeClones = base.SanitizeClones || overlay.SanitizeClones

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
