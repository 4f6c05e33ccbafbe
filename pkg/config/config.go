// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/phantomssr/phantom/pkg/types"
	"github.com/phantomssr/phantom/pkg/validation"
)

const (
	// ConfigName is the base name of the configuration file
	ConfigName = "phantom.config"

	// EnvPrefix prefixes every environment override, e.g. PHANTOM_ENGINES
	EnvPrefix = "PHANTOM"
)

// ErrConfigNotFound is returned by FindConfig when no configuration file exists
var ErrConfigNotFound = errors.New("no phantom.config.json or phantom.config.yaml found")

var configExtensions = []string{".json", ".yaml", ".yml"}

// overrideKeys maps viper keys to the environment variables that set them
var overrideKeys = map[string]string{
	"engines":          "ENGINES",
	"charset":          "CHARSET",
	"indexPath":        "INDEX_PATH",
	"serverBundlePath": "SERVER_BUNDLE_PATH",
	"routes":           "ROUTES",
	"assetSource":      "ASSET_SOURCE",
	"liveReload":       "LIVE_RELOAD",
	"reloadInterval":   "RELOAD_INTERVAL",
	"drainInterval":    "DRAIN_INTERVAL",
	"renderTimeout":    "RENDER_TIMEOUT",
	"outputDir":        "OUTPUT_DIR",
	"logLevel":         "LOG_LEVEL",
	"logFile":          "LOG_FILE",
	"metricsFile":      "METRICS_FILE",
}

// Manager handles configuration operations
type Manager struct {
	overrides *viper.Viper
}

// NewManager creates a configuration manager that applies PHANTOM_*
// environment overrides
func NewManager() *Manager {
	return NewManagerWithViper(viper.New())
}

// NewManagerWithViper uses v for overrides. Flags bound to v with the
// configuration key names (see OverrideKeys) override the file as well.
func NewManagerWithViper(v *viper.Viper) *Manager {
	v.SetEnvPrefix(EnvPrefix)
	for key, env := range overrideKeys {
		_ = v.BindEnv(key, EnvPrefix+"_"+env)
	}
	return &Manager{overrides: v}
}

// OverrideKeys returns the keys that environment variables and flags may set
func OverrideKeys() []string {
	keys := make([]string, 0, len(overrideKeys))
	for key := range overrideKeys {
		keys = append(keys, key)
	}
	return keys
}

// FindConfig returns the configuration file in projectRoot
func FindConfig(projectRoot string) (string, error) {
	for _, ext := range configExtensions {
		path := filepath.Join(projectRoot, ConfigName+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

// LoadConfig loads configuration from a file, applies overrides and
// defaults, and validates the result
func (m *Manager) LoadConfig(path string) (*types.RendererConfig, error) {
	cfg, err := m.ParseConfig(path)
	if err != nil {
		return nil, err
	}

	m.ApplyOverrides(cfg)
	cfg.ApplyDefaults()

	if err := m.ValidateConfig(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig reads a JSON or YAML file without overrides, defaults or validation
func (m *Manager) ParseConfig(path string) (*types.RendererConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.RendererConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return &cfg, nil
	}

	// YAML keys follow the JSON tags, so round-trip through JSON
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil && yamlData != nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return &cfg, nil
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML: %s", path)
}

// ApplyOverrides copies every value set through the environment or a
// bound flag into cfg
func (m *Manager) ApplyOverrides(cfg *types.RendererConfig) {
	v := m.overrides

	if v.IsSet("engines") {
		cfg.Engines = v.GetInt("engines")
	}
	if v.IsSet("charset") {
		cfg.Charset = v.GetString("charset")
	}
	if v.IsSet("indexPath") {
		cfg.IndexPath = v.GetString("indexPath")
	}
	if v.IsSet("serverBundlePath") {
		cfg.ServerBundlePath = v.GetString("serverBundlePath")
	}
	if v.IsSet("routes") {
		cfg.Routes = splitRoutes(v.GetStringSlice("routes"))
	}
	if v.IsSet("assetSource") {
		cfg.AssetSource = types.AssetSource(v.GetString("assetSource"))
	}
	if v.IsSet("liveReload") {
		cfg.LiveReload = v.GetBool("liveReload")
	}
	if v.IsSet("reloadInterval") {
		cfg.ReloadInterval = v.GetInt("reloadInterval")
	}
	if v.IsSet("drainInterval") {
		cfg.DrainInterval = v.GetInt("drainInterval")
	}
	if v.IsSet("renderTimeout") {
		cfg.RenderTimeout = v.GetInt("renderTimeout")
	}
	if v.IsSet("outputDir") {
		cfg.OutputDir = v.GetString("outputDir")
	}
	if v.IsSet("logLevel") {
		cfg.LogLevel = types.LogLevel(v.GetString("logLevel"))
	}
	if v.IsSet("logFile") {
		cfg.LogFile = v.GetString("logFile")
	}
	if v.IsSet("metricsFile") {
		if cfg.Metrics == nil {
			cfg.Metrics = &types.MetricsConfig{}
		}
		cfg.Metrics.File = v.GetString("metricsFile")
	}
}

// ValidateConfig returns the first error-level problem as a
// *types.ConfigurationError
func (m *Manager) ValidateConfig(cfg *types.RendererConfig, projectRoot string) error {
	return validation.NewConfigValidator(projectRoot).Validate(cfg).FirstError()
}

// GetDefaultConfig returns the configuration written by a fresh project
func (m *Manager) GetDefaultConfig() *types.RendererConfig {
	enabled := false

	cfg := &types.RendererConfig{
		Routes:     []string{"/"},
		LiveReload: true,
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// splitRoutes accepts both repeated values and one comma separated value
func splitRoutes(values []string) []string {
	var routes []string
	for _, value := range values {
		for _, route := range strings.Split(value, ",") {
			if route = strings.TrimSpace(route); route != "" {
				routes = append(routes, route)
			}
		}
	}
	return routes
}
