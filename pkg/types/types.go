// Package types provides core types and configurations for Phantom
package types

import (
	"strings"
	"time"
)

// EngineState represents the lifecycle state of a single render engine
type EngineState string

const (
	EngineStateIdle    EngineState = "idle"
	EngineStateBusy    EngineState = "busy"
	EngineStateStopped EngineState = "stopped"
)

// RendererState represents the lifecycle state of the render coordinator
type RendererState string

const (
	RendererStateStopped  RendererState = "stopped"
	RendererStateStarting RendererState = "starting"
	RendererStateRunning  RendererState = "running"
	RendererStateStopping RendererState = "stopping"
)

// AcceptsRequests reports whether render requests are queued in this state.
func (s RendererState) AcceptsRequests() bool {
	return s == RendererStateStarting || s == RendererStateRunning
}

// AssetSource selects where the index template and server bundle come from
type AssetSource string

const (
	AssetSourceFilesystem AssetSource = "filesystem"
	AssetSourceEmbedded   AssetSource = "embedded"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RenderOutcome labels the result of a single render
type RenderOutcome string

const (
	RenderOutcomeSuccess RenderOutcome = "success"
	RenderOutcomeFailure RenderOutcome = "failure"
)

// ReloadResult labels the result of a live reload attempt
type ReloadResult string

const (
	ReloadResultSucceeded  ReloadResult = "succeeded"
	ReloadResultFailed     ReloadResult = "failed"
	ReloadResultRolledBack ReloadResult = "rolled_back"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultEngines          = 1
	DefaultCharset          = "UTF-8"
	DefaultIndexPath        = "public/index.html"
	DefaultServerBundlePath = "server.bundle.js"
	DefaultOutputDir        = "dist"
	DefaultReloadInterval   = 1000
	DefaultDrainInterval    = 50
	DefaultRenderTimeout    = 10000
)

// EngineMetadata is the immutable context shared by every engine of one
// pipeline generation. It must not be modified after construction.
type EngineMetadata struct {
	Engines    int
	Charset    string
	Template   string
	BundleName string
	Bundle     string
	LoadedAt   time.Time
}

// NewEngineMetadata builds the shared engine context
func NewEngineMetadata(engines int, charset, template, bundleName, bundle string) *EngineMetadata {
	return &EngineMetadata{
		Engines:    engines,
		Charset:    charset,
		Template:   template,
		BundleName: bundleName,
		Bundle:     bundle,
		LoadedAt:   time.Now(),
	}
}

// RendererConfig represents the phantom configuration file
type RendererConfig struct {
	Engines          int                 `json:"engines"`
	Charset          string              `json:"charset"`
	IndexPath        string              `json:"indexPath"`
	ServerBundlePath string              `json:"serverBundlePath"`
	Routes           []string            `json:"routes"`
	AssetSource      AssetSource         `json:"assetSource,omitempty"`
	LiveReload       bool                `json:"liveReload"`
	ReloadInterval   int                 `json:"reloadInterval,omitempty"`
	DrainInterval    int                 `json:"drainInterval,omitempty"`
	RenderTimeout    int                 `json:"renderTimeout,omitempty"`
	OutputDir        string              `json:"outputDir,omitempty"`
	Notifications    *NotificationConfig `json:"notifications,omitempty"`
	Metrics          *MetricsConfig      `json:"metrics,omitempty"`
	LogLevel         LogLevel            `json:"logLevel,omitempty"`
	LogFile          string              `json:"logFile,omitempty"`
}

// NotificationConfig represents notification settings
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty"`
}

// IsEnabled reports whether notifications were switched on
func (n *NotificationConfig) IsEnabled() bool {
	return n != nil && n.Enabled != nil && *n.Enabled
}

// MetricsConfig represents metrics export settings
type MetricsConfig struct {
	File string `json:"file,omitempty"`
}

// GetReloadInterval returns the supervisor polling interval
func (c *RendererConfig) GetReloadInterval() time.Duration {
	return millisOrDefault(c.ReloadInterval, DefaultReloadInterval)
}

// GetDrainInterval returns the queue drain polling interval
func (c *RendererConfig) GetDrainInterval() time.Duration {
	return millisOrDefault(c.DrainInterval, DefaultDrainInterval)
}

// GetRenderTimeout returns the per-render script timeout
func (c *RendererConfig) GetRenderTimeout() time.Duration {
	return millisOrDefault(c.RenderTimeout, DefaultRenderTimeout)
}

// GetAssetSource returns the asset source, defaulting to the filesystem
func (c *RendererConfig) GetAssetSource() AssetSource {
	if c.AssetSource == "" {
		return AssetSourceFilesystem
	}
	return c.AssetSource
}

// HandlesRoute reports whether uri is one of the configured routes.
// Query strings and fragments are ignored.
func (c *RendererConfig) HandlesRoute(uri string) bool {
	path := uri
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, route := range c.Routes {
		if route == path {
			return true
		}
	}
	return false
}

// ApplyDefaults fills unset fields with their default values
func (c *RendererConfig) ApplyDefaults() {
	if c.Engines == 0 {
		c.Engines = DefaultEngines
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.IndexPath == "" {
		c.IndexPath = DefaultIndexPath
	}
	if c.ServerBundlePath == "" {
		c.ServerBundlePath = DefaultServerBundlePath
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.AssetSource == "" {
		c.AssetSource = AssetSourceFilesystem
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
}

// ReloadEvent describes one completed live reload attempt
type ReloadEvent struct {
	Generation int           `json:"generation"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	Result     ReloadResult  `json:"result"`
	Error      error         `json:"-"`
}

func millisOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
