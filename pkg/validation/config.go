// Package validation checks renderer configurations before they are used
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/phantomssr/phantom/pkg/types"
)

// ConfigValidator validates renderer configurations
type ConfigValidator struct {
	projectRoot string
}

// NewConfigValidator creates a validator that resolves relative asset
// paths against projectRoot
func NewConfigValidator(projectRoot string) *ConfigValidator {
	return &ConfigValidator{
		projectRoot: projectRoot,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
	Level   ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Level, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// FirstError returns the first error-level problem as a
// *types.ConfigurationError, or nil when the configuration is valid
func (r *ValidationResult) FirstError() error {
	for _, e := range r.Errors {
		if e.Level == ValidationLevelError {
			return &types.ConfigurationError{Field: e.Field, Message: e.Message}
		}
	}
	return nil
}

// Filter returns the problems of one level
func (r *ValidationResult) Filter(level ValidationLevel) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks every field and collects all problems
func (v *ConfigValidator) Validate(cfg *types.RendererConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if cfg == nil {
		result.AddError("config", "configuration is missing", ValidationLevelError)
		return result
	}

	v.validateEngines(cfg, result)
	v.validateCharset(cfg, result)
	v.validateRoutes(cfg, result)
	v.validateAssets(cfg, result)
	v.validateIntervals(cfg, result)
	v.validateLogging(cfg, result)

	return result
}

func (v *ConfigValidator) validateEngines(cfg *types.RendererConfig, result *ValidationResult) {
	if cfg.Engines < 1 {
		result.AddError("engines", fmt.Sprintf("must be at least 1, got %d", cfg.Engines), ValidationLevelError)
		return
	}
	if limit := runtime.NumCPU() * 4; cfg.Engines > limit {
		result.AddError("engines",
			fmt.Sprintf("%d engines on %d CPUs will mostly wait for each other", cfg.Engines, runtime.NumCPU()),
			ValidationLevelWarning)
	}
}

func (v *ConfigValidator) validateCharset(cfg *types.RendererConfig, result *ValidationResult) {
	if cfg.Charset == "" {
		result.AddError("charset", "is required", ValidationLevelError)
		return
	}
	if _, err := htmlindex.Get(cfg.Charset); err != nil {
		result.AddError("charset", fmt.Sprintf("unknown charset %q", cfg.Charset), ValidationLevelError)
	}
}

func (v *ConfigValidator) validateRoutes(cfg *types.RendererConfig, result *ValidationResult) {
	if len(cfg.Routes) == 0 {
		result.AddError("routes", "at least one route is required", ValidationLevelError)
		return
	}

	seen := make(map[string]bool)
	for i, route := range cfg.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if !strings.HasPrefix(route, "/") {
			result.AddError(field, fmt.Sprintf("route %q must start with /", route), ValidationLevelError)
			continue
		}
		if strings.ContainsAny(route, "?#") {
			result.AddError(field, fmt.Sprintf("route %q must not contain a query or fragment", route), ValidationLevelError)
		}
		if strings.Contains(route, "..") {
			result.AddError(field, fmt.Sprintf("route %q must not contain ..", route), ValidationLevelError)
		}
		if seen[route] {
			result.AddError(field, fmt.Sprintf("duplicate route %q", route), ValidationLevelWarning)
		}
		seen[route] = true
	}
}

func (v *ConfigValidator) validateAssets(cfg *types.RendererConfig, result *ValidationResult) {
	if cfg.IndexPath == "" {
		result.AddError("indexPath", "is required", ValidationLevelError)
	}
	if cfg.ServerBundlePath == "" {
		result.AddError("serverBundlePath", "is required", ValidationLevelError)
	}

	switch cfg.GetAssetSource() {
	case types.AssetSourceFilesystem:
		v.checkFile("indexPath", cfg.IndexPath, result)
		v.checkFile("serverBundlePath", cfg.ServerBundlePath, result)
	case types.AssetSourceEmbedded:
		if cfg.LiveReload {
			result.AddError("liveReload", "embedded assets never change, live reload is ignored", ValidationLevelWarning)
		}
	default:
		result.AddError("assetSource", fmt.Sprintf("unknown asset source %q", cfg.AssetSource), ValidationLevelError)
	}
}

func (v *ConfigValidator) checkFile(field, path string, result *ValidationResult) {
	if path == "" {
		return
	}
	fullPath := path
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(v.projectRoot, path)
	}

	info, err := os.Stat(fullPath)
	switch {
	case os.IsNotExist(err):
		result.AddError(field, fmt.Sprintf("%s does not exist yet", path), ValidationLevelWarning)
	case err != nil:
		result.AddError(field, fmt.Sprintf("cannot access %s: %v", path, err), ValidationLevelError)
	case info.IsDir():
		result.AddError(field, fmt.Sprintf("%s is a directory", path), ValidationLevelError)
	}
}

func (v *ConfigValidator) validateIntervals(cfg *types.RendererConfig, result *ValidationResult) {
	intervals := []struct {
		field string
		value int
	}{
		{"reloadInterval", cfg.ReloadInterval},
		{"drainInterval", cfg.DrainInterval},
		{"renderTimeout", cfg.RenderTimeout},
	}
	for _, iv := range intervals {
		if iv.value < 0 {
			result.AddError(iv.field, fmt.Sprintf("must not be negative, got %d", iv.value), ValidationLevelError)
		}
	}

	if cfg.LiveReload && cfg.ReloadInterval > 0 && cfg.ReloadInterval < 100 {
		result.AddError("reloadInterval", "polling more often than every 100ms is wasteful", ValidationLevelInfo)
	}
}

func (v *ConfigValidator) validateLogging(cfg *types.RendererConfig, result *ValidationResult) {
	switch cfg.LogLevel {
	case "", types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
	default:
		result.AddError("logLevel", fmt.Sprintf("unknown log level %q", cfg.LogLevel), ValidationLevelError)
	}
}
