package validation_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phantomssr/phantom/pkg/types"
	"github.com/phantomssr/phantom/pkg/validation"
)

func validConfig() *types.RendererConfig {
	return &types.RendererConfig{
		Engines:          2,
		Charset:          "UTF-8",
		IndexPath:        "public/index.html",
		ServerBundlePath: "server.bundle.js",
		Routes:           []string{"/", "/about"},
	}
}

func writeAssets(t *testing.T, root string) {
	t.Helper()
	os.MkdirAll(filepath.Join(root, "public"), 0755)
	os.WriteFile(filepath.Join(root, "public", "index.html"), []byte("<html></html>"), 0644)
	os.WriteFile(filepath.Join(root, "server.bundle.js"), []byte("// bundle"), 0644)
}

func TestConfigValidator_Validate(t *testing.T) {
	tempDir := t.TempDir()
	writeAssets(t, tempDir)
	validator := validation.NewConfigValidator(tempDir)

	tests := []struct {
		name          string
		modify        func(cfg *types.RendererConfig)
		expectInvalid bool
		expectField   string
		errorLevel    validation.ValidationLevel
	}{
		{
			name:   "valid config",
			modify: func(cfg *types.RendererConfig) {},
		},
		{
			name:          "zero engines",
			modify:        func(cfg *types.RendererConfig) { cfg.Engines = 0 },
			expectInvalid: true,
			expectField:   "engines",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:          "missing charset",
			modify:        func(cfg *types.RendererConfig) { cfg.Charset = "" },
			expectInvalid: true,
			expectField:   "charset",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:          "unknown charset",
			modify:        func(cfg *types.RendererConfig) { cfg.Charset = "klingon-8" },
			expectInvalid: true,
			expectField:   "charset",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:   "legacy charset",
			modify: func(cfg *types.RendererConfig) { cfg.Charset = "ISO-8859-1" },
		},
		{
			name:          "no routes",
			modify:        func(cfg *types.RendererConfig) { cfg.Routes = nil },
			expectInvalid: true,
			expectField:   "routes",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:          "relative route",
			modify:        func(cfg *types.RendererConfig) { cfg.Routes = []string{"about"} },
			expectInvalid: true,
			expectField:   "routes[0]",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:          "route escaping output",
			modify:        func(cfg *types.RendererConfig) { cfg.Routes = []string{"/../etc"} },
			expectInvalid: true,
			expectField:   "routes[0]",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:        "duplicate route",
			modify:      func(cfg *types.RendererConfig) { cfg.Routes = []string{"/", "/"} },
			expectField: "routes[1]",
			errorLevel:  validation.ValidationLevelWarning,
		},
		{
			name:        "missing bundle file",
			modify:      func(cfg *types.RendererConfig) { cfg.ServerBundlePath = "dist/missing.js" },
			expectField: "serverBundlePath",
			errorLevel:  validation.ValidationLevelWarning,
		},
		{
			name:          "index is a directory",
			modify:        func(cfg *types.RendererConfig) { cfg.IndexPath = "public" },
			expectInvalid: true,
			expectField:   "indexPath",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:          "unknown asset source",
			modify:        func(cfg *types.RendererConfig) { cfg.AssetSource = "s3" },
			expectInvalid: true,
			expectField:   "assetSource",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name: "embedded with live reload",
			modify: func(cfg *types.RendererConfig) {
				cfg.AssetSource = types.AssetSourceEmbedded
				cfg.LiveReload = true
			},
			expectField: "liveReload",
			errorLevel:  validation.ValidationLevelWarning,
		},
		{
			name:          "negative drain interval",
			modify:        func(cfg *types.RendererConfig) { cfg.DrainInterval = -1 },
			expectInvalid: true,
			expectField:   "drainInterval",
			errorLevel:    validation.ValidationLevelError,
		},
		{
			name:          "unknown log level",
			modify:        func(cfg *types.RendererConfig) { cfg.LogLevel = "chatty" },
			expectInvalid: true,
			expectField:   "logLevel",
			errorLevel:    validation.ValidationLevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			result := validator.Validate(cfg)

			if result.Valid == tt.expectInvalid {
				t.Errorf("expected valid=%v, got %v (%v)", !tt.expectInvalid, result.Valid, result.Errors)
			}

			if tt.expectField == "" {
				if len(result.Errors) != 0 {
					t.Errorf("expected no issues, got %v", result.Errors)
				}
				return
			}

			found := false
			for _, e := range result.Errors {
				if e.Field == tt.expectField && e.Level == tt.errorLevel {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %s issue on %s, got %v", tt.errorLevel, tt.expectField, result.Errors)
			}
		})
	}
}

func TestValidationResult_FirstError(t *testing.T) {
	validator := validation.NewConfigValidator(t.TempDir())

	cfg := validConfig()
	cfg.Engines = -1
	cfg.Routes = nil

	result := validator.Validate(cfg)
	err := result.FirstError()

	var cfgErr *types.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "engines" {
		t.Errorf("expected the first problem to be engines, got %s", cfgErr.Field)
	}
	if len(result.Filter(validation.ValidationLevelError)) != 2 {
		t.Errorf("expected 2 errors, got %v", result.Errors)
	}
	if len(result.Filter(validation.ValidationLevelWarning)) != 2 {
		t.Errorf("expected missing asset warnings, got %v", result.Filter(validation.ValidationLevelWarning))
	}
}

func TestValidationResult_NilConfig(t *testing.T) {
	result := validation.NewConfigValidator("").Validate(nil)
	if result.Valid || result.FirstError() == nil {
		t.Error("nil config must be invalid")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &validation.ValidationError{Field: "engines", Message: "must be at least 1", Level: validation.ValidationLevelError}
	if err.Error() != "[error] engines: must be at least 1" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
