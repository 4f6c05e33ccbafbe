package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/phantomssr/phantom/pkg/types"
)

func TestRendererConfig_JSON(t *testing.T) {
	data := `{
		"engines": 4,
		"charset": "ISO-8859-1",
		"indexPath": "web/index.html",
		"serverBundlePath": "web/server.js",
		"routes": ["/", "/about"],
		"liveReload": true,
		"reloadInterval": 250,
		"notifications": {"enabled": true}
	}`

	var cfg types.RendererConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if cfg.Engines != 4 {
		t.Errorf("expected 4 engines, got %d", cfg.Engines)
	}
	if cfg.Charset != "ISO-8859-1" {
		t.Errorf("expected charset ISO-8859-1, got %s", cfg.Charset)
	}
	if len(cfg.Routes) != 2 {
		t.Errorf("expected 2 routes, got %d", len(cfg.Routes))
	}
	if !cfg.LiveReload {
		t.Error("expected live reload to be enabled")
	}
	if cfg.GetReloadInterval() != 250*time.Millisecond {
		t.Errorf("expected 250ms reload interval, got %v", cfg.GetReloadInterval())
	}
	if !cfg.Notifications.IsEnabled() {
		t.Error("expected notifications to be enabled")
	}
}

func TestRendererConfig_ApplyDefaults(t *testing.T) {
	cfg := &types.RendererConfig{Routes: []string{"/"}}
	cfg.ApplyDefaults()

	if cfg.Engines != types.DefaultEngines {
		t.Errorf("expected default engines, got %d", cfg.Engines)
	}
	if cfg.Charset != "UTF-8" {
		t.Errorf("expected UTF-8, got %s", cfg.Charset)
	}
	if cfg.IndexPath != types.DefaultIndexPath {
		t.Errorf("expected default index path, got %s", cfg.IndexPath)
	}
	if cfg.GetAssetSource() != types.AssetSourceFilesystem {
		t.Errorf("expected filesystem source, got %s", cfg.GetAssetSource())
	}
	if cfg.GetDrainInterval() != 50*time.Millisecond {
		t.Errorf("expected 50ms drain interval, got %v", cfg.GetDrainInterval())
	}
	if cfg.GetReloadInterval() != time.Second {
		t.Errorf("expected 1s reload interval, got %v", cfg.GetReloadInterval())
	}
	if cfg.GetRenderTimeout() != 10*time.Second {
		t.Errorf("expected 10s render timeout, got %v", cfg.GetRenderTimeout())
	}
}

func TestRendererConfig_HandlesRoute(t *testing.T) {
	cfg := &types.RendererConfig{Routes: []string{"/", "/about", "/blog/post"}}

	tests := []struct {
		uri  string
		want bool
	}{
		{"/", true},
		{"/about", true},
		{"/about?ref=home", true},
		{"/blog/post#comments", true},
		{"/contact", false},
		{"/about/team", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			if got := cfg.HandlesRoute(tt.uri); got != tt.want {
				t.Errorf("HandlesRoute(%q) = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestRendererState_AcceptsRequests(t *testing.T) {
	tests := []struct {
		state types.RendererState
		want  bool
	}{
		{types.RendererStateStopped, false},
		{types.RendererStateStarting, true},
		{types.RendererStateRunning, true},
		{types.RendererStateStopping, false},
	}

	for _, tt := range tests {
		if got := tt.state.AcceptsRequests(); got != tt.want {
			t.Errorf("%s.AcceptsRequests() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestErrors_Unwrap(t *testing.T) {
	execErr := fmt.Errorf("dispatch: %w", &types.EngineExecutionError{URI: "/home", Err: types.ErrRenderTimeout})
	if !errors.Is(execErr, types.ErrRenderTimeout) {
		t.Error("expected wrapped render timeout")
	}
	var ee *types.EngineExecutionError
	if !errors.As(execErr, &ee) || ee.URI != "/home" {
		t.Errorf("expected EngineExecutionError for /home, got %v", execErr)
	}

	readErr := &types.AssetReadError{Asset: "index template", Path: "public/index.html", Err: fs.ErrNotExist}
	if !errors.Is(readErr, fs.ErrNotExist) {
		t.Error("expected AssetReadError to unwrap to fs.ErrNotExist")
	}

	cfgErr := &types.ConfigurationError{Field: "engines", Message: "must be at least 1"}
	if cfgErr.Error() != "invalid configuration: engines: must be at least 1" {
		t.Errorf("unexpected message: %s", cfgErr.Error())
	}
}
