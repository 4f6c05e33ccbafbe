package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/phantomssr/phantom/pkg/types"
)

func TestDetectAsset(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		dirs     []string
		expected string
	}{
		{
			name:     "nothing present",
			expected: "",
		},
		{
			name:     "prefers earlier candidates",
			files:    []string{"build/server.js", "dist/server.bundle.js"},
			expected: "dist/server.bundle.js",
		},
		{
			name:     "skips directories",
			dirs:     []string{"server.bundle.js"},
			files:    []string{"build/server.js"},
			expected: "build/server.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, dir := range tt.dirs {
				os.MkdirAll(filepath.Join(root, dir), 0755)
			}
			for _, file := range tt.files {
				path := filepath.Join(root, file)
				os.MkdirAll(filepath.Dir(path), 0755)
				os.WriteFile(path, []byte("x"), 0644)
			}

			if got := detectAsset(root, bundleCandidates); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	root := t.TempDir()

	cfg := createDefaultConfig(root)
	if cfg.IndexPath != types.DefaultIndexPath || cfg.ServerBundlePath != types.DefaultServerBundlePath {
		t.Errorf("expected default paths, got %s and %s", cfg.IndexPath, cfg.ServerBundlePath)
	}

	os.MkdirAll(filepath.Join(root, "build"), 0755)
	os.WriteFile(filepath.Join(root, "build", "index.html"), []byte("<html></html>"), 0644)

	cfg = createDefaultConfig(root)
	if cfg.IndexPath != "build/index.html" {
		t.Errorf("expected detected index, got %s", cfg.IndexPath)
	}
	if len(cfg.Routes) != 1 || cfg.Routes[0] != "/" {
		t.Errorf("expected the root route, got %v", cfg.Routes)
	}
}

func TestMarshalConfig(t *testing.T) {
	cfg := createDefaultConfig(t.TempDir())

	jsonData, err := marshalConfig(cfg, false)
	if err != nil {
		t.Fatalf("json marshal failed: %v", err)
	}
	yamlData, err := marshalConfig(cfg, true)
	if err != nil {
		t.Fatalf("yaml marshal failed: %v", err)
	}

	var fromJSON, fromYAML map[string]interface{}
	if err := json.Unmarshal(jsonData, &fromJSON); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if err := yaml.Unmarshal(yamlData, &fromYAML); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}

	for key := range fromJSON {
		if _, ok := fromYAML[key]; !ok {
			t.Errorf("key %q missing from yaml output", key)
		}
	}
}
