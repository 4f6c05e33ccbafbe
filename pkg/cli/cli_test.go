package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phantomssr/phantom/pkg/cli"
	"github.com/phantomssr/phantom/pkg/state"
	"github.com/phantomssr/phantom/pkg/types"
)

const testBundle = `
function render(uri, template) {
	return template.replace("<!--app-->", "<h1>" + uri + "</h1>");
}
`

// syncBuffer is a bytes.Buffer safe for the CLI's concurrent writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestCLI() (*cli.CLI, *syncBuffer, *syncBuffer) {
	stdout := &syncBuffer{}
	stderr := &syncBuffer{}
	cfg := cli.NewConfig()
	cfg.Version = "1.2.3"
	cfg.ShutdownTimeout = 5 * time.Second
	return cli.NewCLIWithOutput(cfg, stdout, stderr), stdout, stderr
}

func writeProject(t *testing.T, config map[string]interface{}) string {
	t.Helper()
	root := t.TempDir()

	os.MkdirAll(filepath.Join(root, "public"), 0755)
	os.WriteFile(filepath.Join(root, "public", "index.html"),
		[]byte("<html><body><!--app--></body></html>"), 0644)
	os.WriteFile(filepath.Join(root, "server.bundle.js"), []byte(testBundle), 0644)

	data, _ := json.Marshal(config)
	os.WriteFile(filepath.Join(root, "phantom.config.json"), data, 0644)
	return root
}

func waitForFile(t *testing.T, path, contains string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && strings.Contains(string(data), contains) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s never contained %q", path, contains)
}

func TestVersionCommand(t *testing.T) {
	c, stdout, _ := newTestCLI()

	if err := c.Execute([]string{"version"}); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Phantom v1.2.3") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestRenderCommand(t *testing.T) {
	root := writeProject(t, map[string]interface{}{
		"engines": 2,
		"routes":  []string{"/", "/about"},
	})

	c, stdout, stderr := newTestCLI()
	if err := c.Execute([]string{"render", "--root", root}); err != nil {
		t.Fatalf("render failed: %v\n%s", err, stderr.String())
	}

	about, err := os.ReadFile(filepath.Join(root, "dist", "about", "index.html"))
	if err != nil {
		t.Fatalf("about page missing: %v", err)
	}
	if string(about) != "<html><body><h1>/about</h1></body></html>" {
		t.Errorf("unexpected about page %q", about)
	}
	if _, err := os.Stat(filepath.Join(root, "dist", "index.html")); err != nil {
		t.Errorf("home page missing: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "ROUTE") || !strings.Contains(out, "Rendered 2 route(s)") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRenderCommand_OutputFlagAndRouteArgs(t *testing.T) {
	root := writeProject(t, map[string]interface{}{
		"routes": []string{"/", "/about"},
	})

	c, stdout, stderr := newTestCLI()
	err := c.Execute([]string{"render", "--root", root, "--output", "site", "/extra"})
	if err != nil {
		t.Fatalf("render failed: %v\n%s", err, stderr.String())
	}

	if _, err := os.Stat(filepath.Join(root, "site", "extra", "index.html")); err != nil {
		t.Errorf("expected page in output override: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "site", "about", "index.html")); err == nil {
		t.Error("only the routes given as arguments must be rendered")
	}
	if !strings.Contains(stdout.String(), "not in the configuration") {
		t.Error("expected a warning for an unknown route")
	}
}

func TestRenderCommand_MissingBundle(t *testing.T) {
	root := writeProject(t, map[string]interface{}{
		"routes":           []string{"/"},
		"serverBundlePath": "missing.js",
	})

	c, _, _ := newTestCLI()
	err := c.Execute([]string{"render", "--root", root})
	if err == nil || !strings.Contains(err.Error(), "failed to start renderer") {
		t.Errorf("expected start failure, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name        string
		config      map[string]interface{}
		shouldError bool
		output      string
	}{
		{
			name:   "valid config",
			config: map[string]interface{}{"routes": []string{"/"}},
			output: "is valid",
		},
		{
			name:        "relative route",
			config:      map[string]interface{}{"routes": []string{"about"}},
			shouldError: true,
			output:      "must start with /",
		},
		{
			name:        "bad engines",
			config:      map[string]interface{}{"routes": []string{"/"}, "engines": -3},
			shouldError: true,
			output:      "engines",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, tt.config)
			c, stdout, stderr := newTestCLI()

			err := c.Execute([]string{"validate", "--root", root})
			if tt.shouldError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			combined := stdout.String() + stderr.String()
			if !strings.Contains(combined, tt.output) {
				t.Errorf("expected %q in output, got %q", tt.output, combined)
			}
		})
	}
}

func TestValidateCommand_NoConfig(t *testing.T) {
	c, _, _ := newTestCLI()
	if err := c.Execute([]string{"validate", "--root", t.TempDir()}); err == nil {
		t.Error("expected an error without a configuration")
	}
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "dist"), 0755)
	os.WriteFile(filepath.Join(root, "dist", "server.js"), []byte(testBundle), 0644)

	c, stdout, _ := newTestCLI()
	if err := c.Execute([]string{"init", "--root", root, "--yaml"}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Detected server bundle: dist/server.js") {
		t.Errorf("expected bundle detection, got %q", stdout.String())
	}

	data, err := os.ReadFile(filepath.Join(root, "phantom.config.yaml"))
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "serverBundlePath: dist/server.js") {
		t.Errorf("unexpected config:\n%s", data)
	}

	c, _, _ = newTestCLI()
	if err := c.Execute([]string{"init", "--root", root}); err == nil {
		t.Error("init must refuse to overwrite without --force")
	}

	c, _, _ = newTestCLI()
	if err := c.Execute([]string{"init", "--root", root, "--force"}); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	root := t.TempDir()

	c, stdout, _ := newTestCLI()
	if err := c.Execute([]string{"status", "--root", root}); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "not running") {
		t.Errorf("expected not running, got %q", stdout.String())
	}

	sm := state.NewStateManager(root, nil)
	if err := sm.RecordState(types.RendererStateRunning, 4); err != nil {
		t.Fatalf("failed to record state: %v", err)
	}

	c, stdout, _ = newTestCLI()
	if err := c.Execute([]string{"status", "--root", root}); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "running") || !strings.Contains(out, "ENGINES") || !strings.Contains(out, "4") {
		t.Errorf("unexpected status output %q", out)
	}

	if err := sm.Cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	c, stdout, _ = newTestCLI()
	if err := c.Execute([]string{"stop", "--root", root}); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "already stopped") {
		t.Errorf("unexpected stop output %q", stdout.String())
	}
}

func TestWatchCommand_RerendersOnReload(t *testing.T) {
	root := writeProject(t, map[string]interface{}{
		"routes":         []string{"/"},
		"liveReload":     true,
		"reloadInterval": 20,
	})
	page := filepath.Join(root, "dist", "index.html")

	c, _, stderr := newTestCLI()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.ExecuteContext(ctx, []string{"watch", "--root", root})
	}()

	waitForFile(t, page, "<h1>/</h1>")

	// Let the modification time move past the start baseline
	time.Sleep(50 * time.Millisecond)
	newBundle := strings.Replace(testBundle, "<h1>", "<h1 class=\"v2\">", 1)
	os.WriteFile(filepath.Join(root, "server.bundle.js"), []byte(newBundle), 0644)

	waitForFile(t, page, `class="v2"`)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v\n%s", err, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}

	status, err := state.Read(root)
	if err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if status.State != types.RendererStateStopped {
		t.Errorf("expected stopped state after watch, got %s", status.State)
	}
}

func TestWatchCommand_StartFailureCleansUp(t *testing.T) {
	root := writeProject(t, map[string]interface{}{
		"routes":           []string{"/"},
		"serverBundlePath": "missing.js",
	})

	c, _, _ := newTestCLI()
	err := c.ExecuteContext(context.Background(), []string{"watch", "--root", root})
	if err == nil || !strings.Contains(err.Error(), "failed to start") {
		t.Fatalf("expected start failure, got %v", err)
	}

	status, err := state.Read(root)
	if err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if status.State != types.RendererStateStopped || status.ProcessID != 0 {
		t.Errorf("expected a closed renderer, got state %s pid %d", status.State, status.ProcessID)
	}
}
