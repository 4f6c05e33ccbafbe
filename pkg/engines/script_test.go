package engines_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phantomssr/phantom/pkg/engines"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

const adapterBundle = `
registerRenderAdapter({
	renderPage: function (id, uri, template) {
		if (uri === "/broken") {
			receiveRenderedPage(id, null, "no route for " + uri);
			return;
		}
		if (uri === "/throw") {
			throw new Error("component exploded");
		}
		if (uri === "/silent") {
			return;
		}
		console.log("rendering", uri);
		receiveRenderedPage(id, template.replace("<app-root></app-root>", "<app-root>" + uri + "</app-root>"), null);
	}
});
`

const functionBundle = `
function render(uri, template) {
	if (uri === "/async") {
		return Promise.resolve("async:" + uri);
	}
	if (uri === "/rejected") {
		return Promise.reject("nope");
	}
	if (uri === "/spin") {
		while (true) {}
	}
	if (uri.indexOf("/busy/") === 0) {
		var end = Date.now() + parseInt(uri.substring(6), 10);
		while (Date.now() < end) {}
	}
	return "<main>" + uri + "</main>";
}
`

func newMeta(bundle string) *types.EngineMetadata {
	return types.NewEngineMetadata(1, "UTF-8", "<body><app-root></app-root></body>", "server.bundle.js", bundle)
}

func startEngine(t *testing.T, bundle string, timeout time.Duration) *engines.ScriptEngine {
	t.Helper()
	engine := engines.NewScriptEngine(1, timeout, logger.CreateLoggerWithOutput("", "debug", nil))
	if err := engine.Start(newMeta(bundle)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { engine.Stop() })
	return engine
}

func TestScriptEngine_AdapterProtocol(t *testing.T) {
	engine := startEngine(t, adapterBundle, time.Second)
	meta := newMeta(adapterBundle)

	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr string
	}{
		{name: "rendered page", uri: "/home", want: "<body><app-root>/home</app-root></body>"},
		{name: "bundle reports error", uri: "/broken", wantErr: "no route for /broken"},
		{name: "bundle throws", uri: "/throw", wantErr: "component exploded"},
		{name: "bundle never answers", uri: "/silent", wantErr: "did not deliver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := engine.Render(context.Background(), tt.uri, meta)
			if tt.wantErr != "" {
				var execErr *types.EngineExecutionError
				if !errors.As(err, &execErr) {
					t.Fatalf("expected EngineExecutionError, got %v", err)
				}
				if execErr.URI != tt.uri {
					t.Errorf("expected uri %s, got %s", tt.uri, execErr.URI)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if html != tt.want {
				t.Errorf("expected %q, got %q", tt.want, html)
			}
		})
	}

	// A failure must leave the engine usable
	if _, err := engine.Render(context.Background(), "/after", meta); err != nil {
		t.Errorf("engine unusable after failures: %v", err)
	}
	renders, failures, _ := engine.Stats()
	if renders != 5 || failures != 3 {
		t.Errorf("expected 5 renders and 3 failures, got %d and %d", renders, failures)
	}
}

func TestScriptEngine_RenderFunction(t *testing.T) {
	engine := startEngine(t, functionBundle, 200*time.Millisecond)
	meta := newMeta(functionBundle)

	html, err := engine.Render(context.Background(), "/about", meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "<main>/about</main>" {
		t.Errorf("unexpected html %q", html)
	}

	html, err = engine.Render(context.Background(), "/async", meta)
	if err != nil {
		t.Fatalf("unexpected error for promise: %v", err)
	}
	if html != "async:/async" {
		t.Errorf("unexpected html %q", html)
	}

	if _, err := engine.Render(context.Background(), "/rejected", meta); err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Errorf("expected rejected promise error, got %v", err)
	}
}

func TestScriptEngine_Timeout(t *testing.T) {
	engine := startEngine(t, functionBundle, 100*time.Millisecond)
	meta := newMeta(functionBundle)

	start := time.Now()
	_, err := engine.Render(context.Background(), "/spin", meta)
	if !errors.Is(err, types.ErrRenderTimeout) {
		t.Fatalf("expected ErrRenderTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}

	if _, err := engine.Render(context.Background(), "/ok", meta); err != nil {
		t.Errorf("engine unusable after timeout: %v", err)
	}
}

func TestScriptEngine_ContextCancellation(t *testing.T) {
	engine := startEngine(t, functionBundle, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.Render(ctx, "/spin", newMeta(functionBundle))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestScriptEngine_LateInterruptDoesNotLeak(t *testing.T) {
	engine := startEngine(t, functionBundle, 10*time.Second)
	meta := newMeta(functionBundle)

	// Deadlines land right around the end of each render
	for i := 0; i < 40; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(1+i%4)*time.Millisecond)
		engine.Render(ctx, "/busy/2", meta)
		cancel()

		html, err := engine.Render(context.Background(), "/ok", meta)
		if err != nil {
			t.Fatalf("render %d failed after a previous deadline: %v", i, err)
		}
		if html != "<main>/ok</main>" {
			t.Fatalf("unexpected markup %q", html)
		}
	}
}

func TestScriptEngine_Lifecycle(t *testing.T) {
	engine := engines.NewScriptEngine(7, time.Second, nil)
	meta := newMeta(functionBundle)

	if engine.IsWorking() {
		t.Error("new engine must not be working")
	}
	if _, err := engine.Render(context.Background(), "/", meta); !errors.Is(err, types.ErrEngineStopped) {
		t.Errorf("expected ErrEngineStopped before start, got %v", err)
	}

	if err := engine.Start(meta); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engine.Start(meta); err != nil {
		t.Errorf("second Start must be a no-op, got %v", err)
	}
	if !engine.IsWorking() || engine.State() != types.EngineStateIdle {
		t.Errorf("expected idle working engine, got %s", engine.State())
	}

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := engine.Stop(); err != nil {
		t.Errorf("second Stop must be a no-op, got %v", err)
	}
	if engine.IsWorking() || engine.State() != types.EngineStateStopped {
		t.Errorf("expected stopped engine, got %s", engine.State())
	}
}

func TestScriptEngine_StopInterruptsRender(t *testing.T) {
	engine := startEngine(t, functionBundle, 10*time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := engine.Render(context.Background(), "/spin", newMeta(functionBundle))
		errCh <- err
	}()

	deadline := time.Now().Add(time.Second)
	for engine.State() != types.EngineStateBusy {
		if time.Now().After(deadline) {
			t.Fatal("render never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	engine.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, types.ErrEngineStopped) {
			t.Errorf("expected ErrEngineStopped, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not interrupt the render")
	}
}

func TestScriptEngine_RejectsConcurrentRender(t *testing.T) {
	engine := startEngine(t, functionBundle, 300*time.Millisecond)
	meta := newMeta(functionBundle)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Render(context.Background(), "/spin", meta)
	}()

	deadline := time.Now().Add(time.Second)
	for engine.State() != types.EngineStateBusy {
		if time.Now().After(deadline) {
			t.Fatal("render never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := engine.Render(context.Background(), "/", meta); !errors.Is(err, types.ErrEngineBusy) {
		t.Errorf("expected ErrEngineBusy, got %v", err)
	}
	wg.Wait()
}

func TestScriptEngine_StartErrors(t *testing.T) {
	tests := []struct {
		name    string
		bundle  string
		wantErr string
	}{
		{name: "syntax error", bundle: "function (", wantErr: "failed to evaluate"},
		{name: "no entry point", bundle: "var unused = 1;", wantErr: "no render adapter"},
		{name: "throws at load", bundle: "throw new Error('bad bundle');", wantErr: "bad bundle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := engines.NewScriptEngine(1, time.Second, nil)
			err := engine.Start(newMeta(tt.bundle))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if engine.IsWorking() {
				t.Error("engine must stay stopped after a failed start")
			}
		})
	}
}

func TestScriptEngineFactory(t *testing.T) {
	factory := engines.NewScriptEngineFactory(time.Second, nil)
	meta := newMeta(functionBundle)

	first, err := factory.Create(meta)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, _ := factory.Create(meta)

	if first == second {
		t.Error("factory must create distinct engines")
	}
	if factory.Created() != 2 {
		t.Errorf("expected 2 engines created, got %d", factory.Created())
	}
	if first.IsWorking() {
		t.Error("created engines start stopped")
	}
}
