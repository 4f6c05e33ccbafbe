package logger_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	pcontext "github.com/phantomssr/phantom/pkg/context"
	"github.com/phantomssr/phantom/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestCreateLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.CreateLoggerWithOutput("", tt.level, &buf)

			log.Debug("debug-line")
			log.Info("info-line")
			log.Warn("warn-line")
			log.Error("error-line")

			output := buf.String()
			if got := strings.Contains(output, "debug-line"); got != tt.wantDebug {
				t.Errorf("debug output = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(output, "info-line"); got != tt.wantInfo {
				t.Errorf("info output = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(output, "warn-line"); got != tt.wantWarn {
				t.Errorf("warn output = %v, want %v", got, tt.wantWarn)
			}
			if !strings.Contains(output, "error-line") {
				t.Error("error output must always be written")
			}
		})
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.WithComponent("renderer").WithComponent("dispatcher-1").Info("dispatching")

	output := buf.String()
	if !strings.Contains(output, "[renderer/dispatcher-1] dispatching") {
		t.Errorf("expected nested component prefix, got %q", output)
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Success("pipeline started")

	if !strings.Contains(buf.String(), "✅ pipeline started") {
		t.Errorf("expected success marker, got %q", buf.String())
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "info", &buf)

	log.Info("render finished",
		logger.WithField("uri", "/home"),
		logger.WithField("engine", 2),
		logger.WithError(errors.New("boom")),
	)

	output := buf.String()
	if !strings.Contains(output, "{engine=2, error=boom, uri=/home}") {
		t.Errorf("expected sorted fields, got %q", output)
	}
}

func TestLogger_NilOutputDiscards(t *testing.T) {
	log := logger.CreateLoggerWithOutput("", "debug", nil)
	log.Info("nobody listens")
	logger.NewNopLogger().Error("still nobody")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("", "info", &buf)

	ctx := pcontext.ForRender(context.Background(), "rnd_1", "/about")
	logger.WithContext(ctx, base).WithComponent("engine-1").Info("rendering")

	output := buf.String()
	for _, want := range []string{"[engine-1]", "render_id=rnd_1", "uri=/about", "operation=render"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output %q", want, output)
		}
	}
}

func TestConsoleLogger(t *testing.T) {
	var out, errOut bytes.Buffer
	console := logger.NewConsoleLogger(&out, &errOut)

	console.Info("info")
	console.Success("done")
	console.Error("failed")

	if !strings.Contains(out.String(), "info") || !strings.Contains(out.String(), "done") {
		t.Errorf("unexpected stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "failed") {
		t.Errorf("unexpected stderr: %q", errOut.String())
	}
}
