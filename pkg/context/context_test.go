package context_test

import (
	"context"
	"strings"
	"testing"
	"time"

	pcontext "github.com/phantomssr/phantom/pkg/context"
)

func TestForRender(t *testing.T) {
	ctx := pcontext.ForRender(context.Background(), "", "/home")

	if id := pcontext.GetRenderID(ctx); !strings.HasPrefix(id, "rnd_") {
		t.Errorf("expected generated render id, got %q", id)
	}
	if pcontext.GetURI(ctx) != "/home" {
		t.Errorf("expected /home, got %q", pcontext.GetURI(ctx))
	}
	if pcontext.GetOperation(ctx) != "render" {
		t.Errorf("expected render operation, got %q", pcontext.GetOperation(ctx))
	}
}

func TestGetDuration(t *testing.T) {
	if d := pcontext.GetDuration(context.Background()); d != 0 {
		t.Errorf("expected zero duration without start time, got %v", d)
	}

	ctx := pcontext.WithStartTime(context.Background(), time.Now().Add(-time.Second))
	if d := pcontext.GetDuration(ctx); d < time.Second {
		t.Errorf("expected at least 1s, got %v", d)
	}
}

func TestTracingFields(t *testing.T) {
	empty := pcontext.TracingFields(context.Background())
	if len(empty) != 0 {
		t.Errorf("expected no fields, got %v", empty)
	}

	ctx := pcontext.WithGeneration(pcontext.WithRenderID(context.Background(), "rnd_x"), 3)
	fields := pcontext.TracingFields(ctx)
	if fields["render_id"] != "rnd_x" {
		t.Errorf("expected render_id rnd_x, got %v", fields["render_id"])
	}
	if fields["generation"] != 3 {
		t.Errorf("expected generation 3, got %v", fields["generation"])
	}
}
