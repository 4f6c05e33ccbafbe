package prerender_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phantomssr/phantom/pkg/assets"
	"github.com/phantomssr/phantom/pkg/prerender"
	"github.com/phantomssr/phantom/pkg/queue"
)

// fakeRenderer resolves every request immediately
type fakeRenderer struct {
	pages map[string]string
}

func (f *fakeRenderer) RenderRequest(uri string) *queue.RenderFuture {
	future := queue.NewRenderFuture(uri)
	if html, ok := f.pages[uri]; ok {
		future.Resolve(html)
	} else {
		future.Fail(errors.New("no such page"))
	}
	return future
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/", "out/index.html"},
		{"/about", "out/about/index.html"},
		{"/blog/post/", "out/blog/post/index.html"},
		{"/404.html", "out/404.html"},
		{"/search?q=x", "out/search/index.html"},
		{"/../../etc", "out/etc/index.html"},
	}
	for _, tt := range tests {
		got := prerender.OutputPath("out", tt.route)
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("OutputPath(%q) = %s, want %s", tt.route, got, tt.want)
		}
	}
}

func TestPrerenderer_Run(t *testing.T) {
	outDir := t.TempDir()
	renderer := &fakeRenderer{pages: map[string]string{
		"/":      "<h1>home</h1>",
		"/about": "<h1>about</h1>",
	}}

	p := prerender.New(renderer, prerender.Options{OutputDir: outDir, Concurrency: 1}, nil)
	report, err := p.Run(context.Background(), []string{"/", "/about"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Written() != 2 {
		t.Errorf("expected 2 written files, got %d", report.Written())
	}
	data, _ := os.ReadFile(filepath.Join(outDir, "about", "index.html"))
	if string(data) != "<h1>about</h1>" {
		t.Errorf("unexpected about page %q", data)
	}

	// A second run with the same markup leaves the files alone
	report, err = p.Run(context.Background(), []string{"/", "/about"})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if report.Written() != 0 || !report.Results[0].Unchanged {
		t.Errorf("expected unchanged files, got %+v", report.Results)
	}
}

func TestPrerenderer_PartialFailure(t *testing.T) {
	outDir := t.TempDir()
	renderer := &fakeRenderer{pages: map[string]string{"/": "ok"}}

	p := prerender.New(renderer, prerender.Options{OutputDir: outDir}, nil)
	report, err := p.Run(context.Background(), []string{"/", "/missing"})
	if err == nil || !strings.Contains(err.Error(), "/missing") {
		t.Fatalf("expected failure naming /missing, got %v", err)
	}
	if len(report.Failed()) != 1 {
		t.Errorf("expected 1 failed route, got %d", len(report.Failed()))
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "index.html")); statErr != nil {
		t.Error("successful routes must still be written")
	}
}

func TestPrerenderer_Charset(t *testing.T) {
	outDir := t.TempDir()
	renderer := &fakeRenderer{pages: map[string]string{"/": "café"}}

	p := prerender.New(renderer, prerender.Options{OutputDir: outDir, Charset: "ISO-8859-1"}, nil)
	if _, err := p.Run(context.Background(), []string{"/"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(outDir, "index.html"))
	if len(data) != 4 || data[3] != 0xE9 {
		t.Errorf("expected Latin-1 bytes, got % x", data)
	}
	decoded, err := assets.Decode(data, "ISO-8859-1")
	if err != nil || decoded != "café" {
		t.Errorf("round trip failed: %q, %v", decoded, err)
	}
}
