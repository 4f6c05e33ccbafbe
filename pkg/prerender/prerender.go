// Package prerender renders routes through a running renderer and writes
// the markup to static files
package prerender

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/phantomssr/phantom/internal/engine"
	"github.com/phantomssr/phantom/pkg/assets"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/queue"
	"github.com/phantomssr/phantom/pkg/types"
	"github.com/phantomssr/phantom/pkg/utils"
)

// RenderRequester queues render requests
type RenderRequester interface {
	RenderRequest(uri string) *queue.RenderFuture
}

// Options controls where and how pages are written
type Options struct {
	OutputDir   string
	Charset     string
	Concurrency int
}

// Result describes one prerendered route
type Result struct {
	Route     string
	Path      string
	Bytes     int
	Duration  time.Duration
	Unchanged bool
	Err       error
}

// Report collects the results of one run, in route order
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Failed returns the routes that could not be written
func (r *Report) Failed() []Result {
	var failed []Result
	for _, result := range r.Results {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// Written returns how many files changed on disk
func (r *Report) Written() int {
	n := 0
	for _, result := range r.Results {
		if result.Err == nil && !result.Unchanged {
			n++
		}
	}
	return n
}

// Prerenderer writes <OutputDir>/<route>/index.html for every route
type Prerenderer struct {
	renderer RenderRequester
	options  Options
	logger   logger.Logger
}

// New creates a prerenderer. Concurrency defaults to the number of routes.
func New(renderer RenderRequester, options Options, log logger.Logger) *Prerenderer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if options.OutputDir == "" {
		options.OutputDir = types.DefaultOutputDir
	}
	if options.Charset == "" {
		options.Charset = types.DefaultCharset
	}
	return &Prerenderer{
		renderer: renderer,
		options:  options,
		logger:   log.WithComponent("prerender"),
	}
}

// Run renders every route. A failed route does not stop the others; the
// returned error summarizes the failures.
func (p *Prerenderer) Run(ctx context.Context, routes []string) (*Report, error) {
	start := time.Now()
	report := &Report{Results: make([]Result, len(routes))}

	group, ctx := engine.NewSafeGroup(ctx, p.logger)
	if p.options.Concurrency > 0 {
		group.SetLimit(p.options.Concurrency)
	}

	for i, route := range routes {
		group.Go("prerender "+route, func() error {
			report.Results[i] = p.renderRoute(ctx, route)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)

	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%d of %d routes failed, first %s: %w",
			len(failed), len(routes), failed[0].Route, failed[0].Err)
	}

	p.logger.Info("Prerender complete",
		logger.WithField("routes", len(routes)),
		logger.WithField("written", report.Written()),
		logger.WithField("duration_ms", report.Duration.Milliseconds()))

	return report, nil
}

func (p *Prerenderer) renderRoute(ctx context.Context, route string) Result {
	start := time.Now()
	result := Result{Route: route, Path: OutputPath(p.options.OutputDir, route)}

	html, err := p.renderer.RenderRequest(route).Wait(ctx)
	if err == nil {
		result.Bytes, result.Unchanged, err = p.write(result.Path, html)
	}
	result.Duration = time.Since(start)
	result.Err = err

	if err != nil {
		p.logger.Error("Failed to prerender route",
			logger.WithField("route", route),
			logger.WithError(err))
	} else {
		p.logger.Debug("Prerendered route",
			logger.WithField("route", route),
			logger.WithField("path", result.Path),
			logger.WithField("unchanged", result.Unchanged))
	}
	return result
}

// write stores html in the configured charset and skips identical content
func (p *Prerenderer) write(file, html string) (int, bool, error) {
	data, err := assets.Encode(html, p.options.Charset)
	if err != nil {
		return 0, false, err
	}

	if existing, err := utils.GetFileHash(file); err == nil && existing == utils.ContentHash(data) {
		return len(data), true, nil
	}

	if err := utils.WriteFileAtomic(file, data, 0644); err != nil {
		return 0, false, fmt.Errorf("failed to write %s: %w", file, err)
	}
	return len(data), false, nil
}

// OutputPath maps a route to its file below outputDir. Routes ending in
// .html are written as is, every other route gets an index.html.
func OutputPath(outputDir, route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	clean := path.Clean("/" + route)

	if strings.HasSuffix(clean, ".html") {
		return filepath.Join(outputDir, filepath.FromSlash(clean))
	}
	return filepath.Join(outputDir, filepath.FromSlash(clean), "index.html")
}
