package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phantomssr/phantom/internal/engine"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/metrics"
	"github.com/phantomssr/phantom/pkg/prerender"
	"github.com/phantomssr/phantom/pkg/renderer"
	"github.com/phantomssr/phantom/pkg/types"
	"github.com/phantomssr/phantom/pkg/utils"
)

// session is a configured renderer plus what the commands need around it
type session struct {
	config   *types.RendererConfig
	logger   logger.Logger
	deps     interfaces.RendererDependencies
	renderer *renderer.Renderer
}

func (c *CLI) newSession(cfg *types.RendererConfig) (*session, error) {
	log := c.newLogger(cfg)

	deps := engine.NewDependencyFactory(c.config.ProjectRoot, log, cfg).CreateDefaults()
	r, err := renderer.New(cfg, log, deps)
	if err != nil {
		return nil, err
	}

	return &session{
		config:   cfg,
		logger:   log,
		deps:     deps,
		renderer: r,
	}, nil
}

// prerender renders routes into the output directory
func (s *session) prerender(ctx context.Context, c *CLI, routes []string, concurrency int) (*prerender.Report, error) {
	p := prerender.New(s.renderer, prerender.Options{
		OutputDir:   c.config.resolve(s.config.OutputDir),
		Charset:     s.config.Charset,
		Concurrency: concurrency,
	}, s.logger)

	report, err := p.Run(ctx, routes)
	s.writeMetrics(c)
	return report, err
}

// writeMetrics exports the collector to the configured textfile
func (s *session) writeMetrics(c *CLI) {
	if s.config.Metrics == nil || s.config.Metrics.File == "" {
		return
	}
	collector, ok := s.deps.Metrics.(*metrics.Collector)
	if !ok {
		return
	}
	if err := collector.WriteToTextfile(c.config.resolve(s.config.Metrics.File)); err != nil {
		s.logger.Warn("Failed to write metrics", logger.WithError(err))
	}
}

func (c *CLI) newRenderCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "render [routes...]",
		Short: "Prerender routes to static HTML once",
		Long: `Start the render engines, render every configured route (or only the
routes given as arguments) to <outputDir>/<route>/index.html, and exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args, concurrency)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "routes rendered at once (default: all)")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, routes []string, concurrency int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	// One-shot renders never reload
	cfg.LiveReload = false

	s, err := c.newSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.renderer.Close(); err != nil {
			s.logger.Warn("Cleanup error", logger.WithError(err))
		}
	}()

	if len(routes) == 0 {
		routes = s.renderer.Routes()
	}
	for _, route := range routes {
		if !s.renderer.HandlesRoute(route) {
			c.printWarning(fmt.Sprintf("Route %s is not in the configuration, rendering anyway", route))
		}
	}

	if err := s.renderer.StartWithContext(ctx); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}

	c.printInfo(fmt.Sprintf("Rendering %d route(s) with %d engine(s)", len(routes), cfg.Engines))
	report, err := s.prerender(ctx, c, routes, concurrency)
	c.printReport(report)

	if err != nil {
		c.printError(err.Error())
		return err
	}

	c.printSuccess(fmt.Sprintf("Rendered %d route(s) in %dms", len(routes), report.Duration.Milliseconds()))
	return nil
}

func (c *CLI) printReport(report *prerender.Report) {
	if report == nil {
		return
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tFILE\tSIZE\tTIME\tRESULT")
	fmt.Fprintln(w, "-----\t----\t----\t----\t------")

	for _, result := range report.Results {
		outcome := "written"
		switch {
		case result.Err != nil:
			outcome = "failed: " + result.Err.Error()
		case result.Unchanged:
			outcome = "unchanged"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
			result.Route,
			result.Path,
			utils.FormatBytes(int64(result.Bytes)),
			result.Duration.Milliseconds(),
			outcome,
		)
	}

	w.Flush()
}
