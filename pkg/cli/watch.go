package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/process"
	"github.com/phantomssr/phantom/pkg/types"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var noPrerender bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the renderer and re-render when the bundle changes",
		Long: `Start Phantom in watch mode. The render engines stay up, the server bundle
and index template are watched, and every route is rendered again after each
reload. Stop with Ctrl+C or 'phantom stop'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), !noPrerender, concurrency)
		},
	}

	cmd.Flags().BoolVar(&noPrerender, "no-prerender", false, "keep the engines running without writing files")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "routes rendered at once (default: all)")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, prerenderOnReload bool, concurrency int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.LiveReload {
		c.printWarning("liveReload is off, assets are read once")
	}

	s, err := c.newSession(cfg)
	if err != nil {
		return err
	}
	r := s.renderer

	c.printInfo(fmt.Sprintf("Starting Phantom v%s", c.config.Version))
	if err := r.StartWithContext(ctx); err != nil {
		if closeErr := r.Close(); closeErr != nil {
			s.logger.Warn("Cleanup error", logger.WithError(closeErr))
		}
		return fmt.Errorf("failed to start: %w", err)
	}

	// Reloads may overlap a slow prerender; keep one run at a time
	var renderMu sync.Mutex
	render := func(reason string) {
		if !prerenderOnReload {
			return
		}
		renderMu.Lock()
		defer renderMu.Unlock()

		report, err := s.prerender(ctx, c, r.Routes(), concurrency)
		if err != nil {
			c.printError(fmt.Sprintf("Prerender after %s failed: %v", reason, err))
			return
		}
		c.printSuccess(fmt.Sprintf("Prerendered %d route(s) after %s, %d changed",
			len(report.Results), reason, report.Written()))
	}

	r.OnReload(func(event types.ReloadEvent) {
		switch event.Result {
		case types.ReloadResultSucceeded:
			c.printInfo(fmt.Sprintf("Reloaded assets (generation %d, %dms)", event.Generation, event.Duration.Milliseconds()))
			render(fmt.Sprintf("reload %d", event.Generation))
		case types.ReloadResultRolledBack:
			c.printWarning(fmt.Sprintf("New bundle failed to start, kept previous: %v", event.Error))
		default:
			c.printError(fmt.Sprintf("Reload failed: %v", event.Error))
		}
	})

	render("start")

	pm := process.NewManager(s.logger)
	pm.RegisterShutdownHandler("renderer", func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), c.config.ShutdownTimeout)
		defer stopCancel()

		if err := r.StopWithContext(stopCtx); err != nil {
			s.logger.Warn("Renderer did not drain in time", logger.WithError(err))
		}
		s.writeMetrics(c)
		if err := r.Close(); err != nil {
			s.logger.Warn("Cleanup error", logger.WithError(err))
		}
	})
	pm.Start(ctx)

	c.printSuccess(fmt.Sprintf("Watching %d route(s) with %d engine(s)", len(cfg.Routes), cfg.Engines))

	<-pm.Done()
	if sig := pm.Signal(); sig != nil {
		c.printInfo(fmt.Sprintf("Received signal: %s", sig))
	}
	if err := r.SupervisorErr(); err != nil {
		c.printWarning(fmt.Sprintf("Live reload had stopped: %v", err))
	}

	c.printSuccess("Phantom stopped gracefully")
	return nil
}
