// Package renderer coordinates server-side rendering: it owns the render
// queue and the engine pool, drives their lifecycle, and restarts the
// pipeline when the assets change.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/phantomssr/phantom/internal/engine"
	"github.com/phantomssr/phantom/pkg/assets"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/queue"
	"github.com/phantomssr/phantom/pkg/types"
)

// DefaultReloadDrainTimeout bounds the drain of a supervisor-driven
// restart. Work still queued afterwards is served by the next pipeline.
const DefaultReloadDrainTimeout = 30 * time.Second

// ErrClosed is returned by Start after Close
var ErrClosed = errors.New("renderer is closed")

// Renderer is the render coordinator. Start and Stop are idempotent and
// may be called from any goroutine.
type Renderer struct {
	config        *types.RendererConfig
	logger        logger.Logger
	provider      interfaces.AssetProvider
	engineFactory interfaces.EngineFactory
	notifier      interfaces.ReloadNotifier
	metrics       interfaces.MetricsRecorder
	status        interfaces.StatusRecorder
	queue         *queue.RenderQueue

	drainInterval      time.Duration
	reloadInterval     time.Duration
	reloadDrainTimeout time.Duration

	// lifecycleMu serializes Start, Stop, Close and reloads
	lifecycleMu      sync.Mutex
	pool             *engine.Pool
	supervisorCancel context.CancelFunc
	supervisorDone   chan struct{}

	mu              sync.RWMutex
	state           types.RendererState
	generation      int
	baseline        time.Time
	supervisorErr   error
	closed          bool
	reloadCallbacks []func(types.ReloadEvent)
}

// New creates a stopped renderer. Provider and EngineFactory are required.
// An invalid configuration is reported as *types.ConfigurationError.
func New(config *types.RendererConfig, log logger.Logger, deps interfaces.RendererDependencies) (*Renderer, error) {
	if err := validate(config, deps); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Renderer{
		config:             config,
		logger:             log.WithComponent("renderer"),
		provider:           deps.Provider,
		engineFactory:      deps.EngineFactory,
		notifier:           deps.Notifier,
		metrics:            deps.Metrics,
		status:             deps.Status,
		queue:              queue.NewRenderQueue(),
		drainInterval:      config.GetDrainInterval(),
		reloadInterval:     config.GetReloadInterval(),
		reloadDrainTimeout: DefaultReloadDrainTimeout,
		state:              types.RendererStateStopped,
	}, nil
}

func validate(config *types.RendererConfig, deps interfaces.RendererDependencies) error {
	switch {
	case config == nil:
		return &types.ConfigurationError{Field: "config", Message: "is required"}
	case config.Engines < 1:
		return &types.ConfigurationError{Field: "engines", Message: fmt.Sprintf("must be at least 1, got %d", config.Engines)}
	case config.Charset == "":
		return &types.ConfigurationError{Field: "charset", Message: "is required"}
	case len(config.Routes) == 0:
		return &types.ConfigurationError{Field: "routes", Message: "at least one route is required"}
	case deps.Provider == nil:
		return &types.ConfigurationError{Field: "provider", Message: "an asset provider is required"}
	case deps.EngineFactory == nil:
		return &types.ConfigurationError{Field: "engineFactory", Message: "an engine factory is required"}
	}
	return nil
}

// Start starts the pipeline (deprecated - use StartWithContext)
func (r *Renderer) Start() error {
	return r.StartWithContext(context.Background())
}

// StartWithContext reads the assets, starts one dispatch loop per engine
// and, when the provider supports it, the reload supervisor. Starting a
// running renderer is a no-op. ctx bounds the start itself, not the
// lifetime of the pipeline.
func (r *Renderer) StartWithContext(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	r.mu.RLock()
	state, closed := r.state, r.closed
	r.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if state == types.RendererStateRunning {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.logger.Info("Starting renderer...",
		logger.WithField("engines", r.config.Engines),
		logger.WithField("bundle", r.provider.ServerBundleName()))
	r.setState(types.RendererStateStarting, 0)

	baseline := time.Now()
	meta, err := r.loadMetadata()
	if err == nil {
		err = r.startPipelineLocked(ctx, meta)
	}
	if err != nil {
		r.setState(types.RendererStateStopped, 0)
		if n := r.queue.FailPending(fmt.Errorf("%w: start failed: %v", types.ErrNotRunning, err)); n > 0 {
			r.logger.Warn(fmt.Sprintf("Failed %d request(s) queued during start", n))
		}
		r.logger.Error("Failed to start renderer", logger.WithError(err))
		return err
	}

	r.mu.Lock()
	r.baseline = baseline
	r.supervisorErr = nil
	r.mu.Unlock()

	r.setState(types.RendererStateRunning, r.pool.Size())
	if r.status != nil {
		r.status.StartHeartbeat(context.WithoutCancel(ctx))
	}

	if r.provider.LiveReloadSupported() {
		r.startSupervisorLocked()
	}

	r.logger.Success("Renderer is running",
		logger.WithField("generation", r.pool.Generation()),
		logger.WithField("live_reload", r.provider.LiveReloadSupported()))

	return nil
}

// Stop drains and stops the pipeline (deprecated - use StopWithContext)
func (r *Renderer) Stop() error {
	return r.StopWithContext(context.Background())
}

// StopWithContext stops accepting requests, stops the reload supervisor,
// waits until the queue is empty, lets in-flight renders finish and stops
// every engine. If ctx ends first, the engines are stopped anyway, the
// requests still queued fail with ErrNotRunning and ctx.Err() is returned.
// Stopping a stopped renderer is a no-op.
func (r *Renderer) StopWithContext(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	return r.stopLocked(ctx)
}

func (r *Renderer) stopLocked(ctx context.Context) error {
	if r.State() == types.RendererStateStopped {
		return nil
	}

	r.logger.Info("Stopping renderer...", logger.WithField("queued", r.queue.Len()))
	r.setState(types.RendererStateStopping, r.poolSize())

	r.stopSupervisorLocked()

	start := time.Now()
	drainErr := r.stopPipelineLocked(ctx)
	if drainErr != nil {
		n := r.queue.FailPending(fmt.Errorf("%w: stopped before the request was served", types.ErrNotRunning))
		r.logger.Warn("Renderer stopped before the queue drained",
			logger.WithField("abandoned", n),
			logger.WithError(drainErr))
	}

	if r.status != nil {
		r.status.StopHeartbeat()
	}
	r.setState(types.RendererStateStopped, 0)

	r.logger.Info("Renderer stopped",
		logger.WithField("duration_ms", time.Since(start).Milliseconds()))

	return drainErr
}

// Close stops the renderer, fails every request still queued, closes the
// queue and releases the asset provider and status file. A closed renderer
// cannot be restarted.
func (r *Renderer) Close() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	if err := r.stopLocked(context.Background()); err != nil {
		errs = append(errs, err)
	}
	r.queue.Close()

	if r.status != nil {
		if err := r.status.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("failed to clean up status: %w", err))
		}
	}
	if closer, ok := r.provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close asset provider: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RenderRequest queues a render of uri and returns its future. While the
// renderer is stopped or stopping the future has already failed with
// ErrNotRunning.
func (r *Renderer) RenderRequest(uri string) *queue.RenderFuture {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.state.AcceptsRequests() {
		future := queue.NewRenderFuture(uri)
		future.Fail(types.ErrNotRunning)
		return future
	}

	future := r.queue.Enqueue(uri)
	if r.metrics != nil {
		r.metrics.SetQueueDepth(r.queue.Len())
	}
	return future
}

// Render queues uri and waits for the markup
func (r *Renderer) Render(ctx context.Context, uri string) (string, error) {
	return r.RenderRequest(uri).Wait(ctx)
}

// HandlesRoute reports whether uri is one of the configured routes
func (r *Renderer) HandlesRoute(uri string) bool {
	return r.config.HandlesRoute(uri)
}

// Routes returns the configured routes
func (r *Renderer) Routes() []string {
	routes := make([]string, len(r.config.Routes))
	copy(routes, r.config.Routes)
	return routes
}

// IsRunning reports whether the pipeline is serving requests
func (r *Renderer) IsRunning() bool {
	return r.State() == types.RendererStateRunning
}

// State returns the lifecycle state
func (r *Renderer) State() types.RendererState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Generation returns the number of pipelines started so far
func (r *Renderer) Generation() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// QueueLength returns the number of requests waiting for an engine
func (r *Renderer) QueueLength() int {
	return r.queue.Len()
}

// SupervisorErr returns the error that stopped the reload supervisor, if any
func (r *Renderer) SupervisorErr() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.supervisorErr
}

// OnReload registers a callback run after every reload attempt
func (r *Renderer) OnReload(callback func(types.ReloadEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadCallbacks = append(r.reloadCallbacks, callback)
}

func (r *Renderer) setState(state types.RendererState, engines int) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetEnginesRunning(engines)
	}
	if r.status != nil {
		if err := r.status.RecordState(state, engines); err != nil {
			r.logger.Debug("Failed to record state", logger.WithError(err))
		}
	}
}

func (r *Renderer) poolSize() int {
	if r.pool == nil {
		return 0
	}
	return r.pool.Size()
}

// loadMetadata reads both assets into a new immutable engine context
func (r *Renderer) loadMetadata() (*types.EngineMetadata, error) {
	template, err := r.provider.IndexContent()
	if err != nil {
		return nil, err
	}
	bundle, err := assets.LoadBundle(r.provider, r.config.Charset)
	if err != nil {
		return nil, err
	}
	return types.NewEngineMetadata(
		r.config.Engines,
		r.config.Charset,
		template,
		r.provider.ServerBundleName(),
		bundle,
	), nil
}

// startPipelineLocked starts a new pool generation. Callers hold lifecycleMu.
func (r *Renderer) startPipelineLocked(ctx context.Context, meta *types.EngineMetadata) error {
	r.mu.RLock()
	generation := r.generation + 1
	r.mu.RUnlock()

	pool := engine.NewPool(generation, r.engineFactory, r.queue, meta, r.renderObserver(), r.logger)
	if err := pool.Start(ctx); err != nil {
		return err
	}

	r.pool = pool
	r.mu.Lock()
	r.generation = generation
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetEnginesRunning(pool.Size())
	}
	return nil
}

// stopPipelineLocked drains the queue, then stops the pool. Callers hold
// lifecycleMu. The pool is stopped even when the drain is cut short.
func (r *Renderer) stopPipelineLocked(ctx context.Context) error {
	drainErr := r.drain(ctx)

	if r.pool != nil {
		if err := r.pool.Stop(); err != nil {
			r.logger.Warn("Engine pool stopped with errors", logger.WithError(err))
		}
		r.pool = nil
	}
	if r.metrics != nil {
		r.metrics.SetEnginesRunning(0)
	}
	return drainErr
}

// drain polls until the queue is observed empty. The wait ends at most one
// drain interval after the last queued request was picked up by an engine.
func (r *Renderer) drain(ctx context.Context) error {
	if r.queue.IsEmpty() {
		return nil
	}

	ticker := time.NewTicker(r.drainInterval)
	defer ticker.Stop()

	for !r.queue.IsEmpty() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (r *Renderer) renderObserver() interfaces.RenderObserver {
	observers := engine.Observers{}
	if r.metrics != nil {
		observers = append(observers, r.metrics)
	}
	observers = append(observers, engine.ObserverFunc(func(uri string, duration time.Duration, err error) {
		if r.status != nil {
			r.status.RecordRender(err)
		}
		if r.metrics != nil {
			r.metrics.SetQueueDepth(r.queue.Len())
		}
	}))
	return observers
}
