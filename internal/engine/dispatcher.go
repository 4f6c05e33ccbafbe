package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	pcontext "github.com/phantomssr/phantom/pkg/context"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/queue"
	"github.com/phantomssr/phantom/pkg/types"
)

// Dispatcher pairs one engine with the render queue. It is the only
// goroutine that touches its engine while the pool is running.
type Dispatcher struct {
	id         int
	generation int
	queue      *queue.RenderQueue
	engine     interfaces.RenderEngine
	meta       *types.EngineMetadata
	observer   interfaces.RenderObserver
	logger     logger.Logger

	served atomic.Int64
	failed atomic.Int64
}

// NewDispatcher creates a dispatch loop for engine. observer may be nil.
func NewDispatcher(
	id int,
	generation int,
	q *queue.RenderQueue,
	engine interfaces.RenderEngine,
	meta *types.EngineMetadata,
	observer interfaces.RenderObserver,
	log logger.Logger,
) *Dispatcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Dispatcher{
		id:         id,
		generation: generation,
		queue:      q,
		engine:     engine,
		meta:       meta,
		observer:   observer,
		logger:     log.WithComponent(fmt.Sprintf("dispatcher-%d", id)),
	}
}

// Run serves futures until ctx is cancelled or the queue is closed. A
// dequeued future is always rendered to completion, even when ctx ends
// while the render runs.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("Dispatch loop started", logger.WithField("generation", d.generation))
	defer d.logger.Debug("Dispatch loop stopped",
		logger.WithField("served", d.served.Load()),
		logger.WithField("failed", d.failed.Load()))

	for {
		future, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, types.ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatcher %d: %w", d.id, err)
		}

		d.serve(context.WithoutCancel(ctx), future)
	}
}

// serve renders one future and resolves it. Failures stay in the future.
func (d *Dispatcher) serve(ctx context.Context, future *queue.RenderFuture) {
	ctx = pcontext.ForRender(ctx, future.ID, future.URI)
	ctx = pcontext.WithGeneration(ctx, d.generation)
	log := logger.WithContext(ctx, d.logger)

	start := time.Now()
	html, err := d.render(ctx, future.URI)
	duration := time.Since(start)

	if err != nil {
		d.failed.Add(1)
		future.Fail(err)
		log.Warn("Render failed", logger.WithError(err))
	} else {
		future.Resolve(html)
		log.Debug("Render completed", logger.WithField("bytes", len(html)))
	}
	d.served.Add(1)

	d.observe(future.URI, duration, err)
}

// observe reports a render to the observer. A panicking observer must not
// end the loop.
func (d *Dispatcher) observe(uri string, duration time.Duration, err error) {
	if d.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Render observer panic recovered",
				logger.WithField("uri", uri),
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
		}
	}()
	d.observer.ObserveRender(uri, duration, err)
}

// render calls the engine and turns a panic into an EngineExecutionError
func (d *Dispatcher) render(ctx context.Context, uri string) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Engine panic recovered",
				logger.WithField("uri", uri),
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
			html = ""
			err = &types.EngineExecutionError{URI: uri, Err: fmt.Errorf("engine panic: %v", r)}
		}
	}()

	html, err = d.engine.Render(ctx, uri, d.meta)
	if err != nil {
		var execErr *types.EngineExecutionError
		if !errors.As(err, &execErr) {
			err = &types.EngineExecutionError{URI: uri, Err: err}
		}
	}
	return html, err
}

// Served returns how many futures this loop has resolved or failed
func (d *Dispatcher) Served() int {
	return int(d.served.Load())
}

// Failed returns how many renders failed on this loop
func (d *Dispatcher) Failed() int {
	return int(d.failed.Load())
}
