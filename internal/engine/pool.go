package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/queue"
	"github.com/phantomssr/phantom/pkg/types"
)

// Pool is one generation of the render pipeline: meta.Engines started
// engines, each served by its own dispatch loop.
type Pool struct {
	generation int
	factory    interfaces.EngineFactory
	queue      *queue.RenderQueue
	meta       *types.EngineMetadata
	observer   interfaces.RenderObserver
	logger     logger.Logger

	mu          sync.Mutex
	engines     []interfaces.RenderEngine
	dispatchers []*Dispatcher
	group       *SafeGroup
	cancel      context.CancelFunc
	running     bool
}

// NewPool creates a stopped pool for one pipeline generation
func NewPool(
	generation int,
	factory interfaces.EngineFactory,
	q *queue.RenderQueue,
	meta *types.EngineMetadata,
	observer interfaces.RenderObserver,
	log logger.Logger,
) *Pool {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pool{
		generation: generation,
		factory:    factory,
		queue:      q,
		meta:       meta,
		observer:   observer,
		logger:     log.WithComponent("pool"),
	}
}

// Start creates and starts every engine, then launches one dispatch loop
// per engine. If any engine fails, the engines already started are stopped
// and the error is returned. The loops outlive cancellation of ctx and end
// only in Stop.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	size := p.meta.Engines
	if size < 1 {
		size = 1
	}

	engines := make([]interfaces.RenderEngine, 0, size)
	for i := 0; i < size; i++ {
		eng, err := p.factory.Create(p.meta)
		if err != nil {
			stopEngines(engines, p.logger)
			return fmt.Errorf("failed to create engine %d: %w", i+1, err)
		}
		if err := eng.Start(p.meta); err != nil {
			stopEngines(append(engines, eng), p.logger)
			return fmt.Errorf("failed to start engine %d: %w", i+1, err)
		}
		engines = append(engines, eng)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := NewSafeGroup(loopCtx, p.logger)

	dispatchers := make([]*Dispatcher, 0, size)
	for i, eng := range engines {
		d := NewDispatcher(i+1, p.generation, p.queue, eng, p.meta, p.observer, p.logger)
		dispatchers = append(dispatchers, d)
		group.Go(fmt.Sprintf("dispatcher-%d", i+1), func() error {
			return d.Run(groupCtx)
		})
	}

	p.engines = engines
	p.dispatchers = dispatchers
	p.group = group
	p.cancel = cancel
	p.running = true

	p.logger.Info(fmt.Sprintf("Started %d engine(s)", size),
		logger.WithField("generation", p.generation),
		logger.WithField("bundle", p.meta.BundleName))

	return nil
}

// Stop ends the dispatch loops, waits for in-flight renders, then stops
// every engine. Queued futures stay in the queue for the next pool.
// Stopping a stopped pool is a no-op.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	p.cancel()
	loopErr := p.group.Wait()
	if loopErr != nil {
		p.logger.Error("Dispatch loop failed", logger.WithError(loopErr))
	}

	engineErr := stopEngines(p.engines, p.logger)

	served := 0
	for _, d := range p.dispatchers {
		served += d.Served()
	}
	p.logger.Info("Engines stopped",
		logger.WithField("generation", p.generation),
		logger.WithField("served", served))

	p.engines = nil
	p.dispatchers = nil
	p.group = nil
	p.cancel = nil

	return errors.Join(loopErr, engineErr)
}

// IsRunning reports whether the dispatch loops are active
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Size returns the number of started engines
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.engines)
}

// Generation returns the pipeline generation this pool serves
func (p *Pool) Generation() int {
	return p.generation
}

// Metadata returns the engine metadata shared by every engine of the pool
func (p *Pool) Metadata() *types.EngineMetadata {
	return p.meta
}

func stopEngines(engines []interfaces.RenderEngine, log logger.Logger) error {
	var errs []error
	for i, eng := range engines {
		if err := eng.Stop(); err != nil {
			log.Warn("Failed to stop engine",
				logger.WithField("engine", i+1),
				logger.WithError(err))
			errs = append(errs, fmt.Errorf("engine %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}
