package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

// startSupervisorLocked launches the reload supervisor. Callers hold lifecycleMu.
func (r *Renderer) startSupervisorLocked() {
	r.stopSupervisorLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.supervisorCancel = cancel
	r.supervisorDone = done

	go r.supervise(ctx, done)
}

// stopSupervisorLocked cancels the supervisor and waits for it to exit.
// The supervisor never blocks on lifecycleMu, so holding it here is safe.
func (r *Renderer) stopSupervisorLocked() {
	if r.supervisorCancel == nil {
		return
	}
	r.supervisorCancel()
	<-r.supervisorDone
	r.supervisorCancel = nil
	r.supervisorDone = nil
}

// supervise polls the provider every reload interval and restarts the
// pipeline when the assets changed. A failed change check ends the
// supervisor; the pipeline keeps serving the assets it has.
func (r *Renderer) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	log := r.logger.WithComponent("supervisor")
	log.Debug("Watching assets for changes", logger.WithField("interval", r.reloadInterval))

	ticker := time.NewTicker(r.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		r.mu.RLock()
		since := r.baseline
		r.mu.RUnlock()

		required, err := r.provider.LiveReloadRequired(since)
		if err != nil {
			r.supervisorFailed(log, err)
			return
		}
		if !required {
			continue
		}

		// Start, Stop or Close owns the pipeline; look again next tick.
		if !r.lifecycleMu.TryLock() {
			continue
		}
		keepGoing := ctx.Err() == nil && r.reloadLocked(log)
		r.lifecycleMu.Unlock()

		if !keepGoing {
			return
		}
	}
}

func (r *Renderer) supervisorFailed(log logger.Logger, err error) {
	r.mu.Lock()
	r.supervisorErr = err
	r.mu.Unlock()

	log.Error("Live reload stopped", logger.WithError(err))
	if r.notifier != nil {
		r.notifier.NotifySupervisorStopped(err)
	}
}

// reloadLocked replaces the running pipeline with one built from the
// current assets. Requests queued meanwhile wait for the new pipeline.
// It reports whether the supervisor should keep running. Callers hold
// lifecycleMu.
func (r *Renderer) reloadLocked(log logger.Logger) bool {
	if r.State() != types.RendererStateRunning || r.pool == nil {
		return false
	}

	start := time.Now()
	log.Info("👻 Assets changed, reloading...", logger.WithField("queued", r.queue.Len()))

	meta, err := r.loadMetadata()
	if err != nil {
		r.setBaseline(start)
		log.Error("Reload aborted, still serving previous assets", logger.WithError(err))
		r.finishReload(types.ReloadEvent{
			Generation: r.Generation(),
			Result:     types.ReloadResultFailed,
			Error:      err,
		}, start)
		r.supervisorFailed(log, err)
		return false
	}

	previous := r.pool.Metadata()

	drainCtx, cancel := context.WithTimeout(context.Background(), r.reloadDrainTimeout)
	if err := r.stopPipelineLocked(drainCtx); err != nil {
		log.Warn("Queue did not drain before restart, carrying requests over",
			logger.WithField("queued", r.queue.Len()))
	}
	cancel()

	if err := r.startPipelineLocked(context.Background(), meta); err != nil {
		log.Error("Reloaded pipeline failed to start, restoring previous assets", logger.WithError(err))

		if rollbackErr := r.startPipelineLocked(context.Background(), previous); rollbackErr != nil {
			log.Error("Failed to restore previous pipeline, renderer stopped", logger.WithError(rollbackErr))
			r.setState(types.RendererStateStopped, 0)
			if r.status != nil {
				r.status.StopHeartbeat()
			}
			r.queue.FailPending(fmt.Errorf("%w: reload failed: %v", types.ErrNotRunning, rollbackErr))
			r.finishReload(types.ReloadEvent{
				Generation: r.Generation(),
				Result:     types.ReloadResultFailed,
				Error:      err,
			}, start)
			return false
		}

		r.setBaseline(start)
		r.finishReload(types.ReloadEvent{
			Generation: r.Generation(),
			Result:     types.ReloadResultRolledBack,
			Error:      err,
		}, start)
		return true
	}

	r.setBaseline(start)
	r.finishReload(types.ReloadEvent{
		Generation: r.Generation(),
		Result:     types.ReloadResultSucceeded,
	}, start)

	log.Success("Reload complete",
		logger.WithField("generation", r.Generation()),
		logger.WithField("duration_ms", time.Since(start).Milliseconds()))
	return true
}

func (r *Renderer) setBaseline(t time.Time) {
	r.mu.Lock()
	r.baseline = t
	r.mu.Unlock()
}

// finishReload records, publishes and announces one reload attempt
func (r *Renderer) finishReload(event types.ReloadEvent, start time.Time) {
	event.Timestamp = time.Now()
	event.Duration = event.Timestamp.Sub(start)

	if r.metrics != nil {
		r.metrics.ObserveReload(event.Result, event.Duration)
	}
	if r.status != nil {
		if err := r.status.RecordReload(event); err != nil {
			r.logger.Debug("Failed to record reload", logger.WithError(err))
		}
	}
	if r.notifier != nil {
		if event.Result == types.ReloadResultSucceeded {
			r.notifier.NotifyReload(event.Generation, event.Duration)
		} else {
			r.notifier.NotifyReloadFailure(event.Error)
		}
	}

	r.mu.RLock()
	callbacks := make([]func(types.ReloadEvent), len(r.reloadCallbacks))
	copy(callbacks, r.reloadCallbacks)
	r.mu.RUnlock()

	for _, callback := range callbacks {
		go func(cb func(types.ReloadEvent)) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Reload callback panicked", logger.WithField("panic", rec))
				}
			}()
			cb(event)
		}(callback)
	}
}
