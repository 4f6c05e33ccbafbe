// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/phantomssr/phantom/pkg/types"
)

// AssetProvider supplies the index template and server bundle, and tells
// the renderer when they changed.
type AssetProvider interface {
	IndexContent() (string, error)
	ServerBundle() (io.ReadCloser, error)
	ServerBundleName() string
	LiveReloadSupported() bool
	LiveReloadRequired(since time.Time) (bool, error)
}

// RenderEngine executes the server bundle for one URI at a time.
// Implementations are not required to support concurrent Render calls.
type RenderEngine interface {
	Start(meta *types.EngineMetadata) error
	Stop() error
	IsWorking() bool
	State() types.EngineState
	Render(ctx context.Context, uri string, meta *types.EngineMetadata) (string, error)
}

// EngineFactory creates render engines for a pipeline generation
type EngineFactory interface {
	Create(meta *types.EngineMetadata) (RenderEngine, error)
}

// RenderObserver is told about every completed render
type RenderObserver interface {
	ObserveRender(uri string, duration time.Duration, err error)
}

// MetricsRecorder records renderer metrics
type MetricsRecorder interface {
	RenderObserver
	SetQueueDepth(depth int)
	SetEnginesRunning(n int)
	ObserveReload(result types.ReloadResult, duration time.Duration)
}

// ReloadNotifier tells the operator about live reloads
type ReloadNotifier interface {
	NotifyReload(generation int, duration time.Duration)
	NotifyReloadFailure(err error)
	NotifySupervisorStopped(err error)
}

// StatusRecorder persists renderer status for other processes
type StatusRecorder interface {
	RecordState(state types.RendererState, engines int) error
	RecordRender(err error)
	RecordReload(event types.ReloadEvent) error
	StartHeartbeat(ctx context.Context)
	StopHeartbeat()
	Cleanup() error
}

// RendererDependencies holds all dependencies for the renderer.
// Provider and EngineFactory are required, the rest are optional.
type RendererDependencies struct {
	Provider      AssetProvider
	EngineFactory EngineFactory
	Notifier      ReloadNotifier
	Metrics       MetricsRecorder
	Status        StatusRecorder
}
