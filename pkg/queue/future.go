package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RenderFuture is the pending result of one render request. It is resolved
// exactly once; later resolutions are ignored.
type RenderFuture struct {
	ID        string
	URI       string
	CreatedAt time.Time

	once       sync.Once
	done       chan struct{}
	html       string
	err        error
	resolvedAt time.Time
}

// NewRenderFuture creates a pending future for uri
func NewRenderFuture(uri string) *RenderFuture {
	return &RenderFuture{
		ID:        uuid.New().String(),
		URI:       uri,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Resolve completes the future with rendered markup.
// It reports whether this call resolved the future.
func (f *RenderFuture) Resolve(html string) bool {
	return f.complete(html, nil)
}

// Fail completes the future with an error.
// It reports whether this call resolved the future.
func (f *RenderFuture) Fail(err error) bool {
	return f.complete("", err)
}

func (f *RenderFuture) complete(html string, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.html = html
		f.err = err
		f.resolvedAt = time.Now()
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done returns a channel closed once the future is resolved
func (f *RenderFuture) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has been resolved
func (f *RenderFuture) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future resolves or ctx ends. Giving up on the wait
// does not cancel the render.
func (f *RenderFuture) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.html, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Latency returns the time between creation and resolution, or zero while pending
func (f *RenderFuture) Latency() time.Duration {
	if !f.IsDone() {
		return 0
	}
	return f.resolvedAt.Sub(f.CreatedAt)
}
