package engine

import (
	"time"

	"github.com/phantomssr/phantom/pkg/interfaces"
)

// ObserverFunc adapts a function to interfaces.RenderObserver
type ObserverFunc func(uri string, duration time.Duration, err error)

// ObserveRender calls f
func (f ObserverFunc) ObserveRender(uri string, duration time.Duration, err error) {
	f(uri, duration, err)
}

// Observers fans one render observation out to every non-nil observer
type Observers []interfaces.RenderObserver

// ObserveRender forwards to every observer in order
func (o Observers) ObserveRender(uri string, duration time.Duration, err error) {
	for _, observer := range o {
		if observer != nil {
			observer.ObserveRender(uri, duration, err)
		}
	}
}
