package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for render operations.
// These enable reliable error checking with errors.Is()
var (
	// ErrNotRunning indicates a request reached a renderer that is stopped or stopping
	ErrNotRunning = errors.New("renderer is not running")

	// ErrQueueClosed indicates the render queue no longer accepts or hands out work
	ErrQueueClosed = errors.New("render queue is closed")

	// ErrEngineStopped indicates a render was attempted on, or interrupted by, a stopped engine
	ErrEngineStopped = errors.New("render engine is stopped")

	// ErrEngineBusy indicates a second concurrent render on a single-owner engine
	ErrEngineBusy = errors.New("render engine is busy")

	// ErrRenderTimeout indicates the script did not finish within the render timeout
	ErrRenderTimeout = errors.New("render timed out")
)

// EngineExecutionError reports that one render failed. It is delivered
// through that request's future only.
type EngineExecutionError struct {
	URI string
	Err error
}

func (e *EngineExecutionError) Error() string {
	return fmt.Sprintf("render of %s failed: %v", e.URI, e.Err)
}

func (e *EngineExecutionError) Unwrap() error {
	return e.Err
}

// AssetReadError reports an I/O failure while reading the template or bundle
type AssetReadError struct {
	Asset string
	Path  string
	Err   error
}

func (e *AssetReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to read %s: %v", e.Asset, e.Err)
	}
	return fmt.Sprintf("failed to read %s %q: %v", e.Asset, e.Path, e.Err)
}

func (e *AssetReadError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid configuration value
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}
