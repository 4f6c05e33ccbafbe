// Package state persists renderer status in .phantom/state.json so other
// processes (phantom status) can inspect a running renderer
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

const (
	stateDirName  = ".phantom"
	stateFileName = "state.json"

	// DefaultHeartbeatInterval is how often a running renderer refreshes its status
	DefaultHeartbeatInterval = 10 * time.Second

	// StaleAfter is the heartbeat age after which a status is considered dead
	StaleAfter = 30 * time.Second
)

// RendererStatus is the persisted status of one renderer process
type RendererStatus struct {
	ProcessID  int                 `json:"processId"`
	State      types.RendererState `json:"state"`
	Engines    int                 `json:"engines"`
	StartedAt  time.Time           `json:"startedAt"`
	Heartbeat  time.Time           `json:"heartbeat"`
	Renders    int                 `json:"renders"`
	Failures   int                 `json:"failures"`
	LastError  string              `json:"lastError,omitempty"`
	Generation int                 `json:"generation"`
	LastReload *ReloadStatus       `json:"lastReload,omitempty"`
}

// ReloadStatus describes the most recent live reload
type ReloadStatus struct {
	Generation int                `json:"generation"`
	Timestamp  time.Time          `json:"timestamp"`
	DurationMs int64              `json:"durationMs"`
	Result     types.ReloadResult `json:"result"`
	Error      string             `json:"error,omitempty"`
}

// IsStale reports whether the owning process stopped refreshing the status
func (s *RendererStatus) IsStale(now time.Time) bool {
	return s.ProcessID == 0 || now.Sub(s.Heartbeat) > StaleAfter
}

// StateManager writes the status file of the current process
type StateManager struct {
	path              string
	logger            logger.Logger
	heartbeatInterval time.Duration

	mu            sync.Mutex
	status        RendererStatus
	heartbeatStop chan struct{}
	heartbeatDone chan struct{}
}

var _ interfaces.StatusRecorder = (*StateManager)(nil)

// NewStateManager creates a manager for projectRoot/.phantom/state.json
func NewStateManager(projectRoot string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StateManager{
		path:              FilePath(projectRoot),
		logger:            log.WithComponent("state"),
		heartbeatInterval: DefaultHeartbeatInterval,
		status: RendererStatus{
			ProcessID: os.Getpid(),
			State:     types.RendererStateStopped,
		},
	}
}

// FilePath returns the status file location for projectRoot
func FilePath(projectRoot string) string {
	return filepath.Join(projectRoot, stateDirName, stateFileName)
}

// Path returns the status file location
func (sm *StateManager) Path() string {
	return sm.path
}

// SetHeartbeatInterval changes the heartbeat period. It applies to the
// next StartHeartbeat.
func (sm *StateManager) SetHeartbeatInterval(d time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if d > 0 {
		sm.heartbeatInterval = d
	}
}

// RecordState persists a lifecycle transition
func (sm *StateManager) RecordState(state types.RendererState, engines int) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == types.RendererStateRunning && sm.status.State != types.RendererStateRunning {
		sm.status.StartedAt = time.Now()
	}
	sm.status.State = state
	sm.status.Engines = engines
	sm.status.ProcessID = os.Getpid()

	return sm.saveLocked()
}

// RecordRender counts one render. Counters are written with the next
// state change or heartbeat.
func (sm *StateManager) RecordRender(err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.status.Renders++
	if err != nil {
		sm.status.Failures++
		sm.status.LastError = err.Error()
	}
}

// RecordReload persists the outcome of a live reload
func (sm *StateManager) RecordReload(event types.ReloadEvent) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	reload := &ReloadStatus{
		Generation: event.Generation,
		Timestamp:  event.Timestamp,
		DurationMs: event.Duration.Milliseconds(),
		Result:     event.Result,
	}
	if event.Error != nil {
		reload.Error = event.Error.Error()
	}
	sm.status.LastReload = reload
	if event.Result == types.ReloadResultSucceeded {
		sm.status.Generation = event.Generation
	}

	return sm.saveLocked()
}

// Snapshot returns a copy of the in-memory status
func (sm *StateManager) Snapshot() RendererStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	status := sm.status
	if status.LastReload != nil {
		reload := *status.LastReload
		status.LastReload = &reload
	}
	return status
}

// StartHeartbeat refreshes the status file until ctx ends or StopHeartbeat
// is called. Starting twice is a no-op.
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatStop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	sm.heartbeatStop = stop
	sm.heartbeatDone = done
	ticker := time.NewTicker(sm.heartbeatInterval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				sm.beat()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat goroutine and waits for it
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	stop := sm.heartbeatStop
	done := sm.heartbeatDone
	sm.heartbeatStop = nil
	sm.heartbeatDone = nil
	sm.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Cleanup stops the heartbeat and marks the status as belonging to no process
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.status.State = types.RendererStateStopped
	sm.status.Engines = 0
	sm.status.ProcessID = 0
	if err := sm.saveLocked(); err != nil {
		sm.logger.Warn("Failed to save final state", logger.WithError(err))
		return err
	}
	return nil
}

// Read loads the status file of projectRoot
func Read(projectRoot string) (*RendererStatus, error) {
	path := FilePath(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var status RendererStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &status, nil
}

func (sm *StateManager) beat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := sm.saveLocked(); err != nil {
		sm.logger.Debug("Failed to update heartbeat", logger.WithError(err))
	}
}

// saveLocked writes the status atomically. Callers hold sm.mu.
func (sm *StateManager) saveLocked() error {
	sm.status.Heartbeat = time.Now()

	data, err := json.MarshalIndent(sm.status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sm.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tempFile := sm.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, sm.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}
