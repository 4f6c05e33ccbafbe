// Package process handles signals and ordered shutdown for long-running commands
package process

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/phantomssr/phantom/pkg/logger"
)

// ErrStillRunning is returned by Terminate when the process outlived the grace period
var ErrStillRunning = errors.New("process did not exit")

// Manager runs shutdown handlers once, on a signal or when its context ends
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []namedHandler
	signals          []os.Signal

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	received os.Signal
	stop     chan struct{}
	wg       sync.WaitGroup
}

type namedHandler struct {
	name string
	fn   func()
}

// NewManager creates a manager for SIGINT, SIGTERM and SIGHUP
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		logger:  log.WithComponent("process"),
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP},
		done:    make(chan struct{}),
	}
}

// RegisterShutdownHandler adds a handler. Handlers run in reverse
// registration order.
func (m *Manager) RegisterShutdownHandler(name string, handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, namedHandler{name: name, fn: handler})
}

// Start waits in the background for a signal or for ctx to end, then
// runs the shutdown handlers and closes Done. Starting twice is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			m.handleShutdown()
		case sig := <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig))
			m.mu.Lock()
			m.received = sig
			m.mu.Unlock()
			m.handleShutdown()
		case <-stop:
		}
	}()
}

// Stop stops listening without running the shutdown handlers
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// Done is closed once the shutdown handlers have run
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Signal returns the signal that triggered shutdown, if any
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// IsRunning checks if the manager is listening
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.logger.Info("Initiating graceful shutdown...")

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.running = false
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		m.runHandler(handlers[i])
	}
	close(m.done)
}

func (m *Manager) runHandler(h namedHandler) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Shutdown handler panicked",
				logger.WithField("handler", h.name),
				logger.WithField("panic", r))
		}
	}()

	start := time.Now()
	h.fn()
	m.logger.Debug("Shutdown handler finished",
		logger.WithField("handler", h.name),
		logger.WithField("duration_ms", time.Since(start).Milliseconds()))
}

// IsAlive reports whether a process with pid exists
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Terminate sends SIGTERM to pid and waits up to grace for it to exit
func Terminate(pid int, grace time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsAlive(pid) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return ErrStillRunning
}
