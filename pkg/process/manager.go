// Package process provides signal handling for graceful batch cancellation
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/exeforge/exeforge/pkg/logger"
)

// Manager turns SIGINT/SIGTERM into cancel handlers. The first signal
// cancels in-flight conversions and lets them unwind; a second signal
// exits immediately.
type Manager struct {
	logger         logger.Logger
	cancelHandlers []func()
	forceExit      func(code int)
	mu             sync.Mutex
	running        bool
}

// NewManager creates a new signal manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		logger:         log,
		cancelHandlers: make([]func(), 0),
		forceExit:      os.Exit,
	}
}

// RegisterCancelHandler adds a handler invoked on the first signal.
func (m *Manager) RegisterCancelHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelHandlers = append(m.cancelHandlers, handler)
}

// Start begins listening for signals. The context bounds the listener's
// lifetime; cancelling it also runs the cancel handlers.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			m.handleCancel()
			return
		case sig := <-sigChan:
			m.logger.Info("Received signal, cancelling conversions",
				logger.WithField("signal", sig.String()))
			m.handleCancel()
		}

		select {
		case <-ctx.Done():
		case sig := <-sigChan:
			m.logger.Warn("Received second signal, exiting",
				logger.WithField("signal", sig.String()))
			m.forceExit(1)
		}
	}()
}

// Stop marks the manager as stopped. Cancel the context passed to Start
// to release the listener goroutine.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()
}

// IsRunning reports whether the manager is listening for signals.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleCancel() {
	m.mu.Lock()
	handlers := make([]func(), len(m.cancelHandlers))
	copy(handlers, m.cancelHandlers)
	m.running = false
	m.mu.Unlock()

	// Most recently registered first.
	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}
