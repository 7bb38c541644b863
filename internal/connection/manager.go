// Package connection owns the lifecycle of one backend connection.
//
// A Manager connects lazily on first use, spends a bounded attempt budget and
// then fails fast until it is torn down. Notifications raised by the backend
// are handed to a dispatch.Worker and fanned out to registered listeners.
package connection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/metrics"
	"github.com/dooshek/ttsclient/internal/types"
)

// State is the lifecycle state of a connection
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateActive
	StateExhausted
)

var stateNames = []string{"uninitialized", "connecting", "active", "exhausted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Connector is the transport a Manager drives
type Connector interface {
	// Open establishes the connection. It must honour ctx cancellation.
	Open(ctx context.Context) error
	// Subscribe asks the backend to deliver notifications for callsign to sink.
	// sink may be called from any goroutine.
	Subscribe(ctx context.Context, callsign string, sink func(dispatch.Event)) error
	Unsubscribe() error
	Close() error
}

// Monitor is implemented by connectors that notice when the peer drops an
// open connection.
type Monitor interface {
	// NotifyLost registers fn. It is called from its own goroutine after the
	// peer closed a connection, never after a local Close.
	NotifyLost(fn func())
	// Connected reports whether a connection is currently open
	Connected() bool
}

// Listener receives backend notifications on the dispatch worker goroutine.
// The reset that follows every connect is delivered synchronously on the
// connecting goroutine instead; a listener must not tear the connection down from it.
type Listener interface {
	OnEvent(ev dispatch.Event)
}

// Policy bounds connection attempts
type Policy struct {
	Attempts int           // connect budget before the manager is exhausted
	Timeout  time.Duration // per attempt, zero means no extra deadline
}

// Manager is the single shared connection to one backend
type Manager struct {
	name   string
	conn   Connector
	policy Policy

	// mu serializes connect attempts and teardown; it is held across Open
	mu         sync.Mutex
	remaining  int
	subscribed bool
	callsign   string

	state atomic.Int32

	listenersMu sync.Mutex
	listeners   []Listener

	worker *dispatch.Worker
}

// NewManager creates a manager in the uninitialized state
func NewManager(name string, conn Connector, policy Policy) *Manager {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	m := &Manager{
		name:      name,
		conn:      conn,
		policy:    policy,
		remaining: policy.Attempts,
		worker:    dispatch.NewWorker(),
	}
	if monitor, ok := conn.(Monitor); ok {
		monitor.NotifyLost(m.connectionLost)
	}
	m.setState(StateUninitialized)
	return m
}

// Name returns the backend name
func (m *Manager) Name() string {
	return m.name
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsActive reports whether the connection is established
func (m *Manager) IsActive() bool {
	return m.State() == StateActive
}

// Remaining returns the unspent connect budget
func (m *Manager) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Callsign returns the identity used for notification subscription
func (m *Manager) Callsign() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callsign
}

// Initialize records the subscription identity and attempts to connect
func (m *Manager) Initialize(ctx context.Context, callsign string) error {
	m.mu.Lock()
	m.callsign = callsign
	m.mu.Unlock()
	return m.EnsureConnected(ctx)
}

// EnsureConnected connects if needed. It returns nil when active, and an error
// wrapping types.ErrNotConnected otherwise; once the budget is spent it fails
// with types.ErrRetryExhausted without touching the transport.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	if m.IsActive() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case StateActive:
		return nil
	case StateExhausted:
		return types.ErrRetryExhausted
	}

	if m.remaining <= 0 {
		m.setState(StateExhausted)
		return types.ErrRetryExhausted
	}
	m.remaining--
	m.setState(StateConnecting)

	openCtx := ctx
	if m.policy.Timeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, m.policy.Timeout)
		defer cancel()
	}

	err := m.conn.Open(openCtx)
	metrics.ConnectAttempt(m.name, err)
	if err != nil {
		logger.Errorf("Couldn't connect to %s, %d attempt(s) left", err, m.name, m.remaining)
		if m.remaining == 0 {
			m.setState(StateExhausted)
		} else {
			m.setState(StateUninitialized)
		}
		return fmt.Errorf("%w: %s: %v", types.ErrNotConnected, m.name, err)
	}

	logger.Infof("Successfully connected to %s", m.name)
	m.setState(StateActive)
	m.subscribeLocked(ctx)

	// Listeners reset their cached state on every (re)connect, before any
	// caller can observe the connection as usable
	m.deliver(dispatch.StateChanged(false))
	return nil
}

// connectionLost returns an active manager whose peer went away to the
// uninitialized state with a fresh budget.
func (m *Manager) connectionLost() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.IsActive() {
		return
	}
	if monitor, ok := m.conn.(Monitor); ok && monitor.Connected() {
		return
	}

	logger.Warnf("%s connection lost, reconnecting on next use", m.name)
	m.subscribed = false
	m.remaining = m.policy.Attempts
	m.setState(StateUninitialized)
}

// Subscribe registers for backend notifications once; further calls are no-ops
func (m *Manager) Subscribe(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeLocked(ctx)
}

func (m *Manager) subscribeLocked(ctx context.Context) {
	if m.subscribed || !m.IsActive() {
		return
	}
	if err := m.conn.Subscribe(ctx, m.callsign, m.Dispatch); err != nil {
		logger.Errorf("Couldn't register for %s notifications", err, m.name)
		return
	}
	m.subscribed = true
	logger.Infof("Registered for %s notifications with callsign %q", m.name, m.callsign)
}

// Uninitialize unregisters notifications, releases the connection and resets
// the manager so the next use starts a fresh bounded connect sequence.
func (m *Manager) Uninitialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribed {
		if err := m.conn.Unsubscribe(); err != nil {
			logger.Warnf("Failed to unregister %s notifications: %v", m.name, err)
		}
		m.subscribed = false
	}

	// No new notifications can arrive past this point
	m.worker.Cleanup()

	if m.IsActive() {
		if err := m.conn.Close(); err != nil {
			logger.Warnf("Failed to close %s connection: %v", m.name, err)
		}
	}
	m.remaining = m.policy.Attempts
	m.setState(StateUninitialized)
	logger.Infof("%s connection uninitialized", m.name)
}

// RegisterListener adds l once; registering the same listener again is a no-op
func (m *Manager) RegisterListener(l Listener) {
	if l == nil {
		return
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

// UnregisterListener removes l if present
func (m *Manager) UnregisterListener(l Listener) {
	if l == nil {
		return
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Dispatch queues ev for delivery to listeners. It is safe to call from the
// goroutine the backend delivers notifications on.
func (m *Manager) Dispatch(ev dispatch.Event) {
	m.worker.Post(func() {
		m.dispatchOnWorker(ev)
	})
}

func (m *Manager) dispatchOnWorker(ev dispatch.Event) {
	logger.Infof("%s dispatching %s", m.name, ev)
	if !m.IsActive() {
		return
	}
	m.deliver(ev)
}

func (m *Manager) deliver(ev dispatch.Event) {
	m.listenersMu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.Unlock()

	for _, l := range listeners {
		l.OnEvent(ev)
	}
	metrics.EventDispatched(m.name, ev.Kind.String())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.SetConnectionState(m.name, s.String(), stateNames)
}
