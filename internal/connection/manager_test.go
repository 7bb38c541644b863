package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	mu           sync.Mutex
	openErr      error
	opens        int
	subscribes   int
	unsubscribes int
	closes       int
	callsign     string
	sink         func(dispatch.Event)
}

func (f *fakeConnector) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return f.openErr
}

func (f *fakeConnector) Subscribe(ctx context.Context, callsign string, sink func(dispatch.Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	f.callsign = callsign
	f.sink = sink
	return nil
}

func (f *fakeConnector) Unsubscribe() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes++
	return nil
}

func (f *fakeConnector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeConnector) emit(ev dispatch.Event) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(ev)
}

type recordingListener struct {
	mu     sync.Mutex
	events []dispatch.Event
	notify chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{notify: make(chan struct{}, 64)}
}

func (r *recordingListener) OnEvent(ev dispatch.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recordingListener) wait(t *testing.T, n int) []dispatch.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.events) >= n {
			got := append([]dispatch.Event(nil), r.events...)
			r.mu.Unlock()
			return got
		}
		r.mu.Unlock()
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
}

func TestEnsureConnectedSubscribesOnce(t *testing.T) {
	conn := &fakeConnector{}
	m := NewManager("test", conn, Policy{Attempts: 3})
	defer m.Uninitialize()

	require.NoError(t, m.Initialize(context.Background(), "app"))
	require.NoError(t, m.EnsureConnected(context.Background()))
	m.Subscribe(context.Background())

	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, 1, conn.opens)
	assert.Equal(t, 1, conn.subscribes)
	assert.Equal(t, "app", conn.callsign)
}

func TestBoundedRetryFailsFastOnceExhausted(t *testing.T) {
	conn := &fakeConnector{openErr: errors.New("refused")}
	m := NewManager("test", conn, Policy{Attempts: 3})

	for i := 0; i < 3; i++ {
		err := m.EnsureConnected(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrNotConnected)
	}
	assert.Equal(t, StateExhausted, m.State())
	assert.Equal(t, 3, conn.opens)

	err := m.EnsureConnected(context.Background())
	assert.ErrorIs(t, err, types.ErrRetryExhausted)
	assert.Equal(t, 3, conn.opens, "exhausted manager must not touch the transport")

	m.Uninitialize()
	assert.Equal(t, StateUninitialized, m.State())
	assert.Equal(t, 3, m.Remaining())

	conn.mu.Lock()
	conn.openErr = nil
	conn.mu.Unlock()
	require.NoError(t, m.EnsureConnected(context.Background()))
	assert.Equal(t, 4, conn.opens)
	m.Uninitialize()
}

func TestFailedAttemptStaysUninitializedWhileBudgetRemains(t *testing.T) {
	conn := &fakeConnector{openErr: errors.New("refused")}
	m := NewManager("test", conn, Policy{Attempts: 2})

	require.Error(t, m.EnsureConnected(context.Background()))
	assert.Equal(t, StateUninitialized, m.State())
	assert.Equal(t, 1, m.Remaining())
}

func TestConnectResetsListenersAndDeliversInOrder(t *testing.T) {
	conn := &fakeConnector{}
	m := NewManager("test", conn, Policy{Attempts: 1})
	defer m.Uninitialize()

	l := newRecordingListener()
	m.RegisterListener(l)
	m.RegisterListener(l)

	require.NoError(t, m.Initialize(context.Background(), "app"))
	conn.emit(dispatch.Speech(dispatch.SpeechStart, 7))
	conn.emit(dispatch.Speech(dispatch.SpeechComplete, 7))

	got := l.wait(t, 3)
	assert.Equal(t, []dispatch.Event{
		dispatch.StateChanged(false),
		dispatch.Speech(dispatch.SpeechStart, 7),
		dispatch.Speech(dispatch.SpeechComplete, 7),
	}, got)
}

func TestUnregisteredListenerReceivesNothing(t *testing.T) {
	conn := &fakeConnector{}
	m := NewManager("test", conn, Policy{Attempts: 1})
	defer m.Uninitialize()

	removed := newRecordingListener()
	kept := newRecordingListener()
	m.RegisterListener(removed)
	m.RegisterListener(kept)
	m.UnregisterListener(removed)
	m.UnregisterListener(removed)

	require.NoError(t, m.EnsureConnected(context.Background()))
	kept.wait(t, 1)

	removed.mu.Lock()
	defer removed.mu.Unlock()
	assert.Empty(t, removed.events)
}

func TestUninitializeUnsubscribesAndCloses(t *testing.T) {
	conn := &fakeConnector{}
	m := NewManager("test", conn, Policy{Attempts: 1})

	require.NoError(t, m.EnsureConnected(context.Background()))
	m.Uninitialize()
	m.Uninitialize()

	assert.Equal(t, 1, conn.unsubscribes)
	assert.Equal(t, 1, conn.closes)
	assert.False(t, m.IsActive())
}

func TestConcurrentEnsureConnectedOpensOnce(t *testing.T) {
	conn := &fakeConnector{}
	m := NewManager("test", conn, Policy{Attempts: 3})
	defer m.Uninitialize()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.EnsureConnected(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, conn.opens)
}

func TestConnectResetIsAppliedBeforeEnsureConnectedReturns(t *testing.T) {
	conn := &fakeConnector{}
	m := NewManager("test", conn, Policy{Attempts: 1})
	defer m.Uninitialize()

	l := newRecordingListener()
	m.RegisterListener(l)
	require.NoError(t, m.EnsureConnected(context.Background()))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Equal(t, []dispatch.Event{dispatch.StateChanged(false)}, l.events)
}

// lateEventConnector raises one more notification while being unsubscribed
type lateEventConnector struct {
	fakeConnector
}

func (c *lateEventConnector) Unsubscribe() error {
	c.emit(dispatch.Speech(dispatch.SpeechComplete, 7))
	return c.fakeConnector.Unsubscribe()
}

func TestUninitializeLeavesNoWorkerRunning(t *testing.T) {
	conn := &lateEventConnector{}
	m := NewManager("test", conn, Policy{Attempts: 1})

	require.NoError(t, m.EnsureConnected(context.Background()))
	m.Uninitialize()

	assert.False(t, m.worker.Running())
}

// droppingConnector reports peer disconnects like a socket transport does
type droppingConnector struct {
	fakeConnector
	connected bool
	lost      func()
}

func (c *droppingConnector) Open(ctx context.Context) error {
	if err := c.fakeConnector.Open(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *droppingConnector) NotifyLost(fn func()) {
	c.lost = fn
}

func (c *droppingConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *droppingConnector) drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	go c.lost()
}

func TestLostConnectionReconnectsOnNextUse(t *testing.T) {
	conn := &droppingConnector{}
	m := NewManager("test", conn, Policy{Attempts: 2})
	defer m.Uninitialize()

	require.NoError(t, m.Initialize(context.Background(), "app"))
	conn.drop()
	require.Eventually(t, func() bool { return m.State() == StateUninitialized }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 2, m.Remaining())

	require.NoError(t, m.EnsureConnected(context.Background()))
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, 2, conn.opens)
	assert.Equal(t, 2, conn.subscribes)
}

func TestLossReportForReplacedConnectionIsIgnored(t *testing.T) {
	conn := &droppingConnector{}
	m := NewManager("test", conn, Policy{Attempts: 1})
	defer m.Uninitialize()

	require.NoError(t, m.EnsureConnected(context.Background()))
	m.connectionLost()

	assert.Equal(t, StateActive, m.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(42).String())
}
