package comrpc_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/service/comrpc"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	busName    = "org.rdk.TextToSpeech"
	objectPath = "/org/rdk/TextToSpeech"
	iface      = "org.rdk.TextToSpeech1"
)

const busConfig = `<!DOCTYPE busconfig PUBLIC "-//freedesktop//DTD D-BUS Bus Configuration 1.0//EN"
 "http://www.freedesktop.org/standards/dbus/1.0/busconfig.dtd">
<busconfig>
  <type>session</type>
  <listen>unix:path=%SOCKET%</listen>
  <auth>EXTERNAL</auth>
  <policy context="default">
    <allow send_destination="*" eavesdrop="true"/>
    <allow eavesdrop="true"/>
    <allow own="*"/>
  </policy>
</busconfig>
`

// startBus runs a private dbus-daemon and returns its socket path
func startBus(t *testing.T) string {
	t.Helper()
	daemon, err := exec.LookPath("dbus-daemon")
	if err != nil {
		t.Skip("dbus-daemon not installed")
	}

	dir := t.TempDir()
	socket := filepath.Join(dir, "communicator")
	configPath := filepath.Join(dir, "bus.conf")
	config := []byte(strings.ReplaceAll(busConfig, "%SOCKET%", socket))
	require.NoError(t, os.WriteFile(configPath, config, 0o600))

	cmd := exec.Command(daemon, "--config-file="+configPath, "--nofork")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return socket
}

// ttsObject is the service side exported on the private bus
type ttsObject struct {
	mu         sync.Mutex
	enabled    bool
	registered string
	nextID     uint32
}

func (o *ttsObject) RegisterWithCallsign(callsign string) *dbus.Error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registered = callsign
	return nil
}

func (o *ttsObject) Unregister(callsign string) *dbus.Error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registered = ""
	return nil
}

func (o *ttsObject) IsEnabled() (bool, *dbus.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled, nil
}

func (o *ttsObject) Speak(callsign, text string) (uint32, uint32, *dbus.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	return o.nextID, 0, nil
}

func (o *ttsObject) Callsign() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.registered
}

func exportService(t *testing.T, socket string) (*dbus.Conn, *ttsObject) {
	t.Helper()
	conn, err := dbus.Connect("unix:path=" + socket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	require.NoError(t, err)
	require.Equal(t, dbus.RequestNameReplyPrimaryOwner, reply)

	obj := &ttsObject{enabled: true}
	require.NoError(t, conn.Export(obj, objectPath, iface))
	return conn, obj
}

func busConfigFor(socket string) types.COMRPCConfig {
	return types.COMRPCConfig{
		CommunicatorPath: socket,
		BusName:          busName,
		ObjectPath:       objectPath,
		Attempts:         1,
		CallTimeout:      1000,
	}
}

func TestBusConnectionOutlivesConnectDeadline(t *testing.T) {
	socket := startBus(t)
	exportService(t, socket)

	svc := comrpc.NewFromConfig(busConfigFor(socket))
	t.Cleanup(svc.Uninitialize)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	require.NoError(t, svc.EnsureConnected(ctx))
	cancel()
	time.Sleep(50 * time.Millisecond)

	enabled, err := svc.IsEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	id, err := svc.Speak(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
}

func TestBusOpenGivesUpWhenContextEnds(t *testing.T) {
	remote := comrpc.NewBusRemote(busConfigFor(filepath.Join(t.TempDir(), "missing")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, remote.Open(ctx))
}

func TestBusSignalsArriveInEmitOrder(t *testing.T) {
	socket := startBus(t)
	service, obj := exportService(t, socket)

	remote := comrpc.NewBusRemote(busConfigFor(socket))
	require.NoError(t, remote.Open(context.Background()))
	t.Cleanup(func() { _ = remote.Close() })

	var (
		mu  sync.Mutex
		got []uint32
	)
	sink := func(ev dispatch.Event) {
		// Slower than the emitter so the signal channel backs up
		time.Sleep(200 * time.Microsecond)
		mu.Lock()
		got = append(got, ev.SpeechID)
		mu.Unlock()
	}
	require.NoError(t, remote.Subscribe(context.Background(), "WebKitBrowser", sink))
	assert.Equal(t, "WebKitBrowser", obj.Callsign())

	const total = 200
	for id := uint32(1); id <= total; id++ {
		require.NoError(t, service.Emit(objectPath, iface+".SpeechStart", id))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == total
	}, 10*time.Second, 10*time.Millisecond)

	mu.Lock()
	received := append([]uint32(nil), got...)
	mu.Unlock()
	for i, id := range received {
		require.Equal(t, uint32(i+1), id, "signal %d out of order", i)
	}

	require.NoError(t, remote.Unsubscribe())
	assert.Empty(t, obj.Callsign())
}
