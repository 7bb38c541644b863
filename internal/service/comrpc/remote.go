package comrpc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/ttsclient/internal/connection"
	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/godbus/dbus/v5"
)

const dbusInterface = "org.rdk.TextToSpeech1"

// Configuration is the service's native configuration record, marshalled as (ssssyy)
type Configuration struct {
	TTSEndPoint        string
	TTSEndPointSecured string
	Language           string
	Voice              string
	Volume             uint8
	Rate               uint8
}

// Remote is the native call surface of the service
type Remote interface {
	connection.Connector

	Enable(ctx context.Context, enable bool) error
	IsEnabled(ctx context.Context) (bool, error)
	ListVoices(ctx context.Context, language string) ([]string, error)
	SetConfiguration(ctx context.Context, cfg Configuration) error
	GetConfiguration(ctx context.Context) (Configuration, error)
	Speak(ctx context.Context, callsign, text string) (uint32, error)
	Pause(ctx context.Context, speechID uint32) error
	Resume(ctx context.Context, speechID uint32) error
	Cancel(ctx context.Context, speechID uint32) error
	GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error)
}

// BusRemote talks to the service over a private D-Bus connection on the communicator socket
type BusRemote struct {
	cfg types.COMRPCConfig

	mu       sync.Mutex
	conn     *dbus.Conn
	callsign string
	signals  chan *dbus.Signal
	stop     chan struct{}
	done     chan struct{}
}

// NewBusRemote creates an unconnected remote
func NewBusRemote(cfg types.COMRPCConfig) *BusRemote {
	return &BusRemote{cfg: cfg}
}

// Open dials unix:path=<communicator path> and authenticates. ctx bounds the
// handshake only; the connection outlives it.
func (r *BusRemote) Open(ctx context.Context) error {
	address := "unix:path=" + r.cfg.CommunicatorPath

	type dialResult struct {
		conn *dbus.Conn
		err  error
	}
	result := make(chan dialResult, 1)
	go func() {
		// Signals are handed over in arrival order however slowly they are consumed
		conn, err := dbus.Connect(address, dbus.WithSignalHandler(dbus.NewSequentialSignalHandler()))
		result <- dialResult{conn, err}
	}()

	var res dialResult
	select {
	case res = <-result:
	case <-ctx.Done():
		go func() {
			if late := <-result; late.conn != nil {
				_ = late.conn.Close()
			}
		}()
		return fmt.Errorf("failed to connect to %s: %w", address, ctx.Err())
	}
	if res.err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, res.err)
	}

	r.mu.Lock()
	r.conn = res.conn
	r.mu.Unlock()

	logger.Debugf("D-Bus: connected to %s", address)
	return nil
}

// Subscribe registers the callsign with the service and starts forwarding its signals
func (r *BusRemote) Subscribe(ctx context.Context, callsign string, sink func(dispatch.Event)) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}

	if err := r.object(conn).CallWithContext(ctx, dbusInterface+".RegisterWithCallsign", 0, callsign).Err; err != nil {
		return fmt.Errorf("failed to register callsign: %w", err)
	}

	if err := conn.AddMatchSignal(r.matchOptions()...); err != nil {
		return fmt.Errorf("failed to add signal match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	stop := make(chan struct{})
	done := make(chan struct{})
	conn.Signal(signals)

	r.mu.Lock()
	r.callsign = callsign
	r.signals, r.stop, r.done = signals, stop, done
	r.mu.Unlock()

	go r.forward(signals, stop, done, sink)
	return nil
}

// Unsubscribe stops signal delivery and unregisters the callsign
func (r *BusRemote) Unsubscribe() error {
	r.mu.Lock()
	conn, signals, stop, done, callsign := r.conn, r.signals, r.stop, r.done, r.callsign
	r.signals, r.stop, r.done = nil, nil, nil
	r.mu.Unlock()

	if conn == nil || signals == nil {
		return nil
	}

	conn.RemoveSignal(signals)
	close(stop)
	<-done

	if err := conn.RemoveMatchSignal(r.matchOptions()...); err != nil {
		logger.Warnf("D-Bus: failed to remove signal match: %v", err)
	}
	return r.object(conn).Call(dbusInterface+".Unregister", 0, callsign).Err
}

// Close releases the bus connection
func (r *BusRemote) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (r *BusRemote) Enable(ctx context.Context, enable bool) error {
	return r.call(ctx, "Enable", nil, enable)
}

func (r *BusRemote) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := r.call(ctx, "IsEnabled", []interface{}{&enabled})
	return enabled, err
}

func (r *BusRemote) ListVoices(ctx context.Context, language string) ([]string, error) {
	var voices []string
	err := r.call(ctx, "ListVoices", []interface{}{&voices}, language)
	return voices, err
}

func (r *BusRemote) SetConfiguration(ctx context.Context, cfg Configuration) error {
	var status uint32
	if err := r.call(ctx, "SetConfiguration", []interface{}{&status}, cfg); err != nil {
		return err
	}
	return checkStatus("SetConfiguration", status)
}

func (r *BusRemote) GetConfiguration(ctx context.Context) (Configuration, error) {
	var cfg Configuration
	err := r.call(ctx, "GetConfiguration", []interface{}{&cfg})
	return cfg, err
}

func (r *BusRemote) Speak(ctx context.Context, callsign, text string) (uint32, error) {
	var speechID, status uint32
	if err := r.call(ctx, "Speak", []interface{}{&speechID, &status}, callsign, text); err != nil {
		return 0, err
	}
	return speechID, checkStatus("Speak", status)
}

func (r *BusRemote) Pause(ctx context.Context, speechID uint32) error {
	var status uint32
	if err := r.call(ctx, "Pause", []interface{}{&status}, speechID); err != nil {
		return err
	}
	return checkStatus("Pause", status)
}

func (r *BusRemote) Resume(ctx context.Context, speechID uint32) error {
	var status uint32
	if err := r.call(ctx, "Resume", []interface{}{&status}, speechID); err != nil {
		return err
	}
	return checkStatus("Resume", status)
}

func (r *BusRemote) Cancel(ctx context.Context, speechID uint32) error {
	return r.call(ctx, "Cancel", nil, speechID)
}

func (r *BusRemote) GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error) {
	var state uint32
	if err := r.call(ctx, "GetSpeechState", []interface{}{&state}, speechID); err != nil {
		return types.SpeechNotFound, err
	}
	return types.SpeechState(state), nil
}

func (r *BusRemote) call(ctx context.Context, method string, out []interface{}, args ...interface{}) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}

	if r.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.CallTimeout)*time.Millisecond)
		defer cancel()
	}

	call := r.object(conn).CallWithContext(ctx, dbusInterface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("%s: %w: %v", method, types.ErrBackend, call.Err)
	}
	if len(out) > 0 {
		if err := call.Store(out...); err != nil {
			return fmt.Errorf("%s: decode reply: %w", method, err)
		}
	}
	return nil
}

func (r *BusRemote) connection() (*dbus.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, types.ErrNotConnected
	}
	return r.conn, nil
}

func (r *BusRemote) object(conn *dbus.Conn) dbus.BusObject {
	return conn.Object(r.cfg.BusName, dbus.ObjectPath(r.cfg.ObjectPath))
}

func (r *BusRemote) matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchObjectPath(dbus.ObjectPath(r.cfg.ObjectPath)),
	}
}

// forward runs on its own goroutine and plays the role of the bus library's notification thread
func (r *BusRemote) forward(signals <-chan *dbus.Signal, stop <-chan struct{}, done chan<- struct{}, sink func(dispatch.Event)) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if ev, ok := decodeSignal(sig); ok {
				sink(ev)
			}
		}
	}
}

var signalKinds = map[string]dispatch.Kind{
	"SpeechStart":       dispatch.SpeechStart,
	"SpeechPause":       dispatch.SpeechPause,
	"SpeechResume":      dispatch.SpeechResume,
	"SpeechCancelled":   dispatch.SpeechCancel,
	"SpeechInterrupted": dispatch.SpeechInterrupt,
	"NetworkError":      dispatch.NetworkError,
	"PlaybackError":     dispatch.PlaybackError,
	"SpeechComplete":    dispatch.SpeechComplete,
}

// decodeSignal converts a service signal into an event. WillSpeak and unknown members are dropped.
func decodeSignal(sig *dbus.Signal) (dispatch.Event, bool) {
	member, ok := strings.CutPrefix(sig.Name, dbusInterface+".")
	if !ok || len(sig.Body) == 0 {
		return dispatch.Event{}, false
	}

	switch member {
	case "Enabled":
		enabled, ok := sig.Body[0].(bool)
		return dispatch.StateChanged(enabled), ok
	case "VoiceChanged":
		voice, ok := sig.Body[0].(string)
		return dispatch.VoiceChanged(voice), ok
	}

	kind, known := signalKinds[member]
	if !known {
		logger.Debugf("D-Bus: ignoring signal %s", sig.Name)
		return dispatch.Event{}, false
	}
	speechID, ok := sig.Body[0].(uint32)
	return dispatch.Speech(kind, speechID), ok
}

func checkStatus(method string, status uint32) error {
	if status != 0 {
		return fmt.Errorf("%s returned status %d: %w", method, status, types.ErrBackend)
	}
	return nil
}
