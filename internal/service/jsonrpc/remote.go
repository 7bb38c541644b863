package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/ttsclient/internal/connection"
	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/gorilla/websocket"
)

// Configuration is the service's native configuration object
type Configuration struct {
	TTSEndPoint        string  `json:"ttsendpoint"`
	TTSEndPointSecured string  `json:"ttsendpointsecured"`
	Language           string  `json:"language"`
	Voice              string  `json:"voice"`
	Volume             float64 `json:"volume"`
	Rate               uint8   `json:"rate"`
}

// Validate rejects values the service does not accept
func (c Configuration) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume %.1f out of range 0..100: %w", c.Volume, types.ErrInvalidConfiguration)
	}
	if c.Rate > 100 {
		return fmt.Errorf("rate %d out of range 0..100: %w", c.Rate, types.ErrInvalidConfiguration)
	}
	return nil
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
	AcquireResource(ctx context.Context, appID uint32) error
	ClaimResource(ctx context.Context, appID uint32) error
	ReleaseResource(ctx context.Context, appID uint32) error
}

// Events lists the notifications registered on subscribe
var Events = []string{
	"onttsstatechanged",
	"onvoicechanged",
	"onspeechstart",
	"onspeechpause",
	"onspeechresume",
	"onspeechinterrupted",
	"onnetworkerror",
	"onplaybackerror",
	"onspeechcomplete",
}

var eventKinds = map[string]dispatch.Kind{
	"onspeechstart":       dispatch.SpeechStart,
	"onspeechpause":       dispatch.SpeechPause,
	"onspeechresume":      dispatch.SpeechResume,
	"onspeechcancelled":   dispatch.SpeechCancel,
	"onspeechinterrupted": dispatch.SpeechInterrupt,
	"onnetworkerror":      dispatch.NetworkError,
	"onplaybackerror":     dispatch.PlaybackError,
	"onspeechcomplete":    dispatch.SpeechComplete,
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// message is any frame read from the socket: a response when ID is set, a notification otherwise
type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// SocketRemote speaks JSON-RPC 2.0 to the service over a WebSocket
type SocketRemote struct {
	cfg types.JSONRPCConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan message
	sink    func(dispatch.Event)
	prefix  string
	done    chan struct{}
	lost    func()

	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
}

// NewSocketRemote creates an unconnected remote
func NewSocketRemote(cfg types.JSONRPCConfig) *SocketRemote {
	return &SocketRemote{
		cfg:     cfg,
		pending: make(map[uint64]chan message),
	}
}

// URL returns the socket endpoint
func (r *SocketRemote) URL() string {
	endpoint := r.cfg.Endpoint
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint
	}
	return "ws://" + endpoint + "/jsonrpc"
}

// Open dials the service and starts the read loop
func (r *SocketRemote) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: time.Duration(r.cfg.ConnectTimeout) * time.Millisecond}

	conn, resp, err := dialer.DialContext(ctx, r.URL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", r.URL(), err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.conn = conn
	r.done = done
	r.mu.Unlock()

	go r.readLoop(conn, done)
	logger.Debugf("JSON-RPC: connected to %s", r.URL())
	return nil
}

// Subscribe registers every event under client.events.<callsign>
func (r *SocketRemote) Subscribe(ctx context.Context, callsign string, sink func(dispatch.Event)) error {
	prefix := "client.events." + callsign

	r.mu.Lock()
	r.sink = sink
	r.prefix = prefix
	r.mu.Unlock()

	for _, event := range Events {
		params := map[string]string{"event": event, "id": prefix}
		if err := r.call(ctx, "register", params, nil); err != nil {
			return fmt.Errorf("failed to register %s: %w", event, err)
		}
	}
	return nil
}

// Unsubscribe unregisters every event
func (r *SocketRemote) Unsubscribe() error {
	r.mu.Lock()
	prefix := r.prefix
	r.sink = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout())
	defer cancel()

	var firstErr error
	for _, event := range Events {
		params := map[string]string{"event": event, "id": prefix}
		if err := r.call(ctx, "unregister", params, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyLost registers fn to run when the service drops the socket
func (r *SocketRemote) NotifyLost(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = fn
}

// Connected reports whether a socket is open
func (r *SocketRemote) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// Close closes the socket and waits for the read loop
func (r *SocketRemote) Close() error {
	r.mu.Lock()
	conn, done := r.conn, r.done
	r.conn = nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}

	r.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.writeMu.Unlock()

	err := conn.Close()
	<-done
	return err
}

func (r *SocketRemote) Enable(ctx context.Context, enable bool) error {
	return r.call(ctx, "enabletts", map[string]bool{"enabletts": enable}, nil)
}

func (r *SocketRemote) IsEnabled(ctx context.Context) (bool, error) {
	var result struct {
		IsEnabled bool `json:"isenabled"`
	}
	err := r.call(ctx, "isttsenabled", nil, &result)
	return result.IsEnabled, err
}

func (r *SocketRemote) ListVoices(ctx context.Context, language string) ([]string, error) {
	var result struct {
		Voices []string `json:"voices"`
	}
	err := r.call(ctx, "listvoices", map[string]string{"language": language}, &result)
	return result.Voices, err
}

func (r *SocketRemote) SetConfiguration(ctx context.Context, cfg Configuration) error {
	return r.call(ctx, "setttsconfiguration", cfg, nil)
}

func (r *SocketRemote) GetConfiguration(ctx context.Context) (Configuration, error) {
	var cfg Configuration
	err := r.call(ctx, "getttsconfiguration", nil, &cfg)
	return cfg, err
}

func (r *SocketRemote) Speak(ctx context.Context, callsign, text string) (uint32, error) {
	var result struct {
		SpeechID uint32 `json:"speechid"`
	}
	err := r.call(ctx, "speak", map[string]string{"text": text, "callsign": callsign}, &result)
	return result.SpeechID, err
}

func (r *SocketRemote) Pause(ctx context.Context, speechID uint32) error {
	return r.call(ctx, "pause", speechParams(speechID), nil)
}

func (r *SocketRemote) Resume(ctx context.Context, speechID uint32) error {
	return r.call(ctx, "resume", speechParams(speechID), nil)
}

func (r *SocketRemote) Cancel(ctx context.Context, speechID uint32) error {
	return r.call(ctx, "cancel", speechParams(speechID), nil)
}

func (r *SocketRemote) GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error) {
	var result struct {
		SpeechState int `json:"speechstate"`
	}
	if err := r.call(ctx, "getspeechstate", speechParams(speechID), &result); err != nil {
		return types.SpeechNotFound, err
	}
	return types.SpeechState(result.SpeechState), nil
}

func (r *SocketRemote) AcquireResource(ctx context.Context, appID uint32) error {
	return r.call(ctx, "acquireresource", map[string]uint32{"appid": appID}, nil)
}

func (r *SocketRemote) ClaimResource(ctx context.Context, appID uint32) error {
	return r.call(ctx, "claimresource", map[string]uint32{"appid": appID}, nil)
}

func (r *SocketRemote) ReleaseResource(ctx context.Context, appID uint32) error {
	return r.call(ctx, "releaseresource", map[string]uint32{"appid": appID}, nil)
}

func speechParams(speechID uint32) map[string]uint32 {
	return map[string]uint32{"speechid": speechID}
}

func (r *SocketRemote) callTimeout() time.Duration {
	if r.cfg.CallTimeout <= 0 {
		return 3 * time.Second
	}
	return time.Duration(r.cfg.CallTimeout) * time.Millisecond
}

// call invokes <callsign>.<method> and decodes the result into out.
// A result carrying "success": false is reported as types.ErrBackend.
func (r *SocketRemote) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	r.mu.Lock()
	conn, done := r.conn, r.done
	if conn == nil {
		r.mu.Unlock()
		return types.ErrNotConnected
	}
	r.nextID++
	id := r.nextID
	reply := make(chan message, 1)
	r.pending[id] = reply
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	req := request{JSONRPC: "2.0", ID: id, Method: r.cfg.Callsign + "." + method, Params: params}
	logger.Debugf("JSON-RPC: -> %s (id=%d)", req.Method, id)

	r.writeMu.Lock()
	err := conn.WriteJSON(req)
	r.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	timer := time.NewTimer(r.callTimeout())
	defer timer.Stop()

	var msg message
	select {
	case msg = <-reply:
	case <-done:
		return fmt.Errorf("%s: %w", method, types.ErrNotConnected)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%s: timed out: %w", method, types.ErrBackend)
	}

	if msg.Error != nil {
		return fmt.Errorf("%s: %w: %v", method, types.ErrBackend, msg.Error)
	}

	var status struct {
		Success *bool `json:"success"`
	}
	if len(msg.Result) > 0 {
		if err := json.Unmarshal(msg.Result, &status); err == nil && status.Success != nil && !*status.Success {
			return fmt.Errorf("%s returned success=false: %w", method, types.ErrBackend)
		}
	}

	if out != nil && len(msg.Result) > 0 {
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// readLoop is the only reader of conn. Notifications are forwarded to the sink
// in arrival order from this goroutine.
func (r *SocketRemote) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Debugf("JSON-RPC: read loop exiting: %v", err)
			}
			r.failPending()
			r.dropped(conn)
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("JSON-RPC: dropping malformed frame: %v", err)
			continue
		}

		if msg.ID != nil {
			r.mu.Lock()
			reply, ok := r.pending[*msg.ID]
			r.mu.Unlock()
			if ok {
				reply <- msg
			}
			continue
		}

		r.notify(msg)
	}
}

func (r *SocketRemote) notify(msg message) {
	r.mu.Lock()
	sink, prefix := r.sink, r.prefix
	r.mu.Unlock()

	if sink == nil {
		return
	}
	event, ok := strings.CutPrefix(msg.Method, prefix+".")
	if !ok {
		logger.Debugf("JSON-RPC: ignoring notification %s", msg.Method)
		return
	}
	if ev, ok := decodeEvent(event, msg.Params); ok {
		sink(ev)
	}
}

// dropped forgets conn unless Close already did, and reports the loss
func (r *SocketRemote) dropped(conn *websocket.Conn) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	lost := r.lost
	r.mu.Unlock()

	_ = conn.Close()
	logger.Warnf("JSON-RPC: connection to %s closed by peer", r.URL())
	if lost != nil {
		go lost()
	}
}

func (r *SocketRemote) failPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, reply := range r.pending {
		select {
		case reply <- message{ID: &id, Error: &rpcError{Code: -1, Message: "connection closed"}}:
		default:
		}
	}
}

func decodeEvent(event string, params json.RawMessage) (dispatch.Event, bool) {
	var payload struct {
		State    bool   `json:"state"`
		Voice    string `json:"voice"`
		SpeechID uint32 `json:"speechid"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &payload); err != nil {
			logger.Warnf("JSON-RPC: malformed %s payload: %v", event, err)
			return dispatch.Event{}, false
		}
	}

	switch event {
	case "onttsstatechanged":
		return dispatch.StateChanged(payload.State), true
	case "onvoicechanged":
		return dispatch.VoiceChanged(payload.Voice), true
	}

	kind, ok := eventKinds[event]
	if !ok {
		return dispatch.Event{}, false
	}
	return dispatch.Speech(kind, payload.SpeechID), true
}
