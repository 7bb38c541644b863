package firebolt

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
	"github.com/nats-io/nats.go"
)

// SubjectPrefix prefixes every request and event subject
const SubjectPrefix = "texttospeech."

// Configuration is the SDK's native configuration object
type Configuration struct {
	TTSEndPoint        string `json:"ttsendpoint"`
	TTSEndPointSecured string `json:"ttsendpointsecured"`
	Language           string `json:"language"`
	Voice              string `json:"voice"`
	Volume             int32  `json:"volume"`
	Rate               int32  `json:"rate"`
}

// Remote is the native call surface of the SDK. It has no enable/disable call.
type Remote interface {
	connection.Connector

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

// Events lists the nine notifications subscribed on connect
var Events = []string{
	"onnetworkerror",
	"onplaybackerror",
	"onspeechstart",
	"onspeechcomplete",
	"onspeechinterrupted",
	"onspeechpause",
	"onspeechresume",
	"onttsstatechanged",
	"onvoicechanged",
}

var eventKinds = map[string]dispatch.Kind{
	"onnetworkerror":      dispatch.NetworkError,
	"onplaybackerror":     dispatch.PlaybackError,
	"onspeechstart":       dispatch.SpeechStart,
	"onspeechcomplete":    dispatch.SpeechComplete,
	"onspeechinterrupted": dispatch.SpeechInterrupt,
	"onspeechpause":       dispatch.SpeechPause,
	"onspeechresume":      dispatch.SpeechResume,
}

// ParseSpeechState maps the SDK's string states onto SpeechState
func ParseSpeechState(state string) types.SpeechState {
	switch state {
	case "pending":
		return types.SpeechPending
	case "in_progress":
		return types.SpeechInProgress
	case "paused":
		return types.SpeechPaused
	default:
		return types.SpeechNotFound
	}
}

// NatsRemote reaches the SDK over a NATS connection using request/reply
type NatsRemote struct {
	cfg types.FireboltConfig

	mu   sync.Mutex
	conn *nats.Conn
	subs []*nats.Subscription
	msgs chan *nats.Msg
	stop chan struct{}
	done chan struct{}
}

// NewNatsRemote creates an unconnected remote
func NewNatsRemote(cfg types.FireboltConfig) *NatsRemote {
	return &NatsRemote{cfg: cfg}
}

// Open connects to the endpoint. The handshake is bounded by the connect timeout
// or by ctx, whichever is shorter.
func (r *NatsRemote) Open(ctx context.Context) error {
	url := r.cfg.Endpoint
	if url == "" {
		url = nats.DefaultURL
	}

	timeout := time.Duration(r.cfg.ConnectTimeout) * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("connect to %s: %w", url, context.DeadlineExceeded)
	}

	conn, err := nats.Connect(url,
		nats.Name("ttsclient"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("Firebolt: connection lost: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("Firebolt: reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	logger.Debugf("Firebolt: connected to %s", url)
	return nil
}

// Subscribe listens on the nine event subjects. All subscriptions feed one
// channel so events keep the order the connection received them in.
func (r *NatsRemote) Subscribe(ctx context.Context, callsign string, sink func(dispatch.Event)) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}

	msgs := make(chan *nats.Msg, 64)
	subs := make([]*nats.Subscription, 0, len(Events))
	for _, event := range Events {
		sub, err := conn.ChanSubscribe(SubjectPrefix+event, msgs)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return fmt.Errorf("subscribe %s: %w", event, err)
		}
		subs = append(subs, sub)
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	r.mu.Lock()
	r.subs, r.msgs, r.stop, r.done = subs, msgs, stop, done
	r.mu.Unlock()

	go r.forward(msgs, stop, done, sink)
	return nil
}

// Unsubscribe drops the event subscriptions and stops forwarding
func (r *NatsRemote) Unsubscribe() error {
	r.mu.Lock()
	subs, stop, done := r.subs, r.stop, r.done
	r.subs, r.msgs, r.stop, r.done = nil, nil, nil, nil
	r.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if stop != nil {
		close(stop)
		<-done
	}
	return firstErr
}

// Close releases the connection
func (r *NatsRemote) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}

func (r *NatsRemote) IsEnabled(ctx context.Context) (bool, error) {
	var result struct {
		IsEnabled bool `json:"isenabled"`
	}
	err := r.request(ctx, "isttsenabled", nil, &result)
	return result.IsEnabled, err
}

func (r *NatsRemote) ListVoices(ctx context.Context, language string) ([]string, error) {
	var result struct {
		Voices []string `json:"voices"`
	}
	err := r.request(ctx, "listvoices", map[string]string{"language": language}, &result)
	return result.Voices, err
}

func (r *NatsRemote) SetConfiguration(ctx context.Context, cfg Configuration) error {
	return r.request(ctx, "setttsconfiguration", cfg, nil)
}

func (r *NatsRemote) GetConfiguration(ctx context.Context) (Configuration, error) {
	var cfg Configuration
	err := r.request(ctx, "getttsconfiguration", nil, &cfg)
	return cfg, err
}

func (r *NatsRemote) Speak(ctx context.Context, callsign, text string) (uint32, error) {
	var result struct {
		SpeechID uint32 `json:"speechid"`
	}
	err := r.request(ctx, "speak", map[string]string{"text": text, "callsign": callsign}, &result)
	return result.SpeechID, err
}

func (r *NatsRemote) Pause(ctx context.Context, speechID uint32) error {
	return r.request(ctx, "pause", speechParams(speechID), nil)
}

func (r *NatsRemote) Resume(ctx context.Context, speechID uint32) error {
	return r.request(ctx, "resume", speechParams(speechID), nil)
}

func (r *NatsRemote) Cancel(ctx context.Context, speechID uint32) error {
	return r.request(ctx, "cancel", speechParams(speechID), nil)
}

func (r *NatsRemote) GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error) {
	var result struct {
		SpeechState string `json:"speechstate"`
	}
	if err := r.request(ctx, "getspeechstate", speechParams(speechID), &result); err != nil {
		return types.SpeechNotFound, err
	}
	return ParseSpeechState(result.SpeechState), nil
}

func speechParams(speechID uint32) map[string]uint32 {
	return map[string]uint32{"speechid": speechID}
}

func (r *NatsRemote) connection() (*nats.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, types.ErrNotConnected
	}
	return r.conn, nil
}

// request sends params to texttospeech.<method> and decodes the reply into out.
// A non-zero ttsstatus in the reply is reported as types.ErrBackend.
func (r *NatsRemote) request(ctx context.Context, method string, params interface{}, out interface{}) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}

	var data []byte
	if params != nil {
		if data, err = json.Marshal(params); err != nil {
			return fmt.Errorf("%s: encode params: %w", method, err)
		}
	}

	if r.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.RequestTimeout)*time.Millisecond)
		defer cancel()
	}

	msg, err := conn.RequestWithContext(ctx, SubjectPrefix+method, data)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", method, types.ErrBackend, err)
	}

	var status struct {
		TTSStatus int `json:"ttsstatus"`
	}
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		return fmt.Errorf("%s: decode reply: %w", method, err)
	}
	if status.TTSStatus != 0 {
		return fmt.Errorf("%s returned ttsstatus %d: %w", method, status.TTSStatus, types.ErrBackend)
	}

	if out != nil {
		if err := json.Unmarshal(msg.Data, out); err != nil {
			return fmt.Errorf("%s: decode reply: %w", method, err)
		}
	}
	return nil
}

func (r *NatsRemote) forward(msgs <-chan *nats.Msg, stop <-chan struct{}, done chan<- struct{}, sink func(dispatch.Event)) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case msg := <-msgs:
			if ev, ok := decodeEvent(msg.Subject, msg.Data); ok {
				sink(ev)
			}
		}
	}
}

func decodeEvent(subject string, data []byte) (dispatch.Event, bool) {
	event, ok := strings.CutPrefix(subject, SubjectPrefix)
	if !ok {
		return dispatch.Event{}, false
	}

	var payload struct {
		State    bool   `json:"state"`
		Voice    string `json:"voice"`
		SpeechID uint32 `json:"speechid"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			logger.Warnf("Firebolt: malformed %s payload: %v", event, err)
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
