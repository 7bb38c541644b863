// Package comrpctest provides an in-memory binary RPC service for tests.
package comrpctest

import (
	"context"
	"sync"

	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/service/comrpc"
	"github.com/dooshek/ttsclient/internal/types"
)

// Remote implements comrpc.Remote in memory. Speech ids are handed out
// sequentially from NextSpeechID and start in the in-progress state.
type Remote struct {
	mu sync.Mutex

	OpenErr      error
	SpeakErr     error
	Enabled      bool
	Voices       []string
	Config       comrpc.Configuration
	NextSpeechID uint32
	States       map[uint32]types.SpeechState

	callsign string
	sink     func(dispatch.Event)
	calls    map[string]int
}

// NewRemote returns an enabled service that issues speech ids from 1
func NewRemote() *Remote {
	return &Remote{
		Enabled:      true,
		Voices:       []string{"Amber", "Angelica"},
		NextSpeechID: 1,
		States:       make(map[uint32]types.SpeechState),
		calls:        make(map[string]int),
	}
}

// Calls returns how many times method was invoked
func (r *Remote) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Callsign returns the identity the client subscribed with
func (r *Remote) Callsign() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callsign
}

// SetOpenErr changes the result of subsequent Open calls
func (r *Remote) SetOpenErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OpenErr = err
}

// Emit delivers ev on the calling goroutine, like the bus library does
func (r *Remote) Emit(ev dispatch.Event) {
	r.mu.Lock()
	sink := r.sink
	if ev.Kind.Terminal() {
		delete(r.States, ev.SpeechID)
	}
	r.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

func (r *Remote) record(method string) {
	r.mu.Lock()
	r.calls[method]++
	r.mu.Unlock()
}

func (r *Remote) Open(ctx context.Context) error {
	r.record("Open")
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.OpenErr
}

func (r *Remote) Subscribe(ctx context.Context, callsign string, sink func(dispatch.Event)) error {
	r.record("Subscribe")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callsign = callsign
	r.sink = sink
	return nil
}

func (r *Remote) Unsubscribe() error {
	r.record("Unsubscribe")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = nil
	return nil
}

func (r *Remote) Close() error {
	r.record("Close")
	return nil
}

func (r *Remote) Enable(ctx context.Context, enable bool) error {
	r.record("Enable")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Enabled = enable
	return nil
}

func (r *Remote) IsEnabled(ctx context.Context) (bool, error) {
	r.record("IsEnabled")
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Enabled, nil
}

func (r *Remote) ListVoices(ctx context.Context, language string) ([]string, error) {
	r.record("ListVoices")
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Voices...), nil
}

func (r *Remote) SetConfiguration(ctx context.Context, cfg comrpc.Configuration) error {
	r.record("SetConfiguration")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Config = cfg
	return nil
}

func (r *Remote) GetConfiguration(ctx context.Context) (comrpc.Configuration, error) {
	r.record("GetConfiguration")
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Config, nil
}

func (r *Remote) Speak(ctx context.Context, callsign, text string) (uint32, error) {
	r.record("Speak")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SpeakErr != nil {
		return 0, r.SpeakErr
	}
	id := r.NextSpeechID
	r.NextSpeechID++
	r.States[id] = types.SpeechInProgress
	return id, nil
}

func (r *Remote) Pause(ctx context.Context, speechID uint32) error {
	r.record("Pause")
	r.setState(speechID, types.SpeechPaused)
	return nil
}

func (r *Remote) Resume(ctx context.Context, speechID uint32) error {
	r.record("Resume")
	r.setState(speechID, types.SpeechInProgress)
	return nil
}

func (r *Remote) Cancel(ctx context.Context, speechID uint32) error {
	r.record("Cancel")
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.States, speechID)
	return nil
}

func (r *Remote) GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error) {
	r.record("GetSpeechState")
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.States[speechID]
	if !ok {
		return types.SpeechNotFound, nil
	}
	return state, nil
}

func (r *Remote) setState(speechID uint32, state types.SpeechState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.States[speechID]; ok {
		r.States[speechID] = state
	}
}
