// Package tts is the application facing text to speech client.
//
// A Client selects one backend at construction and forwards every call to its
// adapter. Speech notifications reach the application through the callbacks it
// registers, on a dispatch goroutine owned by the backend connection.
package tts

import (
	"context"

	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/service/comrpc"
	"github.com/dooshek/ttsclient/internal/service/firebolt"
	"github.com/dooshek/ttsclient/internal/service/jsonrpc"
	"github.com/dooshek/ttsclient/internal/types"
)

type options struct {
	backend  types.Backend
	comrpc   *comrpc.Service
	jsonrpc  *jsonrpc.Service
	firebolt *firebolt.Service
}

// Option customizes NewClient
type Option func(*options)

// WithBackend bypasses backend selection
func WithBackend(backend types.Backend) Option {
	return func(o *options) { o.backend = backend }
}

// WithCOMRPCService shares an existing binary RPC connection
func WithCOMRPCService(svc *comrpc.Service) Option {
	return func(o *options) { o.comrpc = svc }
}

// WithJSONRPCService shares an existing JSON-RPC connection
func WithJSONRPCService(svc *jsonrpc.Service) Option {
	return func(o *options) { o.jsonrpc = svc }
}

// WithFireboltService shares an existing SDK connection
func WithFireboltService(svc *firebolt.Service) Option {
	return func(o *options) { o.firebolt = svc }
}

// Client is the session facade. It carries no state besides its adapter;
// when no adapter could be built every call fails with types.ErrNotInitialized.
type Client struct {
	adapter Adapter
	backend types.Backend
}

// NewClient selects a backend for cfg and makes the first connect attempt.
// callback may be nil.
func NewClient(ctx context.Context, cfg *types.Config, callback types.ConnectionCallback, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	backend := o.backend
	if backend == "" {
		backend = SelectBackend(cfg)
	}

	adapter, err := createAdapter(ctx, backend, cfg, callback, o)
	if err != nil {
		logger.Error("TTSClient is not initialized", err)
		return &Client{backend: backend}
	}
	return &Client{adapter: adapter, backend: backend}
}

// Backend returns the selected backend
func (c *Client) Backend() types.Backend {
	return c.backend
}

func (c *Client) ready() error {
	if c.adapter == nil {
		logger.Error("TTSClient is not initialized", types.ErrNotInitialized)
		return types.ErrNotInitialized
	}
	return nil
}

func (c *Client) EnableTTS(ctx context.Context, enable bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.EnableTTS(ctx, enable)
}

func (c *Client) ListVoices(ctx context.Context, language string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.adapter.ListVoices(ctx, language)
}

func (c *Client) SetTTSConfiguration(ctx context.Context, config types.Configuration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.SetTTSConfiguration(ctx, config)
}

func (c *Client) GetTTSConfiguration(ctx context.Context) (types.Configuration, error) {
	if err := c.ready(); err != nil {
		return types.Configuration{}, err
	}
	return c.adapter.GetTTSConfiguration(ctx)
}

// IsTTSEnabled returns the cached state unless force is set or this is the first query
func (c *Client) IsTTSEnabled(ctx context.Context, force bool) bool {
	if c.ready() != nil {
		return false
	}
	return c.adapter.IsTTSEnabled(ctx, force)
}

func (c *Client) IsSessionActiveForApp(appID uint32) bool {
	if c.ready() != nil {
		return false
	}
	return c.adapter.IsSessionActiveForApp(appID)
}

func (c *Client) AcquireResource(ctx context.Context, appID uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.AcquireResource(ctx, appID)
}

func (c *Client) ClaimResource(ctx context.Context, appID uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.ClaimResource(ctx, appID)
}

func (c *Client) ReleaseResource(ctx context.Context, appID uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.ReleaseResource(ctx, appID)
}

// CreateSession registers callback for speech events and returns the session id
func (c *Client) CreateSession(ctx context.Context, appID uint32, appName string, callback types.SessionCallback) (uint32, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.adapter.CreateSession(ctx, appID, appName, callback)
}

func (c *Client) DestroySession(sessionID uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.DestroySession(sessionID)
}

func (c *Client) IsActiveSession(sessionID uint32, force bool) bool {
	if c.ready() != nil {
		return false
	}
	return c.adapter.IsActiveSession(sessionID, force)
}

func (c *Client) SetPreemptiveSpeak(sessionID uint32, preemptive bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.SetPreemptiveSpeak(sessionID, preemptive)
}

func (c *Client) RequestExtendedEvents(sessionID uint32, events uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.RequestExtendedEvents(sessionID, events)
}

// Speak queues data.Text; data.ID identifies the request in later callbacks
func (c *Client) Speak(ctx context.Context, sessionID uint32, data types.SpeechData) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.Speak(ctx, sessionID, data)
}

func (c *Client) Pause(ctx context.Context, sessionID, speechID uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.Pause(ctx, sessionID, speechID)
}

func (c *Client) Resume(ctx context.Context, sessionID, speechID uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.Resume(ctx, sessionID, speechID)
}

func (c *Client) Abort(ctx context.Context, sessionID uint32, clearPending bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.adapter.Abort(ctx, sessionID, clearPending)
}

func (c *Client) IsSpeaking(ctx context.Context, sessionID uint32) bool {
	if c.ready() != nil {
		return false
	}
	return c.adapter.IsSpeaking(ctx, sessionID)
}

func (c *Client) GetSpeechState(ctx context.Context, sessionID, speechID uint32) (types.SpeechState, error) {
	if err := c.ready(); err != nil {
		return types.SpeechNotFound, err
	}
	return c.adapter.GetSpeechState(ctx, sessionID, speechID)
}

// Close releases the session and, unless the connection was shared through
// an Option, the backend connection.
func (c *Client) Close() {
	if c.adapter == nil {
		return
	}
	c.adapter.Close()
	c.adapter = nil
}
