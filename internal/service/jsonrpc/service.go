// Package jsonrpc is the client side of the JSON-RPC text to speech service.
package jsonrpc

import (
	"context"
	"time"

	"github.com/dooshek/ttsclient/internal/connection"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/metrics"
	"github.com/dooshek/ttsclient/internal/types"
)

// Name identifies the backend in logs and metrics
const Name = string(types.BackendJSONRPC)

// Service is the process-wide connection to the JSON-RPC service
type Service struct {
	*connection.Manager
	remote Remote
}

// New wraps remote with a connection manager
func New(remote Remote, policy connection.Policy) *Service {
	return &Service{
		Manager: connection.NewManager(Name, remote, policy),
		remote:  remote,
	}
}

// NewFromConfig creates a service that dials the configured endpoint.
// The connect attempt is bounded by the connect timeout rather than a retry count.
func NewFromConfig(cfg types.JSONRPCConfig) *Service {
	return New(NewSocketRemote(cfg), connection.Policy{
		Attempts: cfg.Attempts,
		Timeout:  time.Duration(cfg.ConnectTimeout) * time.Millisecond,
	})
}

func (s *Service) Enable(ctx context.Context, enable bool) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("enable", s.remote.Enable(ctx, enable))
}

func (s *Service) IsEnabled(ctx context.Context) (bool, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return false, err
	}
	enabled, err := s.remote.IsEnabled(ctx)
	return enabled, s.check("is_enabled", err)
}

func (s *Service) ListVoices(ctx context.Context, language string) ([]string, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	voices, err := s.remote.ListVoices(ctx, language)
	return voices, s.check("list_voices", err)
}

// SetConfiguration validates cfg before sending it
func (s *Service) SetConfiguration(ctx context.Context, cfg Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("set_configuration", s.remote.SetConfiguration(ctx, cfg))
}

func (s *Service) GetConfiguration(ctx context.Context) (Configuration, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return Configuration{}, err
	}
	cfg, err := s.remote.GetConfiguration(ctx)
	return cfg, s.check("get_configuration", err)
}

func (s *Service) Speak(ctx context.Context, text string) (uint32, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return 0, err
	}
	s.Subscribe(ctx)

	speechID, err := s.remote.Speak(ctx, s.Callsign(), text)
	if err := s.check("speak", err); err != nil {
		return 0, err
	}
	logger.Debugf("%s: speak accepted with servicespeechid=%d", Name, speechID)
	return speechID, nil
}

func (s *Service) Pause(ctx context.Context, speechID uint32) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("pause", s.remote.Pause(ctx, speechID))
}

func (s *Service) Resume(ctx context.Context, speechID uint32) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("resume", s.remote.Resume(ctx, speechID))
}

func (s *Service) Cancel(ctx context.Context, speechID uint32) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("cancel", s.remote.Cancel(ctx, speechID))
}

func (s *Service) GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error) {
	if err := s.EnsureConnected(ctx); err != nil {
		return types.SpeechNotFound, err
	}
	state, err := s.remote.GetSpeechState(ctx, speechID)
	return state, s.check("get_speech_state", err)
}

func (s *Service) IsSpeaking(ctx context.Context, speechID uint32) (bool, error) {
	state, err := s.GetSpeechState(ctx, speechID)
	if err != nil {
		return false, err
	}
	return state == types.SpeechInProgress, nil
}

func (s *Service) AcquireResource(ctx context.Context, appID uint32) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("acquire_resource", s.remote.AcquireResource(ctx, appID))
}

func (s *Service) ClaimResource(ctx context.Context, appID uint32) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("claim_resource", s.remote.ClaimResource(ctx, appID))
}

func (s *Service) ReleaseResource(ctx context.Context, appID uint32) error {
	if err := s.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.check("release_resource", s.remote.ReleaseResource(ctx, appID))
}

func (s *Service) check(operation string, err error) error {
	if err == nil {
		return nil
	}
	metrics.BackendError(Name, operation)
	logger.Errorf("%s: %s failed", err, Name, operation)
	return err
}
