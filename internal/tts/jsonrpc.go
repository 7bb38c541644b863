package tts

import (
	"context"

	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/service/jsonrpc"
	"github.com/dooshek/ttsclient/internal/types"
)

// jsonrpcAdapter drives the JSON-RPC service, the only backend with resource ownership
type jsonrpcAdapter struct {
	*session
	svc *jsonrpc.Service
}

func newJSONRPCAdapter(svc *jsonrpc.Service, callback types.ConnectionCallback, ownsService bool) *jsonrpcAdapter {
	return &jsonrpcAdapter{
		session: newSession(svc, callback, ownsService),
		svc:     svc,
	}
}

func (a *jsonrpcAdapter) EnableTTS(ctx context.Context, enable bool) error {
	if err := a.svc.Enable(ctx, enable); err != nil {
		logger.Errorf("Couldn't %s TTS", err, enableVerb(enable))
		return err
	}
	return nil
}

// SetTTSConfiguration rejects out of range values with types.ErrInvalidConfiguration
func (a *jsonrpcAdapter) SetTTSConfiguration(ctx context.Context, config types.Configuration) error {
	native := jsonrpc.Configuration{
		TTSEndPoint:        config.EndPoint,
		TTSEndPointSecured: config.EndPointSecured,
		Language:           config.Language,
		Voice:              config.Voice,
		Volume:             config.Volume,
		Rate:               config.Rate,
	}
	if err := a.svc.SetConfiguration(ctx, native); err != nil {
		logger.Error("Couldn't set default configuration", err)
		return err
	}
	return nil
}

func (a *jsonrpcAdapter) GetTTSConfiguration(ctx context.Context) (types.Configuration, error) {
	native, err := a.svc.GetConfiguration(ctx)
	if err != nil {
		logger.Error("Couldn't get default configuration", err)
		return types.Configuration{}, err
	}
	return types.Configuration{
		EndPoint:        native.TTSEndPoint,
		EndPointSecured: native.TTSEndPointSecured,
		Language:        native.Language,
		Voice:           native.Voice,
		Volume:          native.Volume,
		Rate:            native.Rate,
	}, nil
}

func (a *jsonrpcAdapter) AcquireResource(ctx context.Context, appID uint32) error {
	return a.svc.AcquireResource(ctx, appID)
}

func (a *jsonrpcAdapter) ClaimResource(ctx context.Context, appID uint32) error {
	return a.svc.ClaimResource(ctx, appID)
}

func (a *jsonrpcAdapter) ReleaseResource(ctx context.Context, appID uint32) error {
	return a.svc.ReleaseResource(ctx, appID)
}
