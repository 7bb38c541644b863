package tts

import (
	"context"

	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/service/comrpc"
	"github.com/dooshek/ttsclient/internal/types"
)

// comrpcAdapter drives the binary RPC service
type comrpcAdapter struct {
	*session
	svc *comrpc.Service
}

func newCOMRPCAdapter(svc *comrpc.Service, callback types.ConnectionCallback, ownsService bool) *comrpcAdapter {
	return &comrpcAdapter{
		session: newSession(svc, callback, ownsService),
		svc:     svc,
	}
}

func (a *comrpcAdapter) EnableTTS(ctx context.Context, enable bool) error {
	if err := a.svc.Enable(ctx, enable); err != nil {
		logger.Errorf("Couldn't %s TTS", err, enableVerb(enable))
		return err
	}
	return nil
}

func (a *comrpcAdapter) SetTTSConfiguration(ctx context.Context, config types.Configuration) error {
	if err := a.svc.SetConfiguration(ctx, toCOMRPCConfiguration(config)); err != nil {
		logger.Error("Couldn't set default configuration", err)
		return err
	}
	return nil
}

func (a *comrpcAdapter) GetTTSConfiguration(ctx context.Context) (types.Configuration, error) {
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
		Volume:          float64(native.Volume),
		Rate:            native.Rate,
	}, nil
}

// toCOMRPCConfiguration narrows volume to 0..100 and rate to 1..100
func toCOMRPCConfiguration(config types.Configuration) comrpc.Configuration {
	return comrpc.Configuration{
		TTSEndPoint:        config.EndPoint,
		TTSEndPointSecured: config.EndPointSecured,
		Language:           config.Language,
		Voice:              config.Voice,
		Volume:             uint8(clamp(config.Volume, 0, 100)),
		Rate:               uint8(clamp(float64(config.Rate), 1, 100)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func enableVerb(enable bool) string {
	if enable {
		return "enable"
	}
	return "disable"
}
