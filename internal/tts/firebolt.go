package tts

import (
	"context"

	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/service/firebolt"
	"github.com/dooshek/ttsclient/internal/types"
)

// fireboltAdapter drives the vendor SDK
type fireboltAdapter struct {
	*session
	svc *firebolt.Service
}

func newFireboltAdapter(svc *firebolt.Service, callback types.ConnectionCallback, ownsService bool) *fireboltAdapter {
	return &fireboltAdapter{
		session: newSession(svc, callback, ownsService),
		svc:     svc,
	}
}

// EnableTTS is not supported by the SDK and succeeds without effect
func (a *fireboltAdapter) EnableTTS(ctx context.Context, enable bool) error {
	logger.Warnf("%s TTS is not supported by the firebolt backend", enableVerb(enable))
	return nil
}

func (a *fireboltAdapter) SetTTSConfiguration(ctx context.Context, config types.Configuration) error {
	native := firebolt.Configuration{
		TTSEndPoint:        config.EndPoint,
		TTSEndPointSecured: config.EndPointSecured,
		Language:           config.Language,
		Voice:              config.Voice,
		Volume:             int32(clamp(config.Volume, 0, 100)),
		Rate:               int32(config.Rate),
	}
	if err := a.svc.SetConfiguration(ctx, native); err != nil {
		logger.Error("Couldn't set default configuration", err)
		return err
	}
	return nil
}

func (a *fireboltAdapter) GetTTSConfiguration(ctx context.Context) (types.Configuration, error) {
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
		Rate:            uint8(clamp(float64(native.Rate), 0, 255)),
	}, nil
}
