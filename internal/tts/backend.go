package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/service/comrpc"
	"github.com/dooshek/ttsclient/internal/service/firebolt"
	"github.com/dooshek/ttsclient/internal/service/jsonrpc"
	"github.com/dooshek/ttsclient/internal/types"
)

// DefaultBackend is the build default, e.g.
// -ldflags "-X github.com/dooshek/ttsclient/internal/tts.DefaultBackend=comrpc"
var DefaultBackend = string(types.BackendJSONRPC)

// SelectBackend picks the backend for cfg. An explicit override wins over
// DefaultBackend when it names a known backend, and ForceJSONRPC wins over both.
func SelectBackend(cfg *types.Config) types.Backend {
	logger.Infof("TTSClient Backend: default=%q, override=%q, force_jsonrpc=%t",
		DefaultBackend, cfg.Backend, cfg.ForceJSONRPC)

	if cfg.ForceJSONRPC {
		return types.BackendJSONRPC
	}
	if backend, ok := matchBackend(cfg.Backend); ok {
		return backend
	}
	if backend, ok := matchBackend(DefaultBackend); ok {
		return backend
	}
	return types.BackendJSONRPC
}

// matchBackend reports the known backend value starts with, ignoring case
func matchBackend(value string) (types.Backend, bool) {
	value = strings.ToLower(value)
	if value == "" {
		return "", false
	}
	for _, backend := range types.KnownBackends {
		if strings.HasPrefix(value, string(backend)) {
			return backend, true
		}
	}
	return "", false
}

// createAdapter builds the adapter for backend. A shared service passed in
// options is reused and left running on Close; otherwise the adapter owns a new one.
func createAdapter(ctx context.Context, backend types.Backend, cfg *types.Config, callback types.ConnectionCallback, opts *options) (Adapter, error) {
	callsign := cfg.Callsign()

	switch backend {
	case types.BackendCOMRPC:
		svc, owned := opts.comrpc, false
		if svc == nil {
			svc, owned = comrpc.NewFromConfig(cfg.GetCOMRPCConfig()), true
		}
		logger.Info("TTSClient is using COMRPC")
		adapter := newCOMRPCAdapter(svc, callback, owned)
		adapter.start(ctx, callsign)
		return adapter, nil

	case types.BackendJSONRPC:
		svc, owned := opts.jsonrpc, false
		if svc == nil {
			svc, owned = jsonrpc.NewFromConfig(cfg.GetJSONRPCConfig()), true
		}
		logger.Info("TTSClient is using JSONRPC")
		adapter := newJSONRPCAdapter(svc, callback, owned)
		adapter.start(ctx, callsign)
		return adapter, nil

	case types.BackendFirebolt:
		svc, owned := opts.firebolt, false
		if svc == nil {
			svc, owned = firebolt.NewFromConfig(cfg.GetFireboltConfig()), true
		}
		logger.Info("TTSClient is using FIREBOLT")
		adapter := newFireboltAdapter(svc, callback, owned)
		adapter.start(ctx, callsign)
		return adapter, nil

	default:
		return nil, fmt.Errorf("unsupported TTS backend: %s (supported: comrpc, jsonrpc, firebolt)", backend)
	}
}
