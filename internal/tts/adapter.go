package tts

import (
	"context"

	"github.com/dooshek/ttsclient/internal/types"
)

// Adapter is the operation set every backend implements. The Client forwards
// each call to exactly one Adapter chosen at construction.
type Adapter interface {
	EnableTTS(ctx context.Context, enable bool) error
	ListVoices(ctx context.Context, language string) ([]string, error)
	SetTTSConfiguration(ctx context.Context, config types.Configuration) error
	GetTTSConfiguration(ctx context.Context) (types.Configuration, error)
	IsTTSEnabled(ctx context.Context, force bool) bool
	IsSessionActiveForApp(appID uint32) bool

	// Resource management, a no-op on backends without exclusive ownership
	AcquireResource(ctx context.Context, appID uint32) error
	ClaimResource(ctx context.Context, appID uint32) error
	ReleaseResource(ctx context.Context, appID uint32) error

	CreateSession(ctx context.Context, appID uint32, appName string, callback types.SessionCallback) (uint32, error)
	DestroySession(sessionID uint32) error
	IsActiveSession(sessionID uint32, force bool) bool
	SetPreemptiveSpeak(sessionID uint32, preemptive bool) error
	RequestExtendedEvents(sessionID uint32, events uint32) error

	Speak(ctx context.Context, sessionID uint32, data types.SpeechData) error
	Pause(ctx context.Context, sessionID, speechID uint32) error
	Resume(ctx context.Context, sessionID, speechID uint32) error
	Abort(ctx context.Context, sessionID uint32, clearPending bool) error
	IsSpeaking(ctx context.Context, sessionID uint32) bool
	GetSpeechState(ctx context.Context, sessionID, speechID uint32) (types.SpeechState, error)

	// Close unregisters from the connection and releases the session
	Close()
}
