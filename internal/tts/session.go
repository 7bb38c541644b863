package tts

import (
	"context"
	"sync"

	"github.com/dooshek/ttsclient/internal/connection"
	"github.com/dooshek/ttsclient/internal/correlation"
	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/metrics"
	"github.com/dooshek/ttsclient/internal/types"
)

// speechService is what the three backend services have in common
type speechService interface {
	Name() string
	IsActive() bool
	Initialize(ctx context.Context, callsign string) error
	EnsureConnected(ctx context.Context) error
	Uninitialize()
	RegisterListener(l connection.Listener)
	UnregisterListener(l connection.Listener)

	IsEnabled(ctx context.Context) (bool, error)
	ListVoices(ctx context.Context, language string) ([]string, error)
	Speak(ctx context.Context, text string) (uint32, error)
	Pause(ctx context.Context, speechID uint32) error
	Resume(ctx context.Context, speechID uint32) error
	Cancel(ctx context.Context, speechID uint32) error
	GetSpeechState(ctx context.Context, speechID uint32) (types.SpeechState, error)
	IsSpeaking(ctx context.Context, speechID uint32) (bool, error)
}

// session holds the per-client state shared by all adapters: the single
// application session, the cached enabled flag and the correlation table.
// It receives backend events on the dispatch worker through OnEvent.
type session struct {
	svc          speechService
	connCallback types.ConnectionCallback
	speeches     *correlation.Table
	ownsService  bool

	mu           sync.Mutex
	enabled      bool
	firstQuery   bool
	lastSpeechID uint32
	appID        uint32
	created      bool
	callback     types.SessionCallback
}

func newSession(svc speechService, callback types.ConnectionCallback, ownsService bool) *session {
	return &session{
		svc:          svc,
		connCallback: callback,
		speeches:     correlation.NewTable(),
		ownsService:  ownsService,
		firstQuery:   true,
	}
}

// start registers with the connection and makes the first bounded connect attempt
func (s *session) start(ctx context.Context, callsign string) {
	s.svc.RegisterListener(s)
	if err := s.svc.Initialize(ctx, callsign); err != nil {
		logger.Warnf("%s: not connected yet: %v", s.svc.Name(), err)
		return
	}
	if s.connCallback != nil {
		s.connCallback.OnTTSServerConnected()
	}
}

func (s *session) ListVoices(ctx context.Context, language string) ([]string, error) {
	voices, err := s.svc.ListVoices(ctx, language)
	if err != nil {
		logger.Error("Couldn't retrieve voice list", err)
		return nil, err
	}
	return voices, nil
}

func (s *session) IsTTSEnabled(ctx context.Context, force bool) bool {
	if err := s.svc.EnsureConnected(ctx); err != nil {
		logger.Error("Connection to TTS service is not established", err)
		return false
	}

	s.mu.Lock()
	force = force || s.firstQuery
	s.firstQuery = false
	cached := s.enabled
	s.mu.Unlock()

	if !force {
		return cached
	}

	enabled, err := s.svc.IsEnabled(ctx)
	if err != nil {
		logger.Error("Couldn't retrieve TTS enabled/disabled detail", err)
		return false
	}

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	logger.Debugf("TTS is %s", enabledString(enabled))
	return enabled
}

func (s *session) IsSessionActiveForApp(appID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created && s.appID == appID
}

func (s *session) AcquireResource(ctx context.Context, appID uint32) error {
	return nil
}

func (s *session) ClaimResource(ctx context.Context, appID uint32) error {
	return nil
}

func (s *session) ReleaseResource(ctx context.Context, appID uint32) error {
	return nil
}

// CreateSession refreshes and reports the enabled state, then announces the
// session. There is one session per client and its id is always DefaultSessionID.
func (s *session) CreateSession(ctx context.Context, appID uint32, appName string, callback types.SessionCallback) (uint32, error) {
	if err := s.svc.EnsureConnected(ctx); err != nil {
		logger.Error("Connection to TTS service is not established", err)
		return 0, err
	}

	s.mu.Lock()
	s.appID = appID
	s.mu.Unlock()

	if s.connCallback != nil {
		s.connCallback.OnTTSStateChanged(s.IsTTSEnabled(ctx, true))
	}

	s.mu.Lock()
	s.callback = callback
	s.created = true
	s.mu.Unlock()

	logger.Infof("Created session %d for app %d (%s)", types.DefaultSessionID, appID, appName)
	if callback != nil {
		callback.OnTTSSessionCreated(appID, types.DefaultSessionID)
	}
	return types.DefaultSessionID, nil
}

func (s *session) DestroySession(sessionID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = nil
	s.created = false
	return nil
}

func (s *session) IsActiveSession(sessionID uint32, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created && sessionID == types.DefaultSessionID
}

func (s *session) SetPreemptiveSpeak(sessionID uint32, preemptive bool) error {
	return nil
}

func (s *session) RequestExtendedEvents(sessionID uint32, events uint32) error {
	return nil
}

// Speak asks the backend for a speech id and correlates it with data.ID.
// A reused client id keeps its first mapping; the new request is still spoken.
func (s *session) Speak(ctx context.Context, sessionID uint32, data types.SpeechData) error {
	s.setLastSpeechID(0)

	speechID, err := s.svc.Speak(ctx, data.Text)
	if err != nil {
		return err
	}
	s.setLastSpeechID(speechID)

	added := s.speeches.Add(data.ID, speechID)
	s.reportTracked()
	if !added {
		metrics.DuplicateSpeechID(s.svc.Name())
		logger.Warnf("Client speech id %d is already in use, servicespeechid=%d is not tracked", data.ID, speechID)
	}
	logger.Infof("Requested speech with clientid=%d, serviceid=%d, is_duplicate_client_id=%t", data.ID, speechID, !added)
	return nil
}

func (s *session) Pause(ctx context.Context, sessionID, speechID uint32) error {
	serviceID, err := s.trackedSpeech(ctx, speechID, "pause")
	if err != nil || serviceID == 0 {
		return err
	}
	if err := s.svc.Pause(ctx, serviceID); err != nil {
		logger.Error("Couldn't pause", err)
		return err
	}
	return nil
}

func (s *session) Resume(ctx context.Context, sessionID, speechID uint32) error {
	serviceID, err := s.trackedSpeech(ctx, speechID, "resume")
	if err != nil || serviceID == 0 {
		return err
	}
	if err := s.svc.Resume(ctx, serviceID); err != nil {
		logger.Error("Couldn't resume", err)
		return err
	}
	return nil
}

// trackedSpeech returns the service id for speechID, or 0 when TTS is
// disabled or nothing is tracked for it. Both are benign and logged as warnings.
func (s *session) trackedSpeech(ctx context.Context, speechID uint32, operation string) (uint32, error) {
	if err := s.svc.EnsureConnected(ctx); err != nil {
		return 0, err
	}

	if !s.isEnabled() {
		logger.Warnf("TTS is disabled, nothing to %s", operation)
		return 0, nil
	}

	serviceID := s.speeches.BackendID(speechID)
	if serviceID == 0 {
		logger.Warnf("No speech in progress for clientid=%d", speechID)
	}
	return serviceID, nil
}

// Abort cancels the most recently requested speech
func (s *session) Abort(ctx context.Context, sessionID uint32, clearPending bool) error {
	if err := s.svc.EnsureConnected(ctx); err != nil {
		return err
	}

	if !s.isEnabled() {
		logger.Warn("TTS is disabled, nothing to abort")
		return nil
	}

	last := s.lastSpeech()
	if s.speeches.IsEmpty() || last == 0 {
		logger.Warn("No speech in progress")
		return nil
	}

	if err := s.svc.Cancel(ctx, last); err != nil {
		logger.Error("Couldn't abort", err)
		return err
	}
	return nil
}

func (s *session) IsSpeaking(ctx context.Context, sessionID uint32) bool {
	if err := s.svc.EnsureConnected(ctx); err != nil {
		return false
	}

	last := s.lastSpeech()
	if s.speeches.IsEmpty() || last == 0 {
		logger.Warn("No speech in progress")
		return false
	}

	speaking, err := s.svc.IsSpeaking(ctx, last)
	if err != nil {
		logger.Error("isspeaking query failed", err)
		return false
	}
	return speaking
}

// GetSpeechState reports SpeechNotFound without touching the backend when
// speechID is not tracked.
func (s *session) GetSpeechState(ctx context.Context, sessionID, speechID uint32) (types.SpeechState, error) {
	if err := s.svc.EnsureConnected(ctx); err != nil {
		return types.SpeechNotFound, err
	}

	serviceID := s.speeches.BackendID(speechID)
	if serviceID == 0 {
		logger.Warnf("No speech in progress for clientid=%d", speechID)
		return types.SpeechNotFound, nil
	}

	state, err := s.svc.GetSpeechState(ctx, serviceID)
	if err != nil {
		logger.Error("Couldn't retrieve speech state", err)
		return types.SpeechNotFound, err
	}
	if state == types.SpeechNotFound {
		// The service forgot it without a terminal notification
		s.speeches.RemoveByClientID(speechID)
		s.reportTracked()
		logger.Warnf("Service no longer knows servicespeechid=%d, dropped clientid=%d", serviceID, speechID)
	}
	return state, nil
}

// Close unregisters, aborts any outstanding speech and drops the session.
// The connection is torn down only when this session created it.
func (s *session) Close() {
	s.svc.UnregisterListener(s)

	if s.svc.IsActive() {
		if err := s.Abort(context.Background(), types.DefaultSessionID, false); err != nil {
			logger.Warnf("Abort on close failed: %v", err)
		}
	}
	_ = s.DestroySession(types.DefaultSessionID)
	s.speeches.Clear()
	s.reportTracked()

	if s.ownsService {
		s.svc.Uninitialize()
	}
}

// OnEvent translates a backend event into application callbacks. It runs on
// the connection's dispatch worker, never on the backend's goroutine.
func (s *session) OnEvent(ev dispatch.Event) {
	switch ev.Kind {
	case dispatch.StateChange:
		s.mu.Lock()
		s.lastSpeechID = 0
		s.enabled = ev.Enabled
		s.mu.Unlock()
		if s.connCallback != nil {
			logger.Infof("Got tts_state_changed event, enabled=%t", ev.Enabled)
			s.connCallback.OnTTSStateChanged(ev.Enabled)
		}
		return

	case dispatch.VoiceChange:
		if s.connCallback != nil {
			logger.Infof("Got voice_changed event, new voice = %s", ev.Voice)
			s.connCallback.OnVoiceChanged(ev.Voice)
		}
		return
	}

	var clientID uint32
	if ev.Kind.Terminal() {
		clientID = s.speeches.RemoveByBackendID(ev.SpeechID)
		s.reportTracked()
	} else {
		clientID = s.speeches.ClientID(ev.SpeechID)
	}

	s.mu.Lock()
	appID, callback := s.appID, s.callback
	s.mu.Unlock()

	if clientID == 0 || callback == nil {
		return
	}

	sessionID := types.DefaultSessionID
	logger.Infof("Got %s event from session %d, clientid=%d", ev.Kind, sessionID, clientID)

	switch ev.Kind {
	case dispatch.SpeechStart:
		callback.OnSpeechStart(appID, sessionID, types.SpeechData{ID: clientID})
	case dispatch.SpeechPause:
		callback.OnSpeechPause(appID, sessionID, clientID)
	case dispatch.SpeechResume:
		callback.OnSpeechResume(appID, sessionID, clientID)
	case dispatch.SpeechCancel:
		callback.OnSpeechCancelled(appID, sessionID, clientID)
	case dispatch.SpeechInterrupt:
		callback.OnSpeechInterrupted(appID, sessionID, clientID)
	case dispatch.NetworkError:
		callback.OnNetworkError(appID, sessionID, clientID)
	case dispatch.PlaybackError:
		callback.OnPlaybackError(appID, sessionID, clientID)
	case dispatch.SpeechComplete:
		callback.OnSpeechComplete(appID, sessionID, types.SpeechData{ID: clientID})
	}
}

func (s *session) reportTracked() {
	metrics.SetTrackedSpeeches(s.svc.Name(), s.speeches.Len())
}

func (s *session) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *session) lastSpeech() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSpeechID
}

func (s *session) setLastSpeechID(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSpeechID = id
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
