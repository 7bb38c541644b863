package types

// DefaultSessionID is the only session id handed out; one session per process
const DefaultSessionID uint32 = 1

// Configuration is exchanged verbatim between the facade and an adapter.
// Each adapter narrows the numeric fields to its backend representation.
type Configuration struct {
	EndPoint        string
	EndPointSecured string
	Language        string
	Voice           string
	Volume          float64
	Rate            uint8
}

// SpeechData is a client speech request
type SpeechData struct {
	ID   uint32
	Text string
}

// SpeechState is the playback state of a speech request
type SpeechState int

const (
	SpeechPending SpeechState = iota
	SpeechInProgress
	SpeechPaused
	SpeechNotFound
)

func (s SpeechState) String() string {
	switch s {
	case SpeechPending:
		return "pending"
	case SpeechInProgress:
		return "in_progress"
	case SpeechPaused:
		return "paused"
	case SpeechNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ConnectionCallback receives service level notifications
type ConnectionCallback interface {
	OnTTSServerConnected()
	OnTTSStateChanged(enabled bool)
	OnVoiceChanged(voice string)
}

// SessionCallback receives per-session speech notifications
type SessionCallback interface {
	OnTTSSessionCreated(appID, sessionID uint32)
	OnSpeechStart(appID, sessionID uint32, data SpeechData)
	OnSpeechPause(appID, sessionID, speechID uint32)
	OnSpeechResume(appID, sessionID, speechID uint32)
	OnSpeechCancelled(appID, sessionID, speechID uint32)
	OnSpeechInterrupted(appID, sessionID, speechID uint32)
	OnNetworkError(appID, sessionID, speechID uint32)
	OnPlaybackError(appID, sessionID, speechID uint32)
	OnSpeechComplete(appID, sessionID uint32, data SpeechData)
}
