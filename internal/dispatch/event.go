package dispatch

import "fmt"

// Kind discriminates backend notifications
type Kind int

const (
	StateChange Kind = iota
	VoiceChange
	SpeechStart
	SpeechPause
	SpeechResume
	SpeechCancel
	SpeechInterrupt
	NetworkError
	PlaybackError
	SpeechComplete
)

var kindNames = map[Kind]string{
	StateChange:     "state_change",
	VoiceChange:     "voice_change",
	SpeechStart:     "speech_start",
	SpeechPause:     "speech_pause",
	SpeechResume:    "speech_resume",
	SpeechCancel:    "speech_cancel",
	SpeechInterrupt: "speech_interrupt",
	NetworkError:    "network_error",
	PlaybackError:   "playback_error",
	SpeechComplete:  "speech_complete",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Terminal reports whether no further events follow for the speech
func (k Kind) Terminal() bool {
	switch k {
	case SpeechCancel, SpeechInterrupt, NetworkError, PlaybackError, SpeechComplete:
		return true
	}
	return false
}

// Event is an immutable snapshot of one backend notification.
// Enabled is set for StateChange, Voice for VoiceChange and SpeechID otherwise.
type Event struct {
	Kind     Kind
	Enabled  bool
	Voice    string
	SpeechID uint32
}

func StateChanged(enabled bool) Event {
	return Event{Kind: StateChange, Enabled: enabled}
}

func VoiceChanged(voice string) Event {
	return Event{Kind: VoiceChange, Voice: voice}
}

func Speech(kind Kind, speechID uint32) Event {
	return Event{Kind: kind, SpeechID: speechID}
}

func (e Event) String() string {
	switch e.Kind {
	case StateChange:
		return fmt.Sprintf("%s(enabled=%t)", e.Kind, e.Enabled)
	case VoiceChange:
		return fmt.Sprintf("%s(voice=%s)", e.Kind, e.Voice)
	default:
		return fmt.Sprintf("%s(servicespeechid=%d)", e.Kind, e.SpeechID)
	}
}
