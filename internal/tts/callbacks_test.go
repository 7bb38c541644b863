package tts

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/ttsclient/internal/types"
	"github.com/stretchr/testify/require"
)

// recorder implements both callback interfaces and logs every call as a string
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, v...))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) has(call string) bool {
	for _, c := range r.snapshot() {
		if c == call {
			return true
		}
	}
	return false
}

func (r *recorder) waitFor(t *testing.T, call string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.has(call) }, 2*time.Second, 5*time.Millisecond, "missing %s in %v", call, r.snapshot())
}

func (r *recorder) OnTTSServerConnected()          { r.add("connected") }
func (r *recorder) OnTTSStateChanged(enabled bool) { r.add("state(%t)", enabled) }
func (r *recorder) OnVoiceChanged(voice string)    { r.add("voice(%s)", voice) }

func (r *recorder) OnTTSSessionCreated(appID, sessionID uint32) {
	r.add("created(%d,%d)", appID, sessionID)
}

func (r *recorder) OnSpeechStart(appID, sessionID uint32, data types.SpeechData) {
	r.add("start(%d,%d,%d)", appID, sessionID, data.ID)
}

func (r *recorder) OnSpeechPause(appID, sessionID, speechID uint32) {
	r.add("pause(%d,%d,%d)", appID, sessionID, speechID)
}

func (r *recorder) OnSpeechResume(appID, sessionID, speechID uint32) {
	r.add("resume(%d,%d,%d)", appID, sessionID, speechID)
}

func (r *recorder) OnSpeechCancelled(appID, sessionID, speechID uint32) {
	r.add("cancelled(%d,%d,%d)", appID, sessionID, speechID)
}

func (r *recorder) OnSpeechInterrupted(appID, sessionID, speechID uint32) {
	r.add("interrupted(%d,%d,%d)", appID, sessionID, speechID)
}

func (r *recorder) OnNetworkError(appID, sessionID, speechID uint32) {
	r.add("networkerror(%d,%d,%d)", appID, sessionID, speechID)
}

func (r *recorder) OnPlaybackError(appID, sessionID, speechID uint32) {
	r.add("playbackerror(%d,%d,%d)", appID, sessionID, speechID)
}

func (r *recorder) OnSpeechComplete(appID, sessionID uint32, data types.SpeechData) {
	r.add("complete(%d,%d,%d)", appID, sessionID, data.ID)
}
