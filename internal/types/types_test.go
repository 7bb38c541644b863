package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallsign(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"empty", "", ""},
		{"single token", "WebKitBrowser", "WebKitBrowser"},
		{"comma separated", "WebKitBrowser,1234,extra", "WebKitBrowser"},
		{"leading comma", ",abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ClientIdentifier: tt.id}
			assert.Equal(t, tt.want, cfg.Callsign())
		})
	}
}

func TestBackendDefaults(t *testing.T) {
	var cfg Config

	com := cfg.GetCOMRPCConfig()
	assert.Equal(t, "/tmp/communicator", com.CommunicatorPath)
	assert.Equal(t, 3, com.Attempts)

	js := cfg.GetJSONRPCConfig()
	assert.Equal(t, "127.0.0.1:9998", js.Endpoint)
	assert.Equal(t, 200, js.ConnectTimeout)

	fb := cfg.GetFireboltConfig()
	assert.Equal(t, 1, fb.Attempts)
	assert.Empty(t, fb.Endpoint)
}

func TestRetryExhaustedIsNotConnected(t *testing.T) {
	assert.True(t, errors.Is(ErrRetryExhausted, ErrNotConnected))
}

func TestSpeechStateString(t *testing.T) {
	assert.Equal(t, "in_progress", SpeechInProgress.String())
	assert.Equal(t, "unknown", SpeechState(9).String())
}
