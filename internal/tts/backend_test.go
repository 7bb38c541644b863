package tts

import (
	"context"
	"testing"

	"github.com/dooshek/ttsclient/internal/service/firebolt/fireboltest"
	"github.com/dooshek/ttsclient/internal/service/jsonrpc/jsonrpctest"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBackend(t *testing.T) {
	saved := DefaultBackend
	t.Cleanup(func() { DefaultBackend = saved })

	tests := []struct {
		name     string
		def      string
		cfg      types.Config
		expected types.Backend
	}{
		{"build default", "comrpc", types.Config{}, types.BackendCOMRPC},
		{"override wins", "comrpc", types.Config{Backend: "firebolt"}, types.BackendFirebolt},
		{"override is case insensitive prefix", "jsonrpc", types.Config{Backend: "COMRPC_v2"}, types.BackendCOMRPC},
		{"unknown override falls back", "firebolt", types.Config{Backend: "grpc"}, types.BackendFirebolt},
		{"force wins over override", "comrpc", types.Config{Backend: "firebolt", ForceJSONRPC: true}, types.BackendJSONRPC},
		{"unknown default", "bogus", types.Config{}, types.BackendJSONRPC},
		{"empty default", "", types.Config{}, types.BackendJSONRPC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			DefaultBackend = tt.def
			assert.Equal(t, tt.expected, SelectBackend(&tt.cfg))
		})
	}
}

func TestJSONRPCClientEndToEnd(t *testing.T) {
	server := jsonrpctest.NewServer("org.rdk.TextToSpeech.1")
	t.Cleanup(server.Close)

	cfg := &types.Config{
		ClientIdentifier: "WebKitBrowser",
		ForceJSONRPC:     true,
		JSONRPC:          types.JSONRPCConfig{Endpoint: server.Endpoint(), ConnectTimeout: 1000, CallTimeout: 1000},
	}
	events := &recorder{}
	client := NewClient(context.Background(), cfg, events)
	t.Cleanup(client.Close)
	require.Equal(t, types.BackendJSONRPC, client.Backend())

	require.True(t, events.has("state(false)"))
	ctx := context.Background()
	_, err := client.CreateSession(ctx, testAppID, "test", events)
	require.NoError(t, err)
	assert.True(t, events.has("state(true)"))
	assert.Equal(t, "client.events.WebKitBrowser", server.Registered("onspeechcomplete"))

	require.NoError(t, client.Speak(ctx, 1, types.SpeechData{ID: 42, Text: "hello"}))
	require.NoError(t, client.Pause(ctx, 1, 42))
	state, err := client.GetSpeechState(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, types.SpeechPaused, state)

	server.Emit("onspeechpause", map[string]uint32{"speechid": 1})
	server.Emit("onspeechcomplete", map[string]uint32{"speechid": 1})
	events.waitFor(t, "complete(5,1,42)")
	assert.True(t, events.has("pause(5,1,42)"))

	require.NoError(t, client.AcquireResource(ctx, testAppID))
	require.NoError(t, client.ClaimResource(ctx, testAppID))
	require.NoError(t, client.ReleaseResource(ctx, testAppID))
	assert.Equal(t, 1, server.Calls("acquireresource"))
	assert.Equal(t, 1, server.Calls("releaseresource"))

	err = client.SetTTSConfiguration(ctx, types.Configuration{Voice: "Amber", Volume: 150, Rate: 50})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	assert.Equal(t, 0, server.Calls("setttsconfiguration"))

	require.NoError(t, client.SetTTSConfiguration(ctx, types.Configuration{Voice: "Amber", Volume: 80, Rate: 50}))
	config, err := client.GetTTSConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Amber", config.Voice)
	assert.Equal(t, float64(80), config.Volume)

	client.Close()
	assert.Equal(t, "", server.Registered("onspeechcomplete"), "owned connection is released")
}

func TestFireboltClientEndToEnd(t *testing.T) {
	server, err := fireboltest.NewServer()
	require.NoError(t, err)
	t.Cleanup(server.Shutdown)

	cfg := &types.Config{
		ClientIdentifier: "WebKitBrowser",
		Backend:          "firebolt",
		Firebolt:         types.FireboltConfig{Endpoint: server.URL(), ConnectTimeout: 1000, RequestTimeout: 1000},
	}
	events := &recorder{}
	client := NewClient(context.Background(), cfg, events)
	t.Cleanup(client.Close)
	require.Equal(t, types.BackendFirebolt, client.Backend())

	require.True(t, events.has("state(false)"))
	ctx := context.Background()
	_, err = client.CreateSession(ctx, testAppID, "test", events)
	require.NoError(t, err)

	server.SetEnabled(false)
	require.NoError(t, client.EnableTTS(ctx, true))
	assert.Equal(t, 0, server.Calls("enabletts"))
	assert.False(t, client.IsTTSEnabled(ctx, true))
	server.SetEnabled(true)
	assert.True(t, client.IsTTSEnabled(ctx, true))

	require.NoError(t, client.SetTTSConfiguration(ctx, types.Configuration{Voice: "Amber", Volume: 250, Rate: 40}))
	config, err := client.GetTTSConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(100), config.Volume)
	assert.Equal(t, uint8(40), config.Rate)

	require.NoError(t, client.Speak(ctx, 1, types.SpeechData{ID: 42, Text: "hello"}))
	assert.True(t, client.IsSpeaking(ctx, 1))

	require.NoError(t, server.Emit("onspeechstart", map[string]uint32{"speechid": 1}))
	require.NoError(t, server.Emit("onvoicechanged", map[string]string{"voice": "Angelica"}))
	require.NoError(t, server.Emit("onspeechinterrupted", map[string]uint32{"speechid": 1}))
	events.waitFor(t, "interrupted(5,1,42)")

	calls := events.snapshot()
	assert.Equal(t, []string{"start(5,1,42)", "voice(Angelica)", "interrupted(5,1,42)"}, calls[len(calls)-3:])

	state, err := client.GetSpeechState(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, types.SpeechNotFound, state)
}
