package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dooshek/ttsclient/internal/connection"
	"github.com/dooshek/ttsclient/internal/dispatch"
	"github.com/dooshek/ttsclient/internal/service/comrpc"
	"github.com/dooshek/ttsclient/internal/service/comrpc/comrpctest"
	"github.com/dooshek/ttsclient/internal/tts"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*tts.Client, *comrpctest.Remote) {
	t.Helper()
	color.NoColor = true

	remote := comrpctest.NewRemote()
	svc := comrpc.New(remote, connection.Policy{Attempts: 1})
	t.Cleanup(svc.Uninitialize)

	client := tts.NewClient(context.Background(), &types.Config{ClientIdentifier: "ttsctl"}, nil,
		tts.WithBackend(types.BackendCOMRPC), tts.WithCOMRPCService(svc))
	t.Cleanup(client.Close)
	return client, remote
}

// emitOnceTracked waits until client tracks speech 1, then emits events for it
func emitOnceTracked(t *testing.T, client *tts.Client, remote *comrpctest.Remote, kinds ...dispatch.Kind) {
	tracked := assert.Eventually(t, func() bool {
		state, _ := client.GetSpeechState(context.Background(), types.DefaultSessionID, 1)
		return state == types.SpeechInProgress
	}, 2*time.Second, 5*time.Millisecond)
	if !tracked {
		return
	}
	for _, kind := range kinds {
		remote.Emit(dispatch.Speech(kind, 1))
	}
}

func TestSpeakWaitsForCompletion(t *testing.T) {
	client, remote := newTestClient(t)

	go emitOnceTracked(t, client, remote, dispatch.SpeechStart, dispatch.SpeechComplete)

	var out strings.Builder
	err := run(context.Background(), client, []string{"speak", "hello", "world"}, &out, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Done")
}

func TestSpeakReportsInterruption(t *testing.T) {
	client, remote := newTestClient(t)

	go emitOnceTracked(t, client, remote, dispatch.SpeechInterrupt)

	var out strings.Builder
	err := run(context.Background(), client, []string{"speak", "hello"}, &out, 2*time.Second)
	assert.EqualError(t, err, "speech interrupted")
}

func TestSpeakTimesOutAndAborts(t *testing.T) {
	client, remote := newTestClient(t)

	var out strings.Builder
	err := run(context.Background(), client, []string{"speak", "hello"}, &out, 50*time.Millisecond)
	assert.ErrorContains(t, err, "did not finish")
	assert.Equal(t, 1, remote.Calls("Cancel"))
}

func TestSpeakRefusesWhenDisabled(t *testing.T) {
	client, remote := newTestClient(t)
	remote.Enabled = false

	var out strings.Builder
	err := run(context.Background(), client, []string{"speak", "hello"}, &out, time.Second)
	assert.ErrorIs(t, err, types.ErrNotEnabled)
	assert.Equal(t, 0, remote.Calls("Speak"))
}

func TestVoicesAndState(t *testing.T) {
	client, _ := newTestClient(t)

	var out strings.Builder
	require.NoError(t, run(context.Background(), client, []string{"voices", "en-US"}, &out, time.Second))
	assert.Equal(t, "Amber\nAngelica\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), client, []string{"disable"}, &out, time.Second))
	require.NoError(t, run(context.Background(), client, []string{"state"}, &out, time.Second))
	assert.Contains(t, out.String(), "TTS is disabled")
}

func TestConfigSet(t *testing.T) {
	client, remote := newTestClient(t)

	var out strings.Builder
	require.NoError(t, run(context.Background(), client, []string{"config", "set", "voice=Amber", "volume=80", "rate=40"}, &out, time.Second))
	assert.Equal(t, comrpc.Configuration{Voice: "Amber", Volume: 80, Rate: 40}, remote.Config)
	assert.Contains(t, out.String(), "Amber")

	err := run(context.Background(), client, []string{"config", "set", "pitch=3"}, &out, time.Second)
	assert.ErrorContains(t, err, "unknown config key")
}

func TestApplySettingsRejectsMalformedValues(t *testing.T) {
	_, err := applySettings(types.Configuration{}, []string{"volume"})
	assert.ErrorContains(t, err, "expected key=value")

	_, err = applySettings(types.Configuration{}, []string{"rate=300"})
	assert.ErrorContains(t, err, "invalid rate")

	_, err = applySettings(types.Configuration{}, nil)
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	client, _ := newTestClient(t)
	err := run(context.Background(), client, []string{"sing"}, &strings.Builder{}, time.Second)
	assert.EqualError(t, err, `unknown command "sing"`)
}
