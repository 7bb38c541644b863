package config

import (
	"strings"
	"testing"

	"github.com/dooshek/ttsclient/internal/fileops"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())

	config, err := Load(ops)
	require.NoError(t, err)
	assert.Equal(t, "", config.Backend)
	assert.Equal(t, "127.0.0.1:9998", config.GetJSONRPCConfig().Endpoint)
	assert.Equal(t, "/tmp/communicator", config.GetCOMRPCConfig().CommunicatorPath)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())
	require.NoError(t, ops.SaveConfig(configFilename, []byte("backend: comrpc\nclient_identifier: file\njsonrpc:\n  endpoint: 10.0.0.1:9998\n")))

	t.Setenv("TTS_CLIENT_BACKEND", "firebolt")
	t.Setenv("TTS_USE_THUNDER_CLIENT", "")
	t.Setenv("CLIENT_IDENTIFIER", "WebKitBrowser,1234")
	t.Setenv("COMMUNICATOR_PATH", "/run/communicator")
	t.Setenv("TTS_COMRPC_ATTEMPTS", "5")
	t.Setenv("FIREBOLT_ENDPOINT", "nats://127.0.0.1:4333")

	config, err := Load(ops)
	require.NoError(t, err)
	assert.Equal(t, "firebolt", config.Backend)
	assert.True(t, config.ForceJSONRPC)
	assert.Equal(t, "WebKitBrowser", config.Callsign())
	assert.Equal(t, "/run/communicator", config.COMRPC.CommunicatorPath)
	assert.Equal(t, 5, config.COMRPC.Attempts)
	assert.Equal(t, "10.0.0.1:9998", config.JSONRPC.Endpoint)
	assert.Equal(t, "nats://127.0.0.1:4333", config.Firebolt.Endpoint)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())
	require.NoError(t, ops.SaveConfig(configFilename, []byte("log_level: verbose\n")))
	_, err := Load(ops)
	assert.ErrorContains(t, err, "log_level")

	require.NoError(t, ops.SaveConfig(configFilename, []byte("jsonrpc:\n  attempts: -1\n")))
	_, err = Load(ops)
	assert.ErrorContains(t, err, "jsonrpc.attempts")

	require.NoError(t, ops.SaveConfig(configFilename, []byte("backend: [")))
	_, err = Load(ops)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestSaveMergesIntoExistingFile(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())
	require.NoError(t, Save(ops, &types.Config{Backend: "comrpc", ClientIdentifier: "app", COMRPC: types.COMRPCConfig{Attempts: 4}}))
	require.NoError(t, Save(ops, &types.Config{LogLevel: "debug", COMRPC: types.COMRPCConfig{CommunicatorPath: "/run/c"}}))

	config, err := Load(ops)
	require.NoError(t, err)
	assert.Equal(t, "comrpc", config.Backend)
	assert.Equal(t, "app", config.ClientIdentifier)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 4, config.COMRPC.Attempts)
	assert.Equal(t, "/run/c", config.COMRPC.CommunicatorPath)
}

func TestWizardSavesAnswers(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())
	in := strings.NewReader("grpc\n3\nnats://10.0.0.2:4222\nWebKitBrowser\n\n")
	var out strings.Builder

	require.NoError(t, runWizard(in, &out, ops))
	assert.Contains(t, out.String(), "Unknown backend")

	config, err := Load(ops)
	require.NoError(t, err)
	assert.Equal(t, "firebolt", config.Backend)
	assert.Equal(t, "nats://10.0.0.2:4222", config.Firebolt.Endpoint)
	assert.Equal(t, "WebKitBrowser", config.ClientIdentifier)
}

func TestWizardDefaults(t *testing.T) {
	ops := fileops.NewFileOps(t.TempDir())
	in := strings.NewReader("\n\n\ny\n")
	var out strings.Builder

	require.NoError(t, runWizard(in, &out, ops))

	config, err := Load(ops)
	require.NoError(t, err)
	assert.Equal(t, "jsonrpc", config.Backend)
	assert.Equal(t, "127.0.0.1:9998", config.JSONRPC.Endpoint)
	assert.Equal(t, "ttsctl", config.ClientIdentifier)
}
