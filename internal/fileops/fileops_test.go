package fileops

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadConfig(t *testing.T) {
	ops := NewFileOps(filepath.Join(t.TempDir(), "ttsclient"))
	require.NoError(t, ops.EnsureDirectories())
	assert.DirExists(t, ops.GetLogsDir())

	_, err := ops.LoadConfig("ttsclient.yaml")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	require.NoError(t, ops.SaveConfig("ttsclient.yaml", []byte("backend: comrpc\n")))
	data, err := ops.LoadConfig("ttsclient.yaml")
	require.NoError(t, err)
	assert.Equal(t, "backend: comrpc\n", string(data))
}
