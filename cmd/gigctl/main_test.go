package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"outbox", "replay"},
		{"outbox", "replay-failed"},
		{"quota", "sweep"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--config-dir", "/nonexistent"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), Version)
}

func TestReplayRejectsBadID(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"outbox", "replay", "abc", "--config-dir", "../../config", "--env", "local"})
	err := root.Execute()
	require.Error(t, err)
}
