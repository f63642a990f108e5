package xfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, "models"), ExpandTilde("~/models"))
	assert.Equal(t, "/var/lib/melo", ExpandTilde("/var/lib/melo"))
	assert.Equal(t, "~other/models", ExpandTilde("~other/models"))
}

func TestIsFileAndExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "voice.onnx")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, IsFile(file))
	assert.False(t, IsFile(dir))
	assert.True(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "missing")))
}
