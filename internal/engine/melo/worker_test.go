package melo

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/engine"
)

func TestInstallWorker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	path, err := InstallWorker(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, WorkerScriptName), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, workerScript, got)

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	_, err = InstallWorker(dir)
	require.NoError(t, err)

	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, workerScript, got)
}

// newPythonEngine runs the bundled worker against the MeloTTS stand-in in testdata.
func newPythonEngine(t *testing.T) *Engine {
	t.Helper()

	executor, err := engine.NewExecutor("python3", 0)
	if err != nil {
		t.Skip("python3 not available")
	}

	testdata, err := filepath.Abs("testdata")
	require.NoError(t, err)
	t.Setenv("PYTHONPATH", testdata)

	script, err := InstallWorker(t.TempDir())
	require.NoError(t, err)

	return NewWithExecutor(executor, config.MeloConfig{
		Args:         []string{"-u", script},
		StartTimeout: 30 * time.Second,
	})
}

func TestBundledWorker_SpeaksProtocol(t *testing.T) {
	e := newPythonEngine(t)

	m, err := e.Load(context.Background(), "EN", config.DeviceCPU)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, map[string]int{"EN-US": 0, "EN-BR": 1}, m.Speakers())

	var out bytes.Buffer
	require.NoError(t, m.Synthesize(context.Background(), "hello", 1, 1.5, &out))
	assert.Equal(t, "RIFF1:1.5:hello", out.String())

	err = m.Synthesize(context.Background(), "fail", 0, 1, io.Discard)
	assert.ErrorContains(t, err, "synthesis exploded")

	out.Reset()
	require.NoError(t, m.Synthesize(context.Background(), "again", 0, 1, &out))
	assert.Equal(t, "RIFF0:1.0:again", out.String())
}

func TestBundledWorker_ReportsLoadFailure(t *testing.T) {
	e := newPythonEngine(t)

	_, err := e.Load(context.Background(), "XX", config.DeviceAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "language XX is not supported")
}
