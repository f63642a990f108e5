package piper

import (
	"bytes"
	"context"
	"errors"
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

var fakeWAV = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

// fakePiper emulates the piper CLI: it writes fakeWAV to --output_file.
type fakePiper struct {
	err   error
	args  []string
	stdin string
	delay time.Duration
}

func (f *fakePiper) Run(ctx context.Context, _ string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	f.args = args
	text, _ := io.ReadAll(stdin)
	f.stdin = string(text)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, []byte("onnx runtime error"), f.err
	}

	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--output_file" {
			if err := os.WriteFile(args[i+1], fakeWAV, 0o644); err != nil {
				return nil, nil, err
			}
		}
	}
	return nil, nil, nil
}

func (f *fakePiper) Start(context.Context, string, []string) (*engine.Process, error) {
	return nil, errors.New("not supported")
}

type fakeDownloader struct {
	dir   string
	calls int
}

func (d *fakeDownloader) Download(context.Context, *config.VoiceConfig, string) (string, bool, error) {
	d.calls++
	return d.dir, false, nil
}

func writeVoice(t *testing.T, dir, name, voiceJSON string) string {
	t.Helper()

	model := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(model), 0o755))
	require.NoError(t, os.WriteFile(model, []byte("onnx"), 0o644))
	require.NoError(t, os.WriteFile(model+".json", []byte(voiceJSON), 0o644))
	return model
}

func TestEngine_LoadMultiSpeakerVoice(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "en/en_US-libritts-high.onnx", `{
		"dataset": "libritts",
		"audio": {"sample_rate": 22050},
		"num_speakers": 3,
		"speaker_id_map": {"p239": 2, "p225": 0, "p226": 1}
	}`)

	runner := &fakePiper{}
	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", time.Second, runner),
		map[string]config.VoiceConfig{"EN": {Model: "en/en_US-libritts-high.onnx"}},
		dir,
		WithTempDir(t.TempDir()),
	)
	assert.Equal(t, EngineName, e.Name())

	m, err := e.Load(context.Background(), "EN", config.DeviceCUDA)
	require.NoError(t, err)
	assert.Equal(t, "EN", m.Language())
	assert.Equal(t, map[string]int{"p225": 0, "p226": 1, "p239": 2}, m.Speakers())

	var out bytes.Buffer
	require.NoError(t, m.Synthesize(context.Background(), "hello there", 1, 2.0, &out))
	assert.Equal(t, fakeWAV, out.Bytes())
	assert.Equal(t, "hello there", runner.stdin)
	assert.Contains(t, runner.args, "--speaker")
	assert.Contains(t, runner.args, "1")
	assert.Contains(t, runner.args, "--cuda")
	assert.Contains(t, runner.args, "0.500")

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Synthesize(context.Background(), "x", 1, 1, &out), engine.ErrModelClosed)
}

func TestEngine_LoadSingleSpeakerVoice(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "es_ES-davefx-medium.onnx", `{"dataset": "davefx", "num_speakers": 1, "speaker_id_map": {}}`)

	runner := &fakePiper{}
	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", time.Second, runner),
		map[string]config.VoiceConfig{"ES": {Model: "es_ES-davefx-medium.onnx"}},
		dir,
		WithTempDir(t.TempDir()),
	)

	m, err := e.Load(context.Background(), "ES", config.DeviceAuto)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"davefx": 0}, m.Speakers())

	var out bytes.Buffer
	require.NoError(t, m.Synthesize(context.Background(), "hola", 0, 1.0, &out))
	assert.NotContains(t, runner.args, "--speaker")
	assert.NotContains(t, runner.args, "--length_scale")
	assert.NotContains(t, runner.args, "--cuda")
}

func TestEngine_LoadDownloadsSource(t *testing.T) {
	downloaded := t.TempDir()
	writeVoice(t, downloaded, "fr/fr_FR-siwis-medium.onnx", `{"speaker_id_map": {}}`)

	voice := config.VoiceConfig{Model: "fr/fr_FR-siwis-medium.onnx"}
	voice.Source.HuggingFace = &config.HuggingFaceSource{Repo: "rhasspy/piper-voices"}

	dl := &fakeDownloader{dir: downloaded}
	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", time.Second, &fakePiper{}),
		map[string]config.VoiceConfig{"FR": voice},
		t.TempDir(),
		WithDownloader(dl),
	)

	m, err := e.Load(context.Background(), "FR", config.DeviceCPU)
	require.NoError(t, err)
	assert.Equal(t, 1, dl.calls)
	assert.Equal(t, map[string]int{"default": 0}, m.Speakers())
}

func TestEngine_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.onnx"), []byte("onnx"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.onnx.json"), []byte("{"), 0o644))

	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", time.Second, &fakePiper{}),
		map[string]config.VoiceConfig{
			"EN": {Model: "missing.onnx"},
			"DE": {Model: "broken.onnx"},
		},
		dir,
	)

	_, err := e.Load(context.Background(), "ZZ", config.DeviceAuto)
	assert.ErrorIs(t, err, engine.ErrUnsupportedLanguage)

	_, err = e.Load(context.Background(), "EN", config.DeviceAuto)
	assert.ErrorContains(t, err, "voice model not found")

	_, err = e.Load(context.Background(), "DE", config.DeviceAuto)
	assert.ErrorContains(t, err, "invalid voice config")

	assert.NoError(t, e.Close())
}

func TestModel_SynthesizeFailure(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "en.onnx", `{"speaker_id_map": {}}`)

	runner := &fakePiper{err: errors.New("exit status 1")}
	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", time.Second, runner),
		map[string]config.VoiceConfig{"EN": {Model: "en.onnx"}},
		dir,
		WithTempDir(t.TempDir()),
	)

	m, err := e.Load(context.Background(), "EN", config.DeviceAuto)
	require.NoError(t, err)

	err = m.Synthesize(context.Background(), "hello", 0, 1, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onnx runtime error")
}

func TestModel_SynthesizeOutlivesCallerCancellation(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "en.onnx", `{"speaker_id_map": {}}`)

	runner := &fakePiper{delay: 300 * time.Millisecond}
	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", 5*time.Second, runner),
		map[string]config.VoiceConfig{"EN": {Model: "en.onnx"}},
		dir,
		WithTempDir(t.TempDir()),
	)

	m, err := e.Load(context.Background(), "EN", config.DeviceAuto)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, m.Synthesize(ctx, "hello", 0, 1, &out))
	assert.Equal(t, fakeWAV, out.Bytes())
}

func TestModel_SynthesizeStillHonoursExecutorTimeout(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "en.onnx", `{"speaker_id_map": {}}`)

	runner := &fakePiper{delay: time.Second}
	e := NewWithExecutor(
		engine.NewExecutorWithRunner("piper", 50*time.Millisecond, runner),
		map[string]config.VoiceConfig{"EN": {Model: "en.onnx"}},
		dir,
		WithTempDir(t.TempDir()),
	)

	m, err := e.Load(context.Background(), "EN", config.DeviceAuto)
	require.NoError(t, err)

	err = m.Synthesize(context.Background(), "hello", 0, 1, io.Discard)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
