// Package piper implements engine.Engine on top of the Piper CLI.
package piper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/config/source"
	"github.com/ekisa-team/melo-api/internal/engine"
	"github.com/ekisa-team/melo-api/internal/xfs"
	"github.com/ekisa-team/melo-api/mapsafe"
)

// EngineName is the identifier of the Piper engine.
const EngineName = "piper"

const (
	defaultSpeakerName = "default"
	defaultSampleRate  = 22050
)

// Engine implements engine.Engine for Piper voices.
type Engine struct {
	executor   *engine.Executor
	downloader source.Downloader
	voices     map[string]config.VoiceConfig
	modelsDir  string
	tempDir    string
}

// Option configures the engine.
type Option func(*Engine)

// WithDownloader overrides the downloader used for voices with a source.
func WithDownloader(d source.Downloader) Option {
	return func(e *Engine) {
		e.downloader = d
	}
}

// WithTempDir sets where intermediate WAV files are written.
func WithTempDir(dir string) Option {
	return func(e *Engine) {
		e.tempDir = dir
	}
}

// New creates a Piper engine running cfg.Binary.
func New(cfg config.PiperConfig, modelsDir string, opts ...Option) (*Engine, error) {
	executor, err := engine.NewExecutor(cfg.Binary, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return NewWithExecutor(executor, cfg.Voices, modelsDir, opts...), nil
}

// NewWithExecutor creates a Piper engine with a preconfigured executor.
func NewWithExecutor(executor *engine.Executor, voices map[string]config.VoiceConfig, modelsDir string, opts ...Option) *Engine {
	e := &Engine{
		executor:  executor,
		voices:    voices,
		modelsDir: modelsDir,
		tempDir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return EngineName
}

// Load resolves the voice configured for language, downloading it first if it has a source.
func (e *Engine) Load(ctx context.Context, language string, device config.Device) (engine.Model, error) {
	voice, ok := e.voices[language]
	if !ok {
		return nil, fmt.Errorf("%w: no piper voice configured for %s", engine.ErrUnsupportedLanguage, language)
	}

	base := e.modelsDir
	if voice.HasSource() {
		dir, err := e.fetch(ctx, &voice)
		if err != nil {
			return nil, err
		}
		base = dir
	}

	modelPath := voice.Model
	if !filepath.IsAbs(modelPath) {
		modelPath = filepath.Join(base, modelPath)
	}

	if !xfs.IsFile(modelPath) {
		return nil, fmt.Errorf("voice model not found: %s", modelPath)
	}

	info, err := readVoiceConfig(modelPath + ".json")
	if err != nil {
		return nil, err
	}

	if device == config.DeviceMPS {
		slog.Warn("Piper does not support mps, falling back to cpu", "language", language)
	}

	slog.Info("Piper voice loaded",
		"language", language,
		"model", modelPath,
		"speakers", len(info.speakers),
		"sample_rate", info.sampleRate,
	)

	return &Model{
		executor:   e.executor,
		language:   language,
		modelPath:  modelPath,
		tempDir:    e.tempDir,
		speakers:   info.speakers,
		multiVoice: info.multiSpeaker,
		useCUDA:    device == config.DeviceCUDA,
	}, nil
}

func (e *Engine) fetch(ctx context.Context, voice *config.VoiceConfig) (string, error) {
	if err := source.EnsureModelsDirectory(e.modelsDir); err != nil {
		return "", err
	}

	downloader := e.downloader
	if downloader == nil {
		src, err := voice.GetSource()
		if err != nil {
			return "", err
		}
		if downloader, err = source.GetDownloader(src.Type(), nil); err != nil {
			return "", err
		}
	}

	dir, _, err := downloader.Download(ctx, voice, e.modelsDir)
	if err != nil {
		return "", fmt.Errorf("failed to download voice: %w", err)
	}

	return dir, nil
}

// Close cleans up resources. Piper does not keep any running process.
func (e *Engine) Close() error {
	return nil
}

type voiceInfo struct {
	speakers     map[string]int
	sampleRate   int
	multiSpeaker bool
}

// readVoiceConfig parses the .onnx.json file shipped next to every Piper voice.
func readVoiceConfig(path string) (*voiceInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice config: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid voice config %s: %w", path, err)
	}

	info := &voiceInfo{
		speakers:   mapsafe.IntMap(doc, "speaker_id_map"),
		sampleRate: mapsafe.Get(mapsafe.Map(doc, "audio"), "sample_rate", defaultSampleRate),
	}
	info.multiSpeaker = len(info.speakers) > 0 && mapsafe.Get(doc, "num_speakers", len(info.speakers)) > 1

	if len(info.speakers) == 0 {
		name := strings.TrimSpace(mapsafe.Get(doc, "dataset", ""))
		if name == "" {
			name = defaultSpeakerName
		}
		info.speakers = map[string]int{name: 0}
	}

	return info, nil
}

// Model is a loaded Piper voice.
type Model struct {
	executor   *engine.Executor
	speakers   map[string]int
	language   string
	modelPath  string
	tempDir    string
	closed     atomic.Bool
	multiVoice bool
	useCUDA    bool
}

// Language returns the language the voice serves.
func (m *Model) Language() string {
	return m.language
}

// Speakers returns the speaker table of the voice.
func (m *Model) Speakers() map[string]int {
	return m.speakers
}

// Synthesize runs Piper once and copies the produced WAV file into w.
// Piper writes to a file, so a temp file is used and read back.
func (m *Model) Synthesize(ctx context.Context, text string, speakerID int, speed float64, w io.Writer) error {
	if m.closed.Load() {
		return engine.ErrModelClosed
	}

	outputFile := filepath.Join(m.tempDir, "piper_"+xid.New().String()+".wav")
	defer os.Remove(outputFile)

	args := m.buildArgs(outputFile, speakerID, speed)

	// Piper reads text from stdin. A caller going away does not stop a
	// started synthesis; only the executor timeout does.
	_, stderr, err := m.executor.Execute(context.WithoutCancel(ctx), args, strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("piper execution failed: %w: %s", err, strings.TrimSpace(string(stderr)))
	}

	f, err := os.Open(outputFile)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy audio: %w", err)
	}

	return nil
}

// buildArgs builds Piper command-line arguments.
func (m *Model) buildArgs(outputFile string, speakerID int, speed float64) []string {
	args := []string{
		"--model", m.modelPath,
		"--output_file", outputFile,
	}

	if m.multiVoice {
		args = append(args, "--speaker", strconv.Itoa(speakerID))
	}

	// Piper's length scale is a duration multiplier: faster speech is a smaller scale.
	if speed > 0 && speed != 1 {
		args = append(args, "--length_scale", strconv.FormatFloat(1/speed, 'f', 3, 64))
	}

	if m.useCUDA {
		args = append(args, "--cuda")
	}

	return args
}

// Close marks the model closed. Piper keeps no resident resources.
func (m *Model) Close() error {
	m.closed.Store(true)
	return nil
}
