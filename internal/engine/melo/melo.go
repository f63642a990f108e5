// Package melo implements engine.Engine by driving MeloTTS worker processes.
//
// Each loaded language owns one worker started as
//
//	<worker> [args...] --language XX --device D
//
// The worker prints a handshake line with its speaker table, then answers
// newline-delimited JSON requests on stdin with one JSON line each on stdout.
// Audio travels base64 encoded as a complete WAV file.
//
// melo_worker.py, embedded in this package, implements the worker on top of
// the MeloTTS Python package (melo.api.TTS). It is installed into the user
// cache directory and used unless a custom worker command is configured.
package melo

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/engine"
)

// EngineName is the identifier of the MeloTTS engine.
const EngineName = "melo"

const (
	defaultStartTimeout = 5 * time.Minute
	closeGracePeriod    = 2 * time.Second
	stderrTailLines     = 8
	maxStderrLine       = 64 * 1024
)

// ErrWorkerExited is returned when the worker process stops responding.
var ErrWorkerExited = errors.New("melo worker exited")

// Engine implements engine.Engine for MeloTTS.
type Engine struct {
	executor     *engine.Executor
	args         []string
	startTimeout time.Duration
}

// New creates an engine that launches a worker for every loaded language.
// Without cfg.Worker the bundled melo_worker.py runs under cfg.Python.
func New(cfg config.MeloConfig) (*Engine, error) {
	if cfg.Worker != "" {
		executor, err := engine.NewExecutor(cfg.Worker, 0)
		if err != nil {
			return nil, err
		}
		return NewWithExecutor(executor, cfg), nil
	}

	script, err := InstallWorker(workerDir())
	if err != nil {
		return nil, err
	}

	executor, err := engine.NewExecutor(cfg.Python, 0)
	if err != nil {
		return nil, err
	}

	cfg.Args = append([]string{"-u", script}, cfg.Args...)
	return NewWithExecutor(executor, cfg), nil
}

// NewWithExecutor creates an engine with a preconfigured executor.
func NewWithExecutor(executor *engine.Executor, cfg config.MeloConfig) *Engine {
	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}

	return &Engine{
		executor:     executor,
		args:         cfg.Args,
		startTimeout: timeout,
	}
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return EngineName
}

// Load starts a worker for language and waits for its handshake.
func (e *Engine) Load(ctx context.Context, language string, device config.Device) (engine.Model, error) {
	args := make([]string, 0, len(e.args)+4)
	args = append(args, e.args...)
	args = append(args, "--language", language, "--device", string(device))

	// The worker outlives the request that triggered the load.
	proc, err := e.executor.Start(context.WithoutCancel(ctx), args)
	if err != nil {
		return nil, err
	}

	m := &Model{
		language: language,
		proc:     proc,
		stdin:    proc.Stdin,
		stdout:   bufio.NewReader(proc.Stdout),
		stderr:   newTail(stderrTailLines),
	}
	go m.drainStderr()

	hs, err := m.awaitHandshake(ctx, e.startTimeout)
	if err != nil {
		_ = m.kill()
		return nil, err
	}

	m.speakers = hs.Speakers
	if m.speakers == nil {
		m.speakers = map[string]int{}
	}

	slog.Info("Melo worker ready", "language", language, "device", device, "speakers", len(m.speakers))
	return m, nil
}

// Close is a no-op; workers are owned by their models.
func (e *Engine) Close() error {
	return nil
}

// Model is a loaded MeloTTS language served by one worker process.
type Model struct {
	proc     *engine.Process
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	stderr   *tail
	speakers map[string]int
	language string
	mu       sync.Mutex
	closed   bool
}

// Language returns the language the worker was started for.
func (m *Model) Language() string {
	return m.language
}

// Speakers returns the speaker table reported by the worker.
func (m *Model) Speakers() map[string]int {
	return m.speakers
}

// Synthesize sends one request to the worker and copies the decoded WAV into w.
// Requests to the same worker are serialized.
func (m *Model) Synthesize(_ context.Context, text string, speakerID int, speed float64, w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return engine.ErrModelClosed
	}

	req := request{
		ID:        xid.New().String(),
		Text:      text,
		SpeakerID: speakerID,
		Speed:     speed,
	}

	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if _, err := m.stdin.Write(append(line, '\n')); err != nil {
		return m.workerError(err)
	}

	var resp response
	if err := m.readLine(&resp); err != nil {
		return m.workerError(err)
	}

	if resp.ID != req.ID {
		return fmt.Errorf("melo worker out of sync (got %q, expected %q)", resp.ID, req.ID)
	}

	if !resp.OK {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "unknown melo error"
		}
		return errors.New(msg)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return fmt.Errorf("decode audio_base64: %w", err)
	}

	if _, err := w.Write(audio); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	return nil
}

// Close stops the worker: stdin is closed so it can exit on its own, and it
// is killed if still running after a grace period.
func (m *Model) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	_ = m.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- m.proc.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(closeGracePeriod):
		slog.Warn("Melo worker did not exit, killing", "language", m.language)
		_ = m.proc.Kill()
		<-done
		return nil
	}
}

func (m *Model) awaitHandshake(ctx context.Context, timeout time.Duration) (*handshake, error) {
	type result struct {
		hs  handshake
		err error
	}

	ch := make(chan result, 1)
	go func() {
		var r result
		r.err = m.readLine(&r.hs)
		ch <- r
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, m.workerError(r.err)
		}
		if !r.hs.OK {
			msg := strings.TrimSpace(r.hs.Error)
			if msg == "" {
				msg = m.stderr.String()
			}
			return nil, fmt.Errorf("melo worker failed to load %s: %s", m.language, msg)
		}
		return &r.hs, nil
	case <-timer.C:
		return nil, fmt.Errorf("melo worker for %s not ready after %s", m.language, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLine decodes the next stdout line into v.
func (m *Model) readLine(v any) error {
	line, err := m.stdout.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return err
	}

	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("invalid worker output %q: %w", strings.TrimSpace(string(line)), err)
	}
	return nil
}

func (m *Model) workerError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		if msg := m.stderr.String(); msg != "" {
			return fmt.Errorf("%w: %s", ErrWorkerExited, msg)
		}
		return ErrWorkerExited
	}
	return err
}

// drainStderr must keep reading until EOF: a worker blocked on a full stderr
// pipe never sends its handshake.
func (m *Model) drainStderr() {
	scanner := bufio.NewScanner(m.proc.Stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLine)
	scanner.Split(scanOutputLines)

	for scanner.Scan() {
		line := scanner.Text()
		if !m.stderr.Add(line) {
			continue
		}
		slog.Debug("Melo worker output", "language", m.language, "line", line)
	}

	if err := scanner.Err(); err != nil {
		slog.Warn("Failed to read melo worker output", "language", m.language, "error", err)
		_, _ = io.Copy(io.Discard, m.proc.Stderr)
	}
}

func (m *Model) kill() error {
	_ = m.stdin.Close()
	if err := m.proc.Kill(); err != nil {
		return err
	}
	go func() { _ = m.proc.Wait() }()
	return nil
}
