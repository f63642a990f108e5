// Package enginetest provides engine doubles for tests.
package enginetest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/engine"
)

// WAV is a minimal WAV header used as canned synthesis output.
var WAV = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

// MockEngine is a testify mock of engine.Engine.
type MockEngine struct {
	mock.Mock
}

// Name implements engine.Engine.
func (m *MockEngine) Name() string {
	return "mock"
}

// Load implements engine.Engine.
func (m *MockEngine) Load(ctx context.Context, language string, device config.Device) (engine.Model, error) {
	args := m.Called(ctx, language, device)
	if model, ok := args.Get(0).(engine.Model); ok {
		return model, args.Error(1)
	}
	return nil, args.Error(1)
}

// Close implements engine.Engine.
func (m *MockEngine) Close() error {
	return nil
}

// StubModel is an engine.Model returning fixed audio or a fixed error.
type StubModel struct {
	Err    error
	Table  map[string]int
	Lang   string
	Audio  []byte
	calls  []Call
	mu     sync.Mutex
	closed atomic.Bool
}

// Call records the arguments of one Synthesize call.
type Call struct {
	Text      string
	SpeakerID int
	Speed     float64
}

// NewStubModel returns a model producing WAV for every request.
func NewStubModel(lang string, speakers map[string]int) *StubModel {
	return &StubModel{Lang: lang, Table: speakers, Audio: WAV}
}

// Language implements engine.Model.
func (s *StubModel) Language() string {
	return s.Lang
}

// Speakers implements engine.Model.
func (s *StubModel) Speakers() map[string]int {
	return s.Table
}

// Synthesize implements engine.Model.
func (s *StubModel) Synthesize(_ context.Context, text string, speakerID int, speed float64, w io.Writer) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Text: text, SpeakerID: speakerID, Speed: speed})
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	_, err := w.Write(s.Audio)
	return err
}

// Close implements engine.Model.
func (s *StubModel) Close() error {
	s.closed.Store(true)
	return nil
}

// Calls returns the recorded Synthesize calls.
func (s *StubModel) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Call(nil), s.calls...)
}

// Closed reports whether Close was called.
func (s *StubModel) Closed() bool {
	return s.closed.Load()
}
