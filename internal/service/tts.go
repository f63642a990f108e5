// Package service implements the text-to-speech use cases on top of the model cache.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/metrics"
	"github.com/ekisa-team/melo-api/internal/model"
)

const (
	// MinTextLength and MaxTextLength bound the text length in characters.
	MinTextLength = 1
	MaxTextLength = 2000

	warmupText = "warmup"
)

// SynthesisRequest is a synthesis call. Nil fields and a zero speed take the
// configured defaults; an explicit empty language or speaker is used as given.
type SynthesisRequest struct {
	Language *string
	Speaker  *string
	Text     string
	Speed    float64
}

// SynthesisResult is the audio produced for a request and the voice actually used.
type SynthesisResult struct {
	Audio     []byte
	Language  string
	Speaker   string
	SpeakerID int
	Duration  time.Duration
	Fallback  bool
}

// TTS is a service abstraction for text-to-speech.
type TTS struct {
	cache    *model.Cache
	defaults config.DefaultsConfig
}

// NewTTS creates a new TTS service.
func NewTTS(cache *model.Cache, defaults config.DefaultsConfig) *TTS {
	defaults.Language = config.NormalizeLanguage(defaults.Language)

	return &TTS{
		cache:    cache,
		defaults: defaults,
	}
}

// Defaults returns the values applied to empty request fields.
func (s *TTS) Defaults() config.DefaultsConfig {
	return s.defaults
}

// Synthesize loads the requested language if needed, resolves the speaker and
// renders text to WAV. A speaker missing from the language's table is replaced
// by the table's fallback speaker; the result reports the substitution.
func (s *TTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	language, requested, speed := s.withDefaults(req)
	if err := validate(req.Text, speed); err != nil {
		return nil, err
	}

	entry, err := s.cache.EnsureLoaded(ctx, language)
	if err != nil {
		return nil, err
	}

	speaker, speakerID, fallback, err := resolveSpeaker(entry, requested)
	if err != nil {
		return nil, err
	}

	if fallback {
		metrics.RecordSpeakerFallback(entry.Language)
		slog.Info("Requested speaker not available, using fallback",
			"language", entry.Language,
			"requested", requested,
			"speaker", speaker,
		)
	}

	var buf bytes.Buffer
	start := time.Now()
	err = entry.Model.Synthesize(ctx, req.Text, speakerID, speed, &buf)
	elapsed := time.Since(start)
	metrics.RecordSynthesis(entry.Language, elapsed, buf.Len(), err)
	if err != nil {
		slog.Error("Failed to synthesize speech", "language", entry.Language, "speaker", speaker, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	return &SynthesisResult{
		Audio:     buf.Bytes(),
		Language:  entry.Language,
		Speaker:   speaker,
		SpeakerID: speakerID,
		Duration:  elapsed,
		Fallback:  fallback,
	}, nil
}

// Voices returns every cached language with its sorted speaker names.
// The default language is loaded first so the listing is never empty.
func (s *TTS) Voices(ctx context.Context) (map[string][]string, error) {
	if _, err := s.cache.EnsureLoaded(ctx, s.defaults.Language); err != nil {
		return nil, err
	}

	entries := s.cache.Entries()
	voices := make(map[string][]string, len(entries))
	for _, entry := range entries {
		voices[entry.Language] = entry.Speakers.Names()
	}

	return voices, nil
}

// Warmup loads every language and runs one throwaway synthesis per language
// so that lazy engine initialization happens before traffic arrives.
// Load failures are returned; synthesis failures are only logged.
func (s *TTS) Warmup(ctx context.Context, languages []string) error {
	for _, lang := range languages {
		entry, err := s.cache.EnsureLoaded(ctx, lang)
		if err != nil {
			return err
		}

		s.prime(ctx, entry)
	}

	return nil
}

func (s *TTS) prime(ctx context.Context, entry *model.Entry) {
	speaker := s.defaults.Speaker
	speakerID, ok := entry.Speakers.Lookup(speaker)
	if !ok {
		speaker, speakerID, ok = entry.Speakers.Fallback()
	}
	if !ok {
		slog.Warn("Skipping warmup, language has no speakers", "language", entry.Language)
		return
	}

	start := time.Now()
	err := entry.Model.Synthesize(ctx, warmupText, speakerID, s.defaults.Speed, &bytes.Buffer{})
	metrics.RecordWarmup(entry.Language, err)
	if err != nil {
		slog.Warn("Warmup synthesis failed", "language", entry.Language, "speaker", speaker, "error", err)
		return
	}

	slog.Info("Warmup completed", "language", entry.Language, "speaker", speaker, "duration", time.Since(start).Round(time.Millisecond))
}

func (s *TTS) withDefaults(req SynthesisRequest) (language, speaker string, speed float64) {
	language, speaker, speed = s.defaults.Language, s.defaults.Speaker, req.Speed
	if req.Language != nil {
		language = config.NormalizeLanguage(*req.Language)
	}
	if req.Speaker != nil {
		speaker = *req.Speaker
	}
	if speed == 0 {
		speed = s.defaults.Speed
	}

	return language, speaker, speed
}

func validate(text string, speed float64) error {
	if n := utf8.RuneCountInString(text); n < MinTextLength || n > MaxTextLength {
		return fmt.Errorf("%w: text length %d out of range [%d, %d]", ErrInvalidRequest, n, MinTextLength, MaxTextLength)
	}

	if speed < config.MinSpeed || speed > config.MaxSpeed {
		return fmt.Errorf("%w: speed %.2f out of range [%.1f, %.1f]", ErrInvalidRequest, speed, config.MinSpeed, config.MaxSpeed)
	}

	return nil
}

// resolveSpeaker returns the requested speaker or the table's fallback.
func resolveSpeaker(entry *model.Entry, requested string) (name string, id int, fallback bool, err error) {
	if id, ok := entry.Speakers.Lookup(requested); ok {
		return requested, id, false, nil
	}

	name, id, ok := entry.Speakers.Fallback()
	if !ok {
		return "", 0, false, fmt.Errorf("%w for language '%s'", ErrNoSpeakers, entry.Language)
	}

	return name, id, true, nil
}
