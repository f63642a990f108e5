package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/engine"
	"github.com/ekisa-team/melo-api/internal/metrics"
)

// Entry is a loaded language: the engine model and its speaker table, always
// stored together.
type Entry struct {
	LoadedAt time.Time
	Model    engine.Model
	Speakers SpeakerTable
	Language string
}

// Cache holds loaded models per language for the process lifetime.
// Concurrent first loads of the same language share one engine call.
type Cache struct {
	engine  engine.Engine
	entries map[string]*Entry
	group   singleflight.Group
	device  config.Device
	mu      sync.RWMutex
}

// NewCache creates an empty cache loading models from eng on device.
func NewCache(eng engine.Engine, device config.Device) *Cache {
	return &Cache{
		engine:  eng,
		device:  device,
		entries: make(map[string]*Entry),
	}
}

// EnsureLoaded returns the cached entry for language, loading it on a miss.
// Load failures match ErrInvalidLanguage and leave the cache untouched.
func (c *Cache) EnsureLoaded(ctx context.Context, language string) (*Entry, error) {
	lang := config.NormalizeLanguage(language)
	if lang == "" {
		return nil, &LoadError{Language: lang, Err: errEmptyLanguage}
	}

	if entry, ok := c.Get(lang); ok {
		return entry, nil
	}

	v, err, shared := c.group.Do(lang, func() (any, error) {
		// A load that finished between the miss above and this call wins.
		if entry, ok := c.Get(lang); ok {
			return entry, nil
		}
		return c.load(context.WithoutCancel(ctx), lang)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		slog.Debug("Joined in-flight model load", "language", lang)
	}

	return v.(*Entry), nil
}

func (c *Cache) load(ctx context.Context, lang string) (*Entry, error) {
	slog.Info("Loading voice model", "language", lang, "engine", c.engine.Name(), "device", c.device)
	start := time.Now()

	m, err := c.engine.Load(ctx, lang, c.device)
	metrics.RecordModelLoad(lang, time.Since(start), err)
	if err != nil {
		slog.Error("Failed to load voice model", "language", lang, "error", err)
		return nil, &LoadError{Language: lang, Err: err}
	}

	entry := &Entry{
		Language: lang,
		Model:    m,
		Speakers: NewSpeakerTable(m.Speakers()),
		LoadedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries[lang] = entry
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetModelsLoaded(n)
	slog.Info("Voice model loaded",
		"language", lang,
		"speakers", len(entry.Speakers),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return entry, nil
}

// Get returns the cached entry for language without loading.
func (c *Cache) Get(language string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[config.NormalizeLanguage(language)]
	return entry, ok
}

// Languages returns the cached language codes in sorted order.
func (c *Cache) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	langs := make([]string, 0, len(c.entries))
	for lang := range c.entries {
		langs = append(langs, lang)
	}
	slices.Sort(langs)

	return langs
}

// Entries returns every cached entry sorted by language.
func (c *Cache) Entries() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		return strings.Compare(a.Language, b.Language)
	})

	return entries
}

// Len returns the number of cached languages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close closes every cached model and the engine, then empties the cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	var errs []error
	for lang, entry := range entries {
		if err := entry.Model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", lang, err))
		}
	}

	if err := c.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}

	metrics.SetModelsLoaded(0)
	return errors.Join(errs...)
}
