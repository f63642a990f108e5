package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/config/source"
	"github.com/ekisa-team/melo-api/internal/engine"
	"github.com/ekisa-team/melo-api/internal/engine/melo"
	"github.com/ekisa-team/melo-api/internal/engine/piper"
	"github.com/ekisa-team/melo-api/internal/env"
	"github.com/ekisa-team/melo-api/internal/envvar"
	"github.com/ekisa-team/melo-api/internal/logger"
	"github.com/ekisa-team/melo-api/internal/metrics"
	"github.com/ekisa-team/melo-api/internal/model"
	httpserver "github.com/ekisa-team/melo-api/internal/server/http"
	"github.com/ekisa-team/melo-api/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", 0, "HTTP port to listen on (overrides config)")
		flagConfigPath = flag.String("config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagWatch      = flag.Bool("watch", true, "Reload the config file when it changes")
	)
	flag.Parse()

	environment := env.FromEnv()

	logFile, ok := os.LookupEnv(envvar.MeloLogFile)
	if !ok {
		logFile = "logs/melo-api.log"
	}

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(logFile != ""),
			logger.WithLogFile(logFile),
		),
	)

	if err := run(*flagConfigPath, *flagHTTPPort, *flagWatch); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort int, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if httpPort > 0 {
		cfg.Server.HTTPPort = httpPort
	}

	slog.Info("Config loaded successfully",
		"config", configPath,
		"engine", cfg.Engine.Provider,
		"device", cfg.Engine.Device,
		"default_language", cfg.Defaults.Language,
		"default_speaker", cfg.Defaults.Speaker,
		"preload", cfg.Preload,
	)

	eng, err := engines().New(cfg)
	if err != nil {
		return err
	}

	cache := model.NewCache(eng, cfg.Engine.Device)
	defer func() {
		if err := cache.Close(); err != nil {
			slog.Warn("Failed to close models", "error", err)
		}
	}()

	tts := service.NewTTS(cache, cfg.Defaults)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := tts.Warmup(ctx, cfg.Preload); err != nil {
		return fmt.Errorf("warmup failed: %w", err)
	}
	slog.Info("Warmup finished", "languages", cache.Languages(), "duration", time.Since(start).Round(time.Millisecond))

	if watch {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config, err error) {
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				return
			}
			go warmNewLanguages(ctx, tts, cache, next.Preload)
		})
		if err != nil {
			slog.Warn("Config watcher disabled", "config", configPath, "error", err)
		} else {
			defer watcher.Close()
		}
	}

	srv := httpserver.New(cfg.Server.HTTPPort, tts, metrics.NewRegistry())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return <-errCh
}

func engines() *engine.Registry {
	reg := engine.NewRegistry()
	reg.Register(config.EngineMelo, func(cfg *config.Config) (engine.Engine, error) {
		return melo.New(cfg.Melo)
	})
	reg.Register(config.EnginePiper, func(cfg *config.Config) (engine.Engine, error) {
		downloader := source.NewHuggingFaceDownloader(engine.ExecCommandRunner{})
		return piper.New(cfg.Piper, cfg.Storage.ModelsDir, piper.WithDownloader(downloader))
	})

	return reg
}

// warmNewLanguages warms preload languages added by a config reload.
// Defaults and engine settings only take effect on restart.
func warmNewLanguages(ctx context.Context, tts *service.TTS, cache *model.Cache, preload []string) {
	var added []string
	for _, lang := range preload {
		if _, ok := cache.Get(lang); !ok && !slices.Contains(added, lang) {
			added = append(added, lang)
		}
	}
	if len(added) == 0 {
		return
	}

	slog.Info("Warming languages added to config", "languages", added)
	if err := tts.Warmup(ctx, added); err != nil {
		slog.Error("Failed to warm reloaded languages", "error", err)
	}
}
