package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ekisa-team/melo-api/internal/config"
	"github.com/ekisa-team/melo-api/internal/engine"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	markerFilename    = ".melo-api-downloaded"
	hfBinary          = "hf"
)

// HuggingFaceDownloader downloads a voice repository with the `hf` CLI.
type HuggingFaceDownloader struct {
	runner     engine.CommandRunner
	binary     string
	retryDelay time.Duration
	maxRetries int
}

// NewHuggingFaceDownloader creates a downloader using runner to invoke `hf`.
func NewHuggingFaceDownloader(runner engine.CommandRunner) *HuggingFaceDownloader {
	if runner == nil {
		runner = engine.ExecCommandRunner{}
	}

	return &HuggingFaceDownloader{
		runner:     runner,
		binary:     hfBinary,
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
}

// Download downloads a Hugging Face repository into targetDir/<repo>.
// A marker file records repo and revision so unchanged voices are not fetched twice.
func (d *HuggingFaceDownloader) Download(ctx context.Context, voice *config.VoiceConfig, targetDir string) (string, bool, error) {
	src, err := voice.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get voice source: %w", err)
	}

	hfSource, ok := src.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	repo := strings.TrimSpace(hfSource.Repo)
	if repo == "" {
		return "", false, errors.New("invalid repo name: empty")
	}

	fullPath := filepath.Join(targetDir, repo)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := d.markerContent(hfSource)

	if !hfSource.ForceDownload && !d.shouldRedownload(markerPath, markerContent) {
		slog.Debug("Voice already downloaded, skipping", "repo", repo, "path", fullPath)
		return fullPath, true, nil
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := d.buildArgs(hfSource, repo, fullPath)

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading voice", "repo", repo, "path", fullPath)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		_, stderr, err := d.runner.Run(attemptCtx, d.binary, args, nil)
		attemptErr := attemptCtx.Err()
		cancel()

		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Voice downloaded successfully", "repo", repo, "path", fullPath, "attempt", attempt+1)
			return fullPath, false, nil
		}

		lastErr = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(stderr)))
		slog.Error("Failed to download voice", "repo", repo, "attempt", attempt+1, "error", lastErr)

		if errors.Is(ctx.Err(), context.Canceled) {
			return "", false, fmt.Errorf("download canceled: %w", err)
		}
		if errors.Is(attemptErr, context.DeadlineExceeded) {
			slog.Warn("Download timed out", "repo", repo, "attempt", attempt+1)
		}
	}

	return "", false, fmt.Errorf("failed to download %s after %d attempts: %w", repo, d.maxRetries, lastErr)
}

func (d *HuggingFaceDownloader) buildArgs(src config.HuggingFaceSource, repo, dir string) []string {
	args := []string{"download", repo, "--local-dir", dir}

	if src.Revision != "" {
		args = append(args, "--revision", src.Revision)
	}
	if src.RepoType != "" {
		args = append(args, "--repo-type", src.RepoType)
	}
	for _, inc := range src.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range src.Exclude {
		args = append(args, "--exclude", exc)
	}
	if src.ForceDownload {
		args = append(args, "--force-download")
	}
	if src.Token != "" {
		args = append(args, "--token", src.Token)
	}
	if src.MaxWorkers > 0 {
		args = append(args, "--max-workers", strconv.Itoa(src.MaxWorkers))
	}

	return args
}

// markerContent is compared on later runs to detect config changes.
func (d *HuggingFaceDownloader) markerContent(src config.HuggingFaceSource) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\ninclude: %s\n", src.Repo, src.Revision, strings.Join(src.Include, ","))
}

func (d *HuggingFaceDownloader) shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Voice config changed (marker mismatch), will redownload", "marker_path", markerPath)
		return true
	}

	return false
}
