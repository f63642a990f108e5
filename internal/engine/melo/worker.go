package melo

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// WorkerScriptName is the file name of the bundled worker.
const WorkerScriptName = "melo_worker.py"

//go:embed melo_worker.py
var workerScript []byte

// InstallWorker writes the bundled worker script into dir and returns its path.
// An up-to-date copy is left untouched.
func InstallWorker(dir string) (string, error) {
	path := filepath.Join(dir, WorkerScriptName)

	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, workerScript) {
		return path, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create worker directory: %w", err)
	}
	if err := os.WriteFile(path, workerScript, 0o644); err != nil {
		return "", fmt.Errorf("failed to install melo worker: %w", err)
	}

	return path, nil
}

func workerDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "melo-api")
	}
	return filepath.Join(os.TempDir(), "melo-api")
}
