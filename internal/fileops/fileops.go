// Package fileops keeps the PID file that stops two overlays from running at
// once. Nothing here outlives the process.
package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dooshek/nicoverlay/internal/logger"
)

// ErrProcessAlreadyRunning is returned when another overlay owns the PID file
var ErrProcessAlreadyRunning = errors.New("nicoverlay process is already running")

const pidFilename = "nicoverlay.pid"

// FileOps manages the files kept in the nicoverlay runtime directory
type FileOps interface {
	// GetRuntimeDir returns the full path to the runtime directory
	GetRuntimeDir() string

	// EnsureDirectories creates the runtime directory if it doesn't exist
	EnsureDirectories() error

	// SavePID saves the current process ID to a file
	SavePID() error

	// CheckPID returns ErrProcessAlreadyRunning if another instance is alive
	CheckPID() error

	// CleanupPID removes the PID file
	CleanupPID() error

	// HandleExit removes the PID file and logs on failure
	HandleExit()
}

// DefaultFileOps implements FileOps on a plain directory
type DefaultFileOps struct {
	runtimeDir string
}

// NewDefaultFileOps uses $XDG_RUNTIME_DIR/nicoverlay, falling back to the
// temp directory
func NewDefaultFileOps() (*DefaultFileOps, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	if base == "" {
		return nil, fmt.Errorf("no runtime directory available")
	}
	return NewFileOps(filepath.Join(base, "nicoverlay")), nil
}

// NewFileOps roots all files in dir
func NewFileOps(dir string) *DefaultFileOps {
	return &DefaultFileOps{runtimeDir: dir}
}

func (f *DefaultFileOps) GetRuntimeDir() string {
	return f.runtimeDir
}

func (f *DefaultFileOps) EnsureDirectories() error {
	if err := os.MkdirAll(f.runtimeDir, 0o700); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return nil
}

func (f *DefaultFileOps) getPIDFilePath() string {
	return filepath.Join(f.runtimeDir, pidFilename)
}

func (f *DefaultFileOps) SavePID() error {
	pid := os.Getpid()
	return os.WriteFile(f.getPIDFilePath(), []byte(strconv.Itoa(pid)), 0o644)
}

func (f *DefaultFileOps) CheckPID() error {
	data, err := os.ReadFile(f.getPIDFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid == os.Getpid() {
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	// signal 0 only probes for existence
	if err := process.Signal(syscall.Signal(0)); err == nil {
		return ErrProcessAlreadyRunning
	}

	logger.Debug("Found stale PID file, will be overwritten")
	return nil
}

func (f *DefaultFileOps) CleanupPID() error {
	return os.Remove(f.getPIDFilePath())
}

func (f *DefaultFileOps) HandleExit() {
	if err := f.CleanupPID(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error("Failed to cleanup PID file on exit", err)
	}
}
