// Package worker launches and terminates the per-session server
// executable. The worker is opaque: no health checks, no restarts.
package worker

import (
	"errors"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/slateview-cm/service/internal/logging"
)

var log = logging.L("worker")

// Handle is a spawned worker process. A handle obtained from a failed
// launch is non-running but still safe to terminate and release.
type Handle interface {
	// Terminate sends a graceful termination request. Terminating an
	// already-dead process is not an error.
	Terminate() error

	// Release reaps the process asynchronously and discards the handle.
	// Idempotent; safe on non-running handles.
	Release()

	// Running reports whether the process was successfully started.
	Running() bool
}

// Launcher starts worker processes.
type Launcher interface {
	// Start spawns the executable with env as its complete environment;
	// nothing is inherited. A handle is returned even when the spawn
	// fails, alongside the error.
	Start(path string, env []string) (Handle, error)
}

// ExecLauncher is the os/exec-backed Launcher.
type ExecLauncher struct{}

func NewLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

func (l *ExecLauncher) Start(path string, env []string) (Handle, error) {
	cmd := exec.Command(path)
	cmd.Env = env

	err := cmd.Start()
	if err != nil {
		log.Error("failed to start worker", "path", path, "error", err)
	}
	return &procHandle{cmd: cmd}, err
}

type procHandle struct {
	cmd  *exec.Cmd
	once sync.Once
}

func (h *procHandle) Terminate() error {
	if h.cmd.Process == nil {
		return nil
	}
	err := h.cmd.Process.Signal(unix.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (h *procHandle) Release() {
	h.once.Do(func() {
		if h.cmd.Process == nil {
			return
		}
		// Reap in the background so a worker that ignores SIGTERM cannot
		// block the supervisor's control flow.
		go func() {
			_ = h.cmd.Wait()
		}()
	})
}

func (h *procHandle) Running() bool {
	return h.cmd.Process != nil && h.cmd.ProcessState == nil
}
