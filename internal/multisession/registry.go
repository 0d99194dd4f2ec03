// Package multisession allocates logical session ids when several worker
// sessions share one physical seat/display. The allocation mechanism
// itself lives in an external multiplexer; this package guarantees the
// open/close pairing toward the supervisor.
package multisession

import (
	"errors"
	"fmt"
	"sync"

	"github.com/slateview-cm/service/internal/logging"
)

var log = logging.L("multisession")

var ErrUnknownSessionID = errors.New("multisession: unknown session id")

// Multiplexer is the external session-multiplexing collaborator.
type Multiplexer interface {
	OpenSession(sessionPath, display, seatPath string) (int, error)
	CloseSession(id int) error
}

// Registry tracks ids handed out by the multiplexer. An id returned by
// Open stays valid and exclusively owned until Close is called with it.
type Registry struct {
	mux Multiplexer

	mu     sync.Mutex
	active map[int]string // id -> sessionPath
}

func NewRegistry(mux Multiplexer) *Registry {
	return &Registry{
		mux:    mux,
		active: make(map[int]string),
	}
}

// Open allocates a fresh logical session id for the given physical
// session context.
func (r *Registry) Open(sessionPath, display, seatPath string) (int, error) {
	id, err := r.mux.OpenSession(sessionPath, display, seatPath)
	if err != nil {
		return 0, fmt.Errorf("multisession: open %s: %w", sessionPath, err)
	}

	r.mu.Lock()
	r.active[id] = sessionPath
	r.mu.Unlock()

	log.Info("opened multi-session id", "id", id, "sessionPath", sessionPath, "display", display, "seatPath", seatPath)
	return id, nil
}

// Close releases a previously opened id.
func (r *Registry) Close(id int) error {
	r.mu.Lock()
	sessionPath, ok := r.active[id]
	if ok {
		delete(r.active, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSessionID, id)
	}

	if err := r.mux.CloseSession(id); err != nil {
		return fmt.Errorf("multisession: close %d: %w", id, err)
	}

	log.Info("closed multi-session id", "id", id, "sessionPath", sessionPath)
	return nil
}

// ActiveCount returns the number of ids currently allocated.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
