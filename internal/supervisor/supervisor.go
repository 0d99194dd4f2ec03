// Package supervisor keeps one worker server process running per eligible
// graphical login session, driven by logind lifecycle events.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/slateview-cm/service/internal/login1"
	"github.com/slateview-cm/service/internal/logging"
	"github.com/slateview-cm/service/internal/worker"
)

var log = logging.L("supervisor")

// SessionIDEnvVar carries the allocated logical session id into the
// worker's environment in multi-session mode.
const SessionIDEnvVar = "SLATEVIEW_SESSION_ID"

// Inspector queries session properties from the session manager.
// Every accessor degrades to its sentinel on failure: "" for strings,
// -1 for the leader pid, a zero Seat.
type Inspector interface {
	ListSessions() ([]string, error)
	Display(sessionPath string) string
	LeaderPID(sessionPath string) int32
	Seat(sessionPath string) login1.Seat
	ID(sessionPath string) string
}

// Resolver reconstructs a session's environment from its leader pid.
type Resolver interface {
	Resolve(leaderPID int32) map[string]string
}

// Registry allocates logical session ids in multi-session mode.
type Registry interface {
	Open(sessionPath, display, seatPath string) (int, error)
	Close(id int) error
}

// Worker is a supervised server process bound to one session.
type Worker struct {
	SessionPath string
	Handle      worker.Handle
	Env         map[string]string
}

// Options are the injected capabilities. Registry may be nil unless
// MultiSession is set.
type Options struct {
	Inspector    Inspector
	Resolver     Resolver
	Registry     Registry
	Launcher     worker.Launcher
	MultiSession bool
	ServerPath   string
}

// Supervisor owns the session→worker map. All mutation happens on the
// single control flow that calls Bootstrap, Handle, and Shutdown; Run
// enforces that by draining events one at a time.
type Supervisor struct {
	opts    Options
	order   []string
	workers map[string]*Worker
}

func New(opts Options) *Supervisor {
	return &Supervisor{
		opts:    opts,
		workers: make(map[string]*Worker),
	}
}

// Bootstrap starts workers for all sessions already present at service
// start, in listing order. A listing failure is fatal: the service cannot
// proceed without an initial inventory.
func (s *Supervisor) Bootstrap() error {
	paths, err := s.opts.Inspector.ListSessions()
	if err != nil {
		return fmt.Errorf("supervisor: initial session inventory: %w", err)
	}

	for _, path := range paths {
		s.startServer(path)
	}
	return nil
}

// Run bootstraps, then drains lifecycle events until ctx is cancelled or
// the event channel closes, then tears everything down. Events delivered
// during bootstrap sit in the channel buffer; none are processed early.
func (s *Supervisor) Run(ctx context.Context, events <-chan login1.Event) error {
	if err := s.Bootstrap(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return nil
		case ev, ok := <-events:
			if !ok {
				s.Shutdown()
				return nil
			}
			s.Handle(ev)
		}
	}
}

// Handle processes one lifecycle event to completion.
func (s *Supervisor) Handle(ev login1.Event) {
	switch ev.Type {
	case login1.SessionAdded:
		s.startServer(ev.SessionPath)
	case login1.SessionRemoved:
		s.stopServer(ev.SessionPath)
	default:
		log.Warn("unknown session event", "type", ev.Type, "sessionPath", ev.SessionPath)
	}
}

// Shutdown tears down every remaining worker, first-recorded first.
// Idempotent; dead workers cannot block it.
func (s *Supervisor) Shutdown() {
	for len(s.order) > 0 {
		s.stopServer(s.order[0])
	}
}

// Sessions returns the session paths with a live worker, in start order.
func (s *Supervisor) Sessions() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Supervisor) startServer(sessionPath string) {
	if _, exists := s.workers[sessionPath]; exists {
		log.Debug("worker already running for session", "sessionPath", sessionPath)
		return
	}

	// Non-graphical sessions get no worker.
	display := s.opts.Inspector.Display(sessionPath)
	if display == "" {
		return
	}

	leader := s.opts.Inspector.LeaderPID(sessionPath)
	env := s.opts.Resolver.Resolve(leader)
	if len(env) == 0 {
		// Session not ready; no retry is scheduled. A later notification
		// for the same path is the only way it gets a worker.
		log.Debug("empty session environment, not starting worker",
			"sessionPath", sessionPath, "leaderPid", leader)
		return
	}

	seat := s.opts.Inspector.Seat(sessionPath)

	log.Info("starting server for new session",
		"sessionPath", sessionPath,
		"display", display,
		"seatPath", seat.Path,
	)

	if s.opts.MultiSession {
		id, err := s.opts.Registry.Open(sessionPath, display, seat.Path)
		if err != nil {
			log.Error("could not open multi-session id", "sessionPath", sessionPath, "error", err)
			return
		}
		env[SessionIDEnvVar] = strconv.Itoa(id)
	}

	handle, err := s.opts.Launcher.Start(s.opts.ServerPath, flattenEnv(env))
	if err != nil {
		// Recorded anyway: teardown tolerates a dead handle, and the
		// multi-session id stays attached to the entry until removal.
		log.Error("worker launch failed", "sessionPath", sessionPath, "serverPath", s.opts.ServerPath, "error", err)
	}

	s.workers[sessionPath] = &Worker{
		SessionPath: sessionPath,
		Handle:      handle,
		Env:         env,
	}
	s.order = append(s.order, sessionPath)
}

func (s *Supervisor) stopServer(sessionPath string) {
	w, ok := s.workers[sessionPath]
	if !ok {
		// Duplicate or unrelated notification.
		return
	}

	log.Info("stopping server for removed session", "sessionPath", sessionPath)

	// Bookkeeping first: the entry never outlives the teardown decision.
	delete(s.workers, sessionPath)
	for i, p := range s.order {
		if p == sessionPath {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	// The handle is released on every exit path, even if termination or
	// the registry close fails.
	defer w.Handle.Release()

	if err := w.Handle.Terminate(); err != nil {
		log.Error("worker termination failed", "sessionPath", sessionPath, "error", err)
	}

	if s.opts.MultiSession {
		s.closeSessionID(w)
	}
}

// closeSessionID reads the injected id back out of the worker's recorded
// environment and releases it.
func (s *Supervisor) closeSessionID(w *Worker) {
	raw, ok := w.Env[SessionIDEnvVar]
	if !ok {
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("recorded session id is not numeric", "sessionPath", w.SessionPath, "value", raw)
		return
	}
	if err := s.opts.Registry.Close(id); err != nil {
		log.Error("could not close multi-session id", "sessionPath", w.SessionPath, "id", id, "error", err)
	}
}

// flattenEnv renders the mapping as KEY=VALUE pairs, sorted for
// deterministic worker spawns.
func flattenEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
