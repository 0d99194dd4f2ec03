package supervisor

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/slateview-cm/service/internal/login1"
	"github.com/slateview-cm/service/internal/worker"
)

const (
	pathGraphical = "/org/freedesktop/login1/session/_32"
	pathConsole   = "/org/freedesktop/login1/session/_33"
)

type fakeInspector struct {
	listed   []string
	listErr  error
	displays map[string]string
	leaders  map[string]int32
	seats    map[string]login1.Seat
}

func (f *fakeInspector) ListSessions() ([]string, error) {
	return f.listed, f.listErr
}

func (f *fakeInspector) Display(p string) string { return f.displays[p] }

func (f *fakeInspector) LeaderPID(p string) int32 {
	if pid, ok := f.leaders[p]; ok {
		return pid
	}
	return -1
}

func (f *fakeInspector) Seat(p string) login1.Seat { return f.seats[p] }

func (f *fakeInspector) ID(p string) string { return p }

type fakeResolver struct {
	envs map[int32]map[string]string
}

func (f *fakeResolver) Resolve(leaderPID int32) map[string]string {
	out := make(map[string]string)
	for k, v := range f.envs[leaderPID] {
		out[k] = v
	}
	return out
}

type fakeHandle struct {
	terminated int
	released   int
	termErr    error
}

func (h *fakeHandle) Terminate() error {
	h.terminated++
	return h.termErr
}

func (h *fakeHandle) Release() { h.released++ }

func (h *fakeHandle) Running() bool { return h.terminated == 0 }

type launch struct {
	path string
	env  []string
}

type fakeLauncher struct {
	launches []launch
	handles  []*fakeHandle
	startErr error
}

func (l *fakeLauncher) Start(path string, env []string) (worker.Handle, error) {
	l.launches = append(l.launches, launch{path: path, env: env})
	h := &fakeHandle{}
	l.handles = append(l.handles, h)
	return h, l.startErr
}

type fakeRegistry struct {
	next   int
	opened []int
	closed []int
}

func (r *fakeRegistry) Open(sessionPath, display, seatPath string) (int, error) {
	r.next++
	r.opened = append(r.opened, r.next)
	return r.next, nil
}

func (r *fakeRegistry) Close(id int) error {
	r.closed = append(r.closed, id)
	return nil
}

func newFixture(t *testing.T, multiSession bool) (*Supervisor, *fakeInspector, *fakeLauncher, *fakeRegistry) {
	t.Helper()

	inspector := &fakeInspector{
		listed: []string{pathConsole, pathGraphical},
		displays: map[string]string{
			pathGraphical: ":0",
			pathConsole:   "",
		},
		leaders: map[string]int32{
			pathGraphical: 1407,
			pathConsole:   1408,
		},
		seats: map[string]login1.Seat{
			pathGraphical: {ID: "seat0", Path: "/org/freedesktop/login1/seat/seat0"},
		},
	}
	resolver := &fakeResolver{
		envs: map[int32]map[string]string{
			1407: {"DISPLAY": ":0", "XAUTHORITY": "/home/kim/.Xauthority"},
		},
	}
	launcher := &fakeLauncher{}
	registry := &fakeRegistry{}

	sup := New(Options{
		Inspector:    inspector,
		Resolver:     resolver,
		Registry:     registry,
		Launcher:     launcher,
		MultiSession: multiSession,
		ServerPath:   "/usr/bin/slateview-server",
	})
	return sup, inspector, launcher, registry
}

func TestBootstrapStartsOnlyEligibleSessions(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	if err := sup.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if got := sup.Sessions(); !slices.Equal(got, []string{pathGraphical}) {
		t.Errorf("Sessions = %v, want only the graphical session", got)
	}
	if len(launcher.launches) != 1 {
		t.Fatalf("launches = %d, want 1", len(launcher.launches))
	}
	if launcher.launches[0].path != "/usr/bin/slateview-server" {
		t.Errorf("launched %s", launcher.launches[0].path)
	}
	if !slices.Contains(launcher.launches[0].env, "DISPLAY=:0") {
		t.Errorf("worker env missing DISPLAY: %v", launcher.launches[0].env)
	}
}

func TestBootstrapListFailureIsFatal(t *testing.T) {
	sup, inspector, launcher, _ := newFixture(t, false)
	inspector.listErr = errors.New("bus unavailable")

	if err := sup.Bootstrap(); err == nil {
		t.Fatal("Bootstrap must fail when the session listing fails")
	}
	if len(launcher.launches) != 0 {
		t.Error("no worker may start after a failed inventory")
	}
}

func TestEmptyDisplayNeverGetsWorker(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathConsole})

	if len(sup.Sessions()) != 0 || len(launcher.launches) != 0 {
		t.Error("non-graphical session must not create a worker entry")
	}
}

func TestEmptyEnvironmentNeverGetsWorker(t *testing.T) {
	sup, inspector, launcher, _ := newFixture(t, false)
	inspector.displays["/s-new"] = ":1"
	inspector.leaders["/s-new"] = 9999 // resolver knows nothing about it

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: "/s-new"})

	if len(sup.Sessions()) != 0 || len(launcher.launches) != 0 {
		t.Error("session with empty resolved environment must be skipped")
	}
}

func TestDuplicateAddedIgnored(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})
	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})

	if got := len(sup.Sessions()); got != 1 {
		t.Errorf("entries = %d, want 1 (at most one worker per session path)", got)
	}
	if len(launcher.launches) != 1 {
		t.Errorf("launches = %d, want 1", len(launcher.launches))
	}
}

func TestRemovedUnknownSessionIsNoop(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})
	sup.Handle(login1.Event{Type: login1.SessionRemoved, SessionPath: "/never-seen"})

	if got := len(sup.Sessions()); got != 1 {
		t.Errorf("entries = %d, map must be unchanged", got)
	}
	if launcher.handles[0].terminated != 0 {
		t.Error("no termination may be issued for an unknown session")
	}
}

func TestRemovedTerminatesAndForgets(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})
	sup.Handle(login1.Event{Type: login1.SessionRemoved, SessionPath: pathGraphical})

	if len(sup.Sessions()) != 0 {
		t.Error("entry must be removed")
	}
	h := launcher.handles[0]
	if h.terminated != 1 {
		t.Errorf("terminated = %d, want 1", h.terminated)
	}
	if h.released != 1 {
		t.Errorf("released = %d, want 1", h.released)
	}
}

func TestShutdownDrainsAllEntries(t *testing.T) {
	sup, inspector, launcher, _ := newFixture(t, false)
	resolverEnvs := sup.opts.Resolver.(*fakeResolver).envs
	for i, path := range []string{"/s1", "/s2", "/s3"} {
		pid := int32(2000 + i)
		inspector.displays[path] = ":0"
		inspector.leaders[path] = pid
		resolverEnvs[pid] = map[string]string{"DISPLAY": ":0"}
		sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: path})
	}

	sup.Shutdown()
	sup.Shutdown() // idempotent

	if len(sup.Sessions()) != 0 {
		t.Errorf("entries remain after shutdown: %v", sup.Sessions())
	}
	for i, h := range launcher.handles {
		if h.terminated != 1 {
			t.Errorf("handle %d terminated %d times, want exactly 1", i, h.terminated)
		}
		if h.released != 1 {
			t.Errorf("handle %d released %d times, want exactly 1", i, h.released)
		}
	}
}

func TestMultiSessionInjectsAllocatedID(t *testing.T) {
	sup, _, launcher, registry := newFixture(t, true)

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})

	if len(registry.opened) != 1 {
		t.Fatalf("registry opened %d ids, want 1", len(registry.opened))
	}
	if !slices.Contains(launcher.launches[0].env, "SLATEVIEW_SESSION_ID=1") {
		t.Errorf("worker env missing injected session id: %v", launcher.launches[0].env)
	}

	sup.Handle(login1.Event{Type: login1.SessionRemoved, SessionPath: pathGraphical})

	if !slices.Equal(registry.closed, []int{1}) {
		t.Errorf("registry closed %v, want [1]", registry.closed)
	}
}

func TestLaunchFailureStillRecordsEntry(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)
	launcher.startErr = errors.New("no such file")

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})

	if got := sup.Sessions(); !slices.Equal(got, []string{pathGraphical}) {
		t.Fatalf("entry must be recorded against the dead handle, got %v", got)
	}

	// Teardown must tolerate terminating the dead handle.
	sup.Handle(login1.Event{Type: login1.SessionRemoved, SessionPath: pathGraphical})
	if len(sup.Sessions()) != 0 {
		t.Error("entry must be removable")
	}
	if launcher.handles[0].released != 1 {
		t.Error("dead handle must still be released")
	}
}

func TestTerminationFailureStillReleases(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	sup.Handle(login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical})
	launcher.handles[0].termErr = errors.New("gone")

	sup.Handle(login1.Event{Type: login1.SessionRemoved, SessionPath: pathGraphical})

	if len(sup.Sessions()) != 0 {
		t.Error("entry must be removed even when termination fails")
	}
	if launcher.handles[0].released != 1 {
		t.Error("handle must be released on every exit path")
	}
}

func TestRunDrainsChannelThenShutsDown(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	events := make(chan login1.Event, 4)
	events <- login1.Event{Type: login1.SessionAdded, SessionPath: pathGraphical} // duplicate of bootstrap
	close(events)

	if err := sup.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Bootstrap started the graphical session; the queued duplicate was
	// ignored; channel close triggered the shutdown drain.
	if len(launcher.launches) != 1 {
		t.Errorf("launches = %d, want 1", len(launcher.launches))
	}
	if len(sup.Sessions()) != 0 {
		t.Errorf("entries remain after Run returned: %v", sup.Sessions())
	}
	if launcher.handles[0].terminated != 1 {
		t.Errorf("bootstrap worker terminated %d times, want 1", launcher.handles[0].terminated)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sup, _, launcher, _ := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan login1.Event)
	if err := sup.Run(ctx, events); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sup.Sessions()) != 0 {
		t.Error("cancelled Run must drain all workers")
	}
	if len(launcher.handles) == 1 && launcher.handles[0].terminated != 1 {
		t.Error("bootstrap worker not terminated on cancel")
	}
}
