// Package procenv reconstructs the environment of a login session from the
// live process table, seeded by the session's leader pid.
package procenv

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/slateview-cm/service/internal/logging"
)

var log = logging.L("procenv")

// Proc is one row of a process-table snapshot. A nil Environ means the
// environment block could not be read.
type Proc struct {
	PID     int32
	PPID    int32
	Environ []string
}

// Resolver resolves session environments from live process-table snapshots.
type Resolver struct {
	snapshot func() ([]Proc, error)
}

func NewResolver() *Resolver {
	return &Resolver{snapshot: Snapshot}
}

// Resolve reconstructs the environment visible to the process tree rooted
// at leaderPID. An empty map is a valid, common outcome (non-standard
// session types, unknown leader); it is never an error.
func (r *Resolver) Resolve(leaderPID int32) map[string]string {
	procs, err := r.snapshot()
	if err != nil {
		log.Error("process table snapshot failed", "error", err)
		return map[string]string{}
	}
	return Merge(leaderPID, procs)
}

// Merge scans the snapshot in table order, merging the variables of every
// process whose parent chain roots at leaderPID. The scan is a single
// forward pass over a growing root set: a process whose matching parent
// appears later in table order is missed. This order-dependent
// approximation is deliberate; duplicate keys resolve last-write-wins.
func Merge(leaderPID int32, procs []Proc) map[string]string {
	env := make(map[string]string)
	roots := map[int32]bool{leaderPID: true}

	for _, p := range procs {
		if p.PPID != leaderPID && !roots[p.PPID] {
			continue
		}
		if p.Environ == nil {
			continue
		}
		for _, entry := range p.Environ {
			key, value, _ := strings.Cut(entry, "=")
			env[key] = value
		}
		roots[p.PID] = true
	}

	return env
}

// Snapshot captures the process table once. Rows whose environment block
// is unreadable (typically permission or a raced exit) carry a nil
// Environ; per-process failures never fail the snapshot.
func Snapshot() ([]Proc, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	rows := make([]Proc, 0, len(procs))
	for _, p := range procs {
		ppid, err := p.Ppid()
		if err != nil {
			continue
		}
		rows = append(rows, Proc{
			PID:     p.Pid,
			PPID:    ppid,
			Environ: cleanEnviron(p.Environ()),
		})
	}
	return rows, nil
}

// cleanEnviron normalizes a raw environment block read. The environ file
// is NUL-terminated, so the split always yields a trailing empty entry;
// empty entries are dropped, but a readable block stays non-nil even when
// nothing remains, so the process still widens the root set.
func cleanEnviron(environ []string, err error) []string {
	if err != nil {
		return nil
	}
	entries := make([]string, 0, len(environ))
	for _, e := range environ {
		if e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}
