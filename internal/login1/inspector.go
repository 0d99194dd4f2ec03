package login1

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Inspector performs synchronous queries against logind.
type Inspector struct {
	conn *Conn
}

func NewInspector(conn *Conn) *Inspector {
	return &Inspector{conn: conn}
}

// Property reads one property of the given session object. Failures are
// logged and reported as an absent Value, never raised.
func (i *Inspector) Property(sessionPath, name string) Value {
	obj := i.conn.bus.Object(busName, dbus.ObjectPath(sessionPath))
	variant, err := obj.GetProperty(sessionInterface + "." + name)
	if err != nil {
		log.Error("could not query session property",
			"sessionPath", sessionPath,
			"property", name,
			"error", err,
		)
		return Value{}
	}
	return newValue(variant.Value())
}

// Display returns the session's graphical display, or "" for
// non-graphical sessions and failed reads.
func (i *Inspector) Display(sessionPath string) string {
	s, _ := i.Property(sessionPath, "Display").AsString()
	return s
}

// LeaderPID returns the pid of the session's leading process, or -1 when
// it cannot be determined.
func (i *Inspector) LeaderPID(sessionPath string) int32 {
	n, ok := i.Property(sessionPath, "Leader").AsInt()
	if !ok {
		return -1
	}
	return n
}

// Seat returns the session's seat, zero-valued when unknown.
func (i *Inspector) Seat(sessionPath string) Seat {
	seat, _ := i.Property(sessionPath, "Seat").AsSeat()
	return seat
}

// ID returns the logind session id, "" when unknown.
func (i *Inspector) ID(sessionPath string) string {
	s, _ := i.Property(sessionPath, "Id").AsString()
	return s
}

// listedSession mirrors one (susso) row of the ListSessions reply.
type listedSession struct {
	ID     string
	UID    uint32
	User   string
	SeatID string
	Path   dbus.ObjectPath
}

// ListSessions returns the object paths of all current sessions, in reply
// order. On transport failure the caller gets the error; it must treat it
// as "no sessions observed", not "zero sessions exist".
func (i *Inspector) ListSessions() ([]string, error) {
	var rows []listedSession
	if err := i.conn.manager.Call(managerInterface+".ListSessions", 0).Store(&rows); err != nil {
		log.Error("could not list sessions", "error", err)
		return nil, fmt.Errorf("login1: list sessions: %w", err)
	}

	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		paths = append(paths, string(row.Path))
	}
	return paths, nil
}
