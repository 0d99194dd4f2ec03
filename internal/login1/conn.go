// Package login1 talks to systemd-logind over the system bus: session
// enumeration, per-session property reads, and session lifecycle signals.
package login1

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/slateview-cm/service/internal/logging"
)

var log = logging.L("login1")

const (
	busName             = "org.freedesktop.login1"
	managerPath         = dbus.ObjectPath("/org/freedesktop/login1")
	managerInterface    = "org.freedesktop.login1.Manager"
	sessionInterface    = "org.freedesktop.login1.Session"
	signalSessionNew    = managerInterface + ".SessionNew"
	signalSessionRemove = managerInterface + ".SessionRemoved"
)

// Conn is a private system-bus connection plus the logind manager object.
type Conn struct {
	bus     *dbus.Conn
	manager dbus.BusObject
}

// Connect opens a private connection to the system bus.
func Connect() (*Conn, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("login1: connect system bus: %w", err)
	}
	return &Conn{
		bus:     bus,
		manager: bus.Object(busName, managerPath),
	}, nil
}

func (c *Conn) Close() error {
	return c.bus.Close()
}
