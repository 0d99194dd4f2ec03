package login1

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// EventType identifies session lifecycle notifications.
type EventType string

const (
	SessionAdded   EventType = "session-added"
	SessionRemoved EventType = "session-removed"
)

// Event is one session lifecycle notification from logind.
type Event struct {
	Type        EventType
	SessionPath string
}

// eventBuffer absorbs signals delivered while the consumer is still
// bootstrapping, so no notification is lost before the drain loop starts.
const eventBuffer = 32

// Monitor republishes logind SessionNew/SessionRemoved signals as typed
// events on a single-consumer channel, preserving delivery order.
type Monitor struct {
	conn *Conn
}

func NewMonitor(conn *Conn) *Monitor {
	return &Monitor{conn: conn}
}

// Start arms the signal match rules and returns the event channel. The
// channel is closed when ctx is cancelled or the bus connection drops.
func (m *Monitor) Start(ctx context.Context) (<-chan Event, error) {
	for _, member := range []string{"SessionNew", "SessionRemoved"} {
		err := m.conn.bus.AddMatchSignal(
			dbus.WithMatchSender(busName),
			dbus.WithMatchObjectPath(managerPath),
			dbus.WithMatchInterface(managerInterface),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			return nil, fmt.Errorf("login1: subscribe %s: %w", member, err)
		}
	}

	signals := make(chan *dbus.Signal, eventBuffer)
	m.conn.bus.Signal(signals)

	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		defer m.conn.bus.RemoveSignal(signals)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					log.Warn("bus signal stream closed")
					return
				}
				ev, ok := eventFromSignal(sig)
				if !ok {
					log.Debug("dropping unrecognized signal", "name", sig.Name)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// eventFromSignal decodes a logind manager signal. The signal body is
// (session id, session object path); only the path is carried forward.
func eventFromSignal(sig *dbus.Signal) (Event, bool) {
	var t EventType
	switch sig.Name {
	case signalSessionNew:
		t = SessionAdded
	case signalSessionRemove:
		t = SessionRemoved
	default:
		return Event{}, false
	}

	if len(sig.Body) < 2 {
		return Event{}, false
	}
	path, ok := sig.Body[1].(dbus.ObjectPath)
	if !ok {
		return Event{}, false
	}

	return Event{Type: t, SessionPath: string(path)}, true
}
