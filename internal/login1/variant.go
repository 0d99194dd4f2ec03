package login1

import "github.com/godbus/dbus/v5"

// Seat identifies the physical seat a session is attached to.
type Seat struct {
	ID   string
	Path string
}

// Value is the loosely-typed result of a session property read. A failed
// read yields an absent Value; callers must treat absence as "could not
// determine", never as a zero value.
type Value struct {
	v  any
	ok bool
}

func newValue(v any) Value {
	return Value{v: v, ok: true}
}

func (v Value) Absent() bool {
	return !v.ok
}

func (v Value) AsString() (string, bool) {
	if !v.ok {
		return "", false
	}
	switch s := v.v.(type) {
	case string:
		return s, true
	case dbus.ObjectPath:
		return string(s), true
	}
	return "", false
}

func (v Value) AsInt() (int32, bool) {
	if !v.ok {
		return 0, false
	}
	switch n := v.v.(type) {
	case int32:
		return n, true
	case uint32:
		return int32(n), true
	case int64:
		return int32(n), true
	case uint64:
		return int32(n), true
	}
	return 0, false
}

// AsSeat decodes the logind Seat property, a (so) struct of seat id and
// seat object path.
func (v Value) AsSeat() (Seat, bool) {
	if !v.ok {
		return Seat{}, false
	}
	fields, ok := v.v.([]any)
	if !ok || len(fields) != 2 {
		return Seat{}, false
	}
	id, ok := fields[0].(string)
	if !ok {
		return Seat{}, false
	}
	switch p := fields[1].(type) {
	case dbus.ObjectPath:
		return Seat{ID: id, Path: string(p)}, true
	case string:
		return Seat{ID: id, Path: p}, true
	}
	return Seat{}, false
}
