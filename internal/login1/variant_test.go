package login1

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestAbsentValue(t *testing.T) {
	var v Value

	if !v.Absent() {
		t.Error("zero Value should be absent")
	}
	if _, ok := v.AsString(); ok {
		t.Error("AsString on absent value should fail")
	}
	if _, ok := v.AsInt(); ok {
		t.Error("AsInt on absent value should fail")
	}
	if _, ok := v.AsSeat(); ok {
		t.Error("AsSeat on absent value should fail")
	}
}

func TestAsString(t *testing.T) {
	if s, ok := newValue(":0").AsString(); !ok || s != ":0" {
		t.Errorf("AsString(string) = %q, %v", s, ok)
	}
	if s, ok := newValue(dbus.ObjectPath("/org/freedesktop/login1/seat/seat0")).AsString(); !ok || s != "/org/freedesktop/login1/seat/seat0" {
		t.Errorf("AsString(ObjectPath) = %q, %v", s, ok)
	}
	if _, ok := newValue(uint32(7)).AsString(); ok {
		t.Error("AsString on integer should fail")
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in   any
		want int32
		ok   bool
	}{
		{uint32(1407), 1407, true},
		{int32(-1), -1, true},
		{int64(42), 42, true},
		{uint64(42), 42, true},
		{"1407", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := newValue(tt.in).AsInt()
		if got != tt.want || ok != tt.ok {
			t.Errorf("AsInt(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAsSeat(t *testing.T) {
	v := newValue([]any{"seat0", dbus.ObjectPath("/org/freedesktop/login1/seat/seat0")})
	seat, ok := v.AsSeat()
	if !ok {
		t.Fatal("AsSeat failed on valid struct")
	}
	if seat.ID != "seat0" {
		t.Errorf("seat ID = %q", seat.ID)
	}
	if seat.Path != "/org/freedesktop/login1/seat/seat0" {
		t.Errorf("seat path = %q", seat.Path)
	}
}

func TestAsSeatMalformed(t *testing.T) {
	tests := []any{
		"seat0",
		[]any{"seat0"},
		[]any{7, dbus.ObjectPath("/x")},
		[]any{"seat0", 7},
	}
	for _, in := range tests {
		if _, ok := newValue(in).AsSeat(); ok {
			t.Errorf("AsSeat(%v) unexpectedly succeeded", in)
		}
	}
}
