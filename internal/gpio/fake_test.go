package gpio

import (
	"errors"
	"testing"
)

func TestFakePinsDefaultHigh(t *testing.T) {
	f := NewFakePins()

	v, err := f.Read(17)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Error("unset pin should read high")
	}
}

func TestFakePinsSet(t *testing.T) {
	f := NewFakePins()
	f.Set(17, false)

	v, _ := f.Read(17)
	if v {
		t.Error("expected low after Set(false)")
	}
}

func TestFakePinsScript(t *testing.T) {
	f := NewFakePins()
	f.Script(11, false, true, false)

	want := []bool{false, true, false, false}
	for i, w := range want {
		v, err := f.Read(11)
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if v != w {
			t.Errorf("read %d: got %v, want %v", i, v, w)
		}
	}
}

func TestFakePinsWrites(t *testing.T) {
	f := NewFakePins()

	f.Write(12, true)
	f.Write(13, false)
	f.Write(12, false)

	if len(f.Writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(f.Writes))
	}
	got := f.WritesTo(12)
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("WritesTo(12): got %v, want [true false]", got)
	}
	if f.Level(12) {
		t.Error("Level(12) should be low after the last write")
	}
}

func TestFakePinsReadError(t *testing.T) {
	f := NewFakePins()
	f.ReadErrors[17] = errors.New("simulated error")

	_, err := f.Read(17)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakePinsWriteError(t *testing.T) {
	f := NewFakePins()
	f.WriteError = errors.New("bus fault")

	if err := f.Write(12, true); err == nil {
		t.Error("expected write error")
	}
	if len(f.Writes) != 0 {
		t.Error("failed write should not be recorded")
	}
}

func TestFakePinsCloseAndReset(t *testing.T) {
	f := NewFakePins()
	f.Write(26, true)
	f.Script(11, true)

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}

	f.Reset()
	if f.Closed || len(f.Writes) != 0 {
		t.Error("Reset should clear writes and closed flag")
	}
	f.Set(11, false)
	if v, _ := f.Read(11); v {
		t.Error("script should be cleared by Reset")
	}
}

func TestModeString(t *testing.T) {
	if Output.String() != "output" {
		t.Errorf("got %q, want output", Output.String())
	}
	if InputPullUp.String() != "input-pull-up" {
		t.Errorf("got %q, want input-pull-up", InputPullUp.String())
	}
}
