package pwm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDutyFor(t *testing.T) {
	servo := ChannelConfig{Channel: 1, Period: 20 * time.Millisecond, Wrap: 39062}

	tests := []struct {
		level uint32
		want  time.Duration
	}{
		{0, 0},
		{39062, 20 * time.Millisecond},
		{50000, 20 * time.Millisecond}, // clamped
		{1953, 999948 * time.Nanosecond},
	}
	for _, tt := range tests {
		if got := servo.DutyFor(tt.level); got != tt.want {
			t.Errorf("DutyFor(%d): got %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (ChannelConfig{Period: time.Millisecond, Wrap: 999}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (ChannelConfig{Period: 0, Wrap: 999}).Validate(); err == nil {
		t.Error("expected error for zero period")
	}
	if err := (ChannelConfig{Period: time.Millisecond}).Validate(); err == nil {
		t.Error("expected error for zero wrap")
	}
}

// fakeSysfs lays out a pwmchip directory with pre-exported channels.
func fakeSysfs(t *testing.T, channels ...int) string {
	t.Helper()
	root := t.TempDir()
	for _, ch := range channels {
		dir := filepath.Join(root, "pwmchip0", fmt.Sprintf("pwm%d", ch))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return root
}

func readAttr(t *testing.T, root string, ch int, attr string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "pwmchip0", fmt.Sprintf("pwm%d", ch), attr))
	if err != nil {
		t.Fatalf("read %s: %v", attr, err)
	}
	return strings.TrimSpace(string(b))
}

func TestSysfsConfigure(t *testing.T) {
	root := fakeSysfs(t, 0, 1)

	s, err := NewSysfs(root, 0, []ChannelConfig{
		{Channel: 0, Period: time.Millisecond, Wrap: 999},
		{Channel: 1, Period: 20 * time.Millisecond, Wrap: 39062},
	})
	if err != nil {
		t.Fatalf("NewSysfs: %v", err)
	}

	if got := readAttr(t, root, 0, "period"); got != "1000000" {
		t.Errorf("ch0 period: got %s, want 1000000", got)
	}
	if got := readAttr(t, root, 1, "period"); got != "20000000" {
		t.Errorf("ch1 period: got %s, want 20000000", got)
	}
	if got := readAttr(t, root, 0, "enable"); got != "0" {
		t.Errorf("ch0 enable: got %s, want 0", got)
	}

	if err := s.SetDutyCycle(0, 699); err != nil {
		t.Fatalf("SetDutyCycle: %v", err)
	}
	if got := readAttr(t, root, 0, "duty_cycle"); got != "699699" {
		t.Errorf("ch0 duty: got %s, want 699699", got)
	}

	if err := s.Enable(1, true); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := readAttr(t, root, 1, "enable"); got != "1" {
		t.Errorf("ch1 enable: got %s, want 1", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readAttr(t, root, 1, "enable"); got != "0" {
		t.Errorf("ch1 enable after close: got %s, want 0", got)
	}
}

func TestSysfsUnknownChannel(t *testing.T) {
	root := fakeSysfs(t, 0)
	s, err := NewSysfs(root, 0, []ChannelConfig{{Channel: 0, Period: time.Millisecond, Wrap: 999}})
	if err != nil {
		t.Fatalf("NewSysfs: %v", err)
	}
	if err := s.SetDutyCycle(3, 1); err == nil {
		t.Error("expected error for unconfigured channel")
	}
	if err := s.Enable(3, true); err == nil {
		t.Error("expected error for unconfigured channel")
	}
}

func TestFakeDriver(t *testing.T) {
	f := NewFakeDriver()
	f.SetDutyCycle(0, 10)
	f.SetDutyCycle(1, 20)
	f.SetDutyCycle(0, 30)
	f.Enable(1, true)

	if f.Levels[0] != 30 {
		t.Errorf("Levels[0]: got %d, want 30", f.Levels[0])
	}
	if f.Writes(0) != 2 {
		t.Errorf("Writes(0): got %d, want 2", f.Writes(0))
	}
	if !f.Enabled[1] {
		t.Error("expected channel 1 enabled")
	}
}
