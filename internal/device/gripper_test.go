package device

import (
	"testing"
	"time"

	"github.com/sweeney/pickplace/internal/pwm"
)

var testGripper = GripperConfig{
	Channel:  1,
	Period:   20 * time.Millisecond,
	Wrap:     39062,
	MinPulse: 500 * time.Microsecond,
	MaxPulse: 2500 * time.Microsecond,
}

func newTestGripper() (*Gripper, *pwm.FakeDriver) {
	drv := pwm.NewFakeDriver()
	g := NewGripper(drv, testGripper)
	g.Init(90)
	return g, drv
}

func TestGripperPulseMapping(t *testing.T) {
	g, _ := newTestGripper()

	tests := []struct {
		angle float64
		pulse time.Duration
		level uint32
	}{
		{0, 500 * time.Microsecond, 976},
		{90, 1500 * time.Microsecond, 2929},
		{180, 2500 * time.Microsecond, 4882},
		{-20, 500 * time.Microsecond, 976},
		{200, 2500 * time.Microsecond, 4882},
	}
	for _, tt := range tests {
		if got := g.PulseFor(tt.angle); got != tt.pulse {
			t.Errorf("PulseFor(%v): got %v, want %v", tt.angle, got, tt.pulse)
		}
		if got := g.LevelFor(tt.angle); got != tt.level {
			t.Errorf("LevelFor(%v): got %d, want %d", tt.angle, got, tt.level)
		}
	}
}

func TestGripperSetAngleClamps(t *testing.T) {
	g, drv := newTestGripper()

	g.SetAngle(250)
	if g.Angle() != 180 {
		t.Errorf("Angle: got %v, want 180", g.Angle())
	}
	if drv.Levels[1] != g.LevelFor(180) {
		t.Errorf("level: got %d, want %d", drv.Levels[1], g.LevelFor(180))
	}
}

func TestGripperInterpolation(t *testing.T) {
	g, drv := newTestGripper()
	g.SetAngle(90)

	g.MoveToAngle(30, 500*time.Millisecond, t0)
	before := drv.Writes(1)

	g.Update(t0.Add(250 * time.Millisecond))
	if got := g.Angle(); got != 60 {
		t.Errorf("midpoint: got %v, want 60", got)
	}
	g.Update(t0.Add(500 * time.Millisecond))
	if got := g.Angle(); got != 30 {
		t.Errorf("end: got %v, want 30", got)
	}
	if g.Moving() {
		t.Error("still moving after duration")
	}
	if drv.Levels[1] != g.LevelFor(30) {
		t.Errorf("final level: got %d, want %d", drv.Levels[1], g.LevelFor(30))
	}

	g.Update(t0.Add(time.Second))
	if got := drv.Writes(1) - before; got != 2 {
		t.Errorf("writes: got %d, want 2 (one per armed update)", got)
	}
}

func TestGripperSettleDelay(t *testing.T) {
	g, _ := newTestGripper()
	g.SetAngle(90)

	g.MoveToAngleAfter(30, 300*time.Millisecond, 500*time.Millisecond, t0)

	g.Update(t0.Add(200 * time.Millisecond))
	if got := g.Angle(); got != 90 {
		t.Errorf("during settle: got %v, want 90", got)
	}
	g.Update(t0.Add(550 * time.Millisecond))
	if got := g.Angle(); got != 60 {
		t.Errorf("mid-ramp: got %v, want 60", got)
	}
	g.Update(t0.Add(800 * time.Millisecond))
	if got := g.Angle(); got != 30 {
		t.Errorf("end: got %v, want 30", got)
	}
}

func TestGripperSetAngleCancelsInterpolation(t *testing.T) {
	g, _ := newTestGripper()

	g.MoveToAngle(30, time.Second, t0)
	g.SetAngle(120)
	g.Update(t0.Add(2 * time.Second))

	if g.Angle() != 120 {
		t.Errorf("Angle: got %v, want 120", g.Angle())
	}
}

func TestGripperDetachKeepsAngle(t *testing.T) {
	g, drv := newTestGripper()
	g.SetAngle(45)

	g.Detach()
	if drv.Enabled[1] {
		t.Error("channel still enabled after Detach")
	}
	writes := drv.Writes(1)
	g.SetAngle(60)
	if drv.Writes(1) != writes {
		t.Error("detached gripper wrote to the output")
	}

	g.Attach()
	if !drv.Enabled[1] {
		t.Error("channel not enabled after Attach")
	}
	if drv.Levels[1] != g.LevelFor(60) {
		t.Errorf("restored level: got %d, want %d", drv.Levels[1], g.LevelFor(60))
	}
}
