package device

import (
	"fmt"
	"time"

	"github.com/sweeney/pickplace/internal/logic"
	"github.com/sweeney/pickplace/internal/pwm"
)

// Servo travel limits in degrees.
const (
	MinAngle = 0.0
	MaxAngle = 180.0
)

// GripperConfig maps servo angles onto a PWM channel.
type GripperConfig struct {
	Channel  int
	Period   time.Duration
	Wrap     uint32
	MinPulse time.Duration // pulse width at 0 degrees
	MaxPulse time.Duration // pulse width at 180 degrees
}

// Gripper drives the gripper servo with optional linear interpolation.
type Gripper struct {
	pwm      pwm.Driver
	cfg      GripperConfig
	ramp     *logic.Ramp
	attached bool
}

// NewGripper creates a detached gripper resting at 90 degrees.
func NewGripper(drv pwm.Driver, cfg GripperConfig) *Gripper {
	return &Gripper{
		pwm:  drv,
		cfg:  cfg,
		ramp: logic.NewRamp(90),
	}
}

// Init enables the output and moves straight to angle.
func (g *Gripper) Init(angle float64) error {
	if err := g.pwm.Enable(g.cfg.Channel, true); err != nil {
		return fmt.Errorf("enable gripper pwm: %w", err)
	}
	g.attached = true
	return g.SetAngle(angle)
}

// ClampAngle limits a to the servo travel.
func ClampAngle(a float64) float64 {
	if a < MinAngle {
		return MinAngle
	}
	if a > MaxAngle {
		return MaxAngle
	}
	return a
}

// PulseFor returns the pulse width commanding angle.
func (g *Gripper) PulseFor(angle float64) time.Duration {
	span := float64(g.cfg.MaxPulse - g.cfg.MinPulse)
	return g.cfg.MinPulse + time.Duration(ClampAngle(angle)/MaxAngle*span)
}

// LevelFor returns the duty level commanding angle.
func (g *Gripper) LevelFor(angle float64) uint32 {
	return uint32(uint64(g.PulseFor(angle)) * uint64(g.cfg.Wrap) / uint64(g.cfg.Period))
}

func (g *Gripper) write(angle float64) error {
	if !g.attached {
		return nil
	}
	if err := g.pwm.SetDutyCycle(g.cfg.Channel, g.LevelFor(angle)); err != nil {
		return fmt.Errorf("set gripper angle %.1f: %w", angle, err)
	}
	return nil
}

// SetAngle moves immediately to angle, cancelling any interpolation.
func (g *Gripper) SetAngle(angle float64) error {
	angle = ClampAngle(angle)
	g.ramp.Set(angle)
	return g.write(angle)
}

// MoveToAngle interpolates from the current angle to target over d.
func (g *Gripper) MoveToAngle(target float64, d time.Duration, now time.Time) {
	g.MoveToAngleAfter(target, 0, d, now)
}

// MoveToAngleAfter is MoveToAngle with the interpolation starting after a
// settle delay. The angle holds during the delay.
func (g *Gripper) MoveToAngleAfter(target float64, settle, d time.Duration, now time.Time) {
	g.ramp.Start(ClampAngle(target), now.Add(settle), d)
}

// Update recomputes the interpolated angle and pushes it to the output.
// The completing call writes the exact target.
func (g *Gripper) Update(now time.Time) error {
	if !g.ramp.Active() {
		return nil
	}
	angle, _ := g.ramp.Update(now)
	return g.write(angle)
}

// Detach stops driving the servo. The logical angle is kept.
func (g *Gripper) Detach() error {
	if !g.attached {
		return nil
	}
	if err := g.pwm.Enable(g.cfg.Channel, false); err != nil {
		return fmt.Errorf("detach gripper: %w", err)
	}
	g.attached = false
	return nil
}

// Attach resumes driving the servo at its stored angle.
func (g *Gripper) Attach() error {
	if g.attached {
		return nil
	}
	if err := g.pwm.Enable(g.cfg.Channel, true); err != nil {
		return fmt.Errorf("attach gripper: %w", err)
	}
	g.attached = true
	return g.SetAngle(g.ramp.Value())
}

// Moving reports whether an interpolation is armed.
func (g *Gripper) Moving() bool {
	return g.ramp.Active()
}

// Angle returns the current logical angle.
func (g *Gripper) Angle() float64 {
	return g.ramp.Value()
}

// Attached reports whether the servo is being driven.
func (g *Gripper) Attached() bool {
	return g.attached
}
