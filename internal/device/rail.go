package device

import (
	"fmt"
	"time"

	"github.com/sweeney/pickplace/internal/gpio"
	"github.com/sweeney/pickplace/internal/logic"
	"github.com/sweeney/pickplace/internal/pwm"
)

// Direction is the drive direction of the rail motor.
type Direction int

const (
	Brake Direction = iota
	Forward
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "brake"
	}
}

// RailConfig wires an L298N channel: two direction inputs and an enable
// line driven by PWM.
type RailConfig struct {
	In1     int
	In2     int
	Channel int
	Wrap    uint32
}

// Rail drives the linear rail motor. Timed moves are open loop: the rail
// runs for a planned duration and stops itself when polled past it.
type Rail struct {
	pins gpio.Pins
	pwm  pwm.Driver
	cfg  RailConfig

	speed     uint8
	dir       Direction
	move      *logic.Ramp
	moving    bool
	completed bool
}

// NewRail creates a stopped rail.
func NewRail(pins gpio.Pins, drv pwm.Driver, cfg RailConfig) *Rail {
	return &Rail{
		pins: pins,
		pwm:  drv,
		cfg:  cfg,
		move: logic.NewRamp(0),
	}
}

// Init brakes the motor and enables the speed output at zero duty.
func (r *Rail) Init() error {
	if err := r.setDirection(Brake); err != nil {
		return err
	}
	if err := r.setSpeed(0); err != nil {
		return err
	}
	if err := r.pwm.Enable(r.cfg.Channel, true); err != nil {
		return fmt.Errorf("enable rail pwm: %w", err)
	}
	return nil
}

func (r *Rail) setDirection(d Direction) error {
	in1, in2 := false, false
	switch d {
	case Forward:
		in1 = true
	case Reverse:
		in2 = true
	}
	if err := r.pins.Write(r.cfg.In1, in1); err != nil {
		return fmt.Errorf("set direction %s: %w", d, err)
	}
	if err := r.pins.Write(r.cfg.In2, in2); err != nil {
		return fmt.Errorf("set direction %s: %w", d, err)
	}
	r.dir = d
	return nil
}

func (r *Rail) setSpeed(pct uint8) error {
	if pct > 100 {
		pct = 100
	}
	level := uint32(pct) * r.cfg.Wrap / 100
	if err := r.pwm.SetDutyCycle(r.cfg.Channel, level); err != nil {
		return fmt.Errorf("set speed %d%%: %w", pct, err)
	}
	r.speed = pct
	return nil
}

// Run drives continuously at speed percent. Any timed move is abandoned.
func (r *Rail) Run(speed uint8, dir Direction) error {
	r.move.Cancel()
	r.moving = false
	r.completed = false
	if err := r.setDirection(dir); err != nil {
		return err
	}
	return r.setSpeed(speed)
}

// Stop brakes immediately and ends any timed move early. A move ended this
// way does not count as Completed.
func (r *Rail) Stop() error {
	r.move.Cancel()
	r.moving = false
	if err := r.setDirection(Brake); err != nil {
		return err
	}
	return r.setSpeed(0)
}

// MoveFor runs at speed in dir for d, starting at now. The caller derives
// d from distance and the calibrated rail speed.
func (r *Rail) MoveFor(speed uint8, dir Direction, d time.Duration, now time.Time) error {
	if err := r.Run(speed, dir); err != nil {
		return err
	}
	r.move.Set(0)
	r.move.Start(1, now, d)
	r.moving = true
	return nil
}

// PollComplete reports whether no timed move is in flight. When the
// planned duration has elapsed it stops the motor first, so the rail never
// coasts past its planned stop.
func (r *Rail) PollComplete(now time.Time) (bool, error) {
	if !r.moving {
		return true, nil
	}
	if _, done := r.move.Update(now); !done {
		return false, nil
	}
	r.completed = true
	return true, r.Stop()
}

// Moving reports whether a timed move is in flight.
func (r *Rail) Moving() bool {
	return r.moving
}

// Completed reports whether the last timed move ran its full duration.
func (r *Rail) Completed() bool {
	return r.completed
}

// Progress returns the fraction of the current timed move elapsed at now.
func (r *Rail) Progress(now time.Time) float64 {
	if !r.moving {
		return r.move.Value()
	}
	return r.move.Elapsed(now)
}

// Speed returns the commanded speed percent.
func (r *Rail) Speed() uint8 {
	return r.speed
}

// Direction returns the commanded direction.
func (r *Rail) Direction() Direction {
	return r.dir
}
