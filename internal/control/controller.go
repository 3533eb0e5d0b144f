// Package control runs the pick-and-place machine: a single-threaded
// cooperative tick loop, the preemption policy for emergency stop and
// manual override, and the workflow state machine.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/device"
)

// Sub-loop outcomes.
var (
	ErrEmergencyStop = errors.New("emergency stop")
	ErrTimeout       = errors.New("timed out")
)

// Hardware is the set of devices the controller drives.
type Hardware struct {
	Stop    *device.Button
	Home    *device.Button
	Forward *device.Button
	Reverse *device.Button
	Grip    *device.Button
	Limit   *device.Button

	Rail    *device.Rail
	Gripper *device.Gripper
	Buzzer  *device.Buzzer
	Keypad  device.Keypad
	Ranger  device.Ranger
}

func (h *Hardware) buttons() []*device.Button {
	return []*device.Button{h.Stop, h.Home, h.Forward, h.Reverse, h.Grip, h.Limit}
}

// Counts are running totals since start.
type Counts struct {
	Cycles  int
	Faults  int
	Retries int
	EStops  int
	Homings int
}

// Controller owns the workflow and every device. It is not safe for
// concurrent use; one goroutine calls Tick.
type Controller struct {
	hw   Hardware
	cfg  Config
	clk  clock.Clock
	log  zerolog.Logger
	sink Sink

	wf        Workflow
	manualDir device.Direction
	counts    Counts
}

// New creates a controller in INIT. sink may be nil.
func New(hw Hardware, cfg Config, clk clock.Clock, log zerolog.Logger, sink Sink) *Controller {
	if sink == nil {
		sink = Sinks(nil)
	}
	return &Controller{
		hw:   hw,
		cfg:  cfg,
		clk:  clk,
		log:  log,
		sink: sink,
		wf:   Workflow{State: StateInit},
	}
}

// Init brings every device to its rest state: rail braked, gripper open,
// buzzer silent, buttons sampled without edges.
func (c *Controller) Init() error {
	now := c.clk.Now()
	for _, b := range c.hw.buttons() {
		if err := b.Init(now); err != nil {
			return err
		}
	}
	if err := c.hw.Rail.Init(); err != nil {
		return err
	}
	if err := c.hw.Gripper.Init(c.cfg.GripperOpen); err != nil {
		return err
	}
	if err := c.hw.Buzzer.Init(); err != nil {
		return err
	}
	c.wf.GripperClosed = false
	c.log.Info().Msg("hardware initialized")
	return nil
}

// Halt stops the rail and silences the buzzer.
func (c *Controller) Halt() error {
	return errors.Join(c.hw.Rail.Stop(), c.hw.Buzzer.Off())
}

// State returns the current workflow state.
func (c *Controller) State() State {
	return c.wf.State
}

// Workflow returns a copy of the workflow context.
func (c *Controller) Workflow() Workflow {
	return c.wf
}

// Counts returns the running totals.
func (c *Controller) Counts() Counts {
	return c.counts
}

// Tick runs one pass of the control loop: refresh inputs, advance timed
// activities, apply preemption and, unless diverted, step the workflow.
func (c *Controller) Tick(ctx context.Context) {
	now := c.clk.Now()
	c.refreshInputs(now)
	c.advance(now)
	if c.preempt(now) {
		return
	}
	c.step(ctx)
}

func (c *Controller) refreshInputs(now time.Time) {
	for _, b := range c.hw.buttons() {
		if err := b.Update(now); err != nil {
			c.log.Warn().Err(err).Msg("input read error")
		}
	}
}

func (c *Controller) advance(now time.Time) {
	if err := c.hw.Gripper.Update(now); err != nil {
		c.log.Warn().Err(err).Msg("gripper update error")
	}
	if err := c.hw.Buzzer.Update(now); err != nil {
		c.log.Warn().Err(err).Msg("buzzer update error")
	}
	if _, err := c.hw.Rail.PollComplete(now); err != nil {
		c.log.Warn().Err(err).Msg("rail stop error")
	}
}

// preempt applies emergency stop, homing requests and manual control.
// It reports whether the tick was diverted from the workflow.
func (c *Controller) preempt(now time.Time) bool {
	if c.hw.Stop.WasPressed() {
		c.emergencyStop()
		return true
	}

	if c.hw.Home.WasPressed() {
		c.log.Info().Str("state", c.wf.State.String()).Msg("homing requested")
		c.enter(StateHoming)
	}

	fwd, rev := c.hw.Forward.IsPressed(), c.hw.Reverse.IsPressed()
	grip := c.hw.Grip.WasPressed()
	if fwd || rev || grip {
		c.manual(fwd, rev, grip, now)
		return true
	}

	if c.manualDir != device.Brake {
		c.stopManualDrive()
	}
	return false
}

func (c *Controller) emergencyStop() {
	if err := c.hw.Rail.Stop(); err != nil {
		c.log.Error().Err(err).Msg("rail stop failed")
	}
	if c.wf.moving {
		c.wf.Drifted = true
	}
	c.manualDir = device.Brake
	c.counts.EStops++
	c.log.Warn().Str("state", c.wf.State.String()).Float64("position_mm", c.wf.Position).Msg("EMERGENCY STOP")
	c.emit(EventEStop, "stop button")
	c.playError()

	c.wf.Selected = 0
	c.wf.CycleID = ""
	c.enter(StateIdle)
}

func (c *Controller) manual(fwd, rev, grip bool, now time.Time) {
	dir := device.Brake
	switch {
	case fwd:
		dir = device.Forward
	case rev:
		dir = device.Reverse
	}

	if dir != device.Brake {
		if err := c.hw.Rail.Run(c.cfg.MotorSpeed, dir); err != nil {
			c.log.Warn().Err(err).Msg("manual drive error")
		}
		c.wf.Drifted = true
		if dir != c.manualDir {
			c.manualDir = dir
			c.log.Info().Str("direction", dir.String()).Msg("manual drive")
			c.emit(EventManual, "drive "+dir.String())
		}
	} else if c.manualDir != device.Brake {
		c.stopManualDrive()
	}

	if grip {
		c.toggleGripper(now)
	}
}

func (c *Controller) stopManualDrive() {
	if err := c.hw.Rail.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("rail stop error")
	}
	c.manualDir = device.Brake
	c.log.Info().Msg("manual drive released")
	c.emit(EventManual, "drive released")
}

func (c *Controller) toggleGripper(now time.Time) {
	if c.wf.GripperClosed {
		c.hw.Gripper.MoveToAngleAfter(c.cfg.GripperOpen, c.cfg.ReleaseSettle, c.cfg.GripperMove, now)
		c.wf.GripperClosed = false
		c.log.Info().Msg("gripper opening")
		c.emit(EventManual, "gripper open")
	} else {
		c.hw.Gripper.MoveToAngleAfter(c.cfg.GripperClosed, c.cfg.PickupSettle, c.cfg.GripperMove, now)
		c.wf.GripperClosed = true
		c.log.Info().Msg("gripper closing")
		c.emit(EventManual, "gripper close")
	}
	c.playConfirm()
}

// spin is a synchronous sub-loop. Each iteration refreshes inputs and
// timed activities, then checks the emergency stop and done. Manual
// control and the keypad are not serviced.
func (c *Controller) spin(ctx context.Context, timeout time.Duration, done func() bool) error {
	start := c.clk.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := c.clk.Now()
		c.refreshInputs(now)
		c.advance(now)
		if c.hw.Stop.WasPressed() {
			c.emergencyStop()
			return ErrEmergencyStop
		}
		if done() {
			return nil
		}
		if timeout > 0 && now.Sub(start) > timeout {
			return ErrTimeout
		}
		c.clk.Sleep(c.cfg.Tick)
	}
}

// pause waits for d inside a sub-loop.
func (c *Controller) pause(ctx context.Context, d time.Duration) error {
	until := c.clk.Now().Add(d)
	return c.spin(ctx, 0, func() bool { return !c.clk.Now().Before(until) })
}

// waitForKey blocks until any key is pressed.
func (c *Controller) waitForKey(ctx context.Context) (byte, error) {
	var key byte
	err := c.spin(ctx, 0, func() bool {
		k, ok := c.hw.Keypad.PollKey()
		key = k
		return ok
	})
	return key, err
}

func (c *Controller) enter(s State) {
	c.enterDistance(s, 0)
}

// enterDistance transitions to s, carrying a ranger reading on the
// STATE event.
func (c *Controller) enterDistance(s State, distance float64) {
	prev := c.wf.State
	c.wf.State = s
	c.wf.moving = false
	c.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("transition")
	c.emitDistance(EventState, prev.String(), distance)
}

func (c *Controller) emit(t EventType, reason string) {
	c.emitDistance(t, reason, 0)
}

func (c *Controller) emitDistance(t EventType, reason string, distance float64) {
	c.sink.Handle(Event{
		Time:          c.clk.Now(),
		Type:          t,
		CycleID:       c.wf.CycleID,
		State:         c.wf.State,
		Target:        c.wf.Selected,
		PositionMM:    c.wf.Position,
		DistanceCM:    distance,
		GripperClosed: c.wf.GripperClosed,
		Drifted:       c.wf.Drifted,
		Reason:        reason,
	})
}

func (c *Controller) fault(reason string, distance float64) {
	if err := c.hw.Rail.Stop(); err != nil {
		c.log.Error().Err(err).Msg("rail stop failed")
	}
	c.counts.Faults++
	c.log.Error().Str("state", c.wf.State.String()).Str("reason", reason).Msg("fault")
	c.emitDistance(EventFault, reason, distance)
	c.playError()
	c.enter(StateError)
}

func (c *Controller) playConfirm() {
	if err := c.hw.Buzzer.PlayConfirm(); err != nil {
		c.log.Warn().Err(err).Msg("buzzer error")
	}
}

func (c *Controller) playSuccess() {
	if err := c.hw.Buzzer.PlaySuccess(); err != nil {
		c.log.Warn().Err(err).Msg("buzzer error")
	}
}

func (c *Controller) playError() {
	if err := c.hw.Buzzer.PlayError(); err != nil {
		c.log.Warn().Err(err).Msg("buzzer error")
	}
}
