package control

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/pickplace/internal/device"
)

// step performs the one unit of work of the current state.
func (c *Controller) step(ctx context.Context) {
	switch c.wf.State {
	case StateInit:
		if err := c.hw.Buzzer.PlayStartup(); err != nil {
			c.log.Warn().Err(err).Msg("buzzer error")
		}
		c.enter(StateHoming)

	case StateHoming:
		c.home(ctx)

	case StateIdle:
		c.log.Info().Int("targets", len(c.cfg.Positions)).Msg("ready for input")
		c.enter(StateWaitInput)

	case StateWaitInput:
		c.selectTarget()

	case StateMoveToPickup:
		c.move(c.cfg.Positions[c.wf.Selected-1], StateVerifyObject)

	case StateVerifyObject:
		c.verify(ctx)

	case StatePickup:
		c.grip(ctx, c.cfg.GripperClosed, c.cfg.PickupSettle, StateMoveToDropoff)

	case StateMoveToDropoff:
		c.move(c.cfg.DropOff, StateRelease)

	case StateRelease:
		c.grip(ctx, c.cfg.GripperOpen, c.cfg.ReleaseSettle, StateReturnHome)

	case StateReturnHome:
		c.move(c.cfg.Home, StateIdle)

	case StateError:
		c.log.Info().Msg("press any key to return to idle")
		if _, err := c.waitForKey(ctx); err != nil {
			return
		}
		c.wf.Selected = 0
		c.wf.CycleID = ""
		c.enter(StateIdle)
	}
}

func (c *Controller) home(ctx context.Context) {
	c.counts.Homings++
	c.log.Info().Msg("homing rail")

	now := c.clk.Now()
	if err := c.hw.Buzzer.StartPattern(c.cfg.HomingBeeps, c.cfg.HomingBeepOn, c.cfg.HomingBeepOff, now); err != nil {
		c.log.Warn().Err(err).Msg("buzzer error")
	}
	if err := c.hw.Rail.Run(c.cfg.HomingSpeed, device.Reverse); err != nil {
		c.fault("homing drive: "+err.Error(), 0)
		return
	}
	// The rail is reversing; the position is unknown until the limit.
	c.wf.Drifted = true

	err := c.spin(ctx, c.cfg.HomingTimeout, c.hw.Limit.IsPressed)
	switch {
	case errors.Is(err, ErrEmergencyStop):
		return
	case errors.Is(err, ErrTimeout):
		c.fault("homing timeout", 0)
		return
	case err != nil:
		if serr := c.hw.Rail.Stop(); serr != nil {
			c.log.Error().Err(serr).Msg("rail stop failed")
		}
		c.log.Warn().Err(err).Msg("homing abandoned")
		return
	}

	if err := c.hw.Rail.Stop(); err != nil {
		c.log.Error().Err(err).Msg("rail stop failed")
	}
	c.wf.Position = c.cfg.Home
	c.wf.Drifted = false
	c.log.Info().Float64("position_mm", c.wf.Position).Msg("homing complete")
	c.emit(EventHomed, "")
	c.playConfirm()
	c.enter(StateIdle)
}

func (c *Controller) selectTarget() {
	key, ok := c.hw.Keypad.PollKey()
	if !ok {
		return
	}
	if key < '1' || key > '9' {
		c.log.Debug().Str("key", string(key)).Msg("ignored key")
		return
	}
	n := int(key - '0')
	if n > len(c.cfg.Positions) {
		c.log.Warn().Int("target", n).Int("targets", len(c.cfg.Positions)).Msg("no such target")
		return
	}

	c.wf.Selected = n
	c.wf.CycleID = uuid.NewString()
	c.log.Info().Int("target", n).Str("cycle", c.wf.CycleID).Msg("target selected")
	c.emit(EventSelected, "")
	c.playConfirm()
	c.enter(StateMoveToPickup)
}

// move commands a timed move to dest on first entry and polls it on later
// ticks. The position is updated only when the move ran its full
// duration.
func (c *Controller) move(dest float64, next State) {
	if !c.wf.moving {
		distance := dest - c.wf.Position
		if distance == 0 {
			c.arrive(next)
			return
		}
		dir := device.Forward
		if distance < 0 {
			dir = device.Reverse
		}
		d := c.cfg.MoveDuration(distance)
		c.log.Info().
			Float64("from_mm", c.wf.Position).
			Float64("to_mm", dest).
			Dur("duration", d).
			Msg("moving")
		if err := c.hw.Rail.MoveFor(c.cfg.MotorSpeed, dir, d, c.clk.Now()); err != nil {
			c.fault("move: "+err.Error(), 0)
			return
		}
		c.wf.moving = true
		c.wf.moveDest = dest
		return
	}

	done, err := c.hw.Rail.PollComplete(c.clk.Now())
	if err != nil {
		c.log.Warn().Err(err).Msg("rail stop error")
	}
	if !done {
		return
	}

	c.wf.moving = false
	if c.hw.Rail.Completed() {
		c.wf.Position = c.wf.moveDest
		c.log.Info().Float64("position_mm", c.wf.Position).Msg("arrived")
	} else {
		c.wf.Drifted = true
		c.log.Warn().Float64("position_mm", c.wf.Position).Msg("move interrupted, position is an estimate")
	}
	c.arrive(next)
}

func (c *Controller) arrive(next State) {
	if c.wf.State == StateReturnHome {
		c.counts.Cycles++
		c.log.Info().Int("target", c.wf.Selected).Str("cycle", c.wf.CycleID).Msg("cycle complete")
		c.emit(EventCycleComplete, "")
		c.playSuccess()
		c.wf.Selected = 0
		c.wf.CycleID = ""
	}
	c.enter(next)
}

func (c *Controller) verify(ctx context.Context) {
	distance := c.hw.Ranger.MeasureDistanceCm()
	c.log.Info().Float64("distance_cm", distance).Msg("distance measured")

	switch {
	case distance < 0:
		c.fault("ranging failure", distance)

	case distance > c.cfg.ThresholdCM:
		c.counts.Retries++
		c.log.Warn().Int("target", c.wf.Selected).Msg("no object detected, place it and press any key")
		c.emitDistance(EventRetry, "no object detected", distance)
		c.playError()
		if _, err := c.waitForKey(ctx); err != nil {
			c.log.Debug().Err(err).Msg("retry wait abandoned")
		}

	default:
		c.log.Info().Msg("object verified")
		c.enterDistance(StatePickup, distance)
	}
}

// grip settles, moves the gripper to angle, waits for it and settles
// again before advancing to next.
func (c *Controller) grip(ctx context.Context, angle float64, settle time.Duration, next State) {
	if err := c.pause(ctx, settle); err != nil {
		return
	}

	closing := angle == c.cfg.GripperClosed
	c.hw.Gripper.MoveToAngle(angle, c.cfg.GripperMove, c.clk.Now())
	c.wf.GripperClosed = closing
	if err := c.spin(ctx, 0, func() bool { return !c.hw.Gripper.Moving() }); err != nil {
		return
	}
	if err := c.pause(ctx, c.cfg.PostSettle); err != nil {
		return
	}

	if closing {
		c.log.Info().Msg("pickup complete")
		c.playConfirm()
	} else {
		c.log.Info().Msg("release complete")
		c.playSuccess()
	}
	c.enter(next)
}
