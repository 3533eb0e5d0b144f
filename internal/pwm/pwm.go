// Package pwm provides fixed-frequency PWM outputs addressed by channel.
package pwm

import (
	"fmt"
	"time"
)

// Driver sets duty cycles on pre-configured channels. A level is expressed
// in counts of the channel's wrap value: 0 is always low, Wrap always high.
type Driver interface {
	SetDutyCycle(channel int, level uint32) error
	Enable(channel int, on bool) error
	Close() error
}

// ChannelConfig is the fixed frequency and resolution of one channel.
type ChannelConfig struct {
	Channel int
	Period  time.Duration
	Wrap    uint32
}

// Validate checks the channel can represent at least one non-zero level.
func (c ChannelConfig) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("pwm channel %d: period must be positive", c.Channel)
	}
	if c.Wrap == 0 {
		return fmt.Errorf("pwm channel %d: wrap must be positive", c.Channel)
	}
	return nil
}

// DutyFor converts a level into the on-time within one period.
func (c ChannelConfig) DutyFor(level uint32) time.Duration {
	if level > c.Wrap {
		level = c.Wrap
	}
	return time.Duration(uint64(c.Period) * uint64(level) / uint64(c.Wrap))
}
