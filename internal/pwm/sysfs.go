package pwm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultSysfsRoot is where the kernel exposes PWM chips.
const DefaultSysfsRoot = "/sys/class/pwm"

// exportWait bounds how long udev may take to create an exported channel.
const exportWait = time.Second

// Sysfs drives PWM channels through the kernel sysfs interface.
type Sysfs struct {
	dir      string
	channels map[int]ChannelConfig
	exported []int
}

// NewSysfs exports and configures every channel on pwmchip<chip> below root.
// All channels start disabled with zero duty.
func NewSysfs(root string, chip int, cfgs []ChannelConfig) (*Sysfs, error) {
	s := &Sysfs{
		dir:      filepath.Join(root, fmt.Sprintf("pwmchip%d", chip)),
		channels: make(map[int]ChannelConfig, len(cfgs)),
	}

	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.export(cfg.Channel); err != nil {
			s.Close()
			return nil, err
		}
		s.channels[cfg.Channel] = cfg

		if err := s.write(cfg.Channel, "enable", "0"); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.write(cfg.Channel, "duty_cycle", "0"); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.write(cfg.Channel, "period", strconv.FormatInt(cfg.Period.Nanoseconds(), 10)); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *Sysfs) channelDir(ch int) string {
	return filepath.Join(s.dir, fmt.Sprintf("pwm%d", ch))
}

func (s *Sysfs) export(ch int) error {
	if _, err := os.Stat(s.channelDir(ch)); err == nil {
		return nil
	}
	if err := os.WriteFile(filepath.Join(s.dir, "export"), []byte(strconv.Itoa(ch)), 0o644); err != nil {
		return fmt.Errorf("export pwm channel %d: %w", ch, err)
	}
	s.exported = append(s.exported, ch)

	deadline := time.Now().Add(exportWait)
	for {
		if _, err := os.Stat(s.channelDir(ch)); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("export pwm channel %d: %s did not appear", ch, s.channelDir(ch))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *Sysfs) write(ch int, attr, value string) error {
	path := filepath.Join(s.channelDir(ch), attr)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("pwm channel %d %s: %w", ch, attr, err)
	}
	return nil
}

// SetDutyCycle sets the on-time of channel to level/wrap of its period.
func (s *Sysfs) SetDutyCycle(channel int, level uint32) error {
	cfg, ok := s.channels[channel]
	if !ok {
		return fmt.Errorf("pwm channel %d: not configured", channel)
	}
	return s.write(channel, "duty_cycle", strconv.FormatInt(cfg.DutyFor(level).Nanoseconds(), 10))
}

// Enable starts or stops pulse output on channel.
func (s *Sysfs) Enable(channel int, on bool) error {
	if _, ok := s.channels[channel]; !ok {
		return fmt.Errorf("pwm channel %d: not configured", channel)
	}
	v := "0"
	if on {
		v = "1"
	}
	return s.write(channel, "enable", v)
}

// Close disables every channel and unexports the ones this driver exported.
func (s *Sysfs) Close() error {
	var errs []error
	for ch := range s.channels {
		if err := s.write(ch, "enable", "0"); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ch := range s.exported {
		if err := os.WriteFile(filepath.Join(s.dir, "unexport"), []byte(strconv.Itoa(ch)), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("unexport pwm channel %d: %w", ch, err))
		}
	}
	s.exported = nil
	return errors.Join(errs...)
}
