package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/gpio"
)

// Keypad yields one logical key per physical press.
type Keypad interface {
	// PollKey returns the next key, if any, without blocking.
	PollKey() (byte, bool)
}

// DefaultLayout is the legend of a common 4x4 membrane keypad.
var DefaultLayout = [4][4]byte{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// rowSettle lets a driven row settle before columns are sampled.
const rowSettle = 10 * time.Microsecond

// Matrix scans a 4x4 keypad: rows are outputs driven low one at a time,
// columns are pulled-up inputs that read low under a pressed key.
type Matrix struct {
	pins   gpio.Pins
	rows   [4]int
	cols   [4]int
	layout [4][4]byte
	clk    clock.Clock
	repeat time.Duration
	log    zerolog.Logger

	held     byte
	lastSeen time.Time
	err      error
}

// NewMatrix creates a scanner. A held key reports once; it can report
// again only after the keypad has read clear for the repeat window.
func NewMatrix(pins gpio.Pins, rows, cols [4]int, clk clock.Clock, repeat time.Duration, log zerolog.Logger) *Matrix {
	return &Matrix{
		pins:   pins,
		rows:   rows,
		cols:   cols,
		layout: DefaultLayout,
		clk:    clk,
		repeat: repeat,
		log:    log,
	}
}

// Init idles every row high.
func (m *Matrix) Init() error {
	for _, r := range m.rows {
		if err := m.pins.Write(r, true); err != nil {
			return fmt.Errorf("keypad row %d: %w", r, err)
		}
	}
	return nil
}

func (m *Matrix) scan() (key byte, err error) {
	defer func() {
		if ierr := m.Init(); ierr != nil {
			err = errors.Join(err, ierr)
		}
	}()

	for ri, r := range m.rows {
		for _, other := range m.rows {
			if err := m.pins.Write(other, other != r); err != nil {
				return 0, fmt.Errorf("keypad row %d: %w", other, err)
			}
		}
		m.clk.Sleep(rowSettle)
		for ci, c := range m.cols {
			high, err := m.pins.Read(c)
			if err != nil {
				return 0, fmt.Errorf("keypad col %d: %w", c, err)
			}
			if !high {
				return m.layout[ri][ci], nil
			}
		}
	}
	return 0, nil
}

// PollKey scans once and returns a newly pressed key. A failed scan
// reads as no key; the failure is logged once until a scan succeeds.
func (m *Matrix) PollKey() (byte, bool) {
	key, err := m.scan()
	if err != nil {
		if m.err == nil {
			m.log.Warn().Err(err).Msg("keypad scan failed")
		}
		m.err = err
		return 0, false
	}
	if m.err != nil {
		m.log.Info().Msg("keypad scan recovered")
		m.err = nil
	}
	now := m.clk.Now()

	if key == 0 {
		if m.held != 0 && now.Sub(m.lastSeen) >= m.repeat {
			m.held = 0
		}
		return 0, false
	}

	m.lastSeen = now
	if key == m.held {
		return 0, false
	}
	m.held = key
	return key, true
}

// Err returns the error of the last scan, or nil if it succeeded.
func (m *Matrix) Err() error {
	return m.err
}

// FakeKeypad returns queued keys, one per poll.
type FakeKeypad struct {
	Keys  []byte
	Polls int
}

// Push queues keys.
func (f *FakeKeypad) Push(keys ...byte) {
	f.Keys = append(f.Keys, keys...)
}

// PollKey pops the next queued key.
func (f *FakeKeypad) PollKey() (byte, bool) {
	f.Polls++
	if len(f.Keys) == 0 {
		return 0, false
	}
	k := f.Keys[0]
	f.Keys = f.Keys[1:]
	return k, true
}
