package control

import "time"

// Config holds the calibration and timing the controller runs with.
type Config struct {
	// Positions are the pickup positions in mm; key '1' selects index 0.
	Positions []float64
	DropOff   float64
	Home      float64

	// MMPerSecond is the assumed constant rail speed at MotorSpeed.
	MMPerSecond   float64
	MotorSpeed    uint8
	HomingSpeed   uint8
	HomingTimeout time.Duration

	GripperOpen   float64
	GripperClosed float64
	GripperMove   time.Duration

	PickupSettle  time.Duration
	ReleaseSettle time.Duration
	PostSettle    time.Duration

	// ThresholdCM is the farthest reading that counts as an object present.
	ThresholdCM float64

	// Tick is the sleep between sub-loop iterations.
	Tick time.Duration

	HomingBeeps   int
	HomingBeepOn  time.Duration
	HomingBeepOff time.Duration
}

// DefaultConfig returns the stock calibration.
func DefaultConfig() Config {
	return Config{
		Positions:     []float64{50, 100, 150, 200, 250, 300, 350, 400, 450},
		DropOff:       500,
		Home:          0,
		MMPerSecond:   50,
		MotorSpeed:    70,
		HomingSpeed:   50,
		HomingTimeout: 10 * time.Second,
		GripperOpen:   90,
		GripperClosed: 30,
		GripperMove:   500 * time.Millisecond,
		PickupSettle:  300 * time.Millisecond,
		ReleaseSettle: 300 * time.Millisecond,
		PostSettle:    200 * time.Millisecond,
		ThresholdCM:   8,
		Tick:          10 * time.Millisecond,
		HomingBeeps:   2,
		HomingBeepOn:  100 * time.Millisecond,
		HomingBeepOff: 100 * time.Millisecond,
	}
}

// MoveDuration returns the open-loop run time covering distance mm,
// truncated to whole milliseconds.
func (c Config) MoveDuration(distance float64) time.Duration {
	if distance < 0 {
		distance = -distance
	}
	return time.Duration(distance/c.MMPerSecond*1000) * time.Millisecond
}
