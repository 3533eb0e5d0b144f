// Package config loads the machine configuration from defaults, an
// optional YAML file and PICKPLACE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/pickplace/internal/control"
	"github.com/sweeney/pickplace/internal/device"
	"github.com/sweeney/pickplace/internal/gpio"
	"github.com/sweeney/pickplace/internal/logic"
	"github.com/sweeney/pickplace/internal/pwm"
)

// DefaultPath is read when no config file is given.
const DefaultPath = "/etc/pickplace/config.yml"

// EnvPrefix prefixes environment overrides, e.g. PICKPLACE_MOTION_SPEED.
const EnvPrefix = "PICKPLACE"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the complete machine configuration.
type Config struct {
	GPIO    GPIOConfig    `mapstructure:"gpio" yaml:"gpio"`
	PWM     PWMConfig     `mapstructure:"pwm" yaml:"pwm"`
	Motion  MotionConfig  `mapstructure:"motion" yaml:"motion"`
	Gripper GripperConfig `mapstructure:"gripper" yaml:"gripper"`
	Timing  TimingConfig  `mapstructure:"timing" yaml:"timing"`
	Sensor  SensorConfig  `mapstructure:"sensor" yaml:"sensor"`
	Keypad  KeypadConfig  `mapstructure:"keypad" yaml:"keypad"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// File is the config file actually read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// GPIOConfig holds BCM line offsets.
type GPIOConfig struct {
	Chip       string `mapstructure:"chip" yaml:"chip"`
	KeypadRows []int  `mapstructure:"keypad-rows" yaml:"keypad-rows"`
	KeypadCols []int  `mapstructure:"keypad-cols" yaml:"keypad-cols"`
	Trigger    int    `mapstructure:"trigger" yaml:"trigger"`
	Echo       int    `mapstructure:"echo" yaml:"echo"`
	In1        int    `mapstructure:"in1" yaml:"in1"`
	In2        int    `mapstructure:"in2" yaml:"in2"`
	Stop       int    `mapstructure:"stop" yaml:"stop"`
	Home       int    `mapstructure:"home" yaml:"home"`
	Forward    int    `mapstructure:"forward" yaml:"forward"`
	Reverse    int    `mapstructure:"reverse" yaml:"reverse"`
	Grip       int    `mapstructure:"grip" yaml:"grip"`
	Limit      int    `mapstructure:"limit" yaml:"limit"`
	Buzzer     int    `mapstructure:"buzzer" yaml:"buzzer"`
}

// ChannelConfig is one PWM channel.
type ChannelConfig struct {
	Channel   int    `mapstructure:"channel" yaml:"channel"`
	Frequency int    `mapstructure:"frequency" yaml:"frequency"`
	Wrap      uint32 `mapstructure:"wrap" yaml:"wrap"`
}

// Period returns the channel period.
func (c ChannelConfig) Period() time.Duration {
	if c.Frequency <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Frequency)
}

// PWMConfig selects the sysfs PWM chip and channels.
type PWMConfig struct {
	Root  string        `mapstructure:"root" yaml:"root"`
	Chip  int           `mapstructure:"chip" yaml:"chip"`
	Rail  ChannelConfig `mapstructure:"rail" yaml:"rail"`
	Servo ChannelConfig `mapstructure:"servo" yaml:"servo"`
}

// MotionConfig is the rail calibration.
type MotionConfig struct {
	Positions     []float64     `mapstructure:"positions" yaml:"positions"`
	DropOff       float64       `mapstructure:"drop-off" yaml:"drop-off"`
	Home          float64       `mapstructure:"home" yaml:"home"`
	MMPerSecond   float64       `mapstructure:"mm-per-second" yaml:"mm-per-second"`
	Speed         int           `mapstructure:"speed" yaml:"speed"`
	HomingSpeed   int           `mapstructure:"homing-speed" yaml:"homing-speed"`
	HomingTimeout time.Duration `mapstructure:"homing-timeout" yaml:"homing-timeout"`
}

// GripperConfig is the servo calibration.
type GripperConfig struct {
	Open     float64       `mapstructure:"open" yaml:"open"`
	Closed   float64       `mapstructure:"closed" yaml:"closed"`
	MoveTime time.Duration `mapstructure:"move-time" yaml:"move-time"`
	MinPulse time.Duration `mapstructure:"min-pulse" yaml:"min-pulse"`
	MaxPulse time.Duration `mapstructure:"max-pulse" yaml:"max-pulse"`
}

// TimingConfig holds loop and settle timing.
type TimingConfig struct {
	Tick          time.Duration `mapstructure:"tick" yaml:"tick"`
	Debounce      time.Duration `mapstructure:"debounce" yaml:"debounce"`
	PickupSettle  time.Duration `mapstructure:"pickup-settle" yaml:"pickup-settle"`
	ReleaseSettle time.Duration `mapstructure:"release-settle" yaml:"release-settle"`
	PostSettle    time.Duration `mapstructure:"post-settle" yaml:"post-settle"`
	KeypadRepeat  time.Duration `mapstructure:"keypad-repeat" yaml:"keypad-repeat"`
}

// SensorConfig is the object detection setting.
type SensorConfig struct {
	ThresholdCM float64 `mapstructure:"threshold-cm" yaml:"threshold-cm"`
}

// KeypadConfig selects the keypad source: "matrix" or "console".
type KeypadConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
}

// MQTTConfig is the telemetry broker. An empty broker disables telemetry.
type MQTTConfig struct {
	Broker    string        `mapstructure:"broker" yaml:"broker"`
	ClientID  string        `mapstructure:"client-id" yaml:"client-id"`
	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
}

// HTTPConfig is the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.keypad-rows", []int{2, 3, 4, 5})
	v.SetDefault("gpio.keypad-cols", []int{6, 7, 8, 9})
	v.SetDefault("gpio.trigger", 10)
	v.SetDefault("gpio.echo", 11)
	v.SetDefault("gpio.in1", 12)
	v.SetDefault("gpio.in2", 13)
	v.SetDefault("gpio.stop", 17)
	v.SetDefault("gpio.home", 18)
	v.SetDefault("gpio.forward", 19)
	v.SetDefault("gpio.reverse", 20)
	v.SetDefault("gpio.grip", 21)
	v.SetDefault("gpio.limit", 22)
	v.SetDefault("gpio.buzzer", 26)

	v.SetDefault("pwm.root", pwm.DefaultSysfsRoot)
	v.SetDefault("pwm.chip", 0)
	v.SetDefault("pwm.rail.channel", 0)
	v.SetDefault("pwm.rail.frequency", 1000)
	v.SetDefault("pwm.rail.wrap", 999)
	v.SetDefault("pwm.servo.channel", 1)
	v.SetDefault("pwm.servo.frequency", 50)
	v.SetDefault("pwm.servo.wrap", 39062)

	def := control.DefaultConfig()
	v.SetDefault("motion.positions", def.Positions)
	v.SetDefault("motion.drop-off", def.DropOff)
	v.SetDefault("motion.home", def.Home)
	v.SetDefault("motion.mm-per-second", def.MMPerSecond)
	v.SetDefault("motion.speed", int(def.MotorSpeed))
	v.SetDefault("motion.homing-speed", int(def.HomingSpeed))
	v.SetDefault("motion.homing-timeout", def.HomingTimeout)

	v.SetDefault("gripper.open", def.GripperOpen)
	v.SetDefault("gripper.closed", def.GripperClosed)
	v.SetDefault("gripper.move-time", def.GripperMove)
	v.SetDefault("gripper.min-pulse", 500*time.Microsecond)
	v.SetDefault("gripper.max-pulse", 2500*time.Microsecond)

	v.SetDefault("timing.tick", def.Tick)
	v.SetDefault("timing.debounce", logic.DefaultDebounce)
	v.SetDefault("timing.pickup-settle", def.PickupSettle)
	v.SetDefault("timing.release-settle", def.ReleaseSettle)
	v.SetDefault("timing.post-settle", def.PostSettle)
	v.SetDefault("timing.keypad-repeat", logic.DefaultDebounce)

	v.SetDefault("sensor.threshold-cm", def.ThresholdCM)
	v.SetDefault("keypad.source", "matrix")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client-id", "pickplace")
	v.SetDefault("mqtt.heartbeat", 15*time.Minute)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads path (DefaultPath if empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	setDefaults(v)

	if path == "" {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	found := true
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		found = false
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if found {
		cfg.File = v.ConfigFileUsed()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the built-in configuration, ignoring files and
// environment.
func Default() Config {
	var cfg Config
	v := viper.New()
	setDefaults(v)
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("decode defaults: %v", err))
	}
	return cfg
}

// Validate reports every problem found, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if n := len(c.Motion.Positions); n < 1 || n > 9 {
		bad("motion.positions: need 1 to 9 targets, got %d", n)
	}
	if c.Motion.MMPerSecond <= 0 {
		bad("motion.mm-per-second must be positive")
	}
	if c.Motion.Speed <= 0 || c.Motion.Speed > 100 {
		bad("motion.speed must be 1-100, got %d", c.Motion.Speed)
	}
	if c.Motion.HomingSpeed <= 0 || c.Motion.HomingSpeed > 100 {
		bad("motion.homing-speed must be 1-100, got %d", c.Motion.HomingSpeed)
	}
	if c.Motion.HomingTimeout <= 0 {
		bad("motion.homing-timeout must be positive")
	}
	if a := c.Gripper.Open; a < device.MinAngle || a > device.MaxAngle {
		bad("gripper.open must be 0-180, got %v", a)
	}
	if a := c.Gripper.Closed; a < device.MinAngle || a > device.MaxAngle {
		bad("gripper.closed must be 0-180, got %v", a)
	}
	if c.Gripper.MoveTime <= 0 {
		bad("gripper.move-time must be positive")
	}
	if c.Gripper.MinPulse <= 0 || c.Gripper.MaxPulse <= c.Gripper.MinPulse {
		bad("gripper pulse range %v-%v is empty", c.Gripper.MinPulse, c.Gripper.MaxPulse)
	}
	if c.Timing.Tick <= 0 {
		bad("timing.tick must be positive")
	}
	if c.Timing.Debounce < 0 {
		bad("timing.debounce must not be negative")
	}
	if c.Sensor.ThresholdCM <= 0 {
		bad("sensor.threshold-cm must be positive")
	}
	if len(c.GPIO.KeypadRows) != 4 || len(c.GPIO.KeypadCols) != 4 {
		bad("gpio keypad needs 4 rows and 4 cols")
	}
	for _, ch := range c.PWMChannels() {
		if err := ch.Validate(); err != nil {
			bad("%v", err)
		}
	}
	if c.PWM.Rail.Channel == c.PWM.Servo.Channel {
		bad("pwm rail and servo share channel %d", c.PWM.Rail.Channel)
	}
	seen := make(map[int]bool)
	for _, p := range c.pins() {
		if seen[p] {
			bad("gpio pin %d assigned twice", p)
		}
		seen[p] = true
	}
	switch c.Keypad.Source {
	case "matrix", "console":
	default:
		bad("keypad.source must be matrix or console, got %q", c.Keypad.Source)
	}

	return errors.Join(errs...)
}

func (c Config) pins() []int {
	g := c.GPIO
	out := append([]int{}, g.KeypadRows...)
	out = append(out, g.KeypadCols...)
	return append(out, g.Trigger, g.Echo, g.In1, g.In2, g.Stop, g.Home, g.Forward, g.Reverse, g.Grip, g.Limit, g.Buzzer)
}

// Control returns the controller calibration.
func (c Config) Control() control.Config {
	cc := control.DefaultConfig()
	cc.Positions = append([]float64(nil), c.Motion.Positions...)
	cc.DropOff = c.Motion.DropOff
	cc.Home = c.Motion.Home
	cc.MMPerSecond = c.Motion.MMPerSecond
	cc.MotorSpeed = uint8(c.Motion.Speed)
	cc.HomingSpeed = uint8(c.Motion.HomingSpeed)
	cc.HomingTimeout = c.Motion.HomingTimeout
	cc.GripperOpen = c.Gripper.Open
	cc.GripperClosed = c.Gripper.Closed
	cc.GripperMove = c.Gripper.MoveTime
	cc.PickupSettle = c.Timing.PickupSettle
	cc.ReleaseSettle = c.Timing.ReleaseSettle
	cc.PostSettle = c.Timing.PostSettle
	cc.ThresholdCM = c.Sensor.ThresholdCM
	cc.Tick = c.Timing.Tick
	return cc
}

// Lines returns the GPIO requests for buttons, rail direction, buzzer and,
// with a matrix keypad, the keypad rows and columns. The ranger lines are
// requested separately.
func (c Config) Lines() []gpio.LineConfig {
	g := c.GPIO
	var out []gpio.LineConfig
	for _, p := range []int{g.Stop, g.Home, g.Forward, g.Reverse, g.Grip, g.Limit} {
		out = append(out, gpio.LineConfig{Pin: p, Mode: gpio.InputPullUp})
	}
	for _, p := range []int{g.In1, g.In2, g.Buzzer} {
		out = append(out, gpio.LineConfig{Pin: p, Mode: gpio.Output})
	}
	if c.Keypad.Source == "matrix" {
		for _, p := range g.KeypadRows {
			out = append(out, gpio.LineConfig{Pin: p, Mode: gpio.Output, Initial: true})
		}
		for _, p := range g.KeypadCols {
			out = append(out, gpio.LineConfig{Pin: p, Mode: gpio.InputPullUp})
		}
	}
	return out
}

// PWMChannels returns the rail and servo channel setup.
func (c Config) PWMChannels() []pwm.ChannelConfig {
	return []pwm.ChannelConfig{
		{Channel: c.PWM.Rail.Channel, Period: c.PWM.Rail.Period(), Wrap: c.PWM.Rail.Wrap},
		{Channel: c.PWM.Servo.Channel, Period: c.PWM.Servo.Period(), Wrap: c.PWM.Servo.Wrap},
	}
}

// Rail returns the motor driver wiring.
func (c Config) Rail() device.RailConfig {
	return device.RailConfig{
		In1:     c.GPIO.In1,
		In2:     c.GPIO.In2,
		Channel: c.PWM.Rail.Channel,
		Wrap:    c.PWM.Rail.Wrap,
	}
}

// Servo returns the gripper servo mapping.
func (c Config) Servo() device.GripperConfig {
	return device.GripperConfig{
		Channel:  c.PWM.Servo.Channel,
		Period:   c.PWM.Servo.Period(),
		Wrap:     c.PWM.Servo.Wrap,
		MinPulse: c.Gripper.MinPulse,
		MaxPulse: c.Gripper.MaxPulse,
	}
}

// KeypadPins returns the keypad rows and columns as fixed arrays.
func (c Config) KeypadPins() (rows, cols [4]int) {
	copy(rows[:], c.GPIO.KeypadRows)
	copy(cols[:], c.GPIO.KeypadCols)
	return rows, cols
}

// Dump writes the configuration as YAML.
func (c Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
