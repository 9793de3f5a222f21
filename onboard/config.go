package onboard

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/CodedInternet/gorecoater/onboard/nanotec"
	"github.com/CodedInternet/gorecoater/onboard/screw"
	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"
)

const (
	CONFIG_VERSION = "~1.0"

	DriveBldc     = "bldc"
	DriveStepper  = "stepper"
	DriveScrew    = "screw"
	DriveExternal = "external"
)

type RecoaterConfig struct {
	Version string                 `yaml:"version"`
	Poll    PollConfig             `yaml:"poll"`
	Boards  map[string]BoardConfig `yaml:"boards"`
	Drives  map[string]DriveConfig `yaml:"drives"`
	// Blades lists the screw drives lifting each scraping blade.
	Blades map[string][]string `yaml:"blades"`
}

// PollConfig overrides the poll timing of the Nanotec drives. Zero values keep the defaults.
type PollConfig struct {
	IntervalMs       int `yaml:"interval_ms"`
	Attempts         int `yaml:"attempts"`
	SensorIntervalMs int `yaml:"sensor_interval_ms"`
	AckIntervalMs    int `yaml:"ack_interval_ms"`
	SpeedIntervalMs  int `yaml:"speed_interval_ms"`
}

type BoardConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type DriveConfig struct {
	Type      string `yaml:"type"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TimeoutMs int    `yaml:"timeout_ms"`

	MaxSpeed       float64 `yaml:"max_speed"`
	MinAbsDistance float64 `yaml:"min_abs_distance"`
	MaxAbsDistance float64 `yaml:"max_abs_distance"`

	// screws only
	Board             string `yaml:"board"`
	Index             uint8  `yaml:"index"`
	StepsPerRev       int    `yaml:"steps_per_rev"`
	MicrostepsPerStep int    `yaml:"microsteps_per_step"`
	MicronPerRev      int    `yaml:"micron_per_rev"`

	// Registers overrides single entries of the default register map.
	Registers map[string]nanotec.Register `yaml:"registers"`

	// Blade names the blade that has to be up before this drive may move.
	Blade   string         `yaml:"blade"`
	Gripper *GripperConfig `yaml:"gripper"`
}

type GripperConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Register uint16 `yaml:"register"`
}

func LoadConfig(filename string) (config RecoaterConfig, err error) {
	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("unable to read config file: %v", err)
	}
	if err = yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("unable to unmarshal yaml: %v", err)
	}
	return config, config.CheckVersion()
}

// CheckVersion makes sure the file was written for this layout.
func (c RecoaterConfig) CheckVersion() error {
	version, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("config version %q: %v", c.Version, err)
	}

	constraint, err := semver.NewConstraint(CONFIG_VERSION)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return fmt.Errorf("unable to use config version %s - require %s", c.Version, CONFIG_VERSION)
	}
	return nil
}

func (p PollConfig) Timing() nanotec.Timing {
	t := nanotec.DefaultTiming()
	if p.IntervalMs > 0 {
		t.Interval = ms(p.IntervalMs)
	}
	if p.Attempts > 0 {
		t.Attempts = p.Attempts
	}
	if p.SensorIntervalMs > 0 {
		t.SensorInterval = ms(p.SensorIntervalMs)
	}
	if p.AckIntervalMs > 0 {
		t.AckInterval = ms(p.AckIntervalMs)
	}
	if p.SpeedIntervalMs > 0 {
		t.SpeedInterval = ms(p.SpeedIntervalMs)
	}
	return t
}

func (d DriveConfig) RegisterMap() nanotec.RegisterMap {
	regs := nanotec.DefaultRegisters()
	for name, reg := range d.Registers {
		if reg.Width == 0 {
			reg.Width = 32
		}
		regs[name] = reg
	}
	return regs
}

func (d DriveConfig) Limits() nanotec.Limits {
	return nanotec.Limits{
		MaxSpeed:       d.MaxSpeed,
		MinAbsDistance: d.MinAbsDistance,
		MaxAbsDistance: d.MaxAbsDistance,
	}
}

func (d DriveConfig) ScrewConfig() screw.Config {
	return screw.Config{
		StepsPerRev:       d.StepsPerRev,
		MicrostepsPerStep: d.MicrostepsPerStep,
		MicronPerRev:      d.MicronPerRev,
		MinAbsDistance:    d.MinAbsDistance,
		MaxAbsDistance:    d.MaxAbsDistance,
	}
}

func timeout(timeoutMs int) time.Duration {
	if timeoutMs <= 0 {
		return time.Second
	}
	return ms(timeoutMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
