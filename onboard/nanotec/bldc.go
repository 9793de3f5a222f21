package nanotec

import (
	"github.com/CodedInternet/gorecoater/onboard/modbus"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/sirupsen/logrus"
)

const (
	bldcHomingSpeed        float64 = 10
	bldcHomingAcceleration int32   = 100000
	bldcAcceleration       int32   = 1000000
	bldcStopDeceleration   int32   = 1000000

	controlHomingStart uint16 = 0x17
)

var bldcRegisters = []string{
	RegInfoOut, RegInfoIn, RegActualPosition, RegActualSpeed, RegSensor,
	RegTargetPosition, RegTargetSpeed, RegAcceleration, RegDeceleration,
}

// Limits bound the commands a drive accepts. Distances are in mm, speeds in mm/s.
type Limits struct {
	MaxSpeed       float64
	MinAbsDistance float64
	MaxAbsDistance float64
}

// Bldc drives a brushless motor that homes against an external sensor.
type Bldc struct {
	*Driver
	motion.Base
	limits Limits
}

func NewBldc(bus modbus.RegisterBus, regs RegisterMap, limits Limits, timing Timing, log *logrus.Entry) (*Bldc, error) {
	d, err := newDriver(bus, regs, timing, log, bldcRegisters...)
	if err != nil {
		return nil, err
	}
	if err = bus.Sequence(d.Enable); err != nil {
		return nil, err
	}
	return &Bldc{Driver: d, limits: limits}, nil
}

func (b *Bldc) Start(cmd motion.Command) error {
	return b.procedure(func() (err error) {
		if err = motion.CheckIdle(b); err != nil {
			return
		}
		if err = b.validate(cmd); err != nil {
			return
		}
		if err = b.requireEnabled(); err != nil {
			return
		}

		b.SetCommand(cmd)
		b.log.WithField("command", cmd).Info("starting motion")

		switch cmd.Mode {
		case motion.ModeHoming:
			err = b.home()
		case motion.ModeSpeed:
			err = b.speedMotion(micro(cmd.Speed), bldcAcceleration)
		default:
			err = b.positionMotion(cmd.Distance, cmd.Speed, cmd.Mode == motion.ModeRelative)
		}

		if err != nil {
			b.ClearCommand()
		}
		return
	})
}

func (b *Bldc) validate(cmd motion.Command) error {
	switch cmd.Mode {
	case motion.ModeUnknown, motion.ModeTurns:
		return motion.Unsupported(cmd.Mode)
	}
	if err := motion.ValidateSpeed(cmd, b.limits.MaxSpeed); err != nil {
		return err
	}
	return motion.ValidateDistance(b, cmd, b.limits.MinAbsDistance, b.limits.MaxAbsDistance)
}

// Stop interrupts a running start procedure, then decelerates the drive.
func (b *Bldc) Stop() error {
	return b.stopProcedure(func() error {
		err := b.halt()
		b.ClearCommand()
		return err
	})
}

func (b *Bldc) halt() error {
	if err := b.write(RegDeceleration, bldcStopDeceleration); err != nil {
		return err
	}
	return b.SetControlWord(ControlSwitchOn)
}

// home runs towards the sensor, halts on it and lets the drive take the spot as origin.
func (b *Bldc) home() error {
	if err := b.speedMotion(micro(bldcHomingSpeed), bldcHomingAcceleration); err != nil {
		return err
	}
	if err := b.poll(b.timing.SensorInterval, b.sensorTriggered); err != nil {
		return err
	}
	if err := b.halt(); err != nil {
		return err
	}
	if err := b.SetOperationMode(ModeHoming); err != nil {
		return err
	}
	return b.SetControlWord(controlHomingStart)
}

func (b *Bldc) sensorTriggered() (bool, error) {
	if b.bus.Offline() {
		return true, nil
	}
	v, err := b.read(RegSensor)
	return v == 1, err
}

func (b *Bldc) positionMotion(distance, speed float64, relative bool) error {
	if err := b.loadPositionTargets(distance, speed, bldcAcceleration, bldcAcceleration); err != nil {
		return err
	}
	if err := b.SetOperationMode(ModeProfilePosition); err != nil {
		return err
	}
	if err := b.triggerSetPoint(relative); err != nil {
		return err
	}
	return b.write(RegInfoIn, 1)
}
