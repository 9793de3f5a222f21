package nanotec

import (
	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/modbus"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/sirupsen/logrus"
)

const (
	stepperSearchZeroSpeed    int32 = 3000
	stepperHomingSpeed        int32 = 15000
	stepperHomingAcceleration int32 = 50000
	stepperAcceleration       int32 = 250000

	controlHomingOperation uint16 = 0x1F
	controlHalt            uint16 = 0x10F
)

var stepperRegisters = []string{
	RegInfoOut, RegActualPosition, RegActualSpeed,
	RegTargetPosition, RegTargetSpeed, RegAcceleration, RegDeceleration, RegSearchZeroSpeed,
}

// Stepper drives a stepper motor that homes on its own and reports it in the info register.
type Stepper struct {
	*Driver
	motion.Base
	limits Limits
}

func NewStepper(bus modbus.RegisterBus, regs RegisterMap, limits Limits, timing Timing, log *logrus.Entry) (*Stepper, error) {
	d, err := newDriver(bus, regs, timing, log, stepperRegisters...)
	if err != nil {
		return nil, err
	}
	if err = bus.Sequence(d.Enable); err != nil {
		return nil, err
	}
	return &Stepper{Driver: d, limits: limits}, nil
}

func (s *Stepper) IsHomed() (bool, error) {
	if s.bus.Offline() {
		return true, nil
	}
	return s.infoBit(1)
}

func (s *Stepper) Start(cmd motion.Command) error {
	return s.procedure(func() (err error) {
		if err = motion.CheckIdle(s); err != nil {
			return
		}
		switch cmd.Mode {
		case motion.ModeUnknown, motion.ModeTurns:
			return motion.Unsupported(cmd.Mode)
		}
		if err = motion.ValidateSpeed(cmd, s.limits.MaxSpeed); err != nil {
			return
		}
		if err = motion.ValidateDistance(s, cmd, s.limits.MinAbsDistance, s.limits.MaxAbsDistance); err != nil {
			return
		}
		if cmd.Mode != motion.ModeHoming {
			homed, err := s.IsHomed()
			if err != nil {
				return err
			}
			if !homed {
				return errs.ErrNotHomed
			}
		}
		if err = s.requireEnabled(); err != nil {
			return
		}

		s.SetCommand(cmd)
		s.log.WithField("command", cmd).Info("starting motion")

		switch cmd.Mode {
		case motion.ModeHoming:
			err = s.home()
		case motion.ModeSpeed:
			err = s.speedMotion(micro(cmd.Speed), stepperAcceleration)
		default:
			err = s.positionMotion(cmd.Distance, cmd.Speed, cmd.Mode == motion.ModeRelative)
		}

		if err != nil {
			s.ClearCommand()
		}
		return
	})
}

// Stop interrupts a running start procedure, halts the motion, waits for standstill and
// parks the drive with an empty relative motion. The command is cleared in every case.
func (s *Stepper) Stop() error {
	// an interrupted start clears its command, the motion it began still needs the halt
	active := s.Command() != nil
	return s.stopProcedure(func() error {
		defer s.ClearCommand()

		if !active && s.Command() == nil {
			return nil
		}
		if err := s.SetControlWord(controlHalt); err != nil {
			return err
		}
		err := s.poll(s.timing.SpeedInterval, func() (bool, error) {
			speed, err := s.GetSpeed()
			return speed == 0, err
		})
		if err != nil {
			return err
		}
		return s.positionMotion(0, 0, true)
	})
}

func (s *Stepper) home() error {
	err := s.writeAll(
		registerValue{RegSearchZeroSpeed, stepperSearchZeroSpeed},
		registerValue{RegTargetSpeed, stepperHomingSpeed},
		registerValue{RegAcceleration, stepperHomingAcceleration},
	)
	if err != nil {
		return err
	}
	if err = s.SetOperationMode(ModeHoming); err != nil {
		return err
	}
	if err = s.SetControlWord(ControlEnable); err != nil {
		return err
	}
	return s.SetControlWord(controlHomingOperation)
}

func (s *Stepper) positionMotion(distance, speed float64, relative bool) error {
	if err := s.loadPositionTargets(distance, speed, stepperAcceleration, stepperAcceleration); err != nil {
		return err
	}
	if err := s.SetOperationMode(ModeProfilePosition); err != nil {
		return err
	}
	if err := s.SetControlWord(ControlEnable); err != nil {
		return err
	}
	return s.triggerSetPoint(relative)
}
