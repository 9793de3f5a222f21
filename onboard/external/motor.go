package external

import (
	"sync"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/sirupsen/logrus"
)

// Driver is a drive controlled through its vendor SDK.
type Driver interface {
	Position() (float64, error)
	MoveAbsolute(distance, speed float64) error
	MoveRelative(distance, speed float64) error
	CheckBusy() (bool, error)
}

// Motor adapts a Driver to the motion contract.
type Motor struct {
	motion.Base
	driver   Driver
	min, max float64
	log      *logrus.Entry
}

func NewMotor(driver Driver, minAbsDistance, maxAbsDistance float64, log *logrus.Entry) *Motor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Motor{driver: driver, min: minAbsDistance, max: maxAbsDistance, log: log}
}

func (m *Motor) IsBusy() (bool, error) {
	busy, err := m.driver.CheckBusy()
	if err != nil {
		m.log.WithError(err).Error("busy check failed")
		return false, errs.Transport(err, "check busy")
	}
	return busy, nil
}

func (m *Motor) Position() (float64, error) {
	pos, err := m.driver.Position()
	if err != nil {
		m.log.WithError(err).Error("position read failed")
		return 0, errs.Transport(err, "read position")
	}
	return pos, nil
}

func (m *Motor) Start(cmd motion.Command) error {
	if err := motion.CheckIdle(m); err != nil {
		return err
	}
	if err := motion.ValidateDistance(m, cmd, m.min, m.max); err != nil {
		return err
	}

	var move func(distance, speed float64) error
	switch cmd.Mode {
	case motion.ModeAbsolute:
		move = m.driver.MoveAbsolute
	case motion.ModeRelative:
		move = m.driver.MoveRelative
	default:
		return motion.Unsupported(cmd.Mode)
	}

	m.SetCommand(cmd)
	if err := move(cmd.Distance, cmd.Speed); err != nil {
		m.ClearCommand()
		m.log.WithError(err).WithField("command", cmd).Error("motion failed")
		return errs.Transport(err, "start %s", cmd)
	}
	return nil
}

func (m *Motor) Stop() error {
	m.ClearCommand()
	return nil
}

// Simulated stands in for a drive whose SDK is not available. Motions complete at once.
type Simulated struct {
	lock     sync.Mutex
	position float64
}

func NewSimulated(position float64) *Simulated {
	return &Simulated{position: position}
}

func (s *Simulated) Position() (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.position, nil
}

func (s *Simulated) MoveAbsolute(distance, speed float64) error {
	s.lock.Lock()
	s.position = distance
	s.lock.Unlock()
	return nil
}

func (s *Simulated) MoveRelative(distance, speed float64) error {
	s.lock.Lock()
	s.position += distance
	s.lock.Unlock()
	return nil
}

func (s *Simulated) CheckBusy() (bool, error) {
	return false, nil
}
