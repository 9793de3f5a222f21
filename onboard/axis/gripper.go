package axis

import (
	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/modbus"
	"github.com/sirupsen/logrus"
)

type GripperSwitch interface {
	GripperState() (bool, error)
	SetGripperState(closed bool) error
}

// GripperAxis is an axis carrying a gripper.
type GripperAxis struct {
	Decorator
	gripper GripperSwitch
	log     *logrus.Entry
}

func NewGripperAxis(axis Axis, gripper GripperSwitch, log *logrus.Entry) *GripperAxis {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GripperAxis{Decorator: Decorator{Axis: axis}, gripper: gripper, log: log}
}

func (g *GripperAxis) Gripper() (bool, error) {
	return g.gripper.GripperState()
}

func (g *GripperAxis) SetGripper(closed bool) error {
	if err := g.gripper.SetGripperState(closed); err != nil {
		return err
	}
	g.log.WithField("closed", closed).Info("gripper set")
	return nil
}

// RegisterSwitch is a gripper driven by one register of a PLC, non zero meaning closed.
type RegisterSwitch struct {
	Bus     modbus.RegisterBus
	Address uint16
}

// GripperState and SetGripperState run as sequences, the PLC may share its transport
// with drives in the middle of a handshake.
func (s RegisterSwitch) GripperState() (closed bool, err error) {
	err = s.Bus.Sequence(func() error {
		v, err := s.Bus.ReadRegisters(s.Address)
		if err != nil {
			return errs.Transport(err, "read gripper state")
		}
		closed = v != 0
		return nil
	})
	return
}

func (s RegisterSwitch) SetGripperState(closed bool) error {
	var v int32
	if closed {
		v = 1
	}
	return s.Bus.Sequence(func() error {
		if err := s.Bus.WriteRegisters(s.Address, v); err != nil {
			return errs.Transport(err, "set gripper state")
		}
		return nil
	})
}
