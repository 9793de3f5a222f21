package axis

import (
	"github.com/CodedInternet/gorecoater/onboard/motion"
)

// Axis is a named mechanical axis of the recoater driven by one motor.
type Axis interface {
	Motor() motion.Motor
	Info() (motion.Info, error)
	Command() *motion.Command
	StartMotion(cmd motion.Command) error
	StopMotion() error
}

type single struct {
	motor motion.Motor
}

func New(motor motion.Motor) Axis {
	return &single{motor: motor}
}

func (a *single) Motor() motion.Motor {
	return a.motor
}

func (a *single) Info() (motion.Info, error) {
	return motion.GetInfo(a.motor)
}

func (a *single) Command() *motion.Command {
	return a.motor.Command()
}

func (a *single) StartMotion(cmd motion.Command) error {
	return a.motor.Start(cmd)
}

func (a *single) StopMotion() error {
	return a.motor.Stop()
}

// Decorator forwards every call to the wrapped axis. Decorations embed it and override
// what they change.
type Decorator struct {
	Axis Axis
}

func (d Decorator) Motor() motion.Motor                  { return d.Axis.Motor() }
func (d Decorator) Info() (motion.Info, error)           { return d.Axis.Info() }
func (d Decorator) Command() *motion.Command             { return d.Axis.Command() }
func (d Decorator) StartMotion(cmd motion.Command) error { return d.Axis.StartMotion(cmd) }
func (d Decorator) StopMotion() error                    { return d.Axis.StopMotion() }
