package motion

import (
	"sync"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
)

// Motor is implemented by every axis driver in the recoater.
type Motor interface {
	IsBusy() (bool, error)
	Position() (float64, error)
	Start(cmd Command) error
	Stop() error
	// Command returns the last accepted command, or nil when idle.
	Command() *Command
}

type Info struct {
	Busy     bool    `json:"busy"`
	Position float64 `json:"position"`
}

func GetInfo(m Motor) (info Info, err error) {
	if info.Busy, err = m.IsBusy(); err != nil {
		return
	}
	info.Position, err = m.Position()
	return
}

// Base keeps the current command of a motor.
type Base struct {
	lock    sync.RWMutex
	current *Command
}

func (b *Base) Command() *Command {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.current == nil {
		return nil
	}
	cmd := *b.current
	return &cmd
}

func (b *Base) SetCommand(cmd Command) {
	b.lock.Lock()
	b.current = &cmd
	b.lock.Unlock()
}

func (b *Base) ClearCommand() {
	b.lock.Lock()
	b.current = nil
	b.lock.Unlock()
}

// CheckIdle fails with ErrBusy when the motor reports a running motion.
func CheckIdle(m Motor) error {
	busy, err := m.IsBusy()
	if err != nil {
		return err
	}
	if busy {
		return errs.ErrBusy
	}
	return nil
}

func ValidateSpeed(cmd Command, max float64) error {
	if cmd.Speed <= 0 || cmd.Speed > max {
		return errs.ValidationError{Field: "speed", Min: 0, Max: max, Unit: "mm/s"}
	}
	return nil
}

// ValidateDistance checks the command target against the absolute travel [min, max].
// Relative commands are checked against the range left from the current position.
func ValidateDistance(m Motor, cmd Command, min, max float64) error {
	switch cmd.Mode {
	case ModeAbsolute:
	case ModeRelative:
		pos, err := m.Position()
		if err != nil {
			return err
		}
		min, max = min-pos, max-pos
	default:
		return nil
	}

	if cmd.Distance < min || cmd.Distance > max {
		return errs.ValidationError{Field: "distance", Min: min, Max: max}
	}
	return nil
}

// Unsupported rejects a mode the motor has no procedure for.
func Unsupported(mode Mode) error {
	return errs.ValidationError{Field: "mode", Reason: mode.String() + " motions are not supported by this motor"}
}
