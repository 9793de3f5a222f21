package screw

import (
	"sync"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/sirupsen/logrus"
)

// DefaultPosition is assumed when nothing better is known, so that an unhomed screw is
// never taken to sit at its origin.
const DefaultPosition = 300

// Board is the part of the screw controller board a screw needs.
type Board interface {
	PerformHoming(index uint8) error
	HomedMask() (uint16, error)
	PerformDistanceMotion(index uint8, target int32) error
	SetActualPosition(index uint8, position int32) error
	ActualPosition(index uint8) (int32, error)
	BusyMask() (uint16, error)
	Offline() bool
}

// PositionStore keeps the last position of every screw across restarts.
type PositionStore interface {
	LoadPosition(key string) (position float64, ok bool, err error)
	SavePosition(key string, position float64) error
}

// Config describes the mechanics of a screw. Distances are in µm.
type Config struct {
	StepsPerRev       int
	MicrostepsPerStep int
	MicronPerRev      int
	MinAbsDistance    float64
	MaxAbsDistance    float64
}

// Screw is a lead screw driven by the board. The board has no absolute position memory,
// the position is tracked in software and persisted after every motion.
type Screw struct {
	motion.Base
	name   string
	index  uint8
	board  Board
	store  PositionStore
	config Config
	log    *logrus.Entry

	mu       sync.Mutex
	position float64
}

func New(name string, index uint8, board Board, store PositionStore, config Config, log *logrus.Entry) (*Screw, error) {
	if config.MicronPerRev <= 0 {
		return nil, errs.ValidationError{Field: "micron_per_rev", Reason: "must be positive"}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Screw{
		name:     name,
		index:    index,
		board:    board,
		store:    store,
		config:   config,
		position: DefaultPosition,
		log:      log.WithFields(logrus.Fields{"axis": name, "index": index}),
	}
	if err := s.restore(); err != nil {
		return nil, err
	}
	return s, nil
}

// restore loads the stored position and hands it to the board.
func (s *Screw) restore() error {
	if s.board.Offline() {
		return nil
	}

	position, ok, err := s.store.LoadPosition(s.name)
	if err != nil {
		s.log.WithError(err).Error("loading position failed")
		return errs.Transport(err, "load position of %s", s.name)
	}
	if !ok {
		s.log.WithField("position", s.position).Warn("no stored position, assuming default")
		return nil
	}

	s.position = position
	if err = s.board.SetActualPosition(s.index, s.raw(position)); err != nil {
		return errs.Transport(err, "restore position of %s", s.name)
	}
	s.log.WithField("position", position).Info("position restored")
	return nil
}

// raw converts µm to board steps.
func (s *Screw) raw(distance float64) int32 {
	c := s.config
	return int32(distance * float64(c.StepsPerRev) * float64(c.MicrostepsPerStep) / float64(c.MicronPerRev))
}

// BoardPosition reads the position the board firmware counted, in µm. It drifts from the
// tracked position when a motion is lost.
func (s *Screw) BoardPosition() (float64, error) {
	c := s.config
	steps := c.StepsPerRev * c.MicrostepsPerStep
	if steps == 0 {
		return 0, errs.InvalidState("screw %s has no steps per revolution", s.name)
	}
	raw, err := s.board.ActualPosition(s.index)
	if err != nil {
		return 0, errs.Transport(err, "read board position of %s", s.name)
	}
	return float64(raw) * float64(c.MicronPerRev) / float64(steps), nil
}

func (s *Screw) bit(mask func() (uint16, error)) (bool, error) {
	m, err := mask()
	if err != nil {
		return false, errs.Transport(err, "read mask of %s", s.name)
	}
	return m&(1<<s.index) != 0, nil
}

func (s *Screw) IsBusy() (bool, error) {
	return s.bit(s.board.BusyMask)
}

func (s *Screw) IsHomed() (bool, error) {
	return s.bit(s.board.HomedMask)
}

func (s *Screw) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

func (s *Screw) Start(cmd motion.Command) error {
	if err := motion.CheckIdle(s); err != nil {
		return err
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
	if err := motion.ValidateDistance(s, cmd, s.config.MinAbsDistance, s.config.MaxAbsDistance); err != nil {
		return err
	}

	var err error
	switch cmd.Mode {
	case motion.ModeHoming:
		s.SetCommand(cmd)
		err = s.home()
	case motion.ModeAbsolute:
		s.SetCommand(cmd)
		err = s.moveTo(cmd.Distance)
	case motion.ModeRelative:
		s.SetCommand(cmd)
		var position float64
		if position, err = s.Position(); err == nil {
			err = s.moveTo(cmd.Distance + position)
		}
	default:
		return motion.Unsupported(cmd.Mode)
	}

	if err != nil {
		s.ClearCommand()
	}
	return err
}

// home starts homing on the board and takes the origin right away. Completion shows in
// the busy and homed masks.
func (s *Screw) home() error {
	if err := s.board.PerformHoming(s.index); err != nil {
		return errs.Transport(err, "home %s", s.name)
	}
	return s.setPosition(0)
}

func (s *Screw) moveTo(target float64) error {
	s.log.WithField("target", target).Info("moving screw")
	if err := s.board.PerformDistanceMotion(s.index, s.raw(target)); err != nil {
		return errs.Transport(err, "move %s", s.name)
	}
	return s.setPosition(target)
}

func (s *Screw) setPosition(position float64) error {
	s.mu.Lock()
	s.position = position
	s.mu.Unlock()

	if err := s.store.SavePosition(s.name, position); err != nil {
		s.log.WithError(err).Error("saving position failed")
		return errs.Transport(err, "save position of %s", s.name)
	}
	return nil
}

// Stop only forgets the command, the board has no way to abort a motion.
func (s *Screw) Stop() error {
	s.ClearCommand()
	return nil
}
