package axis

import (
	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/motion"
)

// BladeThreshold is the lowest screw position that leaves room for the drum to turn.
const BladeThreshold = 100

type ScrewInfo struct {
	ID int `json:"id"`
	motion.Info
}

// Blade is a scraping blade lifted by several screws moving together.
type Blade []motion.Motor

func (b Blade) Info() ([]ScrewInfo, error) {
	infos := make([]ScrewInfo, 0, len(b))
	for i, screw := range b {
		info, err := motion.GetInfo(screw)
		if err != nil {
			return nil, err
		}
		infos = append(infos, ScrewInfo{ID: i, Info: info})
	}
	return infos, nil
}

func (b Blade) Command() *motion.Command {
	if len(b) == 0 {
		return nil
	}
	return b[0].Command()
}

// StartMotion sends cmd to every screw and stops at the first refusal.
func (b Blade) StartMotion(cmd motion.Command) error {
	for _, screw := range b {
		if err := screw.Start(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (b Blade) StopMotion() error {
	var first error
	for _, screw := range b {
		if err := screw.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b Blade) AboveThreshold() (bool, error) {
	for _, screw := range b {
		pos, err := screw.Position()
		if err != nil {
			return false, err
		}
		if pos < BladeThreshold {
			return false, nil
		}
	}
	return true, nil
}

// BladeGuard keeps a drum from turning while its scraping blade is down.
type BladeGuard struct {
	Decorator
	Blade Blade
}

func NewBladeGuard(drum Axis, blade Blade) *BladeGuard {
	return &BladeGuard{Decorator: Decorator{Axis: drum}, Blade: blade}
}

func (g *BladeGuard) StartMotion(cmd motion.Command) error {
	above, err := g.Blade.AboveThreshold()
	if err != nil {
		return err
	}
	if !above {
		return errs.ErrBladeTooLow
	}
	return g.Axis.StartMotion(cmd)
}
