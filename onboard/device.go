package onboard

import (
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/CodedInternet/gorecoater/onboard/axis"
	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/external"
	"github.com/CodedInternet/gorecoater/onboard/modbus"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	"github.com/CodedInternet/gorecoater/onboard/nanotec"
	"github.com/CodedInternet/gorecoater/onboard/pcb"
	"github.com/CodedInternet/gorecoater/onboard/screw"
	"github.com/sirupsen/logrus"
)

// Stater is implemented by drives running a power drive system.
type Stater interface {
	State() (nanotec.State, error)
}

// Recoater holds every axis of the machine, built from its hardware config.
type Recoater struct {
	Axes   map[string]axis.Axis
	Blades map[string]axis.Blade

	config  RecoaterConfig
	store   screw.PositionStore
	offline bool
	log     *logrus.Entry

	buses  map[string]modbus.RegisterBus
	boards map[string]*pcb.PssPCB
}

// NewRecoater connects every drive of config. A drive that cannot be reached or enabled
// is logged and left out, configuration mistakes fail the whole device.
func NewRecoater(config RecoaterConfig, store screw.PositionStore, offline bool, log *logrus.Entry) (r *Recoater, err error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	r = &Recoater{
		Axes:    make(map[string]axis.Axis, len(config.Drives)),
		Blades:  make(map[string]axis.Blade, len(config.Blades)),
		config:  config,
		store:   store,
		offline: offline,
		log:     log,
		buses:   make(map[string]modbus.RegisterBus),
		boards:  make(map[string]*pcb.PssPCB),
	}

	for _, name := range sortedKeys(config.Drives) {
		var motor motion.Motor
		motor, err = r.newMotor(name, config.Drives[name])
		if err != nil {
			if isConfigError(err) {
				r.Close()
				return nil, err
			}
			log.WithError(err).WithField("axis", name).Error("drive unavailable")
			err = nil
			continue
		}
		r.Axes[name] = axis.New(motor)
	}

	for name, screws := range config.Blades {
		blade := make(axis.Blade, 0, len(screws))
		for _, screwName := range screws {
			a, ok := r.Axes[screwName]
			if !ok {
				log.WithFields(logrus.Fields{"blade": name, "axis": screwName}).Error("blade screw unavailable")
				continue
			}
			blade = append(blade, a.Motor())
		}
		r.Blades[name] = blade
	}

	for name, drive := range config.Drives {
		a, ok := r.Axes[name]
		if !ok {
			continue
		}
		if len(drive.Blade) > 0 {
			blade, ok := r.Blades[drive.Blade]
			if !ok {
				r.Close()
				return nil, configError{fmt.Errorf("axis %s: unknown blade %s", name, drive.Blade)}
			}
			a = axis.NewBladeGuard(a, blade)
		}
		if g := drive.Gripper; g != nil {
			bus, err := r.getBus(g.Host, g.Port, drive.TimeoutMs)
			if err != nil {
				log.WithError(err).WithField("axis", name).Error("gripper unavailable")
			} else {
				a = axis.NewGripperAxis(a, axis.RegisterSwitch{Bus: bus, Address: g.Register}, log.WithField("axis", name))
			}
		}
		r.Axes[name] = a
	}

	return r, nil
}

type configError struct {
	error
}

func isConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}

func (r *Recoater) newMotor(name string, drive DriveConfig) (motion.Motor, error) {
	log := r.log.WithFields(logrus.Fields{"axis": name, "drive": drive.Type})

	switch drive.Type {
	case DriveBldc, DriveStepper:
		regs := drive.RegisterMap()
		bus, err := r.getBus(drive.Host, drive.Port, drive.TimeoutMs)
		if err != nil {
			return nil, err
		}
		if drive.Type == DriveBldc {
			return wrapRegisterErr(nanotec.NewBldc(bus, regs, drive.Limits(), r.config.Poll.Timing(), log))
		}
		return wrapRegisterErr(nanotec.NewStepper(bus, regs, drive.Limits(), r.config.Poll.Timing(), log))

	case DriveScrew:
		if _, ok := r.config.Boards[drive.Board]; !ok {
			return nil, configError{fmt.Errorf("axis %s: unknown board %s", name, drive.Board)}
		}
		board, err := r.getBoard(drive.Board)
		if err != nil {
			return nil, err
		}
		s, err := screw.New(name, drive.Index, board, r.store, drive.ScrewConfig(), log)
		if _, ok := err.(errs.ValidationError); ok {
			return nil, configError{err}
		}
		return s, err

	case DriveExternal:
		// no vendor SDK is linked, the drive is simulated
		return external.NewMotor(external.NewSimulated(drive.MinAbsDistance), drive.MinAbsDistance, drive.MaxAbsDistance, log), nil
	}

	return nil, configError{fmt.Errorf("axis %s: unknown drive type %q", name, drive.Type)}
}

// wrapRegisterErr marks a bad register map as a configuration mistake.
func wrapRegisterErr(m motion.Motor, err error) (motion.Motor, error) {
	if err != nil {
		if _, ok := err.(*errs.InternalError); !ok {
			return nil, configError{err}
		}
		return nil, err
	}
	return m, nil
}

func (r *Recoater) getBus(host string, port, timeoutMs int) (bus modbus.RegisterBus, err error) {
	if port == 0 {
		port = modbus.DefaultPort
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	bus, ok := r.buses[address]
	if !ok {
		log := r.log.WithField("addr", address)
		if r.offline {
			bus = modbus.NewOfflineBus(log)
		} else {
			bus, err = modbus.DialTCP(address, timeout(timeoutMs), log)
			if err != nil {
				return nil, errs.Transport(err, "connect to %s", address)
			}
		}
		r.buses[address] = bus
	}
	return
}

func (r *Recoater) getBoard(name string) (board *pcb.PssPCB, err error) {
	board, ok := r.boards[name]
	if ok {
		return
	}

	conf := r.config.Boards[name]
	log := r.log.WithField("board", name)
	if r.offline {
		board = pcb.NewOfflinePssPCB(log)
	} else {
		var conn pcb.FrameConn
		switch conf.Transport {
		case "serial":
			conn, err = pcb.DialSerial(conf.Device, conf.Baud, timeout(conf.TimeoutMs))
		case "", "tcp":
			conn, err = pcb.DialTCP(net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)), timeout(conf.TimeoutMs))
		default:
			return nil, configError{fmt.Errorf("board %s: unknown transport %q", name, conf.Transport)}
		}
		if err != nil {
			return nil, errs.Transport(err, "connect to board %s", name)
		}
		board = pcb.NewPssPCB(conn, log)
	}
	r.boards[name] = board
	return
}

func (r *Recoater) AxisNames() []string {
	names := make([]string, 0, len(r.Axes))
	for name := range r.Axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Recoater) Axis(name string) (axis.Axis, error) {
	a, ok := r.Axes[name]
	if !ok {
		return nil, errs.NotFoundError{Name: name}
	}
	return a, nil
}

func (r *Recoater) Info(name string) (motion.Info, error) {
	a, err := r.Axis(name)
	if err != nil {
		return motion.Info{}, err
	}
	return a.Info()
}

func (r *Recoater) Command(name string) (*motion.Command, error) {
	a, err := r.Axis(name)
	if err != nil {
		return nil, err
	}
	return a.Command(), nil
}

func (r *Recoater) StartMotion(name string, cmd motion.Command) error {
	a, err := r.Axis(name)
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"axis": name, "command": cmd}).Info("start motion")
	return a.StartMotion(cmd)
}

func (r *Recoater) StopMotion(name string) error {
	a, err := r.Axis(name)
	if err != nil {
		return err
	}
	r.log.WithField("axis", name).Info("stop motion")
	return a.StopMotion()
}

// State returns the power drive state of the named axis.
func (r *Recoater) State(name string) (nanotec.State, error) {
	a, err := r.Axis(name)
	if err != nil {
		return nanotec.Unknown, err
	}
	s, ok := a.Motor().(Stater)
	if !ok {
		return nanotec.Unknown, errs.ConflictError{Reason: fmt.Sprintf("axis %s has no drive state", name)}
	}
	return s.State()
}

// ScrewPositions returns the tracked and the board counted position of a screw axis.
func (r *Recoater) ScrewPositions(name string) (tracked, board float64, err error) {
	a, err := r.Axis(name)
	if err != nil {
		return
	}
	s, ok := a.Motor().(*screw.Screw)
	if !ok {
		err = errs.ConflictError{Reason: fmt.Sprintf("axis %s is not a screw", name)}
		return
	}
	if tracked, err = s.Position(); err != nil {
		return
	}
	board, err = s.BoardPosition()
	return
}

func (r *Recoater) Gripper(name string) (*axis.GripperAxis, error) {
	a, err := r.Axis(name)
	if err != nil {
		return nil, err
	}
	g, ok := a.(*axis.GripperAxis)
	if !ok {
		return nil, errs.NotFoundError{Kind: "gripper on axis", Name: name}
	}
	return g, nil
}

func (r *Recoater) Blade(name string) (axis.Blade, error) {
	b, ok := r.Blades[name]
	if !ok {
		return nil, errs.NotFoundError{Kind: "blade", Name: name}
	}
	return b, nil
}

func (r *Recoater) Close() {
	for address, bus := range r.buses {
		if err := bus.Close(); err != nil {
			r.log.WithError(err).WithField("addr", address).Warn("closing bus failed")
		}
	}
	for name, board := range r.boards {
		if err := board.Close(); err != nil {
			r.log.WithError(err).WithField("board", name).Warn("closing board failed")
		}
	}
}

func sortedKeys(m map[string]DriveConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
