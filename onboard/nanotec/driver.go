package nanotec

import (
	"math"
	"sync"
	"time"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/modbus"
	"github.com/sirupsen/logrus"
)

// Timing holds the poll settings of the drive procedures. Interval and Attempts bound the
// lifecycle and operation mode waits, the other intervals pace waits on physical events
// that have no bound.
type Timing struct {
	Interval       time.Duration
	Attempts       int
	SensorInterval time.Duration
	AckInterval    time.Duration
	SpeedInterval  time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Interval:       10 * time.Millisecond,
		Attempts:       100,
		SensorInterval: 10 * time.Millisecond,
		AckInterval:    100 * time.Millisecond,
		SpeedInterval:  100 * time.Millisecond,
	}
}

var modeNames = map[int32]string{
	ModeProfilePosition: "profile position",
	ModeVelocity:        "velocity",
	ModeHoming:          "homing",
}

// Driver runs the power drive system of a Nanotec drive over its register bus.
type Driver struct {
	bus    modbus.RegisterBus
	regs   RegisterMap
	timing Timing
	log    *logrus.Entry

	// abort is closed to interrupt the waits of a running start procedure. stopping
	// counts the stops waiting for the transport.
	abortLock *sync.Mutex
	abort     chan struct{}
	stopping  int
}

func newDriver(bus modbus.RegisterBus, regs RegisterMap, timing Timing, log *logrus.Entry, required ...string) (*Driver, error) {
	if regs == nil {
		regs = DefaultRegisters()
	}
	if err := regs.Check(required...); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Driver{
		bus:       bus,
		regs:      regs,
		timing:    timing,
		log:       log,
		abortLock: new(sync.Mutex),
	}, nil
}

// procedure runs a start procedure as one sequence on the transport. Its waits give up
// with ErrStopped once a stop comes in.
func (d *Driver) procedure(fn func() error) error {
	return d.bus.Sequence(func() error {
		d.arm()
		defer d.disarm()

		if d.aborted() {
			return errs.ErrStopped
		}
		return fn()
	})
}

// stopProcedure interrupts a running start procedure before queueing fn on the transport.
func (d *Driver) stopProcedure(fn func() error) error {
	d.interrupt()
	defer d.release()
	return d.bus.Sequence(fn)
}

func (d *Driver) arm() {
	d.abortLock.Lock()
	defer d.abortLock.Unlock()

	d.abort = make(chan struct{})
	if d.stopping > 0 {
		close(d.abort)
	}
}

func (d *Driver) disarm() {
	d.abortLock.Lock()
	defer d.abortLock.Unlock()
	d.abort = nil
}

func (d *Driver) interrupt() {
	d.abortLock.Lock()
	defer d.abortLock.Unlock()

	if d.stopping == 0 && d.abort != nil {
		close(d.abort)
	}
	d.stopping++
}

func (d *Driver) release() {
	d.abortLock.Lock()
	defer d.abortLock.Unlock()
	d.stopping--
}

// signal is the abort channel of the running start procedure, nil outside of one.
func (d *Driver) signal() <-chan struct{} {
	d.abortLock.Lock()
	defer d.abortLock.Unlock()
	return d.abort
}

func (d *Driver) aborted() bool {
	select {
	case <-d.signal():
		return true
	default:
		return false
	}
}

func (d *Driver) read(name string) (int32, error) {
	reg := d.regs[name]
	v, err := d.bus.ReadRegisters(reg.Address)
	if err != nil {
		d.log.WithError(err).WithField("register", name).Error("register read failed")
		return 0, errs.Transport(err, "read %s", name)
	}
	return v, nil
}

func (d *Driver) write(name string, value int32) error {
	reg := d.regs[name]
	if err := d.bus.WriteRegisters(reg.Address, value); err != nil {
		d.log.WithError(err).WithField("register", name).Error("register write failed")
		return errs.Transport(err, "write %s", name)
	}
	return nil
}

// State reads the status word. A drive without a bus is always SwitchedOn.
func (d *Driver) State() (State, error) {
	if d.bus.Offline() {
		return SwitchedOn, nil
	}

	status, err := d.read(RegStatusWord)
	if err != nil {
		return Unknown, err
	}
	state := DecodeState(uint16(status))
	d.log.WithField("state", state).Debug("drive state")
	return state, nil
}

func (d *Driver) StatusBit(bit uint) (bool, error) {
	if d.bus.Offline() {
		return true, nil
	}

	status, err := d.read(RegStatusWord)
	if err != nil {
		return false, err
	}
	return status&(1<<bit) != 0, nil
}

func (d *Driver) SetControlWord(word uint16) error {
	d.log.WithField("control_word", word).Debug("set control word")
	return d.write(RegControlWord, int32(word))
}

// Enable runs the drive up to SwitchedOn, clearing a pending fault first.
func (d *Driver) Enable() error {
	if d.bus.Offline() {
		d.log.Info("drive offline, skipping enable")
		return nil
	}

	state, err := d.State()
	if err != nil {
		return err
	}

	switch state {
	case FaultReactionActive:
		return errs.Unrecoverable("drive is in %s", state)
	case Fault:
		if err = d.resetFault(); err != nil {
			return err
		}
	}

	steps := []struct {
		target State
		word   uint16
	}{
		{SwitchOnDisabled, ControlDisable},
		{ReadyToSwitchOn, ControlShutdown},
		{SwitchedOn, ControlSwitchOn},
	}
	for _, step := range steps {
		if err = d.reach(step.target, step.word); err != nil {
			return err
		}
	}

	d.log.Info("drive enabled")
	return nil
}

func (d *Driver) resetFault() error {
	d.log.Warn("resetting drive fault")
	if err := d.SetControlWord(ControlFaultReset); err != nil {
		return err
	}
	if err := d.waitState(SwitchOnDisabled); err != nil {
		return err
	}
	return d.SetControlWord(ControlDisable)
}

// reach writes word unless the drive already is in target, then waits for target.
func (d *Driver) reach(target State, word uint16) error {
	state, err := d.State()
	if err != nil || state == target {
		return err
	}
	if err = d.SetControlWord(word); err != nil {
		return err
	}
	return d.waitState(target)
}

func (d *Driver) waitState(target State) error {
	ok, err := d.pollCapped(func() (bool, error) {
		state, err := d.State()
		return state == target, err
	})
	if err == nil && !ok {
		err = errs.Timeout("waiting for state %s", target)
	}
	return err
}

// requireEnabled fails unless the drive can accept a motion.
func (d *Driver) requireEnabled() error {
	state, err := d.State()
	if err != nil {
		return err
	}
	if state != SwitchedOn && state != OperationEnabled {
		return errs.InvalidState("drive is in %s", state)
	}
	return nil
}

func (d *Driver) SetOperationMode(mode int32) error {
	if d.bus.Offline() {
		return nil
	}
	if err := d.write(RegOperationMode, mode); err != nil {
		return err
	}

	ok, err := d.pollCapped(func() (bool, error) {
		current, err := d.read(RegOperationModeRead)
		return current == mode, err
	})
	if err == nil && !ok {
		err = errs.Timeout("operation mode %d (%s) not confirmed", mode, modeNames[mode])
	}
	return err
}

func (d *Driver) waitSetPointAck() error {
	if !d.regs[RegControlWord].Ack {
		return nil
	}
	return d.poll(d.timing.AckInterval, func() (bool, error) {
		return d.StatusBit(statusSetPointAck)
	})
}

func (d *Driver) pollCapped(cond func() (bool, error)) (bool, error) {
	for i := 0; i < d.timing.Attempts; i++ {
		ok, err := cond()
		if err != nil || ok {
			return ok, err
		}
		if err = d.sleep(d.timing.Interval); err != nil {
			return false, err
		}
	}
	return false, nil
}

// poll waits for cond without a bound. Only a stop ends it early.
func (d *Driver) poll(interval time.Duration, cond func() (bool, error)) error {
	for {
		ok, err := cond()
		if err != nil || ok {
			return err
		}
		if err = d.sleep(interval); err != nil {
			return err
		}
	}
}

func (d *Driver) sleep(interval time.Duration) error {
	select {
	case <-d.signal():
		d.log.Warn("procedure interrupted by stop")
		return errs.ErrStopped
	case <-time.After(interval):
		return nil
	}
}

func (d *Driver) infoBit(bit uint) (bool, error) {
	info, err := d.read(RegInfoOut)
	if err != nil {
		return false, err
	}
	return info&(1<<bit) != 0, nil
}

func (d *Driver) IsBusy() (bool, error) {
	return d.infoBit(0)
}

// Position is the actual position in mm.
func (d *Driver) Position() (float64, error) {
	v, err := d.read(RegActualPosition)
	return float64(v) / 1000, err
}

// GetSpeed is the actual speed in mm/s.
func (d *Driver) GetSpeed() (float64, error) {
	v, err := d.read(RegActualSpeed)
	return float64(v) / 1000, err
}

func (d *Driver) writeAll(values ...registerValue) error {
	for _, v := range values {
		if err := d.write(v.name, v.value); err != nil {
			return err
		}
	}
	return nil
}

type registerValue struct {
	name  string
	value int32
}

func (d *Driver) speedMotion(speed int32, acceleration int32) error {
	err := d.writeAll(
		registerValue{RegTargetSpeed, speed},
		registerValue{RegAcceleration, acceleration},
	)
	if err != nil {
		return err
	}
	if err = d.SetOperationMode(ModeVelocity); err != nil {
		return err
	}
	return d.SetControlWord(ControlEnable)
}

func (d *Driver) loadPositionTargets(distance, speed float64, acceleration, deceleration int32) error {
	return d.writeAll(
		registerValue{RegTargetPosition, micro(distance)},
		registerValue{RegTargetSpeed, micro(speed)},
		registerValue{RegAcceleration, acceleration},
		registerValue{RegDeceleration, deceleration},
	)
}

// triggerSetPoint starts a loaded profile position motion and releases the new set point
// bit once the drive acknowledged it.
func (d *Driver) triggerSetPoint(relative bool) error {
	word := positionControlWord(relative)
	if err := d.SetControlWord(word); err != nil {
		return err
	}
	if err := d.waitSetPointAck(); err != nil {
		return err
	}
	return d.SetControlWord(word &^ (1 << 4))
}

// micro converts mm to the µm the drives count in.
func micro(v float64) int32 {
	return int32(math.Round(v * 1000))
}
