package axis

import (
	"testing"
	"time"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	"github.com/CodedInternet/gorecoater/onboard/external"
	"github.com/CodedInternet/gorecoater/onboard/modbus"
	"github.com/CodedInternet/gorecoater/onboard/motion"
	. "github.com/smartystreets/goconvey/convey"
)

func simulatedMotor(position float64) motion.Motor {
	return external.NewMotor(external.NewSimulated(position), 0, 1000, nil)
}

type memoryBus struct {
	modbus.OfflineBus
	regs map[uint16]int32
}

func (b *memoryBus) ReadRegisters(address uint16) (int32, error) { return b.regs[address], nil }
func (b *memoryBus) WriteRegisters(address uint16, value int32) error {
	b.regs[address] = value
	return nil
}

func TestAxis(t *testing.T) {
	Convey("an axis forwards to its motor", t, func() {
		a := New(simulatedMotor(20))
		So(a.StartMotion(motion.Relative(5, 1)), ShouldBeNil)

		info, err := a.Info()
		So(err, ShouldBeNil)
		So(info.Position, ShouldEqual, 25)
		So(*a.Command(), ShouldResemble, motion.Relative(5, 1))

		So(a.StopMotion(), ShouldBeNil)
		So(a.Command(), ShouldBeNil)
	})
}

func TestBlade(t *testing.T) {
	Convey("Given a blade with two screws", t, func() {
		left, right := simulatedMotor(150), simulatedMotor(120)
		blade := Blade{left, right}

		Convey("both screws take the command", func() {
			So(blade.StartMotion(motion.Relative(10, 1)), ShouldBeNil)
			infos, err := blade.Info()
			So(err, ShouldBeNil)
			So(infos, ShouldResemble, []ScrewInfo{
				{ID: 0, Info: motion.Info{Position: 160}},
				{ID: 1, Info: motion.Info{Position: 130}},
			})
			So(*blade.Command(), ShouldResemble, motion.Relative(10, 1))

			So(blade.StopMotion(), ShouldBeNil)
			So(left.Command(), ShouldBeNil)
			So(right.Command(), ShouldBeNil)
		})

		Convey("it is above the threshold only when every screw is", func() {
			above, err := blade.AboveThreshold()
			So(err, ShouldBeNil)
			So(above, ShouldBeTrue)

			So(right.Start(motion.Absolute(99, 1)), ShouldBeNil)
			above, _ = blade.AboveThreshold()
			So(above, ShouldBeFalse)
		})

		Convey("a guarded drum only turns with the blade up", func() {
			drum := NewBladeGuard(New(simulatedMotor(0)), blade)
			So(drum.StartMotion(motion.Relative(1, 1)), ShouldBeNil)

			So(left.Start(motion.Absolute(BladeThreshold, 1)), ShouldBeNil)
			So(drum.StartMotion(motion.Relative(1, 1)), ShouldBeNil)

			So(left.Start(motion.Absolute(BladeThreshold-1, 1)), ShouldBeNil)
			So(drum.StartMotion(motion.Relative(1, 1)), ShouldResemble, errs.ErrBladeTooLow)

			info, _ := drum.Info()
			So(info.Position, ShouldEqual, 2)
		})
	})

	Convey("an empty blade has no command", t, func() {
		So(Blade{}.Command(), ShouldBeNil)
	})
}

func TestGripper(t *testing.T) {
	Convey("a gripper axis drives its register switch", t, func() {
		bus := &memoryBus{regs: map[uint16]int32{}}
		g := NewGripperAxis(New(simulatedMotor(0)), RegisterSwitch{Bus: bus, Address: 42}, nil)

		closed, err := g.Gripper()
		So(err, ShouldBeNil)
		So(closed, ShouldBeFalse)

		So(g.SetGripper(true), ShouldBeNil)
		So(bus.regs[42], ShouldEqual, 1)
		closed, _ = g.Gripper()
		So(closed, ShouldBeTrue)

		Convey("the switch waits for a sequence running on its transport", func() {
			release := make(chan struct{})
			running := make(chan struct{})
			go bus.Sequence(func() error {
				close(running)
				<-release
				return nil
			})
			<-running

			done := make(chan error, 1)
			go func() { done <- g.SetGripper(false) }()
			select {
			case <-done:
				t.Fatal("gripper written in the middle of a sequence")
			case <-time.After(50 * time.Millisecond):
			}

			close(release)
			So(<-done, ShouldBeNil)
			So(bus.regs[42], ShouldEqual, 0)
		})

		So(g.StartMotion(motion.Absolute(3, 1)), ShouldBeNil)
		info, _ := g.Info()
		So(info.Position, ShouldEqual, 3)
	})
}
