package motion

import (
	"errors"
	"io"
	"testing"

	errs "github.com/CodedInternet/gorecoater/onboard/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type testMotor struct {
	Base
	busy     bool
	position float64
	err      error
}

func (m *testMotor) IsBusy() (bool, error)      { return m.busy, m.err }
func (m *testMotor) Position() (float64, error) { return m.position, m.err }
func (m *testMotor) Start(cmd Command) error {
	m.SetCommand(cmd)
	return nil
}
func (m *testMotor) Stop() error {
	m.ClearCommand()
	return nil
}

func TestFlatForm(t *testing.T) {
	Convey("commands survive a round trip through the flat form", t, func() {
		for _, cmd := range []Command{
			Absolute(12.5, 3),
			Relative(-4, 1.5),
			Homing(10),
			Speed(7),
			{Mode: ModeTurns, Turns: 3, Speed: 2},
		} {
			back, err := CommandFromMap(cmd.ToMap())
			So(err, ShouldBeNil)
			So(back, ShouldResemble, cmd)
		}
	})

	Convey("mode names are lower case", t, func() {
		So(Absolute(1, 1).ToMap()["mode"], ShouldEqual, "absolute")
	})

	Convey("missing keys take their defaults", t, func() {
		cmd, err := CommandFromMap(map[string]interface{}{})
		So(err, ShouldBeNil)
		So(cmd, ShouldResemble, Command{Mode: ModeRelative})
	})

	Convey("numbers arrive in several shapes", t, func() {
		cmd, err := CommandFromMap(map[string]interface{}{
			"mode":     "ABSOLUTE",
			"distance": "12.5",
			"speed":    3,
		})
		So(err, ShouldBeNil)
		So(cmd, ShouldResemble, Absolute(12.5, 3))
	})

	Convey("an unknown mode is a validation error", t, func() {
		_, err := CommandFromMap(map[string]interface{}{"mode": "sideways"})
		var ve errs.ValidationError
		So(errors.As(err, &ve), ShouldBeTrue)
		So(ve.Field, ShouldEqual, "mode")
	})

	Convey("a non numeric value is a validation error", t, func() {
		_, err := CommandFromMap(map[string]interface{}{"speed": "fast"})
		So(errs.StatusCode(err), ShouldEqual, 400)
	})
}

func TestMode(t *testing.T) {
	Convey("modes marshal as text", t, func() {
		text, _ := ModeHoming.MarshalText()
		So(string(text), ShouldEqual, "homing")

		var m Mode
		So(m.UnmarshalText([]byte("speed")), ShouldBeNil)
		So(m, ShouldEqual, ModeSpeed)
		So(ModeUnknown.String(), ShouldEqual, "unknown")
	})
}

func TestBase(t *testing.T) {
	Convey("Given an idle motor", t, func() {
		m := &testMotor{position: 25}
		So(m.Command(), ShouldBeNil)

		Convey("the command is recorded on start and cleared on stop", func() {
			So(m.Start(Relative(5, 1)), ShouldBeNil)
			So(*m.Command(), ShouldResemble, Relative(5, 1))

			Convey("callers get a copy", func() {
				m.Command().Distance = 99
				So(m.Command().Distance, ShouldEqual, 5)
			})

			So(m.Stop(), ShouldBeNil)
			So(m.Command(), ShouldBeNil)
		})

		Convey("GetInfo combines busy and position", func() {
			m.busy = true
			info, err := GetInfo(m)
			So(err, ShouldBeNil)
			So(info, ShouldResemble, Info{Busy: true, Position: 25})
		})

		Convey("CheckIdle", func() {
			So(CheckIdle(m), ShouldBeNil)
			m.busy = true
			So(CheckIdle(m), ShouldResemble, errs.ErrBusy)
			m.err = io.EOF
			So(CheckIdle(m), ShouldEqual, io.EOF)
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Given a motor at 25 on a 0 to 100 travel", t, func() {
		m := &testMotor{position: 25}

		Convey("absolute targets must lie within the travel", func() {
			So(ValidateDistance(m, Absolute(100, 1), 0, 100), ShouldBeNil)
			So(ValidateDistance(m, Absolute(0, 1), 0, 100), ShouldBeNil)
			So(ValidateDistance(m, Absolute(100.5, 1), 0, 100), ShouldResemble,
				errs.ValidationError{Field: "distance", Min: 0, Max: 100})
		})

		Convey("relative targets are bounded by what is left", func() {
			So(ValidateDistance(m, Relative(75, 1), 0, 100), ShouldBeNil)
			So(ValidateDistance(m, Relative(-25, 1), 0, 100), ShouldBeNil)
			So(ValidateDistance(m, Relative(-26, 1), 0, 100), ShouldResemble,
				errs.ValidationError{Field: "distance", Min: -25, Max: 75})
		})

		Convey("other modes are not bounded", func() {
			So(ValidateDistance(m, Speed(5), 0, 100), ShouldBeNil)
			So(ValidateDistance(m, Homing(5), 0, 100), ShouldBeNil)
		})

		Convey("a failing position read is passed through", func() {
			m.err = io.ErrUnexpectedEOF
			So(ValidateDistance(m, Relative(1, 1), 0, 100), ShouldEqual, io.ErrUnexpectedEOF)
		})

		Convey("speeds must be positive and at most the maximum", func() {
			So(ValidateSpeed(Speed(30), 30), ShouldBeNil)
			So(ValidateSpeed(Speed(0), 30), ShouldNotBeNil)
			So(ValidateSpeed(Speed(30.1), 30), ShouldNotBeNil)
		})
	})
}
