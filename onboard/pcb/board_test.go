package pcb

import (
	"bytes"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type testConn struct {
	replies *bytes.Reader
	sent    bytes.Buffer
	closed  bool
}

func newTestConn(replies ...byte) *testConn {
	return &testConn{replies: bytes.NewReader(replies)}
}

func (c *testConn) Read(b []byte) (int, error)  { return c.replies.Read(b) }
func (c *testConn) Write(b []byte) (int, error) { return c.sent.Write(b) }
func (c *testConn) Close() error {
	c.closed = true
	return nil
}

func TestFrames(t *testing.T) {
	Convey("Given a connected board", t, func() {
		conn := newTestConn()
		board := NewPssPCB(conn, nil)
		So(board.Offline(), ShouldBeFalse)

		Convey("homing sends the screw index", func() {
			So(board.PerformHoming(3), ShouldBeNil)
			So(conn.sent.Bytes(), ShouldResemble, []byte{2, 3})
		})

		Convey("distance motions carry a signed target", func() {
			So(board.PerformDistanceMotion(1, -2), ShouldBeNil)
			So(conn.sent.Bytes(), ShouldResemble, []byte{4, 1, 1, 0xFF, 0xFF, 0xFF, 0xFE})
		})

		Convey("set actual position", func() {
			So(board.SetActualPosition(0, 0x01020304), ShouldBeNil)
			So(conn.sent.Bytes(), ShouldResemble, []byte{5, 0, 1, 2, 3, 4})
		})

		Convey("closing closes the link", func() {
			So(board.Close(), ShouldBeNil)
			So(conn.closed, ShouldBeTrue)
		})
	})

	Convey("replies are decoded big endian", t, func() {
		conn := newTestConn(0x00, 0x05, 0x80, 0x01, 0x00, 0x00, 0x01, 0x00)
		board := NewPssPCB(conn, nil)

		mask, err := board.BusyMask()
		So(err, ShouldBeNil)
		So(mask, ShouldEqual, 5)
		So(conn.sent.Bytes(), ShouldResemble, []byte{10})

		mask, err = board.HomedMask()
		So(err, ShouldBeNil)
		So(mask, ShouldEqual, 0x8001)

		pos, err := board.ActualPosition(2)
		So(err, ShouldBeNil)
		So(pos, ShouldEqual, 256)
		So(conn.sent.Bytes(), ShouldResemble, []byte{10, 3, 9, 2})
	})

	Convey("a short reply is a transport failure", t, func() {
		board := NewPssPCB(newTestConn(0x01), nil)
		_, err := board.BusyMask()
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, io.ErrUnexpectedEOF.Error())
	})
}

func TestOfflineBoard(t *testing.T) {
	Convey("an offline board answers with fixed values", t, func() {
		board := NewOfflinePssPCB(nil)
		So(board.Offline(), ShouldBeTrue)

		homed, err := board.HomedMask()
		So(err, ShouldBeNil)
		So(homed, ShouldEqual, 0xFFFF)

		busy, _ := board.BusyMask()
		So(busy, ShouldEqual, 0)

		pos, _ := board.ActualPosition(0)
		So(pos, ShouldEqual, 0)

		So(board.PerformDistanceMotion(0, 100), ShouldBeNil)
		So(board.Close(), ShouldBeNil)
	})
}
