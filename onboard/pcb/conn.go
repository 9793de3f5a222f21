package pcb

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// FrameConn is the byte stream a board is reached over.
type FrameConn interface {
	io.ReadWriteCloser
}

func DialTCP(address string, timeout time.Duration) (FrameConn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial board at %s", address)
	}
	return conn, nil
}

func DialSerial(device string, baud int, timeout time.Duration) (FrameConn, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", device)
	}
	return port, nil
}
