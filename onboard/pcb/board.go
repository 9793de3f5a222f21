package pcb

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	OpHoming            byte = 2
	OpHomingDone        byte = 3
	OpDistanceMotion    byte = 4
	OpSetActualPosition byte = 5
	OpActualPosition    byte = 9
	OpBusy              byte = 10
)

// PssPCB talks to the screw controller board. Every request is one opcode byte followed by
// big endian operands. A board without a connection answers every query with fixed
// values: all screws homed, none busy, position zero.
type PssPCB struct {
	conn FrameConn
	lock *sync.Mutex
	log  *logrus.Entry
}

func NewPssPCB(conn FrameConn, log *logrus.Entry) *PssPCB {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PssPCB{conn: conn, lock: new(sync.Mutex), log: log}
}

func NewOfflinePssPCB(log *logrus.Entry) *PssPCB {
	return NewPssPCB(nil, log)
}

func (p *PssPCB) Offline() bool {
	return p.conn == nil
}

func (p *PssPCB) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func (p *PssPCB) PerformHoming(index uint8) error {
	_, err := p.transact(OpHoming, []byte{index}, 0)
	return err
}

// HomedMask returns one bit per screw, set once the screw found its origin.
func (p *PssPCB) HomedMask() (uint16, error) {
	if p.Offline() {
		return 0xFFFF, nil
	}
	reply, err := p.transact(OpHomingDone, nil, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(reply), nil
}

func (p *PssPCB) PerformDistanceMotion(index uint8, target int32) error {
	operands := append([]byte{1, index}, i32(target)...)
	_, err := p.transact(OpDistanceMotion, operands, 0)
	return err
}

func (p *PssPCB) SetActualPosition(index uint8, position int32) error {
	_, err := p.transact(OpSetActualPosition, append([]byte{index}, i32(position)...), 0)
	return err
}

func (p *PssPCB) ActualPosition(index uint8) (int32, error) {
	if p.Offline() {
		return 0, nil
	}
	reply, err := p.transact(OpActualPosition, []byte{index}, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(reply)), nil
}

func (p *PssPCB) BusyMask() (uint16, error) {
	if p.Offline() {
		return 0, nil
	}
	reply, err := p.transact(OpBusy, nil, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(reply), nil
}

// transact sends a frame and reads back a reply of n bytes while holding the board lock.
func (p *PssPCB) transact(opcode byte, operands []byte, n int) ([]byte, error) {
	log := p.log.WithField("opcode", opcode)
	if p.Offline() {
		log.Debug("offline frame")
		return make([]byte, n), nil
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	frame := append([]byte{opcode}, operands...)
	if _, err := p.conn.Write(frame); err != nil {
		log.WithError(err).Error("send frame failed")
		return nil, errors.Wrapf(err, "send opcode %d", opcode)
	}
	if n == 0 {
		return nil, nil
	}

	reply := make([]byte, n)
	if _, err := io.ReadFull(p.conn, reply); err != nil {
		log.WithError(err).Error("receive reply failed")
		return nil, errors.Wrapf(err, "receive reply to opcode %d", opcode)
	}
	return reply, nil
}

func i32(v int32) []byte {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, uint32(v))
	return raw
}
