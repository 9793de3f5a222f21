package modbus

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultPort = 502

// RegisterBus reads and writes signed 32 bit values spread over two 16 bit registers,
// most significant word first.
type RegisterBus interface {
	ReadRegisters(address uint16) (int32, error)
	WriteRegisters(address uint16, value int32) error
	Offline() bool
	Close() error
	// Sequence runs fn while no other sequence runs on the transport, so that a
	// write-poll-write handshake is never interleaved with another one.
	Sequence(fn func() error) error
}

type TCPBus struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	lock    *sync.Mutex
	log     *logrus.Entry

	sequence *sync.Mutex
}

func DialTCP(address string, timeout time.Duration, log *logrus.Entry) (bus *TCPBus, err error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.Timeout = timeout
	if err = handler.Connect(); err != nil {
		return nil, errors.Wrapf(err, "connect %s", address)
	}

	bus = &TCPBus{
		handler: handler,
		client:  modbus.NewClient(handler),
		lock:    new(sync.Mutex),
		log:     log.WithField("addr", address),

		sequence: new(sync.Mutex),
	}
	return
}

func (b *TCPBus) ReadRegisters(address uint16) (int32, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	raw, err := b.client.ReadInputRegisters(address, 2)
	if err != nil {
		b.log.WithError(err).WithField("register", address).Error("read registers failed")
		return 0, errors.Wrapf(err, "read registers at %d", address)
	}
	return decode(raw)
}

func (b *TCPBus) WriteRegisters(address uint16, value int32) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, err := b.client.WriteMultipleRegisters(address, 2, encode(value)); err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"register": address, "value": value}).Error("write registers failed")
		return errors.Wrapf(err, "write registers at %d", address)
	}
	return nil
}

func (b *TCPBus) Sequence(fn func() error) error {
	b.sequence.Lock()
	defer b.sequence.Unlock()
	return fn()
}

func (b *TCPBus) Offline() bool {
	return false
}

func (b *TCPBus) Close() error {
	return b.handler.Close()
}

func encode(value int32) []byte {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, uint32(value))
	return raw
}

func decode(raw []byte) (int32, error) {
	if len(raw) != 4 {
		return 0, errors.Errorf("expected 4 bytes, got %d", len(raw))
	}
	return int32(binary.BigEndian.Uint32(raw)), nil
}

// OfflineBus stands in for a drive that is not connected. Reads return zero and writes
// are only logged.
type OfflineBus struct {
	log      *logrus.Entry
	sequence sync.Mutex
}

func NewOfflineBus(log *logrus.Entry) *OfflineBus {
	return &OfflineBus{log: log}
}

func (b *OfflineBus) ReadRegisters(address uint16) (int32, error) {
	return 0, nil
}

func (b *OfflineBus) WriteRegisters(address uint16, value int32) error {
	b.log.WithFields(logrus.Fields{"register": address, "value": value}).Debug("offline write")
	return nil
}

func (b *OfflineBus) Offline() bool {
	return true
}

func (b *OfflineBus) Close() error {
	return nil
}

func (b *OfflineBus) Sequence(fn func() error) error {
	b.sequence.Lock()
	defer b.sequence.Unlock()
	return fn()
}
