package i2c

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// DDC register map of u-blox receivers on I2C.
const (
	regBytesAvailHi = 0xFD
	regDataStream   = 0xFF

	// DefaultGNSSAddr is the factory I2C address of u-blox receivers.
	DefaultGNSSAddr = 0x42

	// maxChunk bounds a single stream read; the DDC port buffers up to 4 KiB
	// but smaller transfers keep the bus responsive.
	maxChunk = 255
)

type regIO interface {
	Write(p []byte) error
	ReadReg(reg byte, dst []byte) error
}

// Stream exposes the DDC byte stream of a receiver as a non-blocking
// reader/writer: Read returns only what the receiver has queued and
// (0, nil) when nothing is pending.
type Stream struct {
	dev regIO
	// pending is what the receiver reported available but we have not read.
	pending int
}

// NewStream wraps dev. dev is typically Bus.Dev(DefaultGNSSAddr).
func NewStream(dev *Dev) *Stream {
	return &Stream{dev: dev}
}

func newStreamWithIO(dev regIO) *Stream {
	return &Stream{dev: dev}
}

// Available returns the number of bytes the receiver has queued.
func (s *Stream) Available() (int, error) {
	var b [2]byte
	if err := s.dev.ReadReg(regBytesAvailHi, b[:]); err != nil {
		return 0, errors.Wrap(err, "i2c: read bytes-available")
	}
	n := int(binary.BigEndian.Uint16(b[:]))
	// 0xFFFF is reported while the receiver is not ready.
	if n == 0xFFFF {
		n = 0
	}
	return n, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pending == 0 {
		n, err := s.Available()
		if err != nil {
			return 0, err
		}
		s.pending = n
	}
	if s.pending == 0 {
		return 0, nil
	}
	n := min(len(p), s.pending, maxChunk)
	if err := s.dev.ReadReg(regDataStream, p[:n]); err != nil {
		s.pending = 0
		return 0, errors.Wrap(err, "i2c: read data stream")
	}
	s.pending -= n
	return n, nil
}

// Write sends a complete message. The receiver requires at least two bytes
// per write transaction.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, errors.Errorf("i2c: stream write needs >=2 bytes, got %d", len(p))
	}
	if err := s.dev.Write(p); err != nil {
		return 0, errors.Wrap(err, "i2c: stream write")
	}
	return len(p), nil
}
