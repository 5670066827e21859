// Package ubx implements the subset of the u-blox UBX binary protocol needed
// to detect, configure and poll a receiver: frame encoding, an incremental
// frame decoder and the CFG/NAV/ACK messages used by the tracker.
package ubx

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	Sync1 = 0xB5
	Sync2 = 0x62

	// headerLen covers sync, class, id and the 16-bit length.
	headerLen = 6
	// maxPayload bounds what the decoder will buffer; NAV-PVT is 92 bytes and
	// the largest message we care about.
	maxPayload = 1024
)

// Message classes and IDs.
const (
	ClassNAV = 0x01
	ClassACK = 0x05
	ClassCFG = 0x06

	IDNavPVT  = 0x07
	IDAckNak  = 0x00
	IDAckAck  = 0x01
	IDCfgPrt  = 0x00
	IDCfgRate = 0x08
	IDCfgCfg  = 0x09
)

var (
	ErrChecksum     = errors.New("ubx: checksum mismatch")
	ErrShortPayload = errors.New("ubx: short payload")
	ErrTimeout      = errors.New("ubx: timed out waiting for reply")
)

// Frame is a decoded UBX message (without sync bytes and checksum).
type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
}

// Is reports whether f carries the given class/id.
func (f Frame) Is(class, id byte) bool {
	return f.Class == class && f.ID == id
}

// Checksum computes the 8-bit Fletcher checksum over class..payload.
func Checksum(data []byte) (ckA, ckB byte) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// Encode builds a complete UBX frame: sync, header, payload and checksum.
func Encode(class, id byte, payload []byte) []byte {
	buf := make([]byte, 0, headerLen+len(payload)+2)
	buf = append(buf, Sync1, Sync2, class, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	ckA, ckB := Checksum(buf[2:])
	return append(buf, ckA, ckB)
}

// Unframe validates a complete frame produced by Encode and returns its
// contents.
func Unframe(frame []byte) (Frame, error) {
	if len(frame) < headerLen+2 || frame[0] != Sync1 || frame[1] != Sync2 {
		return Frame{}, errors.Errorf("ubx: malformed frame (%d bytes)", len(frame))
	}
	n := int(binary.LittleEndian.Uint16(frame[4:6]))
	if len(frame) != headerLen+n+2 {
		return Frame{}, errors.Errorf("ubx: length %d does not match frame size %d", n, len(frame))
	}
	ckA, ckB := Checksum(frame[2 : len(frame)-2])
	if frame[len(frame)-2] != ckA || frame[len(frame)-1] != ckB {
		return Frame{}, ErrChecksum
	}
	return Frame{Class: frame[2], ID: frame[3], Payload: append([]byte(nil), frame[headerLen:headerLen+n]...)}, nil
}
