package ubx

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Port identifiers used by CFG-PRT.
const (
	PortDDC   = 0 // I2C
	PortUART1 = 1
)

// Protocol mask bits used by CFG-PRT in/out masks.
const (
	ProtoUBX  = 0x01
	ProtoNMEA = 0x02
)

const (
	cfgPrtLen = 20
	navPVTLen = 92

	// uartMode8N1 is CFG-PRT mode for 8 data bits, no parity, 1 stop bit.
	uartMode8N1 = 0x000008D0
)

// CfgPrt is the CFG-PRT port configuration.
type CfgPrt struct {
	PortID   byte
	Mode     uint32
	BaudRate uint32
	InProto  uint16
	OutProto uint16
}

// DDCPort returns the CFG-PRT settings for the I2C port at the given 7-bit
// address.
func DDCPort(addr uint16, outProto uint16) CfgPrt {
	return CfgPrt{
		PortID:   PortDDC,
		Mode:     uint32(addr) << 1,
		InProto:  ProtoUBX | ProtoNMEA,
		OutProto: outProto,
	}
}

// UARTPort returns the CFG-PRT settings for UART1 at baud, 8N1.
func UARTPort(baud int, outProto uint16) CfgPrt {
	return CfgPrt{
		PortID:   PortUART1,
		Mode:     uartMode8N1,
		BaudRate: uint32(baud),
		InProto:  ProtoUBX | ProtoNMEA,
		OutProto: outProto,
	}
}

func (c CfgPrt) Payload() []byte {
	p := make([]byte, cfgPrtLen)
	p[0] = c.PortID
	binary.LittleEndian.PutUint32(p[4:8], c.Mode)
	binary.LittleEndian.PutUint32(p[8:12], c.BaudRate)
	binary.LittleEndian.PutUint16(p[12:14], c.InProto)
	binary.LittleEndian.PutUint16(p[14:16], c.OutProto)
	return p
}

// Frame returns the encoded CFG-PRT set message.
func (c CfgPrt) Frame() []byte {
	return Encode(ClassCFG, IDCfgPrt, c.Payload())
}

func ParseCfgPrt(p []byte) (CfgPrt, error) {
	if len(p) < cfgPrtLen {
		return CfgPrt{}, errors.Wrapf(ErrShortPayload, "cfg-prt: %d bytes", len(p))
	}
	return CfgPrt{
		PortID:   p[0],
		Mode:     binary.LittleEndian.Uint32(p[4:8]),
		BaudRate: binary.LittleEndian.Uint32(p[8:12]),
		InProto:  binary.LittleEndian.Uint16(p[12:14]),
		OutProto: binary.LittleEndian.Uint16(p[14:16]),
	}, nil
}

// PollPort asks the receiver to report the configuration of port.
func PollPort(port byte) []byte {
	return Encode(ClassCFG, IDCfgPrt, []byte{port})
}

// CfgCfg is the CFG-CFG clear/save/load command.
type CfgCfg struct {
	ClearMask uint32
	SaveMask  uint32
	LoadMask  uint32
}

func (c CfgCfg) Payload() []byte {
	p := make([]byte, 12)
	binary.LittleEndian.PutUint32(p[0:4], c.ClearMask)
	binary.LittleEndian.PutUint32(p[4:8], c.SaveMask)
	binary.LittleEndian.PutUint32(p[8:12], c.LoadMask)
	return p
}

func ParseCfgCfg(p []byte) (CfgCfg, error) {
	if len(p) < 12 {
		return CfgCfg{}, errors.Wrapf(ErrShortPayload, "cfg-cfg: %d bytes", len(p))
	}
	return CfgCfg{
		ClearMask: binary.LittleEndian.Uint32(p[0:4]),
		SaveMask:  binary.LittleEndian.Uint32(p[4:8]),
		LoadMask:  binary.LittleEndian.Uint32(p[8:12]),
	}, nil
}

// CfgSave stores the current configuration to non-volatile memory.
func CfgSave() []byte {
	return Encode(ClassCFG, IDCfgCfg, CfgCfg{SaveMask: 0x0000FFFF}.Payload())
}

// CfgFactoryReset clears the stored configuration and reloads defaults.
func CfgFactoryReset() []byte {
	return Encode(ClassCFG, IDCfgCfg, CfgCfg{ClearMask: 0xFFFFFFFF, LoadMask: 0xFFFFFFFF}.Payload())
}

// CfgRate sets the measurement period in milliseconds. navRate is the number
// of measurements per navigation solution; timeRef 1 aligns to GPS time.
func CfgRate(measMs, navRate, timeRef uint16) []byte {
	p := make([]byte, 6)
	binary.LittleEndian.PutUint16(p[0:2], measMs)
	binary.LittleEndian.PutUint16(p[2:4], navRate)
	binary.LittleEndian.PutUint16(p[4:6], timeRef)
	return Encode(ClassCFG, IDCfgRate, p)
}

// IsAck reports whether f acknowledges a class/id message. nak is true for
// ACK-NAK.
func IsAck(f Frame, class, id byte) (ack bool, nak bool) {
	if f.Class != ClassACK || len(f.Payload) < 2 {
		return false, false
	}
	if f.Payload[0] != class || f.Payload[1] != id {
		return false, false
	}
	return f.ID == IDAckAck, f.ID == IDAckNak
}

// AckFrame builds an ACK-ACK (or ACK-NAK) for class/id.
func AckFrame(class, id byte, ok bool) []byte {
	msgID := byte(IDAckNak)
	if ok {
		msgID = IDAckAck
	}
	return Encode(ClassACK, msgID, []byte{class, id})
}

// FixType is the NAV-PVT fix type ordinal.
type FixType byte

const (
	FixNone FixType = iota
	FixDeadReckoning
	Fix2D
	Fix3D
	FixGNSSDeadReckoning
	FixTimeOnly
)

func (f FixType) String() string {
	switch f {
	case FixNone:
		return "No Fix"
	case FixDeadReckoning:
		return "Dead reckoning"
	case Fix2D:
		return "Fix type 2D"
	case Fix3D:
		return "Fix type 3D"
	case FixGNSSDeadReckoning:
		return "GNSS fix"
	case FixTimeOnly:
		return "Time fix"
	default:
		return "Unknown"
	}
}

// Accepted reports whether the fix is 3D or better.
func (f FixType) Accepted() bool {
	return f >= Fix3D
}

// NavPVT is the subset of NAV-PVT the tracker consumes.
type NavPVT struct {
	ITOW      uint32
	FixType   FixType
	GNSSFixOK bool
	NumSV     byte
	LonE7     int32  // degrees * 1e7
	LatE7     int32  // degrees * 1e7
	HeightMM  int32  // above ellipsoid
	HMSLMM    int32  // above mean sea level
	HAccMM    uint32 // horizontal accuracy estimate
	VAccMM    uint32
	PDOP      uint16 // 0.01
}

// PollNavPVT requests a single NAV-PVT solution.
func PollNavPVT() []byte {
	return Encode(ClassNAV, IDNavPVT, nil)
}

func ParseNavPVT(p []byte) (NavPVT, error) {
	if len(p) < navPVTLen {
		return NavPVT{}, errors.Wrapf(ErrShortPayload, "nav-pvt: %d bytes", len(p))
	}
	return NavPVT{
		ITOW:      binary.LittleEndian.Uint32(p[0:4]),
		FixType:   FixType(p[20]),
		GNSSFixOK: p[21]&0x01 != 0,
		NumSV:     p[23],
		LonE7:     int32(binary.LittleEndian.Uint32(p[24:28])),
		LatE7:     int32(binary.LittleEndian.Uint32(p[28:32])),
		HeightMM:  int32(binary.LittleEndian.Uint32(p[32:36])),
		HMSLMM:    int32(binary.LittleEndian.Uint32(p[36:40])),
		HAccMM:    binary.LittleEndian.Uint32(p[40:44]),
		VAccMM:    binary.LittleEndian.Uint32(p[44:48]),
		PDOP:      binary.LittleEndian.Uint16(p[76:78]),
	}, nil
}

// Payload renders n as a 92-byte NAV-PVT payload. Fields not modeled by
// NavPVT are zero.
func (n NavPVT) Payload() []byte {
	p := make([]byte, navPVTLen)
	binary.LittleEndian.PutUint32(p[0:4], n.ITOW)
	p[20] = byte(n.FixType)
	if n.GNSSFixOK {
		p[21] |= 0x01
	}
	p[23] = n.NumSV
	binary.LittleEndian.PutUint32(p[24:28], uint32(n.LonE7))
	binary.LittleEndian.PutUint32(p[28:32], uint32(n.LatE7))
	binary.LittleEndian.PutUint32(p[32:36], uint32(n.HeightMM))
	binary.LittleEndian.PutUint32(p[36:40], uint32(n.HMSLMM))
	binary.LittleEndian.PutUint32(p[40:44], n.HAccMM)
	binary.LittleEndian.PutUint32(p[44:48], n.VAccMM)
	binary.LittleEndian.PutUint16(p[76:78], n.PDOP)
	return p
}
