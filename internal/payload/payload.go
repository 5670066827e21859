// Package payload packs a position fix into the two fixed-width uplink layouts
// consumed by the radio stack.
//
// Both layouts are big-endian two's complement. A zero-filled payload is the
// "no fix" sentinel.
package payload

import (
	"encoding/binary"
	"encoding/hex"
)

const (
	CompactSize = 9
	PreciseSize = 11

	// lppTypeGPS is the Cayenne LPP data type for a GPS location record.
	lppTypeGPS = 0x88
)

// Position is a fix in the receiver's native integer units.
type Position struct {
	LatE7 int64 // degrees * 1e7
	LonE7 int64 // degrees * 1e7
	AltMM int32 // millimeters
}

// Compact is the Cayenne LPP GPS body:
//
//	0..2: latitude  (0.0001 deg, signed 24-bit)
//	3..5: longitude (0.0001 deg, signed 24-bit)
//	6..8: altitude  (0.01 m, signed 24-bit)
type Compact [CompactSize]byte

// Precise is the extended layout, not LPP compatible:
//
//	0..3:  latitude  (0.000001 deg, signed 32-bit)
//	4..7:  longitude (0.000001 deg, signed 32-bit)
//	8..10: altitude  (0.01 m, signed 24-bit)
type Precise [PreciseSize]byte

// Encode packs p into both layouts. All scaling truncates toward zero.
func Encode(p Position) (Compact, Precise) {
	var c Compact
	var l Precise

	altCM := p.AltMM / 10

	put24(c[0:3], int32(p.LatE7/1000))
	put24(c[3:6], int32(p.LonE7/1000))
	put24(c[6:9], altCM)

	binary.BigEndian.PutUint32(l[0:4], uint32(int32(p.LatE7/10)))
	binary.BigEndian.PutUint32(l[4:8], uint32(int32(p.LonE7/10)))
	put24(l[8:11], altCM)

	return c, l
}

// Zero returns the "no fix" pair.
func Zero() (Compact, Precise) {
	return Compact{}, Precise{}
}

// put24 writes the low 24 bits of v, most significant byte first.
func put24(dst []byte, v int32) {
	u := uint32(v) & 0x00FFFFFF
	dst[0] = byte(u >> 16)
	dst[1] = byte(u >> 8)
	dst[2] = byte(u)
}

func get24(src []byte) int32 {
	v := int32(src[0])<<16 | int32(src[1])<<8 | int32(src[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// Decoded is an unpacked payload in float units.
type Decoded struct {
	LatDeg float64
	LonDeg float64
	AltM   float64
}

func (c Compact) Decode() Decoded {
	return Decoded{
		LatDeg: float64(get24(c[0:3])) / 1e4,
		LonDeg: float64(get24(c[3:6])) / 1e4,
		AltM:   float64(get24(c[6:9])) / 100,
	}
}

func (l Precise) Decode() Decoded {
	return Decoded{
		LatDeg: float64(int32(binary.BigEndian.Uint32(l[0:4]))) / 1e6,
		LonDeg: float64(int32(binary.BigEndian.Uint32(l[4:8]))) / 1e6,
		AltM:   float64(get24(l[8:11])) / 100,
	}
}

func (c Compact) IsZero() bool { return c == Compact{} }

func (l Precise) IsZero() bool { return l == Precise{} }

func (c Compact) Hex() string { return hex.EncodeToString(c[:]) }

func (l Precise) Hex() string { return hex.EncodeToString(l[:]) }

// LPPFrame prefixes the compact body with a Cayenne LPP channel and the GPS
// type byte, yielding a self-describing 11-byte LPP record.
func LPPFrame(channel uint8, c Compact) []byte {
	out := make([]byte, 0, 2+CompactSize)
	out = append(out, channel, lppTypeGPS)
	out = append(out, c[:]...)
	return out
}

// Hex renders any payload bytes, such as an LPP frame, as lowercase hex.
func Hex(b []byte) string { return hex.EncodeToString(b) }
