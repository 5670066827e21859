package ubx

type decodeState int

const (
	stSync1 decodeState = iota
	stSync2
	stClass
	stID
	stLen1
	stLen2
	stPayload
	stCkA
	stCkB
)

// Decoder reassembles UBX frames from a byte stream one byte at a time.
//
// Bytes outside a frame (NMEA chatter, line noise) are skipped. Frames with a
// bad checksum or an oversized length are dropped and counted in Dropped.
type Decoder struct {
	state   decodeState
	class   byte
	id      byte
	length  int
	payload []byte
	ckA     byte
	ckB     byte
	rxA     byte

	Dropped int
}

// Reset discards any partially received frame.
func (d *Decoder) Reset() {
	d.state = stSync1
	d.payload = d.payload[:0]
}

func (d *Decoder) sum(b byte) {
	d.ckA += b
	d.ckB += d.ckA
}

// Feed consumes one byte. It returns a frame and true when b completes a
// frame with a valid checksum.
func (d *Decoder) Feed(b byte) (Frame, bool) {
	switch d.state {
	case stSync1:
		if b == Sync1 {
			d.state = stSync2
		}
	case stSync2:
		switch b {
		case Sync2:
			d.state = stClass
			d.ckA, d.ckB = 0, 0
		case Sync1:
			// Stay put: 0xB5 0xB5 0x62 is still a valid start.
		default:
			d.state = stSync1
		}
	case stClass:
		d.class = b
		d.sum(b)
		d.state = stID
	case stID:
		d.id = b
		d.sum(b)
		d.state = stLen1
	case stLen1:
		d.length = int(b)
		d.sum(b)
		d.state = stLen2
	case stLen2:
		d.length |= int(b) << 8
		d.sum(b)
		if d.length > maxPayload {
			d.Dropped++
			d.Reset()
			break
		}
		d.payload = d.payload[:0]
		if d.length == 0 {
			d.state = stCkA
		} else {
			d.state = stPayload
		}
	case stPayload:
		d.payload = append(d.payload, b)
		d.sum(b)
		if len(d.payload) == d.length {
			d.state = stCkA
		}
	case stCkA:
		d.rxA = b
		d.state = stCkB
	case stCkB:
		d.state = stSync1
		if d.rxA != d.ckA || b != d.ckB {
			d.Dropped++
			return Frame{}, false
		}
		return Frame{Class: d.class, ID: d.id, Payload: append([]byte(nil), d.payload...)}, true
	}
	return Frame{}, false
}

// Write feeds p and returns every complete frame it contained.
func (d *Decoder) Write(p []byte) []Frame {
	var out []Frame
	for _, b := range p {
		if f, ok := d.Feed(b); ok {
			out = append(out, f)
		}
	}
	return out
}
