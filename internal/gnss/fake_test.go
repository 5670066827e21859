package gnss

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"gnss-tracker/internal/ubx"
)

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
}

// fakeUblox models a register module: it answers UBX polls on whichever link
// matches its current port settings.
type fakeUblox struct {
	onI2C bool
	baud  int

	pvt []ubx.NavPVT

	dec      ubx.Decoder
	out      []byte
	resets   int
	saves    int
	rateMs   uint16
	outProto uint16
	polls    int
}

func (m *fakeUblox) handle(f ubx.Frame) {
	switch {
	case f.Is(ubx.ClassCFG, ubx.IDCfgPrt) && len(f.Payload) == 1:
		prt := ubx.UARTPort(m.baud, ubx.ProtoUBX|ubx.ProtoNMEA)
		prt.PortID = f.Payload[0]
		m.out = append(m.out, ubx.Encode(ubx.ClassCFG, ubx.IDCfgPrt, prt.Payload())...)
	case f.Is(ubx.ClassCFG, ubx.IDCfgPrt):
		prt, _ := ubx.ParseCfgPrt(f.Payload)
		if prt.PortID == ubx.PortUART1 && int(prt.BaudRate) != m.baud {
			m.baud = int(prt.BaudRate)
			return
		}
		m.outProto = prt.OutProto
		m.ack(f)
	case f.Is(ubx.ClassCFG, ubx.IDCfgCfg):
		c, _ := ubx.ParseCfgCfg(f.Payload)
		if c.ClearMask != 0 {
			m.resets++
		}
		if c.SaveMask != 0 {
			m.saves++
		}
		m.ack(f)
	case f.Is(ubx.ClassCFG, ubx.IDCfgRate):
		m.rateMs = uint16(f.Payload[0]) | uint16(f.Payload[1])<<8
		m.ack(f)
	case f.Is(ubx.ClassNAV, ubx.IDNavPVT):
		m.polls++
		if len(m.pvt) == 0 {
			return
		}
		p := m.pvt[0]
		if len(m.pvt) > 1 {
			m.pvt = m.pvt[1:]
		}
		m.out = append(m.out, ubx.Encode(ubx.ClassNAV, ubx.IDNavPVT, p.Payload())...)
	}
}

func (m *fakeUblox) ack(f ubx.Frame) {
	m.out = append(m.out, ubx.AckFrame(f.Class, f.ID, true)...)
}

// fakeLink is one open transport to the fake module.
type fakeLink struct {
	m      *fakeUblox
	kind   TransportKind
	baud   int
	closed bool
	// noise is returned before anything else.
	noise []byte
}

func (l *fakeLink) live() bool {
	if l.m == nil {
		return false
	}
	if l.kind == TransportI2C {
		return l.m.onI2C
	}
	return !l.m.onI2C && l.baud == l.m.baud
}

func (l *fakeLink) Read(p []byte) (int, error) {
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	if len(l.noise) > 0 {
		n := copy(p, l.noise)
		l.noise = l.noise[n:]
		return n, nil
	}
	if !l.live() {
		return 0, nil
	}
	n := copy(p, l.m.out)
	l.m.out = l.m.out[n:]
	return n, nil
}

func (l *fakeLink) Write(p []byte) (int, error) {
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	if !l.live() {
		return len(p), nil
	}
	for _, f := range l.m.dec.Write(p) {
		l.m.handle(f)
	}
	return len(p), nil
}

func (l *fakeLink) Close() error {
	l.closed = true
	return nil
}

// fakePorts hands out links to the fake module and records what was opened.
type fakePorts struct {
	m       *fakeUblox
	noI2C   bool
	opened  []string
	links   []*fakeLink
	uart    func(baud int) *fakeLink
	uartErr error
}

func (p *fakePorts) OpenI2C() (Transport, error) {
	p.opened = append(p.opened, "i2c")
	if p.noI2C {
		return nil, errors.New("no such device")
	}
	l := &fakeLink{m: p.m, kind: TransportI2C}
	p.links = append(p.links, l)
	return l, nil
}

func (p *fakePorts) OpenUART(baud int) (Transport, error) {
	p.opened = append(p.opened, TransportBinding{Kind: TransportUART, Baud: baud}.String())
	if p.uartErr != nil {
		return nil, p.uartErr
	}
	var l *fakeLink
	if p.uart != nil {
		l = p.uart(baud)
	} else {
		l = &fakeLink{m: p.m, kind: TransportUART, baud: baud}
	}
	p.links = append(p.links, l)
	return l, nil
}

func testLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l.WithField("component", "gnss")
}

func fix3D(lat, lon, height int32) ubx.NavPVT {
	return ubx.NavPVT{
		FixType:   ubx.Fix3D,
		GNSSFixOK: true,
		NumSV:     9,
		LatE7:     lat,
		LonE7:     lon,
		HeightMM:  height,
		HAccMM:    2500,
	}
}

// chatterLink always has a line buffered and never goes quiet.
type chatterLink struct {
	line  []byte
	reads int
}

func (l *chatterLink) Read(p []byte) (int, error) {
	l.reads++
	return copy(p, l.line), nil
}

func (l *chatterLink) Write(p []byte) (int, error) { return len(p), nil }
func (l *chatterLink) Close() error                { return nil }
