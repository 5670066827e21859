package gnss

import (
	"math"

	"github.com/adrianmo/go-nmea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FlagPolicy controls how long the sentence driver remembers that it has seen
// a position and an altitude.
type FlagPolicy int

const (
	// FlagsPerSweep requires position and altitude within one PollOnce.
	FlagsPerSweep FlagPolicy = iota
	// FlagsSticky keeps the flags across PollOnce calls until the driver is
	// reinitialized.
	FlagsSticky
)

// ParseFlagPolicy maps the config spelling ("sweep", "sticky") to a policy.
func ParseFlagPolicy(s string) (FlagPolicy, error) {
	switch s {
	case "", "sweep":
		return FlagsPerSweep, nil
	case "sticky":
		return FlagsSticky, nil
	default:
		return FlagsPerSweep, errors.Errorf("unknown sentence flag policy %q", s)
	}
}

func (p FlagPolicy) String() string {
	if p == FlagsSticky {
		return "sticky"
	}
	return "sweep"
}

const (
	// maxSentence is the longest sentence the assembler keeps; NMEA 0183
	// caps sentences at 82 characters.
	maxSentence = 100
	readChunk   = 256
	// maxSweepReads bounds one PollOnce on a receiver that never goes quiet.
	maxSweepReads = 64
)

// sentenceDriver decodes NMEA output from a receiver that cannot be
// configured. Position comes from RMC; altitude, HDOP and satellite count
// come from GGA.
type sentenceDriver struct {
	t       Transport
	binding TransportBinding
	policy  FlagPolicy
	log     logrus.FieldLogger

	line    []byte
	inLine  bool
	buf     []byte
	rest    []byte
	hasPos  bool
	hasAlt  bool
	fix     RawFix
	skipped int
}

func newSentenceDriver(t Transport, baud int, policy FlagPolicy, log logrus.FieldLogger) *sentenceDriver {
	b := TransportBinding{Kind: TransportUART, Baud: baud}
	return &sentenceDriver{
		t:       t,
		binding: b,
		policy:  policy,
		log:     log.WithField("transport", b.String()),
		line:    make([]byte, 0, maxSentence),
		buf:     make([]byte, readChunk),
	}
}

func (d *sentenceDriver) Identity() ModuleIdentity  { return ModuleSentence }
func (d *sentenceDriver) Binding() TransportBinding { return d.binding }

func (d *sentenceDriver) Close() error {
	if d.t == nil {
		return nil
	}
	err := d.t.Close()
	d.t = nil
	return err
}

// PollOnce drains the bytes the receiver has buffered and reports a fix once
// both position and altitude have been seen. At most maxSweepReads reads are
// made; a sentence cut off there is completed by the next call.
func (d *sentenceDriver) PollOnce() (RawFix, PollStatus, error) {
	if d.policy == FlagsPerSweep {
		d.hasPos, d.hasAlt = false, false
		d.fix = RawFix{}
	}

	// Bytes left over from a previous sweep are consumed first.
	if len(d.rest) > 0 {
		rest := d.rest
		d.rest = nil
		if fix, ok := d.consume(rest); ok {
			return fix, PollFix, nil
		}
	}

	for i := 0; i < maxSweepReads; i++ {
		n, err := d.t.Read(d.buf)
		if err != nil {
			return RawFix{}, PollNoFix, errors.Wrap(err, "gnss: sentence read")
		}
		if n == 0 {
			return RawFix{}, PollNoFix, nil
		}
		if fix, ok := d.consume(d.buf[:n]); ok {
			return fix, PollFix, nil
		}
	}
	return RawFix{}, PollNoFix, nil
}

// consume feeds p one byte at a time. When a fix completes mid-buffer the
// remaining bytes are kept for the next call.
func (d *sentenceDriver) consume(p []byte) (RawFix, bool) {
	for i, c := range p {
		if !d.feed(c) {
			continue
		}
		if d.hasPos && d.hasAlt {
			if i+1 < len(p) {
				d.rest = append([]byte(nil), p[i+1:]...)
			}
			fix := d.fix
			fix.Valid = true
			d.hasPos, d.hasAlt = false, false
			d.log.WithFields(logrus.Fields{
				"sats": fix.Satellites,
			}).Infof("lat=%.4f lon=%.4f alt=%.2f hdop=%.2f",
				float64(fix.LatE7)/1e7, float64(fix.LonE7)/1e7, float64(fix.AltMM)/1000, float64(fix.HAccCM)/100)
			return fix, true
		}
	}
	return RawFix{}, false
}

// feed assembles sentences and reports whether c completed one that updated
// the fix.
func (d *sentenceDriver) feed(c byte) bool {
	switch {
	case c == '$':
		d.line = append(d.line[:0], c)
		d.inLine = true
		return false
	case !d.inLine:
		return false
	case c == '\r' || c == '\n':
		d.inLine = false
		return d.handle(string(d.line))
	}
	if len(d.line) >= maxSentence {
		d.inLine = false
		d.skipped++
		return false
	}
	d.line = append(d.line, c)
	return false
}

func (d *sentenceDriver) handle(raw string) bool {
	s, err := nmea.Parse(raw)
	if err != nil {
		d.skipped++
		return false
	}

	switch m := s.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return false
		}
		d.fix.LatE7 = int64(m.Latitude * 1e7)
		d.fix.LonE7 = int64(m.Longitude * 1e7)
		d.hasPos = true
		return true
	case nmea.GGA:
		if m.FixQuality == "" || m.FixQuality == nmea.Invalid {
			return false
		}
		// An empty altitude field parses as zero.
		if len(m.Fields) > 8 && m.Fields[8] == "" {
			return false
		}
		d.fix.AltMM = int32(m.Altitude * 1000)
		d.fix.HAccCM = uint32(math.Max(m.HDOP, 0) * 100)
		d.fix.Satellites = int(m.NumSatellites)
		d.fix.FixType = "GGA " + m.FixQuality
		d.hasAlt = true
		return true
	}
	return false
}
