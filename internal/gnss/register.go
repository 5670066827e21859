package gnss

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"gnss-tracker/internal/ubx"
)

// replyPoll is how long to wait between reads while awaiting a UBX reply.
const replyPoll = 20 * time.Millisecond

// maxDrainReads bounds drain on a receiver that never goes quiet.
const maxDrainReads = 64

// registerDriver talks UBX to a u-blox style receiver.
type registerDriver struct {
	t       Transport
	binding TransportBinding
	i2cAddr uint16

	clock        Clock
	replyTimeout time.Duration
	log          logrus.FieldLogger

	dec     ubx.Decoder
	pending []ubx.Frame
	buf     []byte
}

func newRegisterDriver(t Transport, b TransportBinding, i2cAddr uint16, clock Clock, replyTimeout time.Duration, log logrus.FieldLogger) *registerDriver {
	return &registerDriver{
		t:            t,
		binding:      b,
		i2cAddr:      i2cAddr,
		clock:        clock,
		replyTimeout: replyTimeout,
		log:          log.WithField("transport", b.String()),
		buf:          make([]byte, 512),
	}
}

func (d *registerDriver) Identity() ModuleIdentity  { return ModuleRegister }
func (d *registerDriver) Binding() TransportBinding { return d.binding }

func (d *registerDriver) Close() error {
	if d.t == nil {
		return nil
	}
	err := d.t.Close()
	d.t = nil
	return err
}

func (d *registerDriver) send(frame []byte) error {
	if _, err := d.t.Write(frame); err != nil {
		return errors.Wrap(err, "gnss: ubx write")
	}
	return nil
}

// await reads until a frame satisfying match arrives or the reply timeout
// elapses. Frames that do not match are discarded. A receiver that never goes
// quiet is still bounded by the deadline.
func (d *registerDriver) await(match func(ubx.Frame) bool) (ubx.Frame, error) {
	deadline := d.clock.Now().Add(d.replyTimeout)
	busy := 0
	for {
		for len(d.pending) > 0 {
			f := d.pending[0]
			d.pending = d.pending[1:]
			if match(f) {
				return f, nil
			}
		}
		if !d.clock.Now().Before(deadline) {
			return ubx.Frame{}, ubx.ErrTimeout
		}

		n, err := d.t.Read(d.buf)
		if err != nil {
			return ubx.Frame{}, errors.Wrap(err, "gnss: ubx read")
		}
		if n > 0 {
			d.pending = append(d.pending, d.dec.Write(d.buf[:n])...)
			if busy++; busy < maxDrainReads {
				continue
			}
		}
		busy = 0
		d.clock.Sleep(replyPoll)
	}
}

// drain discards whatever the receiver has already queued, typically sentence
// output left over from power-up.
func (d *registerDriver) drain() error {
	d.pending = nil
	defer d.dec.Reset()
	for i := 0; i < maxDrainReads; i++ {
		n, err := d.t.Read(d.buf)
		if err != nil {
			return errors.Wrap(err, "gnss: ubx read")
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// request sends frame and waits for a message of class/id.
func (d *registerDriver) request(frame []byte, class, id byte) (ubx.Frame, error) {
	if err := d.send(frame); err != nil {
		return ubx.Frame{}, err
	}
	return d.await(func(f ubx.Frame) bool { return f.Is(class, id) })
}

// command sends a CFG frame and waits for its ACK.
func (d *registerDriver) command(frame []byte) error {
	if err := d.send(frame); err != nil {
		return err
	}
	class, id := frame[2], frame[3]
	var nak bool
	_, err := d.await(func(f ubx.Frame) bool {
		ack, n := ubx.IsAck(f, class, id)
		nak = n
		return ack || n
	})
	if err != nil {
		return err
	}
	if nak {
		return errors.Errorf("gnss: receiver rejected 0x%02X/0x%02X", class, id)
	}
	return nil
}

func (d *registerDriver) portID() byte {
	if d.binding.Kind == TransportI2C {
		return ubx.PortDDC
	}
	return ubx.PortUART1
}

// probe checks that a UBX speaker answers on the transport.
func (d *registerDriver) probe() error {
	if err := d.drain(); err != nil {
		return err
	}
	f, err := d.request(ubx.PollPort(d.portID()), ubx.ClassCFG, ubx.IDCfgPrt)
	if errors.Is(err, ubx.ErrTimeout) {
		return ErrNotDetected
	}
	if err != nil {
		return err
	}
	if _, err := ubx.ParseCfgPrt(f.Payload); err != nil {
		return errors.Wrap(ErrNotDetected, err.Error())
	}
	return nil
}

// configure restricts output to UBX and sets the measurement rate. When save
// is true the settings are persisted on the receiver. ACK failures are
// logged only.
func (d *registerDriver) configure(rate time.Duration, save bool) {
	var prt ubx.CfgPrt
	if d.binding.Kind == TransportI2C {
		prt = ubx.DDCPort(d.i2cAddr, ubx.ProtoUBX)
	} else {
		prt = ubx.UARTPort(d.binding.Baud, ubx.ProtoUBX)
	}
	if err := d.command(prt.Frame()); err != nil {
		d.log.WithError(err).Warn("set UBX-only output")
	}
	if save {
		if err := d.command(ubx.CfgSave()); err != nil {
			d.log.WithError(err).Warn("save configuration")
		}
	}
	if err := d.command(ubx.CfgRate(uint16(rate/time.Millisecond), 1, 1)); err != nil {
		d.log.WithError(err).Warn("set measurement rate")
	}
}

// setBaud switches the receiver's UART to baud. The receiver changes rate
// immediately so no ACK is awaited.
func (d *registerDriver) setBaud(baud int) error {
	prt := ubx.UARTPort(baud, ubx.ProtoUBX|ubx.ProtoNMEA)
	return d.send(prt.Frame())
}

func (d *registerDriver) factoryReset() error {
	return d.send(ubx.CfgFactoryReset())
}

func (d *registerDriver) PollOnce() (RawFix, PollStatus, error) {
	f, err := d.request(ubx.PollNavPVT(), ubx.ClassNAV, ubx.IDNavPVT)
	if errors.Is(err, ubx.ErrTimeout) {
		return RawFix{}, PollWait, nil
	}
	if err != nil {
		return RawFix{}, PollWait, err
	}
	pvt, err := ubx.ParseNavPVT(f.Payload)
	if err != nil {
		return RawFix{}, PollWait, err
	}
	if !pvt.GNSSFixOK {
		return RawFix{}, PollWait, nil
	}
	if !pvt.FixType.Accepted() {
		d.log.WithFields(logrus.Fields{
			"fix_type": pvt.FixType.String(),
			"sats":     pvt.NumSV,
		}).Debug("fix too weak")
		return RawFix{}, PollNoFix, nil
	}

	fix := RawFix{
		LatE7:      int64(pvt.LatE7),
		LonE7:      int64(pvt.LonE7),
		AltMM:      pvt.HeightMM,
		HAccCM:     pvt.HAccMM / 10,
		Satellites: int(pvt.NumSV),
		FixType:    pvt.FixType.String(),
		Valid:      true,
	}
	d.log.WithFields(logrus.Fields{
		"fix_type": fix.FixType,
		"sats":     fix.Satellites,
	}).Infof("lat=%.4f lon=%.4f alt=%.2f acy=%.2f",
		float64(fix.LatE7)/1e7, float64(fix.LonE7)/1e7, float64(fix.AltMM)/1000, float64(fix.HAccCM)/100)
	return fix, PollFix, nil
}
