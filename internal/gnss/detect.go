package gnss

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// FastBaud is the UART rate a register module is moved to.
	FastBaud = 38400
	// DefaultBaud is the factory UART rate of both module classes.
	DefaultBaud = 9600

	detectAttempts = 3

	DefaultProbeTimeout    = 1100 * time.Millisecond
	DefaultMeasurementRate = 500 * time.Millisecond
)

// Delays used by the detection sequence.
var (
	baudSwitchSettle   = 100 * time.Millisecond
	factoryResetSettle = 2 * time.Second
	fallbackSettle     = 500 * time.Millisecond
)

// Detector finds the attached receiver and returns an initialized Driver.
type Detector struct {
	Ports Ports
	Clock Clock
	Log   logrus.FieldLogger

	// ProbeTimeout bounds each UBX reply wait.
	ProbeTimeout time.Duration
	// MeasurementRate is programmed into a register module.
	MeasurementRate time.Duration
	SentenceFlags   FlagPolicy
	I2CAddr         uint16
}

func (d *Detector) clock() Clock {
	if d.Clock == nil {
		return SystemClock
	}
	return d.Clock
}

func (d *Detector) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.WithField("component", "gnss")
	}
	return d.Log
}

func (d *Detector) probeTimeout() time.Duration {
	if d.ProbeTimeout <= 0 {
		return DefaultProbeTimeout
	}
	return d.ProbeTimeout
}

func (d *Detector) rate() time.Duration {
	if d.MeasurementRate <= 0 {
		return DefaultMeasurementRate
	}
	return d.MeasurementRate
}

func (d *Detector) i2cAddr() uint16 {
	if d.I2CAddr == 0 {
		return 0x42
	}
	return d.I2CAddr
}

func (d *Detector) register(t Transport, b TransportBinding) *registerDriver {
	return newRegisterDriver(t, b, d.i2cAddr(), d.clock(), d.probeTimeout(), d.log())
}

// probeRegister opens the binding and probes for a register module. On
// success the open driver is returned; otherwise the transport is closed.
func (d *Detector) probeRegister(b TransportBinding) (*registerDriver, error) {
	var (
		t   Transport
		err error
	)
	if b.Kind == TransportI2C {
		t, err = d.Ports.OpenI2C()
	} else {
		t, err = d.Ports.OpenUART(b.Baud)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrNotDetected, "open %s: %v", b, err)
	}
	drv := d.register(t, b)
	if err := drv.probe(); err != nil {
		drv.Close()
		return nil, err
	}
	return drv, nil
}

// DetectAndInitialize runs the full detection sequence: I2C, then UART at
// FastBaud and DefaultBaud with up to three attempts, then the sentence
// module at DefaultBaud. The sentence fallback cannot be verified so the
// returned error is only set when the fallback port itself cannot be opened.
func (d *Detector) DetectAndInitialize() (Driver, error) {
	log := d.log()
	clk := d.clock()

	bus := TransportBinding{Kind: TransportI2C}
	drv, err := d.probeRegister(bus)
	if err == nil {
		drv.configure(d.rate(), true)
		log.WithField("transport", bus.String()).Info("register module detected")
		return drv, nil
	}
	log.WithError(err).Debug("no register module on i2c")

	fast := TransportBinding{Kind: TransportUART, Baud: FastBaud}
	slow := TransportBinding{Kind: TransportUART, Baud: DefaultBaud}
	for attempt := 1; attempt <= detectAttempts; attempt++ {
		alog := log.WithField("attempt", attempt)

		if drv, err := d.probeRegister(fast); err == nil {
			drv.configure(d.rate(), true)
			alog.WithField("transport", fast.String()).Info("register module detected")
			return drv, nil
		}
		clk.Sleep(baudSwitchSettle)

		drv, err = d.probeRegister(slow)
		if err != nil {
			alog.WithError(err).Debug("no register module on uart, factory reset")
			d.resetAt(slow)
			clk.Sleep(factoryResetSettle)
			continue
		}

		alog.Infof("register module at %d baud, switching to %d", DefaultBaud, FastBaud)
		if err := drv.setBaud(FastBaud); err != nil {
			alog.WithError(err).Warn("baud switch")
		}
		drv.Close()
		clk.Sleep(baudSwitchSettle)

		if drv, err := d.probeRegister(fast); err == nil {
			drv.configure(d.rate(), true)
			alog.WithField("transport", fast.String()).Info("register module detected")
			return drv, nil
		}
	}

	log.Info("no register module, assuming sentence module")
	clk.Sleep(fallbackSettle)
	return d.openSentence(DefaultBaud)
}

// resetAt sends a factory reset over b without waiting for a reply.
func (d *Detector) resetAt(b TransportBinding) {
	t, err := d.Ports.OpenUART(b.Baud)
	if err != nil {
		d.log().WithError(err).Debug("factory reset: open")
		return
	}
	drv := d.register(t, b)
	if err := drv.factoryReset(); err != nil {
		d.log().WithError(err).Debug("factory reset")
	}
	drv.Close()
}

func (d *Detector) openSentence(baud int) (Driver, error) {
	t, err := d.Ports.OpenUART(baud)
	if err != nil {
		return nil, errors.Wrap(err, "gnss: open sentence module")
	}
	return newSentenceDriver(t, baud, d.SentenceFlags, d.log()), nil
}

// Reinitialize reopens a previously detected module on its recorded
// binding without probing baud rates. ModuleUnset runs full detection.
func (d *Detector) Reinitialize(id ModuleIdentity, b TransportBinding) (Driver, error) {
	switch id {
	case ModuleRegister:
		var (
			t   Transport
			err error
		)
		if b.Kind == TransportI2C {
			t, err = d.Ports.OpenI2C()
		} else {
			t, err = d.Ports.OpenUART(b.Baud)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "gnss: reopen %s", b)
		}
		drv := d.register(t, b)
		if err := drv.drain(); err != nil {
			drv.Close()
			return nil, err
		}
		drv.configure(d.rate(), false)
		return drv, nil
	case ModuleSentence:
		baud := b.Baud
		if baud == 0 {
			baud = DefaultBaud
		}
		return d.openSentence(baud)
	default:
		return d.DetectAndInitialize()
	}
}
