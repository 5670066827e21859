// Package power switches the GNSS receiver's supply rail.
package power

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPowerUpSettle   = 500 * time.Millisecond
	DefaultPowerDownSettle = 100 * time.Millisecond
)

// Switch is a single digital output: on is HIGH.
type Switch interface {
	Set(on bool) error
	Close() error
}

// Open requests the named GPIO line on chip as an output driven low. A
// numeric line is an offset and needs an explicit chip.
func Open(chip, line string) (Switch, error) {
	if chip == "" && IsOffset(line) {
		return nil, errors.Errorf("power: line offset %s needs a chip", line)
	}
	return openLineFn(chip, line)
}

// IsOffset reports whether line names a line by offset rather than by name.
func IsOffset(line string) bool {
	_, err := strconv.Atoi(line)
	return err == nil
}

// Noop is a Switch for boards where the receiver is always powered.
type Noop struct{}

func (Noop) Set(bool) error { return nil }
func (Noop) Close() error   { return nil }

// Rail drives a Switch and waits for the receiver to settle after each
// transition.
type Rail struct {
	Switch   Switch
	UpSettle time.Duration
	// DownSettle is waited after power-off.
	DownSettle time.Duration
	Sleep      func(time.Duration)
	Log        logrus.FieldLogger

	mu sync.Mutex
	on bool
}

// NewRail returns a Rail with the default settle times.
func NewRail(sw Switch, log logrus.FieldLogger) *Rail {
	return &Rail{
		Switch:     sw,
		UpSettle:   DefaultPowerUpSettle,
		DownSettle: DefaultPowerDownSettle,
		Log:        log,
	}
}

func (r *Rail) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if r.Sleep != nil {
		r.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (r *Rail) set(on bool, settle time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Switch == nil {
		return errors.New("power: no switch")
	}
	if err := r.Switch.Set(on); err != nil {
		return errors.Wrapf(err, "power: set %v", on)
	}
	r.on = on
	if r.Log != nil {
		r.Log.WithField("on", on).Debug("receiver rail")
	}
	r.sleep(settle)
	return nil
}

// On powers the receiver and waits UpSettle.
func (r *Rail) On() error { return r.set(true, r.UpSettle) }

// Off removes power and waits DownSettle.
func (r *Rail) Off() error { return r.set(false, r.DownSettle) }

// Reset drives the rail low without waiting.
func (r *Rail) Reset() error { return r.set(false, 0) }

// IsOn reports the last commanded state.
func (r *Rail) IsOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

func (r *Rail) Close() error {
	if r.Switch == nil {
		return nil
	}
	return r.Switch.Close()
}
