package gnss

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNotDetected means no register module answered a probe.
var ErrNotDetected = errors.New("gnss: register module not detected")

// ModuleIdentity is the receiver class found by detection.
type ModuleIdentity int

const (
	ModuleUnset ModuleIdentity = iota
	ModuleRegister
	ModuleSentence
)

func (m ModuleIdentity) String() string {
	switch m {
	case ModuleRegister:
		return "register"
	case ModuleSentence:
		return "sentence"
	default:
		return "unset"
	}
}

// TransportKind is the physical link to the receiver.
type TransportKind int

const (
	TransportI2C TransportKind = iota
	TransportUART
)

// TransportBinding records how the receiver was reached.
type TransportBinding struct {
	Kind TransportKind
	// Baud is only meaningful for TransportUART.
	Baud int
}

func (b TransportBinding) String() string {
	if b.Kind == TransportI2C {
		return "i2c"
	}
	return fmt.Sprintf("uart/%d", b.Baud)
}

// RawFix is one acquisition result in the receiver's integer units.
type RawFix struct {
	LatE7 int64 // degrees * 1e7
	LonE7 int64 // degrees * 1e7
	AltMM int32 // millimeters
	// HAccCM is the horizontal accuracy estimate in centimeters. Sentence
	// modules report no accuracy estimate; they store HDOP * 100 here.
	HAccCM     uint32
	Satellites int
	FixType    string
	Valid      bool
}

// PollStatus is the outcome of a single PollOnce.
type PollStatus int

const (
	// PollNoFix means no acceptable fix yet; poll again.
	PollNoFix PollStatus = iota
	// PollWait means the receiver has nothing ready; back off before polling again.
	PollWait
	// PollFix means the returned RawFix is valid.
	PollFix
)

func (s PollStatus) String() string {
	switch s {
	case PollFix:
		return "fix"
	case PollWait:
		return "wait"
	default:
		return "nofix"
	}
}

// Driver is an initialized receiver ready to be polled.
type Driver interface {
	Identity() ModuleIdentity
	Binding() TransportBinding
	PollOnce() (RawFix, PollStatus, error)
	Close() error
}

// Transport is a byte link to the receiver. Read returns only what is
// already buffered and (0, nil) when idle.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Ports opens transports to the receiver.
type Ports interface {
	OpenI2C() (Transport, error)
	OpenUART(baud int) (Transport, error)
}

// Clock abstracts time so polling loops can be tested without waiting.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
