// Package events emits the tracker's diagnostic event lines and forwards
// encoded payloads to interested sinks.
package events

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gnss-tracker/internal/payload"
)

// Kind is a diagnostic event.
type Kind int

const (
	StartLocation Kind = iota
	LocationFix
	LocationNoFix
)

// Line returns the event's wire text, without the newline. External tooling
// matches these strings exactly.
func (k Kind) Line() string {
	switch k {
	case StartLocation:
		return "+EVT:START_LOCATION"
	case LocationFix:
		return "+EVT:LOCATION FIX"
	case LocationNoFix:
		return "+EVT:LOCATION NOFIX"
	default:
		return "+EVT:UNKNOWN"
	}
}

func (k Kind) String() string { return k.Line() }

// Report is the result of one acquisition as published to payload sinks.
type Report struct {
	Time    time.Time       `json:"time"`
	Fix     bool            `json:"fix"`
	Compact payload.Compact `json:"-"`
	Precise payload.Precise `json:"-"`
	// LPP is the Cayenne LPP framed Compact payload.
	LPP []byte `json:"-"`

	CompactHex string `json:"compact"`
	PreciseHex string `json:"precise"`
	LPPHex     string `json:"lpp"`
}

// NewReport fills the hex fields from the binary payloads.
func NewReport(at time.Time, fix bool, c payload.Compact, l payload.Precise, lppChannel uint8) Report {
	lpp := payload.LPPFrame(lppChannel, c)
	return Report{
		Time:       at,
		Fix:        fix,
		Compact:    c,
		Precise:    l,
		LPP:        lpp,
		CompactHex: c.Hex(),
		PreciseHex: l.Hex(),
		LPPHex:     payload.Hex(lpp),
	}
}

// Sink receives event lines.
type Sink interface {
	Emit(k Kind) error
}

// PayloadSink is implemented by sinks that also forward payloads.
type PayloadSink interface {
	PublishPayload(r Report) error
}

// WriterSink writes newline-terminated event lines to W.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink { return &WriterSink{W: w} }

func (s *WriterSink) Emit(k Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.W == nil {
		return nil
	}
	_, err := io.WriteString(s.W, k.Line()+"\n")
	return errors.Wrap(err, "events: write")
}

// Multi fans out to several sinks. Every sink is tried; the first error is
// returned.
type Multi []Sink

func (m Multi) Emit(k Kind) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(k); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) PublishPayload(r Report) error {
	var first error
	for _, s := range m {
		ps, ok := s.(PayloadSink)
		if !ok {
			continue
		}
		if err := ps.PublishPayload(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard drops everything.
type Discard struct{}

func (Discard) Emit(Kind) error { return nil }
