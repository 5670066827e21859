// Package udp sends encoded location payloads to a downstream radio stack
// as single UDP datagrams.
package udp

import (
	"net"

	"github.com/pkg/errors"

	"gnss-tracker/internal/events"
)

// Format selects which encoding of a report goes on the wire.
type Format string

const (
	FormatLPP     Format = "lpp"
	FormatCompact Format = "compact"
	FormatPrecise Format = "precise"
)

// ParseFormat maps a config value to a Format. Empty means lpp.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatLPP:
		return FormatLPP, nil
	case FormatCompact, FormatPrecise:
		return Format(s), nil
	}
	return "", errors.Errorf("udp: unknown format %q", s)
}

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Uplink forwards payloads from finished acquisitions. Event lines are not
// sent; only PublishPayload writes.
type Uplink struct {
	dest   string
	format Format
	// NoFix controls whether zero-filled payloads from failed acquisitions
	// are sent.
	NoFix bool
	conn  udpConn
}

func NewUplink(dest string, format Format) (*Uplink, error) {
	return newUplink(dest, format, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newUplink(dest string, format Format, resolve resolveFunc, dial dialFunc) (*Uplink, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, errors.Wrap(err, "resolve dest")
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial udp")
	}

	return &Uplink{
		dest:   dest,
		format: format,
		conn:   conn,
	}, nil
}

func (u *Uplink) Dest() string { return u.dest }

// Emit ignores event lines.
func (u *Uplink) Emit(events.Kind) error { return nil }

func (u *Uplink) PublishPayload(r events.Report) error {
	if !r.Fix && !u.NoFix {
		return nil
	}
	return u.Send(u.encode(r))
}

func (u *Uplink) encode(r events.Report) []byte {
	switch u.format {
	case FormatCompact:
		return r.Compact[:]
	case FormatPrecise:
		return r.Precise[:]
	default:
		return r.LPP
	}
}

func (u *Uplink) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := u.conn.Write(payload)
	return errors.Wrap(err, "udp send")
}

func (u *Uplink) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
