// Package serialport is the UART transport for receivers on a serial line.
//
// Reads are non-blocking from the caller's point of view: a read returns
// whatever arrived within the short read timeout, and an idle line yields
// (0, nil) rather than io.EOF.
package serialport

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// DefaultReadTimeout is the smallest VTIME the termios layer supports.
const DefaultReadTimeout = 100 * time.Millisecond

var openFn = func(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(c)
}

type Port struct {
	rwc  io.ReadWriteCloser
	name string
	baud int
}

// Open opens device at baud, 8N1.
func Open(device string, baud int, readTimeout time.Duration) (*Port, error) {
	if device == "" {
		return nil, errors.New("serialport: device is empty")
	}
	if !supportedBaud(baud) {
		return nil, errors.Errorf("serialport: unsupported baud %d", baud)
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	rwc, err := openFn(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "serialport: open %s at %d", device, baud)
	}
	return &Port{rwc: rwc, name: device, baud: baud}, nil
}

func (p *Port) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	if errors.Is(err, io.EOF) {
		// Read timeout with nothing received.
		return n, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

func (p *Port) Close() error {
	if p == nil || p.rwc == nil {
		return nil
	}
	err := p.rwc.Close()
	p.rwc = nil
	return err
}

func (p *Port) Name() string { return p.name }

func (p *Port) Baud() int { return p.baud }

func supportedBaud(baud int) bool {
	switch baud {
	case 4800, 9600, 19200, 38400, 57600, 115200:
		return true
	default:
		return false
	}
}
