package gnss

import (
	"time"

	"github.com/pkg/errors"

	"gnss-tracker/internal/i2c"
	"gnss-tracker/internal/serialport"
)

// HardwarePorts opens the receiver's real I2C and UART links.
type HardwarePorts struct {
	I2CBus      string
	I2CAddr     uint16
	UARTDevice  string
	ReadTimeout time.Duration
}

type i2cTransport struct {
	bus    *i2c.Bus
	stream *i2c.Stream
}

func (t *i2cTransport) Read(p []byte) (int, error)  { return t.stream.Read(p) }
func (t *i2cTransport) Write(p []byte) (int, error) { return t.stream.Write(p) }
func (t *i2cTransport) Close() error                { return t.bus.Close() }

func (h HardwarePorts) OpenI2C() (Transport, error) {
	if h.I2CBus == "" {
		return nil, errors.New("gnss: no i2c bus configured")
	}
	bus, err := i2c.Open(h.I2CBus)
	if err != nil {
		return nil, err
	}
	addr := h.I2CAddr
	if addr == 0 {
		addr = i2c.DefaultGNSSAddr
	}
	return &i2cTransport{bus: bus, stream: i2c.NewStream(bus.Dev(addr))}, nil
}

func (h HardwarePorts) OpenUART(baud int) (Transport, error) {
	p, err := serialport.Open(h.UARTDevice, baud, h.ReadTimeout)
	if err != nil {
		return nil, err
	}
	return p, nil
}
