package serialport

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
)

type fakeLine struct {
	rx      *bytes.Buffer
	tx      bytes.Buffer
	closed  bool
	lastCfg *serial.Config
}

func (f *fakeLine) Read(p []byte) (int, error) {
	if f.rx.Len() == 0 {
		return 0, io.EOF
	}
	return f.rx.Read(p)
}

func (f *fakeLine) Write(p []byte) (int, error) { return f.tx.Write(p) }

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func withFakeOpen(t *testing.T, line *fakeLine) {
	t.Helper()
	old := openFn
	openFn = func(c *serial.Config) (io.ReadWriteCloser, error) {
		line.lastCfg = c
		return line, nil
	}
	t.Cleanup(func() { openFn = old })
}

func TestOpen_PassesConfig(t *testing.T) {
	line := &fakeLine{rx: &bytes.Buffer{}}
	withFakeOpen(t, line)

	p, err := Open("/dev/ttyS0", 38400, 0)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS0", line.lastCfg.Name)
	assert.Equal(t, 38400, line.lastCfg.Baud)
	assert.Equal(t, DefaultReadTimeout, line.lastCfg.ReadTimeout)
	assert.Equal(t, 38400, p.Baud())

	require.NoError(t, p.Close())
	assert.True(t, line.closed)
	assert.NoError(t, p.Close())
}

func TestOpen_RejectsBadArgs(t *testing.T) {
	withFakeOpen(t, &fakeLine{rx: &bytes.Buffer{}})

	_, err := Open("", 9600, time.Second)
	assert.Error(t, err)

	_, err = Open("/dev/ttyS0", 12345, time.Second)
	assert.EqualError(t, err, "serialport: unsupported baud 12345")
}

func TestRead_IdleLineIsNotAnError(t *testing.T) {
	line := &fakeLine{rx: bytes.NewBufferString("$GP")}
	withFakeOpen(t, line)

	p, err := Open("/dev/ttyS0", 9600, 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "$GP", string(buf[:n]))

	n, err = p.Read(buf)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
