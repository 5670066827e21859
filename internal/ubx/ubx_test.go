package ubx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_PollNavPVT(t *testing.T) {
	// Reference bytes from the u-blox interface description.
	assert.Equal(t, []byte{0xB5, 0x62, 0x01, 0x07, 0x00, 0x00, 0x08, 0x19}, PollNavPVT())
}

func TestUnframe_RejectsBadChecksum(t *testing.T) {
	frame := CfgRate(500, 1, 1)
	f, err := Unframe(frame)
	require.NoError(t, err)
	assert.True(t, f.Is(ClassCFG, IDCfgRate))
	assert.Equal(t, []byte{0xF4, 0x01, 0x01, 0x00, 0x01, 0x00}, f.Payload)

	frame[len(frame)-1] ^= 0xFF
	_, err = Unframe(frame)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecoder_SkipsNMEANoiseAndSplitsFrames(t *testing.T) {
	var d Decoder
	stream := []byte("$GNGGA,,,,,,0,00,99.99,,,,,,*56\r\n")
	stream = append(stream, AckFrame(ClassCFG, IDCfgPrt, true)...)
	stream = append(stream, []byte("junk")...)
	stream = append(stream, PollPort(PortUART1)...)

	frames := d.Write(stream)
	require.Len(t, frames, 2)

	ack, nak := IsAck(frames[0], ClassCFG, IDCfgPrt)
	assert.True(t, ack)
	assert.False(t, nak)
	assert.True(t, frames[1].Is(ClassCFG, IDCfgPrt))
	assert.Equal(t, []byte{PortUART1}, frames[1].Payload)
	assert.Zero(t, d.Dropped)
}

func TestDecoder_ByteAtATimeAcrossCalls(t *testing.T) {
	var d Decoder
	frame := CfgSave()
	for i, b := range frame[:len(frame)-1] {
		_, ok := d.Feed(b)
		require.False(t, ok, "byte %d completed a frame early", i)
	}
	f, ok := d.Feed(frame[len(frame)-1])
	require.True(t, ok)
	cfg, err := ParseCfgCfg(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0000FFFF), cfg.SaveMask)
	assert.Zero(t, cfg.ClearMask)
}

func TestDecoder_DropsCorruptFrameAndRecovers(t *testing.T) {
	var d Decoder
	bad := PollNavPVT()
	bad[len(bad)-2] ^= 0x01

	frames := d.Write(append(bad, PollNavPVT()...))
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Is(ClassNAV, IDNavPVT))
	assert.Equal(t, 1, d.Dropped)
}

func TestNavPVT_ParseFields(t *testing.T) {
	want := NavPVT{
		ITOW:      123456,
		FixType:   Fix3D,
		GNSSFixOK: true,
		NumSV:     11,
		LonE7:     1210069140,
		LatE7:     -144213730,
		HeightMM:  35000,
		HMSLMM:    -2500,
		HAccMM:    1830,
		VAccMM:    2400,
		PDOP:      134,
	}
	f, err := Unframe(Encode(ClassNAV, IDNavPVT, want.Payload()))
	require.NoError(t, err)

	got, err := ParseNavPVT(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseNavPVT_Short(t *testing.T) {
	_, err := ParseNavPVT(make([]byte, 40))
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestCfgPrt_UARTPayload(t *testing.T) {
	p, err := ParseCfgPrt(UARTPort(38400, ProtoUBX).Payload())
	require.NoError(t, err)
	assert.Equal(t, byte(PortUART1), p.PortID)
	assert.Equal(t, uint32(38400), p.BaudRate)
	assert.Equal(t, uint32(uartMode8N1), p.Mode)
	assert.Equal(t, uint16(ProtoUBX), p.OutProto)

	ddc := DDCPort(0x42, ProtoUBX)
	assert.Equal(t, uint32(0x84), ddc.Mode)
}

func TestFixType_Accepted(t *testing.T) {
	assert.False(t, FixNone.Accepted())
	assert.False(t, FixDeadReckoning.Accepted())
	assert.False(t, Fix2D.Accepted())
	assert.True(t, Fix3D.Accepted())
	assert.True(t, FixGNSSDeadReckoning.Accepted())
	assert.Equal(t, "Fix type 3D", Fix3D.String())
}
