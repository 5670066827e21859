package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-tracker/internal/payload"
)

func TestKindLines(t *testing.T) {
	assert.Equal(t, "+EVT:START_LOCATION", StartLocation.Line())
	assert.Equal(t, "+EVT:LOCATION FIX", LocationFix.Line())
	assert.Equal(t, "+EVT:LOCATION NOFIX", LocationNoFix.Line())
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	require.NoError(t, s.Emit(StartLocation))
	require.NoError(t, s.Emit(LocationNoFix))
	assert.Equal(t, "+EVT:START_LOCATION\n+EVT:LOCATION NOFIX\n", buf.String())
}

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic string
	body  []byte
}

type fakePublisher struct {
	msgs         []message
	err          error
	timeout      bool
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, body interface{}) mqtt.Token {
	p.msgs = append(p.msgs, message{topic: topic, body: body.([]byte)})
	return &fakeToken{err: p.err, timeout: p.timeout}
}

func (p *fakePublisher) Disconnect(uint) { p.disconnected = true }

func TestMQTTSinkEmitAndPayload(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(pub, MQTTConfig{EventsTopic: "tracker/events", PayloadTopic: "tracker/payload"}, nil)

	require.NoError(t, s.Emit(LocationFix))

	c, l := payload.Encode(payload.Position{LatE7: 144213730, LonE7: 1210069140, AltMM: 35000})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.PublishPayload(NewReport(at, true, c, l, 1)))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "tracker/events", pub.msgs[0].topic)
	assert.Equal(t, "+EVT:LOCATION FIX", string(pub.msgs[0].body))

	assert.Equal(t, "tracker/payload", pub.msgs[1].topic)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.msgs[1].body, &got))
	assert.Equal(t, true, got["fix"])
	assert.Equal(t, "0233551276d5000dac", got["compact"])
	assert.Equal(t, "00dc0d7d07366b42000dac", got["precise"])
	assert.Equal(t, "01880233551276d5000dac", got["lpp"])

	require.NoError(t, s.Close())
	assert.True(t, pub.disconnected)
}

func TestMQTTSinkSkipsEmptyTopic(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(pub, MQTTConfig{PayloadTopic: "p"}, nil)
	require.NoError(t, s.Emit(StartLocation))
	assert.Empty(t, pub.msgs)
}

func TestMQTTSinkErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	s := newMQTTSink(pub, MQTTConfig{EventsTopic: "e"}, nil)
	err := s.Emit(StartLocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	pub = &fakePublisher{timeout: true}
	s = newMQTTSink(pub, MQTTConfig{EventsTopic: "e"}, nil)
	assert.Error(t, s.Emit(StartLocation))
}

func TestDialMQTTRequiresBroker(t *testing.T) {
	_, err := DialMQTT(MQTTConfig{}, nil)
	assert.Error(t, err)
}

type failingSink struct{ n int }

func (f *failingSink) Emit(Kind) error {
	f.n++
	return errors.New("down")
}

func TestMultiEmitsToAll(t *testing.T) {
	var buf bytes.Buffer
	bad := &failingSink{}
	pub := &fakePublisher{}
	m := Multi{bad, NewWriterSink(&buf), nil, newMQTTSink(pub, MQTTConfig{EventsTopic: "e", PayloadTopic: "p"}, nil)}

	err := m.Emit(LocationNoFix)
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, bad.n)
	assert.Equal(t, "+EVT:LOCATION NOFIX\n", buf.String())

	c, l := payload.Zero()
	require.NoError(t, m.PublishPayload(NewReport(time.Now(), false, c, l, 1)))
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "p", pub.msgs[1].topic)
}
