package events

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultPublishTimeout = 2 * time.Second

// MQTTConfig selects the broker and topics.
type MQTTConfig struct {
	Broker       string
	ClientID     string
	EventsTopic  string
	PayloadTopic string
	// Timeout bounds connect and each publish.
	Timeout time.Duration
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes event lines and payload reports to a broker.
type MQTTSink struct {
	client  publisher
	cfg     MQTTConfig
	log     logrus.FieldLogger
	timeout time.Duration
}

var newClientFn = func(opts *mqtt.ClientOptions) mqtt.Client { return mqtt.NewClient(opts) }

// DialMQTT connects to cfg.Broker.
func DialMQTT(cfg MQTTConfig, log logrus.FieldLogger) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("events: mqtt broker is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	client := newClientFn(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, errors.Errorf("events: mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "events: mqtt connect to %s", cfg.Broker)
	}
	return newMQTTSink(client, cfg, log), nil
}

func newMQTTSink(c publisher, cfg MQTTConfig, log logrus.FieldLogger) *MQTTSink {
	if log == nil {
		log = logrus.WithField("component", "events")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &MQTTSink{client: c, cfg: cfg, log: log, timeout: timeout}
}

func (s *MQTTSink) publish(topic string, body []byte) error {
	if topic == "" {
		return nil
	}
	token := s.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(s.timeout) {
		return errors.Errorf("events: mqtt publish to %s timed out", topic)
	}
	return errors.Wrapf(token.Error(), "events: mqtt publish to %s", topic)
}

func (s *MQTTSink) Emit(k Kind) error {
	return s.publish(s.cfg.EventsTopic, []byte(k.Line()))
}

// PublishPayload sends r as JSON to the payload topic.
func (s *MQTTSink) PublishPayload(r Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "events: encode report")
	}
	if err := s.publish(s.cfg.PayloadTopic, body); err != nil {
		return err
	}
	s.log.WithField("topic", s.cfg.PayloadTopic).Debug("payload published")
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
