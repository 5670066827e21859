package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Reporting ReportingConfig `yaml:"reporting"`
	GNSS      GNSSConfig      `yaml:"gnss"`
	Power     PowerConfig     `yaml:"power"`
	Events    EventsConfig    `yaml:"events"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	LPP       LPPConfig       `yaml:"lpp"`
	Uplink    UplinkConfig    `yaml:"uplink"`
	Web       WebConfig       `yaml:"web"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ReportingConfig struct {
	// IntervalMs is owned by the device's scheduler; 0 means unset.
	IntervalMs uint32 `yaml:"interval_ms"`
}

type GNSSConfig struct {
	I2CBus          string        `yaml:"i2c_bus"`
	I2CAddr         uint16        `yaml:"i2c_addr"`
	UARTDevice      string        `yaml:"uart_device"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	MeasurementRate time.Duration `yaml:"measurement_rate"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	SentenceFlags   string        `yaml:"sentence_flags"`
}

type PowerConfig struct {
	Enable          bool          `yaml:"enable"`
	Chip            string        `yaml:"chip"`
	Line            string        `yaml:"line"`
	PowerUpSettle   time.Duration `yaml:"power_up_settle"`
	PowerDownSettle time.Duration `yaml:"power_down_settle"`
}

type EventsConfig struct {
	Stdout *bool `yaml:"stdout"`
}

type MQTTConfig struct {
	Enable       bool          `yaml:"enable"`
	Broker       string        `yaml:"broker"`
	ClientID     string        `yaml:"client_id"`
	EventsTopic  string        `yaml:"events_topic"`
	PayloadTopic string        `yaml:"payload_topic"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LPPConfig struct {
	Channel uint8 `yaml:"channel"`
}

type UplinkConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
	// Format is lpp, compact or precise.
	Format string `yaml:"format"`
	NoFix  bool   `yaml:"nofix"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

// StdoutEvents reports whether event lines go to stdout (default true).
func (e EventsConfig) StdoutEvents() bool {
	return e.Stdout == nil || *e.Stdout
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return Config{}, errors.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}

	if cfg.GNSS.UARTDevice == "" {
		return Config{}, errors.New("gnss.uart_device is required")
	}
	if cfg.GNSS.I2CAddr == 0 {
		cfg.GNSS.I2CAddr = 0x42
	}
	if cfg.GNSS.I2CAddr > 0x7F {
		return Config{}, errors.Errorf("gnss.i2c_addr 0x%X is not a 7-bit address", cfg.GNSS.I2CAddr)
	}
	if cfg.GNSS.ProbeTimeout <= 0 {
		cfg.GNSS.ProbeTimeout = 1100 * time.Millisecond
	}
	if cfg.GNSS.MeasurementRate <= 0 {
		cfg.GNSS.MeasurementRate = 500 * time.Millisecond
	}
	if cfg.GNSS.MeasurementRate > 65535*time.Millisecond {
		return Config{}, errors.New("gnss.measurement_rate must be at most 65535ms")
	}
	if cfg.GNSS.ReadTimeout <= 0 {
		cfg.GNSS.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.GNSS.SentenceFlags == "" {
		cfg.GNSS.SentenceFlags = "sweep"
	}
	if cfg.GNSS.SentenceFlags != "sweep" && cfg.GNSS.SentenceFlags != "sticky" {
		return Config{}, errors.New("gnss.sentence_flags must be sweep or sticky")
	}

	if cfg.Power.Enable && cfg.Power.Line == "" {
		return Config{}, errors.New("power.line is required when power.enable is true")
	}
	if _, err := strconv.Atoi(cfg.Power.Line); err == nil && cfg.Power.Chip == "" {
		return Config{}, errors.New("power.chip is required when power.line is a numeric offset")
	}
	if cfg.Power.PowerUpSettle <= 0 {
		cfg.Power.PowerUpSettle = 500 * time.Millisecond
	}
	if cfg.Power.PowerDownSettle <= 0 {
		cfg.Power.PowerDownSettle = 100 * time.Millisecond
	}

	if cfg.MQTT.Enable {
		if cfg.MQTT.Broker == "" {
			return Config{}, errors.New("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.EventsTopic == "" && cfg.MQTT.PayloadTopic == "" {
			return Config{}, errors.New("mqtt.events_topic or mqtt.payload_topic is required when mqtt.enable is true")
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "gnss-tracker"
	}
	if cfg.MQTT.Timeout <= 0 {
		cfg.MQTT.Timeout = 2 * time.Second
	}

	if cfg.LPP.Channel == 0 {
		cfg.LPP.Channel = 1
	}

	if cfg.Uplink.Format == "" {
		cfg.Uplink.Format = "lpp"
	}
	switch cfg.Uplink.Format {
	case "lpp", "compact", "precise":
	default:
		return Config{}, errors.Errorf("uplink.format %q is not one of lpp, compact, precise", cfg.Uplink.Format)
	}
	if cfg.Uplink.Enable && cfg.Uplink.Dest == "" {
		return Config{}, errors.New("uplink.dest is required when uplink.enable is true")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}

	return cfg, nil
}
