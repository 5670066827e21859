package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const minimal = "gnss:\n  uart_device: /dev/ttyS0\n"

func TestLoad_RequiresUARTDevice(t *testing.T) {
	path := writeTempConfig(t, "gnss: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "gnss.uart_device is required")
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log.level=%q want info", cfg.Log.Level)
	}
	if cfg.Reporting.IntervalMs != 0 {
		t.Fatalf("interval_ms=%d want 0", cfg.Reporting.IntervalMs)
	}
	if cfg.GNSS.I2CAddr != 0x42 {
		t.Fatalf("i2c_addr=0x%X want 0x42", cfg.GNSS.I2CAddr)
	}
	if cfg.GNSS.ProbeTimeout != 1100*time.Millisecond {
		t.Fatalf("probe_timeout=%s want 1.1s", cfg.GNSS.ProbeTimeout)
	}
	if cfg.GNSS.MeasurementRate != 500*time.Millisecond {
		t.Fatalf("measurement_rate=%s want 500ms", cfg.GNSS.MeasurementRate)
	}
	if cfg.GNSS.SentenceFlags != "sweep" {
		t.Fatalf("sentence_flags=%q want sweep", cfg.GNSS.SentenceFlags)
	}
	if cfg.Power.PowerUpSettle != 500*time.Millisecond || cfg.Power.PowerDownSettle != 100*time.Millisecond {
		t.Fatalf("power settle defaults not applied: %+v", cfg.Power)
	}
	if !cfg.Events.StdoutEvents() {
		t.Fatalf("stdout events should default on")
	}
	if cfg.LPP.Channel != 1 {
		t.Fatalf("lpp.channel=%d want 1", cfg.LPP.Channel)
	}
	if cfg.Uplink.Enable || cfg.Uplink.Format != "lpp" {
		t.Fatalf("uplink=%+v", cfg.Uplink)
	}
	if cfg.Web.Enable || cfg.Web.Listen != "127.0.0.1:8080" {
		t.Fatalf("web=%+v", cfg.Web)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeTempConfig(t, `
log:
  level: debug
reporting:
  interval_ms: 120000
gnss:
  i2c_bus: /dev/i2c-1
  i2c_addr: 0x42
  uart_device: /dev/ttyAMA0
  probe_timeout: 2s
  measurement_rate: 1000ms
  sentence_flags: sticky
power:
  enable: true
  chip: /dev/gpiochip0
  line: GPIO17
events:
  stdout: false
mqtt:
  enable: true
  broker: tcp://localhost:1883
  events_topic: tracker/events
  payload_topic: tracker/payload
lpp:
  channel: 3
uplink:
  enable: true
  dest: 127.0.0.1:4010
  format: precise
  nofix: true
web:
  enable: true
  listen: :8081
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Reporting.IntervalMs != 120000 {
		t.Fatalf("interval_ms=%d", cfg.Reporting.IntervalMs)
	}
	if cfg.GNSS.I2CBus != "/dev/i2c-1" || cfg.GNSS.UARTDevice != "/dev/ttyAMA0" {
		t.Fatalf("gnss=%+v", cfg.GNSS)
	}
	if cfg.GNSS.ProbeTimeout != 2*time.Second || cfg.GNSS.MeasurementRate != time.Second {
		t.Fatalf("gnss durations=%+v", cfg.GNSS)
	}
	if cfg.GNSS.SentenceFlags != "sticky" {
		t.Fatalf("sentence_flags=%q", cfg.GNSS.SentenceFlags)
	}
	if !cfg.Power.Enable || cfg.Power.Line != "GPIO17" {
		t.Fatalf("power=%+v", cfg.Power)
	}
	if cfg.Events.StdoutEvents() {
		t.Fatalf("stdout events should be off")
	}
	if cfg.MQTT.ClientID != "gnss-tracker" {
		t.Fatalf("client_id=%q", cfg.MQTT.ClientID)
	}
	if cfg.LPP.Channel != 3 {
		t.Fatalf("lpp.channel=%d", cfg.LPP.Channel)
	}
	if !cfg.Uplink.Enable || cfg.Uplink.Dest != "127.0.0.1:4010" || cfg.Uplink.Format != "precise" || !cfg.Uplink.NoFix {
		t.Fatalf("uplink=%+v", cfg.Uplink)
	}
	if !cfg.Web.Enable || cfg.Web.Listen != ":8081" {
		t.Fatalf("web=%+v", cfg.Web)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "SentenceFlags",
			extra: "  sentence_flags: forever\n",
			want:  "gnss.sentence_flags must be sweep or sticky",
		},
		{
			name:  "I2CAddr",
			extra: "  i2c_addr: 0x90\n",
			want:  "gnss.i2c_addr 0x90 is not a 7-bit address",
		},
		{
			name:  "PowerLine",
			extra: "power:\n  enable: true\n",
			want:  "power.line is required when power.enable is true",
		},
		{
			name:  "PowerOffsetWithoutChip",
			extra: "power:\n  enable: true\n  line: \"17\"\n",
			want:  "power.chip is required when power.line is a numeric offset",
		},
		{
			name:  "MQTTBroker",
			extra: "mqtt:\n  enable: true\n  events_topic: e\n",
			want:  "mqtt.broker is required when mqtt.enable is true",
		},
		{
			name:  "MQTTTopics",
			extra: "mqtt:\n  enable: true\n  broker: tcp://localhost:1883\n",
			want:  "mqtt.events_topic or mqtt.payload_topic is required when mqtt.enable is true",
		},
		{
			name:  "UplinkDest",
			extra: "uplink:\n  enable: true\n",
			want:  "uplink.dest is required when uplink.enable is true",
		},
		{
			name:  "UplinkFormat",
			extra: "uplink:\n  format: json\n",
			want:  `uplink.format "json" is not one of lpp, compact, precise`,
		},
		{
			name:  "LogLevel",
			extra: "log:\n  level: loud\n",
			want:  `log.level "loud" is not one of debug, info, warn, error`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, minimal+tc.extra))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("gnss: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
}
