package main

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"gnss-tracker/internal/acquire"
	"gnss-tracker/internal/config"
	"gnss-tracker/internal/events"
	"gnss-tracker/internal/gnss"
	"gnss-tracker/internal/power"
	"gnss-tracker/internal/task"
	"gnss-tracker/internal/udp"
	"gnss-tracker/internal/web"
)

type tracker struct {
	log     logrus.FieldLogger
	task    *task.Task
	rail    *power.Rail
	sink    events.Multi
	mqtt    *events.MQTTSink
	uplink  *udp.Uplink
	status  *web.Status
	done    *task.Completion
	lppChan uint8
}

var (
	openPowerFn = power.Open
	dialMQTTFn  = events.DialMQTT
	newUplinkFn = udp.NewUplink
)

func newTracker(cfg config.Config, log *logrus.Logger, stdout io.Writer) (*tracker, error) {
	rt := &tracker{
		log:     log.WithField("component", "main"),
		lppChan: cfg.LPP.Channel,
		status:  web.NewStatus(),
		done:    task.NewCompletion(),
	}
	if cfg.Reporting.IntervalMs > 0 {
		rt.status.SetInterval((time.Duration(cfg.Reporting.IntervalMs) * time.Millisecond).String())
	}

	var sw power.Switch = power.Noop{}
	if cfg.Power.Enable {
		s, err := openPowerFn(cfg.Power.Chip, cfg.Power.Line)
		if err != nil {
			return nil, err
		}
		sw = s
	}
	rt.rail = power.NewRail(sw, log.WithField("component", "power"))
	rt.rail.UpSettle = cfg.Power.PowerUpSettle
	rt.rail.DownSettle = cfg.Power.PowerDownSettle

	if cfg.Events.StdoutEvents() {
		rt.sink = append(rt.sink, events.NewWriterSink(stdout))
	}
	if cfg.MQTT.Enable {
		m, err := dialMQTTFn(events.MQTTConfig{
			Broker:       cfg.MQTT.Broker,
			ClientID:     cfg.MQTT.ClientID,
			EventsTopic:  cfg.MQTT.EventsTopic,
			PayloadTopic: cfg.MQTT.PayloadTopic,
			Timeout:      cfg.MQTT.Timeout,
		}, log.WithField("component", "mqtt"))
		if err != nil {
			// The broker is optional; event lines still reach stdout.
			rt.log.WithError(err).Warn("mqtt disabled")
		} else {
			rt.mqtt = m
			rt.sink = append(rt.sink, m)
		}
	}

	if cfg.Uplink.Enable {
		format, err := udp.ParseFormat(cfg.Uplink.Format)
		if err != nil {
			return nil, err
		}
		u, err := newUplinkFn(cfg.Uplink.Dest, format)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		u.NoFix = cfg.Uplink.NoFix
		rt.uplink = u
		rt.sink = append(rt.sink, u)
		rt.log.WithFields(logrus.Fields{"dest": cfg.Uplink.Dest, "format": format}).Info("payload uplink enabled")
	}

	flags, err := gnss.ParseFlagPolicy(cfg.GNSS.SentenceFlags)
	if err != nil {
		return nil, err
	}
	gnssLog := log.WithField("component", "gnss")
	det := &gnss.Detector{
		Ports: gnss.HardwarePorts{
			I2CBus:      cfg.GNSS.I2CBus,
			I2CAddr:     cfg.GNSS.I2CAddr,
			UARTDevice:  cfg.GNSS.UARTDevice,
			ReadTimeout: cfg.GNSS.ReadTimeout,
		},
		Log:             gnssLog,
		ProbeTimeout:    cfg.GNSS.ProbeTimeout,
		MeasurementRate: cfg.GNSS.MeasurementRate,
		SentenceFlags:   flags,
		I2CAddr:         cfg.GNSS.I2CAddr,
	}

	interval := cfg.Reporting.IntervalMs
	rt.task = task.New(task.Options{
		Init:       det,
		Rail:       rt.rail,
		Acquirer:   &acquire.Acquirer{Log: log.WithField("component", "acquire")},
		Events:     rt.sink,
		Interval:   func() uint32 { return interval },
		Completion: rt.done,
		OnComplete: rt.report,
		Log:        log.WithField("component", "task"),
	})
	return rt, nil
}

func (rt *tracker) trigger(source string) {
	if !rt.task.Trigger() {
		rt.log.WithField("source", source).Debug("acquisition already pending")
		return
	}
	rt.status.MarkTrigger()
}

// acquireOnce runs the task loop for a single triggered cycle and reports
// whether it produced a fix.
func (rt *tracker) acquireOnce(ctx context.Context) bool {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- rt.task.Run(runCtx) }()

	rt.trigger("once")
	_, err := rt.done.Wait(ctx)
	cancel()
	// Run returns only after the cycle's payload has been reported.
	<-stopped
	return err == nil && rt.task.Snapshot().LastReadOK
}

// report logs the payloads and forwards them to payload sinks.
func (rt *tracker) report(res task.Result) {
	r := events.NewReport(res.At, res.Fix, res.Compact, res.Precise, rt.lppChan)
	rt.log.WithFields(logrus.Fields{
		"fix":     res.Fix,
		"compact": r.CompactHex,
		"precise": r.PreciseHex,
		"lpp":     r.LPPHex,
	}).Info("payload")
	if err := rt.sink.PublishPayload(r); err != nil {
		rt.log.WithError(err).Warn("publish payload")
	}
}

func (rt *tracker) Close() error {
	if rt.mqtt != nil {
		_ = rt.mqtt.Close()
	}
	if rt.uplink != nil {
		_ = rt.uplink.Close()
	}
	return rt.rail.Close()
}
