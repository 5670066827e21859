package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gnss-tracker/internal/config"
	"gnss-tracker/internal/web"
)

func main() {
	var (
		configPath string
		once       bool
	)
	flag.StringVar(&configPath, "config", "./tracker.yaml", "Path to YAML config")
	flag.BoolVar(&once, "once", false, "Run a single acquisition and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newTracker(cfg, log, os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("tracker init failed")
	}
	log.WithFields(logrus.Fields{
		"interval_ms": cfg.Reporting.IntervalMs,
		"uart":        cfg.GNSS.UARTDevice,
		"i2c":         cfg.GNSS.I2CBus,
	}).Info("gnss-tracker starting")

	if once {
		fix := rt.acquireOnce(ctx)
		_ = rt.Close()
		if !fix {
			os.Exit(1)
		}
		return
	}

	// SIGUSR1 requests an immediate acquisition.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	var tick <-chan time.Time
	if cfg.Reporting.IntervalMs > 0 {
		ticker := time.NewTicker(time.Duration(cfg.Reporting.IntervalMs) * time.Millisecond)
		defer ticker.Stop()
		tick = ticker.C
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				rt.trigger("ticker")
			case <-usr1:
				rt.trigger("signal")
			}
		}
	}()

	if cfg.Web.Enable {
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, rt.status, rt.task, log.WithField("component", "web"))
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Error("status api failed")
			}
		}()
	}

	// First fix at startup.
	rt.trigger("startup")
	if err := rt.task.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("acquisition task stopped")
	}
	_ = rt.Close()
	log.Info("gnss-tracker stopping")
}
