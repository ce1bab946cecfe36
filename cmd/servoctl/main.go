package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/winchlab/servoctl/internal/bus"
	"github.com/winchlab/servoctl/internal/config"
	"github.com/winchlab/servoctl/internal/drive"
	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/geometry"
	"github.com/winchlab/servoctl/internal/logger"
	"github.com/winchlab/servoctl/internal/pid"
	"github.com/winchlab/servoctl/internal/rt"
	"github.com/winchlab/servoctl/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "servoctl: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "servoctl: %v\n", err)
		os.Exit(1)
	}

	if err := pid.Write(); err != nil {
		logger.Error().Err(err).Msg("Failed to write pidfile")
		os.Exit(1)
	}
	defer pid.Remove()

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("Daemon exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	errFactory := errors.New()

	period := time.Duration(cfg.PeriodUs) * time.Microsecond
	logger.Info().
		Dur("period", period).
		Str("policy", cfg.Policy).
		Int("priority", cfg.Priority).
		Bool("monitor", cfg.Monitor).
		Msg("Starting servoctl")

	var params *geometry.Params
	if cfg.Geometry != "" {
		var err error
		params, err = geometry.Load(cfg.Geometry)
		if err != nil {
			return err
		}
		logger.Info().
			Str("file", cfg.Geometry).
			Int("actuators", len(params.Actuators)).
			Msg("Loaded robot geometry")
	}

	exchange := bus.NewLoopback()
	defer exchange.Close()

	drives := make([]*drive.Controller, 0, len(cfg.Drives))
	for _, pos := range cfg.Drives {
		if params != nil {
			if a, ok := params.Actuator(pos); ok && !a.Active {
				logger.Info().Int("position", pos).Msg("Skipping inactive actuator")
				continue
			}
		}
		ctl, err := drive.NewController(uint16(pos), exchange)
		if err != nil {
			return errFactory.Wrap(errors.ErrInitApp, err)
		}
		drives = append(drives, ctl)
	}
	if len(drives) == 0 {
		return errFactory.WithMessage(errors.ErrInitApp, "no active drives to control")
	}

	var collector telemetry.Collector
	if cfg.Telemetry {
		var err error
		collector, err = telemetry.NewService(telemetry.Config{DBPath: cfg.Database})
		if err != nil {
			return err
		}
		defer collector.Close()
	}

	sup := &supervisor{
		exchange:  exchange,
		drives:    drives,
		collector: collector,
		period:    period,
		monitor:   cfg.Monitor,
	}

	worker := rt.NewWorker("fieldbus-cycle")
	cores, err := config.ParseAffinity(cfg.Affinity)
	if err != nil {
		return err
	}
	if err := worker.SetAffinity(cores...); err != nil {
		return err
	}
	policy, err := rt.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	if err := worker.SetSchedulingAttributes(policy, cfg.Priority); err != nil {
		return err
	}
	if !cfg.MemLock {
		worker.SetMemoryPinner(rt.NopMemoryPinner{}, 0)
	}

	worker.SetLoopHook(sup.cycle)
	worker.SetEndHook(sup.shutdown)
	worker.SetEmergencyHook(sup.emergency)

	if err := worker.Arm(period); err != nil {
		return err
	}
	if err := worker.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	watchdog := time.NewTicker(100 * time.Millisecond)
	defer watchdog.Stop()

	for {
		select {
		case sig := <-sigs:
			logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			worker.Stop()
			return nil
		case <-watchdog.C:
			if worker.State() == rt.StateDeadlineMissed {
				worker.Stop()
				return errFactory.New(errors.ErrDeadlineMissed)
			}
		}
	}
}
