package main

import (
	"time"

	"github.com/winchlab/servoctl/internal/bus"
	"github.com/winchlab/servoctl/internal/drive"
	"github.com/winchlab/servoctl/internal/logger"
	"github.com/winchlab/servoctl/internal/telemetry"
)

// supervisor owns the cycle body: it triggers the bus exchange, decodes
// every drive's feedback, runs the control decisions, encodes the
// outputs and lets the exchange flush. A command issued here is on the
// bus before the end of the same cycle.
type supervisor struct {
	exchange  bus.Exchange
	drives    []*drive.Controller
	collector telemetry.Collector
	period    time.Duration
	monitor   bool

	cycleCount uint64
	lastCycle  time.Time
}

func (s *supervisor) cycle() {
	now := time.Now()
	var jitter time.Duration
	if !s.lastCycle.IsZero() {
		jitter = now.Sub(s.lastCycle) - s.period
	}
	s.lastCycle = now
	s.cycleCount++

	if err := s.exchange.Receive(); err != nil {
		logger.Error().Err(err).Msg("Bus receive failed, skipping cycle")
		return
	}

	for _, d := range s.drives {
		d.ReadInputs()
	}

	if !s.monitor {
		s.step()
	}

	for _, d := range s.drives {
		d.WriteOutputs()
	}

	if err := s.exchange.Send(); err != nil {
		logger.Error().Err(err).Msg("Bus send failed")
	}

	if s.collector != nil {
		ts := now.UnixNano()
		for _, d := range s.drives {
			in := d.Inputs()
			s.collector.Offer(telemetry.Sample{
				Timestamp:  ts,
				Cycle:      s.cycleCount,
				JitterNs:   jitter.Nanoseconds(),
				Position:   d.BusPosition(),
				DriveState: d.State().String(),
				ActualPos:  in.Position,
				ActualVel:  in.Velocity,
				ActualTorq: in.Torque,
			})
		}
	}
}

// step walks every drive one transition towards OperationEnabled and
// holds it there. Faulted drives get a reset edge and re-run the
// sequence from wherever the hardware lands them.
func (s *supervisor) step() {
	for _, d := range s.drives {
		switch d.State() {
		case drive.SwitchOnDisabled:
			d.Shutdown()
		case drive.ReadyToSwitchOn:
			d.SwitchOn()
		case drive.SwitchedOn, drive.QuickStopActive:
			d.EnableOperation()
		case drive.OperationEnabled:
			// Setpoint was seeded from the live actuals on enable;
			// holding it keeps the axis in place.
		case drive.Fault:
			d.FaultReset()
		case drive.FaultReactionActive:
			// Drive is still decelerating; wait for it to settle.
		}
	}
}

// shutdown is the worker end hook: leave every axis without voltage.
func (s *supervisor) shutdown() {
	for _, d := range s.drives {
		d.DisableVoltage()
		d.WriteOutputs()
	}
	if err := s.exchange.Send(); err != nil {
		logger.Error().Err(err).Msg("Final bus send failed")
	}
	logger.Info().Uint64("cycles", s.cycleCount).Msg("Control loop finished")
}

// emergency is the worker emergency hook, run once after a missed
// deadline before the thread self-terminates: command a controlled stop
// on every axis.
func (s *supervisor) emergency() {
	for _, d := range s.drives {
		d.QuickStop()
		d.WriteOutputs()
	}
	if err := s.exchange.Send(); err != nil {
		logger.Error().Err(err).Msg("Emergency bus send failed")
	}
}
