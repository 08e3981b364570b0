// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package nhr drives an NHR 9400-series AC grid simulator over a raw SCPI
// socket endpoint.
package nhr

import (
	"strings"
	"time"

	"github.com/gotmc/query"

	"github.com/gotmc/visweep"
)

// Config holds the setup programmed at connect time. The protection limits
// are deliberately generous; the sweep never runs near them.
type Config struct {
	Instrument   int     // INSTrument:NSELect target on multi-channel units
	CurrentLimit float64 // protection limit in amps
	PowerLimit   float64 // protection limit in watts
}

// Simulator is a connected, configured grid simulator.
type Simulator struct {
	ep visweep.Endpoint
}

// New selects the target instrument channel and programs the protection
// limits.
func New(ep visweep.Endpoint, cfg Config) (*Simulator, error) {
	if err := ep.Command("INSTrument:NSELect %d", cfg.Instrument); err != nil {
		return nil, err
	}
	if err := ep.Command("SOURce:CURRent %g", cfg.CurrentLimit); err != nil {
		return nil, err
	}
	if err := ep.Command("SOURce:POWer %g", cfg.PowerLimit); err != nil {
		return nil, err
	}
	return &Simulator{ep: ep}, nil
}

// SetVoltage programs the output voltage setpoint in volts RMS.
func (s *Simulator) SetVoltage(v float64) error {
	return s.ep.Command("VOLTage %g", v)
}

// OutputOn closes the output relay.
func (s *Simulator) OutputOn() error { return s.ep.Command("OUTPut ON") }

// OutputOff opens the output relay.
func (s *Simulator) OutputOff() error { return s.ep.Command("OUTPut OFF") }

// MeasureVoltage reads back the measured output voltage. Unlike sweep
// measurements, a response that does not parse is an error here: the value
// is used for verification, not display.
func (s *Simulator) MeasureVoltage() (float64, error) {
	return query.Float64(s.ep, "MEASure:VOLTage?")
}

// SafetyLabels names the 16 fields of a SOURce:SAFety? response, in the
// fixed order the instrument reports them.
var SafetyLabels = [16]string{
	"Max RMS Voltage (V)",
	"Max Peak Voltage (V)",
	"Min Frequency (Hz)",
	"Max Frequency (Hz)",
	"Max RMS Current (A)",
	"Max Peak Current (A)",
	"Max Voltage Slew Rate (V/us)",
	"Max Current Slew Rate (A/us)",
	"Max Power (W)",
	"Max Apparent Power (VA)",
	"Max Reactive Power (VAR)",
	"Power Factor Limit",
	"Crest Factor Limit",
	"Max Harmonics Order",
	"Peak Current Limit (A)",
	"Reserved",
}

// SafetyLimits holds one SOURce:SAFety? response split into fields. Fields
// stay as raw strings; individual values that do not parse as numbers are
// rendered verbatim rather than treated as an error.
type SafetyLimits struct {
	Raw    string
	Fields []string
}

// Complete reports whether the response carried all 16 documented fields.
func (sl *SafetyLimits) Complete() bool { return len(sl.Fields) == 16 }

// SafetyLimits queries the instrument's configured safety limits.
func (s *Simulator) SafetyLimits() (*SafetyLimits, error) {
	resp, err := s.ep.Query("SOURce:SAFety?")
	if err != nil {
		return nil, err
	}
	return &SafetyLimits{Raw: resp, Fields: strings.Split(resp, ",")}, nil
}

// ShutdownPlan ramps the output to zero, opens the relay, and releases the
// connection. Every step is best-effort.
func (s *Simulator) ShutdownPlan() *visweep.Plan {
	return &visweep.Plan{
		Name: "grid simulator",
		Steps: []visweep.Step{
			{Name: "voltage to zero", Do: func() error { return s.SetVoltage(0) }, After: time.Second},
			{Name: "output off", Do: s.OutputOff},
			{Name: "close", Do: s.ep.Close},
		},
	}
}
