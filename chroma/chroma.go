// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package chroma drives a Chroma 638xx-series AC electronic load over a
// GPIB endpoint.
package chroma

import (
	"fmt"
	"strings"
	"time"

	"github.com/gotmc/query"

	"github.com/gotmc/visweep"
)

// endpointName identifies the load in error diagnostics.
const endpointName = "electronic load"

// Config holds the load setup issued by Setup. Zero pauses skip the waits,
// which only matters in tests.
type Config struct {
	Mode           string  // operating mode, e.g. "ACF" for AC crest-factor
	CrestFactor    float64 // CFACTor
	PowerFactor    float64 // PFACtor
	PeakCurrentMax float64 // CURRent:PEAK:MAXimum:AC ceiling in amps

	ResetPause time.Duration // after *RST; the load is deaf while resetting
	ModePause  time.Duration // after MODE; mode changes take longer to apply
}

// DefaultConfig is the AC crest-factor setup used by the sweep commands.
func DefaultConfig() Config {
	return Config{
		Mode:           "ACF",
		CrestFactor:    1.414,
		PowerFactor:    1.0,
		PeakCurrentMax: 15.0,
		ResetPause:     2 * time.Second,
		ModePause:      500 * time.Millisecond,
	}
}

// Load is a connected, configured electronic load.
type Load struct {
	ep visweep.Endpoint
}

// Setup resets and configures the load, then checks the instrument's own
// error queue before returning the load and its identity string. A non-OK
// status is an InstrumentError: configuration never proceeds on a load that
// reports a setup problem.
func Setup(ep visweep.Endpoint, cfg Config) (*Load, string, error) {
	l := &Load{ep: ep}
	steps := []struct {
		cmd   string
		pause time.Duration
	}{
		{"*RST", cfg.ResetPause},
		{"*CLS", 0},
		{fmt.Sprintf("MODE %s", cfg.Mode), cfg.ModePause},
		{fmt.Sprintf("CFACTor %g", cfg.CrestFactor), 0},
		{fmt.Sprintf("PFACtor %g", cfg.PowerFactor), 0},
		{fmt.Sprintf("CURRent:PEAK:MAXimum:AC %g", cfg.PeakCurrentMax), 0},
	}
	for _, st := range steps {
		if err := ep.Command(st.cmd); err != nil {
			return nil, "", err
		}
		if st.pause > 0 {
			time.Sleep(st.pause)
		}
	}
	if err := l.checkError(); err != nil {
		return nil, "", err
	}
	idn, err := ep.Query("*IDN?")
	if err != nil {
		return nil, "", err
	}
	return l, idn, nil
}

// checkError queries SYSTem:ERRor? and converts a non-OK status into an
// InstrumentError. The load reports "0", "OK", or "0,..." when clean.
func (l *Load) checkError() error {
	status, err := l.ep.Query("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if statusOK(status) {
		return nil
	}
	return &visweep.InstrumentError{Endpoint: endpointName, Status: status}
}

func statusOK(status string) bool {
	return status == "0" || status == "OK" || strings.HasPrefix(status, "0,")
}

// SetCurrent programs the load current setpoint. In AC mode the instrument
// requires the peak-current ceiling to be raised ahead of the setpoint, and
// LOAD ON re-issued after every change. A zero setpoint keeps a small
// non-zero ceiling so the instrument accepts the command.
func (l *Load) SetCurrent(a float64) error {
	peak := a * 1.5
	if a <= 0 {
		peak = 0.1
	}
	if err := l.ep.Command("CURRent:PEAK:MAXimum:AC %g", peak); err != nil {
		return err
	}
	if err := l.ep.Command("CURR %g", a); err != nil {
		return err
	}
	return l.LoadOn()
}

// Current reads back the programmed current setpoint for verification. A
// readback that does not parse is an error, not NaN.
func (l *Load) Current() (float64, error) {
	return query.Float64(l.ep, "CURRent?")
}

// LoadOn enables the load input.
func (l *Load) LoadOn() error { return l.ep.Command("LOAD ON") }

// LoadOff disables the load input.
func (l *Load) LoadOff() error { return l.ep.Command("LOAD OFF") }

// On reports whether the load input is enabled. The instrument answers "1"
// or "OK" when it is.
func (l *Load) On() (bool, error) {
	status, err := l.ep.Query("LOAD:STATus?")
	if err != nil {
		return false, err
	}
	return status == "1" || status == "OK", nil
}

// Measure reads voltage, current, and power, in that order. A response that
// does not parse is reported as NaN rather than failing the sweep; only a
// failed exchange is an error.
func (l *Load) Measure() (visweep.Measurement, error) {
	var m visweep.Measurement
	reads := []struct {
		cmd string
		dst *float64
	}{
		{"MEASure:VOLTage?", &m.Voltage},
		{"MEASure:CURRent?", &m.Current},
		{"MEASure:POWer?", &m.Power},
	}
	for _, r := range reads {
		resp, err := l.ep.Query(r.cmd)
		if err != nil {
			return m, err
		}
		*r.dst = visweep.ParseFloat(resp)
	}
	return m, nil
}

// ShutdownPlan drops the setpoint, disables the input, resets the
// instrument so the next run starts clean, and releases the endpoint. Every
// step is best-effort.
func (l *Load) ShutdownPlan() *visweep.Plan {
	return &visweep.Plan{
		Name: endpointName,
		Steps: []visweep.Step{
			{Name: "load off", Do: l.LoadOff},
			{Name: "current to zero", Do: func() error { return l.ep.Command("CURRent 0") }},
			{Name: "reset", Do: func() error { return l.ep.Command("*RST") }, After: time.Second},
			{Name: "close", Do: l.ep.Close},
		},
	}
}
