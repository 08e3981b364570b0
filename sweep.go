// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visweep

import (
	"context"
	"math"
	"time"
)

// Measurement holds one set of readings taken after a setpoint has
// stabilized. NaN marks a response that did not parse as a number.
type Measurement struct {
	Voltage float64
	Current float64
	Power   float64
}

// Point is one combination of axis setpoints. Outer is NaN for a sweep
// without an outer axis.
type Point struct {
	Outer float64
	Inner float64
}

// Result pairs a point with its measurements. Results are emitted in
// iteration order, one per combination, before the sweep advances.
type Result struct {
	Point
	Measurement
}

// Sweep drives a nested setpoint iteration against one or two instruments.
// The outer axis varies slowest; a nil Outer runs a single inner pass. The
// zero delays are valid (no waiting), which is mainly useful in tests.
//
// Execution is fully sequential: one command or query at a time, with fixed
// timed waits between them. There are no retries anywhere; the first
// failure unwinds the sweep so the caller can run its safety shutdown.
type Sweep struct {
	Outer *Axis
	Inner Axis

	// SetOuter issues the outer setpoint command whenever the outer value
	// changes. Required when Outer is non-nil, ignored otherwise.
	SetOuter func(v float64) error

	// SetInner issues the inner setpoint command(s) for every combination.
	SetInner func(v float64) error

	// Readback re-queries the inner setpoint once it has settled. A nil
	// Readback disables verification. A readback parse failure is fatal,
	// unlike measurement parses.
	Readback func() (float64, error)

	// Quantity names the verified quantity in diagnostics, e.g. "current".
	Quantity string

	// Tolerance is the inclusive verification window: a readback is
	// accepted iff |readback - requested| <= Tolerance.
	Tolerance float64

	// Measure reads voltage, current, and power after stabilization.
	// Individual readings may be NaN; an error means the exchange itself
	// failed.
	Measure func() (Measurement, error)

	// Emit receives one result per combination. May be nil.
	Emit func(Result)

	OuterSettle time.Duration // after an outer setpoint change
	Settle      time.Duration // after an inner setpoint, before verification
	Stabilize   time.Duration // before measurements, thermal/electrical settling
	Dwell       time.Duration // after measurements, before the next combination

	sleep func(time.Duration) // swapped out in tests
}

// Run executes the sweep, outer axis slowest, each axis ascending. An abort
// request is polled non-blockingly at the top of the innermost loop body:
// once ctx is canceled the sweep stops before commanding the next
// combination and returns ErrAborted. A cancellation never interrupts an
// in-flight wait or exchange.
func (s *Sweep) Run(ctx context.Context) error {
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if err := s.Inner.Validate(); err != nil {
		return err
	}
	outer := []float64{math.NaN()}
	if s.Outer != nil {
		if err := s.Outer.Validate(); err != nil {
			return err
		}
		outer = s.Outer.Values()
	}
	for _, ov := range outer {
		if s.Outer != nil {
			if err := s.SetOuter(ov); err != nil {
				return err
			}
			s.sleep(s.OuterSettle)
		}
		for _, iv := range s.Inner.Values() {
			if ctx.Err() != nil {
				return ErrAborted
			}
			if err := s.step(Point{Outer: ov, Inner: iv}); err != nil {
				return err
			}
		}
	}
	return nil
}

// step runs one combination: set, settle, verify, stabilize, measure, emit,
// dwell.
func (s *Sweep) step(p Point) error {
	if err := s.SetInner(p.Inner); err != nil {
		return err
	}
	s.sleep(s.Settle)
	if s.Readback != nil {
		got, err := s.Readback()
		if err != nil {
			return err
		}
		if math.Abs(got-p.Inner) > s.Tolerance {
			return &VerificationError{
				Quantity:  s.Quantity,
				Requested: p.Inner,
				Readback:  got,
				Tolerance: s.Tolerance,
			}
		}
	}
	s.sleep(s.Stabilize)
	m, err := s.Measure()
	if err != nil {
		return err
	}
	if s.Emit != nil {
		s.Emit(Result{Point: p, Measurement: m})
	}
	s.sleep(s.Dwell)
	return nil
}
