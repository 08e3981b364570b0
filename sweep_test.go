// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rig wires a Sweep to recording fakes with sleeping disabled.
type rig struct {
	sweep   *Sweep
	ops     []string
	results []Result
	sleeps  []time.Duration
}

func newRig(outer *Axis, inner Axis) *rig {
	r := &rig{}
	r.sweep = &Sweep{
		Outer: outer,
		Inner: inner,
		SetOuter: func(v float64) error {
			r.ops = append(r.ops, fmt.Sprintf("outer %g", v))
			return nil
		},
		SetInner: func(v float64) error {
			r.ops = append(r.ops, fmt.Sprintf("inner %g", v))
			return nil
		},
		Measure: func() (Measurement, error) {
			return Measurement{Voltage: 120, Current: 2.5, Power: 300}, nil
		},
		Emit: func(res Result) {
			r.results = append(r.results, res)
		},
		sleep: func(d time.Duration) { r.sleeps = append(r.sleeps, d) },
	}
	return r
}

func TestSweepNestedOrder(t *testing.T) {
	r := newRig(
		&Axis{Start: 100, Stop: 150, Step: 25},
		Axis{Start: 0, Stop: 10, Step: 2.5},
	)
	require.NoError(t, r.sweep.Run(context.Background()))

	require.Len(t, r.results, 15)
	want := []string{
		"outer 100", "inner 0", "inner 2.5", "inner 5", "inner 7.5", "inner 10",
		"outer 125", "inner 0", "inner 2.5", "inner 5", "inner 7.5", "inner 10",
		"outer 150", "inner 0", "inner 2.5", "inner 5", "inner 7.5", "inner 10",
	}
	assert.Equal(t, want, r.ops)

	// Results arrive in iteration order, outer axis slowest.
	i := 0
	for _, ov := range []float64{100, 125, 150} {
		for _, iv := range []float64{0, 2.5, 5, 7.5, 10} {
			assert.Equal(t, ov, r.results[i].Outer)
			assert.Equal(t, iv, r.results[i].Inner)
			i++
		}
	}
}

func TestSweepSinglePass(t *testing.T) {
	r := newRig(nil, Axis{Start: 30, Stop: 60, Step: 10})
	require.NoError(t, r.sweep.Run(context.Background()))
	assert.Equal(t, []string{"inner 30", "inner 40", "inner 50", "inner 60"}, r.ops)
	require.Len(t, r.results, 4)
	assert.True(t, math.IsNaN(r.results[0].Outer))
}

func TestSweepDelayOrder(t *testing.T) {
	r := newRig(
		&Axis{Start: 1, Stop: 1, Step: 1},
		Axis{Start: 2, Stop: 2, Step: 1},
	)
	r.sweep.Readback = func() (float64, error) { return 2, nil }
	r.sweep.OuterSettle = 1 * time.Second
	r.sweep.Settle = 2 * time.Second
	r.sweep.Stabilize = 3 * time.Second
	r.sweep.Dwell = 4 * time.Second
	require.NoError(t, r.sweep.Run(context.Background()))
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second,
	}, r.sleeps)
}

func TestSweepVerificationToleranceInclusive(t *testing.T) {
	r := newRig(nil, Axis{Start: 5, Stop: 5, Step: 1})
	r.sweep.Quantity = "current"
	r.sweep.Tolerance = 0.1
	r.sweep.Readback = func() (float64, error) { return 5.1, nil }

	// |readback - requested| == tolerance is accepted.
	require.NoError(t, r.sweep.Run(context.Background()))
	require.Len(t, r.results, 1)
}

func TestSweepVerificationFailure(t *testing.T) {
	r := newRig(nil, Axis{Start: 5, Stop: 6, Step: 1})
	r.sweep.Quantity = "current"
	r.sweep.Tolerance = 0.1
	r.sweep.Readback = func() (float64, error) { return 5.25, nil }

	err := r.sweep.Run(context.Background())
	require.Error(t, err)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "current", verr.Quantity)
	assert.Equal(t, 5.0, verr.Requested)
	assert.Equal(t, 5.25, verr.Readback)
	// Hard stop: nothing was measured or emitted, and the second setpoint
	// was never commanded.
	assert.Empty(t, r.results)
	assert.Equal(t, []string{"inner 5"}, r.ops)
}

func TestSweepReadbackErrorIsFatal(t *testing.T) {
	r := newRig(nil, Axis{Start: 5, Stop: 6, Step: 1})
	r.sweep.Tolerance = 0.1
	boom := &TransportError{Endpoint: "gpib addr 8", Op: `query "CURRent?"`, Err: errors.New("timeout")}
	r.sweep.Readback = func() (float64, error) { return 0, boom }

	err := r.sweep.Run(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Empty(t, r.results)
}

func TestSweepAbortStopsBeforeNextCombination(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newRig(
		&Axis{Start: 100, Stop: 150, Step: 25},
		Axis{Start: 0, Stop: 10, Step: 2.5},
	)
	r.sweep.Emit = func(res Result) {
		r.results = append(r.results, res)
		if res.Outer == 125 && res.Inner == 2.5 {
			cancel()
		}
	}

	err := r.sweep.Run(ctx)
	require.ErrorIs(t, err, ErrAborted)

	// The point (125, 2.5) completed; no command was issued for (125, 5).
	require.Len(t, r.results, 7)
	assert.Equal(t, 125.0, r.results[6].Outer)
	assert.Equal(t, 2.5, r.results[6].Inner)
	assert.Equal(t, "inner 2.5", r.ops[len(r.ops)-1])
}

func TestSweepAbortedBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRig(nil, Axis{Start: 0, Stop: 10, Step: 2.5})
	err := r.sweep.Run(ctx)
	require.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, r.ops)
}

func TestSweepSetpointErrorUnwinds(t *testing.T) {
	r := newRig(nil, Axis{Start: 0, Stop: 10, Step: 2.5})
	boom := &TransportError{Endpoint: "scpi", Op: `command "CURR 5"`, Err: errors.New("broken pipe")}
	inner := r.sweep.SetInner
	r.sweep.SetInner = func(v float64) error {
		if v == 5 {
			return boom
		}
		return inner(v)
	}
	err := r.sweep.Run(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	// No retry, no further setpoints.
	assert.Equal(t, []string{"inner 0", "inner 2.5"}, r.ops)
	assert.Len(t, r.results, 2)
}

func TestSweepNaNMeasurementDoesNotAbort(t *testing.T) {
	r := newRig(nil, Axis{Start: 0, Stop: 1, Step: 1})
	r.sweep.Measure = func() (Measurement, error) {
		return Measurement{
			Voltage: ParseFloat("ERR"),
			Current: ParseFloat("2.5"),
			Power:   ParseFloat(""),
		}, nil
	}
	require.NoError(t, r.sweep.Run(context.Background()))
	require.Len(t, r.results, 2)
	assert.True(t, math.IsNaN(r.results[0].Voltage))
	assert.Equal(t, 2.5, r.results[0].Current)
	assert.True(t, math.IsNaN(r.results[0].Power))
}

func TestSweepInvalidAxis(t *testing.T) {
	r := newRig(nil, Axis{Start: 10, Stop: 0, Step: 1})
	assert.Error(t, r.sweep.Run(context.Background()))
	assert.Empty(t, r.ops)

	r = newRig(&Axis{Start: 0, Stop: 1, Step: 0}, Axis{Start: 0, Stop: 1, Step: 1})
	assert.Error(t, r.sweep.Run(context.Background()))
	assert.Empty(t, r.ops)
}
