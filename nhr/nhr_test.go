// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package nhr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint records commands and answers queries from a scripted map.
type fakeEndpoint struct {
	cmds    []string
	replies map[string]string
	closed  int
}

func (f *fakeEndpoint) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeEndpoint) Query(cmd string) (string, error) {
	r, ok := f.replies[cmd]
	if !ok {
		return "", errors.New("unexpected query: " + cmd)
	}
	return r, nil
}

func (f *fakeEndpoint) Close() error {
	f.closed++
	return nil
}

func TestNewConfiguresSimulator(t *testing.T) {
	ep := &fakeEndpoint{}
	_, err := New(ep, Config{Instrument: 3, CurrentLimit: 20, PowerLimit: 2500})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"INSTrument:NSELect 3",
		"SOURce:CURRent 20",
		"SOURce:POWer 2500",
	}, ep.cmds)
}

func TestSetVoltageAndOutput(t *testing.T) {
	ep := &fakeEndpoint{}
	sim, err := New(ep, Config{Instrument: 3, CurrentLimit: 20, PowerLimit: 2500})
	require.NoError(t, err)
	ep.cmds = nil

	require.NoError(t, sim.SetVoltage(112.5))
	require.NoError(t, sim.OutputOn())
	require.NoError(t, sim.OutputOff())
	assert.Equal(t, []string{"VOLTage 112.5", "OUTPut ON", "OUTPut OFF"}, ep.cmds)
}

func TestMeasureVoltage(t *testing.T) {
	ep := &fakeEndpoint{replies: map[string]string{"MEASure:VOLTage?": "119.893"}}
	sim, err := New(ep, Config{})
	require.NoError(t, err)

	v, err := sim.MeasureVoltage()
	require.NoError(t, err)
	assert.Equal(t, 119.893, v)

	// The voltage readback is used for verification, so a garbage response
	// is an error here, not NaN.
	ep.replies["MEASure:VOLTage?"] = "ERR"
	_, err = sim.MeasureVoltage()
	assert.Error(t, err)
}

func TestSafetyLimits(t *testing.T) {
	resp := "277.0,400.0,45.0,65.0,20.0,30.0,1.0,1.0,2500.0,3000.0,1500.0,0.7,3.0,50,25.0,0"
	ep := &fakeEndpoint{replies: map[string]string{"SOURce:SAFety?": resp}}
	sim, err := New(ep, Config{})
	require.NoError(t, err)

	sl, err := sim.SafetyLimits()
	require.NoError(t, err)
	assert.True(t, sl.Complete())
	require.Len(t, sl.Fields, 16)
	assert.Equal(t, "277.0", sl.Fields[0])
	assert.Equal(t, "0", sl.Fields[15])
}

func TestSafetyLimitsUnexpectedShape(t *testing.T) {
	ep := &fakeEndpoint{replies: map[string]string{"SOURce:SAFety?": "277.0,400.0"}}
	sim, err := New(ep, Config{})
	require.NoError(t, err)

	sl, err := sim.SafetyLimits()
	require.NoError(t, err)
	assert.False(t, sl.Complete())
	assert.Equal(t, "277.0,400.0", sl.Raw)
}

func TestShutdownPlanOrder(t *testing.T) {
	ep := &fakeEndpoint{}
	sim, err := New(ep, Config{Instrument: 3})
	require.NoError(t, err)
	ep.cmds = nil

	plan := sim.ShutdownPlan()
	require.Equal(t, "grid simulator", plan.Name)
	for _, st := range plan.Steps {
		require.NoError(t, st.Do())
	}
	assert.Equal(t, []string{"VOLTage 0", "OUTPut OFF"}, ep.cmds)
	assert.Equal(t, 1, ep.closed)
}
