// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package cmd

import (
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gotmc/visweep"
	"github.com/gotmc/visweep/chroma"
	"github.com/gotmc/visweep/lib/console"
	"github.com/gotmc/visweep/nhr"
	"github.com/gotmc/visweep/scpi"
)

var (
	dualHost         string
	dualPort         int
	dualInstrument   int
	dualTimeout      time.Duration
	dualCurrentLimit float64
	dualPowerLimit   float64

	dualVStart float64
	dualVStop  float64
	dualVStep  float64
	dualIStart float64
	dualIStop  float64
	dualIStep  float64

	dualOuterSettle time.Duration
	dualSettle      time.Duration
	dualStabilize   time.Duration
	dualDwell       time.Duration
	dualRelayPause  time.Duration
	dualTolerance   float64
)

var dualCmd = &cobra.Command{
	Use:   "dual",
	Short: "Nested V-I sweep using the grid simulator and the electronic load",
	Long: `Connects to both instruments, prints the simulator's safety limits,
turns the output on, and sweeps every combination of voltage (outer axis)
and load current (inner axis) in ascending order. Each combination sets the
load current, verifies the setpoint readback, waits for stabilization, and
prints one table row of measurements. Both instruments are driven to a safe
state on exit, error, or operator stop — including when only one of them
connected.`,
	RunE: runDual,
}

func init() {
	dualCmd.Flags().StringVar(&dualHost, "host", "192.168.0.149", "grid simulator IP address")
	dualCmd.Flags().IntVar(&dualPort, "port", 5025, "SCPI programming port")
	dualCmd.Flags().IntVar(&dualInstrument, "instrument", 3, "INSTrument:NSELect channel")
	dualCmd.Flags().DurationVar(&dualTimeout, "timeout", 10*time.Second, "socket dial and exchange timeout")
	dualCmd.Flags().Float64Var(&dualCurrentLimit, "current-limit", 20, "protection current limit (A)")
	dualCmd.Flags().Float64Var(&dualPowerLimit, "power-limit", 2500, "protection power limit (W)")

	dualCmd.Flags().Float64Var(&dualVStart, "vstart", 100, "voltage axis start (V)")
	dualCmd.Flags().Float64Var(&dualVStop, "vstop", 150, "voltage axis stop (V)")
	dualCmd.Flags().Float64Var(&dualVStep, "vstep", 25, "voltage axis step (V)")
	dualCmd.Flags().Float64Var(&dualIStart, "istart", 0, "current axis start (A)")
	dualCmd.Flags().Float64Var(&dualIStop, "istop", 10, "current axis stop (A)")
	dualCmd.Flags().Float64Var(&dualIStep, "istep", 2.5, "current axis step (A)")

	dualCmd.Flags().DurationVar(&dualOuterSettle, "outer-settle", 1500*time.Millisecond, "wait after each voltage setpoint")
	dualCmd.Flags().DurationVar(&dualSettle, "settle", time.Second, "wait after each current setpoint")
	dualCmd.Flags().DurationVar(&dualStabilize, "stabilize", 2*time.Second, "wait before measuring")
	dualCmd.Flags().DurationVar(&dualDwell, "dwell", 20*time.Second, "hold time at each V-I condition after measuring")
	dualCmd.Flags().DurationVar(&dualRelayPause, "relay-pause", 2*time.Second, "wait after OUTPut ON for the relay to engage")
	dualCmd.Flags().Float64Var(&dualTolerance, "tolerance", 0.1, "setpoint verification tolerance (A), inclusive")

	// Load connection and setup share the load command's variables; the TCP
	// --port above forces a different flag name for the serial port here.
	dualCmd.Flags().StringVar(&loadPort, "serial-port", "", "serial port of the GPIB controller (discovered when empty)")
	dualCmd.Flags().IntVar(&loadPAD, "pad", 8, "GPIB primary address of the load")
	dualCmd.Flags().StringVar(&loadMode, "mode", "ACF", "load operating mode")
	dualCmd.Flags().Float64Var(&loadCF, "cf", 1.414, "crest factor")
	dualCmd.Flags().Float64Var(&loadPF, "pf", 1.0, "power factor")
	dualCmd.Flags().Float64Var(&loadPeakMax, "peak-max", 15, "initial peak current ceiling (A)")
	dualCmd.Flags().BoolVar(&loadDebug, "debug", false, "log every GPIB exchange")
	rootCmd.AddCommand(dualCmd)
}

func runDual(cmd *cobra.Command, args []string) error {
	pr := console.New(os.Stdout)
	vAxis := visweep.Axis{Start: dualVStart, Stop: dualVStop, Step: dualVStep}
	iAxis := visweep.Axis{Start: dualIStart, Stop: dualIStop, Step: dualIStep}
	if err := vAxis.Validate(); err != nil {
		return err
	}
	if err := iAxis.Validate(); err != nil {
		return err
	}

	// The shutdown plans start nil and are upgraded as each instrument
	// connects, so the deferred cleanup always covers exactly the endpoints
	// that exist — including the case where the load never connected.
	var simPlan, loadPlan *visweep.Plan
	defer func() {
		pr.Printf("\nCleaning up and shutting down outputs...\n")
		if simPlan != nil {
			if err := visweep.Shutdown(simPlan); err != nil {
				pr.Warnf("grid simulator shutdown could not be confirmed: %s", err)
			} else {
				pr.Okf("Grid simulator output OFF and connection closed.")
			}
		}
		if loadPlan != nil {
			if err := visweep.Shutdown(loadPlan); err != nil {
				pr.Warnf("electronic load shutdown could not be confirmed: %s", err)
			} else {
				pr.Okf("Electronic load OFF, reset, and connection closed.")
			}
		}
	}()

	// Grid simulator.
	addr := net.JoinHostPort(dualHost, strconv.Itoa(dualPort))
	pr.Printf("Connecting to grid simulator at %s...\n", addr)
	conn, err := scpi.Dial(addr, scpi.WithTimeout(dualTimeout))
	if err != nil {
		return err
	}
	simPlan = &visweep.Plan{
		Name:  "grid simulator",
		Steps: []visweep.Step{{Name: "close", Do: conn.Close}},
	}
	sim, err := nhr.New(conn, nhr.Config{
		Instrument:   dualInstrument,
		CurrentLimit: dualCurrentLimit,
		PowerLimit:   dualPowerLimit,
	})
	if err != nil {
		return err
	}
	simPlan = sim.ShutdownPlan()
	limits, err := sim.SafetyLimits()
	if err != nil {
		return err
	}
	pr.SafetyTable(limits)
	pr.Okf("Grid simulator connected and configured.")

	// Electronic load.
	cfg := chroma.Config{
		Mode:           loadMode,
		CrestFactor:    loadCF,
		PowerFactor:    loadPF,
		PeakCurrentMax: loadPeakMax,
		ResetPause:     2 * time.Second,
		ModePause:      500 * time.Millisecond,
	}
	ld, err := openLoad(pr, cfg)
	if err != nil {
		return err
	}
	loadPlan = ld.ShutdownPlan()

	ctx, stop := abortableContext()
	defer stop()

	pr.Printf("\nPreparing for test. Turning grid simulator ON.\n")
	if err := sim.OutputOn(); err != nil {
		return err
	}
	time.Sleep(dualRelayPause)

	pr.Printf("--> Press 'q' then Enter (or Ctrl-C) to stop the sweep. <--\n")
	pr.Printf("\n--- Starting Nested V-I Sweep ---\n")
	pr.SweepHeader()

	lastOuter := math.NaN()
	sw := &visweep.Sweep{
		Outer:       &vAxis,
		Inner:       iAxis,
		SetOuter:    sim.SetVoltage,
		SetInner:    ld.SetCurrent,
		Readback:    ld.Current,
		Quantity:    "current",
		Tolerance:   dualTolerance,
		Measure:     ld.Measure,
		OuterSettle: dualOuterSettle,
		Settle:      dualSettle,
		Stabilize:   dualStabilize,
		Dwell:       dualDwell,
		Emit: func(r visweep.Result) {
			if !math.IsNaN(lastOuter) && r.Outer != lastOuter {
				pr.Rule()
			}
			lastOuter = r.Outer
			pr.SweepRow(r)
		},
	}
	err = sw.Run(ctx)
	pr.Rule()
	reportOutcome(pr, err)
	return runErr(err)
}
