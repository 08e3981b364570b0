// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gotmc/visweep"
	"github.com/gotmc/visweep/chroma"
	"github.com/gotmc/visweep/gpib"
	"github.com/gotmc/visweep/lib/console"
	"github.com/gotmc/visweep/lib/find"
)

var (
	loadPort      string
	loadPAD       int
	loadMode      string
	loadCF        float64
	loadPF        float64
	loadPeakMax   float64
	loadStop      float64
	loadStep      float64
	loadSettle    time.Duration
	loadStabilize time.Duration
	loadDwell     time.Duration
	loadTolerance float64
	loadDebug     bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Current staircase on the electronic load",
	Long: `Configures the electronic load for AC crest-factor mode and steps the
current setpoint from zero to the configured maximum. Each step turns the
load on, confirms the load status, verifies the setpoint readback against
the tolerance, and prints live voltage/current/power readings. The load is
switched off and reset on exit, error, or operator stop.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadPort, "port", "", "serial port of the GPIB controller (discovered when empty)")
	loadCmd.Flags().IntVar(&loadPAD, "pad", 8, "GPIB primary address of the load")
	loadCmd.Flags().StringVar(&loadMode, "mode", "ACF", "load operating mode")
	loadCmd.Flags().Float64Var(&loadCF, "cf", 1.414, "crest factor")
	loadCmd.Flags().Float64Var(&loadPF, "pf", 1.0, "power factor")
	loadCmd.Flags().Float64Var(&loadPeakMax, "peak-max", 15, "initial peak current ceiling (A)")
	loadCmd.Flags().Float64Var(&loadStop, "stop", 10, "final current setpoint (A)")
	loadCmd.Flags().Float64Var(&loadStep, "step", 1, "current step (A)")
	loadCmd.Flags().DurationVar(&loadSettle, "settle", time.Second, "wait after each current setpoint")
	loadCmd.Flags().DurationVar(&loadStabilize, "stabilize", 2*time.Second, "wait before measuring")
	loadCmd.Flags().DurationVar(&loadDwell, "dwell", 5*time.Second, "hold time at each setpoint after measuring")
	loadCmd.Flags().Float64Var(&loadTolerance, "tolerance", 0.1, "setpoint verification tolerance (A), inclusive")
	loadCmd.Flags().BoolVar(&loadDebug, "debug", false, "log every GPIB exchange")
	rootCmd.AddCommand(loadCmd)
}

// openLoad connects and configures the electronic load, discovering the
// serial port when none was given.
func openLoad(pr *console.Printer, cfg chroma.Config) (*chroma.Load, error) {
	port := loadPort
	if port == "" {
		dev, err := find.Find(find.GPIBFilter)
		if err != nil {
			return nil, fmt.Errorf("no --port given and discovery failed: %w", err)
		}
		port = "/dev/" + dev
	}
	pr.Printf("Connecting to electronic load via %s (GPIB %d)...\n", port, loadPAD)
	var opts []gpib.ControllerOption
	if loadDebug {
		opts = append(opts, gpib.WithDebug())
	}
	ep, err := gpib.Open(port, loadPAD, true, opts...)
	if err != nil {
		return nil, err
	}
	ld, idn, err := chroma.Setup(ep, cfg)
	if err != nil {
		_ = ep.Close()
		return nil, err
	}
	pr.Okf("Electronic load connected and configured: %s", idn)
	return ld, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	pr := console.New(os.Stdout)
	axis := visweep.Axis{Start: 0, Stop: loadStop, Step: loadStep}
	if err := axis.Validate(); err != nil {
		return err
	}

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

	defer func() {
		pr.Printf("\nCleaning up and closing connection...\n")
		if err := visweep.Shutdown(ld.ShutdownPlan()); err != nil {
			pr.Warnf("electronic load shutdown could not be confirmed: %s", err)
		} else {
			pr.Okf("Load OFF, reset, and connection closed.")
		}
	}()

	ctx, stop := abortableContext()
	defer stop()

	pr.Printf("--> Press 'q' then Enter (or Ctrl-C) to stop the staircase. <--\n\n")
	sw := &visweep.Sweep{
		Inner: axis,
		SetInner: func(a float64) error {
			// The load must report ON before it accepts a setpoint change.
			if err := ld.LoadOn(); err != nil {
				return err
			}
			on, err := ld.On()
			if err != nil {
				return err
			}
			if !on {
				return &visweep.InstrumentError{Endpoint: "electronic load", Status: "load did not report ON"}
			}
			return ld.SetCurrent(a)
		},
		Readback:  ld.Current,
		Quantity:  "current",
		Tolerance: loadTolerance,
		Settle:    loadSettle,
		Stabilize: loadStabilize,
		Dwell:     loadDwell,
		Measure:   ld.Measure,
		Emit: func(r visweep.Result) {
			pr.Printf("I set %6.2f A:  %8.2f V  %8.2f A  %8.2f W\n",
				r.Inner, r.Voltage, r.Current, r.Power)
		},
	}
	err = sw.Run(ctx)
	reportOutcome(pr, err)
	return runErr(err)
}
