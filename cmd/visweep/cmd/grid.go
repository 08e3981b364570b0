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
	"github.com/gotmc/visweep/lib/console"
	"github.com/gotmc/visweep/nhr"
	"github.com/gotmc/visweep/scpi"
)

var (
	gridHost         string
	gridPort         int
	gridInstrument   int
	gridStart        float64
	gridStop         float64
	gridStep         float64
	gridSettle       time.Duration
	gridRelayPause   time.Duration
	gridTimeout      time.Duration
	gridCurrentLimit float64
	gridPowerLimit   float64
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Voltage sweep on the AC grid simulator",
	Long: `Connects to the grid simulator over a raw SCPI socket, selects the
target instrument channel, turns the output on, and steps the output
voltage across the configured range, measuring the actual voltage after
each settle period. The output is ramped to zero and switched off on exit,
error, or operator stop.`,
	RunE: runGrid,
}

func init() {
	gridCmd.Flags().StringVar(&gridHost, "host", "192.168.0.149", "grid simulator IP address")
	gridCmd.Flags().IntVar(&gridPort, "port", 5025, "SCPI programming port")
	gridCmd.Flags().IntVar(&gridInstrument, "instrument", 3, "INSTrument:NSELect channel")
	gridCmd.Flags().Float64Var(&gridStart, "start", 30, "sweep start voltage (V)")
	gridCmd.Flags().Float64Var(&gridStop, "stop", 150, "sweep stop voltage (V)")
	gridCmd.Flags().Float64Var(&gridStep, "step", 10, "sweep step (V)")
	gridCmd.Flags().DurationVar(&gridSettle, "settle", 5*time.Second, "wait after each voltage setpoint")
	gridCmd.Flags().DurationVar(&gridRelayPause, "relay-pause", 2*time.Second, "wait after OUTPut ON for the relay to engage")
	gridCmd.Flags().DurationVar(&gridTimeout, "timeout", 10*time.Second, "socket dial and exchange timeout")
	gridCmd.Flags().Float64Var(&gridCurrentLimit, "current-limit", 20, "protection current limit (A)")
	gridCmd.Flags().Float64Var(&gridPowerLimit, "power-limit", 2500, "protection power limit (W)")
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	pr := console.New(os.Stdout)
	axis := visweep.Axis{Start: gridStart, Stop: gridStop, Step: gridStep}
	if err := axis.Validate(); err != nil {
		return err
	}

	addr := net.JoinHostPort(gridHost, strconv.Itoa(gridPort))
	pr.Printf("Connecting to grid simulator at %s...\n", addr)
	conn, err := scpi.Dial(addr, scpi.WithTimeout(gridTimeout))
	if err != nil {
		return err
	}
	sim, err := nhr.New(conn, nhr.Config{
		Instrument:   gridInstrument,
		CurrentLimit: gridCurrentLimit,
		PowerLimit:   gridPowerLimit,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	pr.Okf("Grid simulator connected and configured.")

	defer func() {
		pr.Printf("\nRamping down voltage and turning output OFF.\n")
		if err := visweep.Shutdown(sim.ShutdownPlan()); err != nil {
			pr.Warnf("grid simulator shutdown could not be confirmed: %s", err)
		} else {
			pr.Okf("Grid simulator output OFF and connection closed.")
		}
	}()

	ctx, stop := abortableContext()
	defer stop()

	if err := sim.OutputOn(); err != nil {
		return err
	}
	time.Sleep(gridRelayPause)

	pr.Printf("--> Press 'q' then Enter (or Ctrl-C) to stop the sweep. <--\n")
	pr.Printf("\n--- Starting Voltage Sweep ---\n")
	sw := &visweep.Sweep{
		Inner:    axis,
		SetInner: sim.SetVoltage,
		Settle:   gridSettle,
		Measure: func() (visweep.Measurement, error) {
			v, err := sim.MeasureVoltage()
			if err != nil {
				return visweep.Measurement{}, err
			}
			return visweep.Measurement{Voltage: v, Current: math.NaN(), Power: math.NaN()}, nil
		},
		Emit: func(r visweep.Result) {
			pr.Printf("%8.1f V set -> %10.3f V measured\n", r.Inner, r.Voltage)
		},
	}
	err = sw.Run(ctx)
	reportOutcome(pr, err)
	return runErr(err)
}
