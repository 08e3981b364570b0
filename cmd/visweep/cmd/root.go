// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"vawter.tech/stopper"

	"github.com/gotmc/visweep"
	"github.com/gotmc/visweep/lib/console"
)

var rootCmd = &cobra.Command{
	Use:   "visweep",
	Short: "Voltage/current sweep tests for an AC grid simulator and electronic load",
	Long: `visweep sequences SCPI commands to laboratory power instruments to run
voltage/current sweep tests and print measurements.

The grid simulator is reached over a raw TCP socket; the electronic load
over a Prologix GPIB controller on a serial port. Every run ends with a
best-effort safety shutdown, whether the sweep completed, failed, or was
stopped by the operator.

Examples:
  visweep grid --host 192.168.0.149 --start 30 --stop 150 --step 10
  visweep load --pad 8 --stop 10
  visweep dual --host 192.168.0.149 --pad 8`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	log.SetFlags(log.Lmicroseconds)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// abortableContext returns a context canceled by SIGINT or by the operator
// typing a line starting with 'q' on stdin, plus a stop func that tears the
// stdin reader down. The sweep polls the context between combinations; the
// poll never interrupts an in-flight wait or exchange.
func abortableContext() (context.Context, func()) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	sctx := stopper.WithContext(ctx)

	lines := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			default:
			}
		}
		close(lines)
	}()

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "q") {
					log.Print("stop requested by operator")
					cancel()
				}
			}
		}
	})

	stop := func() {
		cancel()
		sctx.Stop(100 * time.Millisecond)
		_ = sctx.Wait()
	}
	return ctx, stop
}

// reportOutcome prints the final status line for a sweep: completed,
// interrupted, or errored.
func reportOutcome(pr *console.Printer, err error) {
	switch {
	case err == nil:
		pr.Okf("--- Sweep Completed Successfully ---")
	case errors.Is(err, visweep.ErrAborted):
		pr.Warnf("Sweep interrupted by operator. Proceeding to shutdown.")
	default:
		pr.Failf("Sweep stopped: %s", err)
	}
}

// runErr converts a sweep outcome into the command's exit error. A
// completed or operator-interrupted sweep exits cleanly.
func runErr(err error) error {
	if err == nil || errors.Is(err, visweep.ErrAborted) {
		return nil
	}
	return fmt.Errorf("sweep failed: %w", err)
}
