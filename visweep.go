// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package visweep runs voltage/current sweep tests against bench
// instruments that speak a textual command/query protocol. It provides the
// sweep loop with setpoint verification, the tolerant response parsing used
// for measurements, and the best-effort safety shutdown that runs whether
// a sweep completed, failed, or was aborted by the operator.
//
// Concrete transports live in the scpi (raw TCP socket) and gpib (Prologix
// controller-in-charge on a serial port) packages; per-instrument command
// vocabularies live in nhr and chroma.
package visweep

import (
	"math"
	"strconv"
	"strings"
)

// Endpoint is one connected instrument reachable through a textual
// command/query protocol. Commands and queries are issued in strict program
// order; an Endpoint is owned by a single run and never shared between
// concurrent operations.
type Endpoint interface {
	// Command formats according to a format specifier if provided and
	// sends a fire-and-forget directive to the instrument.
	Command(format string, a ...any) error

	// Query sends a directive expecting a reply, reads exactly one
	// response, and returns it stripped of trailing whitespace and NUL
	// bytes.
	Query(cmd string) (string, error)

	// Close releases the underlying channel. Close is idempotent and never
	// fails observably.
	Close() error
}

// Clean strips leading/trailing whitespace and embedded NUL bytes from an
// instrument response. Some instruments pad socket responses with NULs.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

// ParseFloat converts an instrument response to a float64, yielding NaN
// when the response does not parse. A single bad measurement renders as NaN
// in the output instead of aborting an otherwise-valid sweep, so this never
// returns an error.
func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
