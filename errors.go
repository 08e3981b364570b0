// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visweep

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by Sweep.Run when the operator requested a stop.
// It is a controlled stop rather than a defect: the caller shuts down the
// instruments exactly as it would for any failure, but reports the run as
// interrupted instead of errored.
var ErrAborted = errors.New("sweep aborted by operator")

// TransportError reports a failed exchange with an instrument endpoint:
// connection refused, timed out, or closed mid-exchange. Transport errors
// are fatal to the current run and never retried.
type TransportError struct {
	Endpoint string // which instrument, e.g. "scpi 192.168.0.149:5025"
	Op       string // the exchange that failed, e.g. `query "MEASure:VOLTage?"`
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Endpoint, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// VerificationError reports a setpoint readback outside tolerance. It
// signals a likely instrument fault or configuration mismatch rather than a
// transient condition, so it is a hard stop, not a retry.
type VerificationError struct {
	Quantity  string
	Requested float64
	Readback  float64
	Tolerance float64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("failed to set %s: requested %g but read back %g (tolerance %g)",
		e.Quantity, e.Requested, e.Readback, e.Tolerance)
}

// InstrumentError reports a non-OK status from the instrument's own error
// or status query after a configuration step. Fatal at setup time.
type InstrumentError struct {
	Endpoint string
	Status   string
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("%s reported an error: %s", e.Endpoint, e.Status)
}
