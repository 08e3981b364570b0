// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visweep

import (
	"fmt"
	"math"
)

// Axis is one swept quantity: setpoints from Start through Stop inclusive
// in increments of Step. Values may be non-integer, e.g. a current axis
// stepping by 2.5 A. An Axis is constructed once at startup and immutable.
type Axis struct {
	Start float64
	Stop  float64
	Step  float64
}

// Validate checks the axis invariants: Step > 0 and Start <= Stop.
func (a Axis) Validate() error {
	if a.Step <= 0 {
		return fmt.Errorf("axis step must be positive, got %g", a.Step)
	}
	if a.Start > a.Stop {
		return fmt.Errorf("axis start %g exceeds stop %g", a.Start, a.Stop)
	}
	return nil
}

// Count returns the number of setpoints, floor((Stop-Start)/Step) + 1. The
// small bias keeps a final point that lands exactly on Stop from being lost
// to float rounding.
func (a Axis) Count() int {
	return int(math.Floor((a.Stop-a.Start)/a.Step+1e-9)) + 1
}

// Values returns the setpoints in ascending order. Each point is computed
// as Start plus a multiple of Step rather than by accumulation, so the
// sequence is strictly non-decreasing and ends at a value <= Stop.
func (a Axis) Values() []float64 {
	vals := make([]float64, a.Count())
	for i := range vals {
		vals[i] = a.Start + float64(i)*a.Step
	}
	return vals
}
