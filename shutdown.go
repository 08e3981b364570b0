// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package visweep

import (
	"fmt"
	"log"
	"time"

	"go.uber.org/multierr"
)

// Step is one best-effort safety action: drive an output to a safe
// baseline, disable it, reset the instrument, or release the channel.
type Step struct {
	Name  string
	Do    func() error
	After time.Duration // pause once the step has been issued, e.g. for a relay
}

// Plan is the ordered safety shutdown for one instrument. A nil *Plan
// stands for an instrument that never connected and is skipped.
type Plan struct {
	Name  string
	Steps []Step
}

// Shutdown drives every step of every non-nil plan, in order. A failing
// step never prevents the remaining steps or plans from being attempted:
// each failure is logged, recorded, and iteration continues. The aggregated
// error exists for diagnostics only; Shutdown itself never panics and the
// sweep outcome does not depend on its return value.
func Shutdown(plans ...*Plan) error {
	var errs error
	for _, p := range plans {
		if p == nil {
			continue
		}
		for _, st := range p.Steps {
			if err := st.Do(); err != nil {
				log.Printf("shutdown %s: %s: %s", p.Name, st.Name, err)
				errs = multierr.Append(errs, fmt.Errorf("%s: %s: %w", p.Name, st.Name, err))
				continue
			}
			if st.After > 0 {
				time.Sleep(st.After)
			}
		}
	}
	return errs
}
