// Package policy defines the seam through which the (external)
// multi-objective driver injects weekly drought-mitigation and
// infrastructure decisions between the ROF computation and the continuity
// step. The core never decides; it only exposes the utility setters a
// policy is expected to call.
package policy

import (
	"github.com/bernardoct/Heraclitus/rof"
	"github.com/bernardoct/Heraclitus/utility"
)

// Policy is invoked once per utility per week, after ROFs are computed and
// before the continuity step.
type Policy interface {
	Decide(week int, u *utility.Utility, shortTerm, longTerm rof.Result)
}

// Noop takes no drought-mitigation actions.
type Noop struct{}

func (Noop) Decide(int, *utility.Utility, rof.Result, rof.Result) {}
