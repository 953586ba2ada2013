// Package wwtp implements the wastewater-treatment-plant discharge rule: a
// week-of-year indexed table giving the fraction of a utility's demand
// returned as effluent to specific downstream sources.
package wwtp

import (
	"fmt"

	"github.com/bernardoct/Heraclitus/constants"
)

// DischargeRule maps a destination source id and a week of the year to the
// fraction of a utility's demand discharged there as effluent. The zero
// value is a valid rule that discharges nothing.
type DischargeRule struct {
	sourceIDs []int
	fractions map[int][]float64 // source id -> 53 week-of-year fractions
}

// NewDischargeRule builds a rule from parallel slices of destination source
// ids and their 53-entry week-of-year fraction series.
func NewDischargeRule(sourceIDs []int, fractions [][]float64) (DischargeRule, error) {
	if len(sourceIDs) != len(fractions) {
		return DischargeRule{}, fmt.Errorf("wwtp: %d discharge series for %d source ids", len(fractions), len(sourceIDs))
	}
	m := make(map[int][]float64, len(sourceIDs))
	for i, id := range sourceIDs {
		if len(fractions[i]) != constants.WeeksInYearRound+1 {
			return DischargeRule{}, fmt.Errorf("wwtp: discharge series for source %d has %d weeks, want %d", id, len(fractions[i]), constants.WeeksInYearRound+1)
		}
		for w, f := range fractions[i] {
			if f < 0 || f > 1 {
				return DischargeRule{}, fmt.Errorf("wwtp: discharge fraction %.4f for source %d week %d outside [0,1]", f, id, w)
			}
		}
		m[id] = append([]float64(nil), fractions[i]...)
	}
	return DischargeRule{sourceIDs: append([]int(nil), sourceIDs...), fractions: m}, nil
}

// SourceIDs returns the destination source ids, in rule order.
func (r DischargeRule) SourceIDs() []int { return r.sourceIDs }

// Fraction returns the fraction of demand discharged to sourceID on the
// given week of the year.
func (r DischargeRule) Fraction(sourceID, weekOfYear int) float64 {
	return r.fractions[sourceID][weekOfYear]
}
