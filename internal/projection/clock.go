// Package projection converts score and game clock into points-per-second samples and
// derives full-game projections, momentum and reliability labels, and team totals.
// Everything here is pure; callers own the state.
package projection

import (
	"errors"
	"fmt"
)

// RegulationPeriods is the number of quarters before overtime.
const RegulationPeriods = 4

// Clock describes period lengths. Leagues differ (720s/300s for full-length games,
// 300s/180s for short formats), so both values come from configuration.
type Clock struct {
	QuarterSeconds  int
	OvertimeSeconds int
}

// Validate rejects non-positive period lengths.
func (c Clock) Validate() error {
	if c.QuarterSeconds <= 0 {
		return errors.New("quarter length must be positive")
	}
	if c.OvertimeSeconds <= 0 {
		return errors.New("overtime length must be positive")
	}
	return nil
}

// GameSeconds is the regulation length projections are scaled to.
func (c Clock) GameSeconds() int {
	return RegulationPeriods * c.QuarterSeconds
}

// PlayedSeconds converts a period and the time remaining in it into seconds played.
// The result can be <= 0 for a clock that has not started or malformed input; callers
// treat that as not yet samplable.
func (c Clock) PlayedSeconds(quarter, minute, second int) int {
	remaining := minute*60 + second
	if quarter <= RegulationPeriods {
		return (quarter-1)*c.QuarterSeconds + (c.QuarterSeconds - remaining)
	}
	completedOT := (quarter - RegulationPeriods - 1) * c.OvertimeSeconds
	return RegulationPeriods*c.QuarterSeconds + completedOT + (c.OvertimeSeconds - remaining)
}

// PeriodLabel renders Q1..Q4 and OT1.. for overtime.
func PeriodLabel(quarter int) string {
	if quarter <= RegulationPeriods {
		return fmt.Sprintf("Q%d", quarter)
	}
	return fmt.Sprintf("OT%d", quarter-RegulationPeriods)
}
