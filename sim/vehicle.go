// Vehicle entity: heterogeneous supply with a kind tag (HV/AV), shared
// motion and matching fields, and kind-specific entry/exit behaviour.

package sim

import (
	"math"
	"math/rand"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
)

// VehicleState is the lifecycle state of a vehicle.
type VehicleState string

const (
	StateInactive VehicleState = "inactive" // AV only: parked at a depot
	StateVacant   VehicleState = "vacant"
	StateAssigned VehicleState = "assigned"
	StateOccupied VehicleState = "occupied"
	StateExited   VehicleState = "exited" // HV terminal state
)

// HVProfile carries the human-driver behavioural parameters.
type HVProfile struct {
	Neoclassical bool
	HourlyCost   float64 // $/hr reservation cost
	TargetIncome float64 // $ daily income target
}

// AVProfile carries the autonomous-vehicle parameters.
type AVProfile struct {
	HomeDepot int64 // depot node the vehicle was instantiated at
}

// Vehicle is one supply unit. Kind-specific rules dispatch on Kind; only
// the matching profile is populated.
type Vehicle struct {
	ID       int
	Kind     VehicleKind
	State    VehicleState
	Time     int64
	Location network.Location

	EntryTime          int64
	LastAssignmentTime int64
	OccupiedSeconds    int64
	Income             float64

	// StateOfCharge is the optional EV energy dimension, consumed linearly
	// with driving time. Charging logic is out of scope.
	StateOfCharge float64

	HV HVProfile
	AV AVProfile
}

// evConsumptionRate is the state-of-charge drain in kWh per driving hour.
const evConsumptionRate = 6.0

// ConsumeCharge drains the optional energy state for the given driving
// duration, floored at zero.
func (v *Vehicle) ConsumeCharge(duration int64) {
	if v.StateOfCharge <= 0 {
		return
	}
	v.StateOfCharge = math.Max(0, v.StateOfCharge-float64(duration)/3600.0*evConsumptionRate)
}

// TripUtilisation is the occupied/elapsed ratio of the trip completed at
// time t. Elapsed runs from the dispatch that started the trip.
func (v *Vehicle) TripUtilisation(t int64) float64 {
	elapsed := t - v.LastAssignmentTime
	if elapsed <= 0 {
		return 1.0
	}
	ratio := float64(v.OccupiedSeconds) / float64(elapsed)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// neoclassicalContinueProbability is the smooth sigmoid continuation rule
// for neoclassical drivers, evaluated on the expected wage gap
// g = wage*occupancy - hourlyCost. It is 0.5 at g=0 and saturates at 0/1
// as |g| grows.
func neoclassicalContinueProbability(wage, occupancy, hourlyCost float64) float64 {
	g := wage*occupancy - hourlyCost
	return 0.5 - g/(2.0*math.Sqrt(1.0+g*g))
}

// DecideExit applies the HV exit rule at a match tick or trip completion.
// It reports true when the driver leaves the market. The caller removes the
// vehicle from its membership set and records the exit.
func (v *Vehicle) DecideExit(t int64, force bool, maxWorkDuration int64, wage, occupancy float64, rng *rand.Rand) bool {
	if v.Kind != KindHV {
		return false
	}
	if force || t-v.EntryTime >= maxWorkDuration {
		return true
	}
	if v.HV.Neoclassical {
		continueP := neoclassicalContinueProbability(wage, occupancy, v.HV.HourlyCost)
		return rng.Float64() >= continueP
	}
	return v.Income >= v.HV.TargetIncome
}

// EntryDecision is the outcome of a prospective HV driver's entry choice.
type EntryDecision int

const (
	EntryEnter EntryDecision = iota
	EntryDefer
	EntryAbandon
)

// entryDeferDelay is how long a hesitant driver waits before reconsidering.
const entryDeferDelay = 300

// DecideEntry applies the HV entry rule. Income-targeting drivers always
// enter. A neoclassical driver facing expected earnings below cost defers
// with a probability that shrinks as the gap widens, otherwise abandons.
func DecideEntry(profile HVProfile, wage, occupancy float64, rng *rand.Rand) EntryDecision {
	if !profile.Neoclassical {
		return EntryEnter
	}
	expected := wage * occupancy
	if expected >= profile.HourlyCost {
		return EntryEnter
	}
	gap := profile.HourlyCost - expected
	deferP := math.Exp(-gap / profile.HourlyCost)
	if rng.Float64() < deferP {
		return EntryDefer
	}
	return EntryAbandon
}
