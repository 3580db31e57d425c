// Passenger entity: a request with utility-based mode choice, a patience
// deadline, and a waiting state keyed by the chosen cohort.

package sim

import (
	"math"
	"math/rand"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
)

// Mode is the passenger's chosen travel option.
type Mode string

const (
	ModeHV      Mode = "HV"
	ModeAV      Mode = "AV"
	ModeOutside Mode = "outside"
)

// UtilityParams are one passenger's mode-choice parameters, drawn once at
// input-validation time.
type UtilityParams struct {
	Scale      float64
	ConstHV    float64
	ConstAV    float64
	ConstOut   float64
	FareCoefHV float64
	FareCoefAV float64
}

// Passenger is one request. Once removed from its waiting set (by match or
// expiration) it is never re-inserted.
type Passenger struct {
	ID          int
	RequestTime int64
	Origin      network.Location
	Destination network.Location

	TripDistance float64
	TripDuration int64
	Patience     int64
	ExpiredTime  int64
	ValueOfTime  float64

	Utility UtilityParams

	ChosenMode Mode
	Fare       float64
}

// TripFare computes the fare charged for a trip of the given duration:
// flag fare plus the unit fare applied to a logarithmic duration kernel.
func TripFare(baseFare, unitFare float64, tripDuration int64) float64 {
	d := float64(tripDuration)
	if d < 1 {
		d = 1
	}
	return baseFare + unitFare/3600.0*(120.0*math.Log(d))
}

// generalisedCost scores one in-market option: fare plus the expected wait
// (phi-corrected nearest-vehicle ETA) weighted by the value of time.
func (p *Passenger) generalisedCost(constant, fareCoef, fare, phi float64, eta int64) float64 {
	return p.Utility.Scale * (constant + fareCoef*fare + p.ValueOfTime*phi*float64(eta))
}

// ChooseMode draws the passenger's mode from the multinomial logit over the
// generalised costs of HV, AV and the outside option. The nearest-vehicle
// ETAs are probed at construction time only; defaultEta caps them and
// stands in when a side has no vacant vehicle.
func (p *Passenger) ChooseMode(m *Market, etaHV, etaAV int64, outsideScale float64, rng *rand.Rand) {
	fareHV := TripFare(m.HV.BaseFare, m.HV.UnitFare, p.TripDuration)
	fareAV := TripFare(m.AV.BaseFare, m.AV.UnitFare, p.TripDuration)

	gcHV := p.generalisedCost(p.Utility.ConstHV, p.Utility.FareCoefHV, fareHV, m.HV.Phi, etaHV)
	gcAV := p.generalisedCost(p.Utility.ConstAV, p.Utility.FareCoefAV, fareAV, m.AV.Phi, etaAV)
	gcOut := p.Utility.Scale * p.Utility.ConstOut * outsideScale

	eHV := math.Exp(-gcHV)
	eAV := math.Exp(-gcAV)
	eOut := math.Exp(-gcOut)
	total := eHV + eAV + eOut

	u := rng.Float64() * total
	switch {
	case u < eHV:
		p.ChosenMode = ModeHV
		p.Fare = fareHV
	case u < eHV+eAV:
		p.ChosenMode = ModeAV
		p.Fare = fareAV
	default:
		p.ChosenMode = ModeOutside
		p.Fare = 0
	}
}

// Expired reports whether the request has outlived its patience at time t.
func (p *Passenger) Expired(t int64) bool {
	return t >= p.ExpiredTime
}

// PreferHVString renders the tri-state mode for the passenger output
// stream: "true"/"false" for in-market choices, "null" for outside.
func (p *Passenger) PreferHVString() string {
	switch p.ChosenMode {
	case ModeHV:
		return "true"
	case ModeAV:
		return "false"
	default:
		return "null"
	}
}
