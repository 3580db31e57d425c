// Receding-horizon prediction model for the platform controller. The model
// rolls the per-kind market state (waiting, vacant, assigned, occupied)
// forward over N prediction steps under candidate fare and fleet-size
// controls, closing the open loop with known in-flight corrections and
// synthetic duration-routed corrections.

package mpc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kind indexes the two fleet cohorts inside the model.
const (
	KindHV = 0
	KindAV = 1
)

// State is one kind's market state at a prediction step.
type State struct {
	Waiting  float64 // pw
	Vacant   float64 // nv
	Assigned float64 // na
	Occupied float64 // no
}

// ChoiceParams are the representative utility parameters the controller
// uses for the in-horizon mode-choice logit.
type ChoiceParams struct {
	Scale        float64
	ConstHV      float64
	ConstAV      float64
	ConstOut     float64
	FareCoefHV   float64
	FareCoefAV   float64
	ValueOfTime  float64
	OutsideScale float64
}

// Inputs carries everything one MPC invocation needs: live simulator state,
// exogenous series, correction parameters, and economic constants.
type Inputs struct {
	Now int64

	N    int   // prediction steps
	Nc   int   // active control intervals (remaining steps share the last control)
	TauC int64 // control interval, seconds
	TauK int64 // prediction step, seconds (TauC must be a multiple)

	Initial [2]State

	// Pending corrections: in-flight pickups/dropoffs known to land within
	// the horizon, per kind per prediction step.
	PendingPickups  [2][]float64
	PendingDropoffs [2][]float64

	// Fixed per-invocation duration draws routing current-interval matches
	// to future steps, one pickup and one dropoff draw per (kind, step).
	PickupDraws  [2][]int64
	DropoffDraws [2][]int64

	Demand   []float64 // exogenous requests per step
	HVSupply []float64 // exogenous human-driver entries per step

	AvgPickup [2]float64 // running-average pickup duration ta, seconds
	AvgTrip   [2]float64 // running-average trip duration to, seconds

	Choice ChoiceParams

	BaseFare      [2]float64 // flag fares, $
	HVWage        float64    // $/hr
	Beta          float64    // expiration rate coefficient
	HalfExitRatio float64    // HV exit discount applied to dropoff feedback
	OpCostAV      float64    // $/s per engaged AV
	VacCostAV     float64    // $/s per vacant AV

	ExpirationPenalty float64
	OutsidePenalty    float64

	FareMin, FareMax float64
	MaxAVIncrease    float64 // current inactive AV capacity
	MaxAVDecrease    float64 // current vacant AV count

	PrevHVFare, PrevAVFare float64
}

// Controls holds per-active-interval decision values.
type Controls struct {
	HVFare  []float64 // $/hr, len Nc
	AVFare  []float64 // $/hr, len Nc
	AVDelta []float64 // fleet change per control interval, len Nc
}

// Trajectory is the predicted state sequence per kind per step.
type Trajectory struct {
	States [2][]State
}

// numVars is the decision-vector length: two fare series plus one fleet
// delta series over the active intervals.
func (in *Inputs) numVars() int {
	return 3 * in.Nc
}

// decode splits a flat decision vector into Controls.
func (in *Inputs) decode(x []float64) Controls {
	return Controls{
		HVFare:  append([]float64(nil), x[:in.Nc]...),
		AVFare:  append([]float64(nil), x[in.Nc:2*in.Nc]...),
		AVDelta: append([]float64(nil), x[2*in.Nc:3*in.Nc]...),
	}
}

// initialGuess seeds the solver at the previous fares with no fleet change.
func (in *Inputs) initialGuess() []float64 {
	x := make([]float64, in.numVars())
	for i := 0; i < in.Nc; i++ {
		x[i] = in.PrevHVFare
		x[in.Nc+i] = in.PrevAVFare
	}
	return x
}

// boundsPenalty returns a quadratic penalty for decision values outside
// their boxes. The rollout itself uses clamped values, so the penalty only
// steers the solver back inside.
func (in *Inputs) boundsPenalty(x []float64) float64 {
	const weight = 1e4
	p := 0.0
	for i := 0; i < 2*in.Nc; i++ {
		if x[i] < in.FareMin {
			p += (in.FareMin - x[i]) * (in.FareMin - x[i])
		}
		if x[i] > in.FareMax {
			p += (x[i] - in.FareMax) * (x[i] - in.FareMax)
		}
	}
	for i := 2 * in.Nc; i < 3*in.Nc; i++ {
		if x[i] > in.MaxAVIncrease {
			p += (x[i] - in.MaxAVIncrease) * (x[i] - in.MaxAVIncrease)
		}
		if x[i] < -in.MaxAVDecrease {
			p += (-in.MaxAVDecrease - x[i]) * (-in.MaxAVDecrease - x[i])
		}
	}
	return weight * p
}

// clampControls boxes each decision value into its feasible interval.
func (in *Inputs) clampControls(c Controls) Controls {
	for i := 0; i < in.Nc; i++ {
		c.HVFare[i] = clamp(c.HVFare[i], in.FareMin, in.FareMax)
		c.AVFare[i] = clamp(c.AVFare[i], in.FareMin, in.FareMax)
		c.AVDelta[i] = clamp(c.AVDelta[i], -in.MaxAVDecrease, in.MaxAVIncrease)
	}
	return c
}

// tripFare converts a unit fare in $/hr into a trip fare using the
// logarithmic duration kernel shared with the simulator's mode choice.
func tripFare(base, unitFare, tripDuration float64) float64 {
	if tripDuration < 1 {
		tripDuration = 1
	}
	return base + unitFare/3600.0*(120.0*math.Log(tripDuration))
}

// choiceProbs evaluates the in-horizon mode-choice logit for the given
// fares, with running-average pickup times standing in for the live
// nearest-vehicle probe.
func (in *Inputs) choiceProbs(hvFare, avFare float64) (uHV, uAV float64) {
	fareHV := tripFare(in.BaseFare[KindHV], hvFare, in.AvgTrip[KindHV])
	fareAV := tripFare(in.BaseFare[KindAV], avFare, in.AvgTrip[KindAV])

	gcHV := in.Choice.Scale * (in.Choice.ConstHV + in.Choice.FareCoefHV*fareHV +
		in.Choice.ValueOfTime*in.AvgPickup[KindHV])
	gcAV := in.Choice.Scale * (in.Choice.ConstAV + in.Choice.FareCoefAV*fareAV +
		in.Choice.ValueOfTime*in.AvgPickup[KindAV])
	gcOut := in.Choice.Scale * in.Choice.ConstOut * in.Choice.OutsideScale

	eHV := math.Exp(-gcHV)
	eAV := math.Exp(-gcAV)
	eOut := math.Exp(-gcOut)
	total := eHV + eAV + eOut
	return eHV / total, eAV / total
}

// Rollout simulates the horizon under the given controls and returns the
// objective value (profit net of penalties, to be maximised) and the
// predicted trajectory.
func (in *Inputs) Rollout(c Controls) (float64, Trajectory) {
	c = in.clampControls(c)

	stepsPerControl := int(in.TauC / in.TauK)
	tauK := float64(in.TauK)

	// Correction arrays start from the known in-flight schedule; synthetic
	// contributions from in-horizon matches are routed in as steps execute.
	var pickupCorr, dropoffCorr [2][]float64
	for k := 0; k < 2; k++ {
		pickupCorr[k] = make([]float64, in.N)
		dropoffCorr[k] = make([]float64, in.N)
		copy(pickupCorr[k], in.PendingPickups[k])
		copy(dropoffCorr[k], in.PendingDropoffs[k])
	}

	state := in.Initial
	var traj Trajectory
	for k := 0; k < 2; k++ {
		traj.States[k] = make([]State, 0, in.N+1)
		traj.States[k] = append(traj.States[k], state[k])
	}

	objective := 0.0
	for s := 0; s < in.N; s++ {
		active := s / stepsPerControl
		if active >= in.Nc {
			active = in.Nc - 1
		}
		hvFare := c.HVFare[active]
		avFare := c.AVFare[active]

		uHV, uAV := in.choiceProbs(hvFare, avFare)
		demand := in.Demand[s]

		for k := 0; k < 2; k++ {
			st := &state[k]

			match := math.Min(st.Waiting, st.Vacant)
			expiration := in.Beta * tauK / float64(in.TauC) * math.Max(st.Waiting-st.Vacant, 0)

			// Route this step's matches to the steps where their pickup and
			// dropoff are expected to land.
			if match > 0 {
				dp := int(in.PickupDraws[k][s] / in.TauK)
				if s+dp < in.N {
					pickupCorr[k][s+dp] += match
				}
				dd := int((in.PickupDraws[k][s] + in.DropoffDraws[k][s]) / in.TauK)
				if s+dd < in.N {
					dropoffCorr[k][s+dd] += match
				}
			}

			var inflow float64
			var choice float64
			exitDiscount := 1.0
			if k == KindHV {
				inflow = in.HVSupply[s]
				choice = uHV
				exitDiscount = 1.0 - in.HalfExitRatio
			} else {
				choice = uAV
				if s%stepsPerControl == 0 {
					inflow = c.AVDelta[active]
				}
			}

			next := State{
				Waiting:  st.Waiting + demand*choice - match - expiration,
				Vacant:   st.Vacant + inflow - match + exitDiscount*dropoffCorr[k][s],
				Assigned: st.Assigned + match - pickupCorr[k][s],
				Occupied: st.Occupied + pickupCorr[k][s] - dropoffCorr[k][s],
			}
			next.Waiting = math.Max(next.Waiting, 0)
			next.Vacant = math.Max(next.Vacant, 0)
			next.Assigned = math.Max(next.Assigned, 0)
			next.Occupied = math.Max(next.Occupied, 0)

			// Per-step profit contributions. Operational costs accrue on the
			// fleet as it stands entering the step, not the propagated state.
			if k == KindAV {
				objective += match * (avFare*in.AvgTrip[KindAV]/3600.0 + in.BaseFare[KindAV])
				objective -= tauK * (in.OpCostAV*(st.Assigned+st.Occupied) + in.VacCostAV*st.Vacant)
			} else {
				objective += match * ((hvFare-in.HVWage)*in.AvgTrip[KindHV]/3600.0 + in.BaseFare[KindHV])
			}
			objective -= in.ExpirationPenalty * expiration

			state[k] = next
			traj.States[k] = append(traj.States[k], next)
		}

		objective -= in.OutsidePenalty * demand * (1.0 - uHV - uAV)
	}

	return objective, traj
}

// StateSeries extracts one state dimension of a kind's trajectory as a
// flat series for output records.
func (t Trajectory) StateSeries(kind int, pick func(State) float64) []float64 {
	out := make([]float64, len(t.States[kind]))
	for i, st := range t.States[kind] {
		out[i] = pick(st)
	}
	return out
}

// Validate checks structural consistency of the inputs before a solve.
func (in *Inputs) Validate() error {
	if in.N <= 0 || in.Nc <= 0 || in.Nc > in.N {
		return errBadHorizon(in.N, in.Nc)
	}
	if in.TauK <= 0 || in.TauC <= 0 || in.TauC%in.TauK != 0 {
		return errBadIntervals(in.TauC, in.TauK)
	}
	if len(in.Demand) < in.N || len(in.HVSupply) < in.N {
		return errShortSeries(len(in.Demand), len(in.HVSupply), in.N)
	}
	for k := 0; k < 2; k++ {
		if len(in.PickupDraws[k]) < in.N || len(in.DropoffDraws[k]) < in.N {
			return errShortDraws(k, in.N)
		}
	}
	if !floats.HasNaN(in.Demand) && !floats.HasNaN(in.HVSupply) {
		return nil
	}
	return errNaNSeries()
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
