// MPCEvent bridges the live market into the receding-horizon controller:
// it snapshots the state, assembles the controller inputs, solves, and
// applies the first control interval back onto the market.

package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/ridehail-sim/ridehail-sim/sim/mpc"
	"github.com/ridehail-sim/ridehail-sim/sim/stats"
	"github.com/ridehail-sim/ridehail-sim/sim/workload"
)

// MPCEvent is one controller invocation.
type MPCEvent struct {
	header
}

func NewMPCEvent(t int64) *MPCEvent {
	return &MPCEvent{header: header{time: t, priority: PriorityMPC}}
}

func (e *MPCEvent) Execute(s *Simulator) {
	in := s.buildMPCInputs(e.time)

	res, err := mpc.Solve(in)
	if err != nil {
		logrus.Warnf("[t=%07d] MPC solve failed: %v; retaining current controls", e.time, err)
		s.Market.AVChange = 0
		s.Stats.Predictions = append(s.Stats.Predictions, stats.PredictionRecord{Time: e.time, Failed: true})
		s.Stats.Controls = append(s.Stats.Controls, stats.ControlRecord{
			Time:   e.time,
			Failed: true,
			HVFare: s.Market.HV.UnitFare,
			AVFare: s.Market.AV.UnitFare,
		})
		return
	}

	// Apply the first interval of the plan; the rest is re-optimised at the
	// next invocation.
	s.Market.HV.UnitFare = res.Controls.HVFare[0]
	s.Market.AV.UnitFare = res.Controls.AVFare[0]
	delta := int(res.Controls.AVDelta[0])
	s.Market.AVChange = delta
	s.applyFleetChange(e.time, delta)

	logrus.Infof("[t=%07d] MPC applied: HV fare %.2f, AV fare %.2f, AV delta %+d (objective %.1f)",
		e.time, res.Controls.HVFare[0], res.Controls.AVFare[0], delta, res.Objective)

	s.Stats.Predictions = append(s.Stats.Predictions, predictionRecord(e.time, res.Trajectory))
	s.Stats.Controls = append(s.Stats.Controls, stats.ControlRecord{
		Time:         e.time,
		HVFare:       res.Controls.HVFare[0],
		AVFare:       res.Controls.AVFare[0],
		AVFleetDelta: res.Controls.AVDelta[0],
		Objective:    res.Objective,
	})
}

// buildMPCInputs snapshots everything one controller solve needs.
func (s *Simulator) buildMPCInputs(now int64) mpc.Inputs {
	cfg := s.Config
	eco := cfg.Economics
	tauK := cfg.MPCPredictionStep
	n := cfg.MPCSteps

	in := mpc.Inputs{
		Now:  now,
		N:    n,
		Nc:   cfg.MPCControlSteps,
		TauC: cfg.MPCControlInterval,
		TauK: tauK,

		Demand:   s.demandSeries.Window(now, n),
		HVSupply: s.supplySeries.Window(now, n),

		Choice: mpc.ChoiceParams{
			Scale:        eco.ChoiceScale,
			ConstHV:      eco.ConstHV,
			ConstAV:      eco.ConstAV,
			ConstOut:     eco.ConstOutside,
			FareCoefHV:   eco.FareCoefHV,
			FareCoefAV:   eco.FareCoefAV,
			ValueOfTime:  eco.VoTMean,
			OutsideScale: eco.OutsideScale,
		},

		HVWage:        s.Market.HVWage,
		Beta:          eco.ExpirationBeta,
		HalfExitRatio: eco.HalfExitRatio,
		OpCostAV:      eco.AVOperatingCost,
		VacCostAV:     eco.AVVacantCost,

		ExpirationPenalty: eco.ExpirationPenalty,
		OutsidePenalty:    eco.OutsidePenalty,

		FareMin:       eco.FareMin,
		FareMax:       eco.FareMax,
		MaxAVIncrease: float64(len(s.inactiveAV)),
		MaxAVDecrease: float64(len(s.vacantAV)),

		PrevHVFare: s.Market.HV.UnitFare,
		PrevAVFare: s.Market.AV.UnitFare,
	}

	rng := s.Rng.ForSubsystem(SubsystemMPC)
	for _, k := range []VehicleKind{KindHV, KindAV} {
		ks := s.Market.Kind(k)
		ki := int(k)

		in.Initial[ki] = mpc.State{
			Waiting:  float64(ks.Waiting),
			Vacant:   float64(ks.Vacant),
			Assigned: float64(ks.Assigned),
			Occupied: float64(ks.Occupied),
		}
		in.BaseFare[ki] = ks.BaseFare
		in.AvgPickup[ki] = ks.AvgPickupDuration
		in.AvgTrip[ki] = ks.AvgTripDuration

		in.PendingPickups[ki] = binCounter(s.Market.PickupCounter[ki], now, tauK, n)
		in.PendingDropoffs[ki] = binCounter(s.Market.DropoffCounter[ki], now, tauK, n)

		pickups := workload.NewDurationSampler(s.Market.PickupDurations[ki], int64(ks.AvgPickupDuration))
		dropoffs := workload.NewDurationSampler(s.Market.DropoffDurations[ki], int64(ks.AvgTripDuration))
		in.PickupDraws[ki] = pickups.SampleN(rng, n)
		in.DropoffDraws[ki] = dropoffs.SampleN(rng, n)
	}

	return in
}

// binCounter prunes a per-second event counter below now and folds the
// in-horizon remainder into per-step bins.
func binCounter(counter map[int64]int, now, tauK int64, n int) []float64 {
	bins := make([]float64, n)
	horizon := now + int64(n)*tauK
	for t, c := range counter {
		if t < now {
			delete(counter, t)
			continue
		}
		if t >= horizon {
			continue
		}
		bins[(t-now)/tauK] += float64(c)
	}
	return bins
}

func predictionRecord(t int64, traj mpc.Trajectory) stats.PredictionRecord {
	return stats.PredictionRecord{
		Time:       t,
		HVWaiting:  traj.StateSeries(mpc.KindHV, func(st mpc.State) float64 { return st.Waiting }),
		HVVacant:   traj.StateSeries(mpc.KindHV, func(st mpc.State) float64 { return st.Vacant }),
		HVAssigned: traj.StateSeries(mpc.KindHV, func(st mpc.State) float64 { return st.Assigned }),
		HVOccupied: traj.StateSeries(mpc.KindHV, func(st mpc.State) float64 { return st.Occupied }),
		AVWaiting:  traj.StateSeries(mpc.KindAV, func(st mpc.State) float64 { return st.Waiting }),
		AVVacant:   traj.StateSeries(mpc.KindAV, func(st mpc.State) float64 { return st.Vacant }),
		AVAssigned: traj.StateSeries(mpc.KindAV, func(st mpc.State) float64 { return st.Assigned }),
		AVOccupied: traj.StateSeries(mpc.KindAV, func(st mpc.State) float64 { return st.Occupied }),
	}
}
