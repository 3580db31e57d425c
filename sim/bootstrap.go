// Initial event population: demand from the validated passenger records,
// the AV fleet at its depots, HV shift starts from the kernel-density
// sampler, and the recurring system ticks.

package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
	"github.com/ridehail-sim/ridehail-sim/sim/workload"
)

// LoadDemand schedules one NewPassenger event per record plus a single
// phi refresh per distinct request time, sets the drain boundary, and
// bins the demand series for the controller. The match horizon stretches
// past the last request to cover its patience, rounded up to a tick, so
// late requests expire at a match tick rather than at drain entry.
func (s *Simulator) LoadDemand(records []workload.PassengerRecord) {
	lastPhiTime := int64(-1)
	for _, rec := range records {
		s.Schedule(NewNewPassengerEvent(rec.Time, rec))
		if rec.Time != lastPhiTime {
			s.Schedule(NewUpdatePhiEvent(rec.Time))
			lastPhiTime = rec.Time
		}
	}
	s.LastPassengerTime = workload.LastRequestTime(records)

	s.MatchHorizon = s.LastPassengerTime
	for _, rec := range records {
		if deadline := rec.Time + rec.Patience; deadline > s.MatchHorizon {
			s.MatchHorizon = deadline
		}
	}
	if rem := s.MatchHorizon % s.Config.MatchInterval; rem != 0 {
		s.MatchHorizon += s.Config.MatchInterval - rem
	}

	s.demandSeries = workload.BinDemand(records, s.Config.MPCPredictionStep)
	logrus.Infof("loaded %d passenger records, last request at t=%d", len(records), s.LastPassengerTime)
}

// SeedFleet instantiates the AV fleet inactive at its depots, schedules
// the initial activation, and schedules the HV shift-start events. Call
// after LoadDemand so shift starts can be bounded by the drain boundary.
func (s *Simulator) SeedFleet() {
	s.seedAVs()
	s.seedHVs()
}

func (s *Simulator) seedAVs() {
	depots := s.Network.Depots()
	if s.Config.AVFleetSize > 0 && len(depots) == 0 {
		logrus.Panic("AV fleet configured but the network has no depots")
	}

	rng := s.Rng.ForSubsystem(SubsystemFleet)
	for i := 0; i < s.Config.AVFleetSize; i++ {
		depot := depots[rng.Intn(len(depots))]
		v := &Vehicle{
			ID:            s.nextVehicleID,
			Kind:          KindAV,
			State:         StateInactive,
			Location:      network.Intersection(depot),
			StateOfCharge: s.Config.AVBatteryCapacity,
			AV:            AVProfile{HomeDepot: depot},
		}
		s.nextVehicleID++
		s.vehicles[v.ID] = v
		s.inactiveAV[v.ID] = v
	}

	if s.Config.AVInitialSize > 0 {
		s.Schedule(NewActivateAVsEvent(0, s.Config.AVInitialSize))
	}
	logrus.Infof("seeded %d AVs across %d depots (%d initially active)",
		s.Config.AVFleetSize, len(depots), s.Config.AVInitialSize)
}

func (s *Simulator) seedHVs() {
	rng := s.Rng.ForSubsystem(SubsystemFleet)
	sampler := workload.NewShiftStartSampler(workload.DefaultShiftKernels(), 3600, s.LastPassengerTime)
	starts := sampler.SampleN(rng, s.Config.HVFleetSize)

	neoCount := int(s.Config.Neoclassical * float64(s.Config.HVFleetSize))
	e := s.Config.Economics
	for i, t := range starts {
		profile := HVProfile{
			Neoclassical: i < neoCount,
			HourlyCost:   truncNormDraw(rng, e.HourlyCostMean, e.HourlyCostMean/10),
			TargetIncome: truncNormDraw(rng, e.TargetIncomeMean, e.TargetIncomeMean/10),
		}
		s.Schedule(NewNewHVEvent(t, profile))
	}

	s.supplySeries = workload.BinSupply(starts, s.Config.MPCPredictionStep)
	logrus.Infof("scheduled %d HV shift starts (%d neoclassical)", len(starts), neoCount)
}

// truncNormDraw samples N(mean, stdDev) truncated to positive values by
// rejection.
func truncNormDraw(rng interface{ NormFloat64() float64 }, mean, stdDev float64) float64 {
	for {
		x := rng.NormFloat64()*stdDev + mean
		if x > 0 {
			return x
		}
	}
}

// ScheduleTicks populates the recurring system events: batch matching
// every match interval out to the match horizon, counter refresh every
// second, and the controller within its configured window.
func (s *Simulator) ScheduleTicks() {
	for t := int64(0); t <= s.drainBoundary(); t += s.Config.MatchInterval {
		s.Schedule(NewAssignEvent(t))
	}
	for t := int64(0); t <= s.drainBoundary(); t++ {
		s.Schedule(NewUpdateStatesEvent(t))
	}

	if s.Config.MPCDisabled {
		return
	}
	start := int64(s.Config.MPCStartHour) * 3600
	end := int64(s.Config.MPCEndHour) * 3600
	for t := start; t < end && t <= s.LastPassengerTime; t += s.Config.MPCControlInterval {
		s.Schedule(NewMPCEvent(t))
	}
}
