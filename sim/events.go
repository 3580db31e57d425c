// Concrete simulation events. Each trigger mutates global state directly
// and may schedule successor events; events reference entities by id and
// resolve them through the simulator registries.

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
	"github.com/ridehail-sim/ridehail-sim/sim/stats"
	"github.com/ridehail-sim/ridehail-sim/sim/workload"
)

// === NewPassengerEvent ===

// NewPassengerEvent spawns a request at its arrival time.
type NewPassengerEvent struct {
	header
	Record workload.PassengerRecord
}

func NewNewPassengerEvent(t int64, rec workload.PassengerRecord) *NewPassengerEvent {
	return &NewPassengerEvent{header: header{time: t, priority: PriorityNewPassenger}, Record: rec}
}

func (e *NewPassengerEvent) Execute(s *Simulator) {
	rec := e.Record
	origin, err := s.locationFromRecord(rec.OriginSource, rec.OriginTarget, rec.OriginDist)
	if err != nil {
		logrus.Panicf("passenger at t=%d: %v", e.time, err)
	}
	dest, err := s.locationFromRecord(rec.DestSource, rec.DestTarget, rec.DestDist)
	if err != nil {
		logrus.Panicf("passenger at t=%d: %v", e.time, err)
	}

	p := &Passenger{
		ID:           s.nextPassengerID,
		RequestTime:  e.time,
		Origin:       origin,
		Destination:  dest,
		TripDistance: rec.TripDistance,
		TripDuration: rec.TripDuration,
		Patience:     rec.Patience,
		ExpiredTime:  e.time + rec.Patience,
		ValueOfTime:  rec.ValueOfTime,
		Utility: UtilityParams{
			Scale:      rec.Scale,
			ConstHV:    rec.ConstHV,
			ConstAV:    rec.ConstAV,
			ConstOut:   rec.ConstOut,
			FareCoefHV: rec.FareCoefHV,
			FareCoefAV: rec.FareCoefAV,
		},
	}
	s.nextPassengerID++

	// Nearest-vehicle probe runs at construction time only.
	etaHV := s.nearestVacantEta(KindHV, p.Origin)
	etaAV := s.nearestVacantEta(KindAV, p.Origin)
	p.ChooseMode(s.Market, etaHV, etaAV, s.Config.Economics.OutsideScale, s.Rng.ForSubsystem(SubsystemChoice))

	if p.ChosenMode != ModeOutside {
		k := kindOfMode(p.ChosenMode)
		s.waitingSet(k)[p.ID] = p
		s.Market.Kind(k).Waiting = len(s.waitingSet(k))
	}

	s.Stats.Passengers = append(s.Stats.Passengers, stats.PassengerRecord{
		PassengerID:  p.ID,
		RequestTime:  p.RequestTime,
		TripDistance: p.TripDistance,
		TripDuration: p.TripDuration,
		ValueOfTime:  p.ValueOfTime,
		Fare:         p.Fare,
		PreferHV:     p.PreferHVString(),
	})
}

// === UpdatePhiEvent ===

// UpdatePhiEvent refreshes the per-kind ETA-ratio corrections from the
// current queue sizes. One is scheduled per distinct request time.
type UpdatePhiEvent struct {
	header
}

func NewUpdatePhiEvent(t int64) *UpdatePhiEvent {
	return &UpdatePhiEvent{header: header{time: t, priority: PriorityUpdatePhi}}
}

func (e *UpdatePhiEvent) Execute(s *Simulator) {
	s.Market.HV.Phi = ComputePhi(len(s.waitingHV), len(s.vacantHV))
	s.Market.AV.Phi = ComputePhi(len(s.waitingAV), len(s.vacantAV))
}

// === NewHVEvent ===

// NewHVEvent is a prospective human driver's market entry at a sampled
// shift-start time.
type NewHVEvent struct {
	header
	Profile HVProfile
}

func NewNewHVEvent(t int64, profile HVProfile) *NewHVEvent {
	return &NewHVEvent{header: header{time: t, priority: PriorityVehicleLifecycle}, Profile: profile}
}

func (e *NewHVEvent) Execute(s *Simulator) {
	decision := DecideEntry(e.Profile, s.Market.HVWage, s.Market.HV.Occupancy, s.Rng.ForSubsystem(SubsystemExit))
	switch decision {
	case EntryDefer:
		if e.time+entryDeferDelay <= s.LastPassengerTime {
			s.Schedule(NewNewHVEvent(e.time+entryDeferDelay, e.Profile))
		}
		return
	case EntryAbandon:
		logrus.Debugf("[t=%07d] prospective HV driver abandoned entry", e.time)
		return
	}

	v := &Vehicle{
		ID:        s.nextVehicleID,
		Kind:      KindHV,
		Time:      e.time,
		Location:  s.Network.RandomLocation(s.Rng.ForSubsystem(SubsystemFleet)),
		EntryTime: e.time,
		HV:        e.Profile,
	}
	s.nextVehicleID++
	s.vehicles[v.ID] = v
	s.Market.HV.Total++
	s.addVacant(v)

	s.Stats.Vehicles = append(s.Stats.Vehicles, vehicleRecord(v, e.time, true))
}

// === ActivateAVsEvent ===

// ActivateAVsEvent moves up to Size inactive AVs into the vacant set,
// clamping to the available pool.
type ActivateAVsEvent struct {
	header
	Size int
}

func NewActivateAVsEvent(t int64, size int) *ActivateAVsEvent {
	return &ActivateAVsEvent{header: header{time: t, priority: PriorityVehicleLifecycle}, Size: size}
}

func (e *ActivateAVsEvent) Execute(s *Simulator) {
	pool := sortedVehicles(s.inactiveAV)
	n := min(e.Size, len(pool))
	if n < e.Size {
		logrus.Warnf("[t=%07d] activation clamped from %d to %d by the inactive pool", e.time, e.Size, n)
	}
	if n == 0 {
		return
	}

	rng := s.Rng.ForSubsystem(SubsystemActivation)
	for _, idx := range rng.Perm(len(pool))[:n] {
		v := pool[idx]
		delete(s.inactiveAV, v.ID)
		v.Time = e.time
		s.Market.AV.Total++
		s.addVacant(v)
		s.Stats.Vehicles = append(s.Stats.Vehicles, vehicleRecord(v, e.time, true))
	}
	logrus.Infof("[t=%07d] activated %d AVs", e.time, n)
}

// === DeactivateAVsEvent ===

// DeactivateAVsEvent routes up to Size vacant AVs to their nearest depots.
// A residual beyond the current vacant pool re-schedules at t+1, bounded by
// the drain boundary.
type DeactivateAVsEvent struct {
	header
	Size int
}

func NewDeactivateAVsEvent(t int64, size int) *DeactivateAVsEvent {
	return &DeactivateAVsEvent{header: header{time: t, priority: PriorityVehicleLifecycle}, Size: size}
}

func (e *DeactivateAVsEvent) Execute(s *Simulator) {
	pool := sortedVehicles(s.vacantAV)
	n := min(e.Size, len(pool))

	rng := s.Rng.ForSubsystem(SubsystemActivation)
	if n > 0 {
		for _, idx := range rng.Perm(len(pool))[:n] {
			s.deactivateAV(pool[idx], e.time)
		}
		logrus.Infof("[t=%07d] deactivated %d AVs", e.time, n)
	}

	if residual := e.Size - n; residual > 0 && e.time+1 <= s.LastPassengerTime {
		logrus.Warnf("[t=%07d] deactivation short by %d, re-scheduling residual", e.time, residual)
		s.Schedule(NewDeactivateAVsEvent(e.time+1, residual))
	}
}

// === OccupancyDeltaEvent ===

// OccupancyDeltaEvent applies a +-1 occupancy transition at a pickup or
// drop-off timestamp.
type OccupancyDeltaEvent struct {
	header
	Kind  VehicleKind
	Delta int
}

func NewOccupancyDeltaEvent(t int64, kind VehicleKind, delta int) *OccupancyDeltaEvent {
	return &OccupancyDeltaEvent{header: header{time: t, priority: PriorityVehicleLifecycle}, Kind: kind, Delta: delta}
}

func (e *OccupancyDeltaEvent) Execute(s *Simulator) {
	ks := s.Market.Kind(e.Kind)
	ks.Occupied += e.Delta
	// The vehicle remains engaged either side of the transition; the
	// assigned counter absorbs the complement.
	ks.Assigned -= e.Delta
}

// === TripCompletionEvent ===

// TripCompletionEvent fires at delivery time: the vehicle drops off its
// rider, records utilisation, and either re-enters vacancy or leaves the
// market.
type TripCompletionEvent struct {
	header
	VehicleID int
}

func NewTripCompletionEvent(t int64, vehicleID int) *TripCompletionEvent {
	return &TripCompletionEvent{header: header{time: t, priority: PriorityTripCompletion}, VehicleID: vehicleID}
}

func (e *TripCompletionEvent) Execute(s *Simulator) {
	v := s.Vehicle(e.VehicleID)
	ks := s.Market.Kind(v.Kind)

	s.Stats.Utilisations = append(s.Stats.Utilisations, stats.UtilisationRecord{
		Time:            e.time,
		VehicleID:       v.ID,
		TripUtilisation: v.TripUtilisation(e.time),
	})
	ks.RecordUtilisation(v.TripUtilisation(e.time))

	// The occupancy delta at this timestamp has already fired (priority 0
	// precedes priority 1), leaving the vehicle counted as assigned.
	ks.Assigned--
	s.addVacant(v)

	if v.Kind == KindHV {
		force := s.draining
		if v.DecideExit(e.time, force, *s.Config.MaximumWorkDuration, s.Market.HVWage, ks.Occupancy,
			s.Rng.ForSubsystem(SubsystemExit)) {
			s.exitHV(v, e.time)
		}
		return
	}
	if s.draining {
		s.deactivateAV(v, e.time)
	}
}

// === UpdateStatesEvent ===

// UpdateStatesEvent recomputes the per-kind market counters every second.
type UpdateStatesEvent struct {
	header
}

func NewUpdateStatesEvent(t int64) *UpdateStatesEvent {
	return &UpdateStatesEvent{header: header{time: t, priority: PriorityUpdateStates}}
}

func (e *UpdateStatesEvent) Execute(s *Simulator) {
	for _, k := range []VehicleKind{KindHV, KindAV} {
		ks := s.Market.Kind(k)
		ks.Waiting = len(s.waitingSet(k))
		ks.Vacant = len(s.vacantSet(k))
		ks.Assigned = ks.Total - ks.Vacant - ks.Occupied

		if ks.Total > 0 && e.time > warmupSeconds {
			ks.Occupancy = float64(ks.Occupied) / float64(ks.Total)
		}
	}
}

// === AssignEvent ===

// AssignEvent is the periodic batch matching tick: vacant HVs reconsider
// exiting, expired requests are removed, and both cohorts run their
// bipartite assignment.
type AssignEvent struct {
	header
}

func NewAssignEvent(t int64) *AssignEvent {
	return &AssignEvent{header: header{time: t, priority: PriorityAssign}}
}

func (e *AssignEvent) Execute(s *Simulator) {
	if e.time%3600 == 0 {
		logrus.Infof("[t=%07d] hour %d: HV fleet=%d AV fleet=%d HV trips=%d AV trips=%d",
			e.time, e.time/3600, s.Market.HV.Total, s.Market.AV.Total, s.Market.HV.Trips, s.Market.AV.Trips)
	}

	// Vacant HVs reconsider staying in the market at every tick.
	for _, v := range sortedVehicles(s.vacantHV) {
		v.Time = e.time
		if v.DecideExit(e.time, false, *s.Config.MaximumWorkDuration, s.Market.HVWage, s.Market.HV.Occupancy,
			s.Rng.ForSubsystem(SubsystemExit)) {
			s.exitHV(v, e.time)
		}
	}
	for _, v := range sortedVehicles(s.vacantAV) {
		v.Time = e.time
	}

	// Remove expired requests before matching.
	for _, set := range []map[int]*Passenger{s.waitingHV, s.waitingAV} {
		for _, p := range sortedPassengers(set) {
			if p.Expired(e.time) {
				s.expirePassenger(p, e.time)
			}
		}
	}

	for _, m := range s.matchSide(s.vacantHV, s.waitingHV) {
		s.executeMatch(e.time, m)
	}
	for _, m := range s.matchSide(s.vacantAV, s.waitingAV) {
		s.executeMatch(e.time, m)
	}

	s.Market.HV.Waiting = len(s.waitingHV)
	s.Market.AV.Waiting = len(s.waitingAV)
	s.Market.HV.Vacant = len(s.vacantHV)
	s.Market.AV.Vacant = len(s.vacantAV)
}

// === OverwriteControlsEvent ===

// OverwriteControlsEvent writes controller outputs into the market
// variables. Nil fields leave the current value untouched.
type OverwriteControlsEvent struct {
	header
	AVFare   *float64
	HVFare   *float64
	AVChange *int
}

func NewOverwriteControlsEvent(t int64, avFare, hvFare *float64, avChange *int) *OverwriteControlsEvent {
	return &OverwriteControlsEvent{
		header:   header{time: t, priority: PriorityUpdateStates},
		AVFare:   avFare,
		HVFare:   hvFare,
		AVChange: avChange,
	}
}

func (e *OverwriteControlsEvent) Execute(s *Simulator) {
	if e.AVFare != nil {
		s.Market.AV.UnitFare = *e.AVFare
	}
	if e.HVFare != nil {
		s.Market.HV.UnitFare = *e.HVFare
	}
	if e.AVChange != nil {
		s.Market.AVChange = *e.AVChange
		s.applyFleetChange(e.time, *e.AVChange)
	}
}

// applyFleetChange turns a pending AV fleet delta into activation or
// deactivation events at the same timestamp.
func (s *Simulator) applyFleetChange(t int64, change int) {
	switch {
	case change > 0:
		s.Schedule(NewActivateAVsEvent(t, change))
	case change < 0:
		s.Schedule(NewDeactivateAVsEvent(t, -change))
	}
}

// locationFromRecord builds a Location from a record's (source, target,
// offset) triple; a target equal to the source denotes an intersection.
func (s *Simulator) locationFromRecord(source, target int64, dist float64) (network.Location, error) {
	if source == target || dist == 0 {
		return network.Intersection(source), nil
	}
	edge, ok := s.Network.Edge(source, target)
	if !ok {
		return network.Location{}, fmt.Errorf("no edge %d->%d in the road network", source, target)
	}
	return network.OnEdge(source, target, dist, edge)
}
