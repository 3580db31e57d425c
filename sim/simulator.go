// Simulator is the core object that owns simulated time, the event queue,
// the entity registries, and the shared market state. It is a
// single-threaded cooperative discrete-event loop: each trigger runs to
// completion and may enqueue successor events.

package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
	"github.com/ridehail-sim/ridehail-sim/sim/stats"
	"github.com/ridehail-sim/ridehail-sim/sim/workload"
)

// warmupSeconds gates occupancy and running-average updates: the first
// simulated hour is discarded as transient.
const warmupSeconds = 3600

// Simulator holds the whole simulation state.
type Simulator struct {
	Clock  int64
	Config Config

	Network *network.Network
	Market  *Market
	Rng     *PartitionedRNG
	Solver  AssignmentSolver
	Stats   *stats.Collector

	queue *EventHeap
	seq   uint64

	// LastPassengerTime is the arrival time of the final request; entry
	// deferrals, deactivation residuals, and controller ticks stop here.
	LastPassengerTime int64

	// MatchHorizon extends the drain boundary past the last request through
	// the outstanding patience window, rounded up to a match tick, so every
	// waiting request expires at an Assign tick at or after its deadline.
	MatchHorizon int64

	draining bool

	// Entity registries. Events reference vehicles and passengers by id and
	// resolve through these at trigger time.
	vehicles map[int]*Vehicle

	vacantHV   map[int]*Vehicle
	vacantAV   map[int]*Vehicle
	inactiveAV map[int]*Vehicle

	waitingHV map[int]*Passenger
	waitingAV map[int]*Passenger

	nextVehicleID   int
	nextPassengerID int

	// Exogenous series for the controller, binned at the prediction step.
	demandSeries *workload.BinnedSeries
	supplySeries *workload.BinnedSeries
}

// NewSimulator wires a simulator from validated configuration and a loaded
// road network.
func NewSimulator(cfg Config, net *network.Network, seed int64) *Simulator {
	return &Simulator{
		Config:     cfg,
		Network:    net,
		Market:     NewMarket(cfg.Economics),
		Rng:        NewPartitionedRNG(NewSimulationKey(seed)),
		Solver:     HungarianSolver{},
		Stats:      stats.NewCollector(),
		queue:      NewEventHeap(),
		vehicles:   make(map[int]*Vehicle),
		vacantHV:   make(map[int]*Vehicle),
		vacantAV:   make(map[int]*Vehicle),
		inactiveAV: make(map[int]*Vehicle),
		waitingHV:  make(map[int]*Passenger),
		waitingAV:  make(map[int]*Passenger),
	}
}

// Schedule stamps the event with the next insertion sequence and pushes it
// onto the queue.
func (s *Simulator) Schedule(ev Event) {
	ev.(sequenced).setSeq(s.seq)
	s.seq++
	s.queue.Schedule(ev)
}

// QueueLen returns the number of pending events.
func (s *Simulator) QueueLen() int {
	return s.queue.Len()
}

// drainBoundary is the last instant of normal operation: the later of the
// final request and the final match tick covering outstanding patience.
func (s *Simulator) drainBoundary() int64 {
	if s.MatchHorizon > s.LastPassengerTime {
		return s.MatchHorizon
	}
	return s.LastPassengerTime
}

// Run drains the event queue. Events at or before the drain boundary execute
// normally; the first later event switches the loop into the drain phase,
// after which only trip completions (to drop off in-flight riders) and
// occupancy deltas still fire.
func (s *Simulator) Run() {
	for s.queue.Len() > 0 {
		ev := s.queue.PopNext()
		if ev.Time() < s.Clock {
			logrus.Panicf("out-of-order event %T at t=%d dispatched at clock=%d", ev, ev.Time(), s.Clock)
		}

		if !s.draining && ev.Time() > s.drainBoundary() {
			s.Clock = ev.Time()
			s.beginDrain()
		}

		if s.draining {
			switch ev.(type) {
			case *TripCompletionEvent, *OccupancyDeltaEvent:
				s.Clock = ev.Time()
				ev.Execute(s)
			}
			continue
		}

		s.Clock = ev.Time()
		logrus.Debugf("[t=%07d] executing %T", s.Clock, ev)
		ev.Execute(s)
	}
	// No event landed beyond the last passenger: clear the market now.
	if !s.draining {
		s.beginDrain()
	}
	logrus.Infof("[t=%07d] simulation drained", s.Clock)
}

// beginDrain clears the market when the last passenger is in the past:
// still-waiting requests expire, vacant HVs force-exit, and active vacant
// AVs return to their depots. In-flight trips finish through their pending
// TripCompletion events.
func (s *Simulator) beginDrain() {
	s.draining = true
	logrus.Infof("[t=%07d] entering drain phase (%d HV, %d AV waiting; %d vacant HV; %d vacant AV)",
		s.Clock, len(s.waitingHV), len(s.waitingAV), len(s.vacantHV), len(s.vacantAV))

	// A request still waiting here has already outlived its final match
	// tick; the record carries its deadline, never an earlier drain clock.
	for _, p := range sortedPassengers(s.waitingHV) {
		s.expirePassenger(p, max(s.Clock, p.ExpiredTime))
	}
	for _, p := range sortedPassengers(s.waitingAV) {
		s.expirePassenger(p, max(s.Clock, p.ExpiredTime))
	}

	for _, v := range sortedVehicles(s.vacantHV) {
		s.exitHV(v, s.Clock)
	}
	for _, v := range sortedVehicles(s.vacantAV) {
		s.deactivateAV(v, s.Clock)
	}
}

// waitingSet returns the waiting-passenger set of a kind.
func (s *Simulator) waitingSet(k VehicleKind) map[int]*Passenger {
	if k == KindHV {
		return s.waitingHV
	}
	return s.waitingAV
}

// vacantSet returns the vacant-vehicle set of a kind.
func (s *Simulator) vacantSet(k VehicleKind) map[int]*Vehicle {
	if k == KindHV {
		return s.vacantHV
	}
	return s.vacantAV
}

// Vehicle resolves a vehicle id through the registry.
func (s *Simulator) Vehicle(id int) *Vehicle {
	v, ok := s.vehicles[id]
	if !ok {
		logrus.Panicf("unknown vehicle id %d", id)
	}
	return v
}

// addVacant inserts a vehicle into its kind's vacant set, enforcing the
// single-membership invariant.
func (s *Simulator) addVacant(v *Vehicle) {
	set := s.vacantSet(v.Kind)
	if _, dup := set[v.ID]; dup {
		logrus.Panicf("vehicle %d already in the %s vacant set", v.ID, v.Kind)
	}
	if _, dup := s.inactiveAV[v.ID]; dup {
		logrus.Panicf("vehicle %d is both inactive and vacant", v.ID)
	}
	v.State = StateVacant
	set[v.ID] = v
	s.Market.Kind(v.Kind).Vacant = len(set)
}

// removeVacant removes a vehicle from its kind's vacant set.
func (s *Simulator) removeVacant(v *Vehicle) {
	set := s.vacantSet(v.Kind)
	if _, ok := set[v.ID]; !ok {
		logrus.Panicf("vehicle %d missing from the %s vacant set", v.ID, v.Kind)
	}
	delete(set, v.ID)
	s.Market.Kind(v.Kind).Vacant = len(set)
}

// expirePassenger removes a waiting request and emits its expiration
// record. Passengers never re-enter a waiting set.
func (s *Simulator) expirePassenger(p *Passenger, t int64) {
	k := kindOfMode(p.ChosenMode)
	delete(s.waitingSet(k), p.ID)
	s.Market.Kind(k).Waiting = len(s.waitingSet(k))
	s.Stats.Expirations = append(s.Stats.Expirations, stats.ExpirationRecord{
		PassengerID: p.ID,
		ExpireTime:  t,
	})
}

// exitHV removes a human driver from the market permanently.
func (s *Simulator) exitHV(v *Vehicle, t int64) {
	s.removeVacant(v)
	v.State = StateExited
	s.Market.HV.Total--
	s.Stats.Vehicles = append(s.Stats.Vehicles, vehicleRecord(v, t, false))
}

// deactivateAV routes a vacant AV to its nearest depot and parks it there.
func (s *Simulator) deactivateAV(v *Vehicle, t int64) {
	depot, tt := s.Network.NearestDepot(v.Location)
	s.removeVacant(v)
	v.State = StateInactive
	v.Time = t + tt
	v.Location = network.Intersection(depot)
	v.ConsumeCharge(tt)
	s.inactiveAV[v.ID] = v
	s.Market.AV.Total--
	s.Stats.Vehicles = append(s.Stats.Vehicles, vehicleRecord(v, t, false))
}

func kindOfMode(m Mode) VehicleKind {
	if m == ModeHV {
		return KindHV
	}
	return KindAV
}

// nearestVacantEta probes the minimum dispatch duration from any vacant
// vehicle of the kind to the origin; defaultEta caps the probe and stands
// in when the vacant set is empty.
func (s *Simulator) nearestVacantEta(k VehicleKind, origin network.Location) int64 {
	defaultEta := s.Config.DefaultWaitingTime
	best := defaultEta
	for _, v := range sortedVehicles(s.vacantSet(k)) {
		if tt := s.Network.Duration(v.Location, origin); tt < best {
			best = tt
		}
	}
	return best
}

// CheckInvariants verifies the between-events consistency contracts. Tests
// call it at event boundaries; violations are programming errors.
func (s *Simulator) CheckInvariants() {
	for _, k := range []VehicleKind{KindHV, KindAV} {
		ks := s.Market.Kind(k)
		if ks.Vacant != len(s.vacantSet(k)) {
			logrus.Panicf("%s vacant counter %d disagrees with set size %d", k, ks.Vacant, len(s.vacantSet(k)))
		}
		if ks.Waiting != len(s.waitingSet(k)) {
			logrus.Panicf("%s waiting counter %d disagrees with set size %d", k, ks.Waiting, len(s.waitingSet(k)))
		}
		if ks.Total != ks.Vacant+ks.Assigned+ks.Occupied {
			logrus.Panicf("%s counters drifted: total=%d nv=%d na=%d no=%d", k, ks.Total, ks.Vacant, ks.Assigned, ks.Occupied)
		}
	}
	for id := range s.vacantAV {
		if _, dup := s.inactiveAV[id]; dup {
			logrus.Panicf("AV %d is in both the vacant and inactive sets", id)
		}
	}
}

func vehicleRecord(v *Vehicle, t int64, activation bool) stats.VehicleRecord {
	return stats.VehicleRecord{
		VehicleID:    v.ID,
		IsHV:         v.Kind == KindHV,
		Neoclassical: v.HV.Neoclassical,
		HourlyCost:   v.HV.HourlyCost,
		TargetIncome: v.HV.TargetIncome,
		Income:       v.Income,
		Time:         t,
		Activation:   activation,
	}
}

func assignmentRecord(v *Vehicle, p *Passenger, dispatch, meeting, delivery int64) stats.AssignmentRecord {
	return stats.AssignmentRecord{
		VehicleID:    v.ID,
		PassengerID:  p.ID,
		IsHV:         v.Kind == KindHV,
		DispatchTime: dispatch,
		MeetingTime:  meeting,
		DeliveryTime: delivery,
	}
}
