// Process-wide market aggregates. Mutated only by event triggers on the
// single simulation goroutine.

package sim

// VehicleKind discriminates the two fleet cohorts.
type VehicleKind int

const (
	KindHV VehicleKind = iota
	KindAV
)

func (k VehicleKind) String() string {
	if k == KindHV {
		return "HV"
	}
	return "AV"
}

// KindState holds the per-kind market aggregates.
type KindState struct {
	Total    int // fleet currently in the market
	Waiting  int // pw: waiting passengers
	Vacant   int // nv: vacant vehicles
	Assigned int // na: vehicles en route to pickup
	Occupied int // no: vehicles en route to drop-off

	Phi      float64 // ETA-ratio correction
	UnitFare float64 // $/hr
	BaseFare float64 // $

	Occupancy float64 // running no/total after warm-up

	// Running averages over matches after the warm-up hour.
	AvgPickupDuration float64 // ta, seconds
	AvgTripDuration   float64 // to, seconds
	Trips             int

	// Utilisation running mean of per-trip occupied/elapsed ratios.
	Utilisation      float64
	UtilisationTrips int
}

// Market is the shared mutable market state.
type Market struct {
	HV KindState
	AV KindState

	HVWage   float64 // $/hr
	AVChange int     // pending AV fleet delta from the controller

	TotalWage float64 // cumulative HV wage bill, $

	// Pickup/dropoff histograms keyed by simulated second: the in-flight
	// trip schedule the MPC prunes into its correction parameters.
	PickupCounter  [2]map[int64]int
	DropoffCounter [2]map[int64]int

	// Completed dispatch/trip durations observed so far, feeding the MPC's
	// synthetic duration draws.
	PickupDurations  [2][]int64
	DropoffDurations [2][]int64
}

// NewMarket initialises market state from the configured economics.
func NewMarket(e Economics) *Market {
	m := &Market{
		HVWage: e.HVWage,
	}
	m.HV = KindState{
		Phi:               1.0,
		UnitFare:          e.HVUnitFare,
		BaseFare:          e.HVBaseFare,
		AvgPickupDuration: 300,
		AvgTripDuration:   600,
	}
	m.AV = KindState{
		Phi:               1.0,
		UnitFare:          e.AVUnitFare,
		BaseFare:          e.AVBaseFare,
		AvgPickupDuration: 300,
		AvgTripDuration:   600,
	}
	for k := 0; k < 2; k++ {
		m.PickupCounter[k] = make(map[int64]int)
		m.DropoffCounter[k] = make(map[int64]int)
	}
	return m
}

// Kind returns the mutable per-kind state.
func (m *Market) Kind(k VehicleKind) *KindState {
	if k == KindHV {
		return &m.HV
	}
	return &m.AV
}

// RecordMatch folds one match's pickup and trip durations into the running
// ta/to averages. Called only after the warm-up hour.
func (ks *KindState) RecordMatch(pickupDuration, tripDuration int64) {
	n := float64(ks.Trips)
	ks.AvgPickupDuration = (ks.AvgPickupDuration*n + float64(pickupDuration)) / (n + 1)
	ks.AvgTripDuration = (ks.AvgTripDuration*n + float64(tripDuration)) / (n + 1)
	ks.Trips++
}

// RecordUtilisation folds one completed trip's occupied/elapsed ratio into
// the running utilisation mean.
func (ks *KindState) RecordUtilisation(ratio float64) {
	n := float64(ks.UtilisationTrips)
	ks.Utilisation = (ks.Utilisation*n + ratio) / (n + 1)
	ks.UtilisationTrips++
}
