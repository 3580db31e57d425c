package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehail-sim/ridehail-sim/sim/workload"
)

// avBiasedRecord strongly favours the AV option.
func avBiasedRecord(t int64) workload.PassengerRecord {
	rec := hvBiasedRecord(t)
	rec.ConstAV = 0
	rec.ConstHV = 500
	return rec
}

// runPipeline wires demand, fleet and ticks, runs to completion, and
// returns the simulator for inspection.
func runPipeline(t *testing.T, cfg Config, records []workload.PassengerRecord, seed int64) *Simulator {
	t.Helper()
	cfg.ApplyDefaults()
	s := NewSimulator(cfg, ringNetwork(t), seed)
	workload.Synthesize(records, s.Rng.ForSubsystem(SubsystemDemand))
	s.LoadDemand(records)
	s.SeedFleet()
	s.ScheduleTicks()
	s.Run()
	return s
}

func hvDemand(times ...int64) []workload.PassengerRecord {
	records := make([]workload.PassengerRecord, 0, len(times))
	for _, t := range times {
		records = append(records, hvBiasedRecord(t))
	}
	return records
}

func TestRun_HVOnlyMarketServesDemand(t *testing.T) {
	cfg := Config{HVFleetSize: 3, MPCDisabled: true}
	s := runPipeline(t, cfg, hvDemand(10, 20, 30), 42)

	require.Len(t, s.Stats.Passengers, 3)
	for _, p := range s.Stats.Passengers {
		assert.Equal(t, "true", p.PreferHV)
	}

	// Every request either got a trip or expired.
	assert.Equal(t, 3, len(s.Stats.Assignments)+len(s.Stats.Expirations))
	assert.NotEmpty(t, s.Stats.Assignments)

	// The drain clears the market completely.
	assert.Empty(t, s.waitingHV)
	assert.Empty(t, s.vacantHV)
	assert.Zero(t, s.Market.HV.Total)

	// Disabled controller leaves no control or prediction records.
	assert.Empty(t, s.Stats.Controls)
	assert.Empty(t, s.Stats.Predictions)
	s.CheckInvariants()
}

func TestRun_AVOnlyMarketParksFleetAtEnd(t *testing.T) {
	cfg := Config{AVFleetSize: 2, AVInitialSize: 2, MPCDisabled: true}
	records := []workload.PassengerRecord{avBiasedRecord(10), avBiasedRecord(25)}
	s := runPipeline(t, cfg, records, 42)

	for _, p := range s.Stats.Passengers {
		assert.Equal(t, "false", p.PreferHV)
	}
	assert.NotEmpty(t, s.Stats.Assignments)

	// All AVs are back at a depot, inactive.
	assert.Empty(t, s.vacantAV)
	assert.Len(t, s.inactiveAV, 2)
	assert.Zero(t, s.Market.AV.Total)

	// Served trips drained some battery from a fully-charged fleet.
	total := 0.0
	for _, v := range s.inactiveAV {
		assert.Positive(t, v.StateOfCharge)
		assert.LessOrEqual(t, v.StateOfCharge, s.Config.AVBatteryCapacity)
		total += v.StateOfCharge
	}
	assert.Less(t, total, 2*s.Config.AVBatteryCapacity)
	s.CheckInvariants()
}

func TestSeedFleet_AVsStartFullyCharged(t *testing.T) {
	cfg := Config{AVFleetSize: 2, MPCDisabled: true}
	cfg.ApplyDefaults()
	s := NewSimulator(cfg, ringNetwork(t), 42)
	s.seedAVs()

	require.Len(t, s.inactiveAV, 2)
	for _, v := range s.inactiveAV {
		assert.InDelta(t, cfg.AVBatteryCapacity, v.StateOfCharge, 1e-9)
	}
}

func TestRun_CompletedTripsEmitUtilisationRecords(t *testing.T) {
	cfg := Config{HVFleetSize: 2, MPCDisabled: true}
	s := runPipeline(t, cfg, hvDemand(5), 42)

	require.NotEmpty(t, s.Stats.Assignments)
	assert.Len(t, s.Stats.Utilisations, len(s.Stats.Assignments))
	for _, u := range s.Stats.Utilisations {
		assert.Greater(t, u.TripUtilisation, 0.0)
		assert.LessOrEqual(t, u.TripUtilisation, 1.0)
	}
}

func TestRun_UnservedRequestExpires(t *testing.T) {
	cfg := Config{MPCDisabled: true} // no supply at all
	s := runPipeline(t, cfg, hvDemand(10), 42)

	assert.Empty(t, s.Stats.Assignments)
	require.Len(t, s.Stats.Expirations, 1)
	// Patience of 120 runs out at t=130, at a match tick past the last
	// request rather than at drain entry.
	assert.Equal(t, int64(130), s.Stats.Expirations[0].ExpireTime)
	assert.Empty(t, s.waitingHV)
}

func TestRun_ExpirationsLandWithinPatienceWindow(t *testing.T) {
	// 10 simultaneous requests against a single driver: one match, and the
	// other nine expire at the first match tick at or after their deadline.
	cfg := Config{HVFleetSize: 1, MPCDisabled: true}
	records := make([]workload.PassengerRecord, 0, 10)
	for i := 0; i < 10; i++ {
		rec := hvBiasedRecord(0)
		rec.Patience = 30
		records = append(records, rec)
	}
	s := runPipeline(t, cfg, records, 42)

	assert.Len(t, s.Stats.Assignments, 1)
	require.Len(t, s.Stats.Expirations, 9)
	for _, e := range s.Stats.Expirations {
		assert.GreaterOrEqual(t, e.ExpireTime, int64(30))
		assert.Less(t, e.ExpireTime, int64(30)+s.Config.MatchInterval)
	}
}

func TestRun_ZeroWorkDurationRemovesEveryHV(t *testing.T) {
	zero := int64(0)
	cfg := Config{HVFleetSize: 2, MPCDisabled: true, MaximumWorkDuration: &zero}
	s := runPipeline(t, cfg, hvDemand(10), 42)

	// Drivers hit the cap at their first exit check, before any trip.
	assert.Empty(t, s.Stats.Assignments)
	assert.Zero(t, s.Market.HV.Total)
	require.Len(t, s.Stats.Expirations, 1)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	cfg := Config{HVFleetSize: 3, AVFleetSize: 2, AVInitialSize: 2, MPCDisabled: true}

	a := runPipeline(t, cfg, append(hvDemand(10, 20), avBiasedRecord(25)), 7)
	b := runPipeline(t, cfg, append(hvDemand(10, 20), avBiasedRecord(25)), 7)

	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, a.Clock, b.Clock)
}

func TestRun_SeedChangesOutcome(t *testing.T) {
	cfg := Config{HVFleetSize: 5, MPCDisabled: true}

	a := runPipeline(t, cfg, hvDemand(10, 20, 30), 1)
	b := runPipeline(t, cfg, hvDemand(10, 20, 30), 2)

	// Vehicle placement differs, so records should not coincide.
	assert.NotEqual(t, a.Stats.Vehicles, b.Stats.Vehicles)
}

func TestRun_MPCAppliesControls(t *testing.T) {
	cfg := Config{
		HVFleetSize:   2,
		AVFleetSize:   2,
		AVInitialSize: 1,
		MPCStartHour:  0,
		MPCEndHour:    1,
		MPCSteps:      5,
	}
	s := runPipeline(t, cfg, hvDemand(10, 20, 30), 42)

	require.NotEmpty(t, s.Stats.Controls)
	ctrl := s.Stats.Controls[0]
	if !ctrl.Failed {
		assert.GreaterOrEqual(t, ctrl.HVFare, s.Config.Economics.FareMin)
		assert.LessOrEqual(t, ctrl.HVFare, s.Config.Economics.FareMax)
		assert.InDelta(t, ctrl.HVFare, s.Market.HV.UnitFare, 1e-9)
	}
	assert.Len(t, s.Stats.Predictions, len(s.Stats.Controls))
}

func TestRun_PanicsOnOutOfOrderEvent(t *testing.T) {
	s := newTestSimulator(t, Config{})
	s.Clock = 100
	var log []int
	s.Schedule(newStub(50, 0, 0, &log))
	assert.Panics(t, func() { s.Run() })
}

func TestBeginDrain_ClearsMarket(t *testing.T) {
	s := newTestSimulator(t, Config{})
	addTestVehicle(s, 0, KindHV, 2)
	seedInactiveAVs(s, 1)
	NewActivateAVsEvent(0, 1).Execute(s)
	addTestPassenger(s, 2, ModeHV, 1, 3, 300)
	s.Clock = 500

	s.beginDrain()

	assert.Empty(t, s.waitingHV)
	assert.Empty(t, s.vacantHV)
	assert.Empty(t, s.vacantAV)
	assert.Len(t, s.inactiveAV, 1)
	require.Len(t, s.Stats.Expirations, 1)
	// The drain overtook the request before its deadline; the record
	// carries the deadline, not the drain clock.
	assert.Equal(t, int64(600), s.Stats.Expirations[0].ExpireTime)
	s.CheckInvariants()
}

func TestNearestVacantEta_CappedByDefault(t *testing.T) {
	cfg := Config{DefaultWaitingTime: 90}
	s := newTestSimulator(t, cfg)

	// Empty vacant set: the fallback stands in.
	p := addTestPassenger(s, 0, ModeHV, 1, 3, 300)
	assert.Equal(t, int64(90), s.nearestVacantEta(KindHV, p.Origin))

	// A vehicle 60s away beats the cap.
	addTestVehicle(s, 0, KindHV, 2)
	assert.Equal(t, int64(60), s.nearestVacantEta(KindHV, p.Origin))

	// A vehicle further than the cap cannot raise it.
	s2 := newTestSimulator(t, Config{DefaultWaitingTime: 30})
	addTestVehicle(s2, 0, KindHV, 3)
	assert.Equal(t, int64(30), s2.nearestVacantEta(KindHV, p.Origin))
}
