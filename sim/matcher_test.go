package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
)

func TestHungarianSolver_Identity(t *testing.T) {
	got := HungarianSolver{}.Solve([][]float64{
		{1.0, 0.1},
		{0.1, 1.0},
	})
	assert.Equal(t, map[int]int{0: 0, 1: 1}, got)
}

func TestHungarianSolver_CrossAssignmentWins(t *testing.T) {
	// Greedy would pair row 0 with column 0 (0.9), forcing row 1 onto 0.1
	// for a total of 1.0; the cross assignment totals 1.65.
	got := HungarianSolver{}.Solve([][]float64{
		{0.9, 0.85},
		{0.8, 0.1},
	})
	assert.Equal(t, map[int]int{0: 1, 1: 0}, got)
}

func TestHungarianSolver_Rectangular_MoreColumns(t *testing.T) {
	got := HungarianSolver{}.Solve([][]float64{
		{0.2, 0.9, 0.5},
	})
	assert.Equal(t, map[int]int{0: 1}, got)
}

func TestHungarianSolver_Rectangular_MoreRows(t *testing.T) {
	got := HungarianSolver{}.Solve([][]float64{
		{0.2},
		{0.9},
		{0.5},
	})
	assert.Equal(t, map[int]int{1: 0}, got)
}

func TestHungarianSolver_ForbiddenPairsExcluded(t *testing.T) {
	inf := math.Inf(-1)
	got := HungarianSolver{}.Solve([][]float64{
		{inf, 0.5},
		{0.5, inf},
	})
	assert.Equal(t, map[int]int{0: 1, 1: 0}, got)
}

func TestHungarianSolver_AllForbidden_NoMatches(t *testing.T) {
	inf := math.Inf(-1)
	got := HungarianSolver{}.Solve([][]float64{
		{inf, inf},
		{inf, inf},
	})
	assert.Empty(t, got)
}

func TestHungarianSolver_EmptyInstance(t *testing.T) {
	assert.Nil(t, HungarianSolver{}.Solve(nil))
	assert.Nil(t, HungarianSolver{}.Solve([][]float64{}))
}

func TestMatchSide_EmptySidesYieldNoMatches(t *testing.T) {
	s := newTestSimulator(t, Config{})
	assert.Nil(t, s.matchSide(s.vacantHV, s.waitingHV))

	addTestVehicle(s, 0, KindHV, 1)
	assert.Nil(t, s.matchSide(s.vacantHV, s.waitingHV))
}

func TestMatchSide_PrefersCloserVehicle(t *testing.T) {
	s := newTestSimulator(t, Config{})
	far := addTestVehicle(s, 0, KindHV, 3)  // 120s from node 1
	near := addTestVehicle(s, 1, KindHV, 2) // 60s from node 1
	addTestPassenger(s, 0, ModeHV, 1, 3, 300)

	matches := s.matchSide(s.vacantHV, s.waitingHV)
	require.Len(t, matches, 1)
	assert.Equal(t, near.ID, matches[0].Vehicle.ID)
	assert.Equal(t, int64(60), matches[0].PickupDuration)
	assert.NotEqual(t, far.ID, matches[0].Vehicle.ID)
}

func TestMatchSide_EqualUtility_LowestIDsPair(t *testing.T) {
	s := newTestSimulator(t, Config{})
	addTestVehicle(s, 0, KindHV, 2)
	addTestVehicle(s, 1, KindHV, 4)
	addTestPassenger(s, 0, ModeHV, 3, 1, 300) // 60s from both vehicles
	addTestPassenger(s, 1, ModeHV, 1, 3, 300) // 60s from both vehicles

	matches := s.matchSide(s.vacantHV, s.waitingHV)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Vehicle.ID)
	assert.Equal(t, 0, matches[0].Passenger.ID)
	assert.Equal(t, 1, matches[1].Vehicle.ID)
	assert.Equal(t, 1, matches[1].Passenger.ID)
}

func TestExecuteMatch_TransitionsAndSchedules(t *testing.T) {
	s := newTestSimulator(t, Config{})
	v := addTestVehicle(s, 0, KindHV, 2)
	p := addTestPassenger(s, 0, ModeHV, 1, 3, 300)

	matches := s.matchSide(s.vacantHV, s.waitingHV)
	require.Len(t, matches, 1)
	s.executeMatch(100, matches[0])

	assert.Equal(t, StateAssigned, v.State)
	assert.Empty(t, s.vacantHV)
	assert.Empty(t, s.waitingHV)
	assert.Equal(t, 1, s.Market.HV.Assigned)
	assert.Equal(t, int64(100), v.LastAssignmentTime)

	// Pickup at 160, delivery at 460: two occupancy deltas plus completion.
	assert.Equal(t, 3, s.QueueLen())
	assert.Equal(t, p.Destination, v.Location)
	assert.Equal(t, int64(460), v.Time)
	s.CheckInvariants()
}

func TestExecuteMatch_HVEarnsWage(t *testing.T) {
	s := newTestSimulator(t, Config{})
	v := addTestVehicle(s, 0, KindHV, 2)
	addTestPassenger(s, 0, ModeHV, 1, 3, 3600)

	matches := s.matchSide(s.vacantHV, s.waitingHV)
	require.Len(t, matches, 1)
	s.executeMatch(0, matches[0])

	// One hour occupied at the configured wage.
	assert.InDelta(t, s.Market.HVWage, v.Income, 1e-9)
	assert.InDelta(t, s.Market.HVWage, s.Market.TotalWage, 1e-9)
}

func TestExecuteMatch_SamePointDispatch(t *testing.T) {
	s := newTestSimulator(t, Config{})
	addTestVehicle(s, 0, KindAV, 1)
	addTestPassenger(s, 0, ModeAV, 1, 2, 120)

	matches := s.matchSide(s.vacantAV, s.waitingAV)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(0), matches[0].PickupDuration)
}

func TestNetworkLocationHelpers(t *testing.T) {
	s := newTestSimulator(t, Config{})
	loc, err := s.locationFromRecord(1, 1, 0)
	require.NoError(t, err)
	assert.True(t, loc.IsIntersection())

	loc, err = s.locationFromRecord(1, 2, 300)
	require.NoError(t, err)
	assert.Equal(t, network.KindRoad, loc.Kind)

	_, err = s.locationFromRecord(1, 3, 100)
	assert.Error(t, err)
}
