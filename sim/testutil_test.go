package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridehail-sim/ridehail-sim/sim/network"
)

// ringNetwork builds a 4-node bidirectional ring with 60-second, 600-metre
// segments and a depot at node 1.
func ringNetwork(t *testing.T) *network.Network {
	t.Helper()
	edges := []network.Edge{
		{Source: 1, Target: 2, Length: 600, TravelTime: 60},
		{Source: 2, Target: 3, Length: 600, TravelTime: 60},
		{Source: 3, Target: 4, Length: 600, TravelTime: 60},
		{Source: 4, Target: 1, Length: 600, TravelTime: 60},
		{Source: 2, Target: 1, Length: 600, TravelTime: 60},
		{Source: 3, Target: 2, Length: 600, TravelTime: 60},
		{Source: 4, Target: 3, Length: 600, TravelTime: 60},
		{Source: 1, Target: 4, Length: 600, TravelTime: 60},
	}
	net, err := network.New(edges, []int64{1})
	require.NoError(t, err)
	return net
}

// newTestSimulator wires a simulator over the ring network with defaults
// applied on top of the given overrides.
func newTestSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	cfg.ApplyDefaults()
	return NewSimulator(cfg, ringNetwork(t), 42)
}

// addTestVehicle registers a vacant vehicle at a node.
func addTestVehicle(s *Simulator, id int, kind VehicleKind, node int64) *Vehicle {
	v := &Vehicle{
		ID:       id,
		Kind:     kind,
		Location: network.Intersection(node),
	}
	s.vehicles[id] = v
	s.Market.Kind(kind).Total++
	s.addVacant(v)
	if id >= s.nextVehicleID {
		s.nextVehicleID = id + 1
	}
	return v
}

// addTestPassenger registers a waiting request between two nodes.
func addTestPassenger(s *Simulator, id int, mode Mode, origin, dest int64, tripDuration int64) *Passenger {
	p := &Passenger{
		ID:           id,
		Origin:       network.Intersection(origin),
		Destination:  network.Intersection(dest),
		TripDuration: tripDuration,
		Patience:     600,
		ExpiredTime:  600,
		ChosenMode:   mode,
	}
	k := kindOfMode(mode)
	s.waitingSet(k)[id] = p
	s.Market.Kind(k).Waiting = len(s.waitingSet(k))
	if id >= s.nextPassengerID {
		s.nextPassengerID = id + 1
	}
	return p
}
