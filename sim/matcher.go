// Periodic bipartite matching between vacant vehicles and waiting requests.
// The solver contract is "given a utility matrix over (vacant x waiting),
// return a one-to-one assignment maximising total utility"; the default
// implementation is an augmenting-path Hungarian solver. Determinism: rows
// and columns are ordered by ascending vehicle and passenger id, so equal
// utilities resolve to the lowest (vehicle, passenger) pair.

package sim

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// AssignmentSolver computes a maximum-utility one-to-one assignment.
// utility[i][j] scores pairing row i with column j; entries set to
// math.Inf(-1) are forbidden. The result maps row index to column index;
// unmatched rows are absent.
type AssignmentSolver interface {
	Solve(utility [][]float64) map[int]int
}

// HungarianSolver is the default assignment solver: the O(n^3)
// augmenting-path formulation over the negated utility matrix.
type HungarianSolver struct{}

// Solve implements AssignmentSolver. The matrix may be rectangular; the
// smaller side is fully matched unless only forbidden pairings remain.
func (HungarianSolver) Solve(utility [][]float64) map[int]int {
	n := len(utility)
	if n == 0 {
		return nil
	}
	m := len(utility[0])
	if m == 0 {
		return nil
	}

	// The algorithm minimises cost over an n x m matrix with n <= m; when
	// rows outnumber columns the matrix is solved transposed.
	transposed := n > m
	rows, cols := n, m
	if transposed {
		rows, cols = m, n
	}
	const forbidden = 1e18
	cost := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		cost[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			u := 0.0
			if transposed {
				u = utility[j][i]
			} else {
				u = utility[i][j]
			}
			if math.IsInf(u, -1) {
				cost[i][j] = forbidden
			} else {
				cost[i][j] = -u
			}
		}
	}

	// Potentials-based Hungarian algorithm (1-indexed internals).
	u := make([]float64, rows+1)
	v := make([]float64, cols+1)
	p := make([]int, cols+1) // p[j]: row matched to column j
	way := make([]int, cols+1)

	for i := 1; i <= rows; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, cols+1)
		used := make([]bool, cols+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= cols; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= cols; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	result := make(map[int]int)
	for j := 1; j <= cols; j++ {
		i := p[j]
		if i == 0 {
			continue
		}
		// Drop pairings that only exist because every real option was
		// forbidden.
		if cost[i-1][j-1] >= forbidden {
			continue
		}
		if transposed {
			result[j-1] = i - 1
		} else {
			result[i-1] = j - 1
		}
	}
	return result
}

// Match is one vehicle-passenger pairing with its dispatch travel time.
type Match struct {
	Vehicle        *Vehicle
	Passenger      *Passenger
	PickupDuration int64
}

// matchSide solves one cohort's bipartite instance. Vehicles and passengers
// are ordered by ascending id; edge utility is the inverse dispatch
// duration, so maximum total utility equals minimum total pickup travel
// time among full matchings. A degenerate instance (either side empty)
// yields no matches.
func (s *Simulator) matchSide(vehicles map[int]*Vehicle, waiting map[int]*Passenger) []Match {
	if len(vehicles) == 0 || len(waiting) == 0 {
		return nil
	}

	vs := sortedVehicles(vehicles)
	ps := sortedPassengers(waiting)

	utility := make([][]float64, len(vs))
	durations := make([][]int64, len(vs))
	for i, v := range vs {
		utility[i] = make([]float64, len(ps))
		durations[i] = make([]int64, len(ps))
		for j, p := range ps {
			tt := s.Network.Duration(v.Location, p.Origin)
			durations[i][j] = tt
			if tt <= 0 {
				// Same-point dispatch: strictly better than any positive
				// travel time.
				utility[i][j] = 2.0
			} else {
				utility[i][j] = 1.0 / float64(tt)
			}
		}
	}

	assignment := s.Solver.Solve(utility)

	// Execute in ascending vehicle-id order for deterministic record and
	// event sequences.
	rows := make([]int, 0, len(assignment))
	for i := range assignment {
		rows = append(rows, i)
	}
	sort.Ints(rows)

	matches := make([]Match, 0, len(rows))
	for _, i := range rows {
		j := assignment[i]
		matches = append(matches, Match{
			Vehicle:        vs[i],
			Passenger:      ps[j],
			PickupDuration: durations[i][j],
		})
	}
	return matches
}

func sortedVehicles(set map[int]*Vehicle) []*Vehicle {
	out := make([]*Vehicle, 0, len(set))
	for _, v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedPassengers(set map[int]*Passenger) []*Passenger {
	out := make([]*Passenger, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// executeMatch carries out one pairing at tick time t: state transitions,
// timing, income, counters, feedback histograms, and the trip-completion
// event.
func (s *Simulator) executeMatch(t int64, m Match) {
	v := m.Vehicle
	p := m.Passenger

	meetingTime := t + m.PickupDuration
	deliveryTime := meetingTime + p.TripDuration

	kind := v.Kind
	ks := s.Market.Kind(kind)

	// Remove both parties from their availability sets.
	s.removeVacant(v)
	delete(s.waitingSet(kind), p.ID)
	ks.Waiting = len(s.waitingSet(kind))
	ks.Assigned++

	v.State = StateAssigned
	v.LastAssignmentTime = t
	v.OccupiedSeconds = p.TripDuration
	v.ConsumeCharge(m.PickupDuration + p.TripDuration)

	// The vehicle surfaces at the passenger's destination at delivery time.
	v.Time = deliveryTime
	v.Location = p.Destination

	if kind == KindHV {
		earned := s.Market.HVWage / 3600.0 * float64(p.TripDuration)
		v.Income += earned
		s.Market.TotalWage += earned
	}

	if t > warmupSeconds {
		ks.RecordMatch(m.PickupDuration, p.TripDuration)
	}
	s.Market.PickupDurations[int(kind)] = append(s.Market.PickupDurations[int(kind)], m.PickupDuration)
	s.Market.DropoffDurations[int(kind)] = append(s.Market.DropoffDurations[int(kind)], p.TripDuration)

	// In-flight feedback for the controller.
	s.Market.PickupCounter[int(kind)][meetingTime]++
	s.Market.DropoffCounter[int(kind)][deliveryTime]++

	// Occupancy transitions at pickup and drop-off.
	s.Schedule(NewOccupancyDeltaEvent(meetingTime, kind, +1))
	s.Schedule(NewOccupancyDeltaEvent(deliveryTime, kind, -1))
	s.Schedule(NewTripCompletionEvent(deliveryTime, v.ID))

	s.Stats.Assignments = append(s.Stats.Assignments, assignmentRecord(v, p, t, meetingTime, deliveryTime))

	logrus.Debugf("[t=%07d] matched %s%d with passenger %d (pickup %ds)", t, kind, v.ID, p.ID, m.PickupDuration)
}
