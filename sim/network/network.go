// Road network service: directed graph with per-edge length and travel time,
// node-to-node shortest-path durations (dense table or Dijkstra fallback),
// and location-to-location metric queries.

package network

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Edge carries the static attributes of one directed road segment.
type Edge struct {
	Source     int64
	Target     int64
	Length     float64 // metres
	TravelTime int64   // seconds at free-flow speed
}

// Network is the shared, read-only road graph plus its travel-time metric.
type Network struct {
	graph *simple.WeightedDirectedGraph
	edges map[[2]int64]Edge
	// edgeList keeps deterministic ordering for random location draws.
	edgeList []Edge
	nodes    []int64
	depots   []int64

	// durations holds the dense node-pair shortest-path travel times.
	// Built either from a precomputed table or from Dijkstra over the graph.
	durations map[int64]map[int64]int64

	// shortest caches per-source Dijkstra trees for distance queries.
	shortest map[int64]path.Shortest
}

// New builds a Network from a directed edge list and an optional depot node
// set. Durations between all node pairs are computed with Dijkstra unless
// SetDurationTable installs a precomputed table.
func New(edges []Edge, depots []int64) (*Network, error) {
	if len(edges) == 0 {
		return nil, fmt.Errorf("network requires at least one edge")
	}

	g := simple.NewWeightedDirectedGraph(0, 0)
	edgeMap := make(map[[2]int64]Edge, len(edges))
	nodeSet := make(map[int64]bool)

	for _, e := range edges {
		if e.Source == e.Target {
			continue // skip loops in network
		}
		if e.Length <= 0 || e.TravelTime <= 0 {
			return nil, fmt.Errorf("edge (%d,%d) has non-positive length or travel time", e.Source, e.Target)
		}
		from := simple.Node(e.Source)
		to := simple.Node(e.Target)
		if g.Node(e.Source) == nil {
			g.AddNode(from)
		}
		if g.Node(e.Target) == nil {
			g.AddNode(to)
		}
		g.SetWeightedEdge(g.NewWeightedEdge(from, to, float64(e.TravelTime)))
		edgeMap[[2]int64{e.Source, e.Target}] = e
		nodeSet[e.Source] = true
		nodeSet[e.Target] = true
	}

	nodes := make([]int64, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	edgeList := make([]Edge, 0, len(edgeMap))
	for _, e := range edges {
		if e.Source != e.Target {
			edgeList = append(edgeList, e)
		}
	}

	for _, d := range depots {
		if !nodeSet[d] {
			return nil, fmt.Errorf("depot node %d is not on the network", d)
		}
	}

	return &Network{
		graph:    g,
		edges:    edgeMap,
		edgeList: edgeList,
		nodes:    nodes,
		depots:   depots,
		shortest: make(map[int64]path.Shortest),
	}, nil
}

// SetDurationTable installs a precomputed dense node-pair travel-time table,
// replacing the Dijkstra fallback for duration queries.
func (n *Network) SetDurationTable(table map[int64]map[int64]int64) {
	n.durations = table
}

// Nodes returns all node ids in ascending order.
func (n *Network) Nodes() []int64 {
	return n.nodes
}

// Depots returns the depot node ids in input order.
func (n *Network) Depots() []int64 {
	return n.depots
}

// Edge looks up the attributes of the directed edge (source, target).
func (n *Network) Edge(source, target int64) (Edge, bool) {
	e, ok := n.edges[[2]int64{source, target}]
	return e, ok
}

// RandomLocation draws a uniformly random on-network location: a random
// edge, then a uniform offset along it.
func (n *Network) RandomLocation(rng *rand.Rand) Location {
	e := n.edgeList[rng.Intn(len(n.edgeList))]
	loc, err := OnEdge(e.Source, e.Target, rng.Float64()*e.Length, e)
	if err != nil {
		// Unreachable: the offset is drawn within [0, length).
		logrus.Panicf("random location on edge (%d,%d): %v", e.Source, e.Target, err)
	}
	return loc
}

// nodeDuration returns the shortest-path travel time between two nodes.
func (n *Network) nodeDuration(from, to int64) int64 {
	if from == to {
		return 0
	}
	if n.durations != nil {
		if row, ok := n.durations[from]; ok {
			if d, ok := row[to]; ok {
				return d
			}
		}
		logrus.Panicf("duration table has no entry for node pair (%d,%d)", from, to)
	}
	tree := n.shortestFrom(from)
	w := tree.WeightTo(to)
	return int64(w)
}

func (n *Network) shortestFrom(from int64) path.Shortest {
	if tree, ok := n.shortest[from]; ok {
		return tree
	}
	tree := path.DijkstraFrom(n.graph.Node(from), n.graph)
	n.shortest[from] = tree
	return tree
}

// Duration returns the travel time in seconds from one location to another.
// When both locations share a directed edge and the origin is upstream,
// travel proceeds directly along the edge; otherwise the vehicle first
// reaches the origin's target node and routes to the destination's source
// node, plus the interpolated edge offsets at both ends.
func (n *Network) Duration(from, to Location) int64 {
	if from.SameEdge(to) && from.DistFromSource < to.DistFromSource {
		return to.TimeFromSource - from.TimeFromSource
	}
	cost := n.nodeDuration(from.Target, to.Source)
	if !from.IsIntersection() {
		cost += from.TimeFromTarget
	}
	if !to.IsIntersection() {
		cost += to.TimeFromSource
	}
	return cost
}

// Distance returns the travel distance in metres from one location to
// another, measured along the duration-shortest path.
func (n *Network) Distance(from, to Location) float64 {
	if from.SameEdge(to) && from.DistFromSource < to.DistFromSource {
		return to.DistFromSource - from.DistFromSource
	}

	var cost float64
	if from.Target != to.Source {
		tree := n.shortestFrom(from.Target)
		nodes, _ := tree.To(to.Source)
		if len(nodes) < 2 {
			logrus.Panicf("no path between nodes %d and %d", from.Target, to.Source)
		}
		for i := 0; i < len(nodes)-1; i++ {
			e, ok := n.Edge(nodes[i].ID(), nodes[i+1].ID())
			if !ok {
				logrus.Panicf("shortest path uses missing edge (%d,%d)", nodes[i].ID(), nodes[i+1].ID())
			}
			cost += e.Length
		}
	}

	if !from.IsIntersection() {
		cost += from.DistFromTarget
	}
	if !to.IsIntersection() {
		cost += to.DistFromSource
	}
	return cost
}

// NearestDepot returns the depot node reachable in the least travel time
// from loc, together with that travel time. Depot ties resolve to the
// earlier depot in input order.
func (n *Network) NearestDepot(loc Location) (int64, int64) {
	if len(n.depots) == 0 {
		logrus.Panic("network has no depots")
	}
	best := n.depots[0]
	bestTT := n.Duration(loc, Intersection(best))
	for _, d := range n.depots[1:] {
		tt := n.Duration(loc, Intersection(d))
		if tt < bestTT {
			best = d
			bestTT = tt
		}
	}
	return best, bestTT
}
