// Defines the Location value type: an immutable point on the directed road
// graph, either at an intersection or part-way along an edge.

package network

import "fmt"

// LocationKind discriminates intersection locations from mid-edge locations.
type LocationKind string

const (
	KindIntersection LocationKind = "intersection"
	KindRoad         LocationKind = "road"
)

// Location is an immutable point on the road network. An intersection
// location has Source == Target and zero offsets. A road location sits
// DistFromSource metres downstream of Source on the directed edge
// (Source, Target); time offsets are linearly interpolated along the edge.
type Location struct {
	Kind   LocationKind
	Source int64
	Target int64

	DistFromSource float64
	DistFromTarget float64
	TimeFromSource int64
	TimeFromTarget int64
}

// Intersection returns a Location anchored at a graph node.
func Intersection(node int64) Location {
	return Location{
		Kind:   KindIntersection,
		Source: node,
		Target: node,
	}
}

// OnEdge returns a Location distFromSource metres along the directed edge
// (source, target). An offset of 0 collapses to the source intersection and
// an offset equal to the edge length collapses to the target intersection.
// The offset must lie within [0, edge length].
func OnEdge(source, target int64, distFromSource float64, edge Edge) (Location, error) {
	if distFromSource < 0 || distFromSource > edge.Length {
		return Location{}, fmt.Errorf("location offset %.2f outside edge (%d,%d) of length %.2f",
			distFromSource, source, target, edge.Length)
	}
	if distFromSource == 0 {
		return Intersection(source), nil
	}
	if distFromSource == edge.Length {
		return Intersection(target), nil
	}
	timeFromSource := int64(float64(edge.TravelTime) * distFromSource / edge.Length)
	return Location{
		Kind:           KindRoad,
		Source:         source,
		Target:         target,
		DistFromSource: distFromSource,
		DistFromTarget: edge.Length - distFromSource,
		TimeFromSource: timeFromSource,
		TimeFromTarget: edge.TravelTime - timeFromSource,
	}, nil
}

// IsIntersection reports whether the location sits exactly on a node.
func (l Location) IsIntersection() bool {
	return l.Kind == KindIntersection
}

// SameEdge reports whether both locations lie on the same directed edge.
func (l Location) SameEdge(other Location) bool {
	return l.Kind == KindRoad && other.Kind == KindRoad &&
		l.Source == other.Source && l.Target == other.Target
}

func (l Location) String() string {
	if l.IsIntersection() {
		return fmt.Sprintf("nodes[%d]", l.Source)
	}
	return fmt.Sprintf("edges[%d %d]_%.2fm", l.Source, l.Target, l.DistFromSource)
}
