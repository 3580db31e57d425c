// Event contract for the simulation loop. Every event carries a
// (time, priority, sequence) header; dispatch order is strictly
// lexicographic on that triple. Events are single-use: once executed they
// are discarded.

package sim

// Event priorities, the triggering order at the same time. Lower values are
// processed first.
const (
	PriorityVehicleLifecycle = 0 // NewHV, Activate/Deactivate AVs, occupancy deltas
	PriorityTripCompletion   = 1
	PriorityUpdatePhi        = 2
	PriorityNewPassenger     = 3
	PriorityUpdateStates     = 4
	PriorityAssign           = 5
	PriorityMPC              = 6
)

// Event defines the interface for all simulation events.
type Event interface {
	Time() int64
	Priority() int
	Seq() uint64
	Execute(*Simulator)
}

// header implements the ordering fields shared by every event. The sequence
// is assigned by the Simulator when the event is scheduled; it preserves
// deterministic FIFO order within a (time, priority) class.
type header struct {
	time     int64
	priority int
	seq      uint64
}

func (h *header) Time() int64   { return h.time }
func (h *header) Priority() int { return h.priority }
func (h *header) Seq() uint64   { return h.seq }

func (h *header) setSeq(seq uint64) { h.seq = seq }

// sequenced is the private hook the Simulator uses to stamp insertion order.
type sequenced interface {
	setSeq(uint64)
}
