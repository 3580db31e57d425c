// Package stats provides append-only record streams for simulation output.
// This package has no dependencies on sim/; it stores pure data types.
package stats

// VehicleRecord captures one market entry or exit of a vehicle.
type VehicleRecord struct {
	VehicleID    int
	IsHV         bool
	Neoclassical bool
	HourlyCost   float64
	TargetIncome float64
	Income       float64
	Time         int64
	Activation   bool // true on entry/activation, false on exit/deactivation
}

// PassengerRecord captures one request together with its mode choice.
type PassengerRecord struct {
	PassengerID  int
	RequestTime  int64
	TripDistance float64
	TripDuration int64
	ValueOfTime  float64
	Fare         float64
	PreferHV     string // "true", "false", or "null" for the outside option
}

// ExpirationRecord captures a cancelled request.
type ExpirationRecord struct {
	PassengerID int
	ExpireTime  int64
}

// AssignmentRecord captures one matched trip.
type AssignmentRecord struct {
	VehicleID    int
	PassengerID  int
	IsHV         bool
	DispatchTime int64
	MeetingTime  int64
	DeliveryTime int64
}

// UtilisationRecord captures a vehicle's per-trip utilisation at drop-off.
type UtilisationRecord struct {
	Time            int64
	VehicleID       int
	TripUtilisation float64
}

// PredictionRecord captures one MPC invocation's predicted horizon.
type PredictionRecord struct {
	Time   int64
	Failed bool
	// Per-step predicted states, flattened as parallel slices.
	HVWaiting  []float64
	HVVacant   []float64
	HVAssigned []float64
	HVOccupied []float64
	AVWaiting  []float64
	AVVacant   []float64
	AVAssigned []float64
	AVOccupied []float64
}

// ControlRecord captures the controls an MPC invocation applied.
type ControlRecord struct {
	Time         int64
	Failed       bool
	HVFare       float64
	AVFare       float64
	AVFleetDelta float64
	Objective    float64
}
