// Passenger request record parsing and validation. Records arrive as a
// time-sorted CSV with precomputed trip metrics and per-passenger utility
// parameters; missing stochastic attributes (patience, value of time) are
// drawn once at validation time so later simulator runs see fixed inputs.

package workload

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
)

// PassengerRecord is one parsed request row. Origin and destination are
// given as (source node, target node, metres from source); a target equal
// to the source denotes an intersection location.
type PassengerRecord struct {
	Time int64 // seconds from simulation start

	OriginSource int64
	OriginTarget int64
	OriginDist   float64

	DestSource int64
	DestTarget int64
	DestDist   float64

	TripDistance float64 // metres
	TripDuration int64   // seconds
	Patience     int64   // seconds until the request is cancelled
	ValueOfTime  float64 // $/second

	// Mode-choice utility parameters.
	Scale       float64
	ConstHV     float64
	ConstAV     float64
	ConstOut    float64
	FareCoefHV  float64
	FareCoefAV  float64
}

var passengerHeader = []string{
	"time", "o_source", "o_target", "o_loc", "d_source", "d_target", "d_loc",
	"trip_distance", "trip_duration", "patience", "VoT",
	"scale", "const_HV", "const_AV", "const_out", "fare_coef_HV", "fare_coef_AV",
}

// LoadPassengerRecords reads and validates a passenger request CSV.
// Rows must be sorted by time ascending. Patience and VoT columns may be
// left empty; Synthesize fills them in afterwards.
func LoadPassengerRecords(path string) ([]PassengerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("passenger file %s is empty", path)
	}
	if len(rows[0]) != len(passengerHeader) {
		return nil, fmt.Errorf("passenger file %s: want %d columns, got %d",
			path, len(passengerHeader), len(rows[0]))
	}

	records := make([]PassengerRecord, 0, len(rows)-1)
	var lastTime int64 = -1
	for i, row := range rows[1:] {
		rec, err := parsePassengerRow(row)
		if err != nil {
			return nil, fmt.Errorf("passenger file %s row %d: %w", path, i+2, err)
		}
		if rec.Time < lastTime {
			return nil, fmt.Errorf("passenger file %s row %d: requests not sorted by time (%d after %d)",
				path, i+2, rec.Time, lastTime)
		}
		lastTime = rec.Time
		records = append(records, rec)
	}
	return records, nil
}

func parsePassengerRow(row []string) (PassengerRecord, error) {
	var rec PassengerRecord
	var err error

	ints := map[int]*int64{0: &rec.Time, 1: &rec.OriginSource, 2: &rec.OriginTarget,
		4: &rec.DestSource, 5: &rec.DestTarget, 8: &rec.TripDuration}
	for col, dst := range ints {
		if *dst, err = strconv.ParseInt(row[col], 10, 64); err != nil {
			return rec, fmt.Errorf("column %s: %w", passengerHeader[col], err)
		}
	}

	floats := map[int]*float64{3: &rec.OriginDist, 6: &rec.DestDist, 7: &rec.TripDistance,
		11: &rec.Scale, 12: &rec.ConstHV, 13: &rec.ConstAV, 14: &rec.ConstOut,
		15: &rec.FareCoefHV, 16: &rec.FareCoefAV}
	for col, dst := range floats {
		if *dst, err = strconv.ParseFloat(row[col], 64); err != nil {
			return rec, fmt.Errorf("column %s: %w", passengerHeader[col], err)
		}
	}

	// Patience and VoT are optional; zero means "synthesize".
	if row[9] != "" {
		if rec.Patience, err = strconv.ParseInt(row[9], 10, 64); err != nil {
			return rec, fmt.Errorf("column patience: %w", err)
		}
	}
	if row[10] != "" {
		if rec.ValueOfTime, err = strconv.ParseFloat(row[10], 64); err != nil {
			return rec, fmt.Errorf("column VoT: %w", err)
		}
	}

	if rec.TripDuration <= 0 {
		return rec, fmt.Errorf("non-positive trip duration %d", rec.TripDuration)
	}
	if rec.TripDistance < 0 {
		return rec, fmt.Errorf("negative trip distance %.2f", rec.TripDistance)
	}
	return rec, nil
}

// Synthesize fills missing patience and value-of-time attributes with
// truncated-normal draws: patience ~ N(60, 6) s and VoT ~ N(50, 5)/3600
// $/s, both truncated at ten standard deviations. Draws happen once here
// so repeated simulator runs over the same records are fixed.
func Synthesize(records []PassengerRecord, rng *rand.Rand) {
	patience := truncNorm{mean: 60, stdDev: 6, width: 10}
	vot := truncNorm{mean: 50.0 / 3600.0, stdDev: 5.0 / 3600.0, width: 10}
	for i := range records {
		if records[i].Patience == 0 {
			records[i].Patience = int64(patience.rand(rng))
		}
		if records[i].ValueOfTime == 0 {
			records[i].ValueOfTime = vot.rand(rng)
		}
	}
}

// truncNorm draws from a normal distribution truncated at width standard
// deviations each side of the mean, by rejection.
type truncNorm struct {
	mean, stdDev, width float64
}

func (t truncNorm) rand(rng *rand.Rand) float64 {
	lo := t.mean - t.width*t.stdDev
	hi := t.mean + t.width*t.stdDev
	for {
		v := rng.NormFloat64()*t.stdDev + t.mean
		if v >= lo && v <= hi {
			return v
		}
	}
}

// LastRequestTime returns the arrival time of the final record, or 0 for an
// empty input.
func LastRequestTime(records []PassengerRecord) int64 {
	if len(records) == 0 {
		return 0
	}
	return records[len(records)-1].Time
}
