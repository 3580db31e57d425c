// Collector accumulates output records during a run and flushes them to
// per-stream CSV files at the end.

package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Collector is the set of append-only output streams. It is owned by the
// simulation loop; triggers append records directly.
type Collector struct {
	Vehicles     []VehicleRecord
	Passengers   []PassengerRecord
	Expirations  []ExpirationRecord
	Assignments  []AssignmentRecord
	Utilisations []UtilisationRecord
	Predictions  []PredictionRecord
	Controls     []ControlRecord
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// WriteCSV flushes every stream into dir/<run>/, creating directories as
// needed. The run number namespaces repeated experiments.
func (c *Collector) WriteCSV(dir string, run int) error {
	outDir := filepath.Join(dir, fmt.Sprintf("run_%d", run))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	writers := []struct {
		name   string
		header []string
		rows   func() [][]string
	}{
		{"vehicle_data", []string{"v_id", "is_HV", "neoclassical", "hourly_cost", "target_income", "income", "time", "activation"}, c.vehicleRows},
		{"passenger_data", []string{"p_id", "request_t", "trip_d", "trip_t", "VoT", "fare", "prefer_HV"}, c.passengerRows},
		{"expiration_data", []string{"p_id", "expire_t"}, c.expirationRows},
		{"assignment_data", []string{"v_id", "p_id", "is_HV", "dispatch_t", "meeting_t", "delivery_t"}, c.assignmentRows},
		{"utilisation_data", []string{"time", "v_id", "trip_utilisation"}, c.utilisationRows},
		{"prediction_data", []string{"time", "failed", "kind", "state", "trajectory"}, c.predictionRows},
		{"control_data", []string{"time", "failed", "HV_fare", "AV_fare", "AV_fleet_delta", "objective"}, c.controlRows},
	}

	for _, w := range writers {
		if err := writeStream(filepath.Join(outDir, w.name+".csv"), w.header, w.rows()); err != nil {
			return fmt.Errorf("writing %s: %w", w.name, err)
		}
	}
	return nil
}

func writeStream(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (c *Collector) vehicleRows() [][]string {
	rows := make([][]string, 0, len(c.Vehicles))
	for _, r := range c.Vehicles {
		rows = append(rows, []string{
			strconv.Itoa(r.VehicleID),
			strconv.FormatBool(r.IsHV),
			strconv.FormatBool(r.Neoclassical),
			formatFloat(r.HourlyCost),
			formatFloat(r.TargetIncome),
			formatFloat(r.Income),
			strconv.FormatInt(r.Time, 10),
			strconv.FormatBool(r.Activation),
		})
	}
	return rows
}

func (c *Collector) passengerRows() [][]string {
	rows := make([][]string, 0, len(c.Passengers))
	for _, r := range c.Passengers {
		rows = append(rows, []string{
			strconv.Itoa(r.PassengerID),
			strconv.FormatInt(r.RequestTime, 10),
			formatFloat(r.TripDistance),
			strconv.FormatInt(r.TripDuration, 10),
			formatFloat(r.ValueOfTime),
			formatFloat(r.Fare),
			r.PreferHV,
		})
	}
	return rows
}

func (c *Collector) expirationRows() [][]string {
	rows := make([][]string, 0, len(c.Expirations))
	for _, r := range c.Expirations {
		rows = append(rows, []string{
			strconv.Itoa(r.PassengerID),
			strconv.FormatInt(r.ExpireTime, 10),
		})
	}
	return rows
}

func (c *Collector) assignmentRows() [][]string {
	rows := make([][]string, 0, len(c.Assignments))
	for _, r := range c.Assignments {
		rows = append(rows, []string{
			strconv.Itoa(r.VehicleID),
			strconv.Itoa(r.PassengerID),
			strconv.FormatBool(r.IsHV),
			strconv.FormatInt(r.DispatchTime, 10),
			strconv.FormatInt(r.MeetingTime, 10),
			strconv.FormatInt(r.DeliveryTime, 10),
		})
	}
	return rows
}

func (c *Collector) utilisationRows() [][]string {
	rows := make([][]string, 0, len(c.Utilisations))
	for _, r := range c.Utilisations {
		rows = append(rows, []string{
			strconv.FormatInt(r.Time, 10),
			strconv.Itoa(r.VehicleID),
			formatFloat(r.TripUtilisation),
		})
	}
	return rows
}

func (c *Collector) predictionRows() [][]string {
	var rows [][]string
	for _, r := range c.Predictions {
		states := []struct {
			kind  string
			state string
			traj  []float64
		}{
			{"HV", "pw", r.HVWaiting}, {"HV", "nv", r.HVVacant},
			{"HV", "na", r.HVAssigned}, {"HV", "no", r.HVOccupied},
			{"AV", "pw", r.AVWaiting}, {"AV", "nv", r.AVVacant},
			{"AV", "na", r.AVAssigned}, {"AV", "no", r.AVOccupied},
		}
		for _, s := range states {
			rows = append(rows, []string{
				strconv.FormatInt(r.Time, 10),
				strconv.FormatBool(r.Failed),
				s.kind,
				s.state,
				formatTrajectory(s.traj),
			})
		}
	}
	return rows
}

func (c *Collector) controlRows() [][]string {
	rows := make([][]string, 0, len(c.Controls))
	for _, r := range c.Controls {
		rows = append(rows, []string{
			strconv.FormatInt(r.Time, 10),
			strconv.FormatBool(r.Failed),
			formatFloat(r.HVFare),
			formatFloat(r.AVFare),
			formatFloat(r.AVFleetDelta),
			formatFloat(r.Objective),
		})
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatTrajectory(traj []float64) string {
	parts := make([]string, len(traj))
	for i, v := range traj {
		parts[i] = strconv.FormatFloat(v, 'f', 3, 64)
	}
	return strings.Join(parts, " ")
}
