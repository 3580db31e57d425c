// Simulation configuration. The cmd layer decodes the YAML file into this
// struct; Validate runs before any event is scheduled so configuration
// errors are fatal up front.

package sim

import "fmt"

// Config enumerates every runtime option of the simulator.
type Config struct {
	PassengerFile        string `yaml:"passenger_file"`
	MapFile              string `yaml:"map_file"`
	ShortestPathTimeFile string `yaml:"shortest_path_time_file"`
	DepotFile            string `yaml:"depot_file"`

	HVFleetSize   int `yaml:"HV_fleet_size"`
	AVFleetSize   int `yaml:"AV_fleet_size"`
	AVInitialSize int `yaml:"AV_initial_size"`

	MatchInterval      int64 `yaml:"match_interval"`       // seconds between Assign ticks
	DefaultWaitingTime int64 `yaml:"default_waiting_time"` // nearest-vehicle ETA fallback, seconds

	// MaximumWorkDuration is the HV shift cap in seconds. A pointer so an
	// explicit 0 (every driver exits at the first exit check) survives
	// defaulting; nil takes the 8-hour default.
	MaximumWorkDuration *int64 `yaml:"maximum_work_duration"`

	AVBatteryCapacity float64 `yaml:"AV_battery_capacity"` // kWh at activation

	MPCStartHour       int   `yaml:"MPC_start_hour"`
	MPCEndHour         int   `yaml:"MPC_end_hour"`
	MPCControlInterval int64 `yaml:"MPC_control_interval"` // tau_c, seconds
	MPCPredictionStep  int64 `yaml:"MPC_prediction_interval"` // tau_k, seconds
	MPCSteps           int   `yaml:"MPC_steps"`            // N
	MPCControlSteps    int   `yaml:"MPC_control_steps"`    // Nc
	MPCDisabled        bool  `yaml:"MPC_disabled"`

	Neoclassical float64 `yaml:"neoclassical"` // fraction of HV drivers, [0,1]

	DataOutputPath string `yaml:"data_output_path"`
	OutputNumber   int    `yaml:"output_number"`

	Economics Economics `yaml:"economics"`
}

// Economics groups the market constants of a run. Zero values are replaced
// by defaults in ApplyDefaults.
type Economics struct {
	HVBaseFare float64 `yaml:"HV_base_fare"` // $
	AVBaseFare float64 `yaml:"AV_base_fare"` // $
	HVUnitFare float64 `yaml:"HV_unit_fare"` // $/hr
	AVUnitFare float64 `yaml:"AV_unit_fare"` // $/hr
	HVWage     float64 `yaml:"HV_wage"`      // $/hr

	HourlyCostMean   float64 `yaml:"hourly_cost_mean"`   // HV reservation cost, $/hr
	TargetIncomeMean float64 `yaml:"target_income_mean"` // income-targeting threshold, $

	// Mode-choice utility parameters shared by all passengers; per-record
	// values in the input override these.
	ChoiceScale    float64 `yaml:"choice_scale"`
	ConstHV        float64 `yaml:"const_HV"`
	ConstAV        float64 `yaml:"const_AV"`
	ConstOutside   float64 `yaml:"const_outside"`
	FareCoefHV     float64 `yaml:"fare_coef_HV"`
	FareCoefAV     float64 `yaml:"fare_coef_AV"`
	OutsideScale   float64 `yaml:"outside_scale"`
	VoTMean        float64 `yaml:"VoT_mean"` // representative value of time, $/s

	// MPC economics.
	ExpirationBeta    float64 `yaml:"expiration_beta"`
	HalfExitRatio     float64 `yaml:"half_exit_ratio"`
	AVOperatingCost   float64 `yaml:"AV_operating_cost"` // $/s per engaged AV
	AVVacantCost      float64 `yaml:"AV_vacant_cost"`    // $/s per vacant AV
	ExpirationPenalty float64 `yaml:"expiration_penalty"`
	OutsidePenalty    float64 `yaml:"outside_penalty"`
	FareMin           float64 `yaml:"fare_min"` // $/hr
	FareMax           float64 `yaml:"fare_max"` // $/hr
}

// ApplyDefaults fills unset options with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.MatchInterval == 0 {
		c.MatchInterval = 5
	}
	if c.DefaultWaitingTime == 0 {
		c.DefaultWaitingTime = 1200
	}
	if c.MaximumWorkDuration == nil {
		d := int64(8 * 3600)
		c.MaximumWorkDuration = &d
	}
	if c.AVBatteryCapacity == 0 {
		c.AVBatteryCapacity = 50.0
	}
	if c.MPCControlInterval == 0 {
		c.MPCControlInterval = 300
	}
	if c.MPCPredictionStep == 0 {
		c.MPCPredictionStep = 60
	}
	if c.MPCSteps == 0 {
		c.MPCSteps = 30
	}
	if c.MPCControlSteps == 0 {
		c.MPCControlSteps = 3
	}
	if c.DataOutputPath == "" {
		c.DataOutputPath = "output"
	}

	e := &c.Economics
	if e.HVBaseFare == 0 {
		e.HVBaseFare = 2.5
	}
	if e.AVBaseFare == 0 {
		e.AVBaseFare = 1.0
	}
	if e.HVUnitFare == 0 {
		e.HVUnitFare = 36.0
	}
	if e.AVUnitFare == 0 {
		e.AVUnitFare = 36.0
	}
	if e.HVWage == 0 {
		e.HVWage = 25.0
	}
	if e.HourlyCostMean == 0 {
		e.HourlyCostMean = 20.0
	}
	if e.TargetIncomeMean == 0 {
		e.TargetIncomeMean = 150.0
	}
	if e.ChoiceScale == 0 {
		e.ChoiceScale = 0.3
	}
	if e.FareCoefHV == 0 {
		e.FareCoefHV = 1.0
	}
	if e.FareCoefAV == 0 {
		e.FareCoefAV = 1.0
	}
	if e.ConstOutside == 0 {
		e.ConstOutside = 30.0
	}
	if e.OutsideScale == 0 {
		e.OutsideScale = 1.0
	}
	if e.VoTMean == 0 {
		e.VoTMean = 50.0 / 3600.0
	}
	if e.ExpirationBeta == 0 {
		e.ExpirationBeta = 0.5
	}
	if e.HalfExitRatio == 0 {
		e.HalfExitRatio = 0.5
	}
	if e.AVOperatingCost == 0 {
		e.AVOperatingCost = 12.0 / 3600.0
	}
	if e.AVVacantCost == 0 {
		e.AVVacantCost = 6.0 / 3600.0
	}
	if e.ExpirationPenalty == 0 {
		e.ExpirationPenalty = 10.0
	}
	if e.OutsidePenalty == 0 {
		e.OutsidePenalty = 5.0
	}
	if e.FareMax == 0 {
		e.FareMax = 180.0
	}
}

// Validate reports the first configuration inconsistency found.
func (c *Config) Validate() error {
	if c.PassengerFile == "" {
		return fmt.Errorf("passenger_file is required")
	}
	if c.MapFile == "" {
		return fmt.Errorf("map_file is required")
	}
	if c.HVFleetSize < 0 || c.AVFleetSize < 0 {
		return fmt.Errorf("fleet sizes must be non-negative (HV=%d, AV=%d)", c.HVFleetSize, c.AVFleetSize)
	}
	if c.AVInitialSize < 0 || c.AVInitialSize > c.AVFleetSize {
		return fmt.Errorf("AV_initial_size %d must be within [0, AV_fleet_size=%d]", c.AVInitialSize, c.AVFleetSize)
	}
	if c.AVFleetSize > 0 && c.DepotFile == "" {
		return fmt.Errorf("depot_file is required when AV_fleet_size > 0")
	}
	if c.MatchInterval <= 0 {
		return fmt.Errorf("match_interval must be positive, got %d", c.MatchInterval)
	}
	if c.MaximumWorkDuration != nil && *c.MaximumWorkDuration < 0 {
		return fmt.Errorf("maximum_work_duration must be non-negative, got %d", *c.MaximumWorkDuration)
	}
	if c.Neoclassical < 0 || c.Neoclassical > 1 {
		return fmt.Errorf("neoclassical fraction %.2f outside [0,1]", c.Neoclassical)
	}
	if !c.MPCDisabled {
		if c.MPCEndHour < c.MPCStartHour {
			return fmt.Errorf("MPC window [%d,%d) is empty", c.MPCStartHour, c.MPCEndHour)
		}
		if c.MPCControlInterval%c.MPCPredictionStep != 0 {
			return fmt.Errorf("MPC_control_interval %d must be a multiple of MPC_prediction_interval %d",
				c.MPCControlInterval, c.MPCPredictionStep)
		}
		if c.MPCControlSteps <= 0 || c.MPCControlSteps > c.MPCSteps {
			return fmt.Errorf("MPC_control_steps %d must be within (0, MPC_steps=%d]", c.MPCControlSteps, c.MPCSteps)
		}
	}
	return nil
}
