package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ridehail-sim/ridehail-sim/sim"
	"github.com/ridehail-sim/ridehail-sim/sim/workload"
)

var (
	configPath string // Path to the YAML run configuration
	seed       int64  // Master seed for all random streams
	logLevel   string // Log verbosity level
	outputPath string // Override for the configured output directory
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ridehail-sim",
	Short: "Discrete-event simulator for two-sided mobility markets",
}

// runCmd executes one simulation run from a YAML configuration
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mobility-market simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Unable to load configuration: %v", err)
		}
		if outputPath != "" {
			cfg.DataOutputPath = outputPath
		}

		logrus.Infof("Starting simulation: HV fleet=%d, AV fleet=%d, MPC disabled=%v, seed=%d",
			cfg.HVFleetSize, cfg.AVFleetSize, cfg.MPCDisabled, seed)

		startTime := time.Now()

		net, err := LoadNetwork(cfg)
		if err != nil {
			logrus.Fatalf("Unable to load road network: %v", err)
		}

		records, err := workload.LoadPassengerRecords(cfg.PassengerFile)
		if err != nil {
			logrus.Fatalf("Unable to load passenger records: %v", err)
		}

		s := sim.NewSimulator(cfg, net, seed)
		workload.Synthesize(records, s.Rng.ForSubsystem(sim.SubsystemDemand))
		s.LoadDemand(records)
		s.SeedFleet()
		s.ScheduleTicks()
		s.Run()

		if err := s.Stats.WriteCSV(cfg.DataOutputPath, cfg.OutputNumber); err != nil {
			logrus.Fatalf("Unable to write output: %v", err)
		}

		logrus.Infof("Simulation complete in %v: %d HV trips, %d AV trips, wage bill $%.2f",
			time.Since(startTime).Round(time.Millisecond),
			s.Market.HV.Trips, s.Market.AV.Trips, s.Market.TotalWage)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML run configuration")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for all random streams")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Override the configured output directory")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
