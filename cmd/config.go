package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ridehail-sim/ridehail-sim/sim"
	"github.com/ridehail-sim/ridehail-sim/sim/network"
)

// LoadConfig reads and validates a YAML run configuration. Unknown keys are
// rejected so typos surface immediately.
func LoadConfig(path string) (sim.Config, error) {
	var cfg sim.Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// LoadNetwork assembles the road network from the configured files: the
// edge list, the optional precomputed duration table, and the depots.
func LoadNetwork(cfg sim.Config) (*network.Network, error) {
	edges, err := network.LoadEdges(cfg.MapFile)
	if err != nil {
		return nil, err
	}

	var depots []int64
	if cfg.DepotFile != "" {
		if depots, err = network.LoadDepots(cfg.DepotFile); err != nil {
			return nil, err
		}
	}

	net, err := network.New(edges, depots)
	if err != nil {
		return nil, err
	}

	if cfg.ShortestPathTimeFile != "" {
		table, err := network.LoadDurationTable(cfg.ShortestPathTimeFile)
		if err != nil {
			return nil, err
		}
		net.SetDurationTable(table)
	}
	return net, nil
}
