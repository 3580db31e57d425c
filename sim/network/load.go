// CSV loaders for the road graph, the dense shortest-path travel-time
// table, and the depot node set.

package network

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// LoadEdges reads a directed edge list CSV with header
// source,target,length,travel_time.
func LoadEdges(path string) ([]Edge, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("edge file %s has no data rows", path)
	}

	edges := make([]Edge, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 4 {
			return nil, fmt.Errorf("edge file %s row %d: want 4 columns, got %d", path, i+2, len(row))
		}
		source, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edge file %s row %d source: %w", path, i+2, err)
		}
		target, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edge file %s row %d target: %w", path, i+2, err)
		}
		length, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("edge file %s row %d length: %w", path, i+2, err)
		}
		tt, err := strconv.ParseInt(row[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edge file %s row %d travel_time: %w", path, i+2, err)
		}
		edges = append(edges, Edge{Source: source, Target: target, Length: length, TravelTime: tt})
	}
	return edges, nil
}

// LoadDurationTable reads a dense node-pair travel-time matrix. The first
// row holds destination node ids (first cell ignored); each subsequent row
// holds the origin node id followed by one duration per destination.
func LoadDurationTable(path string) (map[int64]map[int64]int64, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("duration table %s has no data rows", path)
	}

	header := rows[0]
	targets := make([]int64, 0, len(header)-1)
	for _, cell := range header[1:] {
		id, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("duration table %s header: %w", path, err)
		}
		targets = append(targets, id)
	}

	table := make(map[int64]map[int64]int64, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(targets)+1 {
			return nil, fmt.Errorf("duration table %s row %d: want %d columns, got %d",
				path, i+2, len(targets)+1, len(row))
		}
		origin, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("duration table %s row %d origin: %w", path, i+2, err)
		}
		entry := make(map[int64]int64, len(targets))
		for j, cell := range row[1:] {
			d, err := strconv.ParseInt(cell, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("duration table %s row %d col %d: %w", path, i+2, j+2, err)
			}
			entry[targets[j]] = d
		}
		table[origin] = entry
	}
	return table, nil
}

// LoadDepots reads a single-column CSV of depot node ids with header node.
func LoadDepots(path string) ([]int64, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	depots := make([]int64, 0, len(rows))
	for i, row := range rows[1:] {
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("depot file %s row %d: %w", path, i+2, err)
		}
		depots = append(depots, id)
	}
	return depots, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	return r.ReadAll()
}
