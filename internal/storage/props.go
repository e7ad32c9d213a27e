package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/moldyn/internal/props"
)

var propsHeader = []string{
	"step", "time", "vel_sum",
	"kinetic", "kinetic_sd",
	"potential", "potential_sd",
	"total", "total_sd",
	"pressure", "pressure_sd",
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// SaveSummaries writes summaries to props.csv, timing each row by dt.
func (s *Store) SaveSummaries(runID string, dt float64, summaries []props.Summary) error {
	f, err := os.Create(filepath.Join(s.RunDir(runID), propsFile))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(propsHeader); err != nil {
		return err
	}
	for _, sm := range summaries {
		row := []string{
			strconv.Itoa(sm.Step),
			formatFloat(dt * float64(sm.Step)),
			formatFloat(sm.VelSum),
			formatFloat(sm.Kinetic), formatFloat(sm.KineticSD),
			formatFloat(sm.Potential), formatFloat(sm.PotentialSD),
			formatFloat(sm.Total), formatFloat(sm.TotalSD),
			formatFloat(sm.Pressure), formatFloat(sm.PressureSD),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// LoadSummaries reads props.csv back, returning the summaries and their times.
func (s *Store) LoadSummaries(runID string) ([]props.Summary, []float64, error) {
	f, err := os.Open(filepath.Join(s.RunDir(runID), propsFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(propsHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %s: %w", propsFile, err)
	}
	if len(records) < 2 {
		return []props.Summary{}, []float64{}, nil
	}

	summaries := make([]props.Summary, 0, len(records)-1)
	times := make([]float64, 0, len(records)-1)
	for line, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %s line %d: %w", propsFile, line+2, err)
		}
		vals := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			vals[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s line %d: %w", propsFile, line+2, err)
			}
		}

		times = append(times, vals[0])
		summaries = append(summaries, props.Summary{
			Step:        step,
			VelSum:      vals[1],
			Kinetic:     vals[2],
			KineticSD:   vals[3],
			Potential:   vals[4],
			PotentialSD: vals[5],
			Total:       vals[6],
			TotalSD:     vals[7],
			Pressure:    vals[8],
			PressureSD:  vals[9],
		})
	}
	return summaries, times, nil
}
