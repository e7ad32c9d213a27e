package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/moldyn/internal/props"
)

type ExportData struct {
	Run       RunMetadata     `json:"run"`
	Times     []float64       `json:"times"`
	Summaries []props.Summary `json:"summaries"`
}

// ExportJSON writes a run's metadata and property history as indented JSON.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	summaries, times, err := s.LoadSummaries(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: *meta, Times: times, Summaries: summaries})
}
