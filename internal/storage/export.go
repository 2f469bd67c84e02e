package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	RunMetadata
	Times  []float64   `json:"times"`
	States [][]float64 `json:"states"`
}

// Export writes a stored run, metadata and trajectory, as one JSON document.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{RunMetadata: *meta, Times: times, States: states})
}
