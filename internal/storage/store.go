// Package storage persists runs: one directory per run holding
// metadata.json and states.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

var (
	ErrNotFound  = errors.New("storage: run not found")
	ErrAmbiguous = errors.New("storage: run id prefix is ambiguous")
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes what produced a result. Columns names the state
// vector entries; missing names default to x0, x1, ...
type RunInfo struct {
	Model       string
	Integrator  string
	Controller  string
	Dt          float64
	Duration    float64
	Seed        int64
	NQ, NU, NZ  int
	Columns     []string
	Evaluations map[string]uint64
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Model       string             `json:"model"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Controller  string             `json:"controller"`
	NQ          int                `json:"nq"`
	NU          int                `json:"nu"`
	NZ          int                `json:"nz"`
	Columns     []string           `json:"columns"`
	Steps       int                `json:"steps"`
	Rejected    int                `json:"rejected,omitempty"`
	Projections int                `json:"projections"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
	Evaluations map[string]uint64  `json:"evaluations,omitempty"`
	Errors      []string           `json:"errors,omitempty"`
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func (s *Store) Save(info RunInfo, result *dynamo.Result) (string, error) {
	runID := fmt.Sprintf("%s-%s", info.Model, uuid.NewString())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	dim := 0
	if len(result.States) > 0 {
		dim = len(result.States[0])
	}
	columns := make([]string, dim)
	for i := range columns {
		if i < len(info.Columns) {
			columns[i] = info.Columns[i]
		} else {
			columns[i] = fmt.Sprintf("x%d", i)
		}
	}

	meta := RunMetadata{
		ID:          runID,
		Model:       info.Model,
		Timestamp:   time.Now(),
		Seed:        info.Seed,
		Dt:          info.Dt,
		Duration:    info.Duration,
		Integrator:  info.Integrator,
		Controller:  info.Controller,
		NQ:          info.NQ,
		NU:          info.NU,
		NZ:          info.NZ,
		Columns:     columns,
		Steps:       result.StepsTaken,
		Rejected:    result.Rejected,
		Projections: result.Projections,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
		Evaluations: info.Evaluations,
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, "states.csv"), columns, result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStates(path string, columns []string, result *dynamo.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := append([]string{"time"}, columns...)
	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
	}
	for i := range numControls {
		header = append(header, fmt.Sprintf("c%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	// controls apply over the step that starts at a state; the final state
	// has none and is padded with zeros
	for i := range result.States {
		row := make([]string, 0, len(header))
		row = append(row, formatFloat(result.Times[i]))
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		for j := range numControls {
			v := 0.0
			if i < len(result.Controls) && j < len(result.Controls[i]) {
				v = result.Controls[i][j]
			}
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// Resolve expands a unique prefix of a run ID.
func (s *Store) Resolve(prefix string) (string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	var match string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if entry.Name() == prefix {
			return prefix, nil
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
		}
		match = entry.Name()
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return match, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates reads the trajectory back. Each row holds the state entries
// followed by the controls, as written.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %s row %d: %w", runID, i+1, err)
		}
		row := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s row %d: %w", runID, i+1, err)
			}
			row = append(row, v)
		}
		times = append(times, t)
		states = append(states, row)
	}
	return states, times, nil
}

// Column returns one named series of a stored run.
func (s *Store) Column(runID, name string) ([]float64, []float64, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	idx := -1
	for i, c := range meta.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, fmt.Errorf("storage: run %s has no column %q", runID, name)
	}
	rows, times, err := s.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}
	series := make([]float64, len(rows))
	for i, r := range rows {
		series[i] = r[idx]
	}
	return series, times, nil
}
