package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
)

var ErrCorrupt = errors.New("storage: corrupt run")

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

// fixed leading columns of samples.csv; state columns follow
var sampleHeader = []string{"t", "sp", "pv", "u", "auto"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string                  `json:"id"`
	Name       string                  `json:"name"`
	Plant      string                  `json:"plant"`
	Timestamp  time.Time               `json:"timestamp"`
	Dt         float64                 `json:"dt"`
	Duration   float64                 `json:"duration"`
	Integrator string                  `json:"integrator"`
	Steps      int                     `json:"steps"`
	Controller config.ControllerConfig `json:"controller"`
	OpenLoop   *float64                `json:"open_loop,omitempty"`
	Metrics    map[string]float64      `json:"metrics"`
}

// Save writes the run's metadata and samples under a new run directory
// and returns its ID.
func (s *Store) Save(cfg *config.Config, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Name:       cfg.Name,
		Plant:      cfg.Plant,
		Timestamp:  now,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Steps:      result.Steps,
		Controller: cfg.Controller,
		OpenLoop:   cfg.OpenLoop,
		Metrics:    result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteCSV writes one row per sample: t, sp, pv, u, auto, then the state.
func WriteCSV(out io.Writer, result *dynamo.Result) error {
	w := csv.NewWriter(out)

	header := append([]string(nil), sampleHeader...)
	if len(result.States) > 0 {
		for i := range result.States[0] {
			header = append(header, fmt.Sprintf("x%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.Times {
		row := []string{
			formatFloat(result.Times[i]),
			formatFloat(result.SetPoints[i]),
			formatFloat(result.PV[i]),
			formatFloat(result.Outputs[i]),
			strconv.FormatBool(result.Auto[i]),
		}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// List returns all readable runs, oldest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, runID, err)
	}

	return &meta, nil
}

// LoadResult rebuilds the recorded trajectory of a run, with the metrics
// from its metadata.
func (s *Store) LoadResult(runID string) (*dynamo.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	result.Metrics = meta.Metrics
	return result, nil
}

// ReadCSV parses rows written by WriteCSV.
func ReadCSV(in io.Reader) (*dynamo.Result, error) {
	r := csv.NewReader(in)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	if len(records[0]) < len(sampleHeader) {
		return nil, fmt.Errorf("%w: short header %v", ErrCorrupt, records[0])
	}

	result := &dynamo.Result{Metrics: make(map[string]float64)}
	for line, record := range records[1:] {
		var vals [4]float64
		for j := range vals {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, line+2, err)
			}
			vals[j] = v
		}
		auto, err := strconv.ParseBool(record[4])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, line+2, err)
		}

		state := make(dynamo.State, 0, len(record)-len(sampleHeader))
		for _, field := range record[len(sampleHeader):] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, line+2, err)
			}
			state = append(state, v)
		}

		result.Times = append(result.Times, vals[0])
		result.SetPoints = append(result.SetPoints, vals[1])
		result.PV = append(result.PV, vals[2])
		result.Outputs = append(result.Outputs, vals[3])
		result.Auto = append(result.Auto, auto)
		result.States = append(result.States, state)
		result.Steps++
	}

	return result, nil
}

// ExportJSON writes the whole run, trajectory included, as one document.
func ExportJSON(w io.Writer, cfg *config.Config, result *dynamo.Result) error {
	data := struct {
		Name       string                  `json:"name"`
		Plant      string                  `json:"plant"`
		Integrator string                  `json:"integrator"`
		Dt         float64                 `json:"dt"`
		Duration   float64                 `json:"duration"`
		Controller config.ControllerConfig `json:"controller"`
		Steps      int                     `json:"steps"`
		Times      []float64               `json:"times"`
		SetPoints  []float64               `json:"setpoints"`
		PV         []float64               `json:"pv"`
		Outputs    []float64               `json:"outputs"`
		Auto       []bool                  `json:"auto"`
		States     []dynamo.State          `json:"states"`
		Metrics    map[string]float64      `json:"metrics"`
	}{
		Name:       cfg.Name,
		Plant:      cfg.Plant,
		Integrator: cfg.Integrator,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Controller: cfg.Controller,
		Steps:      result.Steps,
		Times:      result.Times,
		SetPoints:  result.SetPoints,
		PV:         result.PV,
		Outputs:    result.Outputs,
		Auto:       result.Auto,
		States:     result.States,
		Metrics:    result.Metrics,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
