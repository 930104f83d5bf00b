package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
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

type RunMetadata struct {
	ID           string    `json:"id"`
	Problem      string    `json:"problem"`
	Timestamp    time.Time `json:"timestamp"`
	NDOF         int       `json:"ndof"`
	NDOFCoarse   int       `json:"ndof_coarse"`
	TEnd         float64   `json:"tend"`
	NSlices      int       `json:"nslices"`
	Fine         string    `json:"fine"`
	Coarse       string    `json:"coarse"`
	NStepsFine   int       `json:"nsteps_fine"`
	NStepsCoarse int       `json:"nsteps_coarse"`
	Tolerance    float64   `json:"tolerance"`
	IterMax      int       `json:"iter_max"`
	Iterations   int       `json:"iterations"`
	Converged    bool      `json:"converged"`
	// SerialError is ||parareal - serial fine|| at TEnd.
	SerialError float64 `json:"serial_error"`
	WallTime    float64 `json:"wall_time_seconds"`
}

// Save writes metadata.json, residuals.csv and final.csv into a new run
// directory and returns the run id.
func (s *Store) Save(meta RunMetadata, history []float64, final []float64) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runID := fmt.Sprintf("%s_%d", meta.Problem, meta.Timestamp.UnixNano())
	meta.ID = runID
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	err := writeFile(filepath.Join(runDir, "metadata.json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(history)+1)
	rows = append(rows, []string{"iteration", "max_residual"})
	for i, r := range history {
		rows = append(rows, []string{strconv.Itoa(i + 1), strconv.FormatFloat(r, 'e', 17, 64)})
	}
	if err := writeCSV(filepath.Join(runDir, "residuals.csv"), rows); err != nil {
		return "", err
	}

	rows = make([][]string, 0, len(final)+1)
	rows = append(rows, []string{"index", "value"})
	for i, v := range final {
		rows = append(rows, []string{strconv.Itoa(i), strconv.FormatFloat(v, 'e', 17, 64)})
	}
	if err := writeCSV(filepath.Join(runDir, "final.csv"), rows); err != nil {
		return "", err
	}

	return runID, nil
}

func writeCSV(path string, rows [][]string) error {
	return writeFile(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return closeAfter(f, write(f))
}

// closeAfter closes c and reports its error unless err is already set.
func closeAfter(c io.Closer, err error) error {
	cerr := c.Close()
	if err != nil {
		return err
	}
	return cerr
}

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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadHistory returns the residual recorded after each iteration.
func (s *Store) LoadHistory(runID string) ([]float64, error) {
	return s.loadColumn(runID, "residuals.csv")
}

// LoadFinal returns the final state vector.
func (s *Store) LoadFinal(runID string) ([]float64, error) {
	return s.loadColumn(runID, "final.csv")
}

func (s *Store) loadColumn(runID, name string) ([]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(records))
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, i+1, err)
		}
		values = append(values, v)
	}
	return values, nil
}
