package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/natsel/config"
)

// csvFile is an append-only CSV file that writes its header only while the
// file is still empty, so reruns into the same directory keep one header.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func openCSV(path string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &csvFile{f: f, headerWritten: info.Size() > 0}, nil
}

// write appends rows, which must be a slice of structs with csv tags.
func (c *csvFile) write(rows any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(rows, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(rows, c.f)
}

func (c *csvFile) close() error {
	if c == nil || c.f == nil {
		return nil
	}
	return c.f.Close()
}

// OutputManager handles the audit trail: generation summaries, per-creature
// details and predation events, each in its own CSV file.
type OutputManager struct {
	dir       string
	snapshots bool

	mu        sync.Mutex
	summary   *csvFile
	details   *csvFile
	predation *csvFile
}

// NewOutputManager creates the output directory and opens the audit files
// for appending. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string, out config.OutputConfig) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, snapshots: out.Snapshots}

	var err error
	if om.summary, err = openCSV(filepath.Join(dir, out.SummaryFile)); err != nil {
		return nil, fmt.Errorf("opening %s: %w", out.SummaryFile, err)
	}
	if om.details, err = openCSV(filepath.Join(dir, out.DetailsFile)); err != nil {
		om.summary.close()
		return nil, fmt.Errorf("opening %s: %w", out.DetailsFile, err)
	}
	if om.predation, err = openCSV(filepath.Join(dir, out.PredationFile)); err != nil {
		om.summary.close()
		om.details.close()
		return nil, fmt.Errorf("opening %s: %w", out.PredationFile, err)
	}

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration appends one summary row and the generation's detail rows.
// Both files are attempted even if the first write fails.
func (om *OutputManager) WriteGeneration(summary GenerationSummary, details []CreatureDetail) error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()

	var errs []error
	if err := om.summary.write([]GenerationSummary{summary}); err != nil {
		errs = append(errs, fmt.Errorf("writing summary: %w", err))
	}
	if len(details) > 0 {
		if err := om.details.write(details); err != nil {
			errs = append(errs, fmt.Errorf("writing details: %w", err))
		}
	}
	return errors.Join(errs...)
}

// WritePredation appends a predation event.
func (om *OutputManager) WritePredation(ev PredationEvent) error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()

	if err := om.predation.write([]PredationEvent{ev}); err != nil {
		return fmt.Errorf("writing predation event: %w", err)
	}
	return nil
}

// WriteSnapshot saves a generation snapshot when snapshots are enabled.
func (om *OutputManager) WriteSnapshot(s *Snapshot) error {
	if om == nil || !om.snapshots {
		return nil
	}
	_, err := SaveSnapshot(s, filepath.Join(om.dir, "snapshots"))
	return err
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	om.mu.Lock()
	defer om.mu.Unlock()

	return errors.Join(om.summary.close(), om.details.close(), om.predation.close())
}
