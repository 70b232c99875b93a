package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pressure-cli/internal/model"
)

// ManifestName is the file name of the run manifest in the output directory.
const ManifestName = "manifest.yaml"

// Manifest records what one run read and wrote.
type Manifest struct {
	RunID     string          `yaml:"run_id,omitempty"`
	CreatedAt time.Time       `yaml:"created_at"`
	Status    model.RunStatus `yaml:"status"`
	Inputs    []ManifestInput `yaml:"inputs"`
	Stages    []ManifestStage `yaml:"stages"`
	Files     []string        `yaml:"files"`
}

// ManifestInput is one fact table location and its load outcome.
type ManifestInput struct {
	Category string `yaml:"category"`
	Location string `yaml:"location"`
	Rows     int    `yaml:"rows"`
	Error    string `yaml:"error,omitempty"`
}

// ManifestStage is one stage outcome.
type ManifestStage struct {
	Name       string `yaml:"name"`
	Status     string `yaml:"status"`
	DurationMS int64  `yaml:"duration_ms"`
	Rows       int    `yaml:"rows"`
	Excluded   int    `yaml:"excluded,omitempty"`
	Warnings   int    `yaml:"warnings,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

// NewManifest assembles a manifest from a run's inputs, result and files.
func NewManifest(runID string, inputs model.RunInputs, result *model.Result, files []string) *Manifest {
	m := &Manifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Status:    result.Status(),
		Files:     files,
	}
	for _, c := range model.Categories {
		m.Inputs = append(m.Inputs, ManifestInput{
			Category: c.Key(),
			Location: inputs.Locations[c],
			Rows:     inputs.Rows[c],
			Error:    inputs.Errors[c],
		})
	}
	for _, s := range result.Stages {
		m.Stages = append(m.Stages, ManifestStage{
			Name:       s.Name,
			Status:     string(s.Status),
			DurationMS: s.Duration,
			Rows:       s.Rows,
			Excluded:   s.Excluded,
			Warnings:   s.Warnings,
			Error:      s.Error,
		})
	}
	return m
}

// WriteManifest writes m as manifest.yaml into the writer's directory and
// returns the file name.
func (w *Writer) WriteManifest(m *Manifest) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create dir %s", w.dir)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(filepath.Join(w.dir, ManifestName), data, 0o644); err != nil {
		return "", eris.Wrap(err, "export: write manifest")
	}
	return ManifestName, nil
}
