package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

// ManifestFile is the manifest's name inside the output directory.
const ManifestFile = "manifest.yaml"

// Manifest describes one batch of output files.
type Manifest struct {
	RunID       string                       `yaml:"run_id,omitempty"`
	Input       string                       `yaml:"input"`
	GeneratedAt time.Time                    `yaml:"generated_at"`
	Files       []string                     `yaml:"files"`
	Counts      Counts                       `yaml:"counts"`
	Colors      map[string]model.ColorCounts `yaml:"colors"`
	Thresholds  scoring.Thresholds           `yaml:"thresholds"`
	Warnings    []model.Warning              `yaml:"warnings,omitempty"`
}

// Counts holds row counts per table.
type Counts struct {
	Puffs      int `yaml:"puffs"`
	Inhalers   int `yaml:"inhalers"`
	Treatments int `yaml:"treatments"`
	Days       int `yaml:"days"`
	Warnings   int `yaml:"warnings"`
}

// NewManifest summarizes res. Files are stored relative to the output
// directory.
func NewManifest(input string, res *model.Result, th scoring.Thresholds, files []string) Manifest {
	rel := make([]string, 0, len(files))
	for _, f := range files {
		rel = append(rel, filepath.Base(f))
	}
	return Manifest{
		Input:       input,
		GeneratedAt: time.Now().UTC(),
		Files:       rel,
		Counts: Counts{
			Puffs:      len(res.Puffs),
			Inhalers:   len(res.Inhalers),
			Treatments: len(res.Treatments),
			Days:       len(res.Days),
			Warnings:   len(res.Warnings),
		},
		Colors:     res.ColorCounts(),
		Thresholds: th,
		Warnings:   res.Warnings,
	}
}

// WriteManifest writes m to dir/manifest.yaml and returns the path.
func WriteManifest(dir string, m Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "export: marshal manifest")
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "export: write manifest %s", path)
	}
	return path, nil
}

// LoadManifest reads a manifest written by WriteManifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "export: parse manifest")
	}
	return &m, nil
}
