package report

import (
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/survey-sampler/internal/ingest"
	"github.com/sells-group/survey-sampler/internal/model"
)

// ManifestVersion is bumped when the manifest layout changes incompatibly.
const ManifestVersion = 1

// Manifest records everything needed to replay a sampling run.
type Manifest struct {
	Version     int            `yaml:"version"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Input       ManifestInput  `yaml:"input"`
	Columns     ingest.Columns `yaml:"columns"`
	Params      model.Params   `yaml:"params"`
	Seed        uint64         `yaml:"seed"`
	Totals      model.Totals   `yaml:"totals"`
	Warnings    int            `yaml:"warnings"`
}

// ManifestInput identifies the site table a run read.
type ManifestInput struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet,omitempty"`
}

// NewManifest builds a manifest for res. The params carry the effective seed
// so a replay draws the same clusters.
func NewManifest(res *model.Result, meta Meta, cols ingest.Columns) Manifest {
	p := res.Params
	seed := res.Seed
	p.Seed = &seed
	return Manifest{
		Version:     ManifestVersion,
		GeneratedAt: meta.GeneratedAt.UTC(),
		Input:       ManifestInput{Path: meta.Input, Sheet: meta.Sheet},
		Columns:     cols,
		Params:      p,
		Seed:        res.Seed,
		Totals:      res.Totals,
		Warnings:    len(res.Warnings),
	}
}

// ReplayParams returns the params to rerun the manifest's run.
func (m Manifest) ReplayParams() model.Params {
	p := m.Params
	seed := m.Seed
	p.Seed = &seed
	return p
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return eris.Wrap(err, "report: encode manifest")
	}
	return eris.Wrap(enc.Close(), "report: close manifest encoder")
}

// SaveManifest writes m to path.
func SaveManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create manifest %s", path)
	}
	if err := WriteManifest(f, m); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "report: close manifest %s", path)
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, eris.Wrapf(err, "report: read manifest %s", path)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, eris.Wrapf(err, "report: parse manifest %s", path)
	}
	if m.Version != ManifestVersion {
		return m, eris.Errorf("report: manifest %s has version %d, want %d", path, m.Version, ManifestVersion)
	}
	return m, nil
}
