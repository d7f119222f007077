package artifact

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// StageEntry records the last successful write of a stage's artifact.
type StageEntry struct {
	Artifact    string    `yaml:"artifact"`
	Rows        int       `yaml:"rows"`
	Skipped     int       `yaml:"skipped"`
	CompletedAt time.Time `yaml:"completed_at"`
	RunID       string    `yaml:"run_id,omitempty"`
	Window      string    `yaml:"window,omitempty"`
}

// Manifest is the data directory's index of stage outputs.
type Manifest struct {
	path   string
	Stages map[string]StageEntry `yaml:"stages"`
}

// LoadManifest reads path. A missing file yields an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path, Stages: make(map[string]StageEntry)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read manifest %s", path)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, eris.Wrapf(err, "artifact: parse manifest %s", path)
	}
	if m.Stages == nil {
		m.Stages = make(map[string]StageEntry)
	}
	return m, nil
}

// Record stores entry for stage in memory.
func (m *Manifest) Record(stage string, entry StageEntry) {
	m.Stages[stage] = entry
}

// Get returns the entry for stage.
func (m *Manifest) Get(stage string) (StageEntry, bool) {
	e, ok := m.Stages[stage]
	return e, ok
}

// Save writes the manifest atomically.
func (m *Manifest) Save() error {
	err := WriteAtomic(m.path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return eris.Wrapf(err, "artifact: save manifest %s", m.path)
	}
	return nil
}
