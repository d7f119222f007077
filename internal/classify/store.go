package classify

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/artifact"
)

// BackupLayout is the timestamp format of cache backup file suffixes.
const BackupLayout = "20060102-150405"

// Store is the durable channel→label mapping. It is read once, mutated in
// memory, and written back by Flush.
type Store struct {
	path    string
	entries map[string]string
	dirty   bool
	now     func() time.Time
}

// LoadStore reads the cache file at path. A missing file yields an empty store.
func LoadStore(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]string), now: time.Now}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read cache %s", path)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, eris.Wrapf(err, "classify: parse cache %s", path)
	}
	// A literal null decodes to a nil map.
	if s.entries == nil {
		s.entries = make(map[string]string)
	}
	return s, nil
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Get returns the cached label for channel.
func (s *Store) Get(channel string) (string, bool) {
	l, ok := s.entries[channel]
	return l, ok
}

// Put records label for channel in memory.
func (s *Store) Put(channel, label string) {
	if cur, ok := s.entries[channel]; ok && cur == label {
		return
	}
	s.entries[channel] = label
	s.dirty = true
}

// Len returns the number of cached channels.
func (s *Store) Len() int { return len(s.entries) }

// Dirty reports whether there are changes not yet flushed.
func (s *Store) Dirty() bool { return s.dirty }

// Channels returns the cached channel names, sorted.
func (s *Store) Channels() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// Flush writes the mapping back to disk if it changed. The previous file, if
// any, is first copied to <path>.<timestamp>.bak. Keys are written sorted.
// It returns the backup path, or "" when no backup was needed.
func (s *Store) Flush() (string, error) {
	if !s.dirty {
		return "", nil
	}

	backup, err := s.backup()
	if err != nil {
		return "", err
	}

	err = artifact.WriteAtomic(s.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(s.entries)
	})
	if err != nil {
		return backup, eris.Wrapf(err, "classify: write cache %s", s.path)
	}

	s.dirty = false
	zap.L().Info("classify: cache flushed",
		zap.String("path", s.path),
		zap.Int("channels", len(s.entries)),
		zap.String("backup", backup),
	)
	return backup, nil
}

func (s *Store) backup() (string, error) {
	prev, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "classify: read cache for backup %s", s.path)
	}

	dst := s.path + "." + s.now().Format(BackupLayout) + ".bak"
	err = artifact.WriteAtomic(dst, func(w io.Writer) error {
		_, err := w.Write(prev)
		return err
	})
	if err != nil {
		return "", eris.Wrapf(err, "classify: write backup %s", dst)
	}
	return dst, nil
}
