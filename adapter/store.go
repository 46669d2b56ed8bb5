package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Artifact describes one saved rendered label.
type Artifact struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Ext      string    `json:"ext"`
}

// Store owns the save directory for rendered labels. No other component
// writes to it; filenames are timestamp-derived so concurrent saves never
// collide on a name.
type Store struct {
	dir string
}

// NewStore resolves the directory to an absolute path and creates it if
// missing. Safe to call repeatedly.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve save dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute save directory.
func (s *Store) Dir() string { return s.dir }

// Resolve maps an artifact name to an absolute path inside the save
// directory. Names that would escape the directory are rejected before
// any filesystem access.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	path := filepath.Join(s.dir, name)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// rel "." is the save directory itself, never a valid artifact.
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	return abs, nil
}

// Save writes an artifact and returns its absolute path.
func (s *Store) Save(name string, data []byte) (string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return path, nil
}

// List returns the artifacts with a known output extension, newest first.
func (s *Store) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(entry.Name())), ".")
		if !knownExt(ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:     entry.Name(),
			Path:     filepath.Join(s.dir, entry.Name()),
			Size:     info.Size(),
			Created:  createdFromName(entry.Name(), info.ModTime()),
			Modified: info.ModTime(),
			Ext:      ext,
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].Created.Equal(artifacts[j].Created) {
			return artifacts[i].Created.After(artifacts[j].Created)
		}
		return artifacts[i].Name > artifacts[j].Name
	})
	return artifacts, nil
}

// Delete removes a named artifact.
func (s *Store) Delete(name string) error {
	path, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// ContentTypeFor maps a file extension to the MIME type used when serving
// the artifact. Unrecognized extensions are served as opaque bytes.
func ContentTypeFor(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func knownExt(ext string) bool {
	return ext == "png" || ext == "pdf" || ext == "json"
}

// artifactName derives a filename from a timestamp, replacing the ":"
// and "." of the ISO form so the name is filesystem-safe everywhere.
func artifactName(t time.Time, f Format) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("label_%s.%s", stamp, f.Ext())
}

// createdFromName recovers the creation time embedded in a
// timestamp-derived filename, falling back to the file mtime for names
// that came from elsewhere. Portable stat only exposes mtime.
func createdFromName(name string, fallback time.Time) time.Time {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	stamp, ok := strings.CutPrefix(base, "label_")
	if !ok || len(stamp) < 19 {
		return fallback
	}
	t, err := time.Parse("2006-01-02T15-04-05", stamp[:19])
	if err != nil {
		return fallback
	}
	if len(stamp) >= 23 {
		if ms, err := time.ParseDuration(stamp[20:23] + "ms"); err == nil {
			t = t.Add(ms)
		}
	}
	return t.UTC()
}
