package images

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store writes image files under a date-stamped, slug-keyed tree below the
// configured media root, e.g. b2b/2026/08/30/<slug>/<file>.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Save writes data and returns the path relative to the media root.
func (s *Store) Save(slug, filename string, at time.Time, data []byte) (string, error) {
	relDir := filepath.Join(
		"b2b",
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%02d", at.Day()),
		slug,
	)
	dir := filepath.Join(s.root, relDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	relPath := filepath.Join(relDir, filename)
	if err := os.WriteFile(filepath.Join(s.root, relPath), data, 0o644); err != nil {
		return "", err
	}
	return relPath, nil
}
