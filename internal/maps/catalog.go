package maps

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	DefinitionFile = "map.yml"
	LevelFile      = "level.dat"
	ArchiveSuffix  = ".tar.zst"
)

// Catalog reads map definitions from a maps root, one directory per map.
type Catalog struct {
	root string
}

func NewCatalog(root string) *Catalog {
	return &Catalog{root: root}
}

func (c *Catalog) Root() string {
	return c.root
}

// Dir returns the template directory for a storage key.
func (c *Catalog) Dir(key string) string {
	return filepath.Join(c.root, key)
}

// Load reads and validates <root>/<key>/map.yml.
func (c *Catalog) Load(key string) (*Definition, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w: invalid key %q", ErrNotFound, key)
	}

	path := filepath.Join(c.root, key, DefinitionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	def, err := Parse(key, data)
	if err != nil {
		return nil, err
	}

	for team, points := range def.SpawnPoints {
		if len(points) == 0 {
			slog.Warn("map declares a team with no spawn points", "map", key, "team", team)
		}
	}

	return def, nil
}

// IsAvailable reports whether key has both a definition and world data.
func (c *Catalog) IsAvailable(key string) bool {
	return validKey(key) && isMapDir(filepath.Join(c.root, key))
}

// ListAvailable lists the catalog's playable maps.
func (c *Catalog) ListAvailable() ([]string, error) {
	return ListAvailable(c.root)
}

// ListAvailable returns the sorted storage keys under root whose directory
// holds a definition plus persisted world data, either a level file or a
// compressed world archive.
func ListAvailable(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading maps root %s: %w", root, err)
	}

	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if isMapDir(filepath.Join(root, e.Name())) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)

	return keys, nil
}

func isMapDir(dir string) bool {
	if !fileExists(filepath.Join(dir, DefinitionFile)) {
		return false
	}
	if fileExists(filepath.Join(dir, LevelFile)) {
		return true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ArchiveSuffix) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && fs.ValidPath(key) && !strings.ContainsAny(key, `/\`)
}
