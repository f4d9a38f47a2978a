package store

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/smartlife/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the seed content for the mood store.
type Catalog struct {
	Songs      []CatalogSong     `yaml:"songs"`
	Activities []CatalogActivity `yaml:"activities"`
}

// CatalogSong is one song row in the catalog file.
type CatalogSong struct {
	Name string     `yaml:"name"`
	Link string     `yaml:"link"`
	Mood model.Mood `yaml:"mood"`
}

// CatalogActivity is one activity row in the catalog file.
type CatalogActivity struct {
	Mood     model.Mood `yaml:"mood"`
	Activity string     `yaml:"activity"`
}

// DefaultCatalog returns the catalog shipped with the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path returns the default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects rows with unknown moods or blank fields.
func (c Catalog) Validate() error {
	for i, s := range c.Songs {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Link) == "" {
			return &ValidationError{Field: fmt.Sprintf("songs[%d]", i), Reason: "name and link are required"}
		}
		if !s.Mood.Valid() {
			return &ValidationError{Field: fmt.Sprintf("songs[%d].mood", i), Reason: fmt.Sprintf("unknown mood %q", s.Mood)}
		}
	}
	for i, a := range c.Activities {
		if strings.TrimSpace(a.Activity) == "" {
			return &ValidationError{Field: fmt.Sprintf("activities[%d]", i), Reason: "activity is required"}
		}
		if !a.Mood.Valid() {
			return &ValidationError{Field: fmt.Sprintf("activities[%d].mood", i), Reason: fmt.Sprintf("unknown mood %q", a.Mood)}
		}
	}
	return nil
}
