// Package recipe serves the healthy recipe catalog grouped by meal category.
package recipe

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed recipes.yaml
var defaultRecipes []byte

// Meal categories in display order.
const (
	Breakfast = "Breakfast"
	Lunch     = "Lunch"
	Dinner    = "Dinner"
	Snacks    = "Snacks"
)

// ErrNotFound is returned when no recipe has the requested name.
var ErrNotFound = errors.New("recipe not found")

// Categories returns the meal categories in display order.
func Categories() []string {
	return []string{Breakfast, Lunch, Dinner, Snacks}
}

// Nutrition is the per-serving breakdown shown on a recipe.
type Nutrition struct {
	Calories int `yaml:"calories" json:"calories"`
	Vitamin  int `yaml:"vitamin" json:"vitamin"`
	Protein  int `yaml:"protein" json:"protein"`
}

type Recipe struct {
	Name        string    `yaml:"name" json:"name"`
	Category    string    `yaml:"category" json:"category"`
	Popular     bool      `yaml:"popular" json:"popular"`
	Ingredients []string  `yaml:"ingredients" json:"ingredients"`
	Calories    int       `yaml:"calories" json:"calories"`
	Nutrition   Nutrition `yaml:"nutrition" json:"nutrition"`
	Steps       []string  `yaml:"steps" json:"steps"`
}

// Book is a validated, read-only set of recipes. It is safe for
// concurrent use.
type Book struct {
	recipes []Recipe
}

// Default returns the recipes shipped with the binary.
func Default() (*Book, error) {
	return Parse(defaultRecipes)
}

// Load reads a recipe file. An empty path returns the default recipes.
func Load(path string) (*Book, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}
	return Parse(b)
}

// Parse decodes recipe YAML and rejects unknown categories, blank names
// and duplicate names.
func Parse(b []byte) (*Book, error) {
	var doc struct {
		Recipes []Recipe `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse recipes: %w", err)
	}

	seen := make(map[string]bool, len(doc.Recipes))
	for i, r := range doc.Recipes {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("recipes[%d]: name is required", i)
		}
		if !validCategory(r.Category) {
			return nil, fmt.Errorf("recipe %q: unknown category %q", name, r.Category)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("recipe %q: duplicate name", name)
		}
		seen[key] = true
		doc.Recipes[i].Name = name
	}
	return &Book{recipes: doc.Recipes}, nil
}

func validCategory(c string) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// All returns every recipe in file order.
func (b *Book) All() []Recipe {
	return append([]Recipe(nil), b.recipes...)
}

// ByCategory returns the recipes of a category. The match is exact; an
// unknown category yields an empty list.
func (b *Book) ByCategory(category string) []Recipe {
	out := []Recipe{}
	for _, r := range b.recipes {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Popular returns the featured recipes.
func (b *Book) Popular() []Recipe {
	out := []Recipe{}
	for _, r := range b.recipes {
		if r.Popular {
			out = append(out, r)
		}
	}
	return out
}

// Find looks a recipe up by name, ignoring case and surrounding space.
func (b *Book) Find(name string) (Recipe, error) {
	name = strings.TrimSpace(name)
	for _, r := range b.recipes {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return Recipe{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}
