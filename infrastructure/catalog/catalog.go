// Package catalog holds the known-entity index: the activity and class
// names the engine can resolve a case to, with their file paths.
// A Catalog is loaded once at startup and is read-only afterwards, so it
// is safe for unlimited concurrent readers.
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-triage/internal/domain"
)

var validate = validator.New()

// File is the on-disk catalog document.
type File struct {
	// Entities lists every known entity. Names must be unique ignoring case.
	Entities []domain.Entity `yaml:"entities" validate:"dive"`
}

// Catalog is an immutable, case-insensitive index of known entities.
type Catalog struct {
	entities []domain.Entity
	byKey    map[string]int
}

// New builds a catalog from entities. Names are trimmed; empty names and
// names that collide after case folding are rejected.
func New(entities []domain.Entity) (*Catalog, error) {
	c := &Catalog{
		entities: make([]domain.Entity, 0, len(entities)),
		byKey:    make(map[string]int, len(entities)),
	}

	verr := domain.NewValidationError("catalog")
	for i, e := range entities {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			verr.AddError(fmt.Sprintf("entity %d: %v: name", i, domain.ErrEmptyValue))
			continue
		}
		key := Fold(e.Name)
		if prev, dup := c.byKey[key]; dup {
			verr.AddError(fmt.Sprintf("entity %d: name %q duplicates %q", i, e.Name, c.entities[prev].Name))
			continue
		}
		c.byKey[key] = len(c.entities)
		c.entities = append(c.entities, e)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	return c, nil
}

// FromNames builds a catalog from bare display names.
func FromNames(names ...string) (*Catalog, error) {
	entities := make([]domain.Entity, len(names))
	for i, n := range names {
		entities[i] = domain.Entity{Name: n}
	}
	return New(entities)
}

// Load decodes a YAML catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	return New(file.Entities)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Lookup finds an entity by name, ignoring case.
func (c *Catalog) Lookup(name string) (domain.Entity, bool) {
	if c == nil {
		return domain.Entity{}, false
	}
	i, ok := c.byKey[Fold(strings.TrimSpace(name))]
	if !ok {
		return domain.Entity{}, false
	}
	return c.entities[i], true
}

// Contains reports whether name is a known entity, ignoring case.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Entities returns a copy of the entities in load order.
func (c *Catalog) Entities() []domain.Entity {
	if c == nil {
		return nil
	}
	out := make([]domain.Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// Len returns the number of entities.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entities)
}

// Fold returns the Unicode case-folded form of s. A fresh caser is used
// per call because cases.Caser is not safe for concurrent use.
func Fold(s string) string {
	return cases.Fold().String(s)
}
