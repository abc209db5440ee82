// Package fields holds the canonical spec-sheet fields, their printed-label aliases, and the
// matcher that resolves a raw label to a canonical field.
package fields

import (
	"errors"
	"fmt"
	"strings"
)

// Definition is one canonical field and the label texts that may be printed for it.
type Definition struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// Set is an ordered, immutable list of field definitions. Its order is the column order of
// every row and spreadsheet produced from it.
type Set struct {
	defs []Definition
}

// ErrEmptySet is returned when a field set has no definitions.
var ErrEmptySet = errors.New("field set is empty")

// NewSet validates defs and returns a Set holding a private copy of them.
// A definition without aliases is matched by its own name.
func NewSet(defs []Definition) (*Set, error) {
	if len(defs) == 0 {
		return nil, ErrEmptySet
	}
	seen := make(map[string]bool, len(defs))
	out := make([]Definition, 0, len(defs))
	for i, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("field %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("field %q: duplicate name", name)
		}
		seen[name] = true
		aliases := make([]string, 0, len(d.Aliases))
		for _, a := range d.Aliases {
			if strings.TrimSpace(a) != "" {
				aliases = append(aliases, a)
			}
		}
		if len(aliases) == 0 {
			aliases = append(aliases, name)
		}
		out = append(out, Definition{Name: name, Aliases: aliases})
	}
	return &Set{defs: out}, nil
}

// MustNewSet is like NewSet but panics on invalid definitions. Intended for built-in sets.
func MustNewSet(defs []Definition) *Set {
	s, err := NewSet(defs)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns the canonical field names in order.
func (s *Set) Columns() []string {
	cols := make([]string, len(s.defs))
	for i, d := range s.defs {
		cols[i] = d.Name
	}
	return cols
}

// Definitions returns a copy of the definitions in order.
func (s *Set) Definitions() []Definition {
	out := make([]Definition, len(s.defs))
	for i, d := range s.defs {
		out[i] = Definition{Name: d.Name, Aliases: append([]string(nil), d.Aliases...)}
	}
	return out
}

// Len returns the number of fields.
func (s *Set) Len() int {
	return len(s.defs)
}

// EmptyRow returns a value map with every column set to "".
func (s *Set) EmptyRow() map[string]string {
	row := make(map[string]string, len(s.defs))
	for _, d := range s.defs {
		row[d.Name] = ""
	}
	return row
}

// DefaultDefinitions returns the built-in spec-sheet fields.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "customer", Aliases: []string{"customer"}},
		{Name: "design", Aliases: []string{"design"}},
		{Name: "rev.", Aliases: []string{"rev.", "revision"}},
		{Name: "part", Aliases: []string{"part"}},
		{Name: "oppty/proj. #", Aliases: []string{"oppty/proj. #", "opportunity", "project number", "proj #", "project #"}},
		{Name: "pieces per set", Aliases: []string{"pieces per set"}},
		{Name: "board", Aliases: []string{"board"}},
		{Name: "corr direction", Aliases: []string{"corr direction", "grain/corr", "corr/grain", "grain direction", "corrugation", "corr"}},
		{Name: "view", Aliases: []string{"view", "side shown"}},
		{Name: "project mngr.", Aliases: []string{"project mngr.", "project manager", "proj mngr"}},
		{Name: "designer", Aliases: []string{"designer", "engineer"}},
		{Name: "id", Aliases: []string{"id"}},
		{Name: "area", Aliases: []string{"area"}},
		{Name: "blank width", Aliases: []string{"blank width"}},
		{Name: "blank height", Aliases: []string{"blank height"}},
		{Name: "inches of rule", Aliases: []string{"inches of rule", "len. cutting rule", "len. other rule", "length cutting rule", "length other rule"}},
		{Name: "date", Aliases: []string{"date"}},
	}
}

// Default returns the built-in set of 17 spec-sheet fields.
func Default() *Set {
	return MustNewSet(DefaultDefinitions())
}
