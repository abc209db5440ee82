package fields

import (
	"strings"

	"go.uber.org/zap"
)

// Normalize lowercases text and drops every character that is not a-z or 0-9.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// minFallbackAlias is the shortest normalized alias the substring fallback will consider.
const minFallbackAlias = 3

type aliasEntry struct {
	alias string
	field string
}

// AliasMap maps normalized aliases to canonical field names. Entries keep their first
// insertion position; a later definition with the same normalized alias replaces the field.
type AliasMap struct {
	entries []aliasEntry
	index   map[string]int
}

// BuildAliasMap builds the alias map for set, inserting aliases in definition order.
func BuildAliasMap(set *Set) *AliasMap {
	m := &AliasMap{index: make(map[string]int)}
	for _, d := range set.defs {
		for _, a := range d.Aliases {
			m.put(Normalize(a), d.Name)
		}
	}
	return m
}

func (m *AliasMap) put(alias, field string) {
	if i, ok := m.index[alias]; ok {
		m.entries[i].field = field
		return
	}
	m.index[alias] = len(m.entries)
	m.entries = append(m.entries, aliasEntry{alias: alias, field: field})
}

// Len returns the number of distinct normalized aliases.
func (m *AliasMap) Len() int {
	return len(m.entries)
}

// Lookup returns the field for an already-normalized alias.
func (m *AliasMap) Lookup(alias string) (string, bool) {
	i, ok := m.index[alias]
	if !ok {
		return "", false
	}
	return m.entries[i].field, true
}

// Match resolves a raw label to its canonical field: exact alias match first, then the first
// alias (in insertion order) of at least three characters contained in the label.
func (m *AliasMap) Match(label string) (string, bool) {
	field, _, ok := m.match(label)
	return field, ok
}

func (m *AliasMap) match(label string) (field string, fallback bool, ok bool) {
	nl := Normalize(label)
	if f, hit := m.Lookup(nl); hit {
		return f, false, true
	}
	for _, e := range m.entries {
		if len(e.alias) >= minFallbackAlias && strings.Contains(nl, e.alias) {
			return e.field, true, true
		}
	}
	return "", false, false
}

// Matcher resolves labels against a field set.
type Matcher struct {
	set     *Set
	aliases *AliasMap
	logger  *zap.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithLogger sets a logger for debug output on fallback matches and unmatched labels.
func WithLogger(l *zap.Logger) MatcherOption {
	return func(m *Matcher) { m.logger = l }
}

// NewMatcher builds the alias map for set.
func NewMatcher(set *Set, opts ...MatcherOption) *Matcher {
	m := &Matcher{set: set, aliases: BuildAliasMap(set)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set returns the field set the matcher was built from.
func (m *Matcher) Set() *Set {
	return m.set
}

// Match resolves label to a canonical field name.
func (m *Matcher) Match(label string) (string, bool) {
	field, fallback, ok := m.aliases.match(label)
	if m.logger != nil {
		switch {
		case !ok:
			m.logger.Debug("label not matched", zap.String("label", label))
		case fallback:
			m.logger.Debug("label matched by substring", zap.String("label", label), zap.String("field", field))
		}
	}
	return field, ok
}
