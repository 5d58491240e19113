package pages

import (
	"fmt"
	"strings"
)

// Aliases maps alternate platform identifiers (Instagram business account
// ids) to canonical page ids. Unknown ids map to themselves.
type Aliases struct {
	byAlias map[string]string
}

// NewAliases builds an alias table from alias -> canonical pairs.
func NewAliases(pairs map[string]string) *Aliases {
	byAlias := make(map[string]string, len(pairs))
	for alias, canonical := range pairs {
		byAlias[alias] = canonical
	}
	return &Aliases{byAlias: byAlias}
}

// ParseAliases parses the PAGE_ALIASES env format: comma-separated
// "alias:canonical" pairs, e.g.
//
//	17841456783426236:420350114484751
func ParseAliases(raw string) (*Aliases, error) {
	pairs := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		alias, canonical, found := strings.Cut(part, ":")
		if !found || alias == "" || canonical == "" {
			return nil, fmt.Errorf("invalid alias pair %q (want alias:canonical)", part)
		}
		pairs[strings.TrimSpace(alias)] = strings.TrimSpace(canonical)
	}
	return NewAliases(pairs), nil
}

// CanonicalID resolves id to its canonical page id, or returns id unchanged
// when no alias exists.
func (a *Aliases) CanonicalID(id string) string {
	if canonical, ok := a.byAlias[id]; ok {
		return canonical
	}
	return id
}
