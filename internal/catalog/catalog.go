// Package catalog groups the configured patch artifacts into the sets the
// manager reasons about. A Catalog is immutable once built.
package catalog

import (
	"fmt"
	"slices"

	"github.com/teamcutter/patchr/internal/domain"
)

type Group string

const (
	Core         Group = "core"
	Misc         Group = "misc"
	Reserved     Group = "reserved"
	Experimental Group = "experimental"
	AddOns       Group = "addons"
)

// PatchGroups are the groups whose artifacts live in Data/ as patch files.
var PatchGroups = []Group{Core, Misc, Reserved, Experimental}

func ParseGroup(s string) (Group, error) {
	g := Group(s)
	if g == AddOns || slices.Contains(PatchGroups, g) {
		return g, nil
	}
	return "", fmt.Errorf("%q: %w", s, domain.ErrUnknownGroup)
}

// Tracked reports whether artifacts of g must have a matching manifest tag to
// count as installed. Reserved artifacts are local placeholders and only
// need to exist.
func (g Group) Tracked() bool {
	return g != Reserved
}

type Catalog struct {
	groups map[Group][]domain.Artifact
}

// New builds a catalog. Artifact names must be unique across all groups.
func New(groups map[Group][]domain.Artifact) (*Catalog, error) {
	c := &Catalog{groups: make(map[Group][]domain.Artifact, len(groups))}
	seen := make(map[string]Group)
	for g, list := range groups {
		if _, err := ParseGroup(string(g)); err != nil {
			return nil, err
		}
		for _, a := range list {
			if a.Name == "" {
				continue
			}
			if prev, ok := seen[a.Name]; ok {
				return nil, fmt.Errorf("artifact %s listed in both %s and %s", a.Name, prev, g)
			}
			seen[a.Name] = g
			c.groups[g] = append(c.groups[g], a)
		}
	}
	return c, nil
}

// Group returns a copy of the artifacts of g in configured order.
func (c *Catalog) Group(g Group) []domain.Artifact {
	return slices.Clone(c.groups[g])
}
